package git

import (
	"errors"
	"sort"
	"strings"

	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/models"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// HeadState records where a working tree's HEAD points
type HeadState struct {
	// Branch is the checked out branch, empty when HEAD is detached
	Branch string
	// Hash is the commit HEAD resolves to
	Hash string
}

// Detached returns true if HEAD does not point at a branch
func (h HeadState) Detached() bool {
	return h.Branch == ""
}

// Checkout returns the argument that restores this HEAD with git checkout
func (h HeadState) Checkout() string {
	if h.Detached() {
		return h.Hash
	}
	return h.Branch
}

func (h HeadState) String() string {
	if h.Detached() {
		return "detached at " + h.Hash
	}
	return h.Branch + " at " + h.Hash
}

func open(path string) (*git.Repository, error) {
	// repo-managed projects share their object store through commondir
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if err != nil {
		return nil, &NotARepoError{Dir: path, Err: err}
	}
	return repo, nil
}

// IsGitRepo checks if the path is a git repository
func IsGitRepo(path string) bool {
	_, err := open(path)
	return err == nil
}

// ReadHead returns the current HEAD of the repository at path
func ReadHead(path string) (HeadState, error) {
	repo, err := open(path)
	if err != nil {
		return HeadState{}, err
	}

	ref, err := repo.Head()
	if err != nil {
		return HeadState{}, &GitError{Dir: path, Command: "rev-parse HEAD", Err: err}
	}

	state := HeadState{Hash: ref.Hash().String()}
	if ref.Name().IsBranch() {
		state.Branch = ref.Name().Short()
	}
	return state, nil
}

// ResolveBranch finds branch as a local or remote-tracking ref and returns
// its full reference name. preferRemote picks the remote-tracking ref when
// both exist, which is what a freshly fetched branch wants.
func ResolveBranch(path, remote, branch string, preferRemote bool) (string, error) {
	repo, err := open(path)
	if err != nil {
		return "", err
	}

	local := plumbing.NewBranchReferenceName(branch)
	candidates := []plumbing.ReferenceName{local}
	if remote != "" {
		remoteRef := plumbing.NewRemoteReferenceName(remote, branch)
		if preferRemote {
			candidates = []plumbing.ReferenceName{remoteRef, local}
		} else {
			candidates = append(candidates, remoteRef)
		}
	}

	for _, name := range candidates {
		if _, err := repo.Reference(name, true); err == nil {
			return name.String(), nil
		}
	}

	return "", &BranchNotFoundError{Dir: path, Branches: []string{branch}}
}

// HasRef checks if a fully qualified reference exists in the repository
func HasRef(path, refName string) bool {
	repo, err := open(path)
	if err != nil {
		return false
	}
	_, err = repo.Reference(plumbing.ReferenceName(refName), true)
	return err == nil
}

type experimentCandidate struct {
	suffix string
	ref    plumbing.ReferenceName
	remote bool
}

// FindExperimentBranch looks for the experiment branch under namespace,
// e.g. "experiment/android-5.1.1_r3/12/foo" for code "foo". Remote-tracking
// branches win over local ones with the same suffix. A branch with a path
// segment equal to code wins over one that merely contains it.
func FindExperimentBranch(path, remote, namespace, code string) (models.Experiment, error) {
	if code == "" {
		return models.Experiment{}, errors.New("experiment code must not be empty")
	}

	repo, err := open(path)
	if err != nil {
		return models.Experiment{}, err
	}

	refs, err := repo.References()
	if err != nil {
		return models.Experiment{}, &GitError{Dir: path, Command: "show-ref", Err: err}
	}

	localPrefix := "refs/heads/" + namespace + "/"
	remotePrefix := "refs/remotes/" + remote + "/" + namespace + "/"

	bySuffix := make(map[string]experimentCandidate)
	refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name().String()
		switch {
		case remote != "" && strings.HasPrefix(name, remotePrefix):
			suffix := strings.TrimPrefix(name, remotePrefix)
			bySuffix[suffix] = experimentCandidate{suffix: suffix, ref: ref.Name(), remote: true}
		case strings.HasPrefix(name, localPrefix):
			suffix := strings.TrimPrefix(name, localPrefix)
			if existing, ok := bySuffix[suffix]; ok && existing.remote {
				return nil
			}
			bySuffix[suffix] = experimentCandidate{suffix: suffix, ref: ref.Name()}
		}
		return nil
	})

	var exact, partial []experimentCandidate
	for _, c := range bySuffix {
		if hasSegment(c.suffix, code) {
			exact = append(exact, c)
		} else if strings.Contains(c.suffix, code) {
			partial = append(partial, c)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = partial
	}

	switch len(matches) {
	case 0:
		return models.Experiment{}, &ExperimentNotFoundError{Code: code, Namespace: namespace}
	case 1:
		c := matches[0]
		return models.Experiment{
			Code:   code,
			Branch: c.ref.Short(),
			Ref:    c.ref.String(),
			Remote: c.remote,
		}, nil
	default:
		names := make([]string, 0, len(matches))
		for _, c := range matches {
			names = append(names, namespace+"/"+c.suffix)
		}
		sort.Strings(names)
		return models.Experiment{}, &AmbiguousExperimentError{Code: code, Candidates: names}
	}
}

func hasSegment(suffix, code string) bool {
	for _, seg := range strings.Split(suffix, "/") {
		if seg == code {
			return true
		}
	}
	return false
}
