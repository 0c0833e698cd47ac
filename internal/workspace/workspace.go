// Package workspace locates the git projects that make up a platform
// checkout: every default-group project of a repo-managed tree, or the
// checkout itself when it is a plain git repository.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/git"
	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/models"
)

// InvalidRootError indicates the root is neither a repo checkout nor a git
// working tree
type InvalidRootError struct {
	Root   string
	Reason string
}

func (e *InvalidRootError) Error() string {
	return "invalid AOSP root " + e.Root + ": " + e.Reason
}

// Workspace is a discovered checkout
type Workspace struct {
	Root string
	// RepoManaged is true when Root holds a .repo directory
	RepoManaged bool
	Projects    []models.Project
	// Missing lists manifest projects with no git working tree on disk
	Missing []string
}

// Discover inspects root and returns its projects
func Discover(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, &InvalidRootError{Root: abs, Reason: err.Error()}
	}
	if !info.IsDir() {
		return nil, &InvalidRootError{Root: abs, Reason: "not a directory"}
	}

	repoDir := filepath.Join(abs, ".repo")
	if st, err := os.Stat(repoDir); err == nil && st.IsDir() {
		return discoverRepo(abs, repoDir)
	}

	if git.IsGitRepo(abs) {
		return &Workspace{
			Root:     abs,
			Projects: []models.Project{models.NewProject(".", abs, "")},
		}, nil
	}

	return nil, &InvalidRootError{Root: abs, Reason: "no .repo directory and not a git repository"}
}

func discoverRepo(root, repoDir string) (*Workspace, error) {
	path, err := manifestPath(repoDir)
	if err != nil {
		return nil, &InvalidRootError{Root: root, Reason: err.Error()}
	}

	entries, err := loadProjects(path, repoDir)
	if err != nil {
		return nil, &InvalidRootError{Root: root, Reason: err.Error()}
	}

	ws := &Workspace{Root: root, RepoManaged: true}
	for _, e := range entries {
		rel := filepath.ToSlash(filepath.Clean(e.dir()))
		dir := filepath.Join(root, filepath.FromSlash(rel))
		if !git.IsGitRepo(dir) {
			ws.Missing = append(ws.Missing, rel)
			continue
		}
		ws.Projects = append(ws.Projects, models.NewProject(rel, dir, e.Name))
	}

	if len(ws.Projects) == 0 {
		return nil, &InvalidRootError{Root: root, Reason: "manifest lists no checked out projects"}
	}
	return ws, nil
}

// Probe returns the project used to resolve branch names: the project at
// path when present, otherwise the first project.
func (w *Workspace) Probe(path string) models.Project {
	for _, p := range w.Projects {
		if p.Path == path {
			return p
		}
	}
	return w.Projects[0]
}
