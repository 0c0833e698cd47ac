package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/testrepo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsGitRepo(t *testing.T) {
	assert.False(t, IsGitRepo(t.TempDir()))

	s := testrepo.Fixture(t)
	assert.True(t, IsGitRepo(s.Dir))
}

func TestReadHead(t *testing.T) {
	s := testrepo.Fixture(t)

	head, err := ReadHead(s.Dir)
	require.NoError(t, err)
	assert.Equal(t, s.Work, head.Branch)
	assert.Equal(t, testrepo.Git(t, s.Dir, "rev-parse", "HEAD"), head.Hash)
	assert.Equal(t, s.Work, head.Checkout())

	testrepo.Checkout(t, s.Dir, head.Hash)
	detached, err := ReadHead(s.Dir)
	require.NoError(t, err)
	assert.True(t, detached.Detached())
	assert.Equal(t, head.Hash, detached.Checkout())
}

func TestReadHead_NotARepo(t *testing.T) {
	_, err := ReadHead(t.TempDir())

	var notRepo *NotARepoError
	require.True(t, errors.As(err, &notRepo))
}

func TestResolveBranch(t *testing.T) {
	s := testrepo.Fixture(t)

	ref, err := ResolveBranch(s.Dir, "aosp", testrepo.Develop, true)
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/"+testrepo.Develop, ref)

	// a remote-tracking ref wins when preferred
	sha := testrepo.Git(t, s.Dir, "rev-parse", testrepo.Develop)
	testrepo.Git(t, s.Dir, "update-ref", "refs/remotes/aosp/"+testrepo.Develop, sha)

	ref, err = ResolveBranch(s.Dir, "aosp", testrepo.Develop, true)
	require.NoError(t, err)
	assert.Equal(t, "refs/remotes/aosp/"+testrepo.Develop, ref)

	ref, err = ResolveBranch(s.Dir, "aosp", testrepo.Develop, false)
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/"+testrepo.Develop, ref)

	_, err = ResolveBranch(s.Dir, "aosp", "phonelab/nope", false)
	var notFound *BranchNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"phonelab/nope"}, notFound.Branches)
}

func TestFindExperimentBranch_ExactSegment(t *testing.T) {
	s := testrepo.Fixture(t)

	exp, err := FindExperimentBranch(s.Dir, "aosp", testrepo.Namespace, "clean")
	require.NoError(t, err)
	assert.Equal(t, "clean", exp.Code)
	assert.Equal(t, s.Clean, exp.Branch)
	assert.Equal(t, "refs/heads/"+s.Clean, exp.Ref)
	assert.False(t, exp.Remote)
}

func TestFindExperimentBranch_PrefersRemote(t *testing.T) {
	s := testrepo.Fixture(t)
	sha := testrepo.Git(t, s.Dir, "rev-parse", s.Clean)
	testrepo.Git(t, s.Dir, "update-ref", "refs/remotes/aosp/"+s.Clean, sha)

	exp, err := FindExperimentBranch(s.Dir, "aosp", testrepo.Namespace, "clean")
	require.NoError(t, err)
	assert.Equal(t, "aosp/"+s.Clean, exp.Branch)
	assert.Equal(t, "refs/remotes/aosp/"+s.Clean, exp.Ref)
	assert.True(t, exp.Remote)
}

func TestFindExperimentBranch_Substring(t *testing.T) {
	s := testrepo.Fixture(t)

	exp, err := FindExperimentBranch(s.Dir, "aosp", testrepo.Namespace, "confl")
	require.NoError(t, err)
	assert.Equal(t, s.Conflict, exp.Branch)
}

func TestFindExperimentBranch_ExactBeatsSubstring(t *testing.T) {
	s := testrepo.Fixture(t)
	testrepo.Git(t, s.Dir, "branch", testrepo.Namespace+"/3/cleanup", testrepo.Develop)

	exp, err := FindExperimentBranch(s.Dir, "aosp", testrepo.Namespace, "clean")
	require.NoError(t, err)
	assert.Equal(t, s.Clean, exp.Branch)
}

func TestFindExperimentBranch_Ambiguous(t *testing.T) {
	s := testrepo.Fixture(t)
	testrepo.Git(t, s.Dir, "branch", testrepo.Namespace+"/9/clean", testrepo.Develop)

	_, err := FindExperimentBranch(s.Dir, "aosp", testrepo.Namespace, "clean")
	var ambiguous *AmbiguousExperimentError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, []string{
		testrepo.Namespace + "/1/clean",
		testrepo.Namespace + "/9/clean",
	}, ambiguous.Candidates)
}

func TestFindExperimentBranch_NotFound(t *testing.T) {
	s := testrepo.Fixture(t)

	_, err := FindExperimentBranch(s.Dir, "aosp", testrepo.Namespace, "missing")
	var notFound *ExperimentNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Code)

	_, err = FindExperimentBranch(s.Dir, "aosp", testrepo.Namespace, "")
	require.Error(t, err)
}

func TestCLI_MergeClean(t *testing.T) {
	ctx := context.Background()
	s := testrepo.Fixture(t)
	cli := NewCLI(zap.NewNop())

	require.NoError(t, cli.CheckoutNewBranch(ctx, s.Dir, "checker/tmp", testrepo.Develop))
	conflicts, err := cli.Merge(ctx, s.Dir, "refs/heads/"+s.Clean)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	_, err = os.Stat(filepath.Join(s.Dir, "frameworks", "base", "Clean.java"))
	assert.NoError(t, err)
}

func TestCLI_MergeConflict(t *testing.T) {
	ctx := context.Background()
	s := testrepo.Fixture(t)
	cli := NewCLI(zap.NewNop())

	require.NoError(t, cli.CheckoutNewBranch(ctx, s.Dir, "checker/tmp", testrepo.Develop))
	conflicts, err := cli.Merge(ctx, s.Dir, "refs/heads/"+s.Conflict)
	require.NoError(t, err)
	assert.Equal(t, []string{"path/to/file.txt"}, conflicts)

	require.NoError(t, cli.AbortMerge(ctx, s.Dir))
	require.NoError(t, cli.EnsureClean(ctx, s.Dir))
}

func TestCLI_MergeUnknownRef(t *testing.T) {
	ctx := context.Background()
	s := testrepo.Fixture(t)
	cli := NewCLI(zap.NewNop())

	_, err := cli.Merge(ctx, s.Dir, "refs/heads/does-not-exist")
	var gerr *GitError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, s.Dir, gerr.Dir)
}

func TestCLI_EnsureClean(t *testing.T) {
	ctx := context.Background()
	s := testrepo.Fixture(t)
	cli := NewCLI(zap.NewNop())

	require.NoError(t, cli.EnsureClean(ctx, s.Dir))

	// untracked files do not count
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "scratch.txt"), []byte("x"), 0o600))
	require.NoError(t, cli.EnsureClean(ctx, s.Dir))

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "README"), []byte("changed"), 0o600))
	err := cli.EnsureClean(ctx, s.Dir)
	var dirty *DirtyWorktreeError
	require.True(t, errors.As(err, &dirty))
	assert.Equal(t, []string{"README"}, dirty.Files)
}

func TestCLI_DeleteBranch(t *testing.T) {
	ctx := context.Background()
	s := testrepo.Fixture(t)
	cli := NewCLI(zap.NewNop())

	testrepo.Git(t, s.Dir, "branch", "checker/tmp")
	require.NoError(t, cli.DeleteBranch(ctx, s.Dir, "checker/tmp"))
	assert.NotContains(t, testrepo.Branches(t, s.Dir), "checker/tmp")
}

func TestCLI_ForceCheckoutDiscardsTrackedChanges(t *testing.T) {
	ctx := context.Background()
	s := testrepo.Fixture(t)
	cli := NewCLI(zap.NewNop())

	require.NoError(t, cli.CheckoutNewBranch(ctx, s.Dir, "checker/tmp", s.Clean))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "frameworks", "base", "Clean.java"), []byte("generated\n"), 0o600))

	require.NoError(t, cli.ForceCheckout(ctx, s.Dir, s.Work))
	assert.Equal(t, s.Work, testrepo.Git(t, s.Dir, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Empty(t, testrepo.Git(t, s.Dir, "status", "--porcelain", "--untracked-files=no"))
}

func TestCLI_FetchMissingRemote(t *testing.T) {
	s := testrepo.Fixture(t)
	cli := NewCLI(zap.NewNop())

	err := cli.Fetch(context.Background(), s.Dir, "aosp", testrepo.Develop)
	require.Error(t, err)
}

func TestCLI_FetchFromRemote(t *testing.T) {
	ctx := context.Background()
	upstream := testrepo.Fixture(t)

	clone := filepath.Join(t.TempDir(), "clone")
	testrepo.Git(t, upstream.Dir, "clone", "-q", "--origin", "aosp", upstream.Dir, clone)

	cli := NewCLI(zap.NewNop())
	require.NoError(t, cli.Fetch(ctx, clone, "aosp", testrepo.Develop))
	assert.True(t, HasRef(clone, "refs/remotes/aosp/"+testrepo.Develop))

	err := cli.Fetch(ctx, clone, "aosp", "phonelab/nope")
	var notFound *BranchNotFoundError
	require.True(t, errors.As(err, &notFound))
}
