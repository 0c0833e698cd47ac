// Package testrepo builds throwaway git repositories shaped like a platform
// checkout for tests.
package testrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	Develop   = "phonelab/android-5.1.1_r3/develop"
	Namespace = "experiment/android-5.1.1_r3"
)

// Init creates an empty repository with a committer identity and an initial
// commit on Develop, which is left checked out.
func Init(t testing.TB, dir string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o750))
	Git(t, dir, "init", "-q")
	Git(t, dir, "config", "user.email", "test@example.com")
	Git(t, dir, "config", "user.name", "Test")
	Git(t, dir, "config", "commit.gpgsign", "false")
	Git(t, dir, "checkout", "-q", "-b", Develop)
	Commit(t, dir, "README", "platform\n", "initial")
	return dir
}

// Git runs git in dir and returns its trimmed output
func Git(t testing.TB, dir string, args ...string) string {
	t.Helper()

	// #nosec G204 -- test helper executing git with controlled args
	cmd := exec.CommandContext(context.Background(), "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, string(out))
	}
	return strings.TrimSpace(string(out))
}

// Commit writes content to file (relative to dir) and commits it
func Commit(t testing.TB, dir, file, content, message string) {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(file))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	Git(t, dir, "add", file)
	Git(t, dir, "commit", "-q", "-m", message)
}

// Branch creates branch at the current HEAD of dir and checks it out
func Branch(t testing.TB, dir, branch string) {
	t.Helper()
	Git(t, dir, "checkout", "-q", "-b", branch)
}

// Checkout switches dir to an existing branch or commit
func Checkout(t testing.TB, dir, target string) {
	t.Helper()
	Git(t, dir, "checkout", "-q", target)
}

// Head returns "<branch> <sha>" for dir, the branch being "HEAD" when detached
func Head(t testing.TB, dir string) string {
	t.Helper()
	return Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD") + " " + Git(t, dir, "rev-parse", "HEAD")
}

// Branches lists local branch names of dir
func Branches(t testing.TB, dir string) []string {
	t.Helper()
	out := Git(t, dir, "for-each-ref", "--format=%(refname:short)", "refs/heads/")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Scenario is the layout produced by Fixture
type Scenario struct {
	Dir string
	// Clean merges into Develop without conflicts
	Clean string
	// Conflict edits path/to/file.txt differently than Develop does
	Conflict string
	// Work is the branch left checked out
	Work string
}

// Fixture builds a single-project checkout with two experiment branches:
// "clean" and "conflict". Develop gains a commit after both forked so the
// merges are real three-way merges.
func Fixture(t testing.TB) Scenario {
	t.Helper()

	dir := Init(t, filepath.Join(t.TempDir(), "aosp"))
	Commit(t, dir, "path/to/file.txt", "base\n", "add file")

	clean := Namespace + "/1/clean"
	Branch(t, dir, clean)
	Commit(t, dir, "frameworks/base/Clean.java", "class Clean {}\n", "clean experiment")

	Checkout(t, dir, Develop)
	conflict := Namespace + "/2/conflict"
	Branch(t, dir, conflict)
	Commit(t, dir, "path/to/file.txt", "experiment\n", "conflicting experiment")

	Checkout(t, dir, Develop)
	Commit(t, dir, "path/to/file.txt", "develop\n", "develop moves on")

	work := "my-work"
	Branch(t, dir, work)

	return Scenario{Dir: dir, Clean: clean, Conflict: conflict, Work: work}
}
