package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blue-systems-group/project.phonelab.platform-checker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTailWriter_KeepsLastLines(t *testing.T) {
	w := newTailWriter(3)
	_, _ = w.Write([]byte("one\ntwo\nthr"))
	_, _ = w.Write([]byte("ee\nfour\r\nfi"))

	assert.Equal(t, []string{"three", "four", "fi"}, w.Lines())
}

func TestTailWriter_Zero(t *testing.T) {
	w := newTailWriter(0)
	_, _ = w.Write([]byte("one\ntwo"))
	assert.Empty(t, w.Lines())
}

func TestTailWriter_CapsPartialLine(t *testing.T) {
	w := newTailWriter(2)
	chunk := bytes.Repeat([]byte("."), 16<<10)
	for i := 0; i < 10; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	_, err := w.Write([]byte("end"))
	require.NoError(t, err)

	assert.LessOrEqual(t, len(w.partial), maxPartial)
	lines := w.Lines()
	require.Len(t, lines, 1)
	assert.Len(t, lines[0], maxPartial)
	assert.True(t, strings.HasSuffix(lines[0], "...end"))

	_, err = w.Write([]byte("\nnext\n"))
	require.NoError(t, err)
	lines = w.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "next", lines[1])
}

func TestCheckEnv(t *testing.T) {
	env := []string{"TARGET_PRODUCT=aosp_hammerhead", "TARGET_BUILD_VARIANT=userdebug"}
	required := []string{"TARGET_PRODUCT", "TARGET_BUILD_VARIANT"}

	require.NoError(t, CheckEnv(env, required, "hammerhead", "userdebug"))
	require.NoError(t, CheckEnv(env, required, "", ""))

	var envErr *EnvError
	err := CheckEnv(nil, required, "", "")
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, required, envErr.Missing)

	err = CheckEnv(env, required, "shamu", "")
	require.True(t, errors.As(err, &envErr))
	assert.Contains(t, envErr.Error(), "shamu")

	err = CheckEnv(env, nil, "", "eng")
	require.True(t, errors.As(err, &envErr))
	assert.Contains(t, envErr.Error(), "expected eng")

	// the last assignment wins, as it does for exec.Cmd
	env = append(env, "TARGET_BUILD_VARIANT=eng")
	require.NoError(t, CheckEnv(env, nil, "", "eng"))
}

func TestEnvironment_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lunch.env")
	require.NoError(t, os.WriteFile(path, []byte("TARGET_PRODUCT=aosp_shamu\nTARGET_BUILD_VARIANT=eng\n"), 0o600))

	env, err := Environment(path)
	require.NoError(t, err)

	product, ok := lookup(env, "TARGET_PRODUCT")
	require.True(t, ok)
	assert.Equal(t, "aosp_shamu", product)

	_, err = Environment(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestRunner_Success(t *testing.T) {
	var live bytes.Buffer
	r := NewRunner(t.TempDir(), os.Environ(), [][]string{
		{"sh", "-c", "echo clean"},
		{"sh", "-c", "echo build"},
	}, 10, zap.NewNop())
	r.Output = &live

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, models.IsSuccess(result))
	assert.Equal(t, "clean\nbuild\n", live.String())
}

func TestRunner_FailureCapturesTail(t *testing.T) {
	script := `for i in 1 2 3 4 5; do echo "line $i"; done; echo "error: boom" >&2; exit 2`
	r := NewRunner(t.TempDir(), os.Environ(), [][]string{
		{"sh", "-c", script},
		{"sh", "-c", "echo never"},
	}, 3, zap.NewNop())

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, models.IsBuildFailure(result))

	code, tail := models.BuildLog(result)
	assert.Equal(t, 2, code)
	assert.Equal(t, []string{"line 4", "line 5", "error: boom"}, tail)
}

func TestRunner_UsesDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(dir, []string{"PATH=" + os.Getenv("PATH"), "CHECKER_PROBE=42"}, [][]string{
		{"sh", "-c", `test "$CHECKER_PROBE" = 42 && test "$(pwd -P)" = "$EXPECTED" || exit 9`},
	}, 5, zap.NewNop())
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	r.Env = append(r.Env, "EXPECTED="+resolved)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, models.IsSuccess(result), "result: %#v", result)
}

func TestRunner_ToolMissing(t *testing.T) {
	r := NewRunner(t.TempDir(), os.Environ(), [][]string{{"definitely-not-a-build-tool-xyz"}}, 5, zap.NewNop())

	_, err := r.Run(context.Background())
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.True(t, strings.HasPrefix(toolErr.Command, "definitely-not"))
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(t.TempDir(), os.Environ(), [][]string{{"sh", "-c", "sleep 5"}}, 5, zap.NewNop())
	_, err := r.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunner_NoSteps(t *testing.T) {
	r := NewRunner(t.TempDir(), nil, nil, 5, zap.NewNop())
	_, err := r.Run(context.Background())
	require.Error(t, err)
}
