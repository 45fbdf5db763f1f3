package shell

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestRunCapturesStdout(t *testing.T) {
	requireTool(t, "cat")
	r := NewExecRunner()

	out, err := r.Run(context.Background(), Command{Name: "cat", Stdin: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestRunReportsStderr(t *testing.T) {
	requireTool(t, "sh")
	r := NewExecRunner()

	_, err := r.Run(context.Background(), Cmd("sh", "-c", "echo nope >&2; exit 3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRunMissingBinary(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), Cmd("definitely-not-a-real-tool-xyz"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not installed")
}

func TestRunTimeout(t *testing.T) {
	requireTool(t, "sleep")
	r := NewExecRunner()
	r.SetTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), Cmd("sleep", "5"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunReturnsWhenChildHoldsOutput(t *testing.T) {
	requireTool(t, "sh")
	requireTool(t, "sleep")
	r := NewExecRunner()
	r.SetTimeout(time.Second)

	start := time.Now()
	out, err := r.Run(context.Background(), Cmd("sh", "-c", "sleep 5 & echo parent-done"))
	require.NoError(t, err)
	assert.Equal(t, "parent-done\n", string(out))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunDiscardOutputDoesNotWaitForChild(t *testing.T) {
	requireTool(t, "sh")
	requireTool(t, "sleep")
	r := NewExecRunner()

	cmd := Cmd("sh", "-c", "sleep 5 & echo ignored; echo ignored >&2")
	cmd.DiscardOutput = true
	cmd.Stdin = []byte("selection")

	start := time.Now()
	out, err := r.Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "xdotool key Return", Cmd("xdotool", "key", "Return").String())
	assert.Equal(t, "xclip", Cmd("xclip").String())
}
