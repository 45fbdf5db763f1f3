package functions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func noop(context.Context, map[string]any) (any, error) { return Success("ok"), nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Declare("press_key", "Press a key", map[string]*genai.Schema{
		"key": StringParam("key name"),
	}, "key"), noop))
	require.NoError(t, r.Register(Declare("capture_screen", "Look at the screen", nil), noop))

	_, ok := r.Lookup("press_key")
	assert.True(t, ok)
	_, ok = r.Lookup("foo")
	assert.False(t, ok)

	assert.Equal(t, []string{"capture_screen", "press_key"}, r.Names())

	tools := r.Tools()
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 2)
	assert.Equal(t, "capture_screen", tools[0].FunctionDeclarations[0].Name)
	assert.Nil(t, tools[0].FunctionDeclarations[0].Parameters)
	assert.Equal(t, []string{"key"}, tools[0].FunctionDeclarations[1].Parameters.Required)
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Declare("a", "", nil), noop))
	assert.Error(t, r.Register(Declare("a", "", nil), noop))
	assert.Error(t, r.Register(Declare("", "", nil), noop))
	assert.Error(t, r.Register(Declare("b", "", nil), nil))
	assert.Panics(t, func() { r.MustRegister(Declare("a", "", nil), noop) })
}

func TestEmptyRegistryHasNoTools(t *testing.T) {
	assert.Nil(t, NewRegistry().Tools())
}

func TestArgs(t *testing.T) {
	args := map[string]any{
		"text":   "hello",
		"x":      float64(120),
		"frac":   1.5,
		"count":  "7",
		"keys":   []any{"ctrl", "l"},
		"bad":    []any{"ctrl", 3},
		"number": 3,
	}

	s, err := String(args, "text")
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	_, err = String(args, "missing")
	assert.True(t, errors.Is(err, ErrMissingArg))

	_, err = String(args, "x")
	assert.Error(t, err)

	def, err := StringOr(args, "button", "left")
	require.NoError(t, err)
	assert.Equal(t, "left", def)

	x, err := Int(args, "x")
	require.NoError(t, err)
	assert.Equal(t, 120, x)

	n, err := Int(args, "number")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	c, err := Int(args, "count")
	require.NoError(t, err)
	assert.Equal(t, 7, c)

	_, err = Int(args, "frac")
	assert.Error(t, err)

	d, err := IntOr(args, "missing", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, d)

	keys, err := Strings(args, "keys")
	require.NoError(t, err)
	assert.Equal(t, []string{"ctrl", "l"}, keys)

	_, err = Strings(args, "bad")
	assert.Error(t, err)

	flag, err := BoolOr(map[string]any{"append": true}, "append", false)
	require.NoError(t, err)
	assert.True(t, flag)

	flag, err = BoolOr(map[string]any{"append": "false"}, "append", true)
	require.NoError(t, err)
	assert.False(t, flag)

	flag, err = BoolOr(args, "missing", true)
	require.NoError(t, err)
	assert.True(t, flag)

	_, err = BoolOr(args, "x", false)
	assert.Error(t, err)
}

func TestResults(t *testing.T) {
	assert.Equal(t, map[string]any{"status": "success", "message": "Pressed key: enter"}, Success("Pressed key: enter"))
	assert.Equal(t, map[string]any{"status": "success", "message": "m", "width": 10}, Success("m", "width", 10))
	assert.Equal(t, map[string]any{"status": "error", "message": "boom"}, Failure(errors.New("boom")))
}
