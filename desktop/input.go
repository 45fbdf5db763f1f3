package desktop

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/room4-2/livedesk/functions"
	"github.com/room4-2/livedesk/shell"
)

const typeDelayMillis = "12"

var mouseButtons = map[string]string{"left": "1", "middle": "2", "right": "3"}

func (t *Toolset) registerInput(reg *functions.Registry) {
	reg.MustRegister(functions.Declare("type_text",
		"Types text using the keyboard.",
		map[string]*genai.Schema{"text": functions.StringParam("The text to type.")}, "text"),
		action(t.typeText))

	reg.MustRegister(functions.Declare("press_key",
		"Presses a single key (e.g. 'enter', 'esc', 'win', 'tab', 'f5').",
		map[string]*genai.Schema{"key": functions.StringParam("The key to press.")}, "key"),
		action(t.pressKey))

	reg.MustRegister(functions.Declare("hotkey",
		"Presses a combination of keys together, e.g. ['ctrl', 'l'].",
		map[string]*genai.Schema{"keys": functions.StringListParam("Keys to hold down together, in order.")}, "keys"),
		action(t.hotkey))

	reg.MustRegister(functions.Declare("click_mouse",
		"Clicks the mouse at coordinates read from the screenshot grid.",
		map[string]*genai.Schema{
			"x":      functions.IntParam("The x-coordinate on the screen/grid."),
			"y":      functions.IntParam("The y-coordinate on the screen/grid."),
			"button": functions.StringParam("The mouse button to click.", "left", "right", "middle"),
		}, "x", "y"),
		action(t.clickMouse))

	reg.MustRegister(functions.Declare("move_mouse",
		"Moves the mouse pointer to coordinates read from the screenshot grid.",
		map[string]*genai.Schema{
			"x": functions.IntParam("The x-coordinate on the screen/grid."),
			"y": functions.IntParam("The y-coordinate on the screen/grid."),
		}, "x", "y"),
		action(t.moveMouse))

	reg.MustRegister(functions.Declare("scroll",
		"Scrolls the mouse wheel. Positive scrolls up, negative scrolls down (e.g. 500 or -500).",
		map[string]*genai.Schema{"amount": functions.IntParam("The amount to scroll.")}, "amount"),
		action(t.scroll))
}

func (t *Toolset) typeText(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, err := functions.String(args, "text")
	if err != nil {
		return nil, err
	}
	if _, err := t.run(ctx, shell.Cmd("xdotool", "type", "--delay", typeDelayMillis, "--", text)); err != nil {
		return nil, err
	}
	return functions.Success("Typed: " + text), nil
}

func (t *Toolset) pressKey(ctx context.Context, args map[string]any) (map[string]any, error) {
	key, err := functions.String(args, "key")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("key must not be empty")
	}
	if _, err := t.run(ctx, shell.Cmd("xdotool", "key", keysym(key))); err != nil {
		return nil, err
	}
	return functions.Success("Pressed key: " + key), nil
}

func (t *Toolset) hotkey(ctx context.Context, args map[string]any) (map[string]any, error) {
	keys, err := functions.Strings(args, "keys")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("keys must not be empty")
	}
	if _, err := t.run(ctx, shell.Cmd("xdotool", "key", chord(keys))); err != nil {
		return nil, err
	}
	return functions.Success("Pressed hotkey: " + strings.Join(keys, "+")), nil
}

func (t *Toolset) clickMouse(ctx context.Context, args map[string]any) (map[string]any, error) {
	x, y, err := coords(args)
	if err != nil {
		return nil, err
	}
	button, err := functions.StringOr(args, "button", "left")
	if err != nil {
		return nil, err
	}
	code, ok := mouseButtons[strings.ToLower(button)]
	if !ok {
		return nil, fmt.Errorf("unknown mouse button %q: must be left, right or middle", button)
	}

	sx, sy := t.capturer.ToScreen(x, y)
	cmd := shell.Cmd("xdotool", "mousemove", strconv.Itoa(sx), strconv.Itoa(sy), "click", code)
	if _, err := t.run(ctx, cmd); err != nil {
		return nil, err
	}
	return functions.Success(fmt.Sprintf("Clicked %s at (%d, %d)", strings.ToLower(button), x, y)), nil
}

func (t *Toolset) moveMouse(ctx context.Context, args map[string]any) (map[string]any, error) {
	x, y, err := coords(args)
	if err != nil {
		return nil, err
	}
	sx, sy := t.capturer.ToScreen(x, y)
	if _, err := t.run(ctx, shell.Cmd("xdotool", "mousemove", strconv.Itoa(sx), strconv.Itoa(sy))); err != nil {
		return nil, err
	}
	return functions.Success(fmt.Sprintf("Moved mouse to (%d, %d)", x, y)), nil
}

// scroll treats every 100 units as one wheel notch
func (t *Toolset) scroll(ctx context.Context, args map[string]any) (map[string]any, error) {
	amount, err := functions.Int(args, "amount")
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("amount must not be zero")
	}

	button, notches := "4", amount
	if amount < 0 {
		button, notches = "5", -amount
	}
	notches = max((notches+99)/100, 1)

	cmd := shell.Cmd("xdotool", "click", "--repeat", strconv.Itoa(notches), button)
	if _, err := t.run(ctx, cmd); err != nil {
		return nil, err
	}
	return functions.Success(fmt.Sprintf("Scrolled by %d", amount)), nil
}

func coords(args map[string]any) (int, int, error) {
	x, err := functions.Int(args, "x")
	if err != nil {
		return 0, 0, err
	}
	y, err := functions.Int(args, "y")
	if err != nil {
		return 0, 0, err
	}
	if x < 0 || y < 0 {
		return 0, 0, fmt.Errorf("coordinates must not be negative: (%d, %d)", x, y)
	}
	return x, y, nil
}
