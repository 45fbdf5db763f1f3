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

const maxListedProcesses = 200

type process struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
}

func (t *Toolset) registerSystem(reg *functions.Registry) {
	reg.MustRegister(functions.Declare("get_clipboard", "Returns the text currently on the clipboard.", nil),
		action(t.getClipboard))

	reg.MustRegister(functions.Declare("set_clipboard", "Puts text on the clipboard.",
		map[string]*genai.Schema{"text": functions.StringParam("The text to copy.")}, "text"),
		action(t.setClipboard))

	reg.MustRegister(functions.Declare("set_volume", "Sets the output volume.",
		map[string]*genai.Schema{"percent": functions.IntParam("Volume from 0 to 100.")}, "percent"),
		action(t.setVolume))

	reg.MustRegister(functions.Declare("set_brightness", "Sets the screen brightness.",
		map[string]*genai.Schema{"percent": functions.IntParam("Brightness from 0 to 100.")}, "percent"),
		action(t.setBrightness))

	reg.MustRegister(functions.Declare("focus_window", "Activates the first window whose title contains the given text.",
		map[string]*genai.Schema{"title": functions.StringParam("Part of the window title.")}, "title"),
		action(t.focusWindow))

	reg.MustRegister(functions.Declare("move_window", "Moves and optionally resizes a window.",
		map[string]*genai.Schema{
			"title":  functions.StringParam("Part of the window title."),
			"x":      functions.IntParam("New left edge."),
			"y":      functions.IntParam("New top edge."),
			"width":  functions.IntParam("New width; omit to keep."),
			"height": functions.IntParam("New height; omit to keep."),
		}, "title", "x", "y"),
		action(t.moveWindow))

	reg.MustRegister(functions.Declare("open_application", "Launches an application by command name, e.g. 'gedit' or 'firefox https://example.com'.",
		map[string]*genai.Schema{"command": functions.StringParam("Command line to launch.")}, "command"),
		action(t.openApplication))

	reg.MustRegister(functions.Declare("list_processes", "Lists running processes.", nil),
		action(t.listProcesses))

	reg.MustRegister(functions.Declare("kill_process", "Terminates a process by pid or exact name.",
		map[string]*genai.Schema{
			"pid":  functions.IntParam("Process id."),
			"name": functions.StringParam("Exact process name."),
		}),
		action(t.killProcess))
}

func (t *Toolset) getClipboard(ctx context.Context, _ map[string]any) (map[string]any, error) {
	out, err := t.run(ctx, shell.Cmd("xclip", "-selection", "clipboard", "-o"))
	if err != nil {
		return nil, err
	}
	return functions.Success("Read clipboard", "text", string(out)), nil
}

func (t *Toolset) setClipboard(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, err := functions.String(args, "text")
	if err != nil {
		return nil, err
	}
	cmd := shell.Cmd("xclip", "-selection", "clipboard", "-i")
	cmd.Stdin = []byte(text)
	// xclip forks a child that serves the selection until another app takes it
	cmd.DiscardOutput = true
	if _, err := t.run(ctx, cmd); err != nil {
		return nil, err
	}
	return functions.Success(fmt.Sprintf("Copied %d characters to clipboard", len([]rune(text)))), nil
}

func percentArg(args map[string]any) (int, error) {
	p, err := functions.Int(args, "percent")
	if err != nil {
		return 0, err
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("percent must be between 0 and 100, got %d", p)
	}
	return p, nil
}

func (t *Toolset) setVolume(ctx context.Context, args map[string]any) (map[string]any, error) {
	p, err := percentArg(args)
	if err != nil {
		return nil, err
	}
	if _, err := t.run(ctx, shell.Cmd("pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", p))); err != nil {
		return nil, err
	}
	return functions.Success(fmt.Sprintf("Volume set to %d%%", p)), nil
}

func (t *Toolset) setBrightness(ctx context.Context, args map[string]any) (map[string]any, error) {
	p, err := percentArg(args)
	if err != nil {
		return nil, err
	}
	if _, err := t.run(ctx, shell.Cmd("brightnessctl", "set", fmt.Sprintf("%d%%", p))); err != nil {
		return nil, err
	}
	return functions.Success(fmt.Sprintf("Brightness set to %d%%", p)), nil
}

func (t *Toolset) focusWindow(ctx context.Context, args map[string]any) (map[string]any, error) {
	title, err := functions.String(args, "title")
	if err != nil {
		return nil, err
	}
	if _, err := t.run(ctx, shell.Cmd("wmctrl", "-a", title)); err != nil {
		return nil, err
	}
	return functions.Success("Focused window: " + title), nil
}

func (t *Toolset) moveWindow(ctx context.Context, args map[string]any) (map[string]any, error) {
	title, err := functions.String(args, "title")
	if err != nil {
		return nil, err
	}
	x, y, err := coords(args)
	if err != nil {
		return nil, err
	}
	w, err := functions.IntOr(args, "width", -1)
	if err != nil {
		return nil, err
	}
	h, err := functions.IntOr(args, "height", -1)
	if err != nil {
		return nil, err
	}

	geometry := fmt.Sprintf("0,%d,%d,%d,%d", x, y, w, h)
	if _, err := t.run(ctx, shell.Cmd("wmctrl", "-r", title, "-e", geometry)); err != nil {
		return nil, err
	}
	return functions.Success(fmt.Sprintf("Moved window %s to (%d, %d)", title, x, y)), nil
}

func (t *Toolset) openApplication(_ context.Context, args map[string]any) (map[string]any, error) {
	command, err := functions.String(args, "command")
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("command must not be empty")
	}
	pid, err := t.runner.Start(shell.Cmd(fields[0], fields[1:]...))
	if err != nil {
		return nil, err
	}
	return functions.Success("Opened "+fields[0], "pid", pid), nil
}

func (t *Toolset) listProcesses(ctx context.Context, _ map[string]any) (map[string]any, error) {
	out, err := t.run(ctx, shell.Cmd("ps", "-eo", "pid=,comm="))
	if err != nil {
		return nil, err
	}
	procs := parseProcesses(string(out))
	total := len(procs)
	if total > maxListedProcesses {
		procs = procs[:maxListedProcesses]
	}
	return functions.Success(fmt.Sprintf("%d processes", total), "processes", procs), nil
}

func parseProcesses(out string) []process {
	var procs []process
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		procs = append(procs, process{PID: pid, Name: strings.Join(fields[1:], " ")})
	}
	return procs
}

func (t *Toolset) killProcess(ctx context.Context, args map[string]any) (map[string]any, error) {
	pid, err := functions.IntOr(args, "pid", 0)
	if err != nil {
		return nil, err
	}
	name, err := functions.StringOr(args, "name", "")
	if err != nil {
		return nil, err
	}

	switch {
	case pid > 0:
		if _, err := t.run(ctx, shell.Cmd("kill", strconv.Itoa(pid))); err != nil {
			return nil, err
		}
		return functions.Success(fmt.Sprintf("Terminated process %d", pid)), nil
	case name != "":
		if _, err := t.run(ctx, shell.Cmd("pkill", "-x", name)); err != nil {
			return nil, err
		}
		return functions.Success("Terminated " + name), nil
	default:
		return nil, fmt.Errorf("either pid or name is required")
	}
}
