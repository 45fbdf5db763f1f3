package desktop

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/room4-2/livedesk/functions"
)

const (
	defaultReadLimit = 64 * 1024
	maxListedEntries = 500
)

type dirEntry struct {
	Name string `json:"name"`
	Dir  bool   `json:"dir"`
	Size int64  `json:"size"`
}

func (t *Toolset) registerFiles(reg *functions.Registry) {
	reg.MustRegister(functions.Declare("read_file", "Reads a text file.",
		map[string]*genai.Schema{
			"path":      functions.StringParam("File path; '~' expands to the home directory."),
			"max_bytes": functions.IntParam("Maximum bytes to return (default 65536)."),
		}, "path"),
		action(t.readFile))

	reg.MustRegister(functions.Declare("write_file", "Writes text to a file, creating parent directories.",
		map[string]*genai.Schema{
			"path":    functions.StringParam("File path; '~' expands to the home directory."),
			"content": functions.StringParam("Text to write."),
			"append":  functions.BoolParam("Append instead of overwriting."),
		}, "path", "content"),
		action(t.writeFile))

	reg.MustRegister(functions.Declare("list_directory", "Lists the entries of a directory.",
		map[string]*genai.Schema{
			"path": functions.StringParam("Directory path (default: current directory)."),
		}),
		action(t.listDirectory))
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path must not be empty")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(path), nil
}

func (t *Toolset) readFile(_ context.Context, args map[string]any) (map[string]any, error) {
	raw, err := functions.String(args, "path")
	if err != nil {
		return nil, err
	}
	limit, err := functions.IntOr(args, "max_bytes", defaultReadLimit)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultReadLimit
	}
	path, err := expandPath(raw)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	truncated := len(data) > limit
	if truncated {
		data = data[:limit]
	}
	return functions.Success("Read "+path, "content", string(data), "truncated", truncated), nil
}

func (t *Toolset) writeFile(_ context.Context, args map[string]any) (map[string]any, error) {
	raw, err := functions.String(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := functions.String(args, "content")
	if err != nil {
		return nil, err
	}
	appendMode, err := functions.BoolOr(args, "append", false)
	if err != nil {
		return nil, err
	}
	path, err := expandPath(raw)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return functions.Success(fmt.Sprintf("Wrote %d bytes to %s", len(content), path)), nil
}

func (t *Toolset) listDirectory(_ context.Context, args map[string]any) (map[string]any, error) {
	raw, err := functions.StringOr(args, "path", ".")
	if err != nil {
		return nil, err
	}
	path, err := expandPath(raw)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	listed := make([]dirEntry, 0, min(len(entries), maxListedEntries))
	for _, e := range entries {
		if len(listed) == maxListedEntries {
			break
		}
		entry := dirEntry{Name: e.Name(), Dir: e.IsDir()}
		if info, err := e.Info(); err == nil && !e.IsDir() {
			entry.Size = info.Size()
		}
		listed = append(listed, entry)
	}
	return functions.Success(fmt.Sprintf("%d entries in %s", len(entries), path), "entries", listed), nil
}
