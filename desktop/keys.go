package desktop

import (
	"strings"
)

// keysyms maps common key names onto X keysyms understood by xdotool
var keysyms = map[string]string{
	"enter":       "Return",
	"return":      "Return",
	"esc":         "Escape",
	"escape":      "Escape",
	"tab":         "Tab",
	"space":       "space",
	"backspace":   "BackSpace",
	"delete":      "Delete",
	"del":         "Delete",
	"insert":      "Insert",
	"home":        "Home",
	"end":         "End",
	"pageup":      "Prior",
	"pgup":        "Prior",
	"pagedown":    "Next",
	"pgdn":        "Next",
	"up":          "Up",
	"down":        "Down",
	"left":        "Left",
	"right":       "Right",
	"ctrl":        "ctrl",
	"control":     "ctrl",
	"alt":         "alt",
	"shift":       "shift",
	"win":         "super",
	"super":       "super",
	"cmd":         "super",
	"command":     "super",
	"capslock":    "Caps_Lock",
	"printscreen": "Print",
	"prtsc":       "Print",
	"menu":        "Menu",
}

// keysym translates a key name; unknown names pass through unchanged
func keysym(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if sym, ok := keysyms[lower]; ok {
		return sym
	}
	// function keys: f1..f24
	if len(lower) >= 2 && lower[0] == 'f' && strings.Trim(lower[1:], "0123456789") == "" {
		return "F" + lower[1:]
	}
	return strings.TrimSpace(name)
}

func chord(keys []string) string {
	syms := make([]string, 0, len(keys))
	for _, k := range keys {
		syms = append(syms, keysym(k))
	}
	return strings.Join(syms, "+")
}
