package hotkey

import (
	"fmt"
	"strings"
)

// Binding names a combo so listeners can tell which action fired.
type Binding struct {
	Name  string
	Combo string
}

// Hotkey watches global key combos and reports presses by binding
// name. Presses arriving faster than the consumer drains are dropped.
type Hotkey interface {
	Register() error
	Unregister()
	Pressed() <-chan string
}

type combo struct {
	ctrl, shift, alt, super bool
	key                     string
}

func parseCombo(s string) (combo, error) {
	var c combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			c.ctrl = true
		case "shift":
			c.shift = true
		case "alt":
			c.alt = true
		case "super", "cmd", "meta":
			c.super = true
		default:
			if i != len(parts)-1 {
				return combo{}, fmt.Errorf("unknown modifier %q in %q", part, s)
			}
			c.key = part
		}
	}
	if c.key == "" {
		return combo{}, fmt.Errorf("combo %q has no key", s)
	}
	if !c.ctrl && !c.shift && !c.alt && !c.super {
		return combo{}, fmt.Errorf("combo %q has no modifier", s)
	}
	return c, nil
}
