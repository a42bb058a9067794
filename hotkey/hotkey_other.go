//go:build !linux

package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

var xKeys = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"1":     hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6,
	"7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9, "0": hotkey.Key0,
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
}

type xBinding struct {
	name string
	hk   *hotkey.Hotkey
}

type xHotkey struct {
	bindings []xBinding
	pressed  chan string
	stop     chan struct{}
}

func New(bindings ...Binding) (Hotkey, error) {
	h := &xHotkey{pressed: make(chan string, 1)}
	for _, b := range bindings {
		c, err := parseCombo(b.Combo)
		if err != nil {
			return nil, err
		}
		key, ok := xKeys[c.key]
		if !ok {
			return nil, fmt.Errorf("unsupported key %q in %q", c.key, b.Combo)
		}
		if c.alt || c.super {
			return nil, fmt.Errorf("only ctrl/shift modifiers are supported in %q", b.Combo)
		}
		var mods []hotkey.Modifier
		if c.ctrl {
			mods = append(mods, hotkey.ModCtrl)
		}
		if c.shift {
			mods = append(mods, hotkey.ModShift)
		}
		h.bindings = append(h.bindings, xBinding{name: b.Name, hk: hotkey.New(mods, key)})
	}
	return h, nil
}

func (h *xHotkey) Register() error {
	h.stop = make(chan struct{})
	for _, b := range h.bindings {
		if err := b.hk.Register(); err != nil {
			return err
		}
		go func(b xBinding) {
			for {
				select {
				case <-b.hk.Keydown():
					select {
					case h.pressed <- b.name:
					default:
					}
				case <-h.stop:
					return
				}
			}
		}(b)
	}
	return nil
}

func (h *xHotkey) Unregister() {
	if h.stop != nil {
		close(h.stop)
	}
	for _, b := range h.bindings {
		b.hk.Unregister()
	}
}

func (h *xHotkey) Pressed() <-chan string {
	return h.pressed
}

func Diagnose() (string, error) {
	return "global hotkey support available", nil
}
