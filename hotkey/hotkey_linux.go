//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keyLAlt    = 56
	keyRAlt    = 100
	keyLMeta   = 125
	keyRMeta   = 126
)

var keyCodes = map[string]uint16{
	"space": 57, "esc": 1, "tab": 15, "enter": 28,
	"1": 2, "2": 3, "3": 4, "4": 5, "5": 6,
	"6": 7, "7": 8, "8": 9, "9": 10, "0": 11,
	"q": 16, "w": 17, "e": 18, "r": 19, "t": 20, "y": 21, "u": 22,
	"i": 23, "o": 24, "p": 25, "a": 30, "s": 31, "d": 32, "f": 33,
	"g": 34, "h": 35, "j": 36, "k": 37, "l": 38, "z": 44, "x": 45,
	"c": 46, "v": 47, "b": 48, "n": 49, "m": 50,
}

const inputEventSize = 24

type binding struct {
	name  string
	combo combo
	code  uint16
}

type linuxHotkey struct {
	bindings []binding
	pressed  chan string
	files    []*os.File
	stop     chan struct{}
	once     sync.Once
}

func New(bindings ...Binding) (Hotkey, error) {
	h := &linuxHotkey{pressed: make(chan string, 1)}
	for _, b := range bindings {
		c, err := parseCombo(b.Combo)
		if err != nil {
			return nil, err
		}
		code, ok := keyCodes[c.key]
		if !ok {
			return nil, fmt.Errorf("unsupported key %q in %q", c.key, b.Combo)
		}
		h.bindings = append(h.bindings, binding{name: b.Name, combo: c, code: code})
	}
	return h, nil
}

func (h *linuxHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	h.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	return nil
}

func (h *linuxHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	var ctrlHeld, shiftHeld, altHeld, superHeld bool
	held := make(map[uint16]bool)

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			if evType != evKey {
				continue
			}

			press := evValue == keyPress
			release := evValue == keyRelease

			switch evCode {
			case keyLCtrl, keyRCtrl:
				ctrlHeld = press || (!release && ctrlHeld)
				continue
			case keyLShift, keyRShift:
				shiftHeld = press || (!release && shiftHeld)
				continue
			case keyLAlt, keyRAlt:
				altHeld = press || (!release && altHeld)
				continue
			case keyLMeta, keyRMeta:
				superHeld = press || (!release && superHeld)
				continue
			}

			for _, b := range h.bindings {
				if evCode != b.code {
					continue
				}
				if press && !held[evCode] &&
					ctrlHeld == b.combo.ctrl && shiftHeld == b.combo.shift &&
					altHeld == b.combo.alt && superHeld == b.combo.super {
					held[evCode] = true
					select {
					case h.pressed <- b.name:
					default:
					}
				} else if release {
					held[evCode] = false
				}
			}
		}
	}
}

func (h *linuxHotkey) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxHotkey) Pressed() <-chan string {
	return h.pressed
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		path := filepath.Join("/dev/input", e.Name())
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, path)
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	caps := strings.TrimSpace(string(data))
	return len(caps) > 10
}

func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}

	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
