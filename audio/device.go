package audio

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// SelectDevice presents an interactive capture device picker. The first
// entry is the system default, which returns nil so the caller stores an
// empty device name and tracks whatever the OS routes to us.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	entries := make([]string, 0, len(devices)+1)
	entries = append(entries, "System default")
	for _, d := range devices {
		name := d.Name
		if IsBluetooth(d.Name) {
			name += " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
		}
		entries = append(entries, name)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	renderList := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select microphone (↑/↓, Enter to confirm):\r\n\r\n")
		for i, e := range entries {
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s\x1b[0m\r\n", e)
			} else {
				fmt.Printf("    %s\r\n", e)
			}
		}
	}

	renderList()

	pick := func() *DeviceInfo {
		fmt.Print("\r\n")
		term.Restore(fd, oldState)
		if cursor == 0 {
			return nil
		}
		return &devices[cursor-1]
	}

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		if n == 1 {
			switch buf[0] {
			case 13: // Enter
				return pick(), nil
			case 3: // Ctrl+C
				fmt.Print("\r\n")
				term.Restore(fd, oldState)
				os.Exit(130)
			case 'j': // vim down
				if cursor < len(entries)-1 {
					cursor++
				}
			case 'k': // vim up
				if cursor > 0 {
					cursor--
				}
			}
		} else if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
			switch buf[2] {
			case 'A': // Up arrow
				if cursor > 0 {
					cursor--
				}
			case 'B': // Down arrow
				if cursor < len(entries)-1 {
					cursor++
				}
			}
		}

		lines := len(entries) + 2
		fmt.Printf("\x1b[%dA", lines)
		renderList()
	}
}
