//go:build !linux

package clipboard

import (
	"runtime"
	"sync"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	return kbErr
}

func chord(key int) error {
	if err := Init(); err != nil {
		return err
	}
	kb.Clear()
	kb.SetKeys(key)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true) // Cmd on macOS
	} else {
		kb.HasCTRL(true)
	}
	return kb.Launching()
}

// SimulatePaste sends Cmd+V (macOS) or Ctrl+V to the focused
// application.
func SimulatePaste() error {
	return chord(keybd_event.VK_V)
}

// SimulateCopy sends Cmd+C (macOS) or Ctrl+C to the focused
// application.
func SimulateCopy() error {
	return chord(keybd_event.VK_C)
}

// Verify checks that the keyboard event binding is initialized.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	return "keyboard event binding OK", nil
}
