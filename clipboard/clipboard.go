// Package clipboard owns the system clipboard plus the platform
// keystroke injection used to paste into (and copy from) the focused
// application.
package clipboard

import cb "github.com/atotto/clipboard"

func Read() (string, error) {
	return cb.ReadAll()
}

func Write(text string) error {
	return cb.WriteAll(text)
}

func Clear() error {
	return cb.WriteAll("")
}
