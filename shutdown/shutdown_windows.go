//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

// Notify subscribes ch to the signals that should end the daemon.
func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
