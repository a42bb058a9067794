package pipeline

import "dikto/clipboard"

// SystemOps is the production Ops backed by the real clipboard and the
// platform keystroke injector.
type SystemOps struct{}

func (SystemOps) ReadClipboard() (string, error)   { return clipboard.Read() }
func (SystemOps) WriteClipboard(text string) error { return clipboard.Write(text) }
func (SystemOps) ClearClipboard() error            { return clipboard.Clear() }
func (SystemOps) SimulateCopy() error              { return clipboard.SimulateCopy() }
func (SystemOps) SimulatePaste() error             { return clipboard.SimulatePaste() }
