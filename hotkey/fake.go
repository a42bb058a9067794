package hotkey

type FakeHotkey struct {
	pressed chan string
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{pressed: make(chan string, 1)}
}

func (f *FakeHotkey) Register() error        { return nil }
func (f *FakeHotkey) Unregister()            {}
func (f *FakeHotkey) Pressed() <-chan string { return f.pressed }
func (f *FakeHotkey) SimPress(name string)   { f.pressed <- name }
