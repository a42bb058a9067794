package tray

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/systray"
)

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once

	dictateFn func()
	editFn    func()
	cancelFn  func()

	recording  bool
	processing bool

	autoPasteOn bool
	autoPasteCb func(bool)

	langCode string
	langCb   func(string)

	copyLastFn func()

	mDictate  *systray.MenuItem
	mEdit     *systray.MenuItem
	mCancel   *systray.MenuItem
	mCopyLast *systray.MenuItem
	mStatus   *systray.MenuItem
)

type Language struct {
	Code  string // ISO-639-1
	Label string
}

var Languages = []Language{
	{"en", "English"},
	{"pt", "Portuguese"},
}

func OnDictate(fn func())       { dictateFn = fn }
func OnEdit(fn func())          { editFn = fn }
func OnCancel(fn func())        { cancelFn = fn }
func OnCopyLast(fn func())      { copyLastFn = fn }
func SetAutoPaste(on bool)      { autoPasteOn = on }
func OnAutoPaste(fn func(bool)) { autoPasteCb = fn }

func SetLanguage(code string, onSwitch func(string)) {
	langCode = code
	langCb = onSwitch
}

func SetRecording(rec bool) {
	recording = rec
	if rec {
		systray.SetIcon(iconRec)
		setStatus("Recording... press hotkey to stop")
	} else {
		systray.SetTemplateIcon(iconIdle, iconIdle)
		setStatus("Idle")
	}
	if mCancel != nil {
		if rec {
			mCancel.Enable()
		} else if !processing {
			mCancel.Disable()
		}
	}
}

func SetProcessing(on bool) {
	processing = on
	if on {
		systray.SetIcon(iconBusy)
		setStatus("Processing...")
	} else if !recording {
		systray.SetTemplateIcon(iconIdle, iconIdle)
		setStatus("Idle")
	}
	if mCancel != nil {
		if on {
			mCancel.Enable()
		} else if !recording {
			mCancel.Disable()
		}
	}
}

func SetError(msg string) {
	systray.SetTooltip("dikto – " + msg)
	go func() {
		time.Sleep(10 * time.Second)
		systray.SetTooltip("dikto – voice dictation")
	}()
}

func SetLastResult(dur time.Duration, totalMs float64) {
	setStatus(fmt.Sprintf("Last: %.1fs audio in %dms", dur.Seconds(), int(totalMs)))
	if mCopyLast != nil {
		mCopyLast.Enable()
	}
}

func setStatus(text string) {
	if mStatus != nil {
		mStatus.SetTitle(text)
	}
}

func Quit() {
	closeOnce.Do(func() {
		close(quitCh)
		systray.Quit()
	})
}

// Init starts the tray in the background and returns a channel that
// closes when the user quits from the menu.
func Init() <-chan struct{} {
	go systray.Run(onReady, onExit)
	return quitCh
}

func clicks(item *systray.MenuItem, fn func()) {
	go func() {
		for range item.ClickedCh {
			fn()
		}
	}()
}

func onReady() {
	systray.SetTemplateIcon(iconIdle, iconIdle)
	systray.SetTooltip("dikto – voice dictation")

	mStatus = systray.AddMenuItem("Idle", "Current state")
	mStatus.Disable()

	systray.AddSeparator()

	mDictate = systray.AddMenuItem("Dictate", "Start or stop dictation")
	clicks(mDictate, func() {
		if dictateFn != nil {
			dictateFn()
		}
	})

	mEdit = systray.AddMenuItem("Edit Selection", "Apply a spoken instruction to the selected text")
	clicks(mEdit, func() {
		if editFn != nil {
			editFn()
		}
	})

	mCancel = systray.AddMenuItem("Cancel", "Abandon the in-flight dictation")
	mCancel.Disable()
	clicks(mCancel, func() {
		if cancelFn != nil {
			cancelFn()
		}
	})

	mCopyLast = systray.AddMenuItem("Copy Last Result", "Put the last result back in the clipboard")
	mCopyLast.Disable()
	clicks(mCopyLast, func() {
		if copyLastFn != nil {
			copyLastFn()
		}
	})

	mSettings := systray.AddMenuItem("Settings", "Settings")

	mAutoPaste := mSettings.AddSubMenuItemCheckbox("Auto-paste", "Paste the result into the focused window", autoPasteOn)
	clicks(mAutoPaste, func() {
		if mAutoPaste.Checked() {
			mAutoPaste.Uncheck()
		} else {
			mAutoPaste.Check()
		}
		if autoPasteCb != nil {
			autoPasteCb(mAutoPaste.Checked())
		}
	})

	mLanguage := mSettings.AddSubMenuItem("Language", "Transcription and cleanup language")
	langItems := make([]*systray.MenuItem, 0, len(Languages))
	for i, lang := range Languages {
		idx := i
		item := mLanguage.AddSubMenuItemCheckbox(lang.Label, lang.Label, lang.Code == langCode)
		clicks(item, func() {
			for j, it := range langItems {
				if j == idx {
					it.Check()
				} else {
					it.Uncheck()
				}
			}
			if langCb != nil {
				langCb(Languages[idx].Code)
			}
		})
		langItems = append(langItems, item)
	}

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit dikto")
	clicks(mQuit, Quit)
}

func onExit() {
	closeOnce.Do(func() { close(quitCh) })
}
