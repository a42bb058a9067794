package beep

var disabled bool

func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Recording started: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Recording stopped: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Partial success: single low tone
	warnFreq   = 500
	warnVolume = 0.5
	warnDecay  = 30

	// Failure: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)
