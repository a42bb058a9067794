package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"dikto/encoder"
	"dikto/log"
)

// minFrames is the shortest recording worth uploading (0.1s). Anything
// below it is treated as an accidental tap and discarded.
const minFrames = encoder.SampleRate / 10

// Recorder turns a capture device into a one-utterance recorder:
// Start begins encoding the microphone into the configured format,
// Stop returns the finished bytes, Abort throws them away.
type Recorder struct {
	Capture CaptureDevice
	Format  string

	// OnChunk taps the raw PCM stream for level metering and voice
	// detection. Called from the capture thread; must not block.
	OnChunk func(pcm []byte)

	mu      sync.Mutex
	enc     encoder.Encoder
	pending []int16
	frames  uint64
	active  bool
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return fmt.Errorf("already recording")
	}

	enc, err := encoder.New(r.Format)
	if err != nil {
		return err
	}
	r.enc = enc
	r.pending = r.pending[:0]
	r.frames = 0
	r.active = true

	r.Capture.SetCallback(r.feed)
	if err := r.Capture.Start(); err != nil {
		r.Capture.ClearCallback()
		r.active = false
		r.enc = nil
		return err
	}
	log.Info("recording_device: " + r.Capture.DeviceName())
	return nil
}

func (r *Recorder) feed(data []byte, frameCount uint32) {
	if tap := r.OnChunk; tap != nil {
		tap(data)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.frames += uint64(frameCount)

	for i := 0; i+1 < len(data); i += 2 {
		r.pending = append(r.pending, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	for len(r.pending) >= encoder.BlockSize {
		block := r.pending[:encoder.BlockSize]
		if err := r.enc.EncodeBlock(block); err != nil {
			log.Errorf("encode: %v", err)
		}
		r.pending = r.pending[encoder.BlockSize:]
	}
}

// Stop finishes the recording and returns the encoded audio. A
// recording shorter than minFrames returns nil bytes.
func (r *Recorder) Stop() ([]byte, error) {
	r.Capture.Stop()
	r.Capture.ClearCallback()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, nil
	}
	r.active = false

	if len(r.pending) > 0 {
		if err := r.enc.EncodeBlock(r.pending); err != nil {
			log.Errorf("encode: %v", err)
		}
		r.pending = r.pending[:0]
	}
	if err := r.enc.Close(); err != nil {
		r.enc = nil
		return nil, fmt.Errorf("closing encoder: %w", err)
	}

	if r.frames < minFrames {
		log.Info("recording_discarded_too_short")
		r.enc = nil
		return nil, nil
	}

	out := r.enc.Bytes()
	r.enc = nil
	return out, nil
}

// Abort discards the in-flight recording.
func (r *Recorder) Abort() {
	r.Capture.Stop()
	r.Capture.ClearCallback()

	r.mu.Lock()
	r.active = false
	r.enc = nil
	r.pending = r.pending[:0]
	r.mu.Unlock()
}

// Seconds reports the length of the audio captured so far.
func (r *Recorder) Seconds() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.frames) / float64(encoder.SampleRate)
}
