package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Recorder captures audio from the default microphone and serves it as mono
// float32 frames through ReadFrame. Multi-channel input is downmixed.
type Recorder struct {
	ctx           *malgo.AllocatedContext
	device        *malgo.Device
	sampleRate    uint32
	channels      uint32
	deviceTimeout time.Duration

	mu        sync.Mutex
	buf       []float32
	recording bool
	notify    chan struct{}
}

// Compile-time interface satisfaction check.
var _ FrameSource = (*Recorder)(nil)

// NewRecorder creates a recorder for the default capture device. Call Close
// when done. deviceTimeout bounds how long ReadFrame waits for any data
// before reporting the device as failed; zero means 2s.
func NewRecorder(sampleRate, channels uint32, deviceTimeout time.Duration) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing audio context: %w", ErrDevice, err)
	}
	if channels == 0 {
		channels = 1
	}
	if deviceTimeout <= 0 {
		deviceTimeout = 2 * time.Second
	}

	return &Recorder{
		ctx:           ctx,
		sampleRate:    sampleRate,
		channels:      channels,
		deviceTimeout: deviceTimeout,
		notify:        make(chan struct{}, 1),
	}, nil
}

// SampleRate returns the capture sample rate in Hz.
func (r *Recorder) SampleRate() uint32 {
	return r.sampleRate
}

// Start opens the capture device. Samples accumulate until Stop.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return fmt.Errorf("audio: already recording")
	}
	r.buf = r.buf[:0]
	r.recording = true
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: r.onData})
	if err != nil {
		r.setRecording(false)
		return fmt.Errorf("%w: initializing capture device: %w", ErrDevice, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.setRecording(false)
		return fmt.Errorf("%w: starting capture device: %w", ErrDevice, err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return nil
}

// Stop closes the capture device and drops any unread samples.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false
	r.buf = r.buf[:0]
}

// IsRecording returns whether the capture device is open.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// ReadFrame blocks until n mono samples are available and returns them.
// It fails with ErrDevice when the recorder is not started or the device
// delivers nothing for the configured device timeout.
func (r *Recorder) ReadFrame(ctx context.Context, n int) ([]float32, error) {
	timer := time.NewTimer(r.deviceTimeout)
	defer timer.Stop()

	for {
		r.mu.Lock()
		if !r.recording {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: recorder is not started", ErrDevice)
		}
		if len(r.buf) >= n {
			frame := make([]float32, n)
			copy(frame, r.buf[:n])
			r.buf = append(r.buf[:0], r.buf[n:]...)
			r.mu.Unlock()
			return frame, nil
		}
		r.mu.Unlock()

		select {
		case <-r.notify:
			timer.Reset(r.deviceTimeout)
		case <-timer.C:
			return nil, fmt.Errorf("%w: no audio data for %s", ErrDevice, r.deviceTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.Stop()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninitializing audio context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}

	return nil
}

func (r *Recorder) setRecording(v bool) {
	r.mu.Lock()
	r.recording = v
	r.mu.Unlock()
}

// onData is the malgo callback invoked when audio data is available.
// pSample holds interleaved little-endian float32 frames.
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	samples := downmix(bytesToFloat32(pSample, frameCount*r.channels), int(r.channels))

	r.mu.Lock()
	if r.recording {
		r.buf = append(r.buf, samples...)
	}
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}

// downmix averages interleaved channels into a mono signal. A trailing
// partial frame is dropped.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	mono := make([]float32, len(samples)/channels)
	for i := range mono {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
