// Package audio records a single dictation utterance from an input device.
// Capture reads fixed-duration frames and stops on its own after a stretch
// of silence or once the maximum duration is reached.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDevice reports that the input device is unavailable or failed while
// reading. Capture never returns a partial buffer alongside it.
var ErrDevice = errors.New("audio: input device error")

// FrameSource yields mono float32 samples in [-1, 1].
type FrameSource interface {
	// ReadFrame blocks until up to n samples are available.
	ReadFrame(ctx context.Context, n int) ([]float32, error)
}

// CaptureOptions controls frame size, stop conditions and silence detection.
type CaptureOptions struct {
	SampleRate       uint32
	Frame            time.Duration // duration of one read, e.g. 200ms
	MaxDuration      time.Duration
	SilenceTimeout   time.Duration // <= 0 disables the silence stop
	SilenceThreshold float64       // frame L2 norm below this counts as silence

	// Stop, when non-nil and closed, ends the capture after the current
	// frame and keeps what was recorded.
	Stop <-chan struct{}
}

// DefaultCaptureOptions returns the settings used for ambulance dictation.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		SampleRate:       16000,
		Frame:            200 * time.Millisecond,
		MaxDuration:      30 * time.Second,
		SilenceTimeout:   3 * time.Second,
		SilenceThreshold: 0.005,
	}
}

// StopReason tells why a capture ended.
type StopReason int

const (
	// StopSilence means accumulated silence reached the silence timeout.
	StopSilence StopReason = iota
	// StopMaxDuration means the capture reached its maximum duration.
	StopMaxDuration
	// StopRequested means CaptureOptions.Stop was closed.
	StopRequested
)

func (s StopReason) String() string {
	switch s {
	case StopSilence:
		return "silence"
	case StopMaxDuration:
		return "max_duration"
	case StopRequested:
		return "requested"
	default:
		return fmt.Sprintf("StopReason(%d)", int(s))
	}
}

// Progress is reported once per frame.
type Progress struct {
	Elapsed time.Duration // audio captured so far
	Energy  float64       // L2 norm of the frame
	Silence time.Duration // accumulated trailing silence
	Silent  bool          // frame energy below the threshold
}

// Result is a completed capture.
type Result struct {
	Samples    []float32
	SampleRate uint32
	Duration   time.Duration
	Reason     StopReason
}

// Capture reads frames from src until the silence timeout, the maximum
// duration or a stop request is reached. Time is measured in captured audio, so the final
// frame is shortened to end exactly at MaxDuration. progress may be nil.
//
// On a read failure Capture returns an error wrapping ErrDevice; on context
// cancellation it returns the context error. Neither returns samples.
func Capture(ctx context.Context, src FrameSource, opts CaptureOptions, progress func(Progress)) (Result, error) {
	if opts.SampleRate == 0 {
		return Result{}, fmt.Errorf("audio: sample rate must be > 0")
	}
	frameSamples := samplesFor(opts.Frame, opts.SampleRate)
	if frameSamples <= 0 {
		return Result{}, fmt.Errorf("audio: frame %s is shorter than one sample", opts.Frame)
	}
	maxSamples := samplesFor(opts.MaxDuration, opts.SampleRate)
	if maxSamples <= 0 {
		return Result{}, fmt.Errorf("audio: max duration must be > 0")
	}
	silenceLimit := samplesFor(opts.SilenceTimeout, opts.SampleRate)

	var (
		buf     = make([]float32, 0, min(maxSamples, 60*int(opts.SampleRate)))
		silence int
	)
	for {
		n := min(frameSamples, maxSamples-len(buf))
		frame, err := src.ReadFrame(ctx, n)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			if errors.Is(err, ErrDevice) {
				return Result{}, err
			}
			return Result{}, fmt.Errorf("%w: reading frame: %w", ErrDevice, err)
		}
		if len(frame) == 0 {
			return Result{}, fmt.Errorf("%w: device returned an empty frame", ErrDevice)
		}
		if len(frame) > n {
			frame = frame[:n]
		}
		buf = append(buf, frame...)

		energy := l2Norm(frame)
		silent := energy < opts.SilenceThreshold
		if silent {
			silence += len(frame)
		} else {
			silence = 0
		}

		if progress != nil {
			progress(Progress{
				Elapsed: durationOf(len(buf), opts.SampleRate),
				Energy:  energy,
				Silence: durationOf(silence, opts.SampleRate),
				Silent:  silent,
			})
		}

		switch {
		case silenceLimit > 0 && silence >= silenceLimit:
			return newResult(buf, opts.SampleRate, StopSilence), nil
		case len(buf) >= maxSamples:
			return newResult(buf, opts.SampleRate, StopMaxDuration), nil
		case stopped(opts.Stop):
			return newResult(buf, opts.SampleRate, StopRequested), nil
		}
	}
}

// Capture starts the recorder, runs Capture over its frames and stops it
// again on every exit path.
func (r *Recorder) Capture(ctx context.Context, opts CaptureOptions, progress func(Progress)) (Result, error) {
	opts.SampleRate = r.sampleRate
	if err := r.Start(); err != nil {
		return Result{}, err
	}
	defer r.Stop()
	return Capture(ctx, r, opts, progress)
}

func newResult(samples []float32, sampleRate uint32, reason StopReason) Result {
	return Result{
		Samples:    samples,
		SampleRate: sampleRate,
		Duration:   durationOf(len(samples), sampleRate),
		Reason:     reason,
	}
}

func stopped(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func samplesFor(d time.Duration, sampleRate uint32) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

func durationOf(samples int, sampleRate uint32) time.Duration {
	return time.Duration(int64(samples) * int64(time.Second) / int64(sampleRate))
}

func l2Norm(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum)
}
