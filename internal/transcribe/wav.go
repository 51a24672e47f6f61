package transcribe

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// writeWAV encodes samples as a 16 kHz 16-bit PCM mono WAV stream.
// The writer is left open.
func writeWAV(w io.WriteSeeker, samples []float32) error {
	enc := wav.NewEncoder(w, TargetSampleRate, 16, 1, 1)
	if err := enc.Write(toPCM16(samples)); err != nil {
		return fmt.Errorf("writing samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing header: %w", err)
	}
	return nil
}

// readWAV decodes a PCM WAV file into mono float32 samples in [-1, 1] and
// returns them with the file's sample rate.
func readWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid wav file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
	}
	return fromPCM(buf, int(dec.BitDepth)), int(dec.SampleRate), nil
}
