package transcribe

import (
	"math"

	"github.com/go-audio/audio"
)

// Rescale returns a copy of samples that fits in [-1, 1]. When any sample
// exceeds that range, every sample is divided by the peak magnitude.
func Rescale(samples []float32) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)

	var peak float64
	for _, s := range out {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if peak <= 1 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / peak)
	}
	return out
}

// Resample converts samples between rates with linear interpolation.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 || from <= 0 || to <= 0 {
		return samples
	}

	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

// toPCM16 quantizes float samples in [-1, 1] to a 16-bit integer buffer.
func toPCM16(samples []float32) *audio.IntBuffer {
	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * math.MaxInt16)
		data[i] = int(max(math.MinInt16, min(math.MaxInt16, v)))
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: TargetSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
}

// fromPCM converts an integer buffer of the given bit depth to mono float32,
// averaging interleaved channels.
func fromPCM(buf *audio.IntBuffer, bitDepth int) []float32 {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		channels = buf.Format.NumChannels
	}
	scale := float32(int64(1) << (bitDepth - 1))

	out := make([]float32, len(buf.Data)/channels)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		out[i] = sum / float32(channels)
	}
	return out
}
