// Package vad implements voice activity detection over 16-bit PCM audio.
// Audio is segmented into silent and non-silent ranges by frame loudness,
// and a payload counts as voiced when at least one non-silent range is loud
// enough.
package vad

import (
	"encoding/binary"
	"math"
)

const (
	// frameMs is the analysis frame length.
	frameMs = 10

	// fullScale is the peak amplitude of 16-bit PCM, the 0 dBFS reference.
	fullScale = 32768.0
)

// Config holds the thresholds for voice detection
type Config struct {
	// VoiceThreshold is the minimum loudness (dBFS) a non-silent range must
	// reach to count as voice.
	VoiceThreshold float64
	// MinSilenceMs is the minimum length of a quiet stretch that separates
	// two non-silent ranges.
	MinSilenceMs int
	// SilenceThreshold is the loudness (dBFS) below which a frame is
	// considered silent.
	SilenceThreshold float64
}

// DefaultConfig returns the gateway's standard detection thresholds
func DefaultConfig() Config {
	return Config{
		VoiceThreshold:   -50,
		MinSilenceMs:     500,
		SilenceThreshold: -70,
	}
}

// Range is a half-open interval of PCM samples
type Range struct {
	Start int
	End   int
}

// HasVoice reports whether the PCM payload contains voice activity under the
// given thresholds. pcm is 16-bit little-endian samples, sampleRate in Hz.
func HasVoice(pcm []byte, sampleRate int, config Config) bool {
	for _, r := range DetectNonsilent(pcm, sampleRate, config) {
		if dbfs(samplesIn(pcm, r)) > config.VoiceThreshold {
			return true
		}
	}
	return false
}

// DetectNonsilent returns the sample ranges that are not part of a silent
// stretch of at least config.MinSilenceMs.
func DetectNonsilent(pcm []byte, sampleRate int, config Config) []Range {
	samples := sampleCount(pcm)
	if samples == 0 || sampleRate <= 0 {
		return nil
	}

	frameSamples := sampleRate * frameMs / 1000
	if frameSamples == 0 {
		frameSamples = 1
	}
	minSilenceFrames := config.MinSilenceMs / frameMs

	// Classify each frame
	frames := (samples + frameSamples - 1) / frameSamples
	silent := make([]bool, frames)
	for i := 0; i < frames; i++ {
		start := i * frameSamples
		end := start + frameSamples
		if end > samples {
			end = samples
		}
		silent[i] = dbfs(samplesIn(pcm, Range{start, end})) < config.SilenceThreshold
	}

	// Silent runs shorter than the minimum do not split a non-silent range
	var ranges []Range
	rangeStart := -1
	i := 0
	for i < frames {
		if !silent[i] {
			if rangeStart < 0 {
				rangeStart = i
			}
			i++
			continue
		}

		runStart := i
		for i < frames && silent[i] {
			i++
		}
		if i-runStart >= minSilenceFrames && rangeStart >= 0 {
			ranges = append(ranges, frameRange(rangeStart, runStart, frameSamples, samples))
			rangeStart = -1
		}
	}
	if rangeStart >= 0 {
		ranges = append(ranges, frameRange(rangeStart, frames, frameSamples, samples))
	}

	return ranges
}

func frameRange(startFrame, endFrame, frameSamples, samples int) Range {
	end := endFrame * frameSamples
	if end > samples {
		end = samples
	}
	return Range{Start: startFrame * frameSamples, End: end}
}

func sampleCount(pcm []byte) int {
	return len(pcm) / 2
}

func samplesIn(pcm []byte, r Range) []byte {
	return pcm[r.Start*2 : r.End*2]
}

// dbfs returns the RMS loudness of 16-bit PCM relative to full scale.
// Empty or all-zero input maps to -inf.
func dbfs(pcm []byte) float64 {
	n := sampleCount(pcm)
	if n == 0 {
		return math.Inf(-1)
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += s * s
	}

	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/fullScale)
}
