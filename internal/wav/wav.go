// Package wav implements minimal RIFF/WAVE container handling for the PCM
// payloads the gateway accepts and produces.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mojokb/ha-custom-stt/domain/entities"
)

const (
	headerSize = 44

	// formatPCM is the only audio format tag the gateway understands.
	formatPCM = 1
)

// Format describes the PCM stream inside a WAV container
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// Decode parses a WAV payload and returns its format and raw PCM data.
// Truncated, non-RIFF, or non-PCM input fails with
// entities.ErrDecodeFailure.
func Decode(data []byte) (Format, []byte, error) {
	var format Format

	if len(data) < 12 {
		return format, nil, fmt.Errorf("%w: payload shorter than RIFF header", entities.ErrDecodeFailure)
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return format, nil, fmt.Errorf("%w: not a RIFF/WAVE container", entities.ErrDecodeFailure)
	}

	var (
		haveFormat bool
		pcm        []byte
	)

	// Walk the chunk list. Only "fmt " and "data" matter, everything else
	// (LIST, fact, ...) is skipped.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if chunkSize < 0 || body+chunkSize > len(data) {
			return format, nil, fmt.Errorf("%w: truncated %q chunk", entities.ErrDecodeFailure, chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return format, nil, fmt.Errorf("%w: fmt chunk too small", entities.ErrDecodeFailure)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != formatPCM {
				return format, nil, fmt.Errorf("%w: unsupported audio format tag %d", entities.ErrDecodeFailure, audioFormat)
			}
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			format.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFormat = true

		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word aligned
		if chunkSize%2 == 1 {
			chunkSize++
		}
		offset = body + chunkSize
	}

	if !haveFormat {
		return format, nil, fmt.Errorf("%w: missing fmt chunk", entities.ErrDecodeFailure)
	}
	if pcm == nil {
		return format, nil, fmt.Errorf("%w: missing data chunk", entities.ErrDecodeFailure)
	}
	if format.Channels == 0 || format.SampleRate == 0 || format.BitsPerSample == 0 {
		return format, nil, fmt.Errorf("%w: invalid fmt chunk values", entities.ErrDecodeFailure)
	}

	return format, pcm, nil
}

// Encode wraps raw PCM samples in a WAV container
func Encode(pcm []byte, format Format) []byte {
	bytesPerSample := format.BitsPerSample / 8
	byteRate := format.SampleRate * format.Channels * bytesPerSample
	blockAlign := format.Channels * bytesPerSample
	dataSize := len(pcm)

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+dataSize))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(format.Channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(format.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(format.BitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	_, _ = buf.Write(pcm)

	return buf.Bytes()
}
