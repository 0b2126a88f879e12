package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zaf/g711"
)

// WAV format tags from the fmt chunk.
const (
	wavFormatPCM        = 1
	wavFormatALaw       = 6
	wavFormatULaw       = 7
	wavFormatExtensible = 0xFFFE
)

// Media types reported by DetectMediaType.
const (
	MediaTypeWAV  = "audio/wav"
	MediaTypeMP3  = "audio/mpeg"
	MediaTypeOGG  = "audio/ogg"
	MediaTypeWebM = "audio/webm"
	MediaTypeFLAC = "audio/flac"
	MediaTypeMP4  = "audio/mp4"
	MediaTypeRaw  = "application/octet-stream"
)

// WAVInfo describes a parsed RIFF/WAVE file.
type WAVInfo struct {
	FormatTag     uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	Data          []byte // contents of the data chunk
}

// PCMToULaw converts a 16-bit PCM sample to 8-bit µ-law using ITU-T G.711 standard
func PCMToULaw(sample int16) byte {
	return g711.EncodeUlawFrame(sample)
}

// PCMBytesToULaw converts PCM bytes to µ-law
func PCMBytesToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	return g711.EncodeUlaw(pcm), nil
}

// ULawBytesToPCM converts µ-law bytes to PCM bytes
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// PCMBytesToALaw converts PCM bytes to A-law
func PCMBytesToALaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	return g711.EncodeAlaw(pcm), nil
}

// ALawBytesToPCM converts A-law bytes to PCM bytes
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// DetectMediaType sniffs the container of an uploaded recording from its magic bytes.
func DetectMediaType(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return MediaTypeWAV
	case bytes.HasPrefix(data, []byte("ID3")):
		return MediaTypeMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return MediaTypeMP3
	case bytes.HasPrefix(data, []byte("OggS")):
		return MediaTypeOGG
	case bytes.HasPrefix(data, []byte("fLaC")):
		return MediaTypeFLAC
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return MediaTypeWebM
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return MediaTypeMP4
	default:
		return MediaTypeRaw
	}
}

// ParseWAV walks the RIFF chunks of data and returns the fmt and data chunks.
func ParseWAV(data []byte) (*WAVInfo, error) {
	// Minimum RIFF header size: 12 bytes ("RIFF" + size + "WAVE")
	if len(data) < 12 || !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, errors.New("invalid WAV: missing RIFF/WAVE header")
	}

	info := &WAVInfo{}
	haveFmt := false

	i := 12
	for i+8 <= len(data) {
		chunkID := string(data[i : i+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		body := i + 8
		next := body + chunkSize
		if next > len(data) {
			if chunkID == "data" {
				// Streaming recorders often leave the size unpatched; take what is there.
				next = len(data)
			} else {
				return nil, fmt.Errorf("invalid WAV: %q chunk exceeds buffer length", chunkID)
			}
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, errors.New("invalid WAV: fmt chunk too short")
			}
			info.FormatTag = binary.LittleEndian.Uint16(data[body : body+2])
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if info.FormatTag == wavFormatExtensible && chunkSize >= 26 {
				// first two bytes of the SubFormat GUID carry the real tag
				info.FormatTag = binary.LittleEndian.Uint16(data[body+24 : body+26])
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("invalid WAV: data chunk before fmt chunk")
			}
			info.Data = data[body:next]
			return info, nil
		}

		// Account for padding to even boundary
		if chunkSize%2 != 0 {
			next++
		}
		i = next
	}

	return nil, errors.New("invalid WAV: data chunk not found")
}

// NormalizeWAV converts a G.711 or multi-channel 16-bit WAV into mono 16-bit PCM WAV.
// Inputs that are not WAV are returned unchanged, as are WAVs already in that shape.
func NormalizeWAV(data []byte) ([]byte, error) {
	if DetectMediaType(data) != MediaTypeWAV {
		return data, nil
	}
	info, err := ParseWAV(data)
	if err != nil {
		return nil, err
	}

	var pcm []byte
	switch info.FormatTag {
	case wavFormatULaw:
		pcm = ULawBytesToPCM(info.Data)
	case wavFormatALaw:
		pcm = ALawBytesToPCM(info.Data)
	case wavFormatPCM:
		if info.BitsPerSample != 16 {
			return nil, fmt.Errorf("unsupported WAV: %d-bit PCM", info.BitsPerSample)
		}
		if info.Channels == 1 {
			return data, nil
		}
		pcm = info.Data
	default:
		return nil, fmt.Errorf("unsupported WAV format tag %d", info.FormatTag)
	}

	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	if info.Channels > 1 {
		pcm, err = downmix(pcm, info.Channels)
		if err != nil {
			return nil, err
		}
	}
	return PCMBytesToWavBytes(pcm, 1, info.SampleRate)
}

// PCMBytesToWavBytes wraps PCM []byte into WAV []byte (16-bit little endian)
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("PCM data is empty")
	}
	if numChannels <= 0 || numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return nil, errors.New("PCM data length doesn't match channel count")
	}

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// GetPCMDurationSeconds returns duration in seconds of 16-bit PCM
func GetPCMDurationSeconds(pcm []byte, numChannels, sampleRate int) (float64, error) {
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		return 0, errors.New("PCM data must be non-empty with even length (16-bit samples)")
	}
	if numChannels <= 0 || sampleRate <= 0 {
		return 0, errors.New("invalid channel count or sample rate")
	}
	frameCount := len(pcm) / 2 / numChannels
	return float64(frameCount) / float64(sampleRate), nil
}

// downmix averages interleaved 16-bit channels into one.
func downmix(pcm []byte, channels int) ([]byte, error) {
	frameSize := 2 * channels
	if len(pcm)%frameSize != 0 {
		pcm = pcm[:len(pcm)-len(pcm)%frameSize]
	}
	frames := len(pcm) / frameSize
	if frames == 0 {
		return nil, errors.New("PCM data is empty")
	}
	result := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			off := i*frameSize + c*2
			sum += int(int16(binary.LittleEndian.Uint16(pcm[off : off+2])))
		}
		binary.LittleEndian.PutUint16(result[i*2:], uint16(int16(sum/channels)))
	}
	return result, nil
}
