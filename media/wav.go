package media

import (
	"encoding/binary"

	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

type wavHeader struct {
	RIFF       [4]byte
	RIFFSize   uint32
	WAVE       [4]byte
	Fmt        [4]byte
	FmtSize    uint32
	Format     uint16
	Channels   uint16
	Rate       uint32
	ByteRate   uint32
	BlockAlign uint16
	Bits       uint16
	Data       [4]byte
	DataSize   uint32
}

// EncodeWAV writes the sampled payload as a 16-bit PCM WAV container.
// Raw samples become a playable file without an external encoder, so that
// materialization never depends on an optional runtime binary.
func EncodeWAV(pcm PCM, out flu.Output) error {
	if pcm.Rate <= 0 || pcm.Channels <= 0 {
		return errors.Errorf("invalid pcm parameters: rate %d, channels %d", pcm.Rate, pcm.Channels)
	}

	w, err := out.Writer()
	if err != nil {
		return errors.Wrap(err, "open writer")
	}

	defer flu.CloseQuietly(w)

	dataSize := uint32(len(pcm.Samples) * 2)
	header := wavHeader{
		RIFF:       [4]byte{'R', 'I', 'F', 'F'},
		RIFFSize:   36 + dataSize,
		WAVE:       [4]byte{'W', 'A', 'V', 'E'},
		Fmt:        [4]byte{'f', 'm', 't', ' '},
		FmtSize:    16,
		Format:     1, // PCM
		Channels:   uint16(pcm.Channels),
		Rate:       uint32(pcm.Rate),
		ByteRate:   uint32(pcm.Rate * pcm.Channels * 2),
		BlockAlign: uint16(pcm.Channels * 2),
		Bits:       16,
		Data:       [4]byte{'d', 'a', 't', 'a'},
		DataSize:   dataSize,
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "write header")
	}

	if err := binary.Write(w, binary.LittleEndian, pcm.Samples); err != nil {
		return errors.Wrap(err, "write samples")
	}

	return nil
}
