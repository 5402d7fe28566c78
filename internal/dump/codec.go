package dump

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/codefionn/sqmean/internal/aggregate"
)

const (
	headerSize = 8     // entryCount:uint64
	entrySize  = 4 + 8 // key:int32, square:float64
)

// ErrCorrupt is returned when a snapshot's length does not match its entry count.
var ErrCorrupt = errors.New("corrupt snapshot")

// Marshal encodes entries as a little-endian entry count followed by one
// (int32 key, float64 square) pair per entry. The layout has no header or
// version; changing it is a breaking change for every reader.
func Marshal(entries []aggregate.Entry) []byte {
	buf := make([]byte, 0, headerSize+len(entries)*entrySize)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(entries)))
	for _, e := range entries {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Key))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(e.Square))
	}
	return buf
}

// Unmarshal decodes a snapshot produced by Marshal.
func Unmarshal(data []byte) ([]aggregate.Entry, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrCorrupt, len(data), headerSize)
	}

	count := binary.LittleEndian.Uint64(data)
	body := data[headerSize:]
	if count > uint64(len(body)/entrySize) || uint64(len(body)) != count*entrySize {
		return nil, fmt.Errorf("%w: %d entries declared, %d body bytes", ErrCorrupt, count, len(body))
	}

	entries := make([]aggregate.Entry, count)
	for i := range entries {
		off := i * entrySize
		entries[i] = aggregate.Entry{
			Key:    int32(binary.LittleEndian.Uint32(body[off:])),
			Square: math.Float64frombits(binary.LittleEndian.Uint64(body[off+4:])),
		}
	}
	return entries, nil
}
