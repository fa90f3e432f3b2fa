// Package media defines the value shapes exchanged between components
// and the serving frontend: in-memory values, materialized file records
// and stream chunks.
package media

import (
	"time"

	"github.com/pkg/errors"
)

// ErrUnsupportedValue is returned when a value does not match any of the
// accepted shapes. This is a programmer error and is never retried.
var ErrUnsupportedValue = errors.New("unsupported value type")

// Value is one of the accepted in-memory media value shapes.
// It is resolved once at the API boundary so that internal logic can
// switch exhaustively instead of re-checking dynamic types downstream.
type Value interface {
	value()
}

// Bytes is a raw media payload in an unspecified container.
type Bytes []byte

func (Bytes) value() {}

// PCM is a sampled audio payload: interleaved 16-bit samples.
type PCM struct {
	Rate     int
	Channels int
	Samples  []int16
}

func (PCM) value() {}

// Duration returns the audible length of the sampled payload.
func (p PCM) Duration() time.Duration {
	if p.Rate <= 0 || p.Channels <= 0 {
		return 0
	}

	frames := len(p.Samples) / p.Channels
	return time.Duration(frames) * time.Second / time.Duration(p.Rate)
}

// File is a path to an existing local file.
type File string

func (File) value() {}

func (f File) String() string {
	return string(f)
}

// URL is a remote HTTP(S) location.
type URL string

func (URL) value() {}

func (u URL) String() string {
	return string(u)
}
