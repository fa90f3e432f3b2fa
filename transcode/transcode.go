// Package transcode drives external media encoders. Every invocation is a
// supervised task with a timeout and a structured result: a converted file,
// or a ProcessError carrying the encoder diagnostic. Partial output files
// never survive a failed invocation.
package transcode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

// ErrEnvironmentUnsupported is returned when the runtime cannot spawn the
// encoder process at all (missing binary, sandboxed runtime). Callers get
// this immediately instead of a hung or half-started invocation.
var ErrEnvironmentUnsupported = errors.New("transcoding is not supported in this environment")

// Options describe one conversion pass.
type Options struct {
	// Format is the target container (demuxer/muxer name), e.g. "wav",
	// "adts", "mp4". Required.
	Format string
	// AudioCodec and VideoCodec select encoders; empty lets the muxer
	// choose its default.
	AudioCodec string
	VideoCodec string
	// Copy remuxes without re-encoding. Codec settings are ignored.
	Copy bool
}

func (o Options) String() string {
	tokens := []string{o.Format}
	if o.Copy {
		tokens = append(tokens, "copy")
	}
	if o.AudioCodec != "" {
		tokens = append(tokens, "a:"+o.AudioCodec)
	}
	if o.VideoCodec != "" {
		tokens = append(tokens, "v:"+o.VideoCodec)
	}

	return strings.Join(tokens, "+")
}

// Converter converts a media file into another container/codec.
// The input file is never mutated; out is fully written or removed.
type Converter interface {
	Convert(ctx context.Context, in, out flu.File, opts Options) error
}

// Concatenator combines independently encoded segments, in the order given,
// into one continuously playable file.
type Concatenator interface {
	Concat(ctx context.Context, parts []flu.File, out flu.File) error
}

// Prober inspects container metadata.
type Prober interface {
	Duration(ctx context.Context, in flu.File) (time.Duration, error)
}

// ProcessError is a failed encoder invocation. The partial output file, if
// any, has already been removed when this error is returned.
type ProcessError struct {
	// Args is the full command line.
	Args []string
	// Diagnostic is the captured stderr tail.
	Diagnostic string
	// Err is the underlying process error.
	Err error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("transcode failed: %v", e.Err)
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}

	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
