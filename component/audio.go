package component

import (
	"context"

	"mediaflow/cache"
	"mediaflow/media"
	"mediaflow/stream"
	"mediaflow/transcode"

	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Audio is the audio component backend.
type Audio struct {
	Cache     *cache.Files
	Converter transcode.Converter
	Prober    transcode.Prober
	Combiner  *stream.Combiner
	Config    MediaConfig

	sessions stream.Registry
}

func (a *Audio) String() string {
	return "component.audio"
}

// Postprocess normalizes a produced value into a record, converting into
// the configured container when needed. Duration bounds are not enforced on
// output.
func (a *Audio) Postprocess(ctx context.Context, value media.Value) (*media.Record, error) {
	record, err := a.Cache.Materialize(ctx, value, a.Config.Format)
	if err != nil {
		return nil, err
	}

	return ensureFormat(ctx, a.Cache, a.Converter, a.Config.Format, record)
}

// Preprocess turns an uploaded record into a local path for user code.
// Remote records are fetched, duration bounds are enforced and foreign
// containers are converted once. The original upload is never mutated.
func (a *Audio) Preprocess(ctx context.Context, record *media.Record) (string, error) {
	record, err := localize(ctx, a.Cache, record)
	if err != nil {
		return "", err
	}

	duration, err := a.Prober.Duration(ctx, flu.File(record.Path))
	if err != nil {
		return "", errors.Wrap(err, "probe duration")
	}

	if err := a.Config.checkDuration(duration); err != nil {
		return "", err
	}

	record, err = ensureFormat(ctx, a.Cache, a.Converter, a.Config.Format, record)
	if err != nil {
		return "", err
	}

	return record.Path, nil
}

// StreamOutput delivers one producer chunk progressively. The raw fragment
// is retained for reassembly and rewrapped into an ADTS elementary stream
// for the live channel. nil data signals end-of-stream: no deliverable is
// produced and the retained chunks stay available for CombineStream.
func (a *Audio) StreamOutput(ctx context.Context, data []byte, outputID string, first bool) (*media.Chunk, *media.Record, error) {
	placeholder := media.NewStreamRecord(outputID)
	if data == nil {
		return nil, placeholder, nil
	}

	session, err := a.sessions.Get(ctx, outputID)
	if err != nil {
		return nil, nil, err
	}

	if err := session.Append(data); err != nil {
		return nil, nil, err
	}

	if first {
		logrus.WithField("session", outputID).Debugf("%s: stream started", a)
	}

	chunk, err := a.Combiner.Repackage(ctx, data, true)
	if err != nil {
		return nil, nil, err
	}

	return chunk, placeholder, nil
}

// CombineStream reassembles the stream into one playable file in the cache.
// chunks must be in emission order; nil chunks reassembles what StreamOutput
// retained for the session. The session is discarded regardless of outcome.
func (a *Audio) CombineStream(ctx context.Context, outputID string, chunks [][]byte, desiredFormat string) (*media.Record, error) {
	defer func() { _ = a.sessions.Discard(ctx, outputID) }()

	if chunks == nil {
		session, err := a.sessions.Get(ctx, outputID)
		if err != nil {
			return nil, err
		}

		if chunks, err = session.Finalize(); err != nil {
			return nil, err
		}
	}

	if desiredFormat == "" {
		desiredFormat = a.Config.Format
	}

	return a.Combiner.CombineAudio(ctx, outputID, chunks, desiredFormat)
}

// Abandon discards a session whose producer stopped without signaling
// end-of-stream. No artifact is written.
func (a *Audio) Abandon(ctx context.Context, outputID string) error {
	return a.sessions.Discard(ctx, outputID)
}
