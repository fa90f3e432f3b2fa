package component

import (
	"context"

	"mediaflow/cache"
	"mediaflow/media"
	"mediaflow/stream"
	"mediaflow/transcode"

	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

// VideoValue is a video record with an optional subtitle track.
type VideoValue struct {
	Video    *media.Record `json:"video"`
	Subtitle *media.Record `json:"subtitles,omitempty"`
}

// Video is the video component backend.
type Video struct {
	Cache     *cache.Files
	Converter transcode.Converter
	Prober    transcode.Prober
	Combiner  *stream.Combiner
	Config    MediaConfig

	sessions stream.Registry
}

func (v *Video) String() string {
	return "component.video"
}

// Postprocess normalizes a produced video and its optional subtitle track.
// The video is converted into the configured container when needed; srt
// subtitles are converted to vtt for browser playback.
func (v *Video) Postprocess(ctx context.Context, value media.Value, subtitle media.Value) (*VideoValue, error) {
	record, err := v.Cache.Materialize(ctx, value, v.Config.Format)
	if err != nil {
		return nil, err
	}

	record, err = ensureFormat(ctx, v.Cache, v.Converter, v.Config.Format, record)
	if err != nil {
		return nil, err
	}

	out := &VideoValue{Video: record}
	if subtitle != nil {
		if out.Subtitle, err = v.postprocessSubtitle(ctx, subtitle); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Preprocess resolves an uploaded video to a local path, enforcing the
// configured duration bounds and converting foreign containers once.
func (v *Video) Preprocess(ctx context.Context, record *media.Record) (string, error) {
	record, err := localize(ctx, v.Cache, record)
	if err != nil {
		return "", err
	}

	duration, err := v.Prober.Duration(ctx, flu.File(record.Path))
	if err != nil {
		return "", errors.Wrap(err, "probe duration")
	}

	if err := v.Config.checkDuration(duration); err != nil {
		return "", err
	}

	record, err = ensureFormat(ctx, v.Cache, v.Converter, v.Config.Format, record)
	if err != nil {
		return "", err
	}

	return record.Path, nil
}

// StreamOutput delivers one producer chunk progressively. Video fragments
// are already independently playable transport-stream segments and pass
// through with the duration probed from the container. nil data signals
// end-of-stream.
func (v *Video) StreamOutput(ctx context.Context, data []byte, outputID string, first bool) (*media.Chunk, *media.Record, error) {
	placeholder := media.NewStreamRecord(outputID)
	if data == nil {
		return nil, placeholder, nil
	}

	session, err := v.sessions.Get(ctx, outputID)
	if err != nil {
		return nil, nil, err
	}

	if err := session.Append(data); err != nil {
		return nil, nil, err
	}

	chunk, err := v.Combiner.Repackage(ctx, data, false)
	if err != nil {
		return nil, nil, err
	}

	return chunk, placeholder, nil
}

// CombineStream reassembles the stream and wraps the result the way
// Postprocess does. nil chunks reassembles what StreamOutput retained.
func (v *Video) CombineStream(ctx context.Context, outputID string, chunks [][]byte, desiredFormat string) (*VideoValue, error) {
	record, err := v.CombineStreamFile(ctx, outputID, chunks, desiredFormat)
	if err != nil {
		return nil, err
	}

	return &VideoValue{Video: record}, nil
}

// CombineStreamFile reassembles the stream into a bare downloadable record
// without the wrapper.
func (v *Video) CombineStreamFile(ctx context.Context, outputID string, chunks [][]byte, desiredFormat string) (*media.Record, error) {
	defer func() { _ = v.sessions.Discard(ctx, outputID) }()

	if chunks == nil {
		session, err := v.sessions.Get(ctx, outputID)
		if err != nil {
			return nil, err
		}

		if chunks, err = session.Finalize(); err != nil {
			return nil, err
		}
	}

	if desiredFormat == "" {
		desiredFormat = v.Config.Format
	}

	return v.Combiner.CombineVideo(ctx, outputID, chunks, desiredFormat)
}

// Abandon discards a session whose producer stopped without signaling
// end-of-stream. No artifact is written.
func (v *Video) Abandon(ctx context.Context, outputID string) error {
	return v.sessions.Discard(ctx, outputID)
}

func (v *Video) postprocessSubtitle(ctx context.Context, value media.Value) (*media.Record, error) {
	record, err := v.Cache.Materialize(ctx, value, "vtt")
	if err != nil {
		return nil, err
	}

	switch recordExt(record) {
	case "vtt":
		return record, pinRecord(ctx, v.Cache, record)

	case "srt":
		if record.Path == "" {
			if record, err = v.Cache.Fetch(ctx, record.URL); err != nil {
				return nil, err
			}
		}

		out, err := v.Cache.Alloc(ctx, "vtt")
		if err != nil {
			return nil, err
		}

		if err := convertSRT(flu.File(record.Path), out); err != nil {
			_ = out.Remove()
			return nil, errors.Wrap(err, "convert subtitles")
		}

		converted, err := media.NewFileRecord(out.String())
		if err != nil {
			return nil, err
		}

		converted.OrigName = record.OrigName
		return converted, pinRecord(ctx, v.Cache, converted)

	default:
		return nil, validationf("invalid subtitle extension %q: expected .srt or .vtt", recordExt(record))
	}
}
