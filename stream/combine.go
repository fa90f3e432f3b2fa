package stream

import (
	"context"

	"mediaflow/cache"
	"mediaflow/media"
	"mediaflow/transcode"

	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/me3x"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Combiner reassembles a finite ordered chunk sequence into one canonical
// container file in the cache. Chunks are processed strictly in the order
// supplied; nothing is reordered, deduplicated or dropped. On any failure no
// partial file survives in the cache.
type Combiner struct {
	Cache        *cache.Files
	Converter    transcode.Converter
	Concatenator transcode.Concatenator
	Prober       transcode.Prober
	// Metrics counts reassemblies. Defaults to a dummy registry.
	Metrics me3x.Registry
}

func (c *Combiner) String() string {
	return "stream.combiner"
}

// CombineAudio byte-concatenates same-codec ADTS fragments and, when the
// desired format differs, converts the result in a second pass. ADTS frames
// are self-delimiting, so byte-level concatenation yields a playable
// elementary stream without a demuxer pass.
func (c *Combiner) CombineAudio(ctx context.Context, id string, chunks [][]byte, desiredFormat string) (*media.Record, error) {
	if len(chunks) == 0 {
		return nil, errors.Errorf("session %s has no chunks", id)
	}

	raw, err := c.Cache.Alloc(ctx, "aac")
	if err != nil {
		return nil, err
	}

	if err := writeJoined(chunks, raw); err != nil {
		_ = raw.Remove()
		return nil, errors.Wrap(err, "write joined chunks")
	}

	out := raw
	if desiredFormat != "" && desiredFormat != "aac" && desiredFormat != "adts" {
		out, err = c.convert(ctx, raw, transcode.Options{Format: desiredFormat})
		if err != nil {
			return nil, err
		}
	}

	return c.seal(ctx, id, out, len(chunks))
}

// CombineVideo writes each chunk as an independent transport-stream segment
// and joins them with a demuxer-level concat. Byte concatenation is not
// enough here: segments carry their own timestamps and a naive join does not
// produce a continuously playable file.
func (c *Combiner) CombineVideo(ctx context.Context, id string, chunks [][]byte, desiredFormat string) (*media.Record, error) {
	if len(chunks) == 0 {
		return nil, errors.Errorf("session %s has no chunks", id)
	}

	if desiredFormat == "" {
		desiredFormat = "mp4"
	}

	parts := make([]flu.File, len(chunks))
	defer func() {
		for _, part := range parts {
			if part != "" {
				_ = part.Remove()
			}
		}
	}()

	for i, data := range chunks {
		part, err := c.Cache.Alloc(ctx, "ts")
		if err != nil {
			return nil, err
		}

		parts[i] = part
		if _, err := flu.Copy(flu.Bytes(data), part); err != nil {
			return nil, errors.Wrapf(err, "write segment %d", i)
		}
	}

	out, err := c.Cache.Alloc(ctx, desiredFormat)
	if err != nil {
		return nil, err
	}

	if err := c.Concatenator.Concat(ctx, parts, out); err != nil {
		_ = out.Remove()
		return nil, errors.Wrap(err, "concat segments")
	}

	return c.seal(ctx, id, out, len(chunks))
}

func (c *Combiner) convert(ctx context.Context, in flu.File, opts transcode.Options) (flu.File, error) {
	out, err := c.Cache.Alloc(ctx, opts.Format)
	if err != nil {
		return "", err
	}

	if err := c.Converter.Convert(ctx, in, out, opts); err != nil {
		_ = out.Remove()
		return "", errors.Wrapf(err, "convert to %s", opts)
	}

	_ = in.Remove()
	return out, nil
}

// seal pins the reassembled file and produces its record. The pin protects
// the finished artifact from cache eviction sweeps.
func (c *Combiner) seal(ctx context.Context, id string, out flu.File, chunks int) (*media.Record, error) {
	record, err := media.NewFileRecord(out.String())
	if err != nil {
		return nil, err
	}

	if err := c.Cache.Pin(ctx, record.Path); err != nil {
		return nil, err
	}

	c.metrics().Counter("combine_ok", record.Labels()).Inc()
	logrus.WithFields(record.Fields()).
		WithFields(logrus.Fields{"session": id, "chunks": chunks}).
		Debugf("%s: combined", c)
	return record, nil
}

// Repackage turns one raw fragment into a progressively playable deliverable.
// Audio fragments are rewrapped as an ADTS elementary stream with the
// duration recomputed from the decoded fragment; video fragments are already
// independently playable transport-stream units and pass through with the
// duration probed from the container.
func (c *Combiner) Repackage(ctx context.Context, data []byte, audio bool) (*media.Chunk, error) {
	in, err := c.Cache.Alloc(ctx, "")
	if err != nil {
		return nil, err
	}

	defer func() { _ = in.Remove() }()
	if _, err := flu.Copy(flu.Bytes(data), in); err != nil {
		return nil, errors.Wrap(err, "write fragment")
	}

	if !audio {
		duration, err := c.Prober.Duration(ctx, in)
		if err != nil {
			return nil, errors.Wrap(err, "probe fragment")
		}

		return &media.Chunk{Data: data, Duration: duration, Extension: "ts"}, nil
	}

	out, err := c.Cache.Alloc(ctx, "aac")
	if err != nil {
		return nil, err
	}

	defer func() { _ = out.Remove() }()
	opts := transcode.Options{Format: "adts", AudioCodec: "aac"}
	if err := c.Converter.Convert(ctx, in, out, opts); err != nil {
		return nil, errors.Wrapf(err, "rewrap to %s", opts)
	}

	duration, err := c.Prober.Duration(ctx, out)
	if err != nil {
		return nil, errors.Wrap(err, "probe fragment")
	}

	buf := new(flu.ByteBuffer)
	if _, err := flu.Copy(out, buf); err != nil {
		return nil, errors.Wrap(err, "read fragment")
	}

	return &media.Chunk{Data: []byte(buf.Bytes()), Duration: duration, Extension: "aac"}, nil
}

func (c *Combiner) metrics() me3x.Registry {
	if c.Metrics != nil {
		return c.Metrics
	}

	return me3x.DummyRegistry{Log: false}
}

func writeJoined(chunks [][]byte, out flu.File) error {
	w, err := out.Writer()
	if err != nil {
		return err
	}

	defer flu.CloseQuietly(w)
	for _, data := range chunks {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	return nil
}
