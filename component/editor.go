package component

import (
	"context"

	"mediaflow/cache"
	"mediaflow/media"
	"mediaflow/upload"

	"github.com/jfk9w-go/flu/syncf"
	"github.com/pkg/errors"
)

// EditorConfig is the image editor section of the embedding application's
// configuration.
type EditorConfig struct {
	Format      string `yaml:"format,omitempty" doc:"Image format for materialized parts." default:"png"`
	Concurrency int    `yaml:"concurrency,omitempty" doc:"Worker count for batch image materialization." default:"4"`
}

func (c EditorConfig) format() string {
	if c.Format != "" {
		return c.Format
	}

	return "png"
}

func (c EditorConfig) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}

	return 4
}

// EditorValue is the structured image editor value: an optional background,
// a sparse ordered layer list and an optional composite.
type EditorValue struct {
	Background *media.Record   `json:"background,omitempty"`
	Layers     []*media.Record `json:"layers,omitempty"`
	Composite  *media.Record   `json:"composite,omitempty"`
}

// Editor is the image editor component backend. Edits arrive as separate
// uploads correlated by an opaque session id and are reassembled on
// Preprocess.
type Editor struct {
	Cache  *cache.Files
	Config EditorConfig

	uploads upload.Accumulator
}

func (e *Editor) String() string {
	return "component.editor"
}

func (e *Editor) AcceptBlobs(ctx context.Context, sessionID string, kind upload.SlotKind, index int, payload []byte) error {
	return e.uploads.Accept(ctx, sessionID, kind, index, payload)
}

// Preprocess drains the session buffer and materializes every deposited
// part. A session with no deposits yields nil, which callers treat as "value
// passed by reference".
func (e *Editor) Preprocess(ctx context.Context, sessionID string) (*EditorValue, error) {
	buffer, err := e.uploads.Drain(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if buffer.Empty() {
		return nil, nil
	}

	parts := make([]media.Value, 0, len(buffer.Layers)+2)
	parts = append(parts, blobValue(buffer.Background))
	for _, layer := range buffer.Layers {
		parts = append(parts, blobValue(layer))
	}

	parts = append(parts, blobValue(buffer.Composite))
	records, err := e.materializeAll(ctx, parts)
	if err != nil {
		return nil, err
	}

	return &EditorValue{
		Background: records[0],
		Layers:     records[1 : len(records)-1],
		Composite:  records[len(records)-1],
	}, nil
}

func (e *Editor) Postprocess(ctx context.Context, background media.Value, layers []media.Value, composite media.Value) (*EditorValue, error) {
	parts := make([]media.Value, 0, len(layers)+2)
	parts = append(parts, background)
	parts = append(parts, layers...)
	parts = append(parts, composite)

	records, err := e.materializeAll(ctx, parts)
	if err != nil {
		return nil, err
	}

	return &EditorValue{
		Background: records[0],
		Layers:     records[1 : len(records)-1],
		Composite:  records[len(records)-1],
	}, nil
}

// materializeAll encodes the non-nil parts concurrently, preserving slot
// positions. The first failure wins; already materialized files stay in the
// cache and are collected by the TTL sweep.
func (e *Editor) materializeAll(ctx context.Context, values []media.Value) ([]*media.Record, error) {
	records := make([]*media.Record, len(values))
	errs := make([]error, len(values))
	sem := make(chan struct{}, e.Config.concurrency())

	var work syncf.WaitGroup
	for i, value := range values {
		if value == nil {
			continue
		}

		i, value := i, value
		sem <- struct{}{}
		ctx, cancel := work.Spawn(ctx)
		if ctx.Err() != nil {
			cancel()
			<-sem
			errs[i] = ctx.Err()
			break
		}

		go func() {
			defer cancel()
			defer func() { <-sem }()
			records[i], errs[i] = e.materialize(ctx, value)
		}()
	}

	work.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "materialize part %d", i)
		}
	}

	return records, nil
}

func (e *Editor) materialize(ctx context.Context, value media.Value) (*media.Record, error) {
	record, err := e.Cache.Materialize(ctx, value, e.Config.format())
	if err != nil {
		return nil, err
	}

	return record, pinRecord(ctx, e.Cache, record)
}

func blobValue(data []byte) media.Value {
	if data == nil {
		return nil
	}

	return media.Bytes(data)
}
