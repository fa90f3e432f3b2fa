// Package upload buffers partial, out-of-order binary uploads per session
// until the owning component drains them into one structured value.
package upload

import (
	"context"

	"github.com/jfk9w-go/flu/syncf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SlotKind names the part of a multi-part upload a payload belongs to.
type SlotKind string

const (
	Background SlotKind = "background"
	Layer      SlotKind = "layer"
	Composite  SlotKind = "composite"
)

// Buffer holds the parts deposited for one upload session. Layers is sparse:
// a late-arriving index extends the list with nil slots, filled in whenever
// the missing deposits arrive.
type Buffer struct {
	Background []byte
	Layers     [][]byte
	Composite  []byte
}

// Empty reports whether nothing was deposited.
func (b *Buffer) Empty() bool {
	return b == nil || b.Background == nil && len(b.Layers) == 0 && b.Composite == nil
}

// Accumulator is the per-session upload store of one component instance.
// Access is keyed strictly by session id; sessions never observe each
// other's parts.
type Accumulator struct {
	buffers map[string]*Buffer
	mu      syncf.RWMutex
}

func (a *Accumulator) String() string {
	return "upload.accumulator"
}

// Accept deposits one binary part. A later deposit for the same
// (session, kind, index) fully replaces the stored value. Layer deposits
// require an index; the layer list grows to accommodate indices arriving out
// of order.
func (a *Accumulator) Accept(ctx context.Context, sessionID string, kind SlotKind, index int, payload []byte) error {
	ctx, cancel := a.mu.Lock(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	defer cancel()

	if a.buffers == nil {
		a.buffers = make(map[string]*Buffer)
	}

	buffer, ok := a.buffers[sessionID]
	if !ok {
		buffer = new(Buffer)
		a.buffers[sessionID] = buffer
	}

	switch kind {
	case Background:
		buffer.Background = payload
	case Composite:
		buffer.Composite = payload
	case Layer:
		if index < 0 {
			return errors.Errorf("layer deposit requires an index, got %d", index)
		}

		for len(buffer.Layers) <= index {
			buffer.Layers = append(buffer.Layers, nil)
		}

		buffer.Layers[index] = payload
	default:
		return errors.Errorf("unknown slot kind: %s", kind)
	}

	logrus.WithFields(logrus.Fields{
		"session": sessionID,
		"kind":    kind,
		"index":   index,
		"size":    len(payload),
	}).Debugf("%s: accepted part", a)
	return nil
}

// Drain returns and removes everything buffered for a session. A session
// with no prior deposits yields an empty buffer, not an error: that is the
// normal path when a client resubmits a value by reference instead of fresh
// bytes. The id is reusable afterwards and starts from scratch.
func (a *Accumulator) Drain(ctx context.Context, sessionID string) (*Buffer, error) {
	ctx, cancel := a.mu.Lock(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	defer cancel()

	buffer, ok := a.buffers[sessionID]
	if !ok {
		return new(Buffer), nil
	}

	delete(a.buffers, sessionID)
	return buffer, nil
}
