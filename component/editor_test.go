package component_test

import (
	"context"
	"os"
	"testing"
	"time"

	"mediaflow/cache"
	"mediaflow/component"
	"mediaflow/media"
	"mediaflow/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEditor(t *testing.T) *component.Editor {
	t.Helper()
	return &component.Editor{
		Cache:  &cache.Files{Dir: t.TempDir()},
		Config: component.EditorConfig{Format: "png", Concurrency: 2},
	}
}

func TestEditor_preprocess(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	editor := newEditor(t)
	require.Nil(t, editor.AcceptBlobs(ctx, "s1", upload.Layer, 1, []byte("layer-1")))
	require.Nil(t, editor.AcceptBlobs(ctx, "s1", upload.Background, 0, []byte("bg")))
	require.Nil(t, editor.AcceptBlobs(ctx, "s1", upload.Composite, 0, []byte("comp")))

	value, err := editor.Preprocess(ctx, "s1")
	require.Nil(t, err)
	require.NotNil(t, value)

	require.NotNil(t, value.Background)
	data, err := os.ReadFile(value.Background.Path)
	require.Nil(t, err)
	assert.Equal(t, "bg", string(data))

	require.Len(t, value.Layers, 2)
	assert.Nil(t, value.Layers[0])
	require.NotNil(t, value.Layers[1])
	data, err = os.ReadFile(value.Layers[1].Path)
	require.Nil(t, err)
	assert.Equal(t, "layer-1", string(data))

	require.NotNil(t, value.Composite)

	again, err := editor.Preprocess(ctx, "s1")
	require.Nil(t, err)
	assert.Nil(t, again)
}

func TestEditor_preprocessEmptySession(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	value, err := newEditor(t).Preprocess(ctx, "unknown")
	require.Nil(t, err)
	assert.Nil(t, value)
}

func TestEditor_postprocess(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	editor := newEditor(t)
	value, err := editor.Postprocess(ctx,
		media.Bytes("bg"),
		[]media.Value{media.Bytes("l0"), media.Bytes("l1")},
		nil)
	require.Nil(t, err)

	require.NotNil(t, value.Background)
	require.Len(t, value.Layers, 2)
	assert.NotNil(t, value.Layers[0])
	assert.NotNil(t, value.Layers[1])
	assert.Nil(t, value.Composite)

	pinned, err := editor.Cache.Pinned(ctx)
	require.Nil(t, err)
	assert.Len(t, pinned, 3)
}

func TestEditor_postprocessCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	editor := newEditor(t)
	done := make(chan error, 1)
	go func() {
		_, err := editor.Postprocess(ctx, media.Bytes("bg"), nil, nil)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("postprocess did not return")
	}
}
