package component_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaflow/cache"
	"mediaflow/component"
	"mediaflow/media"
	"mediaflow/stream"
	"mediaflow/transcode"

	"github.com/jfk9w-go/flu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Minute)
}

type copyConverter struct {
	calls int
}

func (c *copyConverter) Convert(_ context.Context, in, out flu.File, _ transcode.Options) error {
	c.calls++
	_, err := flu.Copy(in, out)
	return err
}

type fixedProber struct {
	duration time.Duration
}

func (p fixedProber) Duration(context.Context, flu.File) (time.Duration, error) {
	return p.duration, nil
}

func newAudio(t *testing.T, config component.MediaConfig, prober transcode.Prober) (*component.Audio, *copyConverter) {
	t.Helper()

	files := &cache.Files{Dir: t.TempDir()}
	converter := new(copyConverter)
	return &component.Audio{
		Cache:     files,
		Converter: converter,
		Prober:    prober,
		Combiner: &stream.Combiner{
			Cache:     files,
			Converter: converter,
			Prober:    prober,
		},
		Config: config,
	}, converter
}

func TestAudio_postprocessPCM(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	audio, converter := newAudio(t, component.MediaConfig{}, fixedProber{})
	record, err := audio.Postprocess(ctx, media.PCM{
		Rate:     8000,
		Channels: 1,
		Samples:  make([]int16, 800),
	})
	require.Nil(t, err)

	assert.True(t, strings.HasSuffix(record.Path, ".wav"))
	assert.Equal(t, 0, converter.calls)

	pinned, err := audio.Cache.Pinned(ctx)
	require.Nil(t, err)
	assert.Contains(t, pinned, record.Path)
}

func TestAudio_postprocessConvertsForeignContainer(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	path := filepath.Join(t.TempDir(), "sound.mp3")
	require.Nil(t, os.WriteFile(path, []byte("mp3data"), 0644))

	audio, converter := newAudio(t, component.MediaConfig{Format: "wav"}, fixedProber{})
	record, err := audio.Postprocess(ctx, media.File(path))
	require.Nil(t, err)

	assert.Equal(t, 1, converter.calls)
	assert.True(t, strings.HasSuffix(record.Path, ".wav"))
	assert.Equal(t, "sound.mp3", record.OrigName)
}

func TestAudio_postprocessConvertsRemoteForeignContainer(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp3data"))
	}))

	defer server.Close()

	audio, converter := newAudio(t, component.MediaConfig{Format: "wav"}, fixedProber{})
	record, err := audio.Postprocess(ctx, media.URL(server.URL+"/sound.mp3"))
	require.Nil(t, err)

	assert.Equal(t, 1, converter.calls)
	assert.True(t, strings.HasSuffix(record.Path, ".wav"))
	assert.Equal(t, "sound.mp3", record.OrigName)

	matching, err := audio.Postprocess(ctx, media.URL(server.URL+"/sound.wav"))
	require.Nil(t, err)

	assert.Equal(t, 1, converter.calls)
	assert.Empty(t, matching.Path)
	assert.Equal(t, server.URL+"/sound.wav", matching.URL)
}

func TestAudio_preprocessDurationBounds(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	config := component.MediaConfig{
		MinLength: flu.Duration{Value: 2 * time.Second},
		MaxLength: flu.Duration{Value: 10 * time.Second},
	}

	path := filepath.Join(t.TempDir(), "upload.wav")
	require.Nil(t, os.WriteFile(path, []byte("wavdata"), 0644))
	record, err := media.NewFileRecord(path)
	require.Nil(t, err)

	for _, test := range []struct {
		duration time.Duration
		valid    bool
	}{
		{time.Second, false},
		{5 * time.Second, true},
		{11 * time.Second, false},
	} {
		audio, _ := newAudio(t, config, fixedProber{duration: test.duration})
		local, err := audio.Preprocess(ctx, record)
		if test.valid {
			require.Nil(t, err)
			assert.Equal(t, record.Path, local)
			continue
		}

		assert.True(t, component.IsValidation(err), "duration %s: %v", test.duration, err)
	}
}

func TestAudio_streamLifecycle(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	audio, _ := newAudio(t, component.MediaConfig{}, fixedProber{duration: time.Second})

	for i, data := range [][]byte{[]byte("AA"), []byte("BB")} {
		chunk, placeholder, err := audio.StreamOutput(ctx, data, "out-1", i == 0)
		require.Nil(t, err)
		assert.Equal(t, data, chunk.Data)
		assert.Equal(t, time.Second, chunk.Duration)
		assert.True(t, placeholder.IsStream)
		assert.Equal(t, "out-1", placeholder.Path)
	}

	chunk, placeholder, err := audio.StreamOutput(ctx, nil, "out-1", false)
	require.Nil(t, err)
	assert.Nil(t, chunk)
	assert.True(t, placeholder.IsStream)

	record, err := audio.CombineStream(ctx, "out-1", nil, "aac")
	require.Nil(t, err)

	data, err := os.ReadFile(record.Path)
	require.Nil(t, err)
	assert.Equal(t, "AABB", string(data))
}

func TestAudio_abandon(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	audio, _ := newAudio(t, component.MediaConfig{}, fixedProber{duration: time.Second})
	_, _, err := audio.StreamOutput(ctx, []byte("AA"), "out-1", true)
	require.Nil(t, err)

	require.Nil(t, audio.Abandon(ctx, "out-1"))
	_, err = audio.CombineStream(ctx, "out-1", nil, "aac")
	assert.NotNil(t, err)
}
