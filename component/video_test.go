package component_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaflow/cache"
	"mediaflow/component"
	"mediaflow/media"
	"mediaflow/stream"

	"github.com/jfk9w-go/flu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type joinConcatenator struct{}

func (joinConcatenator) Concat(_ context.Context, parts []flu.File, out flu.File) error {
	w, err := out.Writer()
	if err != nil {
		return err
	}

	defer flu.CloseQuietly(w)
	for _, part := range parts {
		data, err := os.ReadFile(part.String())
		if err != nil {
			return err
		}

		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	return nil
}

func newVideo(t *testing.T, config component.MediaConfig) *component.Video {
	t.Helper()

	files := &cache.Files{Dir: t.TempDir()}
	converter := new(copyConverter)
	prober := fixedProber{duration: time.Second}
	return &component.Video{
		Cache:     files,
		Converter: converter,
		Prober:    prober,
		Combiner: &stream.Combiner{
			Cache:        files,
			Converter:    converter,
			Concatenator: joinConcatenator{},
			Prober:       prober,
		},
		Config: config,
	}
}

func TestVideo_postprocessWithSubtitles(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.mp4")
	require.Nil(t, os.WriteFile(clip, []byte("mp4data"), 0644))

	srt := filepath.Join(dir, "subs.srt")
	require.Nil(t, os.WriteFile(srt, []byte("1\n00:00:01,000 --> 00:00:02,500\nhello\n"), 0644))

	video := newVideo(t, component.MediaConfig{})
	value, err := video.Postprocess(ctx, media.File(clip), media.File(srt))
	require.Nil(t, err)

	assert.Equal(t, clip, value.Video.Path)
	require.NotNil(t, value.Subtitle)
	assert.True(t, strings.HasSuffix(value.Subtitle.Path, ".vtt"))

	converted, err := os.ReadFile(value.Subtitle.Path)
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(converted), "WEBVTT\n"))
	assert.Contains(t, string(converted), "00:00:01.000 --> 00:00:02.500")
	assert.NotContains(t, string(converted), ",000")
}

func TestVideo_postprocessVTTPassthrough(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.mp4")
	require.Nil(t, os.WriteFile(clip, []byte("mp4data"), 0644))

	vtt := filepath.Join(dir, "subs.vtt")
	require.Nil(t, os.WriteFile(vtt, []byte("WEBVTT\n"), 0644))

	video := newVideo(t, component.MediaConfig{})
	value, err := video.Postprocess(ctx, media.File(clip), media.File(vtt))
	require.Nil(t, err)
	assert.Equal(t, vtt, value.Subtitle.Path)
}

func TestVideo_postprocessInvalidSubtitle(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.mp4")
	require.Nil(t, os.WriteFile(clip, []byte("mp4data"), 0644))

	txt := filepath.Join(dir, "subs.txt")
	require.Nil(t, os.WriteFile(txt, []byte("hello"), 0644))

	video := newVideo(t, component.MediaConfig{})
	_, err := video.Postprocess(ctx, media.File(clip), media.File(txt))
	assert.True(t, component.IsValidation(err), "%v", err)
}

func TestVideo_combineStream(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	video := newVideo(t, component.MediaConfig{})
	for _, data := range [][]byte{[]byte("seg1"), []byte("seg2")} {
		chunk, placeholder, err := video.StreamOutput(ctx, data, "out-1", false)
		require.Nil(t, err)
		assert.Equal(t, "ts", chunk.Extension)
		assert.True(t, placeholder.IsStream)
	}

	value, err := video.CombineStream(ctx, "out-1", nil, "")
	require.Nil(t, err)
	require.NotNil(t, value.Video)
	assert.Nil(t, value.Subtitle)

	data, err := os.ReadFile(value.Video.Path)
	require.Nil(t, err)
	assert.Equal(t, "seg1seg2", string(data))
	assert.True(t, strings.HasSuffix(value.Video.Path, ".mp4"))
}

func TestVideo_combineStreamFile(t *testing.T) {
	ctx, cancel := getContext()
	defer cancel()

	video := newVideo(t, component.MediaConfig{})
	record, err := video.CombineStreamFile(ctx, "out-1", [][]byte{[]byte("seg")}, "ts")
	require.Nil(t, err)
	assert.True(t, strings.HasSuffix(record.Path, ".ts"))
}
