package app_test

import (
	"testing"
	"time"

	"mediaflow/app"

	"github.com/jfk9w-go/flu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectConfig(t *testing.T) {
	t.Setenv("MFTEST_CACHE_DIR", "/tmp/mediaflow-cache")
	t.Setenv("MFTEST_EDITOR_CONCURRENCY", "8")

	base := flu.Bytes("logLevel: debug\ncache:\n  ttl: 10m\n  maxSize: 50m\naudio:\n  format: mp3\n")
	override := flu.Bytes("audio:\n  format: wav\nvideo:\n  maxLength: 30s\n")

	buf, err := app.CollectConfig("MFTEST_", base, override)
	require.Nil(t, err)

	var config app.Config
	require.Nil(t, flu.DecodeFrom(buf.Bytes(), flu.YAML(&config)))

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 10*time.Minute, config.Cache.TTL.Value)
	assert.EqualValues(t, 50<<20, config.Cache.MaxSize)
	assert.Equal(t, "wav", config.Audio.Format)
	assert.Equal(t, 30*time.Second, config.Video.MaxLength.Value)
	assert.Equal(t, "/tmp/mediaflow-cache", config.Cache.Dir)
	assert.Equal(t, 8, config.Editor.Concurrency)
}
