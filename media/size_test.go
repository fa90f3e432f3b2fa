package media_test

import (
	"testing"

	"mediaflow/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSize_unmarshalYAML(t *testing.T) {
	for input, expected := range map[string]media.Size{
		"500": 500,
		"10k": 10 * media.KB,
		"50m": 50 * media.MB,
		"2g":  2 * media.GB,
		"1t":  media.TB,
	} {
		var size media.Size
		require.Nil(t, yaml.Unmarshal([]byte(input), &size), input)
		assert.Equal(t, expected, size, input)
	}

	var size media.Size
	assert.NotNil(t, yaml.Unmarshal([]byte("10x"), &size))
	assert.NotNil(t, yaml.Unmarshal([]byte("-5"), &size))
}

func TestSize_string(t *testing.T) {
	assert.Equal(t, "500", media.Size(500).String())
	assert.Equal(t, "10k", (10 * media.KB).String())
	assert.Equal(t, "2g", (2 * media.GB).String())
}

func TestMIMETypes(t *testing.T) {
	assert.Equal(t, "video/mp2t", media.MIMETypeByExtension("ts"))
	assert.Equal(t, "audio/aac", media.MIMETypeByExtension(".adts"))
	assert.Equal(t, "", media.MIMETypeByExtension(""))

	assert.Equal(t, "ts", media.ExtensionByMIMEType("video/mp2t"))
	assert.Equal(t, "wav", media.ExtensionByMIMEType("audio/x-wav"))
}

func TestURLHelpers(t *testing.T) {
	assert.Equal(t, "clip.mp4", media.URLFileName("https://example.com/a/clip.mp4?sig=x#t=10"))
	assert.Equal(t, "mp4", media.URLExtension("https://example.com/a/clip.mp4?sig=x"))
	assert.Equal(t, "", media.URLExtension("https://example.com/download"))
}
