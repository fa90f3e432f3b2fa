// Package app wires the media pipeline components together from layered
// yaml configuration.
package app

import (
	"os"
	"strconv"
	"strings"

	"mediaflow/cache"
	"mediaflow/component"
	"mediaflow/transcode"
	gormutil "mediaflow/util/gorm"

	aconvert "github.com/jfk9w-go/aconvert-api"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config is the application configuration.
type Config struct {
	LogLevel string           `yaml:"logLevel,omitempty" doc:"logrus log level." default:"info"`
	Database gormutil.Config  `yaml:"database,omitempty" doc:"Optional postgres connection for the shared dedup index."`
	Cache    cache.Config     `yaml:"cache" doc:"Media cache settings."`
	FFmpeg   transcode.FFmpeg `yaml:"ffmpeg,omitempty" doc:"Local encoder settings."`
	Aconvert *aconvert.Config `yaml:"aconvert,omitempty" doc:"Remote conversion fallback for runtimes without subprocess support."`

	Audio  component.MediaConfig  `yaml:"audio,omitempty" doc:"Audio component settings."`
	Video  component.MediaConfig  `yaml:"video,omitempty" doc:"Video component settings."`
	Editor component.EditorConfig `yaml:"editor,omitempty" doc:"Image editor component settings."`
}

// CollectConfig merges yaml inputs in order (later wins) with
// environment variables prefixed by environPrefix on top, and returns the
// merged yaml document. Values in the inputs are env-expanded first.
func CollectConfig(environPrefix string, inputs ...flu.Input) (*flu.ByteBuffer, error) {
	global := make(map[string]interface{})
	for _, input := range inputs {
		buf := new(flu.ByteBuffer)
		if _, err := flu.Copy(input, buf); err != nil {
			return nil, errors.Wrapf(err, "read config %s", input)
		}

		config := make(map[string]interface{})
		data := flu.Bytes(os.ExpandEnv(buf.Unmask().String()))
		if err := flu.DecodeFrom(data, flu.YAML(&config)); err != nil {
			return nil, errors.Wrapf(err, "read expanded config %s", input)
		}

		global = merge(global, config)
	}

	global = merge(global, environ(environPrefix))
	buf := new(flu.ByteBuffer)
	if err := flu.EncodeTo(flu.YAML(global), buf); err != nil {
		return nil, errors.Wrap(err, "encode global config")
	}

	return buf, nil
}

// SetupLogging applies the configured logrus level.
func SetupLogging(config Config) {
	level := logrus.InfoLevel
	if config.LogLevel != "" {
		parsed, err := logrus.ParseLevel(config.LogLevel)
		if err != nil {
			logrus.Warnf("unknown log level %q, using info", config.LogLevel)
		} else {
			level = parsed
		}
	}

	logrus.SetLevel(level)
}

// environ builds a nested config map out of MEDIAFLOW_SECTION_KEY=value
// style environment variables.
func environ(prefix string) map[string]interface{} {
	m := make(map[string]interface{})
	for _, line := range os.Environ() {
		if !strings.HasPrefix(line, prefix) {
			continue
		}

		line = line[len(prefix):]
		equals := strings.Index(line, "=")
		key, value := line[:equals], line[equals+1:]
		keyTokens := strings.Split(key, "_")
		keyTokensLastIdx := len(keyTokens) - 1
		entry := m
		for i, keyToken := range keyTokens {
			if keyToken == "" {
				break
			}

			keyToken = strings.ToLower(keyToken)
			if i == keyTokensLastIdx {
				if ev, ok := entry[keyToken]; ok {
					if _, ok := ev.(map[string]interface{}); ok {
						logrus.Warnf("discarding env var %s due to type incompatibility", key)
						continue
					}
				}

				entry[keyToken] = parseScalar(value)
			} else {
				var mev map[string]interface{}
				if ev, ok := entry[keyToken]; ok {
					if mev, ok = ev.(map[string]interface{}); !ok {
						logrus.Warnf("overriding parent as object for env var %s", key)
						mev = make(map[string]interface{})
						entry[keyToken] = mev
					}
				} else {
					mev = make(map[string]interface{})
					entry[keyToken] = mev
				}

				entry = mev
			}
		}
	}

	return m
}

func parseScalar(value string) interface{} {
	if v, err := strconv.ParseInt(value, 10, 64); err == nil {
		return v
	}

	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	}

	if v, err := strconv.ParseBool(value); err == nil {
		return v
	}

	return value
}

func merge(a, b map[string]interface{}) map[string]interface{} {
	for k, v := range b {
		if av, ok := a[k]; !ok {
			a[k] = v
			continue
		} else if mav, ok := av.(map[string]interface{}); ok {
			if mv, ok := v.(map[string]interface{}); ok {
				a[k] = merge(mav, mv)
				continue
			}
		} else if _, ok := v.(map[string]interface{}); !ok {
			a[k] = v
			continue
		}

		logrus.Fatalf("configuration keys %s must have the same type", k)
	}

	return a
}
