// Package component implements the media-facing component backends: value
// normalization for audio and video, progressive stream delivery with final
// reassembly, and multi-part image editor uploads.
package component

import (
	"fmt"
	"time"

	"github.com/jfk9w-go/flu"
)

// ValidationError is a non-fatal, user-facing rejection of an input value.
// Callers display the message to the end user instead of failing the
// session.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

func validationf(format string, args ...any) ValidationError {
	return ValidationError(fmt.Sprintf(format, args...))
}

// IsValidation reports whether err is user-facing.
func IsValidation(err error) bool {
	_, ok := err.(ValidationError)
	return ok
}

// MediaConfig is the per-component media section of the embedding
// application's configuration.
type MediaConfig struct {
	// Format is the target container. Values are converted into it on the
	// way out and uploads are converted from foreign containers on the way
	// in. Empty keeps whatever container the value came in.
	Format string `yaml:"format,omitempty" doc:"Target container format, e.g. wav or mp4."`
	// MinLength and MaxLength bound upload durations. Zero disables the
	// corresponding bound. Enforced on input only.
	MinLength flu.Duration `yaml:"minLength,omitempty" doc:"Minimum accepted upload duration."`
	MaxLength flu.Duration `yaml:"maxLength,omitempty" doc:"Maximum accepted upload duration."`
}

// checkDuration enforces the configured bounds. Output values are never
// checked, only uploads.
func (c MediaConfig) checkDuration(duration time.Duration) error {
	if min := c.MinLength.Value; min > 0 && duration < min {
		return validationf("duration %s is shorter than the minimum %s", duration, min)
	}

	if max := c.MaxLength.Value; max > 0 && duration > max {
		return validationf("duration %s is longer than the maximum %s", duration, max)
	}

	return nil
}
