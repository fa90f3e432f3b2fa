package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// DefaultTimeout bounds a single encoder invocation.
const DefaultTimeout = 5 * time.Minute

const diagnosticLimit = 1 << 10

// FFmpeg converts, concatenates and probes media via local ffmpeg/ffprobe
// binaries. The zero value looks both up in $PATH.
type FFmpeg struct {
	// Binary is the ffmpeg executable. Defaults to "ffmpeg".
	Binary string `yaml:"binary,omitempty" doc:"ffmpeg executable path." default:"ffmpeg"`
	// ProbeBinary is the ffprobe executable. Defaults to "ffprobe".
	ProbeBinary string `yaml:"probeBinary,omitempty" doc:"ffprobe executable path." default:"ffprobe"`
	// Timeout bounds each invocation. Defaults to DefaultTimeout.
	Timeout flu.Duration `yaml:"timeout,omitempty" doc:"Timeout for a single encoder invocation." default:"5m"`
}

func (f FFmpeg) String() string {
	return "transcode.ffmpeg"
}

func (f FFmpeg) binary() string {
	if f.Binary != "" {
		return f.Binary
	}

	return "ffmpeg"
}

func (f FFmpeg) probeBinary() string {
	if f.ProbeBinary != "" {
		return f.ProbeBinary
	}

	return "ffprobe"
}

func (f FFmpeg) timeout() time.Duration {
	if f.Timeout.Value > 0 {
		return f.Timeout.Value
	}

	return DefaultTimeout
}

// Check fails fast with ErrEnvironmentUnsupported when the encoder binaries
// cannot be spawned in this runtime.
func (f FFmpeg) Check() error {
	for _, binary := range []string{f.binary(), f.probeBinary()} {
		if _, err := exec.LookPath(binary); err != nil {
			return errors.Wrapf(ErrEnvironmentUnsupported, "%s not available", binary)
		}
	}

	return nil
}

func (f FFmpeg) Convert(ctx context.Context, in, out flu.File, opts Options) error {
	if opts.Format == "" {
		return errors.New("target format is required")
	}

	kwargs := ffmpeg.KwArgs{"f": opts.Format}
	switch {
	case opts.Copy:
		kwargs["c"] = "copy"
	default:
		if opts.AudioCodec != "" {
			kwargs["c:a"] = opts.AudioCodec
		}
		if opts.VideoCodec != "" {
			kwargs["c:v"] = opts.VideoCodec
		}
	}

	args := ffmpeg.Input(in.String()).
		Output(out.String(), kwargs).
		OverWriteOutput().
		GetArgs()

	return f.run(ctx, out, args)
}

// Concat combines the parts via the concat demuxer with stream copy.
// Byte-level concatenation is deliberately not used: each part is an
// independently encoded segment and only a demuxer-level concat yields a
// continuously playable file.
func (f FFmpeg) Concat(ctx context.Context, parts []flu.File, out flu.File) error {
	if len(parts) == 0 {
		return errors.New("no parts to concatenate")
	}

	list := flu.File(out.String() + ".list")
	if err := writeConcatList(parts, list); err != nil {
		return errors.Wrap(err, "write concat list")
	}

	defer func() { _ = os.Remove(list.String()) }()

	args := ffmpeg.Input(list.String(), ffmpeg.KwArgs{"f": "concat", "safe": "0"}).
		Output(out.String(), ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().
		GetArgs()

	return f.run(ctx, out, args)
}

// Duration reads the container duration via ffprobe.
func (f FFmpeg) Duration(ctx context.Context, in flu.File) (time.Duration, error) {
	if err := f.Check(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, f.probeBinary(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		in.String())

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return 0, &ProcessError{Args: cmd.Args, Diagnostic: diagnostic(stderr), Err: err}
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	if err := json.NewDecoder(stdout).Decode(&probe); err != nil {
		return 0, errors.Wrap(err, "decode probe output")
	}

	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration: %s", probe.Format.Duration)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

func (f FFmpeg) run(ctx context.Context, out flu.File, args []string) error {
	if err := f.Check(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.binary(), args...)
	stderr := new(bytes.Buffer)
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		_ = out.Remove()
		return &ProcessError{Args: cmd.Args, Diagnostic: diagnostic(stderr), Err: err}
	}

	logrus.WithFields(logrus.Fields{"out": out, "elapsed": time.Since(start)}).
		Debugf("%s ok", f)
	return nil
}

func writeConcatList(parts []flu.File, list flu.File) error {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, part := range parts {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(part.String(), "'", `'\''`))
		b.WriteString("'\n")
	}

	return os.WriteFile(list.String(), []byte(b.String()), 0644)
}

func diagnostic(stderr *bytes.Buffer) string {
	text := strings.TrimSpace(stderr.String())
	if len(text) > diagnosticLimit {
		text = text[len(text)-diagnosticLimit:]
	}

	return text
}
