package transcode

import (
	"context"
	"net/http"

	aconvert "github.com/jfk9w-go/aconvert-api"
	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/httpf"
	"github.com/pkg/errors"
)

type aconvertContext struct {
	config aconvert.Config
}

func (c aconvertContext) AconvertConfig() aconvert.Config {
	return c.config
}

// Aconvert converts media through the aconvert.com API. It is the
// conversion fallback for runtimes where spawning encoder processes is
// unsupported; it cannot concatenate or probe.
type Aconvert struct {
	HTTP   httpf.Client
	client *aconvert.Client[aconvertContext]
}

// NewAconvert starts an aconvert.com client pool.
func NewAconvert(ctx context.Context, config aconvert.Config) (*Aconvert, error) {
	client := new(aconvert.Client[aconvertContext])
	if err := client.Standalone(ctx, config); err != nil {
		return nil, errors.Wrap(err, "init aconvert client")
	}

	return &Aconvert{client: client}, nil
}

func (a *Aconvert) String() string {
	return "transcode.aconvert"
}

func (a *Aconvert) Convert(ctx context.Context, in, out flu.File, opts Options) error {
	if opts.Format == "" {
		return errors.New("target format is required")
	}

	resp, err := a.client.Convert(ctx, in, make(aconvert.Options).TargetFormat(opts.Format))
	if err != nil {
		return errors.Wrap(err, "convert")
	}

	if err := httpf.GET(resp.URL()).
		Exchange(ctx, a.http()).
		CheckStatus(http.StatusOK).
		CopyBody(out).
		Error(); err != nil {
		_ = out.Remove()
		return errors.Wrap(err, "download result")
	}

	return nil
}

func (a *Aconvert) http() httpf.Client {
	if a.HTTP != nil {
		return a.HTTP
	}

	return http.DefaultClient
}
