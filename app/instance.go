package app

import (
	"context"

	"mediaflow/cache"
	"mediaflow/component"
	"mediaflow/media"
	"mediaflow/stream"
	"mediaflow/transcode"
	gormutil "mediaflow/util/gorm"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Instance is a fully wired media pipeline: one cache shared by all
// components, a transcoder picked for the runtime and one backend per
// component kind.
type Instance struct {
	Audio  *component.Audio
	Video  *component.Video
	Editor *component.Editor

	files *cache.Files
	db    *gorm.DB
}

// Create wires an Instance from config. A local ffmpeg is preferred; when
// the runtime cannot spawn encoder processes and an aconvert fallback is
// configured, conversion goes through it (concatenation and probing stay
// unavailable in that mode).
func Create(ctx context.Context, config Config) (*Instance, error) {
	SetupLogging(config)

	app := new(Instance)
	index, err := app.createIndex(ctx, config)
	if err != nil {
		return nil, err
	}

	app.files = &cache.Files{
		Dir:        config.Cache.Dir,
		TTL:        config.Cache.TTL.Value,
		SizeBounds: [2]media.Size{config.Cache.MinSize, config.Cache.MaxSize},
		Index:      index,
	}

	converter, prober, err := app.createTranscoder(ctx, config)
	if err != nil {
		return nil, err
	}

	combiner := func() *stream.Combiner {
		return &stream.Combiner{
			Cache:        app.files,
			Converter:    converter,
			Concatenator: config.FFmpeg,
			Prober:       prober,
		}
	}

	app.Audio = &component.Audio{
		Cache:     app.files,
		Converter: converter,
		Prober:    prober,
		Combiner:  combiner(),
		Config:    config.Audio,
	}

	app.Video = &component.Video{
		Cache:     app.files,
		Converter: converter,
		Prober:    prober,
		Combiner:  combiner(),
		Config:    config.Video,
	}

	app.Editor = &component.Editor{
		Cache:  app.files,
		Config: config.Editor,
	}

	return app, nil
}

// Pinned exposes the paths an external cache eviction sweep must keep.
func (app *Instance) Pinned(ctx context.Context) ([]string, error) {
	return app.files.Pinned(ctx)
}

func (app *Instance) Close() error {
	if app.db != nil {
		return gormutil.Close(app.db)
	}

	return nil
}

func (app *Instance) createIndex(ctx context.Context, config Config) (cache.Index, error) {
	if config.Database.DSN == "" {
		return new(cache.MemoryIndex), nil
	}

	db, err := gormutil.NewPostgres(config.Database.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	app.db = db
	index := (*cache.SQLIndex)(db)
	if err := index.Init(ctx); err != nil {
		return nil, errors.Wrap(err, "init dedup index")
	}

	return index, nil
}

func (app *Instance) createTranscoder(ctx context.Context, config Config) (transcode.Converter, transcode.Prober, error) {
	if err := config.FFmpeg.Check(); err == nil {
		return config.FFmpeg, config.FFmpeg, nil
	} else if config.Aconvert == nil {
		return nil, nil, errors.Wrap(err, "no usable transcoder")
	}

	logrus.Warnf("local encoder unavailable, falling back to remote conversion")
	converter, err := transcode.NewAconvert(ctx, *config.Aconvert)
	if err != nil {
		return nil, nil, err
	}

	return converter, config.FFmpeg, nil
}
