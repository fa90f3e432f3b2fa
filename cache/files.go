// Package cache materializes media values into a component-private cache
// directory and tracks which paths must survive external eviction sweeps.
package cache

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mediaflow/media"

	"github.com/gofrs/uuid"
	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/backoff"
	"github.com/jfk9w-go/flu/httpf"
	"github.com/jfk9w-go/flu/me3x"
	"github.com/jfk9w-go/flu/syncf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config is the cache section of the embedding application's configuration.
type Config struct {
	Dir     string       `yaml:"dir,omitempty" doc:"Cache directory. Created if missing."`
	TTL     flu.Duration `yaml:"ttl,omitempty" doc:"How long unpinned files are kept before the allocation sweep removes them." default:"15m"`
	MinSize media.Size   `yaml:"minSize,omitempty" doc:"Minimum accepted payload size. Zero disables the check." pattern:"^(\\d+)([kmgt])?$"`
	MaxSize media.Size   `yaml:"maxSize,omitempty" doc:"Maximum accepted payload size. Zero disables the check." pattern:"^(\\d+)([kmgt])?$"`
}

// Files is a cache directory with uuid-named allocations, an optional
// exact-content dedup index and a pin set. Pinned paths survive the TTL
// sweep; everything else is removed lazily on allocation. Files written by
// other owners are never touched.
type Files struct {
	Clock      syncf.Clock
	Dir        string
	TTL        time.Duration
	SizeBounds [2]media.Size
	Index      Index
	HTTP       httpf.Client
	Metrics    me3x.Registry
	Retries    int

	files map[flu.File]time.Time
	pins  map[string]bool
	once  sync.Once
	mu    syncf.RWMutex
}

func (fs *Files) String() string {
	return "media-cache"
}

func (fs *Files) init() {
	fs.once.Do(func() {
		fs.files = make(map[flu.File]time.Time)
		fs.pins = make(map[string]bool)
		if fs.Clock == nil {
			fs.Clock = syncf.DefaultClock
		}
		if fs.Metrics == nil {
			fs.Metrics = me3x.DummyRegistry{Log: false}
		}
		// Pins are keyed by absolute record paths, so allocations must be too.
		if dir, err := filepath.Abs(fs.Dir); err == nil {
			fs.Dir = dir
		}
		if err := os.MkdirAll(fs.Dir, 0755); err != nil {
			logrus.WithField("dir", fs.Dir).Warnf("%s: create dir: %s", fs, err)
		}
	})
}

// Alloc reserves a fresh file in the cache directory and sweeps expired
// unpinned allocations.
func (fs *Files) Alloc(ctx context.Context, ext string) (flu.File, error) {
	fs.init()
	ctx, cancel := fs.mu.Lock(ctx)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	defer cancel()

	now := fs.Clock.Now()
	if fs.TTL > 0 {
		for file, createdAt := range fs.files {
			if now.Sub(createdAt) > fs.TTL && !fs.pins[file.String()] {
				err := file.Remove()
				logrus.WithField("file", file).Debugf("%s: sweep: %v", fs, err)
				delete(fs.files, file)
			}
		}
	}

	name := uuid.Must(uuid.NewV4()).String()
	if ext != "" {
		name += "." + ext
	}

	file := flu.File(filepath.Join(fs.Dir, name))
	fs.files[file] = now
	return file, nil
}

func (fs *Files) Pin(ctx context.Context, path string) error {
	fs.init()
	ctx, cancel := fs.mu.Lock(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	defer cancel()
	fs.pins[path] = true
	return nil
}

func (fs *Files) Pinned(ctx context.Context) ([]string, error) {
	fs.init()
	ctx, cancel := fs.mu.RLock(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	defer cancel()

	pinned := make([]string, 0, len(fs.pins))
	for path := range fs.pins {
		pinned = append(pinned, path)
	}

	return pinned, nil
}

// Materialize normalizes a media value into a Record: raw payloads are
// written under the cache dir and deduplicated by exact content, local paths
// are used in place, URLs pass through without a local copy. format is a
// container hint; conversion into it is the caller's responsibility.
func (fs *Files) Materialize(ctx context.Context, value media.Value, format string) (*media.Record, error) {
	fs.init()

	record, err := fs.materialize(ctx, value, format)
	switch {
	case err != nil:
		logrus.WithFields(logrus.Fields{"format": format}).Warnf("%s: materialize: %s", fs, err)
		fs.Metrics.Counter("materialize_failed", nil).Inc()
	default:
		logrus.WithFields(record.Fields()).Debugf("%s: materialize ok", fs)
		fs.Metrics.Counter("materialize_ok", record.Labels()).Inc()
	}

	return record, err
}

func (fs *Files) materialize(ctx context.Context, value media.Value, format string) (*media.Record, error) {
	switch v := value.(type) {
	case media.Bytes:
		if err := fs.checkSize(int64(len(v))); err != nil {
			return nil, err
		}

		return fs.writeDeduplicated(ctx, v, format, keyBytes(v, format))

	case media.PCM:
		file, err := fs.Alloc(ctx, "wav")
		if err != nil {
			return nil, err
		}

		if err := media.EncodeWAV(v, file); err != nil {
			_ = file.Remove()
			return nil, errors.Wrap(err, "encode wav")
		}

		return media.NewFileRecord(file.String())

	case media.File:
		return media.NewFileRecord(v.String())

	case media.URL:
		return media.NewURLRecord(v.String()), nil

	default:
		return nil, errors.Wrapf(media.ErrUnsupportedValue, "%T", value)
	}
}

// Fetch downloads a remote record into the cache. It is used only when the
// file must be probed or converted locally; otherwise URL records pass
// through untouched.
func (fs *Files) Fetch(ctx context.Context, url string) (*media.Record, error) {
	fs.init()

	ext := media.ExtensionByMIMEType(media.MIMETypeByExtension(media.URLExtension(url)))
	file, err := fs.Alloc(ctx, ext)
	if err != nil {
		return nil, err
	}

	err = backoff.Retry{
		Retries: fs.Retries,
		Backoff: backoff.Const(time.Second),
		Body: func(ctx context.Context) error {
			return httpf.GET(url).
				Exchange(ctx, fs.http()).
				CheckStatus(http.StatusOK).
				CopyBody(file).
				Error()
		},
	}.Do(ctx)
	if err != nil {
		_ = file.Remove()
		return nil, errors.Wrapf(err, "fetch %s", url)
	}

	record, err := media.NewFileRecord(file.String())
	if err != nil {
		return nil, err
	}

	if err := fs.checkSize(record.Size); err != nil {
		_ = file.Remove()
		return nil, err
	}

	record.OrigName = media.SanitizeName(media.URLFileName(url))
	record.URL = url
	return record, nil
}

func (fs *Files) writeDeduplicated(ctx context.Context, data []byte, format string, digest digest) (*media.Record, error) {
	if fs.Index != nil {
		entry, err := fs.Index.Locate(ctx, digest.Key, format)
		if err != nil {
			return nil, errors.Wrap(err, "locate")
		}

		if entry != nil {
			if ok, _ := flu.File(entry.Path).Exists(); ok {
				fs.Metrics.Counter("dedup_hit", nil).Inc()
				return media.NewFileRecord(entry.Path)
			}
		}
	}

	file, err := fs.Alloc(ctx, format)
	if err != nil {
		return nil, err
	}

	if _, err := flu.Copy(flu.Bytes(data), file); err != nil {
		_ = file.Remove()
		return nil, errors.Wrap(err, "write payload")
	}

	record, err := media.NewFileRecord(file.String())
	if err != nil {
		return nil, err
	}

	if fs.Index != nil {
		now := fs.Clock.Now()
		entry := &Entry{
			Key:        digest.Key,
			Format:     format,
			Path:       record.Path,
			MIMEType:   nullString(record.MIMEType),
			Perceptual: digest.Perceptual,
			FirstSeen:  now,
			LastSeen:   now,
		}

		if err := fs.Index.Store(ctx, entry); err != nil {
			logrus.WithFields(record.Fields()).Warnf("%s: index store: %s", fs, err)
		}
	}

	return record, nil
}

func (fs *Files) checkSize(size int64) error {
	if size > 0 {
		if min := int64(fs.SizeBounds[0]); min > 0 && size < min {
			return errors.Errorf("size %db is below %s", size, fs.SizeBounds[0])
		}
		if max := int64(fs.SizeBounds[1]); max > 0 && size > max {
			return errors.Errorf("size %db exceeds %s", size, fs.SizeBounds[1])
		}
	}

	return nil
}

func (fs *Files) http() httpf.Client {
	if fs.HTTP != nil {
		return fs.HTTP
	}

	return http.DefaultClient
}

func (fs *Files) Close() error {
	return os.RemoveAll(fs.Dir)
}
