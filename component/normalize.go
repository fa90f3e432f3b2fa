package component

import (
	"context"
	"path/filepath"
	"strings"

	"mediaflow/cache"
	"mediaflow/media"
	"mediaflow/transcode"

	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

// ensureFormat converts a record into the target container when it arrived
// in a different one, writing the converted copy as a new cache file. Remote
// records are fetched first, since conversion needs a local file; matching
// ones pass through as URLs. The original file is left untouched. The
// resulting record is pinned.
func ensureFormat(ctx context.Context, fs *cache.Files, converter transcode.Converter, format string, record *media.Record) (*media.Record, error) {
	if format == "" || strings.EqualFold(recordExt(record), format) {
		return record, pinRecord(ctx, fs, record)
	}

	if record.Path == "" {
		fetched, err := fs.Fetch(ctx, record.URL)
		if err != nil {
			return nil, err
		}

		record = fetched
	}

	out, err := fs.Alloc(ctx, format)
	if err != nil {
		return nil, err
	}

	if err := converter.Convert(ctx, flu.File(record.Path), out, transcode.Options{Format: format}); err != nil {
		_ = out.Remove()
		return nil, errors.Wrapf(err, "convert to %s", format)
	}

	converted, err := media.NewFileRecord(out.String())
	if err != nil {
		return nil, err
	}

	converted.OrigName = record.OrigName
	return converted, pinRecord(ctx, fs, converted)
}

// localize resolves a record to a local file, fetching remote-only records
// into the cache.
func localize(ctx context.Context, fs *cache.Files, record *media.Record) (*media.Record, error) {
	if record.IsStream {
		return nil, errors.New("stream placeholder cannot be preprocessed")
	}

	if record.Path != "" {
		return record, nil
	}

	if record.URL == "" {
		return nil, errors.New("record has neither path nor url")
	}

	return fs.Fetch(ctx, record.URL)
}

func pinRecord(ctx context.Context, fs *cache.Files, record *media.Record) error {
	if record.Path == "" {
		return nil
	}

	return fs.Pin(ctx, record.Path)
}

func recordExt(record *media.Record) string {
	if record.Path != "" {
		return strings.TrimPrefix(filepath.Ext(record.Path), ".")
	}

	return media.URLExtension(record.URL)
}
