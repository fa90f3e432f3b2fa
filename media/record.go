package media

import (
	"os"
	"path/filepath"

	"github.com/jfk9w-go/flu/me3x"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/utf8string"
)

// MaxOrigNameLength caps the original filename carried in download headers.
const MaxOrigNameLength = 255

// Record is the canonical reference to a materialized or remote media file.
//
// A materialized record points at an existing local file and its Size
// matches the file size at the time of creation. A record with IsStream set
// is a placeholder for a live output channel: Path carries the opaque
// stream identifier and no size/path guarantees apply.
type Record struct {
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
	OrigName string `json:"origName,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	IsStream bool   `json:"isStream,omitempty"`
}

// NewFileRecord stats the file and returns a materialized record for it.
// The returned path is absolute.
func NewFileRecord(path string) (*Record, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}

	stat, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", abs)
	}

	return &Record{
		Path:     abs,
		OrigName: SanitizeName(filepath.Base(abs)),
		Size:     stat.Size(),
		MIMEType: MIMETypeByExtension(filepath.Ext(abs)),
	}, nil
}

// NewURLRecord returns a record served by reference, without a local copy.
func NewURLRecord(url string) *Record {
	return &Record{
		URL:      url,
		OrigName: SanitizeName(URLFileName(url)),
		MIMEType: MIMETypeByExtension(URLExtension(url)),
	}
}

// NewStreamRecord returns a placeholder record for a live output channel.
func NewStreamRecord(outputID string) *Record {
	return &Record{
		Path:     outputID,
		IsStream: true,
	}
}

func (r *Record) Labels() me3x.Labels {
	labels := me3x.Labels{}
	switch {
	case r == nil:
		return labels.Add("type", "none")
	case r.IsStream:
		return labels.Add("type", "stream").Add("output", r.Path)
	case r.Path != "":
		return labels.Add("type", "file").Add("mime", r.MIMEType)
	default:
		return labels.Add("type", "url").Add("mime", r.MIMEType)
	}
}

func (r *Record) Fields() logrus.Fields {
	return logrus.Fields(r.Labels().Map())
}

// SanitizeName trims a filename to MaxOrigNameLength without splitting a
// multi-byte rune.
func SanitizeName(name string) string {
	str := utf8string.NewString(name)
	if str.RuneCount() <= MaxOrigNameLength {
		return name
	}

	return str.Slice(0, MaxOrigNameLength)
}
