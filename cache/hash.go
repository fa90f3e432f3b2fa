package cache

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/bmp"
	"gopkg.in/guregu/null.v3"
)

type readImageFunc func(io.Reader) (image.Image, error)

var imageTypes = map[string]readImageFunc{
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/bmp":  bmp.Decode,
}

// digest identifies a raw payload in the dedup index. Key is the exact
// content hash and is the sole reuse criterion; Perceptual is a difference
// hash computed for image payloads and kept for near-duplicate reporting
// only, it never short-circuits a write.
type digest struct {
	Key        string
	Perceptual null.String
}

func keyBytes(data []byte, format string) digest {
	sum := md5.Sum(data)
	d := digest{Key: fmt.Sprintf("%x-%s", sum, format)}
	if readImage, ok := imageTypes[http.DetectContentType(data)]; ok {
		if img, err := readImage(bytes.NewReader(data)); err == nil {
			if dhash, err := goimagehash.DifferenceHash(img); err == nil {
				d.Perceptual = null.StringFrom(fmt.Sprintf("%x", dhash.GetHash()))
			}
		}
	}

	return d
}

func nullString(value string) null.String {
	if value == "" {
		return null.String{}
	}

	return null.StringFrom(value)
}
