// Package materialize turns slide image URLs into JPEG files on disk.
// Source images arrive as WebP, PNG, or JPEG; everything is stored as
// JPEG so a run's output is uniform.
package materialize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/webp"

	"slidescraper/pkg/errs"
	"slidescraper/pkg/logger"
	"slidescraper/pkg/ratelimit"
	"slidescraper/pkg/retry"
)

const jpegQuality = 95

// Materializer downloads, converts, and stores slide images.
type Materializer struct {
	client    *Client
	limiter   ratelimit.Limiter
	retrier   *retry.Retrier
	overwrite bool
	log       logger.Logger
}

// New assembles a Materializer from its collaborators.
func New(client *Client, limiter ratelimit.Limiter, retrier *retry.Retrier, overwrite bool, log logger.Logger) *Materializer {
	return &Materializer{
		client:    client,
		limiter:   limiter,
		retrier:   retrier,
		overwrite: overwrite,
		log:       log,
	}
}

// Materialize fetches url and writes it to path as JPEG. An existing
// non-empty file at path is left alone unless overwrite is set;
// returns true when the file was actually written.
func (m *Materializer) Materialize(ctx context.Context, url, path string) (bool, error) {
	if !m.overwrite && fileExists(path) {
		m.log.DebugWithFields("file exists, skipping", map[string]interface{}{
			"path": path,
		})
		return false, nil
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return false, err
	}

	var body []byte
	err := m.retrier.WithContext(ctx).Do(func() error {
		var fetchErr error
		body, _, fetchErr = m.client.Fetch(ctx, url)
		return fetchErr
	})
	if err != nil {
		return false, err
	}

	jpegBytes, err := toJPEG(body)
	if err != nil {
		// store the original bytes rather than lose the slide
		m.log.WarnWithFields("image conversion failed, storing original", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		jpegBytes = body
	}

	if err := store(path, jpegBytes); err != nil {
		return false, err
	}
	return true, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// toJPEG re-encodes arbitrary image bytes as JPEG. Transparency is
// flattened onto white, matching how the site renders slides.
func toJPEG(data []byte) ([]byte, error) {
	img, format, err := decode(data)
	if err != nil {
		return nil, err
	}

	if format == "jpeg" {
		return data, nil
	}

	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errs.Wrap(errs.KindParsing, "jpeg encode failed", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (image.Image, string, error) {
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}
	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, "jpeg", nil
	}
	if img, err := png.Decode(bytes.NewReader(data)); err == nil {
		return img, "png", nil
	}
	if img, err := gif.Decode(bytes.NewReader(data)); err == nil {
		return img, "gif", nil
	}
	return nil, "", errs.New(errs.KindParsing, "unrecognized image format")
}

// store writes data to path atomically via a temp file in the same
// directory.
func store(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.KindEnvironment, fmt.Sprintf("cannot create %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".img-*.tmp")
	if err != nil {
		return errs.Wrap(errs.KindEnvironment, "cannot create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Wrap(errs.KindEnvironment, "write failed", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.KindEnvironment, "close failed", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errs.Wrap(errs.KindEnvironment, fmt.Sprintf("cannot finalize %s", path), err)
	}
	return nil
}
