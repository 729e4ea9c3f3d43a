package fastimage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"

	"github.com/fastimage/fastimage/cache/disk"
)

const downloadDirPerm os.FileMode = 0o700

// downloader is the cache's write path: it fetches an image over HTTP,
// writes it under the cache root via temp-file-and-rename, and reports the
// new entry to the disk cache. The cache core itself never creates files.
type downloader struct {
	httpc  *http.Client
	cache  *disk.Cache
	logger *slog.Logger

	// group collapses concurrent downloads of the same key into one
	// request; every waiter observes the same outcome.
	group singleflight.Group
}

// fetch ensures the entry for req exists on disk, downloading it if needed.
func (d *downloader) fetch(ctx context.Context, req *ImageRequest) error {
	_, err, _ := d.group.Do(req.Key(), func() (any, error) {
		if _, err := os.Stat(req.Path()); err == nil {
			return nil, nil
		}
		return nil, d.download(ctx, req)
	})
	return err
}

func (d *downloader) download(ctx context.Context, req *ImageRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL(), nil)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", req.URL(), err)
	}
	// Setting the header explicitly disables the transport's automatic
	// gunzip, so both encodings are decoded below.
	httpReq.Header.Set("Accept-Encoding", "gzip, zstd")

	resp, err := d.httpc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", req.URL(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", req.URL(), resp.Status)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", req.URL(), err)
	}
	defer body.Close()

	dir := filepath.Dir(req.Path())
	if err := os.MkdirAll(dir, downloadDirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "fetch-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fetch %s: %w", req.URL(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, req.Path()); err != nil {
		if _, statErr := os.Stat(req.Path()); statErr == nil {
			// Lost a rename race; the winner already reported the entry.
			_ = os.Remove(tmpPath)
			return nil
		}
		_ = os.Remove(tmpPath)
		return err
	}

	d.log().Debug("image cached", "url", req.URL(), "bytes", written)
	d.cache.Added(written)
	return nil
}

// decodeBody returns the response body with any Content-Encoding undone.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "", "identity":
		return resp.Body, nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, errors.New("unsupported content encoding " + resp.Header.Get("Content-Encoding"))
	}
}

func (d *downloader) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.logger
}
