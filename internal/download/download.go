package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bnema/craftctl/internal/checksum"
)

// UserAgent is sent with every artifact request
const UserAgent = "craftctl/1.0 (game artifact installer)"

// NetworkError is returned when a transfer failed and the single retry failed too
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error downloading %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is an HTTP error status. It is never retried.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download of %s failed with status: %d", e.URL, e.Code)
}

// HTTPClient is the part of *http.Client the downloader needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Progress is called while a body is copied
type Progress func(downloaded, total int64)

// Downloader fetches URLs into the artifact store
type Downloader struct {
	client   HTTPClient
	log      *log.Logger
	progress Progress
}

// Option configures a Downloader
type Option func(*Downloader)

// WithHTTPClient replaces the default client
func WithHTTPClient(c HTTPClient) Option {
	return func(d *Downloader) {
		if c != nil {
			d.client = c
		}
	}
}

// WithProgress sets a byte progress callback
func WithProgress(p Progress) Option {
	return func(d *Downloader) {
		d.progress = p
	}
}

// New creates a downloader
func New(logger *log.Logger, opts ...Option) *Downloader {
	d := &Downloader{
		client: &http.Client{Timeout: 10 * time.Minute},
		log:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches url into dest and returns dest.
// Any existing file at dest is removed first. A transport failure is retried once.
func (d *Downloader) Download(ctx context.Context, url, dest string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("no download URL for %s", dest)
	}

	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to remove existing file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	err := d.fetch(ctx, url, dest)
	if err != nil && isTransportError(err) && ctx.Err() == nil {
		d.log.Warn("Download failed, retrying once", "url", url, "error", err)
		err = d.fetch(ctx, url, dest)
		if err != nil && isTransportError(err) {
			return "", &NetworkError{URL: url, Err: err}
		}
	}
	if err != nil {
		return "", err
	}

	return dest, nil
}

// Ensure validates dest against sha1 and downloads it when the check fails.
// It reports whether a download happened.
func (d *Downloader) Ensure(ctx context.Context, url, dest, sha1 string) (bool, error) {
	if checksum.IsValid(dest, sha1) {
		return false, nil
	}

	if _, err := os.Stat(dest); err == nil {
		d.log.Debug("Checksum mismatch, replacing file", "path", dest)
	}

	if _, err := d.Download(ctx, url, dest); err != nil {
		return false, err
	}

	if sha1 != "" && !checksum.IsValid(dest, sha1) {
		d.log.Warn("Downloaded file does not match declared checksum", "path", dest, "sha1", sha1)
	}
	return true, nil
}

func (d *Downloader) fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	d.log.Debug("Starting download", "url", url, "dest", dest)

	resp, err := d.client.Do(req)
	if err != nil {
		return transportError{err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}

	tmpPath := dest + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	var written int64
	if d.progress != nil {
		written, err = copyWithProgress(out, resp.Body, resp.ContentLength, d.progress)
	} else {
		written, err = io.Copy(out, resp.Body)
	}
	_ = out.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return transportError{err}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move file: %w", err)
	}

	d.log.Debug("Download complete", "path", dest, "bytes", strconv.FormatInt(written, 10))
	return nil
}

// transportError marks failures that happened below HTTP status handling
type transportError struct {
	err error
}

func (e transportError) Error() string { return e.err.Error() }
func (e transportError) Unwrap() error { return e.err }

func isTransportError(err error) bool {
	var te transportError
	return errors.As(err, &te)
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, onProgress Progress) (int64, error) {
	buf := make([]byte, 32*1024)
	var written, lastReport int64

	for {
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			written += int64(nw)
			if written-lastReport > 256*1024 {
				onProgress(written, total)
				lastReport = written
			}
			if ew != nil {
				return written, ew
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er != io.EOF {
				return written, er
			}
			break
		}
	}

	onProgress(written, total)
	return written, nil
}
