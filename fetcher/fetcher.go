package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/tie/launcher/metrics"
	"github.com/tie/launcher/retry"
	"github.com/tie/launcher/verify"
)

// TempSuffix is appended to the destination while a download is in flight.
const TempSuffix = ".part"

// Resolver turns an indirect URL into a direct download URL.
type Resolver interface {
	Resolve(ctx context.Context, c *http.Client, rawurl string) (string, error)
}

type HTTPError struct {
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("get %q: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("get %q: status %d: %s", e.URL, e.Status, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *HTTPError) Temporary() bool {
	switch {
	case e.Status >= 500:
		return true
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	}
	return false
}

// Fetcher downloads URLs into Files with replace-on-success semantics.
type Fetcher struct {
	Files  billy.Filesystem
	Client *http.Client

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds a single attempt, including the body transfer.
	Timeout time.Duration

	Retry     retry.Policy
	Resolvers map[string]Resolver
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Phase     string
}

type ClientOptions struct {
	ConnectTimeout time.Duration
	IdlePerHost    int
}

// NewClient returns a pooled client meant to be shared by every worker.
func NewClient(opts ClientOptions) *http.Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.IdlePerHost <= 0 {
		opts.IdlePerHost = 16
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	t.TLSHandshakeTimeout = opts.ConnectTimeout
	t.MaxIdleConns = opts.IdlePerHost * 4
	t.MaxIdleConnsPerHost = opts.IdlePerHost
	return &http.Client{Transport: t}
}

// WithFiles returns a copy of the fetcher writing into fs.
func (dl *Fetcher) WithFiles(fs billy.Filesystem) *Fetcher {
	c := *dl
	c.Files = fs
	return &c
}

func (dl *Fetcher) logger() *slog.Logger {
	if dl.Logger == nil {
		return slog.Default()
	}
	return dl.Logger
}

func (dl *Fetcher) client() *http.Client {
	if dl.Client == nil {
		return http.DefaultClient
	}
	return dl.Client
}

// FetchWithRetry runs Fetch under the retry policy. A checksum mismatch
// counts as a failed attempt. Client errors other than 408 and 429 are not
// retried.
func (dl *Fetcher) FetchWithRetry(ctx context.Context, rawurl, dest string, sums ...verify.Sum) error {
	err := dl.do(ctx, rawurl, func() error {
		return dl.Fetch(ctx, rawurl, dest, sums...)
	})
	if err != nil {
		dl.Metrics.FetchFailed(dl.Phase)
	}
	return err
}

// GetWithRetry runs Get under the retry policy.
func (dl *Fetcher) GetWithRetry(ctx context.Context, rawurl string, limit int64) ([]byte, error) {
	var data []byte
	err := dl.do(ctx, rawurl, func() error {
		var err error
		data, err = dl.Get(ctx, rawurl, limit)
		return err
	})
	return data, err
}

func (dl *Fetcher) do(ctx context.Context, rawurl string, fn func() error) error {
	return dl.Retry.Do(ctx, func(attempt int) error {
		err := fn()
		if err == nil {
			return nil
		}
		var herr *HTTPError
		if errors.As(err, &herr) && !herr.Temporary() {
			return retry.Stop(err)
		}
		if errors.Is(err, errTooLarge) {
			return retry.Stop(err)
		}
		if ctx.Err() == nil && attempt < dl.Retry.Attempts {
			dl.logger().Warn("fetch attempt failed",
				"url", rawurl,
				"attempt", attempt,
				"error", err)
		}
		return err
	})
}

// Fetch downloads rawurl to dest. The body is written to a temporary
// sibling which is synced, checked against sums and renamed onto dest.
// Nothing is left at dest unless every step succeeds.
func (dl *Fetcher) Fetch(ctx context.Context, rawurl, dest string, sums ...verify.Sum) (err error) {
	u, err := dl.resolve(ctx, rawurl)
	if err != nil {
		return err
	}
	if err := dl.Files.MkdirAll(path.Dir(dest), 0755); err != nil {
		return fmt.Errorf("mkdir %q: %w", path.Dir(dest), err)
	}
	tmp := dest + TempSuffix
	f, err := dl.Files.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %q: %w", tmp, err)
	}
	closed := false
	defer func() {
		if !closed {
			if cerr := f.Close(); cerr != nil {
				dl.logger().Warn("close", "path", tmp, "error", cerr)
			}
		}
		if err != nil {
			if rerr := dl.Files.Remove(tmp); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				dl.logger().Warn("remove", "path", tmp, "error", rerr)
			}
		}
	}()

	h := verify.NewHashes(sums)
	w := bufio.NewWriter(io.MultiWriter(f, h.Writer()))
	n, err := dl.fetchFile(ctx, w, u)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %q: %w", tmp, err)
	}
	if s, ok := f.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("sync %q: %w", tmp, err)
		}
	}
	closed = true
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", tmp, err)
	}
	if err := h.Check(dest); err != nil {
		return err
	}
	if err := dl.Files.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename %q: %w", dest, err)
	}
	dl.Metrics.FileFetched(dl.Phase, n)
	return nil
}

// Get returns the body of rawurl, reading at most limit bytes.
func (dl *Fetcher) Get(ctx context.Context, rawurl string, limit int64) ([]byte, error) {
	u, err := dl.resolve(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	w := &limitWriter{w: &b, n: limit}
	if _, err := dl.fetchFile(ctx, w, u); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (dl *Fetcher) resolve(ctx context.Context, rawurl string) (string, error) {
	scheme, _, ok := strings.Cut(rawurl, ":")
	if !ok || scheme == "http" || scheme == "https" {
		return rawurl, nil
	}
	r, ok := dl.Resolvers[scheme]
	if !ok {
		return "", fmt.Errorf("resolve %q: unsupported scheme %q", rawurl, scheme)
	}
	u, err := r.Resolve(ctx, dl.client(), rawurl)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", rawurl, err)
	}
	return u, nil
}

func (dl *Fetcher) fetchFile(ctx context.Context, w io.Writer, rawurl string) (int64, error) {
	if dl.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dl.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return 0, err
	}
	if dl.Token != "" {
		req.Header.Set("Authorization", "Bearer "+dl.Token)
	}
	resp, err := dl.client().Do(req)
	if err != nil {
		return 0, err
	}
	r := resp.Body
	defer func() {
		err := r.Close()
		if err != nil {
			dl.logger().Warn("close", "url", rawurl, "error", err)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Don’t read error bodies larger than 1KiB.
		body, _ := io.ReadAll(io.LimitReader(r, 1024))
		return 0, &HTTPError{
			URL:    rawurl,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	n, err := io.Copy(w, r)
	if err != nil {
		return n, fmt.Errorf("get %q: %w", rawurl, err)
	}
	return n, nil
}

var errTooLarge = errors.New("response body too large")

type limitWriter struct {
	w io.Writer
	n int64
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > l.n {
		return 0, errTooLarge
	}
	l.n -= int64(len(p))
	return l.w.Write(p)
}
