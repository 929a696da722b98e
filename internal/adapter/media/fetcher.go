// Package media downloads event images from allow-listed hosts.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/neomorfeo/boxsync/internal/domain"
)

// DefaultAllowedHosts are the upstream image hosts. Subdomains are accepted.
var DefaultAllowedHosts = []string{"tickettailor.com", "cdn.tickettailor.com"}

var ErrHostNotAllowed = errors.New("image url is not on the allow-list")

// Options configures a Fetcher.
type Options struct {
	AllowedHosts []string
	MaxBytes     int64
	Timeout      time.Duration
	HTTPClient   *http.Client
}

var _ domain.ImageFetcher = (*Fetcher)(nil)

// Fetcher implements domain.ImageFetcher.
type Fetcher struct {
	hosts    []string
	maxBytes int64
	http     *http.Client
}

// New creates a fetcher. Redirects are followed only to allowed URLs.
func New(opts Options) *Fetcher {
	f := &Fetcher{maxBytes: opts.MaxBytes}
	hosts := opts.AllowedHosts
	if len(hosts) == 0 {
		hosts = DefaultAllowedHosts
	}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			f.hosts = append(f.hosts, h)
		}
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 10 << 20
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("too many redirects")
		}
		if !f.Allowed(req.URL.String()) {
			return ErrHostNotAllowed
		}
		return nil
	}
	f.http = &c
	return f
}

// Allowed reports whether rawURL uses HTTPS and points at an allowed host
// or one of its subdomains.
func (f *Fetcher) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.User != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, allowed := range f.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// Fetch downloads and decodes the image at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Image, error) {
	if !f.Allowed(rawURL) {
		return domain.Image{}, fmt.Errorf("%w: %s", ErrHostNotAllowed, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Image{}, fmt.Errorf("building image request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return domain.Image{}, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Image{}, fmt.Errorf("downloading image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.Image{}, fmt.Errorf("reading image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return domain.Image{}, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Image{}, fmt.Errorf("decoding image: %w", err)
	}
	bounds := img.Bounds()

	return domain.Image{
		SourceURL:   rawURL,
		ContentType: http.DetectContentType(data),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Data:        data,
	}, nil
}
