package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/customs-screening-pipeline/internal/config"
)

// ErrTooLarge is returned when an image exceeds the configured byte cap
var ErrTooLarge = errors.New("image exceeds size limit")

// Fetcher turns an image reference into base64 image data
type Fetcher interface {
	FetchAndEncode(ctx context.Context, ref string) (string, error)
}

// HTTPFetcher downloads remote images. Inline base64 values and data URIs
// are returned without a request.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates an image fetcher
func NewHTTPFetcher(cfg *config.ImageConfig) *HTTPFetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: cfg.MaxBytes,
	}
}

// FetchAndEncode returns ref as base64 image data
func (f *HTTPFetcher) FetchAndEncode(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty image reference")
	}
	if data, ok := Inline(ref); ok {
		return data, nil
	}
	if !IsRemote(ref) {
		return "", fmt.Errorf("unsupported image reference %q", ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", fmt.Errorf("create image request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return "", ErrTooLarge
	}
	if len(body) == 0 {
		return "", errors.New("image is empty")
	}

	return base64.StdEncoding.EncodeToString(body), nil
}

// IsRemote reports whether ref is an http(s) URL
func IsRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Inline extracts base64 data from a data URI or a bare base64 string
func Inline(ref string) (string, bool) {
	if strings.HasPrefix(ref, "data:") {
		meta, data, found := strings.Cut(ref[len("data:"):], ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return "", false
		}
		if _, err := base64.StdEncoding.DecodeString(data); err != nil {
			return "", false
		}
		return data, true
	}
	if IsRemote(ref) || len(ref) < 16 {
		return "", false
	}
	if _, err := base64.StdEncoding.DecodeString(ref); err != nil {
		return "", false
	}
	return ref, true
}

// DefaultTimeout is used when no fetch timeout is configured
const DefaultTimeout = 10 * time.Second

var _ Fetcher = (*HTTPFetcher)(nil)
