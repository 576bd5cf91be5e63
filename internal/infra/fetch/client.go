package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultResolverURL     = "https://ytdlp.online/stream"
	DefaultResolverTimeout = 30 * time.Second
)

type ClientConfig struct {
	Timeout         time.Duration
	ResolverURL     string
	ResolverTimeout time.Duration
	RatePerSecond   float64
	Burst           int
	UserAgent       string
}

// Client retrieves remote videos. It does not retry; callers decide.
type Client struct {
	http            *http.Client
	limiter         *rate.Limiter
	resolverURL     string
	resolverTimeout time.Duration
	userAgent       string
	logger          *zap.Logger
}

var _ port.RemoteFetcher = (*Client)(nil)

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if cfg.ResolverURL == "" {
		cfg.ResolverURL = DefaultResolverURL
	}
	if cfg.ResolverTimeout <= 0 {
		cfg.ResolverTimeout = DefaultResolverTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "video2doc"
	}
	return &Client{
		http:            &http.Client{Timeout: cfg.Timeout},
		limiter:         rate.NewLimiter(limit, burst),
		resolverURL:     cfg.ResolverURL,
		resolverTimeout: cfg.ResolverTimeout,
		userAgent:       cfg.UserAgent,
		logger:          logger,
	}
}

// Download streams the body of rawURL into w.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, fmt.Errorf("%w: read %s: %v", ErrUpstreamFetchFailed, rawURL, err)
	}

	c.logger.Debug("downloaded remote source", zap.String("url", rawURL), zap.Int64("bytes", n))
	return n, nil
}

// ResolveHosted asks the resolver service for a hosting page's direct download
// link. The resolver streams text; the first anchor it emits holds the link.
func (c *Client) ResolveHosted(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(c.resolverURL)
	if err != nil {
		return "", fmt.Errorf("parse resolver url: %w", err)
	}
	q := base.Query()
	q.Set("command", pageURL)
	base.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.resolverTimeout)
	defer cancel()

	resp, err := c.get(ctx, base.String())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var scanner HrefScanner
	chunk := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			if href, ok := scanner.Feed(string(chunk[:n])); ok {
				ref, err := url.Parse(href)
				if err != nil {
					return "", fmt.Errorf("%w: bad href %q: %v", ErrDownloadLinkNotFound, href, err)
				}
				resolved := base.ResolveReference(ref).String()
				c.logger.Info("resolved hosted video", zap.String("page_url", pageURL), zap.String("download_url", resolved))
				return resolved, nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return "", fmt.Errorf("%w: %s", ErrDownloadLinkNotFound, pageURL)
			}
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: resolver: %v", ErrUpstreamFetchFailed, ctx.Err())
			}
			return "", fmt.Errorf("%w: read resolver stream: %v", ErrUpstreamFetchFailed, readErr)
		}
	}
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetchFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
