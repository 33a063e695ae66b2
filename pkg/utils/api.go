package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kerbaras/mangashelf/pkg/logging"
	"golang.org/x/time/rate"
)

const userAgent = "mangashelf/1.0"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status from %s: %s", e.URL, e.Status)
}

// APIOptions tunes the HTTP client.
type APIOptions struct {
	Timeout           time.Duration
	RetryCount        int
	RetryWait         time.Duration
	RequestsPerSecond float64 // <= 0 disables pacing
	Logger            *slog.Logger
}

// API is a paced, retrying HTTP client for JSON endpoints and file downloads.
type API struct {
	client  *resty.Client
	limiter *rate.Limiter
	baseURL string
}

func NewAPI(baseURL string, opts APIOptions) *API {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetLogger(logging.RestyLogger{Logger: logging.NewComponentLogger(opts.Logger, "http")}).
		SetRetryCount(opts.RetryCount).
		SetRetryAfter(retryAfter).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.RetryWait > 0 {
		client.SetRetryWaitTime(opts.RetryWait)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &API{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		baseURL: baseURL,
	}
}

// Get fetches path (relative to the base URL) and decodes the JSON body into v.
func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	req := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	if resp.IsError() {
		return &StatusError{Code: resp.StatusCode(), Status: resp.Status(), URL: resp.Request.URL}
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// Download streams the resource at rawURL into w and returns its content type.
func (a *API) Download(ctx context.Context, rawURL string, w io.Writer) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode(), Status: resp.Status(), URL: rawURL}
	}
	if _, err := io.Copy(w, body); err != nil {
		return "", fmt.Errorf("failed to read image content: %w", err)
	}
	return resp.Header().Get("Content-Type"), nil
}

// retryAfter honors the Retry-After header on 429 responses.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil || resp.StatusCode() != http.StatusTooManyRequests {
		return 0, nil
	}
	value := resp.Header().Get("Retry-After")
	if value == "" {
		return 0, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	if t, err := http.ParseTime(value); err == nil {
		return time.Until(t), nil
	}
	return 0, nil
}
