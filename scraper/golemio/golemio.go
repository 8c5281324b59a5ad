package golemio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"golemio-extractor/config"
	"golemio-extractor/models"
	"golemio-extractor/utils"
)

const (
	accessTokenHeader = "X-Access-Token"
	fallbackDistrict  = "praha-4"
	fallbackRange     = 10000

	// retryNow is the smallest positive wait, distinct from "no header".
	retryNow = time.Nanosecond
)

// HTTPError is returned for any non-success response other than 429, and for
// transport failures (StatusCode 0).
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("golemio: request %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("golemio: %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Request is one combination's fetch input.
type Request struct {
	LatLng       string
	RangeM       int
	Districts    []string
	Limit        int
	Offset       int
	UpdatedSince string
	// Cap is the maximum number of features returned for this request.
	Cap int
}

// RequestFor builds a fetch request for a combination with the given cap.
func RequestFor(c models.Combination, cap int) Request {
	return Request{
		LatLng:       c.LatLng,
		RangeM:       c.RangeM,
		Districts:    c.Districts,
		Limit:        c.Limit,
		Offset:       c.Offset,
		UpdatedSince: c.UpdatedSince,
		Cap:          cap,
	}
}

// Fetcher pages through the municipal libraries endpoint.
type Fetcher struct {
	apiURL    string
	http      *resty.Client
	logger    *utils.Logger
	rateLimit *utils.RateLimitPolicy
	throttle  *utils.Throttle
}

// New creates a Fetcher from the application config.
func New(cfg *config.Config, logger *utils.Logger) *Fetcher {
	client := resty.New().
		SetTimeout(cfg.HTTPTimeout()).
		SetHeader(accessTokenHeader, cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &Fetcher{
		apiURL: cfg.APIURL,
		http:   client,
		logger: logger,
		rateLimit: &utils.RateLimitPolicy{
			MaxRetries:   cfg.MaxRateLimitRetries,
			BackoffCap:   cfg.RateLimitBackoffCap(),
			DefaultDelay: 60 * time.Second,
		},
		throttle: utils.NewThrottle(cfg.RateLimitInterval()),
	}
}

// WithSleep replaces the backoff sleep. Tests use it to observe waits.
func (f *Fetcher) WithSleep(sleep utils.SleepFunc) *Fetcher {
	f.rateLimit.Sleep = sleep
	return f
}

// Params renders the query parameters for req at the given offset.
func (r Request) Params(offset int) map[string]string {
	latlng := r.LatLng
	if latlng == "" {
		latlng = config.DefaultLatLng
	}
	rangeM := r.RangeM
	if rangeM == 0 {
		rangeM = fallbackRange
	}
	districts := fallbackDistrict
	if len(r.Districts) > 0 {
		districts = strings.Join(r.Districts, ",")
	}

	params := map[string]string{
		"latlng":    latlng,
		"range":     strconv.Itoa(rangeM),
		"districts": districts,
		"limit":     strconv.Itoa(r.Limit),
		"offset":    strconv.Itoa(offset),
	}
	if r.UpdatedSince != "" {
		params["updatedSince"] = r.UpdatedSince
	}
	return params
}

// Fetch returns the features for req, following pagination until the API runs
// dry, a short page arrives, or req.Cap features have been collected.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]models.Feature, error) {
	var all []models.Feature
	offset := req.Offset

	for {
		page, err := f.fetchPage(ctx, req.Params(offset))
		if err != nil {
			return nil, err
		}

		if len(page) == 0 {
			f.logger.Info("[golemio] No more features returned by API.")
			break
		}

		remaining := req.Cap - len(all)
		if remaining <= 0 {
			break
		}
		if len(page) > remaining {
			page = page[:remaining]
		}
		all = append(all, page...)
		f.logger.Info("[golemio] Received %d features; total so far: %d", len(page), len(all))

		if req.Limit <= 0 || len(page) < req.Limit || len(all) >= req.Cap {
			break
		}
		offset += req.Limit
	}

	return all, nil
}

// fetchPage issues one page request, waiting out 429 responses and retrying
// the identical request.
func (f *Fetcher) fetchPage(ctx context.Context, params map[string]string) ([]models.Feature, error) {
	for attempt := 1; ; attempt++ {
		if err := f.throttle.Wait(ctx); err != nil {
			return nil, err
		}

		f.logger.Info("[golemio] Requesting URL: %s", f.apiURL)
		f.logger.Debug("[golemio] Params: %v", params)

		resp, err := f.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(f.apiURL)
		if err != nil {
			return nil, &HTTPError{URL: f.apiURL, Err: err}
		}
		f.logger.Info("[golemio] Response status: %d", resp.StatusCode())

		if resp.StatusCode() == http.StatusTooManyRequests {
			advertised := parseRetryAfter(resp.Header().Get("Retry-After"))
			wait := f.rateLimit.Delay(advertised)
			f.logger.Warn("[golemio] Rate limit hit, retrying in %v", wait)
			if err := f.rateLimit.Wait(ctx, attempt, advertised); err != nil {
				return nil, fmt.Errorf("golemio: rate limited: %w", err)
			}
			continue
		}

		if !resp.IsSuccess() {
			return nil, &HTTPError{
				StatusCode: resp.StatusCode(),
				URL:        f.apiURL,
				Body:       truncate(string(resp.Body()), 200),
			}
		}

		var payload models.FeaturePage
		if err := json.Unmarshal(resp.Body(), &payload); err != nil {
			return nil, fmt.Errorf("golemio: decode response: %w", err)
		}
		return payload.Features, nil
	}
}

// parseRetryAfter understands delay-seconds and HTTP-date values. A zero delay
// or a date already passed means retry now and yields retryNow; an absent or
// malformed header yields 0 so the policy default applies.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		switch {
		case secs < 0:
			return 0
		case secs == 0:
			return retryNow
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return retryNow
	}
	return 0
}

// IsHTTPError reports whether err carries an upstream HTTPError.
func IsHTTPError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
