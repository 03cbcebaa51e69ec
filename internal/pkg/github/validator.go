// Package github checks personal access tokens against the GitHub REST
// API: whether a token is live, which scopes it carries, and how much of
// its rate limit is left.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"safepath/internal/pkg/apperr"
	"safepath/internal/pkg/clock"
	"safepath/internal/pkg/logging"
)

const (
	apiVersion       = "2022-11-28"
	defaultBaseURL   = "https://api.github.com"
	defaultUserAgent = "SafePath-App"
	defaultTimeout   = 10 * time.Second

	maxBodyBytes = 1 << 20
)

var ErrServiceUnavailable = apperr.New(apperr.KindExternalService, "GITHUB_UNAVAILABLE",
	"credential authority is unavailable")

// APIError is a non-2xx response from the authority.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return ErrServiceUnavailable }

type Config struct {
	// BaseURL defaults to https://api.github.com.
	BaseURL   string
	UserAgent string
	// Timeout bounds each request. Defaults to 10s.
	Timeout    time.Duration
	HTTPClient *http.Client
	Clock      clock.Clock
	Logger     logging.Logger
}

type Validator struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	clock      clock.Clock
	log        logging.Logger
}

func NewValidator(cfg Config) *Validator {
	v := &Validator{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		clock:      cfg.Clock,
		log:        cfg.Logger,
	}
	if v.baseURL == "" {
		v.baseURL = defaultBaseURL
	}
	if v.userAgent == "" {
		v.userAgent = defaultUserAgent
	}
	if v.timeout <= 0 {
		v.timeout = defaultTimeout
	}
	if v.httpClient == nil {
		v.httpClient = http.DefaultClient
	}
	if v.clock == nil {
		v.clock = clock.Real()
	}
	if v.log == nil {
		v.log = logging.Nop()
	}
	v.log = v.log.With("component", "github_validator")
	return v
}

// Validate introspects secret via GET /user. It never returns an error:
// every failure is folded into the Result.
func (v *Validator) Validate(ctx context.Context, secret string) Result {
	if strings.TrimSpace(secret) == "" {
		return Result{Outcome: OutcomeInvalid, Reason: ReasonEmptySecret}
	}

	resp, err := v.get(ctx, "/user", secret)
	if err != nil {
		v.log.Warn(ctx, "token validation request failed", "error", err)
		return Result{Outcome: OutcomeServiceError, Reason: ReasonFailed}
	}
	defer drain(resp.Body)

	fp := logging.Fingerprint(secret)
	switch {
	case resp.StatusCode == http.StatusOK:
		res := Result{
			Outcome:   OutcomeValid,
			Scopes:    parseScopes(resp.Header),
			RateLimit: parseRateLimit(resp.Header),
		}
		v.log.Debug(ctx, "token validated", "token_fp", fp, "scopes", len(res.Scopes))
		return res

	case resp.StatusCode == http.StatusUnauthorized:
		v.log.Info(ctx, "token rejected by authority", "token_fp", fp)
		return Result{
			Outcome:   OutcomeInvalid,
			RateLimit: conservativeRateLimit(v.clock.Now()),
			Reason:    ReasonInvalid,
		}

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		v.log.Warn(ctx, "token validation rate limited", "token_fp", fp, "status", resp.StatusCode)
		return Result{
			Outcome:   OutcomeRateLimited,
			RateLimit: parseRateLimit(resp.Header),
			Reason:    ReasonRateLimited,
		}

	default:
		v.log.Warn(ctx, "unexpected validation status", "token_fp", fp, "status", resp.StatusCode)
		return Result{
			Outcome:   OutcomeServiceError,
			RateLimit: parseRateLimit(resp.Header),
			Reason:    ReasonFailed,
		}
	}
}

type rateLimitBody struct {
	Resources struct {
		Core struct {
			Limit     int   `json:"limit"`
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"core"`
	} `json:"resources"`
}

// CheckRateLimit reads GET /rate_limit. secret may be empty, in which
// case the unauthenticated quota is reported.
func (v *Validator) CheckRateLimit(ctx context.Context, secret string) (RateLimit, error) {
	resp, err := v.get(ctx, "/rate_limit", secret)
	if err != nil {
		return RateLimit{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return RateLimit{}, &APIError{StatusCode: resp.StatusCode}
	}

	var body rateLimitBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		if rl := parseRateLimit(resp.Header); rl != nil {
			return *rl, nil
		}
		return RateLimit{}, fmt.Errorf("%w: decode rate limit: %v", ErrServiceUnavailable, err)
	}

	core := body.Resources.Core
	return RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     time.Unix(core.Reset, 0).UTC(),
	}, nil
}

func (v *Validator) get(ctx context.Context, path, secret string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		cancel()
		// url.Error carries the URL only, never request headers.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("github: GET %s: timed out after %s", path, v.timeout)
		}
		return nil, fmt.Errorf("github: GET %s: %w", path, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxBodyBytes))
	_ = body.Close()
}
