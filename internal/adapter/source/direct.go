// Package source implements the remote extraction client in its two
// transport modes: direct HTTP fetch against a prioritized endpoint list,
// and navigate-resume against a live page agent whose in-memory state is
// destroyed by every navigation.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"weighbridge/internal/domain"
	"weighbridge/internal/extract"
)

// Default circuit breaker settings, per endpoint.
const (
	defaultBreakerMaxFailures uint32        = 3
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second

	maxBodyBytes = 2 << 20 // 2 MiB cap on fetched markup
)

// Auth/redirect page heuristics: a body this short, or one carrying a
// sign-in marker, is the source bouncing us rather than answering.
const authPageMinLen = 512

// Markers are deliberately narrow: catalog pages legitimately carry a
// "sign in" link, so only full challenge pages should match.
var authPageMarkers = []string{`name="password"`, "captcha", "robot check", "enter the characters"}

// errAuthPage marks a candidate that answered with an authentication or
// redirect page instead of data.
var errAuthPage = errors.New("candidate answered with an auth page")

// BreakerConfig configures the per-endpoint circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// DirectConfig configures the direct-mode client. Endpoint templates carry
// two %s verbs: warehouse id, then batch or item id; candidates are tried
// in listed priority order.
type DirectConfig struct {
	IdentifierEndpoints []string
	WeightEndpoints     []string
	RequestsPerSecond   float64
	Burst               int
	Breaker             BreakerConfig
	HTTPClient          *http.Client
}

// endpoint is one fallback candidate with its own circuit breaker, so a
// repeatedly dead candidate fails fast to the next one.
type endpoint struct {
	template string
	breaker  *gobreaker.CircuitBreaker[string]
}

// DirectClient fetches markup straight from the source's endpoints and
// parses it locally. Implements domain.ExtractionClient.
type DirectClient struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	identifiers []*endpoint
	weights     []*endpoint
}

// NewDirectClient builds a direct-mode client.
func NewDirectClient(cfg DirectConfig, logger *slog.Logger) *DirectClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 2
	}

	c := &DirectClient{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		logger:     logger,
	}
	for _, t := range cfg.IdentifierEndpoints {
		c.identifiers = append(c.identifiers, newEndpoint(t, cfg.Breaker, logger))
	}
	for _, t := range cfg.WeightEndpoints {
		c.weights = append(c.weights, newEndpoint(t, cfg.Breaker, logger))
	}
	return c
}

func newEndpoint(template string, cfg BreakerConfig, logger *slog.Logger) *endpoint {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "source:" + template,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("endpoint breaker state change",
				"endpoint", name, "from", from.String(), "to", to.String())
		},
	})
	return &endpoint{template: template, breaker: cb}
}

// FetchIdentifiers implements domain.ExtractionClient.
func (c *DirectClient) FetchIdentifiers(ctx context.Context, warehouseID string, batchID domain.BatchID) ([]domain.ItemID, error) {
	body, err := c.fetchFirst(ctx, c.identifiers, warehouseID, string(batchID))
	if err != nil {
		return nil, domain.WrapOp("DirectClient.FetchIdentifiers", err)
	}
	ids := extract.Identifiers(body)
	if len(ids) == 0 {
		return nil, domain.NewDomainError("DirectClient.FetchIdentifiers", domain.ErrNotFound,
			fmt.Sprintf("batch %s", batchID))
	}
	return ids, nil
}

// FetchWeight implements domain.ExtractionClient.
func (c *DirectClient) FetchWeight(ctx context.Context, warehouseID string, itemID domain.ItemID) (domain.WeightValue, error) {
	body, err := c.fetchFirst(ctx, c.weights, warehouseID, string(itemID))
	if err != nil {
		return 0, domain.WrapOp("DirectClient.FetchWeight", err)
	}
	w, ok := extract.Weight(body)
	if !ok {
		return 0, domain.NewDomainError("DirectClient.FetchWeight", domain.ErrNotFound,
			fmt.Sprintf("item %s", itemID))
	}
	return w, nil
}

// fetchFirst walks the candidate list in priority order and returns the
// body of the first candidate that answers with data. A reachable candidate
// decides the request: no-match is reported by the caller as not-found, not
// papered over by widening the search to lower-priority mirrors.
func (c *DirectClient) fetchFirst(ctx context.Context, endpoints []*endpoint, args ...any) (string, error) {
	if len(endpoints) == 0 {
		return "", domain.ErrSourceUnreachable
	}

	sawAuth := false
	for _, ep := range endpoints {
		target := fmt.Sprintf(ep.template, args...)

		body, err := ep.breaker.Execute(func() (string, error) {
			return c.fetch(ctx, target)
		})
		switch {
		case err == nil:
			return body, nil
		case errors.Is(err, errAuthPage):
			sawAuth = true
			c.logger.Debug("candidate bounced to auth page", "target", target)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return "", err
		default:
			c.logger.Debug("candidate unreachable", "target", target, "error", err)
		}
	}

	if sawAuth {
		return "", domain.ErrAuthRequired
	}
	return "", domain.ErrSourceUnreachable
}

// fetch performs one paced GET and applies the auth-page heuristic.
func (c *DirectClient) fetch(ctx context.Context, target string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d from %s", resp.StatusCode, target)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	body := string(raw)
	if looksLikeAuthPage(body) {
		return "", errAuthPage
	}
	return body, nil
}

func looksLikeAuthPage(body string) bool {
	if len(body) < authPageMinLen {
		return true
	}
	lower := strings.ToLower(body)
	for _, marker := range authPageMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Compile-time interface check.
var _ domain.ExtractionClient = (*DirectClient)(nil)
