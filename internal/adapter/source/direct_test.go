package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighbridge/internal/domain"
)

// pagePadding keeps test bodies above the short-body auth heuristic.
var pagePadding = strings.Repeat("<p>inventory listing padding</p>\n", 30)

func weightPage(w string) string {
	return fmt.Sprintf(`<html><body>%s<table><tr><th>Item weight</th><td>%s lb</td></tr></table></body></html>`,
		pagePadding, w)
}

func identifierPage(ids ...string) string {
	var rows strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>1</td></tr>", id)
	}
	return fmt.Sprintf(`<html><body>%s<table><tr><th>FNSKU</th><th>Qty</th></tr>%s</table></body></html>`,
		pagePadding, rows.String())
}

func authPage() string {
	return `<html><body><form><input name="password"/>captcha</form></body></html>`
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newDirect(t *testing.T, cfg DirectConfig) *DirectClient {
	t.Helper()
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	return NewDirectClient(cfg, slog.Default())
}

func TestFetchWeightFallsBackPastAuthPages(t *testing.T) {
	auth1, hits1 := countingServer(t, http.StatusOK, authPage())
	auth2, hits2 := countingServer(t, http.StatusOK, authPage())
	ok, okHits := countingServer(t, http.StatusOK, weightPage("7.5"))

	c := newDirect(t, DirectConfig{
		WeightEndpoints: []string{
			auth1.URL + "/items?wh=%s&id=%s",
			auth2.URL + "/items?wh=%s&id=%s",
			ok.URL + "/items?wh=%s&id=%s",
		},
	})

	w, err := c.FetchWeight(context.Background(), "us-east", "X0001ABCDE")
	require.NoError(t, err)
	assert.Equal(t, domain.WeightValue(7.5), w)
	assert.Equal(t, int32(1), hits1.Load())
	assert.Equal(t, int32(1), hits2.Load())
	assert.Equal(t, int32(1), okHits.Load(), "exactly one successful attempt")
}

func TestFetchWeightAllAuthPages(t *testing.T) {
	auth, _ := countingServer(t, http.StatusOK, authPage())

	c := newDirect(t, DirectConfig{
		WeightEndpoints: []string{auth.URL + "/a?%s=%s", auth.URL + "/b?%s=%s"},
	})

	_, err := c.FetchWeight(context.Background(), "us-east", "X0001ABCDE")
	assert.True(t, errors.Is(err, domain.ErrAuthRequired), "got %v", err)
}

func TestFetchWeightAllUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close() // connection refused from here on

	c := newDirect(t, DirectConfig{
		WeightEndpoints: []string{dead.URL + "/a?%s=%s"},
	})

	_, err := c.FetchWeight(context.Background(), "us-east", "X0001ABCDE")
	assert.True(t, errors.Is(err, domain.ErrSourceUnreachable), "got %v", err)
}

func TestFetchWeightNonSuccessStatusFallsBack(t *testing.T) {
	bad, _ := countingServer(t, http.StatusServiceUnavailable, "oops")
	ok, _ := countingServer(t, http.StatusOK, weightPage("2.25"))

	c := newDirect(t, DirectConfig{
		WeightEndpoints: []string{bad.URL + "/a?%s=%s", ok.URL + "/b?%s=%s"},
	})

	w, err := c.FetchWeight(context.Background(), "us-east", "X0001ABCDE")
	require.NoError(t, err)
	assert.Equal(t, domain.WeightValue(2.25), w)
}

func TestFetchWeightReachableButNoData(t *testing.T) {
	empty, _ := countingServer(t, http.StatusOK, "<html><body>"+pagePadding+"</body></html>")
	never, neverHits := countingServer(t, http.StatusOK, weightPage("1.0"))

	c := newDirect(t, DirectConfig{
		WeightEndpoints: []string{empty.URL + "/a?%s=%s", never.URL + "/b?%s=%s"},
	})

	_, err := c.FetchWeight(context.Background(), "us-east", "X0001ABCDE")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
	// A reachable candidate decides; lower-priority mirrors are not consulted.
	assert.Equal(t, int32(0), neverHits.Load())
}

func TestFetchIdentifiers(t *testing.T) {
	ok, _ := countingServer(t, http.StatusOK, identifierPage("X0001ABCDE", "X0001ABCDE", "X0002FGHIJ"))

	c := newDirect(t, DirectConfig{
		IdentifierEndpoints: []string{ok.URL + "/batches?wh=%s&batch=%s"},
	})

	ids, err := c.FetchIdentifiers(context.Background(), "us-east", "FBA123")
	require.NoError(t, err)
	// Duplicates preserved: repeated rows are repeated physical items.
	assert.Equal(t, []domain.ItemID{"X0001ABCDE", "X0001ABCDE", "X0002FGHIJ"}, ids)
}

func TestOpenBreakerSkipsCandidate(t *testing.T) {
	failing, failHits := countingServer(t, http.StatusServiceUnavailable, "oops")
	ok, _ := countingServer(t, http.StatusOK, weightPage("3.0"))

	c := newDirect(t, DirectConfig{
		WeightEndpoints: []string{failing.URL + "/a?%s=%s", ok.URL + "/b?%s=%s"},
		Breaker:         BreakerConfig{MaxFailures: 1},
	})
	ctx := context.Background()

	// First call trips the breaker on the failing candidate.
	_, err := c.FetchWeight(ctx, "us-east", "X0001ABCDE")
	require.NoError(t, err)
	// Second call fails fast past the open breaker without another hit.
	_, err = c.FetchWeight(ctx, "us-east", "X0002FGHIJ")
	require.NoError(t, err)

	assert.Equal(t, int32(1), failHits.Load())
}
