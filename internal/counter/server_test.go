package counter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/break-the-wall/internal/api"
	"github.com/pefman/break-the-wall/internal/events"
	"github.com/pefman/break-the-wall/internal/logging"
	"github.com/pefman/break-the-wall/internal/models"
	"github.com/pefman/break-the-wall/internal/stats"
	"github.com/pefman/break-the-wall/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ClickEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic == events.TopicClicked {
		p.events = append(p.events, event.(models.ClickEvent))
	}
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type brokenStore struct{}

func (brokenStore) Get(context.Context) (int64, error) { return 0, errors.New("disk gone") }
func (brokenStore) Incr(context.Context) (int64, error) { return 0, errors.New("disk gone") }
func (brokenStore) Close() error { return nil }

func newTestServer(t *testing.T, st store.Store, pub events.Publisher, opts Options) *httptest.Server {
	t.Helper()
	s := NewServer(st, pub, logging.Discard(), opts)
	s.now = func() time.Time { return time.Unix(1760000000, 0) }
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func decodeClicks(t *testing.T, resp *http.Response) int {
	t.Helper()
	defer resp.Body.Close()
	var body models.ClicksResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Clicks)
	return *body.Clicks
}

func TestGetAndPostClicks(t *testing.T) {
	stats.ResetDaily()
	pub := &recordingPublisher{}
	srv := newTestServer(t, store.NewMemory(41), pub, Options{})

	resp, err := http.Get(srv.URL + "/clicks")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, 41, decodeClicks(t, resp))

	resp, err = http.Post(srv.URL+"/click", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, 42, decodeClicks(t, resp))

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.ClickEvent{Clicks: 42, At: 1760000000}, pub.events[0])

	resp, err = http.Get(srv.URL + "/clicks/today")
	require.NoError(t, err)
	defer resp.Body.Close()
	var today models.DailyClicks
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&today))
	assert.Equal(t, 1, today.Clicks)
	assert.Len(t, today.Date, len("2006-01-02"))
}

func TestPublishFailureDoesNotFailIncrement(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), &recordingPublisher{err: errors.New("nats down")}, Options{})
	resp, err := http.Post(srv.URL+"/click", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decodeClicks(t, resp))
}

func TestWrongMethod(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), nil, Options{})
	resp, err := http.Get(srv.URL + "/click")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), nil, Options{})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/click", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), nil, Options{RateLimit: 0.001, RateBurst: 2})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/click", "", nil)
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// Reads are never limited.
	resp, err := http.Get(srv.URL + "/clicks")
	require.NoError(t, err)
	assert.Equal(t, 2, decodeClicks(t, resp))
}

func TestStoreFailure(t *testing.T) {
	srv := newTestServer(t, brokenStore{}, nil, Options{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/clicks"},
		{http.MethodPost, "/click"},
		{http.MethodGet, "/api/healthz"},
	} {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, tc.path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), nil, Options{})
	resp, err := http.Get(srv.URL + "/api/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// The client and server agree on the wire format end to end.
func TestAPIClientRoundTrip(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(76), nil, Options{})
	c := api.NewClient(srv.URL)

	n, err := c.GetCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 76, n)

	n, err = c.Increment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 77, n)
}

func TestClientLimiterCleanup(t *testing.T) {
	l := newClientLimiter(1, 1)
	for i := 0; i < 10001; i++ {
		l.limiters[time.Duration(i).String()] = nil
	}
	l.cleanup()
	assert.Empty(t, l.limiters)
	assert.True(t, l.allow("1.2.3.4"))
}
