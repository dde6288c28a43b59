package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/break-the-wall/internal/wall"
)

var _ wall.Counter = (*Client)(nil)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestGetCount(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/clicks", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"clicks": 314}`))
	})
	n, err := c.GetCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 314, n)
}

func TestGetCount_MissingFieldIsZero(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	n, err := c.GetCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetCount_Malformed(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>sleeping</html>`))
	})
	_, err := c.GetCount(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemote)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestGetCount_Status(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.GetCount(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "api status 502")
}

func TestIncrement(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/click", r.URL.Path)
		_, _ = w.Write([]byte(`{"clicks":77}`))
	})
	n, err := c.Increment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 77, n)
}

func TestIncrement_MissingFieldIsMalformed(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 3}`))
	})
	_, err := c.Increment(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestIncrement_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := NewClient(srv.URL)
	srv.Close()

	_, err := c.Increment(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemote)
}

func TestNewClient_DefaultsBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewClient("").BaseURL())
	assert.Equal(t, "http://x", NewClient("http://x").BaseURL())
}

func TestClientDrivesWallState(t *testing.T) {
	count := 83
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			count++
		}
		_, _ = w.Write([]byte(`{"clicks":` + strconv.Itoa(count) + `}`))
	})
	s := wall.New(wall.DefaultConfig(), c, &nopGate{})
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 0, s.Stage())

	res := s.AttemptClick(context.Background())
	assert.True(t, res.Remote)
	assert.Equal(t, 84, s.Count())
	assert.Equal(t, 1, s.Stage())
}

type nopGate struct{ date string }

func (g *nopGate) LastClickDate() (string, error) { return g.date, nil }
func (g *nopGate) SetLastClickDate(d string) error { g.date = d; return nil }
