package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/break-the-wall/internal/counter"
	"github.com/pefman/break-the-wall/internal/logging"
	"github.com/pefman/break-the-wall/internal/store"
)

func TestPunchCommandOncePerDay(t *testing.T) {
	st := store.NewMemory(41)
	backend := httptest.NewServer(counter.NewServer(st, nil, logging.Discard(), counter.Options{}).Router())
	defer backend.Close()
	path := filepath.Join(t.TempDir(), "gate.json")

	punch := func() string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{"punch", "--counter-url", backend.URL, "--gate-file", path, "--log-level", "error"})
		require.NoError(t, rootCmd.Execute())
		return out.String()
	}

	first := punch()
	assert.Contains(t, first, "Punch landed!")
	assert.Contains(t, first, "42 / 500 (stage 0, muur.png)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var kv map[string]string
	require.NoError(t, json.Unmarshal(data, &kv))
	assert.NotEmpty(t, kv["lastClickDate"])

	second := punch()
	assert.NotContains(t, second, "Punch landed!")
	assert.Contains(t, second, "Daily punch used")

	n, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}
