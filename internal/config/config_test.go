package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/break-the-wall/internal/wall"
)

func TestLoadCounter_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	c, err := LoadCounter()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.ListenAddr())
	assert.Equal(t, "memory", c.Store)
	assert.Equal(t, "wall:clicks", c.RedisKey)
	assert.Equal(t, "info", c.Level)
	assert.Equal(t, 1.0, c.RateLimit)
	assert.Equal(t, 3, c.RateBurst)
}

func TestLoadCounter_PortOverride(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("COUNTER_PORT", "7000")
	t.Setenv("COUNTER_STORE", "sqlite")
	c, err := LoadCounter()
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.ListenAddr())
	assert.Equal(t, "sqlite", c.Store)
}

func TestLoadWall(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("WALL_PORT", "127.0.0.1:8999")
	t.Setenv("COUNTER_TIMEOUT", "3s")
	t.Setenv("WALL_TIMEZONE", "Europe/Amsterdam")
	c, err := LoadWall()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8999", c.ListenAddr())
	assert.Equal(t, 3*time.Second, c.CounterTimeout)
	assert.Equal(t, "https://muur-backend.onrender.com", c.CounterURL)

	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Amsterdam", loc.String())
}

func TestLoadWall_BadDuration(t *testing.T) {
	t.Setenv("COUNTER_TIMEOUT", "soon")
	_, err := LoadWall()
	assert.Error(t, err)
}

func TestDefaultsIgnoreEnvironment(t *testing.T) {
	t.Setenv("COUNTER_TIMEOUT", "soon")
	t.Setenv("WALL_PORT", "9000")
	var w Wall
	Defaults(&w)
	assert.Equal(t, "8081", w.WallPort)
	assert.Equal(t, time.Duration(0), w.CounterTimeout)
	assert.Equal(t, "@every 30s", w.RefreshSpec)

	var c Counter
	Defaults(&c)
	assert.Equal(t, "memory", c.Store)
	assert.Equal(t, 3, c.RateBurst)
}

func TestReloadFlagsBeatEnvironment(t *testing.T) {
	t.Setenv("WALL_PORT", "9000")
	t.Setenv("COUNTER_URL", "http://from-env")
	t.Setenv("COUNTER_TIMEOUT", "3s")

	var w Wall
	Defaults(&w)
	fs := pflag.NewFlagSet("wall", pflag.ContinueOnError)
	fs.StringVar(&w.WallPort, "port", w.WallPort, "")
	fs.StringVar(&w.CounterURL, "counter-url", w.CounterURL, "")
	fs.DurationVar(&w.CounterTimeout, "counter-timeout", w.CounterTimeout, "")
	require.NoError(t, fs.Parse([]string{"--port", "7000", "--counter-timeout", "1s"}))

	err := Reload(fs, func() error {
		c, err := LoadWall()
		w = c
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "7000", w.WallPort)
	assert.Equal(t, time.Second, w.CounterTimeout)
	assert.Equal(t, "http://from-env", w.CounterURL, "unset flags keep the environment value")
}

func TestReloadReturnsEnvError(t *testing.T) {
	t.Setenv("COUNTER_TIMEOUT", "soon")
	fs := pflag.NewFlagSet("wall", pflag.ContinueOnError)
	err := Reload(fs, func() error {
		_, err := LoadWall()
		return err
	})
	assert.Error(t, err)
}

func TestWallLocation(t *testing.T) {
	loc, err := Wall{Timezone: "local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = Wall{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}

func TestLoadStages(t *testing.T) {
	cfg, err := LoadStages("")
	require.NoError(t, err)
	assert.Equal(t, wall.DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "stages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max: 10\nstages:\n  - a.png\n  - b.png\n  - c.png\n"), 0o644))
	cfg, err = LoadStages(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Max)
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, cfg.Stages)
	assert.Equal(t, 1, cfg.StageForCount(5))
}

func TestLoadStages_PartialManifestKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max: 50\n"), 0o644))
	cfg, err := LoadStages(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Max)
	assert.Equal(t, wall.DefaultStages, cfg.Stages)
}

func TestLoadStages_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max: -1\n"), 0o644))
	_, err := LoadStages(path)
	assert.Error(t, err)

	_, err = LoadStages(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
