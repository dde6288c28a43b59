// Package config loads settings for both binaries from the environment, with
// an optional YAML manifest describing the wall's stages.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/pefman/break-the-wall/internal/wall"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Defaults fills target from its envDefault tags alone, ignoring the process
// environment. Command-line flags use it for their help text.
func Defaults(target any) {
	// The tags are fixed at compile time; a bad one shows up in tests.
	_ = env.ParseWithOptions(target, env.Options{Environment: map[string]string{}})
}

// Reload runs load and then re-applies every flag given on the command line,
// so flags win over the environment. The flags must be bound to the struct
// load fills.
func Reload(fs *pflag.FlagSet, load func() error) error {
	given := map[string]string{}
	fs.Visit(func(f *pflag.Flag) { given[f.Name] = f.Value.String() })
	if err := load(); err != nil {
		return err
	}
	for name, v := range given {
		if err := fs.Set(name, v); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return nil
}

type Logging struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// ========================= Counter service =========================

type Counter struct {
	Logging

	// PORT wins when present (Cloud Run style), then COUNTER_PORT.
	Port        string `env:"PORT"`
	CounterPort string `env:"COUNTER_PORT" envDefault:"8080"`

	Store      string `env:"COUNTER_STORE" envDefault:"memory"`
	SQLitePath string `env:"COUNTER_SQLITE_PATH" envDefault:"data/wall.db"`
	RedisAddr  string `env:"REDIS_ADDR"`
	RedisKey   string `env:"COUNTER_REDIS_KEY" envDefault:"wall:clicks"`
	NATSURL    string `env:"NATS_URL"`

	// Increments per second allowed per client address, and the burst on top.
	RateLimit float64 `env:"COUNTER_RATE_LIMIT" envDefault:"1"`
	RateBurst int     `env:"COUNTER_RATE_BURST" envDefault:"3"`
}

func LoadCounter() (Counter, error) {
	var c Counter
	if err := ParseEnv(&c); err != nil {
		return c, err
	}
	return c, nil
}

func (c Counter) ListenAddr() string {
	return listenAddr(c.Port, c.CounterPort)
}

// ========================= Wall widget =========================

type Wall struct {
	Logging

	Port     string `env:"PORT"`
	WallPort string `env:"WALL_PORT" envDefault:"8081"`

	CounterURL string `env:"COUNTER_URL" envDefault:"https://muur-backend.onrender.com"`
	// Zero means no client-side timeout beyond the transport's own.
	CounterTimeout time.Duration `env:"COUNTER_TIMEOUT" envDefault:"0s"`

	StagesFile string `env:"WALL_STAGES_FILE"`
	AssetsDir  string `env:"WALL_ASSETS_DIR" envDefault:"public"`
	// Fallback timezone when the browser does not report one.
	Timezone      string `env:"WALL_TIMEZONE" envDefault:"Local"`
	SecureCookies bool   `env:"WALL_SECURE_COOKIES" envDefault:"false"`
	RefreshSpec   string `env:"WALL_REFRESH" envDefault:"@every 30s"`
	NATSURL       string `env:"NATS_URL"`
}

func LoadWall() (Wall, error) {
	var c Wall
	if err := ParseEnv(&c); err != nil {
		return c, err
	}
	return c, nil
}

func (c Wall) ListenAddr() string {
	return listenAddr(c.Port, c.WallPort)
}

func (c Wall) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

func listenAddr(port, fallback string) string {
	p := strings.TrimSpace(port)
	if p == "" {
		p = fallback
	}
	if strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

// ========================= Stage manifest =========================

type stageManifest struct {
	Max    int      `yaml:"max"`
	Stages []string `yaml:"stages"`
}

// LoadStages reads the wall shape from a YAML manifest. An empty path gives
// the built-in seven stages and 500 clicks; omitted fields fall back the same
// way.
func LoadStages(path string) (wall.Config, error) {
	cfg := wall.DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read stage manifest: %w", err)
	}
	var m stageManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return cfg, fmt.Errorf("decode stage manifest %s: %w", path, err)
	}
	if m.Max != 0 {
		cfg.Max = m.Max
	}
	if len(m.Stages) > 0 {
		cfg.Stages = m.Stages
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
