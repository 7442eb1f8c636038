package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/lachlan2k/storefront-gate/internal/routes"
)

const (
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Environment overrides, applied after the TOML file.
const (
	EnvAPIURL      = "STOREFRONT_API_URL"
	EnvSessionPath = "STOREFRONT_SESSION_PATH"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// Interface to bind. The server acts with the stored session's
	// credentials, so keep it on loopback unless you know who can reach it.
	ListenAddr string `toml:"listen_addr"`
	ListenPort int    `toml:"port"`
	SigninPath string `toml:"signin_path"`

	// Extra origins (scheme://host[:port]) allowed to send state changing
	// requests, e.g. a frontend dev server. The server's own origin is
	// always allowed.
	AllowedOrigins []string `toml:"allowed_origins"`

	API struct {
		BaseURL string `toml:"base_url"`
		// Request timeout in seconds, 0 = none
		Timeout     int    `toml:"timeout"`
		ProfilePath string `toml:"profile_path"`
		OrdersPath  string `toml:"orders_path"`
	} `toml:"api"`

	Session struct {
		Backend string `toml:"backend"`
		// bbolt database file, used by the bolt backend
		Path string `toml:"path"`

		Redis struct {
			Addr     string `toml:"addr"`
			Password string `toml:"password"`
			DB       int    `toml:"db"`
			Prefix   string `toml:"prefix"`
		} `toml:"redis"`
	} `toml:"session"`

	Log struct {
		Level       string `toml:"level"`
		Development bool   `toml:"development"`
	} `toml:"log"`

	// Leave empty to use the built in storefront routes
	Routes []routes.Descriptor `toml:"routes"`

	table *routes.Table
}

// TOML unmarshalling leaves unset fields alone, so defaults go in first
func (c *Config) setDefaults() {
	c.ListenAddr = "127.0.0.1"
	c.ListenPort = 8080
	c.SigninPath = routes.SigninPath

	c.API.BaseURL = "http://localhost:5000/api"
	c.API.Timeout = 30
	c.API.ProfilePath = "/users/me"
	c.API.OrdersPath = "/orders"

	c.Session.Backend = BackendBolt
	c.Session.Path = "storefront-session.db"
	c.Session.Redis.Addr = "localhost:6379"
	// no prefix: the keys stay exactly token, role and email
	c.Session.Redis.Prefix = ""

	c.Log.Level = "info"
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvSessionPath); v != "" {
		c.Session.Path = v
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL)
	}

	if c.API.Timeout < 0 {
		return invalid("api.timeout can't be negative")
	}

	switch c.Session.Backend {
	case BackendBolt:
		if c.Session.Path == "" {
			return invalid("session.path is required by the bolt backend")
		}
	case BackendRedis:
		if c.Session.Redis.Addr == "" {
			return invalid("session.redis.addr is required by the redis backend")
		}
	case BackendMemory:
	default:
		return invalid("unknown session.backend %q, valid backends are bolt, redis and memory", c.Session.Backend)
	}

	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return invalid("port %d is out of range", c.ListenPort)
	}

	for _, origin := range c.AllowedOrigins {
		o, err := url.Parse(origin)
		if err != nil || o.Scheme == "" || o.Host == "" || (o.Path != "" && o.Path != "/") {
			return invalid("allowed_origins entry %q must look like scheme://host[:port]", origin)
		}
	}

	if !strings.HasPrefix(c.SigninPath, "/") {
		return invalid("signin_path %q must start with /", c.SigninPath)
	}

	tree := c.Routes
	if len(tree) == 0 {
		tree = routes.Default()
	}
	table, err := routes.Build(tree)
	if err != nil {
		return err
	}

	// a guarded sign-in page would redirect to itself forever
	if m, ok := table.Match(c.SigninPath); ok && m.Route.Access != routes.AccessNone {
		return invalid("signin_path %q resolves to route %q which is %s", c.SigninPath, m.Route.Name, m.Route.Access)
	}

	c.table = table
	return nil
}

// ListenAddress is the host:port the web server binds.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.ListenAddr, strconv.Itoa(c.ListenPort))
}

// RouteTable is the validated route table. It is only set on configs
// returned by this package.
func (c *Config) RouteTable() *routes.Table {
	return c.table
}

// Default is the configuration used when no file is given.
func Default() (*Config, error) {
	conf := new(Config)
	conf.setDefaults()
	conf.applyEnv()

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func Parse(data []byte) (*Config, error) {
	conf := new(Config)
	conf.setDefaults()

	if err := toml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	conf.applyEnv()

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// LoadDotEnv loads .env files into the environment; a missing file is fine.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	return godotenv.Load(existing...)
}

func LoadFromTomlFileAndValidate(filepath string) (*Config, error) {
	file, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	return Parse(file)
}
