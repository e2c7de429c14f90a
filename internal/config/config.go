// Package config loads catalogctl settings from defaults, an optional YAML file and CATALOG_* env vars.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/and161185/catalog-admin/internal/credstore"
	"github.com/and161185/catalog-admin/internal/model"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. CATALOG_BACKEND_BASEURL.
	EnvPrefix = "CATALOG_"
	// FileName is looked up in the working directory and the config dir when no path is given.
	FileName = "catalogctl.yaml"
)

// Config is the full catalogctl configuration.
type Config struct {
	Log      Log      `koanf:"log" yaml:"log"`
	Backend  Backend  `koanf:"backend" yaml:"backend"`
	Firebase Firebase `koanf:"firebase" yaml:"firebase"`
	Session  Session  `koanf:"session" yaml:"session"`
	Catalog  Catalog  `koanf:"catalog" yaml:"catalog"`
	Metrics  Metrics  `koanf:"metrics" yaml:"metrics"`
}

// Log selects the zap level and encoder.
type Log struct {
	Level  string `koanf:"level" yaml:"level"`
	Pretty bool   `koanf:"pretty" yaml:"pretty"`
}

// Backend locates the catalog REST API.
type Backend struct {
	// BaseURL includes the API prefix, e.g. https://shop.example.com/api/web/v1.
	BaseURL string        `koanf:"baseURL" yaml:"baseURL"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

// Firebase configures the identity provider.
type Firebase struct {
	APIKey string `koanf:"apiKey" yaml:"apiKey"`
	// Endpoint overrides are for emulators and tests.
	IdentityEndpoint string `koanf:"identityEndpoint" yaml:"identityEndpoint"`
	TokenEndpoint    string `koanf:"tokenEndpoint" yaml:"tokenEndpoint"`
}

// Session controls credential persistence and sign-in throttling.
type Session struct {
	// StorePath is the credential file; empty selects the default under the config dir.
	StorePath string `koanf:"storePath" yaml:"storePath"`
	SignIn    SignIn `koanf:"signIn" yaml:"signIn"`
}

// SignIn tunes the sign-in limiter: MaxFailures within Window block the email for BlockFor.
type SignIn struct {
	MaxFailures       int           `koanf:"maxFailures" yaml:"maxFailures"`
	Window            time.Duration `koanf:"window" yaml:"window"`
	BlockFor          time.Duration `koanf:"blockFor" yaml:"blockFor"`
	AttemptsPerMinute int           `koanf:"attemptsPerMinute" yaml:"attemptsPerMinute"`
}

// Catalog tunes the catalog controller.
type Catalog struct {
	PageSize        int  `koanf:"pageSize" yaml:"pageSize"`
	PreserveOnError bool `koanf:"preserveOnError" yaml:"preserveOnError"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Addr enables the /metrics listener of the console when non-empty.
	Addr string `koanf:"addr" yaml:"addr"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Log:     Log{Level: "warn"},
		Backend: Backend{BaseURL: "http://localhost:3000/api/web/v1", Timeout: 15 * time.Second},
		Session: Session{
			StorePath: credstore.DefaultPath(),
			SignIn: SignIn{
				MaxFailures:       5,
				Window:            15 * time.Minute,
				BlockFor:          15 * time.Minute,
				AttemptsPerMinute: 10,
			},
		},
		Catalog: Catalog{PageSize: model.DefaultPageSize},
	}
}

// Load reads path (or the first FileName found when path is empty), then applies env overrides.
// A missing file is only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	configFile := path
	if configFile == "" {
		configFile = findFile(".", credstore.DefaultDir())
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, v string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			if key == "" {
				return "", nil
			}
			return canonicalizeEnvKey(key, existing), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables")
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend.baseURL is required")
	}
	if c.Backend.Timeout <= 0 {
		return errors.Errorf("backend.timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Catalog.PageSize < 1 {
		return errors.Errorf("catalog.pageSize must be >= 1, got %d", c.Catalog.PageSize)
	}
	if c.Session.SignIn.MaxFailures < 0 || c.Session.SignIn.AttemptsPerMinute < 0 {
		return errors.New("session.signIn limits must not be negative")
	}
	return nil
}

func findFile(dirs ...string) string {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// canonicalizeEnvKey maps BACKEND_BASEURL onto the key spelling already present in the file
// (backend.baseURL) so the two sources override each other instead of coexisting.
func canonicalizeEnvKey(raw string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(raw), "_")
	out := make([]string, 0, len(segments))
	cur := existing
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		matched, next, ok := matchSegment(cur, seg)
		if !ok {
			out = append(out, seg)
			cur = nil
			continue
		}
		out = append(out, matched)
		cur = next
	}
	return strings.Join(out, ".")
}

func matchSegment(cur map[string]any, seg string) (string, map[string]any, bool) {
	needle := fold(seg)
	for key, v := range cur {
		if fold(key) == needle {
			child, _ := v.(map[string]any)
			return key, child, true
		}
	}
	return "", nil, false
}

func fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
