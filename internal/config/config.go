// Package config loads daemon settings from compiled defaults, an
// optional YAML file, and VEIL_* environment overrides, in that order.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr = "127.0.0.1:9470"
	DefaultDataDir    = "veil-data"
)

type Config struct {
	Listen      string
	DataDir     string
	BaseLinkURL string
	RPCToken    string
	RateLimit   RateLimit
	Metrics     Metrics
}

type RateLimit struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type Metrics struct {
	Enabled bool
}

func Default() Config {
	return Config{
		Listen:  DefaultListenAddr,
		DataDir: DefaultDataDir,
		// BaseLinkURL empty means the codec default applies.
		RateLimit: RateLimit{Enabled: true, RPS: 30, Burst: 60},
		Metrics:   Metrics{Enabled: false},
	}
}

type fileConfig struct {
	Daemon fileDaemonConfig `yaml:"daemon"`
}

type fileDaemonConfig struct {
	Listen           string  `yaml:"listen"`
	DataDir          string  `yaml:"dataDir"`
	BaseLinkURL      string  `yaml:"baseLinkURL"`
	RPCToken         string  `yaml:"rpcToken"`
	RateLimitEnabled *bool   `yaml:"rateLimitEnabled"`
	RateLimitRPS     float64 `yaml:"rateLimitRPS"`
	RateLimitBurst   int     `yaml:"rateLimitBurst"`
	MetricsEnabled   *bool   `yaml:"metricsEnabled"`
}

// LoadFromPath reads the config file at configPath, or probes the
// default candidate paths when it is empty. Unreadable or malformed
// files are skipped; environment overrides always apply last.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/handoffd.yaml",
			"handoffd.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}

		merged := cfg
		Merge(&merged, parsed.Daemon)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src fileDaemonConfig) {
	if src.Listen != "" {
		dst.Listen = src.Listen
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.BaseLinkURL != "" {
		dst.BaseLinkURL = src.BaseLinkURL
	}
	if src.RPCToken != "" {
		dst.RPCToken = src.RPCToken
	}
	if src.RateLimitEnabled != nil {
		dst.RateLimit.Enabled = *src.RateLimitEnabled
	}
	if src.RateLimitRPS > 0 {
		dst.RateLimit.RPS = src.RateLimitRPS
	}
	if src.RateLimitBurst > 0 {
		dst.RateLimit.Burst = src.RateLimitBurst
	}
	if src.MetricsEnabled != nil {
		dst.Metrics.Enabled = *src.MetricsEnabled
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if listen := envString("VEIL_RPC_ADDR"); listen != "" {
		cfg.Listen = listen
	}
	if dataDir := envString("VEIL_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if baseURL := envString("VEIL_LINK_BASE_URL"); baseURL != "" {
		cfg.BaseLinkURL = baseURL
	}
	if token := envString("VEIL_RPC_TOKEN"); token != "" {
		cfg.RPCToken = token
	}
	if v, ok := parseBoolEnv("VEIL_RPC_RATE_LIMIT_ENABLED"); ok {
		cfg.RateLimit.Enabled = v
	}
	if rps := envFloat("VEIL_RPC_RATE_LIMIT_RPS"); rps > 0 {
		cfg.RateLimit.RPS = rps
	}
	if burst := envIntWithFallback("VEIL_RPC_RATE_LIMIT_BURST", 0); burst > 0 {
		cfg.RateLimit.Burst = burst
	}
	if v, ok := parseBoolEnv("VEIL_METRICS_ENABLED"); ok {
		cfg.Metrics.Enabled = v
	}
}

// RequiresRPCToken reports whether the RPC server must refuse to start
// without a configured token. Fail-closed outside development
// environments, even when the override explicitly disables it.
func RequiresRPCToken() bool {
	if v, ok := parseBoolEnv("VEIL_REQUIRE_RPC_TOKEN"); ok {
		if !v && !IsNonProdEnv() {
			return true
		}
		return v
	}
	return !IsNonProdEnv()
}
