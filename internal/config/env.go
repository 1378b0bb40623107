package config

import (
	"os"
	"strconv"
	"strings"
)

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envFloat(key string) float64 {
	raw := envString(key)
	if raw == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func envIntWithFallback(key string, fallback int) int {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBoolEnv(name string) (bool, bool) {
	switch strings.ToLower(envString(name)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func IsNonProdEnv() bool {
	switch strings.ToLower(envString("VEIL_ENV")) {
	case "test", "testing", "dev", "development", "local":
		return true
	default:
		return false
	}
}

func IsProductionEnv() bool {
	switch strings.ToLower(envString("VEIL_ENV")) {
	case "prod", "production":
		return true
	default:
		return false
	}
}
