// Package config resolves service configuration from an optional YAML file
// overlaid by environment variables. Env wins, so container deployments can
// override a checked-in file without editing it.
package config

import (
    "os"
    "strconv"

    yaml "gopkg.in/yaml.v3"
)

type Config struct {
    Port      string  `yaml:"port"`
    RateRPS   float64 `yaml:"rate_rps"`
    RateBurst int     `yaml:"rate_burst"`
}

func defaults() Config {
    return Config{Port: "8080", RateRPS: 0, RateBurst: 1}
}

// Load reads CONFIG_FILE (if set and readable) and applies env overrides.
func Load() Config {
    cfg := defaults()
    if path := os.Getenv("CONFIG_FILE"); path != "" {
        if b, err := os.ReadFile(path); err == nil {
            _ = yaml.Unmarshal(b, &cfg)
        }
    }
    if v := os.Getenv("PORT"); v != "" { cfg.Port = v }
    if v := os.Getenv("RATE_RPS"); v != "" {
        if f, err := strconv.ParseFloat(v, 64); err == nil { cfg.RateRPS = f }
    }
    if v := os.Getenv("RATE_BURST"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { cfg.RateBurst = n }
    }
    if cfg.Port == "" { cfg.Port = "8080" }
    if cfg.RateBurst <= 0 { cfg.RateBurst = 1 }
    return cfg
}
