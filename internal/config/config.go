// Package config implements TOML configuration loading for fleetmirror with
// a three-layer override chain: defaults -> config file -> environment
// variables. A .env file next to the process is folded into the environment
// first, so containerized deployments can ship credentials without touching
// the real environment.
package config

import "time"

// Config is the top-level configuration parsed from a TOML file.
type Config struct {
	Fleet Fleet `toml:"fleet"`
	Sync  Sync  `toml:"sync"`
	DB    DB    `toml:"db"`
}

// Fleet holds the connection settings for the upstream Fleet server.
type Fleet struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`

	// TLSVerify enables server certificate verification. Off by default:
	// lab Fleet deployments routinely run on self-signed certificates.
	TLSVerify bool `toml:"tls_verify"`

	// RequestTimeout bounds each individual API call. There is no per-phase
	// or per-run timeout.
	RequestTimeout duration `toml:"request_timeout"`
}

// Sync holds the engine tunables.
type Sync struct {
	// Workers bounds the concurrent detail-fetch pool.
	Workers int `toml:"workers"`

	// HostsPerPage is the host pagination page size.
	HostsPerPage int `toml:"hosts_per_page"`

	// Interval is the daemon's cycle period.
	Interval duration `toml:"interval"`
}

// DB holds the mirror database location.
type DB struct {
	Path string `toml:"path"`
}

// duration wraps time.Duration so TOML values like "30s" parse directly.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = duration(v)

	return nil
}

// Default values. Worker and page-size defaults match the upstream API's
// comfortable rate limits; the interval matches a five-minute reporting
// cadence.
const (
	defaultRequestTimeout = 30 * time.Second
	defaultWorkers        = 10
	defaultHostsPerPage   = 100
	defaultInterval       = 5 * time.Minute
	defaultDBPath         = "fleetmirror.db"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding so unset fields retain defaults, and
// the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Fleet: Fleet{
			TLSVerify:      false,
			RequestTimeout: duration(defaultRequestTimeout),
		},
		Sync: Sync{
			Workers:      defaultWorkers,
			HostsPerPage: defaultHostsPerPage,
			Interval:     duration(defaultInterval),
		},
		DB: DB{
			Path: defaultDBPath,
		},
	}
}

// Resolved is the effective configuration after the override chain, in the
// types the rest of the program consumes.
type Resolved struct {
	FleetURL       string
	FleetToken     string
	TLSVerify      bool
	RequestTimeout time.Duration
	Workers        int
	HostsPerPage   int
	Interval       time.Duration
	DBPath         string
}
