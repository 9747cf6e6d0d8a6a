package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variable names. The FLEET_* names match what the Fleet
// ecosystem's tooling already exports, so a host configured for other Fleet
// consumers works unmodified.
const (
	EnvFleetURL     = "FLEET_URL"
	EnvFleetToken   = "FLEET_API_TOKEN"
	EnvTLSVerify    = "FLEET_TLS_VERIFY"
	EnvDBPath       = "FLEETMIRROR_DB_PATH"
	EnvWorkers      = "SYNC_MAX_WORKERS"
	EnvHostsPerPage = "SYNC_HOSTS_PER_PAGE"
	EnvInterval     = "SYNC_INTERVAL_MINUTES"
)

// Load reads the TOML config file at path (defaults apply if path is empty
// or the file does not exist), folds a .env file into the process
// environment when present, applies environment overrides, validates, and
// returns the effective configuration.
func Load(path string) (*Resolved, error) {
	// Missing .env is the normal case; any other error is ignored too,
	// since the real environment still applies.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	resolved := &Resolved{
		FleetURL:       cfg.Fleet.URL,
		FleetToken:     cfg.Fleet.Token,
		TLSVerify:      cfg.Fleet.TLSVerify,
		RequestTimeout: time.Duration(cfg.Fleet.RequestTimeout),
		Workers:        cfg.Sync.Workers,
		HostsPerPage:   cfg.Sync.HostsPerPage,
		Interval:       time.Duration(cfg.Sync.Interval),
		DBPath:         cfg.DB.Path,
	}

	if err := applyEnvOverrides(resolved); err != nil {
		return nil, err
	}

	if err := validate(resolved); err != nil {
		return nil, err
	}

	return resolved, nil
}

// applyEnvOverrides lays environment values over the file/default layer.
// Environment wins because deployments override per-host without editing
// the shipped config file.
func applyEnvOverrides(r *Resolved) error {
	if v := os.Getenv(EnvFleetURL); v != "" {
		r.FleetURL = v
	}

	if v := os.Getenv(EnvFleetToken); v != "" {
		r.FleetToken = v
	}

	if v := os.Getenv(EnvDBPath); v != "" {
		r.DBPath = v
	}

	if v := os.Getenv(EnvTLSVerify); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvTLSVerify, err)
		}

		r.TLSVerify = b
	}

	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvWorkers, err)
		}

		r.Workers = n
	}

	if v := os.Getenv(EnvHostsPerPage); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvHostsPerPage, err)
		}

		r.HostsPerPage = n
	}

	if v := os.Getenv(EnvInterval); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvInterval, err)
		}

		r.Interval = time.Duration(n) * time.Minute
	}

	return nil
}

// validate accumulates every problem rather than stopping at the first, so
// a broken deployment gets one complete report.
func validate(r *Resolved) error {
	var errs []error

	if r.FleetURL != "" {
		if u, err := url.Parse(r.FleetURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("config: fleet url %q is not an absolute URL", r.FleetURL))
		}
	}

	if r.Workers < 1 {
		errs = append(errs, fmt.Errorf("config: workers must be at least 1, got %d", r.Workers))
	}

	if r.HostsPerPage < 1 {
		errs = append(errs, fmt.Errorf("config: hosts_per_page must be at least 1, got %d", r.HostsPerPage))
	}

	if r.Interval < time.Minute {
		errs = append(errs, fmt.Errorf("config: interval must be at least 1m, got %s", r.Interval))
	}

	if r.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("config: request_timeout must be positive, got %s", r.RequestTimeout))
	}

	if r.DBPath == "" {
		errs = append(errs, errors.New("config: db path must not be empty"))
	}

	return errors.Join(errs...)
}
