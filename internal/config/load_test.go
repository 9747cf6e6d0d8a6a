package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearFleetEnv keeps ambient environment out of the tests. t.Setenv
// restores the originals automatically.
func clearFleetEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		EnvFleetURL, EnvFleetToken, EnvTLSVerify, EnvDBPath,
		EnvWorkers, EnvHostsPerPage, EnvInterval,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearFleetEnv(t)

	r, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, r.FleetURL)
	assert.Empty(t, r.FleetToken)
	assert.False(t, r.TLSVerify)
	assert.Equal(t, 30*time.Second, r.RequestTimeout)
	assert.Equal(t, 10, r.Workers)
	assert.Equal(t, 100, r.HostsPerPage)
	assert.Equal(t, 5*time.Minute, r.Interval)
	assert.Equal(t, "fleetmirror.db", r.DBPath)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearFleetEnv(t)

	r, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 10, r.Workers)
}

func TestLoadTOMLFile(t *testing.T) {
	clearFleetEnv(t)

	path := filepath.Join(t.TempDir(), "fleetmirror.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[fleet]
url = "https://fleet.example.com"
token = "secret"
tls_verify = true
request_timeout = "10s"

[sync]
workers = 4
hosts_per_page = 50
interval = "2m"

[db]
path = "/var/lib/fleetmirror/mirror.db"
`), 0o600))

	r, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://fleet.example.com", r.FleetURL)
	assert.Equal(t, "secret", r.FleetToken)
	assert.True(t, r.TLSVerify)
	assert.Equal(t, 10*time.Second, r.RequestTimeout)
	assert.Equal(t, 4, r.Workers)
	assert.Equal(t, 50, r.HostsPerPage)
	assert.Equal(t, 2*time.Minute, r.Interval)
	assert.Equal(t, "/var/lib/fleetmirror/mirror.db", r.DBPath)
}

func TestLoadPartialTOMLKeepsDefaults(t *testing.T) {
	clearFleetEnv(t)

	path := filepath.Join(t.TempDir(), "fleetmirror.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[fleet]
url = "https://fleet.example.com"
`), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://fleet.example.com", r.FleetURL)
	assert.Equal(t, 10, r.Workers, "unset sections keep defaults")
	assert.Equal(t, 30*time.Second, r.RequestTimeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearFleetEnv(t)

	path := filepath.Join(t.TempDir(), "fleetmirror.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[fleet]
url = "https://file.example.com"

[sync]
workers = 4
`), 0o600))

	t.Setenv(EnvFleetURL, "https://env.example.com")
	t.Setenv(EnvFleetToken, "env-token")
	t.Setenv(EnvTLSVerify, "true")
	t.Setenv(EnvWorkers, "8")
	t.Setenv(EnvHostsPerPage, "25")
	t.Setenv(EnvInterval, "15")
	t.Setenv(EnvDBPath, "/tmp/env.db")

	r, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", r.FleetURL)
	assert.Equal(t, "env-token", r.FleetToken)
	assert.True(t, r.TLSVerify)
	assert.Equal(t, 8, r.Workers)
	assert.Equal(t, 25, r.HostsPerPage)
	assert.Equal(t, 15*time.Minute, r.Interval)
	assert.Equal(t, "/tmp/env.db", r.DBPath)
}

func TestLoadBadTOML(t *testing.T) {
	clearFleetEnv(t)

	path := filepath.Join(t.TempDir(), "fleetmirror.toml")
	require.NoError(t, os.WriteFile(path, []byte("[fleet\nbroken"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "parsing")
}

func TestLoadBadEnvValues(t *testing.T) {
	clearFleetEnv(t)

	t.Setenv(EnvWorkers, "many")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorContains(t, err, EnvWorkers)
}

func TestValidateAccumulatesErrors(t *testing.T) {
	err := validate(&Resolved{
		FleetURL:       "not a url",
		Workers:        0,
		HostsPerPage:   0,
		Interval:       time.Second,
		RequestTimeout: 0,
		DBPath:         "",
	})

	require.Error(t, err)
	assert.ErrorContains(t, err, "not an absolute URL")
	assert.ErrorContains(t, err, "workers")
	assert.ErrorContains(t, err, "hosts_per_page")
	assert.ErrorContains(t, err, "interval")
	assert.ErrorContains(t, err, "request_timeout")
	assert.ErrorContains(t, err, "db path")
}

func TestValidateEmptyURLAllowed(t *testing.T) {
	// No URL means the no-token no-op path; it must not fail validation.
	err := validate(&Resolved{
		Workers:        1,
		HostsPerPage:   1,
		Interval:       time.Minute,
		RequestTimeout: time.Second,
		DBPath:         "x.db",
	})
	assert.NoError(t, err)
}
