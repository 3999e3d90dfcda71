package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Session.JanitorInterval)
	assert.Equal(t, "session_token", cfg.Session.CookieName)
	assert.False(t, cfg.Session.MultiDeviceEnabled)
	assert.Equal(t, 3, cfg.Session.ConflictRetries)
	assert.Equal(t, 5*time.Second, cfg.IPLookup.AttemptTimeout)
	assert.Len(t, cfg.IPLookup.Services, 3)
	assert.Equal(t, 5, cfg.RateLimit.AuthLimit)
	assert.Equal(t, 20, cfg.RateLimit.AdminLimit)
	assert.Equal(t, 100, cfg.RateLimit.DefaultLimit)
}

func TestLoadFromEnvFile(t *testing.T) {
	chdirTemp(t)
	content := "SESSION_TTL=2h\nMULTI_DEVICE_ENABLED=true\nIP_LOOKUP_SERVICES=\"http://a.test#ip, http://b.test#origin\"\nKAFKA_BROKERS=k1:9092,k2:9092\nTRUSTED_PROXIES=10.0.0.0/8, 172.16.0.1\n"
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte(content), 0o600))
	t.Cleanup(func() {
		for _, key := range []string{"SESSION_TTL", "MULTI_DEVICE_ENABLED", "IP_LOOKUP_SERVICES", "KAFKA_BROKERS", "TRUSTED_PROXIES"} {
			_ = os.Unsetenv(key)
		}
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.Session.MultiDeviceEnabled)
	assert.Equal(t, []string{"http://a.test#ip", "http://b.test#origin"}, cfg.IPLookup.Services)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.1"}, cfg.TrustedProxies)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("not-a-duration", time.Minute))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", cfg.DSN())
}
