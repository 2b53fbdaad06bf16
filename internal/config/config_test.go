package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)
	require.Equal(t, "https://loginexpress-ts-jwt.onrender.com/api", cfg.APIBaseURL)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, StoreFile, cfg.Store)
	require.True(t, cfg.Seal)
	require.Equal(t, "civictrack:", cfg.RedisPrefix)
	require.Equal(t, ":8088", cfg.DevAPI.Addr)
	require.Equal(t, time.Hour, cfg.DevAPI.TokenTTL)
	require.Equal(t, 5, cfg.DevAPI.MaxFailures)
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"CT_API_BASE_URL":      "http://localhost:8088/api",
		"CT_HTTP_TIMEOUT":      "5s",
		"CT_STORE":             "postgres",
		"CT_DATABASE_URL":      "postgres://u:p@localhost/ct",
		"CT_LOG_LEVEL":         "debug",
		"CT_DEVAPI_JWT_KEY":    "k",
		"CT_DEVAPI_TOKEN_TTL":  "10m",
		"CT_STORE_SEAL":        "false",
		"CT_REDIS_DB":          "3",
		"CT_OTLP_ENDPOINT":     "localhost:4317",
		"CT_OTLP_INSECURE":     "true",
		"CT_STORE_NAMESPACE":   "phone",
		"CT_STORE_PASSPHRASE":  "pp",
		"CT_DEVAPI_ADDR":       "127.0.0.1:9000",
		"CT_DEVAPI_LOCKOUT":    "1m",
		"UNPREFIXED_LOG_LEVEL": "error",
	})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8088/api", cfg.APIBaseURL)
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	require.Equal(t, StorePostgres, cfg.Store)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "k", cfg.DevAPI.JWTKey)
	require.Equal(t, 10*time.Minute, cfg.DevAPI.TokenTTL)
	require.Equal(t, time.Minute, cfg.DevAPI.Lockout)
	require.False(t, cfg.Seal)
	require.Equal(t, 3, cfg.RedisDB)
	require.True(t, cfg.OTLPInsecure)
	require.Equal(t, "phone", cfg.Namespace)
}

func TestFromMap_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad store":         {"CT_STORE": "sqlite"},
		"postgres no dsn":   {"CT_STORE": "postgres"},
		"bad url":           {"CT_API_BASE_URL": "not a url"},
		"bad level":         {"CT_LOG_LEVEL": "loud"},
		"zero timeout":      {"CT_HTTP_TIMEOUT": "0s"},
		"unparsable number": {"CT_REDIS_DB": "x"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromMap(vars)
			require.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg, err := FromMap(map[string]string{"CT_LOG_LEVEL": "info"})
	require.NoError(t, err)
	log, err := cfg.NewLogger()
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.InfoLevel))
	require.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
