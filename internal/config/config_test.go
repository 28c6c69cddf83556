package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GATE_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "GEMA Gate", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, RealtimeTransportLocal, cfg.RealtimeTransport)
	require.Equal(t, "gema:gate", cfg.RealtimeChannel)
	require.Equal(t, 1500*time.Millisecond, cfg.ScanCooldown)
	require.Equal(t, 300*time.Millisecond, cfg.ScannerMountDelay)
	require.Equal(t, 48*time.Hour, cfg.LostFoundRetention)
	require.Equal(t, 5*time.Minute, cfg.IdentityCacheTTL)
	require.Equal(t, "pt-BR", cfg.Locale)
	require.Equal(t, "America/Sao_Paulo", cfg.Timezone)
	require.Equal(t, 8, cfg.PhotoMaxSizeMB)
	require.Equal(t, int64(40_000_000), cfg.PhotoMaxPixels)
	require.Equal(t, 70, cfg.PhotoJPEGQuality)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GATE_JWT_SECRET", "secret")
	t.Setenv("GATE_APP_PORT", ":9090")
	t.Setenv("GATE_SCAN_COOLDOWN", "2s")
	t.Setenv("GATE_LOST_FOUND_RETENTION", "72h")
	t.Setenv("GATE_REALTIME_TRANSPORT", "Redis")
	t.Setenv("GATE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("GATE_PHOTO_JPEG_QUALITY", "150")
	t.Setenv("GATE_PHOTO_MAX_PIXELS", "12000000")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 2*time.Second, cfg.ScanCooldown)
	require.Equal(t, 72*time.Hour, cfg.LostFoundRetention)
	require.Equal(t, RealtimeTransportRedis, cfg.RealtimeTransport)
	require.Equal(t, 70, cfg.PhotoJPEGQuality)
	require.Equal(t, int64(12_000_000), cfg.PhotoMaxPixels)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":    {},
		"bad duration":      {"GATE_JWT_SECRET": "s", "GATE_SCAN_COOLDOWN": "soon"},
		"negative duration": {"GATE_JWT_SECRET": "s", "GATE_SCANNER_MOUNT_DELAY": "-1s"},
		"unknown transport": {"GATE_JWT_SECRET": "s", "GATE_REALTIME_TRANSPORT": "kafka"},
		"nats without url":  {"GATE_JWT_SECRET": "s", "GATE_REALTIME_TRANSPORT": "nats"},
		"redis without url": {"GATE_JWT_SECRET": "s", "GATE_REALTIME_TRANSPORT": "redis"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("GATE_JWT_SECRET", "")
			for key, value := range env {
				t.Setenv(key, value)
			}

			_, err := Load()
			require.Error(t, err)
		})
	}
}
