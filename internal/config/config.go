package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Realtime transports understood by the hub.
const (
	RealtimeTransportLocal = "local"
	RealtimeTransportRedis = "redis"
	RealtimeTransportNATS  = "nats"
)

// Config holds runtime configuration values for the gate service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	RealtimeTransport      string
	RealtimeChannel        string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	ScanCooldown           time.Duration
	ScannerMountDelay      time.Duration
	LostFoundRetention     time.Duration
	IdentityCacheTTL       time.Duration
	SSEKeepAlive           time.Duration
	PhotoMaxSizeMB         int
	PhotoMaxDimension      int
	PhotoMaxPixels         int64
	PhotoJPEGQuality       int
	Locale                 string
	Timezone               string
	UploadRateLimit        int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Gate")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("realtime.transport", RealtimeTransportLocal)
	v.SetDefault("realtime.channel", "gema:gate")
	v.SetDefault("cloudinary.folder", "gema/lost-found")
	v.SetDefault("scan.cooldown", "1500ms")
	v.SetDefault("scanner.mount_delay", "300ms")
	v.SetDefault("lost_found.retention", "48h")
	v.SetDefault("identity.cache_ttl", "5m")
	v.SetDefault("sse.keepalive", "30s")
	v.SetDefault("photo.max_size_mb", 8)
	v.SetDefault("photo.max_dimension", 1280)
	v.SetDefault("photo.max_pixels", 40_000_000)
	v.SetDefault("photo.jpeg_quality", 70)
	v.SetDefault("locale", "pt-BR")
	v.SetDefault("timezone", "America/Sao_Paulo")
	v.SetDefault("upload.rate_limit", 20)

	durations := map[string]time.Duration{}
	for _, key := range []string{"scan.cooldown", "scanner.mount_delay", "lost_found.retention", "identity.cache_ttl", "sse.keepalive"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("duration for %s must not be negative", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeTransport:      strings.ToLower(strings.TrimSpace(v.GetString("realtime.transport"))),
		RealtimeChannel:        v.GetString("realtime.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		ScanCooldown:           durations["scan.cooldown"],
		ScannerMountDelay:      durations["scanner.mount_delay"],
		LostFoundRetention:     durations["lost_found.retention"],
		IdentityCacheTTL:       durations["identity.cache_ttl"],
		SSEKeepAlive:           durations["sse.keepalive"],
		PhotoMaxSizeMB:         v.GetInt("photo.max_size_mb"),
		PhotoMaxDimension:      v.GetInt("photo.max_dimension"),
		PhotoMaxPixels:         v.GetInt64("photo.max_pixels"),
		PhotoJPEGQuality:       v.GetInt("photo.jpeg_quality"),
		Locale:                 v.GetString("locale"),
		Timezone:               v.GetString("timezone"),
		UploadRateLimit:        v.GetInt("upload.rate_limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.RealtimeTransport {
	case RealtimeTransportLocal, RealtimeTransportRedis, RealtimeTransportNATS:
	default:
		return Config{}, fmt.Errorf("unknown realtime transport %q", cfg.RealtimeTransport)
	}
	if cfg.RealtimeTransport == RealtimeTransportNATS && cfg.NATSURL == "" {
		return Config{}, fmt.Errorf("nats url required for nats realtime transport")
	}
	if cfg.RealtimeTransport == RealtimeTransportRedis && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("redis url required for redis realtime transport")
	}

	if cfg.LostFoundRetention == 0 {
		cfg.LostFoundRetention = 48 * time.Hour
	}

	if cfg.PhotoMaxSizeMB <= 0 {
		cfg.PhotoMaxSizeMB = 8
	}

	if cfg.PhotoMaxDimension <= 0 {
		cfg.PhotoMaxDimension = 1280
	}

	if cfg.PhotoMaxPixels <= 0 {
		cfg.PhotoMaxPixels = 40_000_000
	}

	if cfg.PhotoJPEGQuality <= 0 || cfg.PhotoJPEGQuality > 100 {
		cfg.PhotoJPEGQuality = 70
	}

	return cfg, nil
}
