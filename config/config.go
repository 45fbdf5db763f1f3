package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port            int
	RedisURL        string
	RedisPassword   string
	MaxSessions     int
	SessionTimeout  time.Duration
	GeminiAPIKey    string
	AllowedOrigins  []string
	KeepAlivePeriod time.Duration

	LiveModel   string
	VisionModel string
	VoiceName   string

	// SettleDelay is slept after any tool named in SettleTools.
	SettleDelay time.Duration
	SettleTools []string

	Screen ScreenConfig
	Logger LoggerConfig
}

// ScreenConfig controls screenshot capture and streaming
type ScreenConfig struct {
	Command      []string
	MaxDimension int
	GridStep     int
	JPEGQuality  int
	Interval     time.Duration // 0 disables periodic streaming
}

// LoggerConfig controls the zap logger
type LoggerConfig struct {
	Level       string
	Format      string // "console" or "json"
	LogFile     string
	MaxSize     int // megabytes
	MaxBackups  int
	MaxAge      int // days
	Compress    bool
	ServiceName string
}

// Default returns the configuration used when no environment overrides are set.
// GeminiAPIKey is left empty.
func Default() *Config {
	return &Config{
		Port:            8080,
		RedisURL:        "localhost:6379",
		RedisPassword:   "",
		MaxSessions:     100,
		SessionTimeout:  30 * time.Minute,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: 30 * time.Second,
		LiveModel:       "gemini-2.0-flash-live-001",
		VisionModel:     "gemini-2.0-flash",
		VoiceName:       "Zephyr",
		SettleDelay:     time.Second,
		SettleTools:     []string{"press_key", "click_mouse"},
		Screen: ScreenConfig{
			Command:      []string{"import", "-silent", "-window", "root", "png:-"},
			MaxDimension: 1024,
			GridStep:     100,
			JPEGQuality:  70,
		},
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      7,
			ServiceName: "livedesk",
		},
	}
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := Default()

	// Required: GEMINI_API_KEY (GOOGLE_API_KEY is accepted as well)
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		config.GeminiAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	if err := intEnv("PORT", &config.Port); err != nil {
		return nil, err
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	if err := intEnv("MAX_SESSIONS", &config.MaxSessions); err != nil {
		return nil, err
	}
	if config.MaxSessions <= 0 {
		return nil, fmt.Errorf("invalid MAX_SESSIONS: must be greater than 0")
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if err := durationEnv("SESSION_TIMEOUT", time.Minute, &config.SessionTimeout); err != nil {
		return nil, err
	}
	if config.SessionTimeout <= 0 {
		return nil, fmt.Errorf("invalid SESSION_TIMEOUT: must be greater than 0")
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = splitList(origins)
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if err := durationEnv("KEEPALIVE_PERIOD", time.Second, &config.KeepAlivePeriod); err != nil {
		return nil, err
	}

	if model := os.Getenv("LIVE_MODEL"); model != "" {
		config.LiveModel = model
	}
	if model := os.Getenv("VISION_MODEL"); model != "" {
		config.VisionModel = model
	}
	if voice := os.Getenv("VOICE_NAME"); voice != "" {
		config.VoiceName = voice
	}

	// Optional: SETTLE_DELAY_MS (in milliseconds)
	if err := durationEnv("SETTLE_DELAY_MS", time.Millisecond, &config.SettleDelay); err != nil {
		return nil, err
	}
	if tools, ok := os.LookupEnv("SETTLE_TOOLS"); ok {
		config.SettleTools = splitList(tools)
	}

	if command := os.Getenv("SCREENSHOT_COMMAND"); command != "" {
		config.Screen.Command = strings.Fields(command)
	}
	if err := intEnv("SCREEN_MAX_DIMENSION", &config.Screen.MaxDimension); err != nil {
		return nil, err
	}
	if err := intEnv("SCREEN_GRID_STEP", &config.Screen.GridStep); err != nil {
		return nil, err
	}
	if err := intEnv("SCREEN_JPEG_QUALITY", &config.Screen.JPEGQuality); err != nil {
		return nil, err
	}
	if config.Screen.JPEGQuality < 1 || config.Screen.JPEGQuality > 100 {
		return nil, fmt.Errorf("invalid SCREEN_JPEG_QUALITY: must be between 1 and 100")
	}
	// Optional: SCREEN_INTERVAL (in seconds)
	if err := durationEnv("SCREEN_INTERVAL", time.Second, &config.Screen.Interval); err != nil {
		return nil, err
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logger.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		switch format {
		case "console", "json":
			config.Logger.Format = format
		default:
			return nil, fmt.Errorf("invalid LOG_FORMAT: must be 'console' or 'json'")
		}
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		config.Logger.LogFile = logFile
	}

	return config, nil
}

func intEnv(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func durationEnv(key string, unit time.Duration, dst *time.Duration) error {
	var n int
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	if err := intEnv(key, &n); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("invalid %s: must not be negative", key)
	}
	*dst = time.Duration(n) * unit
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
