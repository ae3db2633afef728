package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	ListenAddr string
	DBPath     string

	// JWTSecret overrides the secret persisted in the settings table.
	// Leave empty in normal deployments so tokens survive restarts.
	JWTSecret string

	AnthropicAPIKey string
	AnthropicModel  string

	NominatimURL       string
	GoogleTokenInfoURL string
	GoogleClientID     string

	UploadDir string

	LogLevel string
	LogFile  string
}

// Load reads configuration from the environment, after loading a .env file
// if one exists (useful for local dev).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "reclaim.sqlite3"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		NominatimURL:       getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GoogleTokenInfoURL: getEnv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
