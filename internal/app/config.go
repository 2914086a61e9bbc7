package app

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr           string
	APIBaseURL         string // recorder API base URL the feed is dialed from
	APIToken           string // empty = start unauthenticated, feed stays down
	LogLevel           string
	LogFormat          string
	MongoURI           string // empty = event journal disabled
	MongoDatabase      string
	MongoCollection    string
	CORSAllowedOrigins []string
	ReconnectBaseMs    int64
	ReconnectMaxMs     int64
	StreamerFilter     string // optional startup filter; empty = all streamers
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8090"),
		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:12555"),
		APIToken:           getEnv("API_TOKEN", ""),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		MongoURI:           getEnv("MONGO_URI", ""),
		MongoDatabase:      getEnv("MONGO_DB", "recwatch"),
		MongoCollection:    getEnv("MONGO_COLLECTION", "download_events"),
		CORSAllowedOrigins: parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		ReconnectBaseMs:    getEnvInt64("RECONNECT_BASE_DELAY_MS", 1000),
		ReconnectMaxMs:     getEnvInt64("RECONNECT_MAX_DELAY_MS", 30000),
		StreamerFilter:     getEnv("STREAMER_FILTER", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
