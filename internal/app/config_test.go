package app

import (
	"os"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	envVars := []string{
		"HTTP_ADDR", "API_BASE_URL", "API_TOKEN",
		"LOG_LEVEL", "LOG_FORMAT",
		"MONGO_URI", "MONGO_DB", "MONGO_COLLECTION",
		"CORS_ALLOWED_ORIGINS",
		"RECONNECT_BASE_DELAY_MS", "RECONNECT_MAX_DELAY_MS",
		"STREAMER_FILTER",
	}
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":8090"},
		{"APIBaseURL", cfg.APIBaseURL, "http://localhost:12555"},
		{"APIToken", cfg.APIToken, ""},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"MongoURI", cfg.MongoURI, ""},
		{"MongoDatabase", cfg.MongoDatabase, "recwatch"},
		{"MongoCollection", cfg.MongoCollection, "download_events"},
		{"ReconnectBaseMs", cfg.ReconnectBaseMs, int64(1000)},
		{"ReconnectMaxMs", cfg.ReconnectMaxMs, int64(30000)},
		{"StreamerFilter", cfg.StreamerFilter, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins: got %v, want empty", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	envs := map[string]string{
		"HTTP_ADDR":               ":9191",
		"API_BASE_URL":            "https://recorder.internal",
		"API_TOKEN":               "jwt-token",
		"LOG_LEVEL":               "DEBUG",
		"LOG_FORMAT":              "JSON",
		"MONGO_URI":               "mongodb://remote:27017",
		"MONGO_DB":                "mydb",
		"MONGO_COLLECTION":        "events",
		"CORS_ALLOWED_ORIGINS":    "http://localhost:3000, https://example.com",
		"RECONNECT_BASE_DELAY_MS": "500",
		"RECONNECT_MAX_DELAY_MS":  "10000",
		"STREAMER_FILTER":         "streamer-42",
	}
	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg := LoadConfig()

	if cfg.HTTPAddr != ":9191" || cfg.APIBaseURL != "https://recorder.internal" || cfg.APIToken != "jwt-token" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Fatalf("log settings not lowercased: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MongoURI != "mongodb://remote:27017" || cfg.MongoDatabase != "mydb" || cfg.MongoCollection != "events" {
		t.Fatalf("mongo settings = %q %q %q", cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	}
	if cfg.ReconnectBaseMs != 500 || cfg.ReconnectMaxMs != 10000 {
		t.Fatalf("reconnect delays = %d %d", cfg.ReconnectBaseMs, cfg.ReconnectMaxMs)
	}
	if cfg.StreamerFilter != "streamer-42" {
		t.Fatalf("streamer filter = %q", cfg.StreamerFilter)
	}

	wantOrigins := []string{"http://localhost:3000", "https://example.com"}
	if len(cfg.CORSAllowedOrigins) != len(wantOrigins) {
		t.Fatalf("CORSAllowedOrigins: got %d entries, want %d", len(cfg.CORSAllowedOrigins), len(wantOrigins))
	}
	for i, got := range cfg.CORSAllowedOrigins {
		if got != wantOrigins[i] {
			t.Errorf("CORSAllowedOrigins[%d]: got %q, want %q", i, got, wantOrigins[i])
		}
	}
}

func TestGetEnvInt64InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback int64
		want     int64
	}{
		{"empty string", "", 42, 42},
		{"not a number", "abc", 42, 42},
		{"negative number", "-5", 42, 42},
		{"zero", "0", 42, 0},
		{"valid positive", "100", 42, 100},
		{"whitespace around number", "  50  ", 42, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.envVal)
			got := getEnvInt64("TEST_INT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvInt64(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"single value", "http://localhost:3000", []string{"http://localhost:3000"}},
		{"values with spaces", " a , b , c ", []string{"a", "b", "c"}},
		{"empty entries filtered", "a,,b,", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCSV(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("parseCSV(%q) returned %d elements, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("parseCSV(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}
