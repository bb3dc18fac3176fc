package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wombastisch/roundrank/internal/rating"
)

type Config struct {
	Env              string
	HTTPAddr         string
	DataFile         string
	FeedSecret       string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	AutosaveInterval time.Duration
	Rating           rating.Params
}

func Load() (*Config, error) {
	env := getenv("ENV", "development")

	// Load .env.{ENV} first, then .env as fallback
	loadEnvFile(".env." + env)
	loadEnvFile(".env")

	params := rating.DefaultParams()
	params.KFactor = getenvFloat("K_FACTOR", params.KFactor)
	params.DefaultElo = getenvFloat("DEFAULT_RATING", params.DefaultElo)
	params.WeightMin = getenvFloat("WEIGHT_MIN", params.WeightMin)
	params.WeightMax = getenvFloat("WEIGHT_MAX", params.WeightMax)
	params.WeightDivisor = getenvFloat("WEIGHT_DIVISOR", params.WeightDivisor)

	cfg := &Config{
		Env:              env,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		DataFile:         getenv("DATA_FILE", "roundrank_ratings.json"),
		FeedSecret:       getenv("FEED_SECRET", ""),
		DatabaseURL:      getenv("DATABASE_URL", ""),
		RedisAddr:        getenv("REDIS_ADDR", ""),
		RedisPassword:    getenv("REDIS_PASSWORD", ""),
		RedisDB:          getenvInt("REDIS_DB", 0),
		AutosaveInterval: time.Duration(getenvInt("AUTOSAVE_INTERVAL_SEC", 300)) * time.Second,
		Rating:           params,
	}

	if cfg.FeedSecret == "" {
		return nil, fmt.Errorf("FEED_SECRET is required")
	}
	if params.WeightMin > params.WeightMax {
		return nil, fmt.Errorf("WEIGHT_MIN %v exceeds WEIGHT_MAX %v", params.WeightMin, params.WeightMax)
	}

	return cfg, nil
}

// loadEnvFile parses a KEY=VALUE file and sets any keys not already present in os env.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		val = strings.Trim(val, `"'`)
		// Don't override existing env vars
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, val)
		}
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
