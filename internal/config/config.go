package config

import (
	"os"
	"time"
)

type Config struct {
	Port          string
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	DBPath        string
	CacheTTL      time.Duration
	MaxRetries    int
	Cooldown      time.Duration
	MaxStaleness  time.Duration
	Workers       int
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		CacheBackend:  getEnv("CACHE_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		DBPath:        getEnv("DB_PATH", "quotehub.db"),
		CacheTTL:      getEnvSeconds("CACHE_TTL_SEC", 10*time.Minute),
		MaxRetries:    getEnvInt("MAX_RETRIES", 2),
		Cooldown:      getEnvSeconds("COOLDOWN_SEC", 5*time.Minute),
		MaxStaleness:  getEnvSeconds("MAX_CACHE_STALENESS_SEC", 10*time.Minute),
		Workers:       getEnvInt("WORKERS", 5),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if n := getEnvInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
