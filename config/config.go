package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting read from the environment at startup.
type Config struct {
	Port              string
	MongoURI          string
	MongoDB           string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	JWTSecret         []byte
	TokenTTL          time.Duration
	Store             string
	HireStrategy      string
	RequestTimeout    time.Duration
	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration
	FrontendURL       string
	NotifyChannel     string
}

// Load reads .env if present and falls back to the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() *Config {
	port := getenv("PORT", ":8080")
	if port[0] != ':' {
		port = ":" + port
	}

	return &Config{
		Port:              port,
		MongoURI:          getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:           getenv("MONGO_DB", "gigmarket"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getint("REDIS_DB", 0),
		JWTSecret:         []byte(getenv("JWT_SECRET", "change_me")),
		TokenTTL:          getduration("TOKEN_TTL", 7*24*time.Hour),
		Store:             strings.ToLower(getenv("STORE", "mongo")),
		HireStrategy:      strings.ToLower(getenv("HIRE_STRATEGY", "auto")),
		RequestTimeout:    getduration("REQUEST_TIMEOUT", 5*time.Second),
		ReconcileInterval: getduration("RECONCILE_INTERVAL", time.Minute),
		ReconcileGrace:    getduration("RECONCILE_GRACE", 30*time.Second),
		FrontendURL:       getenv("FRONTEND_URL", "http://localhost:5173"),
		NotifyChannel:     getenv("NOTIFY_CHANNEL", "gig-events"),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}
