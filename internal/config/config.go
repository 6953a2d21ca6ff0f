package config

import (
	"os"
	"strconv"
	"time"

	"contact_game/internal/game"
	"contact_game/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort   string
	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogJSON  bool

	Timings game.Timings

	// Rate limit for /ws connection attempts
	WSRateLimit  int
	WSRateWindow time.Duration
}

// Load reads .env and the environment.
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Empty REDIS_ADDR selects the in-process store (single node, dev runs).
	redisAddr := os.Getenv("REDIS_ADDR")
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	timings := game.DefaultTimings()
	if d := envSeconds("GAME_TIME_LIMIT_SECONDS"); d > 0 {
		timings.GameTimeLimit = d
	}
	if d := envSeconds("CONTACT_AWAITING_SECONDS"); d > 0 {
		timings.ContactAwaitingTime = d
	}
	if d := envSeconds("DISCONNECTION_AWAITING_SECONDS"); d > 0 {
		timings.DisconnectionAwaiting = d
	}
	if d := envSeconds("ROOM_CLEANING_DELAY_SECONDS"); d > 0 {
		timings.RoomCleaningDelay = d
	}
	if v := os.Getenv("PLAYERS_PER_ROOM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			timings.PlayersPerRoom = n
		}
	}

	wsRateLimit := 20
	if v := os.Getenv("WS_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			wsRateLimit = n
		}
	}
	wsRateWindow := time.Minute
	if d := envSeconds("WS_RATE_WINDOW_SECONDS"); d > 0 {
		wsRateWindow = d
	}

	return &Config{
		AppPort:       port,
		JWTSecret:     jwtSecret,
		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		LogLevel:      os.Getenv("LOG_LEVEL"),
		LogJSON:       os.Getenv("LOG_JSON") == "true",
		Timings:       timings,
		WSRateLimit:   wsRateLimit,
		WSRateWindow:  wsRateWindow,
	}
}

func envSeconds(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
