package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// MaxRoomCapacity is the largest room, judge included.
const MaxRoomCapacity = 9

type Config struct {
	Port                     string
	MaxParticipants          int
	CountdownTicks           int
	MaxAwardPoints           int
	AutoSubmitGraceSeconds   int
	DisconnectGraceSeconds   int
	EmptyRoomTTLSeconds      int
	RoomCodeLength           int
	MaxDrawingBytes          int
	CreateRoomPerMinute      int
	DatabaseURL              string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
	RedisAddr                string
	RedisPassword            string
	CodeRetentionHours       int
	AllowedOrigins           []string
	LogLevel                 string
	LogPretty                bool
}

func Default() Config {
	return Config{
		Port:                     "8080",
		MaxParticipants:          MaxRoomCapacity,
		CountdownTicks:           3,
		MaxAwardPoints:           10,
		AutoSubmitGraceSeconds:   2,
		DisconnectGraceSeconds:   0,
		EmptyRoomTTLSeconds:      600,
		RoomCodeLength:           5,
		MaxDrawingBytes:          2 * 1024 * 1024,
		CreateRoomPerMinute:      30,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		LogLevel:                 "info",
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Port = raw
	}
	if raw := os.Getenv("MAX_PARTICIPANTS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 2 && value <= MaxRoomCapacity {
			cfg.MaxParticipants = value
		}
	}
	if raw := os.Getenv("COUNTDOWN_TICKS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.CountdownTicks = value
		}
	}
	if raw := os.Getenv("MAX_AWARD_POINTS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxAwardPoints = value
		}
	}
	if raw := os.Getenv("AUTO_SUBMIT_GRACE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.AutoSubmitGraceSeconds = value
		}
	}
	if raw := os.Getenv("DISCONNECT_GRACE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.DisconnectGraceSeconds = value
		}
	}
	if raw := os.Getenv("EMPTY_ROOM_TTL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.EmptyRoomTTLSeconds = value
		}
	}
	if raw := os.Getenv("ROOM_CODE_LENGTH"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 4 && value <= 8 {
			cfg.RoomCodeLength = value
		}
	}
	if raw := os.Getenv("MAX_DRAWING_BYTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxDrawingBytes = value
		}
	}
	if raw := os.Getenv("CREATE_ROOM_PER_MINUTE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.CreateRoomPerMinute = value
		}
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	if raw := os.Getenv("REDIS_ADDR"); raw != "" {
		cfg.RedisAddr = raw
	}
	if raw := os.Getenv("REDIS_PASSWORD"); raw != "" {
		cfg.RedisPassword = raw
	}
	if raw := os.Getenv("CODE_RETENTION_HOURS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.CodeRetentionHours = value
		}
	}
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		cfg.AllowedOrigins = splitList(raw)
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = strings.ToLower(raw)
	}
	if raw := os.Getenv("LOG_PRETTY"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.LogPretty = value
		}
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
