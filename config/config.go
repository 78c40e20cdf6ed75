package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chaos-io/mojimix/emoji/rembg"
)

const apiKeyEnv = "GEMINI_API_KEY"

var ErrNoAPIKey = errors.New("no api key found, set " + apiKeyEnv + " or save one first")

type Config struct {
	Env       string
	Addr      string
	OutputDir string

	Variants    int
	Parallel    int
	FastModel   bool
	BaseURL     string
	HTTPTimeout time.Duration

	PruneSchedule string
	Retention     time.Duration

	Thresholds rembg.Thresholds
}

// Load 先读 .env / .env.local（不存在就忽略），再读环境变量
func Load() Config {
	_ = godotenv.Load(".env", ".env.local")
	return fromEnv()
}

func fromEnv() Config {
	def := rembg.DefaultThresholds()
	return Config{
		Env:       getEnv("APP_ENV", "development"),
		Addr:      getEnv("MOJIMIX_ADDR", ":8080"),
		OutputDir: getEnv("MOJIMIX_OUTPUT_DIR", "./output"),

		Variants:    getEnvInt("MOJIMIX_VARIANTS", 4),
		Parallel:    getEnvInt("MOJIMIX_PARALLEL", 4),
		FastModel:   getEnvBool("MOJIMIX_FAST_MODEL", false),
		BaseURL:     getEnv("GEMINI_BASE_URL", ""),
		HTTPTimeout: time.Duration(getEnvInt("MOJIMIX_HTTP_TIMEOUT_SECONDS", 120)) * time.Second,

		PruneSchedule: getEnv("MOJIMIX_PRUNE_SCHEDULE", "@hourly"),
		Retention:     time.Duration(getEnvInt("MOJIMIX_RETENTION_HOURS", 168)) * time.Hour,

		Thresholds: rembg.Thresholds{
			CornerTolerance: getEnvInt("MOJIMIX_CORNER_TOLERANCE", def.CornerTolerance),
			MatchTolerance:  getEnvInt("MOJIMIX_MATCH_TOLERANCE", def.MatchTolerance),
			KeyMaxRed:       getEnvUint8("MOJIMIX_KEY_MAX_RED", def.KeyMaxRed),
			KeyMinGreen:     getEnvUint8("MOJIMIX_KEY_MIN_GREEN", def.KeyMinGreen),
			KeyMaxBlue:      getEnvUint8("MOJIMIX_KEY_MAX_BLUE", def.KeyMaxBlue),
		},
	}
}

func keyPath(home string) string {
	return filepath.Join(home, ".config", "mojimix", "api_key")
}

// ResolveAPIKey 环境变量优先，其次是 <home>/.config/mojimix/api_key
func ResolveAPIKey(home string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(apiKeyEnv)); v != "" {
		return v, nil
	}
	if home == "" {
		return "", ErrNoAPIKey
	}
	data, err := os.ReadFile(keyPath(home))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoAPIKey
		}
		return "", fmt.Errorf("read api key: %w", err)
	}
	if key := strings.TrimSpace(string(data)); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

func SaveAPIKey(home, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}
	p := keyPath(home)
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(p, []byte(key), 0o600); err != nil {
		return fmt.Errorf("write api key: %w", err)
	}
	return nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}

func getEnvUint8(k string, def uint8) uint8 {
	v, err := strconv.ParseUint(os.Getenv(k), 10, 8)
	if err != nil {
		return def
	}
	return uint8(v)
}

func getEnvBool(k string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}
