package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/emandor/mailsift/internal/export"
)

const (
	DefaultExportOrg        = "ShahPatel"
	DefaultExportFile       = "marketing_emails.csv"
	DefaultExportBackupFile = "marketing_emails_backup.csv"
)

type Config struct {
	AppEnv, AppPort string
	CORSOrigins     []string

	// export target: ~/Documents/<ExportOrg>/<ExportFile>
	ExportOrg        string
	ExportFile       string
	ExportBackupFile string

	OCREngine       string
	OCRLang         string
	OCRImgMaxW      int
	OCRImgGrayscale bool
	OCRCacheTTL     time.Duration
	OCROpenAIKey    string
	OCROpenAIModel  string
	OpenAIRPS       int
	OpenAIBurst     int

	RedisAddr string
	RedisDB   int
	DBDSN     string

	MaxBodyLimit       int
	AllowedMaxFileSize int
	AllowedFileExt     []string
	RateLimitMax       int
}

func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:             get("APP_ENV", "dev"),
		AppPort:            get("APP_PORT", "8080"),
		CORSOrigins:        split(get("CORS_ORIGINS", "http://localhost:8080")),
		ExportOrg:          get("EXPORT_ORG", DefaultExportOrg),
		ExportFile:         get("EXPORT_FILE", DefaultExportFile),
		ExportBackupFile:   get("EXPORT_BACKUP_FILE", DefaultExportBackupFile),
		OCREngine:          get("OCR_ENGINE", "tesseract"),
		OCRLang:            get("OCR_LANG", "eng"),
		OCRImgMaxW:         atoi(get("OCR_IMG_MAX_W", "1800")),
		OCRImgGrayscale:    parseBool(get("OCR_IMG_GRAYSCALE", "true")),
		OCRCacheTTL:        mustDuration(get("OCR_CACHE_TTL", "168h")),
		OCROpenAIKey:       get("OCR_OPENAI_KEY", ""),
		OCROpenAIModel:     get("OCR_OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIRPS:          atoi(get("OPENAI_RPS", "2")),
		OpenAIBurst:        atoi(get("OPENAI_BURST", "2")),
		RedisAddr:          get("REDIS_ADDR", ""),
		RedisDB:            atoi(get("REDIS_DB", "0")),
		DBDSN:              get("DB_DSN", ""),
		MaxBodyLimit:       GetEnvInt("MAX_BODY_LIMIT_MB", 64),
		AllowedMaxFileSize: GetEnvInt("ALLOWED_MAX_FILE_SIZE", 10),
		AllowedFileExt:     GetEnvList("ALLOWED_FILE_EXT", []string{".jpg", ".jpeg", ".png"}),
		RateLimitMax:       GetEnvInt("RATE_LIMIT_MAX", 30),
	}
	return c
}

// ExportDir resolves the target directory under the current user's home.
func (c *Config) ExportDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return export.TargetDir(home, c.ExportOrg), nil
}

func GetEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func GetEnvList(k string, d []string) []string {
	if v := os.Getenv(k); v != "" {
		return split(v)
	}
	return d
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func atoi(s string) int       { i, _ := strconv.Atoi(s); return i }
func parseBool(s string) bool { b, _ := strconv.ParseBool(s); return b }
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
func split(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
