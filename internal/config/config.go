package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BlobBackendDisk = "disk"
	BlobBackendS3   = "s3"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	AuthSecret            string
	AccessTokenTTLMinutes int

	AppEnv         string
	LogLevel       string
	JaegerEndpoint string

	BlobBackend       string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
	BlobDiskRoot      string
	PublicBaseURL     string
	BlobSigningSecret string
	PresignTTLSeconds int

	// MonthlyAggregateExpenditure selects how the "all" row of the monthly
	// report totals expenditure: "legacy" or "total".
	MonthlyAggregateExpenditure string
}

func Load() Config {
	port := getEnv("PORT", "8080")
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:           port,
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://127.0.0.1:3000")),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,

		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),

		AppEnv:         strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JaegerEndpoint: strings.TrimSpace(os.Getenv("JAEGER_ENDPOINT")),

		BlobBackend:       strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendDisk)),
		S3Bucket:          strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		S3AccessKeyID:     strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretAccessKey: strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
		S3UsePathStyle:    getBool("S3_USE_PATH_STYLE", false),
		BlobDiskRoot:      getEnv("BLOB_DISK_ROOT", "./data/blobs"),
		PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://127.0.0.1:"+port), "/"),
		BlobSigningSecret: strings.TrimSpace(os.Getenv("BLOB_SIGNING_SECRET")),
		PresignTTLSeconds: positiveInt("PRESIGN_TTL_SECONDS", 3600),

		MonthlyAggregateExpenditure: getEnv("MONTHLY_AGGREGATE_EXPENDITURE", "legacy"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) PresignTTL() time.Duration {
	return time.Duration(c.PresignTTLSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
