package config

import (
	"os"
	"strconv"
)

type Config struct {
	DB      DBConfig
	Storage StorageConfig
	MinIO   MinIOConfig
	JWT     JWTConfig
	Server  ServerConfig
	Bot     BotConfig
}

type StorageConfig struct {
	// Backend selects the blob store: "minio" or "local".
	Backend string
	// LocalRoot is the filesystem root for the local backend.
	LocalRoot string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port string
	// HostURL is the externally visible base URL, used in notification links.
	HostURL string
}

type BotConfig struct {
	// Token enables the Telegram notification bot when non-empty.
	Token string
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "glsbox"),
			Password: getEnv("DB_PASSWORD", "glsbox_secret"),
			Name:     getEnv("DB_NAME", "glsbox"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", "minio"),
			LocalRoot: getEnv("LOCAL_STORAGE_ROOT", "./data/blobs"),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "glsbox"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "glsbox_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "glsbox"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8080"),
			HostURL: getEnv("HOST_URL", "http://localhost:8080"),
		},
		Bot: BotConfig{
			Token: getEnv("BOT_TOKEN", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
