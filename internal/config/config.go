package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Addr string

	// Durable blob storage
	BlobDriver    string // sqlite | mysql | redis | memory
	SQLitePath    string
	MySQLDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AI provider
	AIProvider    string // openai | ollama
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
	OllamaBaseURL string
	OllamaModel   string

	// Optional remote relay; when set the session store calls it over
	// HTTP instead of the in-process relay service.
	RelayURL string

	ChatContextWindowSize int

	CORSOrigins []string
}

func Load() (Config, error) {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	blobDriver := os.Getenv("BLOB_DRIVER")
	if blobDriver == "" {
		blobDriver = "sqlite"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "coach.db"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	aiProvider := os.Getenv("AI_PROVIDER")
	if aiProvider == "" {
		aiProvider = "openai"
	}

	openAIBaseURL := os.Getenv("OPENAI_BASE_URL")
	if openAIBaseURL == "" {
		openAIBaseURL = "https://api.openai.com/v1"
	}

	openAIModel := os.Getenv("OPENAI_MODEL")
	if openAIModel == "" {
		openAIModel = "gpt-4o-mini"
	}

	ollamaBaseURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}

	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "llama3:latest"
	}

	// The provider key is a startup concern, not a per-request one.
	openAIAPIKey := os.Getenv("OPENAI_API_KEY")
	if aiProvider == "openai" && openAIAPIKey == "" {
		return Config{}, errors.New("OPENAI_API_KEY is required when AI_PROVIDER=openai")
	}

	windowSize := 20
	if v := os.Getenv("CHAT_CONTEXT_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			windowSize = n
		}
	}

	corsOrigins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		corsOrigins = corsOrigins[:0]
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	return Config{
		Addr: addr,

		BlobDriver:    blobDriver,
		SQLitePath:    sqlitePath,
		MySQLDSN:      os.Getenv("MYSQL_DSN"),
		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		AIProvider:    aiProvider,
		OpenAIBaseURL: openAIBaseURL,
		OpenAIAPIKey:  openAIAPIKey,
		OpenAIModel:   openAIModel,
		OllamaBaseURL: ollamaBaseURL,
		OllamaModel:   ollamaModel,

		RelayURL: os.Getenv("RELAY_URL"),

		ChatContextWindowSize: windowSize,

		CORSOrigins: corsOrigins,
	}, nil
}
