package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY"`
}

type TriggerEnv struct {
	TriggerPhrase   string `envconfig:"TRIGGER_PHRASE" default:"@claude"`
	AssigneeTrigger string `envconfig:"ASSIGNEE_TRIGGER"`
	LabelTrigger    string `envconfig:"LABEL_TRIGGER"`
}

type RelayEnv struct {
	ProgressEndpoint       string            `envconfig:"PROGRESS_ENDPOINT"`
	SystemProgressEndpoint string            `envconfig:"SYSTEM_PROGRESS_ENDPOINT"`
	ResumeEndpoint         string            `envconfig:"RESUME_ENDPOINT"`
	StaticHeaders          map[string]string `envconfig:"STATIC_HEADERS"`
	BatchSize              int               `envconfig:"BATCH_SIZE" default:"10"`
	BatchIdleTimeout       time.Duration     `envconfig:"BATCH_IDLE_TIMEOUT" default:"1s"`
	RequestTimeout         time.Duration     `envconfig:"REQUEST_TIMEOUT" default:"5s"`
	TokenLifetime          time.Duration     `envconfig:"TOKEN_LIFETIME" default:"4m"`
}

type TokenEnv struct {
	TokenRequestURL   string `envconfig:"TOKEN_REQUEST_URL"`
	TokenRequestToken string `envconfig:"TOKEN_REQUEST_TOKEN"`
	TokenAudience     string `envconfig:"TOKEN_AUDIENCE"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".agenthook/transcripts"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"agenthook/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type DispatchEnv struct {
	SpoolDir string `envconfig:"DISPATCH_SPOOL_DIR" default:".agenthook/dispatch"`
}

type Env struct {
	BaseEnv
	TriggerEnv
	RelayEnv
	TokenEnv
	StorageEnv
	DispatchEnv
}

const namespace = "AGENTHOOK"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
