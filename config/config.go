package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	BackendGit   = "git"
	BackendS3    = "s3"
	BackendMinio = "minio"
)

type Config struct {
	// Credential is the bearer token for the description service.
	Credential string `env:"OPENAI_API_KEY"`

	WorkDir    string `env:"WORK_DIR"    envDefault:"./data"`
	KeepFrames bool   `env:"KEEP_FRAMES" envDefault:"false"`

	Tools       ToolsConfig
	Publish     PublishConfig
	Description DescriptionConfig
	OCR         OCRConfig
	Server      ServerConfig
	Log         LogConfig

	TrackerDSN     string `env:"TRACKER_DSN"     envDefault:"file::memory:?cache=shared"`
	TracingURL     string `env:"OTLP_ENDPOINT"`
	RabbitMQURL    string `env:"RABBITMQ_URL"`
	RabbitExchange string `env:"RABBITMQ_EXCHANGE" envDefault:"yt-vision.tasks"`
}

type ToolsConfig struct {
	YtDlp     string `env:"YTDLP_PATH"     envDefault:"yt-dlp"`
	FFmpeg    string `env:"FFMPEG_PATH"    envDefault:"ffmpeg"`
	Tesseract string `env:"TESSERACT_PATH" envDefault:"tesseract"`
	Git       string `env:"GIT_PATH"       envDefault:"git"`
}

type PublishConfig struct {
	Backend     string        `env:"PUBLISH_BACKEND"     envDefault:"git"`
	Propagation time.Duration `env:"PUBLISH_PROPAGATION" envDefault:"3s"`
	Prefix      string        `env:"PUBLISH_PREFIX"      envDefault:"video-frames/frames"`

	// RemoteRepoURL is the git remote frames are pushed to.
	RemoteRepoURL string `env:"FRAMES_REPO_URL"`
	LocalRepoPath string `env:"FRAMES_REPO_PATH" envDefault:"./video-frames"`
	Branch        string `env:"FRAMES_REPO_BRANCH" envDefault:"main"`

	// PublicBaseURL is prepended to object keys to build frame URLs.
	PublicBaseURL string `env:"FRAMES_PUBLIC_BASE_URL"`

	Bucket    string `env:"FRAMES_BUCKET"`
	Region    string `env:"FRAMES_REGION"     envDefault:"us-east-1"`
	Endpoint  string `env:"FRAMES_ENDPOINT"`
	AccessKey string `env:"FRAMES_ACCESS_KEY"`
	SecretKey string `env:"FRAMES_SECRET_KEY"`
	UseSSL    bool   `env:"FRAMES_USE_SSL"    envDefault:"true"`
}

type DescriptionConfig struct {
	BaseURL             string        `env:"OPENAI_BASE_URL"`
	Model               string        `env:"VISION_MODEL"         envDefault:"gpt-4o"`
	SummaryModel        string        `env:"SUMMARY_MODEL"        envDefault:"gpt-4o"`
	MaxTokens           int           `env:"VISION_MAX_TOKENS"    envDefault:"1200"`
	MaxBatchSize        int           `env:"MAX_BATCH_SIZE"       envDefault:"10"`
	BatchPace           time.Duration `env:"BATCH_PACE"           envDefault:"2s"`
	Instruction         string        `env:"VISION_INSTRUCTION"   envDefault:"Analyze this sequence of frames and describe what happens in the video."`
	Condense            bool          `env:"CONDENSE_SUMMARY"     envDefault:"false"`
	CondenseInstruction string        `env:"CONDENSE_INSTRUCTION" envDefault:"Combine these partial descriptions of consecutive parts of one video into a single coherent description."`
	RequestTimeout      time.Duration `env:"VISION_TIMEOUT"       envDefault:"2m"`
}

type OCRConfig struct {
	Language string `env:"OCR_LANGUAGE" envDefault:"eng"`
}

type ServerConfig struct {
	Port              string        `env:"SERVER_PORT"         envDefault:"8080"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT"        envDefault:"30s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT"       envDefault:"30s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT"        envDefault:"60s"`
	TaskTimeout       time.Duration `env:"TASK_TIMEOUT"        envDefault:"30m"`
	RateLimit         int           `env:"RATE_LIMIT"          envDefault:"5"`
	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"1s"`
	MaxConcurrent     int           `env:"MAX_CONCURRENT_TASKS" envDefault:"2"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
	Dir    string `env:"LOG_DIR"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Failed to read .env file, using process environment")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	cfg.Publish.Backend = strings.ToLower(strings.TrimSpace(cfg.Publish.Backend))
	return cfg, nil
}

func ValidateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Credential) == "" {
		return errors.New("description service credential (OPENAI_API_KEY) is required")
	}
	if cfg.WorkDir == "" {
		return errors.New("work directory is required")
	}
	if cfg.Description.MaxBatchSize <= 0 {
		return errors.New("max batch size must be greater than 0")
	}
	if cfg.Description.BatchPace < 0 {
		return errors.New("batch pace must not be negative")
	}
	if cfg.Publish.Propagation < 0 {
		return errors.New("publish propagation delay must not be negative")
	}
	return validatePublish(cfg.Publish)
}

func validatePublish(p PublishConfig) error {
	switch p.Backend {
	case BackendGit:
		if p.RemoteRepoURL == "" {
			return errors.New("frames repository URL (FRAMES_REPO_URL) is required for the git backend")
		}
		if p.PublicBaseURL == "" {
			return errors.New("public base URL (FRAMES_PUBLIC_BASE_URL) is required for the git backend")
		}
	case BackendS3, BackendMinio:
		if p.Bucket == "" {
			return errors.Errorf("bucket (FRAMES_BUCKET) is required for the %s backend", p.Backend)
		}
		if p.Backend == BackendMinio && p.Endpoint == "" {
			return errors.New("endpoint (FRAMES_ENDPOINT) is required for the minio backend")
		}
	default:
		return errors.Errorf("unknown publish backend %q", p.Backend)
	}
	return nil
}

// ValidateServer checks the settings only the HTTP mode needs.
func ValidateServer(s ServerConfig) error {
	if s.Port == "" {
		return errors.New("server port is required")
	}
	if s.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if s.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if s.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if s.TaskTimeout <= 0 {
		return errors.New("task timeout must be greater than 0")
	}
	if s.MaxConcurrent <= 0 {
		return errors.New("max concurrent tasks must be greater than 0")
	}
	return nil
}
