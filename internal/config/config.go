package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	S3        S3Config
	Executor  ExecutorConfig
	IBM       IBMConfig
	AWS       AWSConfig
	Google    GoogleConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	ExecutePerHour int
}

// StorageConfig selects the persistence collaborator for circuit sources and
// result payloads: "file" (default) or "s3".
type StorageConfig struct {
	Backend string
	Dir     string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// ExecutorConfig tunes the dispatch engine: background concurrency and the
// hardware polling loop.
type ExecutorConfig struct {
	MaxConcurrent       int
	QueueSize           int
	PollIntervalSeconds int
	PollTimeoutSeconds  int
	DisabledProviders   []string
}

type IBMConfig struct {
	APIToken string
	BaseURL  string
}

type AWSConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	OutputBucket    string
	OutputPrefix    string
}

type GoogleConfig struct {
	ProjectID   string
	AccessToken string
	BaseURL     string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("IBM_API_TOKEN")
	readSecret("AWS_SECRET_ACCESS_KEY")
	readSecret("GOOGLE_ACCESS_TOKEN")
	readSecret("S3_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.execute_per_hour", "RATELIMIT_EXECUTE_PER_HOUR")
	_ = viper.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = viper.BindEnv("storage.dir", "STORAGE_DIR")
	_ = viper.BindEnv("s3.bucket", "S3_BUCKET")
	_ = viper.BindEnv("s3.region", "S3_REGION")
	_ = viper.BindEnv("s3.endpoint", "S3_ENDPOINT")
	_ = viper.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	_ = viper.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("executor.max_concurrent", "EXECUTOR_MAX_CONCURRENT")
	_ = viper.BindEnv("executor.queue_size", "EXECUTOR_QUEUE_SIZE")
	_ = viper.BindEnv("executor.poll_interval_seconds", "EXECUTOR_POLL_INTERVAL_SECONDS")
	_ = viper.BindEnv("executor.poll_timeout_seconds", "EXECUTOR_POLL_TIMEOUT_SECONDS")
	_ = viper.BindEnv("executor.disabled_providers", "EXECUTOR_DISABLED_PROVIDERS")
	_ = viper.BindEnv("ibm.api_token", "IBM_API_TOKEN")
	_ = viper.BindEnv("ibm.base_url", "IBM_BASE_URL")
	_ = viper.BindEnv("aws.access_key_id", "AWS_ACCESS_KEY_ID")
	_ = viper.BindEnv("aws.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("aws.region", "AWS_REGION")
	_ = viper.BindEnv("aws.output_bucket", "AWS_BRAKET_OUTPUT_BUCKET")
	_ = viper.BindEnv("aws.output_prefix", "AWS_BRAKET_OUTPUT_PREFIX")
	_ = viper.BindEnv("google.project_id", "GOOGLE_PROJECT_ID")
	_ = viper.BindEnv("google.access_token", "GOOGLE_ACCESS_TOKEN")
	_ = viper.BindEnv("google.base_url", "GOOGLE_BASE_URL")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.execute_per_hour", 100)
	viper.SetDefault("storage.backend", "file")
	viper.SetDefault("storage.dir", "data")
	viper.SetDefault("executor.max_concurrent", 10)
	viper.SetDefault("executor.queue_size", 100)
	viper.SetDefault("executor.poll_interval_seconds", 30)
	viper.SetDefault("executor.poll_timeout_seconds", 3600)

	// Provider API defaults
	viper.SetDefault("ibm.base_url", "https://api.quantum-computing.ibm.com/runtime")
	viper.SetDefault("aws.region", "us-east-1")
	viper.SetDefault("aws.output_prefix", "tasks")
	viper.SetDefault("google.base_url", "https://quantum.googleapis.com")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			ExecutePerHour: viper.GetInt("ratelimit.execute_per_hour"),
		},
		Storage: StorageConfig{
			Backend: viper.GetString("storage.backend"),
			Dir:     viper.GetString("storage.dir"),
		},
		S3: S3Config{
			Bucket:          viper.GetString("s3.bucket"),
			Region:          viper.GetString("s3.region"),
			Endpoint:        viper.GetString("s3.endpoint"),
			AccessKeyID:     viper.GetString("s3.access_key_id"),
			SecretAccessKey: viper.GetString("s3.secret_access_key"),
		},
		Executor: ExecutorConfig{
			MaxConcurrent:       viper.GetInt("executor.max_concurrent"),
			QueueSize:           viper.GetInt("executor.queue_size"),
			PollIntervalSeconds: viper.GetInt("executor.poll_interval_seconds"),
			PollTimeoutSeconds:  viper.GetInt("executor.poll_timeout_seconds"),
			DisabledProviders:   viper.GetStringSlice("executor.disabled_providers"),
		},
		IBM: IBMConfig{
			APIToken: viper.GetString("ibm.api_token"),
			BaseURL:  viper.GetString("ibm.base_url"),
		},
		AWS: AWSConfig{
			AccessKeyID:     viper.GetString("aws.access_key_id"),
			SecretAccessKey: viper.GetString("aws.secret_access_key"),
			Region:          viper.GetString("aws.region"),
			OutputBucket:    viper.GetString("aws.output_bucket"),
			OutputPrefix:    viper.GetString("aws.output_prefix"),
		},
		Google: GoogleConfig{
			ProjectID:   viper.GetString("google.project_id"),
			AccessToken: viper.GetString("google.access_token"),
			BaseURL:     viper.GetString("google.base_url"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
