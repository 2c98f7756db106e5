package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port"`
	Env         string `yaml:"env"`
	ServiceName string `yaml:"serviceName"`
	Timezone    string `yaml:"timezone"`
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`

	StepTimeoutSeconds     int   `yaml:"stepTimeoutSeconds"`
	MaxUploadBytes         int64 `yaml:"maxUploadBytes"`
	StatusRetentionSeconds int   `yaml:"statusRetentionSeconds"`

	Storage      StorageConfig      `yaml:"storage"`
	Inference    InferenceConfig    `yaml:"inference"`
	Persistence  PersistenceConfig  `yaml:"persistence"`
	Notification NotificationConfig `yaml:"notification"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Model        ModelConfig        `yaml:"model"`
}

// StorageConfig selects where uploaded images are kept: "local" or "azblob".
type StorageConfig struct {
	Provider string `yaml:"provider"`
	LocalDir string `yaml:"localDir"`

	AzureConnectionString string `yaml:"azureConnectionString"`
	AzureContainer        string `yaml:"azureContainer"`
}

// InferenceConfig selects the classifier: "http" or "mock".
type InferenceConfig struct {
	Provider       string `yaml:"provider"`
	Endpoint       string `yaml:"endpoint"`
	TopK           int    `yaml:"topK"`
	LabelsFile     string `yaml:"labelsFile"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	MockDelayMs    int    `yaml:"mockDelayMs"`
}

// PersistenceConfig names a registered persistence plugin and its settings.
type PersistenceConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

type NotificationConfig struct {
	WebhookURL     string `yaml:"webhookUrl"`
	HmacSecret     string `yaml:"hmacSecret"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

// ModelConfig is the read-only model report served by the API.
type ModelConfig struct {
	Version     string  `yaml:"version"`
	Accuracy    float64 `yaml:"accuracy"`
	DriftScore  float64 `yaml:"driftScore"`
	Status      string  `yaml:"status"`
	LastUpdated string  `yaml:"lastUpdated"`
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	c.logSummary()
	return &c, nil
}

// LoadConfigOptional loads filePath when it exists and otherwise builds the
// config from environment variables and defaults alone.
func LoadConfigOptional(filePath string) (*Config, error) {
	if strings.TrimSpace(filePath) != "" {
		if _, err := os.Stat(filePath); err == nil {
			return LoadConfig(filePath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	var c Config
	c.applyEnv()
	c.applyDefaults()
	c.logSummary()
	return &c, nil
}

func (c *Config) applyEnv() {
	envInt("PORT", &c.Port)
	envString("ENV", &c.Env)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("LOG_FORMAT", &c.LogFormat)
	envString("TIMEZONE", &c.Timezone)
	envInt("STEP_TIMEOUT_SECONDS", &c.StepTimeoutSeconds)
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxUploadBytes = n
		}
	}

	envString("STORAGE_PROVIDER", &c.Storage.Provider)
	envString("LOCAL_UPLOAD_DIR", &c.Storage.LocalDir)
	envString("AZURE_STORAGE_CONNECTION_STRING", &c.Storage.AzureConnectionString)
	envString("AZURE_STORAGE_CONTAINER", &c.Storage.AzureContainer)

	envString("INFERENCE_PROVIDER", &c.Inference.Provider)
	envString("INFERENCE_ENDPOINT", &c.Inference.Endpoint)
	envInt("INFERENCE_TOP_K", &c.Inference.TopK)
	envString("INFERENCE_LABELS_FILE", &c.Inference.LabelsFile)
	envInt("INFERENCE_TIMEOUT_SECONDS", &c.Inference.TimeoutSeconds)

	envString("PERSISTENCE_TYPE", &c.Persistence.Type)
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.persistenceSetting("addr", v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.persistenceSetting("password", v)
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.persistenceSetting("db", n)
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.persistenceSetting("dsn", v)
	}
	if v := os.Getenv("HISTORY_DIR"); v != "" {
		c.persistenceSetting("dir", v)
	}

	envString("NOTIFY_WEBHOOK_URL", &c.Notification.WebhookURL)
	envString("WEBHOOK_HMAC_SECRET", &c.Notification.HmacSecret)

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		c.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("OTEL_SAMPLE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tracing.SampleRatio = f
		}
	}
}

func (c *Config) persistenceSetting(key string, v any) {
	if c.Persistence.Config == nil {
		c.Persistence.Config = map[string]any{}
	}
	c.Persistence.Config[key] = v
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.ServiceName == "" {
		c.ServiceName = "classifyq"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.StepTimeoutSeconds <= 0 {
		c.StepTimeoutSeconds = 30
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if c.StatusRetentionSeconds <= 0 {
		c.StatusRetentionSeconds = 600
	}
	if c.Storage.Provider == "" {
		c.Storage.Provider = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "/tmp/classifyq-uploads"
	}
	if c.Storage.AzureContainer == "" {
		c.Storage.AzureContainer = "images"
	}
	if c.Inference.Provider == "" {
		c.Inference.Provider = "mock"
	}
	if c.Inference.TopK <= 0 {
		c.Inference.TopK = 3
	}
	if c.Inference.TimeoutSeconds <= 0 {
		c.Inference.TimeoutSeconds = c.StepTimeoutSeconds
	}
	if c.Inference.MockDelayMs < 0 {
		c.Inference.MockDelayMs = 0
	}
	if c.Persistence.Type == "" {
		c.Persistence.Type = "memory"
	}
	if c.Notification.TimeoutSeconds <= 0 {
		c.Notification.TimeoutSeconds = 10
	}
	if c.Model.Status == "" {
		c.Model.Status = string(domain.ModelHealthy)
	}
}

func (c *Config) logSummary() {
	log.Printf("Classifier Config: {Port:%d Storage:%s Inference:%s Persistence:%s StepTimeout:%ds Env:%s}\n",
		c.Port, c.Storage.Provider, c.Inference.Provider, c.Persistence.Type, c.StepTimeoutSeconds, c.Env)
}

func (c *Config) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSeconds) * time.Second
}

// PersistenceProvider converts the yaml plugin settings into the JSON form
// persistence plugins decode.
func (c *Config) PersistenceProvider() (persistence.ProviderConfig, error) {
	pc := persistence.ProviderConfig{Type: c.Persistence.Type}
	if len(c.Persistence.Config) == 0 {
		return pc, nil
	}
	raw, err := json.Marshal(c.Persistence.Config)
	if err != nil {
		return pc, fmt.Errorf("encode persistence config: %w", err)
	}
	pc.Config = raw
	return pc, nil
}

// ModelMetrics returns the configured model report.
func (c *Config) ModelMetrics() domain.ModelMetrics {
	m := domain.ModelMetrics{
		Accuracy:   c.Model.Accuracy,
		DriftScore: c.Model.DriftScore,
		Version:    c.Model.Version,
		Status:     domain.ModelStatus(c.Model.Status),
	}
	if t, err := time.Parse(time.RFC3339, c.Model.LastUpdated); err == nil {
		m.LastUpdated = t
	}
	return m
}

func (c *Config) Validate() error {
	var errs []string
	env := strings.ToLower(strings.TrimSpace(c.Env))
	dev := env == "dev"

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	switch c.Storage.Provider {
	case "local":
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			errs = append(errs, "storage.localDir is required for local storage")
		}
	case "azblob":
		if strings.TrimSpace(c.Storage.AzureConnectionString) == "" {
			errs = append(errs, "storage.azureConnectionString is required for azblob storage")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown storage provider %q", c.Storage.Provider))
	}

	switch c.Inference.Provider {
	case "http":
		u, err := url.Parse(c.Inference.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "inference.endpoint must be a valid http(s) URL")
		}
	case "mock":
		if !dev {
			errs = append(errs, "mock inference is only allowed in dev")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown inference provider %q", c.Inference.Provider))
	}

	if strings.TrimSpace(c.Persistence.Type) == "" {
		errs = append(errs, "persistence.type is required")
	}

	if c.Notification.WebhookURL != "" {
		u, err := url.Parse(c.Notification.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "notification.webhookUrl must be a valid http(s) URL")
		}
		if strings.TrimSpace(c.Notification.HmacSecret) == "" && !dev {
			errs = append(errs, "notification.hmacSecret is required when webhooks are enabled")
		}
	}

	switch domain.ModelStatus(c.Model.Status) {
	case domain.ModelHealthy, domain.ModelWarning, domain.ModelCritical:
	default:
		errs = append(errs, fmt.Sprintf("unknown model status %q", c.Model.Status))
	}
	if c.Model.LastUpdated != "" {
		if _, err := time.Parse(time.RFC3339, c.Model.LastUpdated); err != nil {
			errs = append(errs, "model.lastUpdated must be RFC3339")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "y" || v == "on"
}
