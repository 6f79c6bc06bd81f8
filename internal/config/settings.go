package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	TLS      bool   `mapstructure:"tls"`
}

func (d DBConfig) DSN() string {
	base := "charset=utf8mb4&parseTime=True&loc=Local"
	if d.TLS {
		base += "&tls=true"
	}
	if d.Password == "" {
		return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
			d.Username, d.Host, d.Port, d.Name, base)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		d.Username, d.Password, d.Host, d.Port, d.Name, base)
}

type RedisConfig struct {
	Addr string `mapstructure:"redis_addr"`
	Pass string `mapstructure:"redis_pwd"`
	DB   int    `mapstructure:"redis_db"`
}

// AuthConfig holds the C9 Auth/Token Service's symmetric signing material
// and token lifetimes.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"`
	SessionTTLHours    int    `mapstructure:"session_ttl_hours"`
	WSTokenTTLMinutes  int    `mapstructure:"ws_token_ttl_minutes"`
	MobileTokenTTLMins int    `mapstructure:"mobile_token_ttl_minutes"`
}

// AsrConfig resolves MODEL_ID (provider/model) into the backend the ASR
// Client (C4) should construct.
type AsrConfig struct {
	ModelID          string `mapstructure:"model_id"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	AzureAPIKey      string `mapstructure:"azure_api_key"`
	AzureEndpoint    string `mapstructure:"azure_endpoint"`
	AzureAPIVersion  string `mapstructure:"azure_api_version"`
	LocalEndpoint    string `mapstructure:"local_endpoint"`
	RequestTimeoutMs int    `mapstructure:"request_timeout_ms"`
	UseSPSC          bool   `mapstructure:"use_spsc_transcriber"`
}

// SchedulerConfig parameterizes the SPSC Scheduler (C5).
type SchedulerConfig struct {
	QueueSize         int `mapstructure:"queue_size"`
	BatchSize         int `mapstructure:"batch_size"`
	BatchWaitMs       int `mapstructure:"batch_wait_ms"`
	ParallelWorkers   int `mapstructure:"parallel_workers"`
	EnqueueTimeoutMs  int `mapstructure:"enqueue_timeout_ms"`
	FailureThreshold  int `mapstructure:"failure_threshold"`
	RecoveryTimeoutS  int `mapstructure:"recovery_timeout_s"`
	DrainTimeoutS     int `mapstructure:"drain_timeout_s"`
	SilenceThresholdMs int `mapstructure:"silence_threshold_ms"`
}

// AudioConfig parameterizes the Audio Buffer (C3).
type AudioConfig struct {
	SmallThresholdBytes int `mapstructure:"small_threshold_bytes"`
	AccumulateCount     int `mapstructure:"accumulate_count"`
	MaxDurationMs       int `mapstructure:"max_duration_ms"`
	SampleRate          int `mapstructure:"sample_rate"`
	Channels            int `mapstructure:"channels"`
	SampleWidth         int `mapstructure:"sample_width"`
}

// NormalizerConfig parameterizes the Normalizer (C2) phonetic/fuzzy stage.
type NormalizerConfig struct {
	MinSimilarityThreshold float64 `mapstructure:"min_similarity_threshold"`
	DefaultLanguage        string  `mapstructure:"default_language"`
}

// PairingConfig parameterizes the Pairing Registry (C7).
type PairingConfig struct {
	CodeTTLMinutes int `mapstructure:"code_ttl_minutes"`
	GCIntervalS    int `mapstructure:"gc_interval_s"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes"`
	PingIntervalSec int    `mapstructure:"ping_interval_sec"`
}

type Settings struct {
	Env        string           `mapstructure:"env"`
	Debug      bool             `mapstructure:"debug" default:"false"`
	Server     ServerConfig     `mapstructure:"server"`
	DB         DBConfig         `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Asr        AsrConfig        `mapstructure:"asr"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Pairing    PairingConfig    `mapstructure:"pairing"`
}

// Load reads configuration from (in priority order) the DENTAL_CONFIG env
// var, or conventional locations (., ./config, /etc/dental-relay) keyed by
// ENV (default "dev"). Values the file leaves at their zero value are filled
// in by applyDefaults before Load returns.
func Load() (*Settings, error) {
	if cfgPath := os.Getenv("DENTAL_CONFIG"); cfgPath != "" {
		viper.SetConfigFile(cfgPath)
	} else {
		viper.SetConfigName("config_" + genEnv())
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/dental-relay")
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&settings)

	return &settings, nil
}

func genEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "dev"
	}
	return env
}

// applyDefaults fills the spec-mandated defaults for anything the config
// file left at its zero value.
func applyDefaults(s *Settings) {
	if s.Server.Port == 0 {
		s.Server.Port = 8088
	}
	if s.Server.MaxUploadBytes == 0 {
		s.Server.MaxUploadBytes = 25 << 20
	}
	if s.Server.PingIntervalSec == 0 {
		s.Server.PingIntervalSec = 30
	}
	if s.Auth.SessionTTLHours == 0 {
		s.Auth.SessionTTLHours = 24
	}
	if s.Auth.WSTokenTTLMinutes == 0 {
		s.Auth.WSTokenTTLMinutes = 60
	}
	if s.Auth.MobileTokenTTLMins == 0 {
		s.Auth.MobileTokenTTLMins = 10
	}
	if s.Scheduler.QueueSize == 0 {
		s.Scheduler.QueueSize = 50
	}
	if s.Scheduler.BatchSize == 0 {
		s.Scheduler.BatchSize = 10
	}
	if s.Scheduler.BatchWaitMs == 0 {
		s.Scheduler.BatchWaitMs = 50
	}
	if s.Scheduler.ParallelWorkers == 0 {
		s.Scheduler.ParallelWorkers = 4
	}
	if s.Scheduler.EnqueueTimeoutMs == 0 {
		s.Scheduler.EnqueueTimeoutMs = 100
	}
	if s.Scheduler.FailureThreshold == 0 {
		s.Scheduler.FailureThreshold = 5
	}
	if s.Scheduler.RecoveryTimeoutS == 0 {
		s.Scheduler.RecoveryTimeoutS = 60
	}
	if s.Scheduler.DrainTimeoutS == 0 {
		s.Scheduler.DrainTimeoutS = 2
	}
	if s.Scheduler.SilenceThresholdMs == 0 {
		s.Scheduler.SilenceThresholdMs = 2000
	}
	if s.Audio.SmallThresholdBytes == 0 {
		s.Audio.SmallThresholdBytes = 2048
	}
	if s.Audio.AccumulateCount == 0 {
		s.Audio.AccumulateCount = 3
	}
	if s.Audio.MaxDurationMs == 0 {
		s.Audio.MaxDurationMs = 500
	}
	if s.Audio.SampleRate == 0 {
		s.Audio.SampleRate = 16000
	}
	if s.Audio.Channels == 0 {
		s.Audio.Channels = 1
	}
	if s.Audio.SampleWidth == 0 {
		s.Audio.SampleWidth = 2
	}
	if s.Normalizer.MinSimilarityThreshold == 0 {
		s.Normalizer.MinSimilarityThreshold = 0.8
	}
	if s.Normalizer.DefaultLanguage == "" {
		s.Normalizer.DefaultLanguage = "nl"
	}
	if s.Pairing.CodeTTLMinutes == 0 {
		s.Pairing.CodeTTLMinutes = 10
	}
	if s.Pairing.GCIntervalS == 0 {
		s.Pairing.GCIntervalS = 30
	}
	if s.Asr.RequestTimeoutMs == 0 {
		s.Asr.RequestTimeoutMs = 30000
	}
	if s.Asr.ModelID == "" {
		s.Asr.ModelID = "whisper/whisper-1"
	}
}
