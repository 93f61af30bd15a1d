package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type AppCfg struct {
	Name string
	Env  string
	Host string
	Port int
}

type AuthCfg struct {
	JwtSecret string
	AdminRole string
}

type LogCfg struct {
	Level string
}

type DBCfg struct {
	DSN         string
	MaxOpen     int
	MaxIdle     int
	AutoMigrate bool
}

type RedisCfg struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	TurnLockTTLSec int
}

type MQCfg struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type S3Cfg struct {
	Endpoint         string
	Region           string
	AccessKey        string
	SecretKey        string
	Bucket           string
	UsePathStyle     bool
	TranscriptPrefix string
}

type LLMCfg struct {
	BaseURL       string
	ApiKey        string
	ChatModel     string
	AnalysisModel string
	Temperature   float32
	MaxTokens     int
	TimeoutSec    int
}

type ChatCfg struct {
	MemoryWindow        int
	HistoryRebuildLimit int
}

type AnalysisCfg struct {
	MaxRetryCount int
	Workers       int
	BatchLimit    int
}

type TelemetryCfg struct {
	Enabled      bool
	OtlpEndpoint string
	SampleRatio  float64
}

type Config struct {
	App       AppCfg
	Auth      AuthCfg
	Log       LogCfg
	Database  DBCfg
	Redis     RedisCfg
	RabbitMQ  MQCfg
	S3        S3Cfg
	LLM       LLMCfg
	Chat      ChatCfg
	Analysis  AnalysisCfg
	Telemetry TelemetryCfg
}

func Load() (*Config, error) {
	base := viper.New()
	base.SetConfigName("config")
	base.SetConfigType("yaml")
	base.AddConfigPath("./configs")
	base.AddConfigPath(".")
	base.AutomaticEnv()
	base.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	base.SetEnvPrefix("APP") // e.g. APP_LLM_APIKEY -> llm.apiKey

	setDefaults(base)

	if err := base.ReadInConfig(); err == nil {
		// expand ${ENV} in the file once, then parse the expanded content
		raw, err := os.ReadFile(base.ConfigFileUsed())
		if err != nil {
			return nil, err
		}
		return parse(os.ExpandEnv(string(raw)))
	}

	// no file is fine, env + defaults only
	cfg := new(Config)
	if err := base.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(expanded string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return nil, err
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("APP")
	setDefaults(v)

	cfg := new(Config)
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mindnote-counsel")
	v.SetDefault("app.env", "debug")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("auth.adminRole", "admin")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.maxOpen", 20)
	v.SetDefault("database.maxIdle", 5)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.turnLockTTLSec", 300)
	v.SetDefault("rabbitmq.exchange", "mindnote.analysis")
	v.SetDefault("rabbitmq.routingKey", "analysis.task")
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.usePathStyle", true)
	v.SetDefault("s3.transcriptPrefix", "transcripts")
	v.SetDefault("llm.chatModel", "deepseek-chat")
	v.SetDefault("llm.analysisModel", "deepseek-chat")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.maxTokens", 2048)
	v.SetDefault("llm.timeoutSec", 120)
	v.SetDefault("chat.memoryWindow", 30)
	v.SetDefault("chat.historyRebuildLimit", 30)
	v.SetDefault("analysis.maxRetryCount", 3)
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.batchLimit", 100)
	v.SetDefault("telemetry.sampleRatio", 1.0)
}
