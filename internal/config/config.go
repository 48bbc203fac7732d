package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config carries the runtime settings shared by the ingest server, the query
// server, the OTLP collector and the analysis worker. Values come from
// config.yaml when present, overridden by OBSERVA_* environment variables.
type Config struct {
	IngestServerAddress string
	QueryServerAddress  string
	OTLPServerAddress   string

	ElasticsearchAddresses []string

	// RelationalDriver is "sqlite" or "postgres"; empty disables the
	// relational mirror and its fallback read path.
	RelationalDriver string
	RelationalDSN    string

	// RedisAddress empty disables the analysis queue.
	RedisAddress  string
	RedisPassword string

	JudgeBaseURL string

	WorkerConcurrency   int
	WorkerJobsPerMinute int
	SampleRate          float64
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("ingest_server.address", ":8080")
	v.SetDefault("query_server.address", ":8081")
	v.SetDefault("otlp_server.address", ":4317")
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("relational.driver", "sqlite")
	v.SetDefault("relational.dsn", "observa.db")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("judge.base_url", "http://localhost:9300")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.jobs_per_minute", 30)
	v.SetDefault("analysis.sample_rate", 0.01)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/observa")

	v.SetEnvPrefix("OBSERVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return &Config{
		IngestServerAddress:    v.GetString("ingest_server.address"),
		QueryServerAddress:     v.GetString("query_server.address"),
		OTLPServerAddress:      v.GetString("otlp_server.address"),
		ElasticsearchAddresses: v.GetStringSlice("elasticsearch.addresses"),
		RelationalDriver:       v.GetString("relational.driver"),
		RelationalDSN:          v.GetString("relational.dsn"),
		RedisAddress:           v.GetString("redis.address"),
		RedisPassword:          v.GetString("redis.password"),
		JudgeBaseURL:           v.GetString("judge.base_url"),
		WorkerConcurrency:      v.GetInt("worker.concurrency"),
		WorkerJobsPerMinute:    v.GetInt("worker.jobs_per_minute"),
		SampleRate:             v.GetFloat64("analysis.sample_rate"),
	}, nil
}
