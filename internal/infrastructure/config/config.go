package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServiceConfig struct {
	ExportPath       string
	BatchSize        int
	UseKafka         bool
	KafkaBootstrap   string
	RawLinesTopic    string
	CommandsTopic    string
	ConsumerGroup    string
	UseMongoDB       bool
	MongoURL         string
	MongoDatabase    string
	MongoCollection  string
	MetricsHost      string
	ParserName       string
	ParserConfigFile string
	ReplayStartDelay time.Duration
	LogLevel         string
	LogFormat        string
}

// Load reads envFile into the environment, when it exists, and builds the
// service configuration from the environment.
func Load(envFile string) (*ServiceConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not load the environment variables file: %w", err)
		}
	}

	batchSize, err := intEnv("BATCH_SIZE", 500)
	if err != nil {
		return nil, err
	}
	delayMs, err := intEnv("REPLAY_START_DELAY_MS", 60_000)
	if err != nil {
		return nil, err
	}

	return &ServiceConfig{
		ExportPath:       os.Getenv("AUDIT_EXPORT_PATH"),
		BatchSize:        batchSize,
		UseKafka:         os.Getenv("USE_KAFKA") == "true",
		KafkaBootstrap:   os.Getenv("KAFKA_BOOTSTRAP_SERVER"),
		RawLinesTopic:    stringEnv("RAW_LINES_TOPIC", "raw_audit_lines"),
		CommandsTopic:    stringEnv("COMMANDS_TOPIC", "audit_commands"),
		ConsumerGroup:    stringEnv("CONSUMER_GROUP", "command_group"),
		UseMongoDB:       os.Getenv("USE_MONGODB") == "true",
		MongoURL:         os.Getenv("MONGODB_URL"),
		MongoDatabase:    stringEnv("MONGODB_DATABASE", "audit_replay"),
		MongoCollection:  stringEnv("MONGODB_COLLECTION", "commands"),
		MetricsHost:      stringEnv("METRICS_HOST_COMMAND_PROCESSOR", "127.0.0.1:9100"),
		ParserName:       stringEnv("PARSER", "hive"),
		ParserConfigFile: os.Getenv("PARSER_CONFIG_FILE"),
		ReplayStartDelay: time.Duration(delayMs) * time.Millisecond,
		LogLevel:         stringEnv("LOG_LEVEL", "info"),
		LogFormat:        stringEnv("LOG_FORMAT", "json"),
	}, nil
}

// ParserConfig reads the optional YAML options file. Nested mappings are
// flattened into dotted keys, so both
//
//	auditreplay.log-start-time.ms: 1483228800000
//
// and
//
//	auditreplay:
//	  log-start-time.ms: 1483228800000
//
// give the same entity.Config.
func (c *ServiceConfig) ParserConfig() (entity.Config, error) {
	conf := entity.Config{}
	if c.ParserConfigFile == "" {
		return conf, nil
	}

	data, err := os.ReadFile(c.ParserConfigFile)
	if err != nil {
		return nil, fmt.Errorf("could not read parser config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("could not decode parser config %s: %w", c.ParserConfigFile, err)
	}

	flatten("", raw, conf)
	return conf, nil
}

func flatten(prefix string, values map[string]any, out entity.Config) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := values[k].(type) {
		case map[string]any:
			flatten(key, v, out)
		case nil:
			out[key] = ""
		case float64:
			// keeps 1.4832288e12 usable as an integer option
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
