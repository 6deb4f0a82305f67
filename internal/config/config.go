// Package config binds the control plane's environment and flag
// configuration through viper, resolved once at startup and passed
// explicitly to every collaborator that needs it.
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration for the bluedex
// server.
type Config struct {
	ElasticsearchURL        string
	ElasticsearchAPIKey     string
	ElasticsearchUsername   string
	ElasticsearchPassword   string
	ElasticsearchClientType string // "elasticsearch" or "opensearch"
	Port                    int
	LogLevel                string
	MappingFile             string
}

// RegisterFlags adds the server's flags to fs, mirroring the defaults
// documented in the external interface section.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("elasticsearch-url", "http://localhost:9200", "search cluster base URL")
	fs.String("elasticsearch-api-key", "", "search cluster API key")
	fs.String("elasticsearch-username", "", "search cluster basic-auth username")
	fs.String("elasticsearch-password", "", "search cluster basic-auth password")
	fs.String("elasticsearch-client-type", "elasticsearch", "search cluster wire protocol: elasticsearch or opensearch")
	fs.Int("port", 3000, "HTTP listen port")
	fs.String("log-level", "info", "zerolog level: trace, debug, info, warn, error")
	fs.String("mapping-file", "", "path to a JSON index mapping file; defaults to the built-in product mapping when unset")
}

// Load binds environment variables and flags into a Config. Flags take
// precedence when explicitly set; otherwise the environment, then the
// flag defaults above, apply.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("elasticsearch-url", "ELASTICSEARCH_URL")
	_ = v.BindEnv("elasticsearch-api-key", "ELASTICSEARCH_API_KEY")
	_ = v.BindEnv("elasticsearch-username", "ELASTICSEARCH_USERNAME")
	_ = v.BindEnv("elasticsearch-password", "ELASTICSEARCH_PASSWORD")
	_ = v.BindEnv("elasticsearch-client-type", "ELASTICSEARCH_CLIENT_TYPE")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("log-level", "LOG_LEVEL")
	_ = v.BindEnv("mapping-file", "MAPPING_FILE")

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	return &Config{
		ElasticsearchURL:        v.GetString("elasticsearch-url"),
		ElasticsearchAPIKey:     v.GetString("elasticsearch-api-key"),
		ElasticsearchUsername:   v.GetString("elasticsearch-username"),
		ElasticsearchPassword:   v.GetString("elasticsearch-password"),
		ElasticsearchClientType: v.GetString("elasticsearch-client-type"),
		Port:                    v.GetInt("port"),
		LogLevel:                v.GetString("log-level"),
		MappingFile:             v.GetString("mapping-file"),
	}, nil
}
