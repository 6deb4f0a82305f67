package main

import (
	"fmt"
	"os"

	"github.com/go-go-golems/bluedex/internal/alias"
	"github.com/go-go-golems/bluedex/internal/cluster"
	"github.com/go-go-golems/bluedex/internal/config"
	"github.com/go-go-golems/bluedex/internal/deploy"
	"github.com/go-go-golems/bluedex/internal/health"
	"github.com/go-go-golems/bluedex/internal/lifecycle"
	"github.com/go-go-golems/bluedex/internal/productschema"
	"github.com/go-go-golems/bluedex/internal/session"
)

// components is every control-plane collaborator, constructed once and
// passed explicitly to whatever needs it; there is no package-level
// singleton cluster provider per the deployment coordinator's design
// notes.
type components struct {
	gateway     cluster.Gateway
	registry    *alias.Registry
	lifecycle   *lifecycle.Lifecycle
	probe       *health.Probe
	coordinator *deploy.Coordinator
	sessions    *session.Manager
}

func buildComponents(cfg *config.Config) (*components, error) {
	gateway, err := buildGateway(cfg)
	if err != nil {
		return nil, err
	}

	registry := alias.New(gateway)
	lc := lifecycle.New(gateway, buildMappingProvider(cfg))
	probe := health.New(gateway)
	coordinator := deploy.New(gateway, registry, lc, probe)
	sessions := session.New(gateway, lc, coordinator, probe)

	return &components{
		gateway:     gateway,
		registry:    registry,
		lifecycle:   lc,
		probe:       probe,
		coordinator: coordinator,
		sessions:    sessions,
	}, nil
}

// buildMappingProvider returns a lifecycle.MappingProvider that reads
// cfg.MappingFile once at startup and serves its bytes for every alias
// when set, falling back to the built-in product mapping otherwise.
func buildMappingProvider(cfg *config.Config) lifecycle.MappingProvider {
	if cfg.MappingFile == "" {
		return productschema.Provider
	}
	mapping, err := os.ReadFile(cfg.MappingFile)
	if err != nil {
		return func(string) ([]byte, error) {
			return nil, fmt.Errorf("reading mapping file %q: %w", cfg.MappingFile, err)
		}
	}
	return func(string) ([]byte, error) {
		return mapping, nil
	}
}

func buildGateway(cfg *config.Config) (cluster.Gateway, error) {
	clusterCfg := cluster.Config{
		Addresses: []string{cfg.ElasticsearchURL},
		Username:  cfg.ElasticsearchUsername,
		Password:  cfg.ElasticsearchPassword,
		APIKey:    cfg.ElasticsearchAPIKey,
	}

	switch cfg.ElasticsearchClientType {
	case "", "elasticsearch":
		return cluster.NewElasticsearchClient(clusterCfg)
	case "opensearch":
		return cluster.NewOpenSearchClient(clusterCfg)
	default:
		return nil, fmt.Errorf("unsupported elasticsearch-client-type %q", cfg.ElasticsearchClientType)
	}
}
