package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/postflowhq/postflow/pkg/publisher"
)

// platformsFile maps platform names to their webhook publisher endpoints.
// Platform API credentials live with the connected accounts, not here; the
// file only says where each platform's publish adapter is reachable.
//
//	platforms:
//	  twitter:
//	    endpoint: http://adapters.internal/twitter
//	  linkedin:
//	    endpoint: http://adapters.internal/linkedin
type platformsFile struct {
	Platforms map[string]platformEntry `yaml:"platforms"`
}

type platformEntry struct {
	Endpoint string `yaml:"endpoint"`
	Retries  int    `yaml:"retries,omitempty"`
}

// buildRegistry reads the platform adapter config and registers a webhook
// publisher per entry.
func buildRegistry(path string) (*publisher.Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platforms file %s: %w", path, err)
	}

	var file platformsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse platforms file %s: %w", path, err)
	}

	registry := publisher.NewRegistry()
	for name, entry := range file.Platforms {
		platform := publisher.Platform(name)
		if !platform.Valid() {
			return nil, fmt.Errorf("unknown platform %q in %s", name, path)
		}

		var opts []publisher.WebhookOption
		if entry.Retries > 0 {
			opts = append(opts, publisher.WithTransportRetries(entry.Retries))
		}
		pub, err := publisher.NewWebhookPublisher(entry.Endpoint, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build publisher for %q: %w", name, err)
		}
		if err := registry.Register(platform, pub); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
