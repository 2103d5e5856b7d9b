// Package config loads the YAML configuration of the demo binary.
package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Path          string `yaml:"path"`
	MinimumFreeGB int    `yaml:"minimumFreeGB"`
	MaxChunkSize  int    `yaml:"maxChunkSize"`
	Verbose       bool   `yaml:"verbose"`
}

// GetConfig reads config.yaml from the working directory, falling back to
// defaults if the file is absent. The store path can be overridden by the
// first CLI argument.
func GetConfig() Config {
	var config Config

	data, err := os.ReadFile("config.yaml")
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			log.Fatalf("error: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("error: %v", err)
	}

	if config.Path == "" {
		config.Path = "linkcache-data"
	}

	if config.MinimumFreeGB == 0 {
		config.MinimumFreeGB = 1
	}

	// overwrite with cli arguments if provided
	if len(os.Args) > 1 {
		config.Path = os.Args[1]
	}

	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &config.MaxChunkSize)
	}

	fmt.Printf("Path: %s\n", config.Path)
	fmt.Printf("Minimum free GB: %d\n", config.MinimumFreeGB)

	return config
}
