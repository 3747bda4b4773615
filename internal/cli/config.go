// ============================================================================
// clusterqueue CLI — Configuration
// ============================================================================
//
// Package: internal/cli
// File: config.go
// Purpose: YAML-tagged Config struct and loader: a nested
// Queue/Worker/Cluster/Metrics configuration loaded with yaml.v3.
//
// ============================================================================

package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete system configuration, loaded from a YAML file.
type Config struct {
	Queue struct {
		Root         string `yaml:"root"`
		MaxQueueSize int    `yaml:"max_queue_size"`
		BatchSize    int    `yaml:"batch_size"`
	} `yaml:"queue"`

	Worker struct {
		WorkerCount int           `yaml:"worker_count"`
		TaskTimeout time.Duration `yaml:"task_timeout"`
	} `yaml:"worker"`

	Cluster struct {
		NodeName   string   `yaml:"node_name"`
		ListenAddr string   `yaml:"listen_addr"`
		Peers      []string `yaml:"peers"`
	} `yaml:"cluster"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &cfg, nil
}
