package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd)
	assert.Equal(t, "clusterqueue", cmd.Use)
	assert.Equal(t, "1.0.0", cmd.Version)

	commands := cmd.Commands()
	names := make(map[string]bool)
	for _, c := range commands {
		names[c.Name()] = true
	}

	assert.True(t, names["run"])
	assert.True(t, names["submit"])
	assert.True(t, names["cancel"])
	assert.True(t, names["drain"])
	assert.True(t, names["status"])

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue)
}

func TestBuildRunCommand(t *testing.T) {
	cmd := buildRunCommand()
	assert.Equal(t, "run", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildSubmitCommand(t *testing.T) {
	cmd := buildSubmitCommand()
	assert.Equal(t, "submit", cmd.Use)

	fileFlag := cmd.Flags().Lookup("file")
	require.NotNil(t, fileFlag)
	assert.Equal(t, "f", fileFlag.Shorthand)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildCancelCommand(t *testing.T) {
	cmd := buildCancelCommand()
	assert.Equal(t, "cancel <job-id>", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildDrainCommand(t *testing.T) {
	cmd := buildDrainCommand()
	assert.Equal(t, "drain", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("undrain"))
}

func TestBuildStatusCommand(t *testing.T) {
	cmd := buildStatusCommand()
	assert.Equal(t, "status", cmd.Use)
	assert.Contains(t, cmd.Short, "status")
	assert.NotNil(t, cmd.RunE)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	configContent := `
queue:
  root: ./data
  max_queue_size: 1000
  batch_size: 32

worker:
  worker_count: 4
  task_timeout: 5s

cluster:
  node_name: node-a
  listen_addr: ":7000"
  peers: ["10.0.0.2:7000"]

metrics:
  enabled: true
  port: 8080
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := loadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 4, cfg.Worker.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.Worker.TaskTimeout)
	assert.Equal(t, "./data", cfg.Queue.Root)
	assert.Equal(t, 1000, cfg.Queue.MaxQueueSize)
	assert.Equal(t, "node-a", cfg.Cluster.NodeName)
	assert.Equal(t, []string{"10.0.0.2:7000"}, cfg.Cluster.Peers)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 8080, cfg.Metrics.Port)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := loadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
worker:
  worker_count: "not a number"
  invalid yaml structure
    broken indentation
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0o644))

	cfg, err := loadConfig(configPath)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "empty.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(""), 0o644))

	cfg, err := loadConfig(configPath)
	assert.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 0, cfg.Worker.WorkerCount)
}

func TestLoadConfig_PartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.yaml")

	partialConfig := `
worker:
  worker_count: 2
`
	require.NoError(t, os.WriteFile(configPath, []byte(partialConfig), 0o644))

	cfg, err := loadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Worker.WorkerCount)
	assert.Empty(t, cfg.Queue.Root)
}

func TestSubmitJobs_InvalidFile(t *testing.T) {
	err := submitJobs("/nonexistent/jobs.json")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read job file")
}

func TestSubmitJobs_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	jobFile := filepath.Join(tmpDir, "invalid.json")
	require.NoError(t, os.WriteFile(jobFile, []byte(`{"invalid json structure`), 0o644))

	err := submitJobs(jobFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse job file")
}

func TestConfigStructure(t *testing.T) {
	cfg := Config{}
	cfg.Worker.WorkerCount = 10
	cfg.Worker.TaskTimeout = 5 * time.Second
	cfg.Queue.Root = "/test"
	cfg.Queue.BatchSize = 100
	cfg.Cluster.NodeName = "node-a"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9090

	assert.Equal(t, 10, cfg.Worker.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.Worker.TaskTimeout)
	assert.Equal(t, "/test", cfg.Queue.Root)
	assert.Equal(t, 100, cfg.Queue.BatchSize)
	assert.Equal(t, "node-a", cfg.Cluster.NodeName)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}
