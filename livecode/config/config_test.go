package config

import (
	"os"
	"path/filepath"
	"testing"

	internal "github.com/ZanzyTHEbar/livecode/livecode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		_ = os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), internal.DefaultSourceDir, cfg.LiveCode.SourceDir)
	assert.Equal(suite.T(), internal.DefaultSnapshotFile, cfg.LiveCode.SnapshotFile)
	assert.Equal(suite.T(), internal.DefaultPatchFile, cfg.LiveCode.PatchFile)
	assert.False(suite.T(), cfg.LiveCode.ReloadLibs)
	assert.Equal(suite.T(), internal.DefaultDebounceMs, cfg.Watch.DebounceMs)
	assert.Equal(suite.T(), internal.DefaultMaxDebounceMs, cfg.Watch.MaxDebounceMs)
	assert.Equal(suite.T(), internal.DefaultQueueCapacity, cfg.Watch.QueueCapacity)
	assert.False(suite.T(), cfg.Journal.Enabled)
	assert.Equal(suite.T(), internal.DefaultJournalPath, cfg.Journal.Path)
	assert.Equal(suite.T(), "info", cfg.Log.Level)
	assert.Empty(suite.T(), cfg.Metrics.Addr)

	assert.Equal(suite.T(), "compact.cirru", cfg.SnapshotPath())
	assert.Equal(suite.T(), ".compact-inc.cirru", cfg.PatchPath())
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
livecode:
  sourceDir: "./app/src"
  snapshotFile: "app.cirru"
  reloadLibs: true
watch:
  debounceMs: 50
  maxDebounceMs: 500
  queueCapacity: 8
journal:
  enabled: true
  inMemory: true
log:
  level: debug
metrics:
  addr: ":9464"
`
	configFile := filepath.Join(suite.tempDir, "livecode.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte(configContent), 0o644))

	cfg, err := LoadConfig(configFile)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "./app/src", cfg.LiveCode.SourceDir)
	assert.True(suite.T(), cfg.LiveCode.ReloadLibs)
	assert.Equal(suite.T(), 50, cfg.Watch.DebounceMs)
	assert.Equal(suite.T(), 500, cfg.Watch.MaxDebounceMs)
	assert.Equal(suite.T(), 8, cfg.Watch.QueueCapacity)
	assert.True(suite.T(), cfg.Journal.Enabled)
	assert.True(suite.T(), cfg.Journal.InMemory)
	assert.Equal(suite.T(), "debug", cfg.Log.Level)
	assert.Equal(suite.T(), ":9464", cfg.Metrics.Addr)

	assert.Equal(suite.T(), filepath.Join("app", "app.cirru"), cfg.SnapshotPath())
	assert.Equal(suite.T(), cfg.LiveCode.SourceDir, AppConfig.LiveCode.SourceDir)
}

func (suite *ConfigTestSuite) TestLoadConfigFromWorkingDirectory() {
	require.NoError(suite.T(), os.WriteFile("livecode.yaml", []byte("watch:\n  debounceMs: 10\n"), 0o644))

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 10, cfg.Watch.DebounceMs)
}

func (suite *ConfigTestSuite) TestEnvironmentOverrides() {
	suite.T().Setenv("LIVECODE_WATCH_DEBOUNCEMS", "75")
	suite.T().Setenv("LIVECODE_LIVECODE_RELOADLIBS", "true")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 75, cfg.Watch.DebounceMs)
	assert.True(suite.T(), cfg.LiveCode.ReloadLibs)
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	cfg, err := LoadConfig("/nonexistent/path/livecode.yaml")
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	configFile := filepath.Join(suite.tempDir, "malformed.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte("watch:\n  debounceMs: [unclosed\n"), 0o644))

	cfg, err := LoadConfig(configFile)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigRejectsInvalidValues() {
	configFile := filepath.Join(suite.tempDir, "bad.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte("watch:\n  debounceMs: 900\n  maxDebounceMs: 100\n"), 0o644))

	cfg, err := LoadConfig(configFile)
	assert.ErrorContains(suite.T(), err, "maxDebounceMs")
	assert.Nil(suite.T(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		LiveCode: LiveCodeConfig{SourceDir: "src"},
		Watch:    WatchConfig{DebounceMs: 1, MaxDebounceMs: 2, QueueCapacity: 1},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Watch.QueueCapacity = 0
	assert.Error(t, cfg.Validate())

	cfg.Watch.QueueCapacity = 1
	cfg.LiveCode.SourceDir = ""
	assert.Error(t, cfg.Validate())
}

// BenchmarkLoadConfig benchmarks config loading performance
func BenchmarkLoadConfig(b *testing.B) {
	for b.Loop() {
		if _, err := LoadConfig(""); err != nil {
			b.Fatal(err)
		}
	}
}
