package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bacalhau-project/piwakawaka/internal/testutil"
	"github.com/bacalhau-project/piwakawaka/pkg/archive"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
	"github.com/bacalhau-project/piwakawaka/pkg/sshutils"
)

const testConfigYAML = `
host: 10.1.2.3
port: 2222
identities:
  - username: ops
    display_name: Operator
  - username: sar
    display_name: Sam
key_paths:
  - ~/.ssh/piwakawaka
dial_timeout: 5s
host_key_policy: strict
ship:
  max_depth: 5
  compression: store
  create_remote_dir: true
progress:
  bar: true
log:
  level: debug
  path: ~/piwakawaka.log
`

// isolate points HOME and the .env lookup at empty temp locations.
func isolate(t *testing.T) string {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	prev := DotEnvFile
	DotEnvFile = filepath.Join(t.TempDir(), ".env")
	t.Cleanup(func() { DotEnvFile = prev })
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, sshutils.DefaultHost, cfg.Host)
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, models.DefaultIdentities, cfg.Identities)
	assert.True(t, cfg.UseAgent)
	assert.Equal(t, filepath.Join(home, ".ssh", "known_hosts"), cfg.KnownHosts)
	assert.Equal(t, filepath.Join(home, ".ssh", "id_rsa"), cfg.KeyPaths[0])
	assert.Equal(t, "auto-add", cfg.HostKeyPolicy)
	assert.Zero(t, cfg.DialTimeout)
	assert.Equal(t, 3, cfg.Ship.MaxDepth)
	assert.Equal(t, "zipped_dir.zip", cfg.Ship.ArchiveName)
	assert.Equal(t, "deflate", cfg.Ship.Compression)
	assert.False(t, cfg.Ship.CreateRemoteDir)
	assert.True(t, cfg.Progress.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadHomeConfigFile(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".piwakawaka.yaml"), []byte("port: 2200\n"), 0600))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 2200, cfg.Port)
	assert.Equal(t, sshutils.DefaultHost, cfg.Host)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	home := isolate(t)
	path, cleanup, err := testutil.WriteStringToTempFileWithExtension(testConfigYAML, ".yaml")
	require.NoError(t, err)
	defer cleanup()

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "10.1.2.3", cfg.Host)
	assert.Equal(t, 2222, cfg.Port)
	assert.Equal(t, []models.Identity{
		{Username: "ops", DisplayName: "Operator"},
		{Username: "sar", DisplayName: "Sam"},
	}, cfg.Identities)
	assert.Equal(t, []string{filepath.Join(home, ".ssh", "piwakawaka")}, cfg.KeyPaths)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 5, cfg.Ship.MaxDepth)
	assert.True(t, cfg.Ship.CreateRemoteDir)
	assert.True(t, cfg.Progress.Bar)
	assert.Equal(t, filepath.Join(home, "piwakawaka.log"), cfg.Log.FilePath)

	sc := cfg.SessionConfig()
	assert.Equal(t, "10.1.2.3:2222", sc.Address())
	assert.Equal(t, sshutils.HostKeyStrict, sc.HostKeyPolicy)
	assert.Equal(t, 5*time.Second, sc.DialTimeout)
	assert.Equal(t, "ops", sc.Identities[0].Username)

	opts := cfg.ShipOptions()
	assert.Equal(t, archive.Store, opts.Compression)
	assert.Equal(t, 5, opts.MaxDepth)
	assert.True(t, opts.ShowProgress)
	assert.True(t, opts.CreateRemoteDir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	isolate(t)
	path, cleanup, err := testutil.WriteStringToTempFileWithExtension(testConfigYAML, ".yaml")
	require.NoError(t, err)
	defer cleanup()

	t.Setenv("PIWAKAWAKA_HOST", "192.168.0.10")
	t.Setenv("PIWAKAWAKA_SHIP_MAX_DEPTH", "0")
	t.Setenv("PIWAKAWAKA_PASSWORD", "hunter2")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.10", cfg.Host)
	assert.Equal(t, 0, cfg.Ship.MaxDepth)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, 2222, cfg.Port)
}

func TestDotEnvFile(t *testing.T) {
	isolate(t)
	path, cleanup, err := testutil.WriteStringToTempFile(
		"PIWAKAWAKA_SHIP_ARCHIVE_NAME=bundle.zip\nPIWAKAWAKA_PORT=2022\n")
	require.NoError(t, err)
	defer cleanup()
	DotEnvFile = path
	t.Setenv("PIWAKAWAKA_PORT", "2023")
	t.Cleanup(func() { os.Unsetenv("PIWAKAWAKA_SHIP_ARCHIVE_NAME") })

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "bundle.zip", cfg.Ship.ArchiveName)
	assert.Equal(t, 2023, cfg.Port)
}

func TestLoadPreparedViper(t *testing.T) {
	home := isolate(t)
	v := testutil.GetTestViper(t, testConfigYAML)

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", cfg.Host)
	assert.Equal(t, "ops", cfg.Identities[0].Username)
	assert.Equal(t, archive.Store, cfg.ShipOptions().Compression)
	assert.Equal(t, filepath.Join(home, "piwakawaka.log"), cfg.Log.FilePath)
}

func TestIdentitiesFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("PIWAKAWAKA_IDENTITIES", "ops:Operator, sar ,")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, []models.Identity{
		{Username: "ops", DisplayName: "Operator"},
		{Username: "sar"},
	}, cfg.Identities)

	t.Setenv("PIWAKAWAKA_IDENTITIES", ":Nobody")
	_, err = Load(viper.New(), "")
	assert.ErrorContains(t, err, "username is empty")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Host:          "example.com",
			Port:          22,
			Identities:    models.DefaultIdentities,
			HostKeyPolicy: "auto-add",
			Ship:          ShipConfig{MaxDepth: 3, ArchiveName: "zipped_dir.zip", Compression: "deflate"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty host", mutate: func(c *Config) { c.Host = "" }, wantErr: "host cannot be empty"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 70000 }, wantErr: "invalid port number"},
		{name: "no identities", mutate: func(c *Config) { c.Identities = nil }, wantErr: "at least one identity"},
		{
			name:    "blank username",
			mutate:  func(c *Config) { c.Identities = []models.Identity{{DisplayName: "Nobody"}} },
			wantErr: "identity 0 has no username",
		},
		{name: "bad policy", mutate: func(c *Config) { c.HostKeyPolicy = "yolo" }, wantErr: "unknown host key policy"},
		{name: "bad compression", mutate: func(c *Config) { c.Ship.Compression = "lzma" }, wantErr: "lzma"},
		{name: "unlimited depth", mutate: func(c *Config) { c.Ship.MaxDepth = -1 }},
		{name: "archive path", mutate: func(c *Config) { c.Ship.ArchiveName = "a/b.zip" }, wantErr: "archive_name"},
		{name: "negative timeout", mutate: func(c *Config) { c.DialTimeout = -time.Second }, wantErr: "dial_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestYAMLRedactsPassword(t *testing.T) {
	isolate(t)
	t.Setenv("PIWAKAWAKA_PASSWORD", "hunter2")
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	data, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Equal(t, "hunter2", cfg.Password)

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "********", decoded["password"])
	assert.Equal(t, sshutils.DefaultHost, decoded["host"])
	ship := decoded["ship"].(map[string]interface{})
	assert.Equal(t, 3, ship["max_depth"])
}
