// Package config loads piwakawaka's settings from defaults, a YAML file, a
// .env file, PIWAKAWAKA_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bacalhau-project/piwakawaka/pkg/archive"
	"github.com/bacalhau-project/piwakawaka/pkg/logger"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
	"github.com/bacalhau-project/piwakawaka/pkg/shipper"
	"github.com/bacalhau-project/piwakawaka/pkg/sshutils"
)

const (
	EnvPrefix      = "PIWAKAWAKA"
	ConfigName     = ".piwakawaka"
	redactedSecret = "********"
)

// DotEnvFile is read, if present, before the environment is consulted.
// Variables already set in the environment win over it.
var DotEnvFile = ".env"

type Config struct {
	Host          string            `yaml:"host"            mapstructure:"host"`
	Port          int               `yaml:"port"            mapstructure:"port"`
	Password      string            `yaml:"password"        mapstructure:"password"`
	Identities    []models.Identity `yaml:"identities"      mapstructure:"identities"`
	KeyPaths      []string          `yaml:"key_paths"       mapstructure:"key_paths"`
	UseAgent      bool              `yaml:"use_agent"       mapstructure:"use_agent"`
	KnownHosts    string            `yaml:"known_hosts"     mapstructure:"known_hosts"`
	HostKeyPolicy string            `yaml:"host_key_policy" mapstructure:"host_key_policy"`
	DialTimeout   time.Duration     `yaml:"dial_timeout"    mapstructure:"dial_timeout"`

	Ship     ShipConfig     `yaml:"ship"     mapstructure:"ship"`
	Progress ProgressConfig `yaml:"progress" mapstructure:"progress"`
	Log      logger.Config  `yaml:"log"      mapstructure:"log"`
}

type ShipConfig struct {
	MaxDepth        int    `yaml:"max_depth"         mapstructure:"max_depth"`
	ArchiveName     string `yaml:"archive_name"      mapstructure:"archive_name"`
	Compression     string `yaml:"compression"       mapstructure:"compression"`
	CreateRemoteDir bool   `yaml:"create_remote_dir" mapstructure:"create_remote_dir"`
	EchoRemote      bool   `yaml:"echo_remote"       mapstructure:"echo_remote"`
}

type ProgressConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Bar     bool `yaml:"bar"     mapstructure:"bar"`
}

// SetDefaults registers every key so that environment variables are picked
// up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", sshutils.DefaultHost)
	v.SetDefault("port", sshutils.DefaultPort)
	v.SetDefault("password", "")
	v.SetDefault("identities", models.DefaultIdentities)
	v.SetDefault("key_paths", sshutils.DefaultKeyPaths())
	v.SetDefault("use_agent", true)
	v.SetDefault("known_hosts", sshutils.DefaultKnownHostsPath())
	v.SetDefault("host_key_policy", string(sshutils.HostKeyAutoAdd))
	v.SetDefault("dial_timeout", time.Duration(0))

	v.SetDefault("ship.max_depth", archive.DefaultMaxDepth)
	v.SetDefault("ship.archive_name", shipper.DefaultArchiveName)
	v.SetDefault("ship.compression", archive.Deflate.String())
	v.SetDefault("ship.create_remote_dir", false)
	v.SetDefault("ship.echo_remote", false)

	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.bar", false)

	v.SetDefault("log.level", logger.InfoLogLevel)
	v.SetDefault("log.path", logger.DefaultLogPath)
	v.SetDefault("log.format", "console")
	v.SetDefault("log.console", false)
}

// Load reads cfgFile, or $HOME/.piwakawaka.yaml when cfgFile is empty, into
// v and returns the validated result. A missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, cfgFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var identityListType = reflect.TypeOf([]models.Identity(nil))

// decodeHook extends viper's default hooks so that identities can come from
// a single string such as PIWAKAWAKA_IDENTITIES="sar:Sam,ops".
var decodeHook = mapstructure.ComposeDecodeHookFunc(
	identitiesFromString,
	mapstructure.StringToTimeDurationHookFunc(),
	mapstructure.StringToSliceHookFunc(","),
)

func identitiesFromString(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != identityListType {
		return data, nil
	}
	var values []string
	for _, value := range strings.Split(data.(string), ",") {
		if strings.TrimSpace(value) != "" {
			values = append(values, value)
		}
	}
	return models.ParseIdentities(values)
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName(ConfigName)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func (c *Config) expandPaths() error {
	var err error
	for i, p := range c.KeyPaths {
		if c.KeyPaths[i], err = homedir.Expand(p); err != nil {
			return fmt.Errorf("failed to expand key path %s: %w", p, err)
		}
	}
	if c.KnownHosts, err = homedir.Expand(c.KnownHosts); err != nil {
		return fmt.Errorf("failed to expand known_hosts path: %w", err)
	}
	if c.Log.FilePath, err = homedir.Expand(c.Log.FilePath); err != nil {
		return fmt.Errorf("failed to expand log path: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Host == "" {
		problems = append(problems, "host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port number: %d", c.Port))
	}
	if len(c.Identities) == 0 {
		problems = append(problems, "at least one identity is required")
	}
	for i, id := range c.Identities {
		if id.Username == "" {
			problems = append(problems, fmt.Sprintf("identity %d has no username", i))
		}
	}
	if _, err := sshutils.ParseHostKeyPolicy(c.HostKeyPolicy); err != nil {
		problems = append(problems, err.Error())
	}
	if c.DialTimeout < 0 {
		problems = append(problems, "dial_timeout cannot be negative")
	}
	if _, err := archive.ParseCompression(c.Ship.Compression); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Ship.ArchiveName == "" || strings.Contains(c.Ship.ArchiveName, "/") {
		problems = append(problems, fmt.Sprintf("invalid ship.archive_name %q", c.Ship.ArchiveName))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SessionConfig builds the connection settings for sshutils.Open.
func (c *Config) SessionConfig() *sshutils.SessionConfig {
	sc := sshutils.NewSessionConfig(c.Host, c.Port, c.Password)
	sc.Identities = append([]models.Identity(nil), c.Identities...)
	sc.KeyPaths = append([]string(nil), c.KeyPaths...)
	sc.UseAgent = c.UseAgent
	sc.KnownHostsPath = c.KnownHosts
	sc.HostKeyPolicy, _ = sshutils.ParseHostKeyPolicy(c.HostKeyPolicy)
	sc.DialTimeout = c.DialTimeout
	return sc
}

func (c *Config) ShipOptions() shipper.Options {
	compression, _ := archive.ParseCompression(c.Ship.Compression)
	return shipper.Options{
		ShowProgress:    c.Progress.Enabled,
		Compression:     compression,
		MaxDepth:        c.Ship.MaxDepth,
		CreateRemoteDir: c.Ship.CreateRemoteDir,
		EchoRemote:      c.Ship.EchoRemote,
	}
}

// YAML renders the config with the password redacted.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if out.Password != "" {
		out.Password = redactedSecret
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}
