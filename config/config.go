// Package config loads the tool configuration with viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/boypt/simple-btclient/engine"
	"github.com/boypt/simple-btclient/indexer"
	"github.com/boypt/simple-btclient/server"
)

const (
	configName = "simple-btclient"
	// DefaultLogFile is where logs go unless configured otherwise
	DefaultLogFile = "/tmp/simple-btclient.log"
)

type Logger interface {
	Printf(format string, v ...interface{})
}

type LogConfig struct {
	Level      string `yaml:"Level"`
	File       string `yaml:"File"`
	Foreground bool   `yaml:"Foreground"`
}

type IndexConfig struct {
	PushURL    string `yaml:"PushURL"`
	PullURL    string `yaml:"PullURL"`
	Listen     string `yaml:"Listen"`
	DBPath     string `yaml:"DBPath"`
	Auth       string `yaml:"Auth"`
	RequestLog bool   `yaml:"RequestLog"`
	MaxSize    string `yaml:"MaxSize"`
}

func (c *IndexConfig) Server() server.Config {
	return server.Config{
		Listen:  c.Listen,
		DBPath:  c.DBPath,
		Auth:    c.Auth,
		Log:     c.RequestLog,
		MaxSize: c.MaxSize,
	}
}

type IndexerConfig struct {
	WatchPaths          []string      `yaml:"WatchPaths,omitempty"`
	Trackers            []string      `yaml:"Trackers,omitempty"`
	Comment             string        `yaml:"Comment"`
	Settle              time.Duration `yaml:"Settle"`
	MaxFileSize         string        `yaml:"MaxFileSize"`
	MaxConcurrentBuilds int           `yaml:"MaxConcurrentBuilds"`
}

// Options converts the section into indexer options.
func (c *IndexerConfig) Options() ([]indexer.Option, error) {
	opts := []indexer.Option{
		indexer.WithSettle(c.Settle),
		indexer.WithMaxConcurrentBuilds(c.MaxConcurrentBuilds),
	}
	if c.MaxFileSize != "" {
		var v datasize.ByteSize
		if err := v.UnmarshalText([]byte(c.MaxFileSize)); err != nil {
			return nil, fmt.Errorf("invalid MaxFileSize %q: %w", c.MaxFileSize, err)
		}
		opts = append(opts, indexer.WithMaxFileSize(v))
	}
	return opts, nil
}

type Config struct {
	Log     LogConfig     `yaml:"Log"`
	Engine  engine.Config `yaml:"Engine"`
	Index   IndexConfig   `yaml:"Index"`
	Indexer IndexerConfig `yaml:"Indexer"`

	path string
}

// Path is the config file in use.
func (c *Config) Path() string {
	return c.path
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.File", DefaultLogFile)
	v.SetDefault("Log.Foreground", false)

	v.SetDefault("Engine.DownloadDirectory", "./downloads")
	v.SetDefault("Engine.PortStart", engine.DefaultPortStart)
	v.SetDefault("Engine.PortEnd", engine.DefaultPortEnd)
	v.SetDefault("Engine.AllocateStorage", false)
	v.SetDefault("Engine.EnableUpload", true)
	v.SetDefault("Engine.EnableSeeding", false)
	v.SetDefault("Engine.MuteEngineLog", true)

	v.SetDefault("Index.PushURL", "http://localhost:3000/push")
	v.SetDefault("Index.PullURL", "http://localhost:3000/pull")
	v.SetDefault("Index.Listen", ":3000")
	v.SetDefault("Index.DBPath", "./index.db")
	v.SetDefault("Index.MaxSize", "32MB")

	v.SetDefault("Indexer.Settle", indexer.DefaultSettle)
	v.SetDefault("Indexer.MaxFileSize", indexer.DefaultMaxFileSize.String())
	v.SetDefault("Indexer.MaxConcurrentBuilds", indexer.DefaultMaxConcurrentBuilds)
}

// InitConf reads specPath, or the first config found on the search path.
// When no file exists the defaults are written out.
func InitConf(specPath string, log Logger) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/simple-btclient/")
	v.AddConfigPath("$HOME/.simple-btclient")
	v.AddConfigPath(".")
	setDefaults(v)

	// user specific config path
	if stat, err := os.Stat(specPath); stat != nil && err == nil {
		v.SetConfigFile(specPath)
	}

	configExists := true
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
		configExists = false
		if specPath == "" {
			specPath = "./" + configName + ".yaml"
		}
		v.SetConfigFile(specPath)
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("malformed configuration: %w", err)
	}
	c.path = v.ConfigFileUsed()

	dirChanged, err := c.Engine.NormlizeConfigDir()
	if err != nil {
		return nil, err
	}

	log.Printf("[config] selected config file: %s", c.path)
	if !configExists || dirChanged {
		if err := c.WriteYaml(); err != nil {
			return nil, err
		}
		log.Printf("[config] config file written: %s exists: %v dirchanged: %v", c.path, configExists, dirChanged)
	}
	return c, nil
}

func (c *Config) WriteYaml() error {
	d, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, d, 0644)
}
