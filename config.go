package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const defaultSearchPath = "refserve.conf:/etc/refserve.conf"

var errNoConfig = errors.New("no config file found")

type refserveConfig struct {
	Reference                       string   `toml:"reference"`
	Bind                            string   `toml:"bind"`
	ContentType                     string   `toml:"content_type"`
	MaxDownloadBandwidthMBPerSecond float64  `toml:"max_download_bandwidth_mb_per_second"`
	ShutdownTimeout                 duration `toml:"shutdown_timeout"`

	Datadog datadogConfig `toml:"datadog"`
	Debug   debugConfig   `toml:"debug"`
}

type datadogConfig struct {
	Url string `toml:"url"`
}

type debugConfig struct {
	Bind    string `toml:"bind"`
	Expvars bool   `toml:"expvars"`
	Pprof   bool   `toml:"pprof"`
}

func defaultConfig() refserveConfig {
	return refserveConfig{
		Reference:       "",
		Bind:            "0.0.0.0:9590",
		ContentType:     "text/plain",
		ShutdownTimeout: duration{time.Second},
		Datadog: datadogConfig{
			Url: "",
		},
		Debug: debugConfig{
			Bind:    "",
			Expvars: true,
			Pprof:   false,
		},
	}
}

func loadConfig(searchPath string) (refserveConfig, error) {
	if searchPath == "" {
		searchPath = defaultSearchPath
	}

	config := defaultConfig()
	paths := filepath.SplitList(searchPath)
	for _, path := range paths {
		md, err := toml.DecodeFile(path, &config)
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return config, err
		} else if len(md.Undecoded()) > 0 {
			return config, fmt.Errorf("found unrecognized properties: %v", md.Undecoded())
		}

		return config, nil
	}

	return config, errNoConfig
}

func validateConfig(config refserveConfig) (refserveConfig, error) {
	if config.Reference == "" {
		return config, errors.New("reference must be set")
	}

	if config.MaxDownloadBandwidthMBPerSecond < 0 {
		return config, fmt.Errorf("invalid download bandwidth: %v", config.MaxDownloadBandwidthMBPerSecond)
	}

	return config, nil
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
