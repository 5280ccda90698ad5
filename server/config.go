// Copyright 2018 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jrivets/log4g"
	"github.com/logrange/httplog/api/rest"
	"github.com/logrange/httplog/pkg/metrics"
	"github.com/logrange/httplog/pkg/store"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config struct defines httplog server settings
type Config struct {
	// ListenAddress contains the host the HTTP server listens on
	ListenAddress string

	// ListenPort contains the port the HTTP server listens on
	ListenPort int

	// BaseDir contains path on the local file-system where log files
	// are stored
	BaseDir string

	// LineLimit defines number of lines which causes the active log file
	// rollover
	LineLimit int

	// NoSync disables syncing every append to the disk
	NoSync bool

	// MaxRequestSize limits a request body size, human readable sizes
	// like "64KiB" or "1MB" are accepted
	MaxRequestSize string

	// IdleTimeoutSec defines in seconds how long a log file can stay open
	// without writes. 0 means forever.
	IdleTimeoutSec int

	// MetricsAddress is the host:port for the prometheus exporter. Empty
	// value disables the exporter
	MetricsAddress string

	// PidFile contains the pid file name. The file is locked while the
	// server is running, so only one server can write to BaseDir. If empty,
	// httplog.pid in BaseDir is used.
	PidFile string
}

const defaultPidFileName = "httplog.pid"

var configLog = log4g.GetLogger("Config")

// GetDefaultConfig returns the config with default settings
func GetDefaultConfig() *Config {
	c := new(Config)
	c.ListenAddress = "0.0.0.0"
	c.ListenPort = 3000
	c.BaseDir = "/var/lib/httplog/"
	c.LineLimit = 100
	c.MaxRequestSize = "64KiB"
	c.IdleTimeoutSec = 60
	return c
}

// Check returns an error if the settings are inconsistent
func (c *Config) Check() error {
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid ListenPort=%d, must be in [0..65535]", c.ListenPort)
	}
	if len(c.BaseDir) == 0 {
		return fmt.Errorf("BaseDir must be provided")
	}
	if c.LineLimit <= 0 {
		return fmt.Errorf("invalid LineLimit=%d, must be > 0", c.LineLimit)
	}
	if c.IdleTimeoutSec < 0 {
		return fmt.Errorf("invalid IdleTimeoutSec=%d, must be >= 0", c.IdleTimeoutSec)
	}
	if _, err := c.maxRequestSize(); err != nil {
		return err
	}
	return nil
}

// StoreConfig returns the store.Store settings
func (c *Config) StoreConfig() *store.Config {
	return &store.Config{
		Dir:         c.BaseDir,
		LineLimit:   c.LineLimit,
		SyncWrites:  !c.NoSync,
		IdleTimeout: time.Duration(c.IdleTimeoutSec) * time.Second,
	}
}

// RestConfig returns the rest.Server settings
func (c *Config) RestConfig() (*rest.Config, error) {
	sz, err := c.maxRequestSize()
	if err != nil {
		return nil, err
	}
	return &rest.Config{
		ListenAddress:  c.ListenAddress,
		ListenPort:     c.ListenPort,
		MaxRequestSize: sz,
	}, nil
}

// ExporterConfig returns the metrics.Exporter settings
func (c *Config) ExporterConfig() *metrics.ExporterConfig {
	return &metrics.ExporterConfig{Address: c.MetricsAddress}
}

// PidFileName returns the pid file name
func (c *Config) PidFileName() string {
	if len(c.PidFile) > 0 {
		return c.PidFile
	}
	return filepath.Join(c.BaseDir, defaultPidFileName)
}

func (c *Config) maxRequestSize() (int64, error) {
	sz, err := humanize.ParseBytes(c.MaxRequestSize)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid MaxRequestSize=%q", c.MaxRequestSize)
	}
	if sz == 0 || sz > 1<<30 {
		return 0, fmt.Errorf("invalid MaxRequestSize=%q, must be in (0..1GiB]", c.MaxRequestSize)
	}
	return int64(sz), nil
}

func (c *Config) String() string {
	return fmt.Sprintf("{ListenAddress=%s, ListenPort=%d, BaseDir=%s, LineLimit=%d, NoSync=%t, MaxRequestSize=%s, IdleTimeoutSec=%d, MetricsAddress=%s, PidFile=%s}",
		c.ListenAddress, c.ListenPort, c.BaseDir, c.LineLimit, c.NoSync, c.MaxRequestSize, c.IdleTimeoutSec, c.MetricsAddress, c.PidFileName())
}

// ReadConfigFromFile read config file from filename. It returns nil, if filename
// is empty or not found. Files with .yaml or .yml extension are parsed as YAML,
// others as JSON. Keys are matched to the Config field names case-insensitively.
// Settings missing in the file keep default values, the ones present in the
// file override defaults even if they are zero.
func ReadConfigFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, nil
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		configLog.Warn("There is no file ", filename, " for reading httplog config, will use default configuration.")
		return nil, nil
	}

	cfgData, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read data from config file %s", filename)
	}

	c, err := parseConfig(cfgData, filepath.Ext(filename))
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse config file %s", filename)
	}

	configLog.Info("Configuration read from ", filename)
	return c, nil
}

func parseConfig(data []byte, ext string) (*Config, error) {
	var m map[string]interface{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrap(err, "could not unmarshal yaml")
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrap(err, "could not unmarshal json")
		}
	}

	c := GetDefaultConfig()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           c,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, err
	}
	return c, nil
}
