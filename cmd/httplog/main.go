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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jrivets/log4g"
	"github.com/logrange/httplog/cmd"
	"github.com/logrange/httplog/pkg/store"
	"github.com/logrange/httplog/pkg/util"
	"github.com/logrange/httplog/server"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v2"
)

const (
	Version = "0.1.0"
)

const (
	// Common flag names
	argLogCfgFile = "log-config-file"
	argCfgFile    = "config-file"
	argBaseDir    = "base-dir"
	argPidFile    = "pid-file"

	// Start command flag names
	argStartListenAddr     = "listen-address"
	argStartListenPort     = "listen-port"
	argStartLineLimit      = "line-limit"
	argStartNoSync         = "no-sync"
	argStartMaxRequestSize = "max-request-size"
	argStartIdleTimeout    = "idle-timeout"
	argStartMetricsAddr    = "metrics-address"

	// Rollover command flag names
	argRolloverOrigin  = "origin"
	argRolloverChannel = "channel"
)

var log = log4g.GetLogger("httplog")
var cfg = server.GetDefaultConfig()

func main() {
	defer log4g.Shutdown()

	app := &cli.App{
		Name:    "httplog",
		Version: Version,
		Usage:   "HTTP endpoint writing client messages to rotated log files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  argLogCfgFile,
				Usage: "The log4g configuration file name",
				Value: "/opt/httplog/log4g.properties",
			},
			&cli.StringFlag{
				Name:  argCfgFile,
				Usage: "The httplog configuration file name (JSON or YAML)",
				Value: "/opt/httplog/config.json",
			},
			&cli.StringFlag{
				Name:  argBaseDir,
				Usage: "Defines path to the directory where log files are stored",
				Value: cfg.BaseDir,
			},
			&cli.StringFlag{
				Name:  argPidFile,
				Usage: "The pid file name, by default it is httplog.pid in the base directory",
				Value: cfg.PidFile,
			},
		},
		Before: before,
		Commands: []*cli.Command{
			&cli.Command{
				Name:   "start",
				Usage:  "Run the service",
				Action: runServer,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  argStartListenAddr,
						Usage: "The host the HTTP server listens on",
						Value: cfg.ListenAddress,
					},
					&cli.IntFlag{
						Name:  argStartListenPort,
						Usage: "The port the HTTP server listens on",
						Value: cfg.ListenPort,
					},
					&cli.IntFlag{
						Name:  argStartLineLimit,
						Usage: "Number of lines in a log file which causes the file rollover",
						Value: cfg.LineLimit,
					},
					&cli.BoolFlag{
						Name:  argStartNoSync,
						Usage: "Don't sync every written message to the disk",
						Value: cfg.NoSync,
					},
					&cli.StringFlag{
						Name:  argStartMaxRequestSize,
						Usage: "Maximum request body size, e.g. 64KiB",
						Value: cfg.MaxRequestSize,
					},
					&cli.IntFlag{
						Name:  argStartIdleTimeout,
						Usage: "Seconds an unused log file stays open. 0 means forever.",
						Value: cfg.IdleTimeoutSec,
					},
					&cli.StringFlag{
						Name:  argStartMetricsAddr,
						Usage: "host:port for the prometheus exporter, empty value disables it",
						Value: cfg.MetricsAddress,
					},
				},
			},
			&cli.Command{
				Name:   "stop",
				Usage:  "Stop the running service",
				Action: stopServer,
			},
			&cli.Command{
				Name:   "rollover",
				Usage:  "Roll over the active log file of a channel. The service must not be running.",
				Action: rollover,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  argRolloverOrigin,
						Usage: "The client address part of the log file name",
					},
					&cli.StringFlag{
						Name:  argRolloverChannel,
						Usage: "The channel name",
					},
				},
			},
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.FlagsByName(app.Commands[0].Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		log4g.Shutdown()
		os.Exit(1)
	}
}

func before(c *cli.Context) error {
	logCfgFile := c.String(argLogCfgFile)
	if logCfgFile != "" {
		if _, err := os.Stat(logCfgFile); os.IsNotExist(err) {
			log.Warn("No file ", logCfgFile, " will use default log4g configuration")
		} else {
			log.Info("Loading log4g config from ", logCfgFile)
			err := log4g.ConfigF(logCfgFile)
			if err != nil {
				err := errors.Wrapf(err, "Could not parse %s file as a log4g configuration, please check syntax ", logCfgFile)
				log.Fatal(err)
				return err
			}
		}
	}

	fc, err := server.ReadConfigFromFile(c.String(argCfgFile))
	if err != nil {
		log.Fatal(err)
		return err
	}
	if fc != nil {
		cfg = fc
	}

	dc := server.GetDefaultConfig()
	if bd := c.String(argBaseDir); dc.BaseDir != bd {
		cfg.BaseDir = bd
	}
	if pf := c.String(argPidFile); dc.PidFile != pf {
		cfg.PidFile = pf
	}
	return nil
}

func runServer(c *cli.Context) error {
	// fill up config
	applyParamsToCfg(c)
	if err := cfg.Check(); err != nil {
		return err
	}

	unlock, err := lockPidFile()
	if err != nil {
		return err
	}
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigChan:
			log.Info("Got signal \"", s, "\", cancelling context ")
			cancel()
		}
	}()

	return server.Start(ctx, cfg)
}

func stopServer(c *cli.Context) error {
	pf := cmd.NewPidFile(cfg.PidFileName())
	pid, err := pf.Interrupt()
	if err != nil {
		return errors.Wrapf(err, "could not stop the process by %s", pf.Name())
	}
	fmt.Println("Sending interrupt notification to process pid=", pid)
	return nil
}

func rollover(c *cli.Context) error {
	key := store.Key{Origin: c.String(argRolloverOrigin), Channel: c.String(argRolloverChannel)}
	if err := key.Check(); err != nil {
		return errors.Wrapf(err, "origin=%q, channel=%q", key.Origin, key.Channel)
	}

	unlock, err := lockPidFile()
	if err != nil {
		return err
	}
	defer unlock()

	scfg := cfg.StoreConfig()
	scfg.IdleTimeout = 0
	s, err := store.New(scfg)
	if err != nil {
		return err
	}
	defer s.Close()

	rp, err := s.Rollover(key)
	if err == util.ErrNotFound {
		fmt.Println("There is no active log file ", s.ActivePath(key))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println("Rolled over to ", rp)
	return nil
}

// lockPidFile makes sure that no other process works with the base directory
func lockPidFile() (func(), error) {
	if err := util.EnsureDir(cfg.BaseDir); err != nil {
		return nil, errors.Wrapf(err, "could not create base directory %s", cfg.BaseDir)
	}
	pf := cmd.NewPidFile(cfg.PidFileName())
	if err := pf.Lock(); err != nil {
		return nil, err
	}
	log.Info("Locked pid file ", pf.Name())
	return pf.Unlock, nil
}

func applyParamsToCfg(c *cli.Context) {
	dc := server.GetDefaultConfig()
	if la := c.String(argStartListenAddr); dc.ListenAddress != la {
		cfg.ListenAddress = la
	}
	if lp := c.Int(argStartListenPort); dc.ListenPort != lp {
		cfg.ListenPort = lp
	}
	if ll := c.Int(argStartLineLimit); dc.LineLimit != ll {
		cfg.LineLimit = ll
	}
	if c.Bool(argStartNoSync) {
		cfg.NoSync = true
	}
	if mrs := c.String(argStartMaxRequestSize); dc.MaxRequestSize != mrs {
		cfg.MaxRequestSize = mrs
	}
	if it := c.Int(argStartIdleTimeout); dc.IdleTimeoutSec != it {
		cfg.IdleTimeoutSec = it
	}
	if ma := c.String(argStartMetricsAddr); dc.MetricsAddress != ma {
		cfg.MetricsAddress = ma
	}
}
