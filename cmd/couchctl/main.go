// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Couchctl is a command-line administration tool for CouchDB
// 2.x servers and clusters.
//
// Connection parameters come from an optional YAML file, for instance
//
//     hostname: couch1.example.com
//     port: 5984
//     admin_port: 5986
//     username: admin
//     transport: raw
//     log_level: debug
//
// overlaid with command-line flags.  Every command prints the
// server's JSON reply, and exits with status 1 if the call failed or
// CouchDB returned an error document.
package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/diffeo/go-couchdb/couchclient"
	"github.com/diffeo/go-couchdb/transport"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v2"
)

// controller holds what every command needs.
type controller struct {
	Server *couchclient.Server
	Out    io.Writer
	Err    io.Writer

	// dial, if set, overrides how connections are opened.
	dial transport.DialFunc
}

func loadConfigYaml(filename string) (couchclient.Config, error) {
	var config couchclient.Config
	bytes, err := ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.UnmarshalStrict(bytes, &config)
	}
	if err != nil {
		err = fmt.Errorf("%s: %w", filename, err)
	}
	return config, err
}

// buildConfig reads the configuration file named by --config, if
// any, and applies every flag that was given explicitly.
func buildConfig(c *cli.Context, strategy *transport.Strategy) (couchclient.Config, error) {
	var config couchclient.Config
	if filename := c.String("config"); filename != "" {
		var err error
		config, err = loadConfigYaml(filename)
		if err != nil {
			return config, err
		}
	}
	if c.IsSet("host") || config.Hostname == "" {
		config.Hostname = c.String("host")
	}
	if c.IsSet("port") {
		config.Port = c.Int("port")
	}
	if c.IsSet("admin-port") {
		config.AdminPort = c.Int("admin-port")
	}
	if c.IsSet("user") {
		config.Username = c.String("user")
	}
	if c.IsSet("password") {
		config.Password = c.String("password")
	}
	if c.IsSet("compat") {
		config.Compatibility = c.Bool("compat")
	}
	if c.IsSet("log-level") {
		config.LogLevel = c.String("log-level")
	}
	if c.IsSet("transport") {
		config.Transport = *strategy
	}
	return config, nil
}

func newApp(ctl *controller) *cli.App {
	strategy := transport.Strategy{}
	app := cli.NewApp()
	app.Name = "couchctl"
	app.Usage = "administer a CouchDB 2.x server or cluster"
	app.Writer = ctl.Out
	app.ErrWriter = ctl.Err
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML configuration file",
		},
		cli.StringFlag{
			Name:   "host",
			Value:  "localhost",
			Usage:  "CouchDB host name",
			EnvVar: "COUCHDB_HOST",
		},
		cli.IntFlag{
			Name:  "port",
			Value: couchclient.DefaultPort,
			Usage: "public API port",
		},
		cli.IntFlag{
			Name:  "admin-port",
			Value: couchclient.DefaultAdminPort,
			Usage: "node-local administrative port",
		},
		cli.StringFlag{
			Name:   "user",
			Usage:  "user name for basic authentication",
			EnvVar: "COUCHDB_USER",
		},
		cli.StringFlag{
			Name:   "password",
			Usage:  "password for basic authentication",
			EnvVar: "COUCHDB_PASSWORD",
		},
		cli.GenericFlag{
			Name:  "transport",
			Value: &strategy,
			Usage: "transport strategy, http or raw",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "warning",
			Usage: "logrus level: debug, info, warning, error",
		},
		cli.BoolFlag{
			Name:  "compat",
			Usage: "request legacy compatibility behavior",
		},
	}
	app.Commands = append(ctl.serverCommands(), ctl.entityCommands()...)
	app.Commands = append(app.Commands, ctl.monitorCommand())
	app.Before = func(c *cli.Context) error {
		config, err := buildConfig(c, &strategy)
		if err != nil {
			return err
		}
		if config.LogLevel == "" {
			config.LogLevel = "warning"
		}
		logger := logrus.New()
		logger.Out = ctl.Err
		config.Logger = logger
		config.Dial = ctl.dial
		ctl.Server, err = couchclient.New(config)
		return err
	}
	return app
}

func main() {
	ctl := &controller{Out: os.Stdout, Err: os.Stderr}
	app := newApp(ctl)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(ctl.Err, color.RedString("couchctl: %v", err))
		os.Exit(1)
	}
}
