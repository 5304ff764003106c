package main

import (
	"github.com/urfave/cli"
)

var (
	flgConfig  = cli.StringFlag{Name: "config, c", Usage: "path to config file (default: ~/.config/mouseconnect/config.yaml)"}
	flgPeer    = cli.StringFlag{Name: "peer, p", Usage: "address of the connected device to use when several are connected"}
	flgTimeout = cli.DurationFlag{Name: "timeout, t", Usage: "bound each exchange (0: no limit)"}
	flgVerbose = cli.BoolFlag{Name: "verbose", Usage: "log every write and notification"}
	flgForce   = cli.BoolFlag{Name: "force, f", Usage: "overwrite destination file if exists"}
)
