package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/chaz8081/mouseconnect/internal/ble"
	"github.com/chaz8081/mouseconnect/internal/config"
	"github.com/chaz8081/mouseconnect/internal/files"
	"github.com/chaz8081/mouseconnect/internal/transfer"
)

var cfg *config.Config

// osExit is swapped in tests.
var osExit = os.Exit

func main() {
	cli.VersionFlag = cli.BoolFlag{Name: "version, V", Usage: "print the version"}

	app := cli.NewApp()
	app.Name = "mouseconnect"
	app.Usage = "A utility to sync a file with the mouse"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{flgConfig, flgPeer, flgTimeout, flgVerbose}

	app.Commands = []cli.Command{
		{
			Name:   "mtu",
			Usage:  "Get the device's maximum transmission unit",
			Action: cmdMTU,
		},
		{
			Name:      "pull",
			Usage:     "Pull the script file from the mouse",
			ArgsUsage: "<destination>",
			Action:    cmdPull,
			Flags:     []cli.Flag{flgForce},
		},
		{
			Name:      "push",
			Usage:     "Push a script file to the mouse",
			ArgsUsage: "<source>",
			Action:    cmdPush,
		},
		{
			Name:   "devices",
			Usage:  "List connected devices exposing the UART service",
			Action: cmdDevices,
		},
		{
			Name:   "config",
			Usage:  "Write the default config file if none exists",
			Action: cmdConfig,
		},
	}

	app.Before = setup
	app.CommandNotFound = commandNotFound
	if err := app.Run(os.Args); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}

// commandNotFound rejects an unknown subcommand. urfave/cli would otherwise
// print help and exit 0.
func commandNotFound(c *cli.Context, name string) {
	fmt.Printf("error: unknown command %q\n", name)
	osExit(1)
}

// setup loads the configuration, applies flag overrides and installs the logger.
func setup(c *cli.Context) error {
	if cfg != nil {
		return nil
	}
	loaded, err := loadConfig(c.String("config"))
	if err != nil {
		return errors.Wrap(err, "config")
	}
	if c.IsSet("peer") {
		loaded.Link.PeerAddress = c.String("peer")
	}
	if c.IsSet("timeout") {
		loaded.Link.ExchangeTimeout = c.Duration("timeout")
	}
	if c.Bool("verbose") {
		loaded.LogLevel = "debug"
	}
	if err := loaded.Validate(); err != nil {
		return errors.Wrap(err, "config validation")
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLogLevel(loaded.LogLevel)})
	slog.SetDefault(slog.New(handler))
	cfg = loaded
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		loaded, err := config.Load(defaultPath)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", defaultPath)
		}
		return loaded, nil
	}
	return config.Default(), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// connect brings the link up and returns a transfer client over it.
func connect(ctx context.Context) (*transfer.Client, *ble.Link, error) {
	fmt.Println("connecting...")
	adapter := ble.NewBluetoothAdapter(cfg.Link.LookupTimeout)
	link := ble.NewLink(adapter, cfg.LinkOptions())

	tr, err := link.Connect(ctx)
	if err != nil {
		link.Close()
		return nil, nil, err
	}
	if p := link.Peer(); p != nil {
		fmt.Printf("connected to %s\n", p.DisplayName())
	}

	client := transfer.NewClient(tr)
	client.Timeout = cfg.Link.ExchangeTimeout
	return client, link, nil
}

func cmdMTU(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, link, err := connect(ctx)
	if err != nil {
		return chkErr(err)
	}
	defer link.Close()

	mtu, err := client.QueryMTU(ctx)
	if err != nil {
		return chkErr(err)
	}
	fmt.Printf("mtu: %d\n", mtu)
	return nil
}

func cmdPull(c *cli.Context) error {
	dst := c.Args().First()
	if dst == "" {
		return errors.New("missing destination file name")
	}
	force := c.Bool("force") || hasForceFlag(c.Args().Tail())

	var store files.OSStore
	if !force {
		exists, err := store.Exists(dst)
		if err != nil {
			return err
		}
		if exists {
			return errors.New("destination file exists, use -f to overwrite")
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, link, err := connect(ctx)
	if err != nil {
		return chkErr(err)
	}
	defer link.Close()

	sum, err := client.PullFile(ctx, store, dst, force)
	if err != nil {
		return chkErr(err)
	}
	fmt.Printf("saved %s\n", sum)
	return nil
}

func cmdPush(c *cli.Context) error {
	src := c.Args().First()
	if src == "" {
		return errors.New("missing source file name")
	}

	var store files.OSStore
	size, err := store.Size(src)
	if err != nil {
		if errors.Is(err, files.ErrSourceMissing) {
			return errors.New("source file does not exist")
		}
		return errors.Wrap(err, "can't retrieve source file size")
	}
	slog.Debug("[XFER] source", "path", src, "bytes", size)

	ctx, cancel := signalContext()
	defer cancel()

	client, link, err := connect(ctx)
	if err != nil {
		return chkErr(err)
	}
	defer link.Close()

	sum, err := client.PushFile(ctx, store, src)
	if err != nil {
		return chkErr(err)
	}
	fmt.Printf("pushed %s\n", sum)
	return nil
}

func cmdDevices(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	adapter := ble.NewBluetoothAdapter(cfg.Link.LookupTimeout)
	devices, err := ble.ListPeers(ctx, adapter, cfg.LinkOptions().ServiceUUID)
	if err != nil {
		return chkErr(err)
	}
	if len(devices) == 0 {
		fmt.Println("no connected devices")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("  %-20s %s\n", d.DisplayName(), d.Address)
	}
	return nil
}

func cmdConfig(c *cli.Context) error {
	path, err := config.WriteDefault()
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Printf("config already exists at %s\n", config.DefaultConfigPath())
		return nil
	}
	fmt.Printf("wrote default config to %s\n", path)
	return nil
}
