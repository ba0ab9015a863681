//go:build linux

package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"machinerun.io/clearpart"
	"machinerun.io/clearpart/config"
	"machinerun.io/clearpart/linux"
	"machinerun.io/clearpart/memgraph"
)

//nolint:gochecknoglobals
var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "configuration file (default: clearpart.yaml in /etc/clearpart or .)",
	},
	&cli.StringFlag{
		Name:  "layout",
		Usage: "read devices from a json or yaml layout file instead of the system",
	},
	&cli.StringFlag{
		Name:  "image",
		Usage: "read devices from a disk image file instead of the system",
	},
	&cli.StringFlag{
		Name:  "type",
		Usage: "clear type: none, linux, all, list or default",
	},
	&cli.StringSliceFlag{
		Name:  "disk",
		Usage: "restrict clearing to this disk (repeatable)",
	},
	&cli.StringSliceFlag{
		Name:  "device",
		Usage: "clear this device in list mode (repeatable)",
	},
	&cli.BoolFlag{
		Name:  "initialize",
		Usage: "allow empty or unlabeled disks to be initialized",
	},
	&cli.BoolFlag{
		Name:  "zero-mbr",
		Usage: "create a disklabel on disks without one",
	},
	&cli.StringSliceFlag{
		Name:  "protect",
		Usage: "never clear this device: path, name, LABEL= or UUID= (repeatable)",
	},
	&cli.BoolFlag{
		Name:  "live-os",
		Usage: "running from a live OS, unresolved protected devices are not an error",
	},
	&cli.IntFlag{
		Name:  "retries",
		Usage: "retry a failed device scan this many times",
	},
	&cli.BoolFlag{
		Name:  "json",
		Usage: "print json instead of a table",
	},
	&cli.BoolFlag{
		Name:  "debug",
		Usage: "log debug messages",
	},
}

// openBackend returns the device graph selected on the command line and
// whether it describes the running system.
func openBackend(c *cli.Context, logger clearpart.Logger) (*memgraph.Graph, bool, error) {
	if c.String("layout") != "" && c.String("image") != "" {
		return nil, false, errors.New("--layout and --image are mutually exclusive")
	}

	if path := c.String("layout"); path != "" {
		g, err := memgraph.Load(path)
		return g, false, err
	}

	if path := c.String("image"); path != "" {
		g, err := linux.ImageBackend(path)
		return g, false, err
	}

	sys := linux.New()
	sys.Logger = logger

	g, err := sys.Backend()

	return g, true, err
}

// configSource returns the configuration file source with the command line
// overrides applied.
func configSource(c *cli.Context) *config.Source {
	src := config.New(c.String("config"))

	if c.IsSet("type") {
		src.Set(config.KeyClearPartType, c.String("type"))
	}

	if c.IsSet("disk") {
		src.Set(config.KeyClearPartDisks, c.StringSlice("disk"))
	}

	if c.IsSet("device") {
		src.Set(config.KeyClearPartDevices, c.StringSlice("device"))
	}

	if c.IsSet("initialize") {
		src.Set(config.KeyInitializeDisks, c.Bool("initialize"))
	}

	if c.IsSet("zero-mbr") {
		src.Set(config.KeyZeroMBR, c.Bool("zero-mbr"))
	}

	return src
}

// retryHandler retries a failed reset up to limit times.
func retryHandler(logger clearpart.Logger, limit int) clearpart.ErrorHandler {
	tries := 0

	return func(err error) clearpart.ErrorAction {
		tries++
		if tries > limit {
			return clearpart.ErrorRaise
		}

		logger.Debugf("reset attempt %d/%d failed: %s", tries, limit, err)

		return clearpart.ErrorRetry
	}
}

// newSession opens the backend and runs the first reset.
func newSession(c *cli.Context) (*clearpart.Session, *memgraph.Graph, error) {
	logger := clearpart.NewLogger()
	if c.Bool("debug") {
		logger.SetLevel(log.DebugLevel)
	}

	backend, live, err := openBackend(c, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []clearpart.SessionOption{
		clearpart.WithLogger(logger),
		clearpart.WithLiveOS(c.Bool("live-os")),
	}

	if !live {
		opts = append(opts, clearpart.WithLiveDetector(nil))
	}

	s := clearpart.NewSession(backend, configSource(c), opts...)

	if err := s.Initialize(c.StringSlice("protect"), retryHandler(logger, c.Int("retries"))); err != nil {
		return nil, nil, err
	}

	return s, backend, nil
}
