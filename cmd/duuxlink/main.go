// duuxlink - Duux fan and air purifier integration
//
// duuxlink keeps one MQTT session per configured Duux device, decodes the
// state frames the devices publish, and exposes each device as a set of
// entities (fan, switches, sensors, numbers, selects) over a local HTTP
// and WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	_ "github.com/nerrad567/duuxlink/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "duuxlink",
		Usage:   "local MQTT integration for Duux fans and air purifiers",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"DUUXLINK_CONFIG"},
				Value:   defaultConfigPath,
			},
		},
		Action: runCommand,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "start device sessions and the API server",
				Action: runCommand,
			},
			{
				Name:   "models",
				Usage:  "list the supported device models",
				Action: modelsCommand,
			},
			{
				Name:  "probe",
				Usage: "check that the broker or a device is reachable",
				Subcommands: []*cli.Command{
					{
						Name:   "broker",
						Usage:  "connect to the broker and disconnect",
						Flags:  brokerFlags(),
						Action: probeBrokerCommand,
					},
					{
						Name:   "device",
						Usage:  "wait for one state frame from a device",
						Flags:  append(brokerFlags(), deviceIDFlag()),
						Action: probeDeviceCommand,
					},
				},
			},
			{
				Name:  "devices",
				Usage: "manage stored device entries",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list stored devices",
						Action: devicesListCommand,
					},
					{
						Name:  "add",
						Usage: "store a new device",
						Flags: append(brokerFlags(),
							deviceIDFlag(),
							&cli.StringFlag{Name: "name", Usage: "display name", Required: true},
							&cli.StringFlag{Name: "model", Usage: "model id, see 'duuxlink models'", Required: true},
							&cli.BoolFlag{Name: "probe", Usage: "require a state frame from the device before storing it"},
						),
						Action: devicesAddCommand,
					},
					{
						Name:   "remove",
						Usage:  "delete a stored device",
						Flags:  []cli.Flag{deviceIDFlag()},
						Action: devicesRemoveCommand,
					},
				},
			},
			{
				Name:  "db",
				Usage: "inspect or roll back the database schema",
				Subcommands: []*cli.Command{
					{
						Name:   "status",
						Usage:  "list applied and pending migrations",
						Action: dbStatusCommand,
					},
					{
						Name:   "rollback",
						Usage:  "undo the most recent migration",
						Action: dbRollbackCommand,
					},
				},
			},
		},
	}
}

func deviceIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "device-id",
		Usage:    "device MAC address, e.g. aa:bb:cc:dd:ee:ff",
		Required: true,
	}
}

// brokerFlags are per-device overrides of the configured broker.
func brokerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "mqtt-host", Usage: "broker host override"},
		&cli.IntFlag{Name: "mqtt-port", Usage: "broker port override"},
		&cli.StringFlag{Name: "username", Usage: "broker username"},
		&cli.StringFlag{Name: "password", Usage: "broker password"},
	}
}
