package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/nerrad567/duuxlink/internal/device"
	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
	"github.com/nerrad567/duuxlink/internal/infrastructure/database"
	"github.com/nerrad567/duuxlink/internal/infrastructure/logging"
	"github.com/nerrad567/duuxlink/internal/probe"
	"github.com/nerrad567/duuxlink/internal/profile"
)

// commandLogger logs warnings and errors only, so command output stays
// readable.
func commandLogger(cfg *config.Config) *logging.Logger {
	lc := cfg.Logging
	lc.Level = "warn"
	lc.Format = "text"
	lc.Output = "stderr"
	return logging.New(lc, version)
}

func modelsCommand(c *cli.Context) error {
	profiles, err := profile.Builtin(nil)
	if err != nil {
		return fmt.Errorf("loading device profiles: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tNAME\tMAX SPEED\tFEATURES")
	for _, m := range profiles.Models() {
		p, _ := profiles.Get(m)
		maxSpeed, features := "-", "-"
		if p.Fan != nil {
			maxSpeed = fmt.Sprint(p.Fan.MaxSpeed)
			names := make([]string, len(p.Fan.Features))
			for i, f := range p.Fan.Features {
				names[i] = string(f)
			}
			features = strings.Join(names, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Model, p.Name, maxSpeed, features)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rejected := profiles.Rejected()
	models := lo.Keys(rejected)
	sort.Strings(models)
	for _, m := range models {
		fmt.Fprintf(c.App.ErrWriter, "rejected %s: %v\n", m, rejected[m])
	}
	return nil
}

// brokerFromFlags applies the command line overrides to the configured
// broker in the same way a device entry does.
func brokerFromFlags(c *cli.Context, base config.BrokerConfig) config.BrokerConfig {
	return device.Config{
		Username: c.String("username"),
		Password: c.String("password"),
		MQTTHost: c.String("mqtt-host"),
		MQTTPort: c.Int("mqtt-port"),
	}.Broker(base)
}

func newProber(cfg *config.Config) *probe.Prober {
	p := probe.New(probe.MQTTDialer, cfg.GetProbeTimeout())
	p.SetLogger(commandLogger(cfg))
	return p
}

func probeBrokerCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	broker := brokerFromFlags(c, cfg.Broker)
	if err := newProber(cfg).Broker(c.Context, broker); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "broker %s:%d reachable\n", broker.Host, broker.Port)
	return nil
}

func probeDeviceCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	id := device.NormalizeID(c.String("device-id"))
	if err := newProber(cfg).Device(c.Context, brokerFromFlags(c, cfg.Broker), id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "device %s is publishing state\n", id)
	return nil
}

func devicesListCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, registry, err := openStore(c.Context, cfg, commandLogger(cfg))
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only command

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE ID\tNAME\tMODEL\tSOURCE\tBROKER")
	for _, e := range registry.List() {
		broker := "default"
		if e.Config.MQTTHost != "" || e.Config.MQTTPort != 0 {
			b := e.Config.Broker(cfg.Broker)
			broker = fmt.Sprintf("%s:%d", b.Host, b.Port)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.DeviceID(), e.Config.Name, e.Config.Model, e.Source, broker)
	}
	return tw.Flush()
}

func devicesAddCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := commandLogger(cfg)

	profiles, err := profile.Builtin(log)
	if err != nil {
		return fmt.Errorf("loading device profiles: %w", err)
	}

	dc := device.Config{
		DeviceID: c.String("device-id"),
		Name:     c.String("name"),
		Model:    c.String("model"),
		Username: c.String("username"),
		Password: c.String("password"),
		MQTTHost: c.String("mqtt-host"),
		MQTTPort: c.Int("mqtt-port"),
	}.Normalize()

	if _, ok := profiles.Get(dc.Model); !ok {
		return fmt.Errorf("unknown model %q, see 'duuxlink models'", dc.Model)
	}
	if err := device.ValidateConfig(dc); err != nil {
		return err
	}

	if c.Bool("probe") {
		if err := newProber(cfg).Device(c.Context, dc.Broker(cfg.Broker), dc.DeviceID); err != nil {
			return err
		}
	}

	db, registry, err := openStore(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // closed on exit

	e, err := registry.Create(c.Context, dc, device.SourceCLI)
	if err != nil {
		if errors.Is(err, device.ErrEntryExists) {
			return fmt.Errorf("device %s is already configured", dc.DeviceID)
		}
		return err
	}
	fmt.Fprintf(c.App.Writer, "added %s (%s, %s)\n", e.DeviceID(), e.Config.Name, profiles.DisplayName(e.Config.Model))
	return nil
}

func devicesRemoveCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, registry, err := openStore(c.Context, cfg, commandLogger(cfg))
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // closed on exit

	id := device.NormalizeID(c.String("device-id"))
	if err := registry.Delete(c.Context, id); err != nil {
		if errors.Is(err, device.ErrEntryNotFound) {
			return fmt.Errorf("device %s is not configured", id)
		}
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %s\n", id)
	return nil
}

func dbStatusCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only command

	applied, pending, err := db.MigrationStatus(c.Context)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT")
	for _, r := range applied {
		fmt.Fprintf(tw, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(tw, "%s\tpending\t-\n", m.Version)
	}
	return tw.Flush()
}

func dbRollbackCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // closed on exit

	applied, _, err := db.MigrationStatus(c.Context)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(c.App.Writer, "nothing to roll back")
		return nil
	}
	latest := applied[len(applied)-1].Version

	if err := db.MigrateDown(c.Context); err != nil {
		return fmt.Errorf("rolling back %s: %w", latest, err)
	}
	fmt.Fprintf(c.App.Writer, "rolled back %s\n", latest)
	return nil
}
