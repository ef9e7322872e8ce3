package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/radiorevive/console/internal/commands"
	"github.com/radiorevive/console/internal/config"
	"github.com/radiorevive/console/internal/event"
	"github.com/radiorevive/console/internal/fleet"
	"github.com/radiorevive/console/internal/groups"
	"github.com/radiorevive/console/internal/registry"
	"github.com/radiorevive/console/internal/server"
	"github.com/radiorevive/console/internal/store"
	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

// cliEnv is the slimmed-down composition the maintenance subcommands
// run in: same modules, same migrations, no HTTP server.
type cliEnv struct {
	db     *store.SQLiteStore
	logger *zap.Logger
	fleet  *fleet.Module
	groups *groups.Module
	close  func()
}

// bootstrapCLI opens the database and initializes the fleet, commands,
// and groups modules the same way the server does.
func bootstrapCLI(configPath string) (*cliEnv, error) {
	viperCfg, err := server.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		return nil, err
	}

	db, err := store.New(viperCfg.GetString("database.dsn"))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	fleetMod := fleet.New()
	groupsMod := groups.New()
	for _, m := range []plugin.Plugin{fleetMod, commands.New(), groupsMod} {
		if err := reg.Register(m); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("modules." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &cliEnv{
		db:     db,
		logger: logger,
		fleet:  fleetMod,
		groups: groupsMod,
		close: func() {
			_ = logger.Sync()
			db.Close()
		},
	}, nil
}

func runCleanupDevices(args []string) {
	fs := flag.NewFlagSet("cleanup-devices", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	_ = fs.Parse(args)

	env, err := bootstrapCLI(*configPath)
	if err != nil {
		fail(err)
	}
	defer env.close()

	report, err := env.fleet.Store().Cleanup(context.Background(), env.logger)
	if err != nil {
		fail(err)
	}

	fmt.Printf("devices before: %d\n", report.Before)
	fmt.Printf("devices after:  %d\n", report.After)
	fmt.Printf("removed:        %d (%d by hardware id, %d by ip)\n",
		report.Removed, report.ByDeviceID, report.ByIPAddress)
}

func runSyncGroups(args []string) {
	fs := flag.NewFlagSet("sync-groups", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	_ = fs.Parse(args)

	env, err := bootstrapCLI(*configPath)
	if err != nil {
		fail(err)
	}
	defer env.close()

	report, err := env.groups.Store().SyncCounts(context.Background(), env.fleet.Store(), env.logger)
	if err != nil {
		fail(err)
	}
	fmt.Printf("groups checked: %d, counts corrected: %d\n", report.Groups, report.Updated)
}

func runAssignGroup(args []string) {
	fs := flag.NewFlagSet("assign-group", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	groupID := fs.String("group", "", "target group ID")
	deviceList := fs.String("devices", "", "comma-separated device row IDs")
	_ = fs.Parse(args)

	if *groupID == "" || *deviceList == "" {
		fmt.Fprintln(os.Stderr, "usage: consoled assign-group -group <id> -devices <id,id,...>")
		os.Exit(2)
	}

	env, err := bootstrapCLI(*configPath)
	if err != nil {
		fail(err)
	}
	defer env.close()

	deviceIDs := strings.Split(*deviceList, ",")
	for i := range deviceIDs {
		deviceIDs[i] = strings.TrimSpace(deviceIDs[i])
	}

	report, err := env.groups.Assign(context.Background(), *groupID, deviceIDs)
	if err != nil {
		fail(err)
	}
	fmt.Printf("assigned: %d, restarted: %d\n", report.Assigned, report.Restarted)
	if len(report.Missing) > 0 {
		fmt.Printf("missing devices: %s\n", strings.Join(report.Missing, ", "))
	}
}

func runListDevices(args []string) {
	fs := flag.NewFlagSet("list-devices", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	_ = fs.Parse(args)

	env, err := bootstrapCLI(*configPath)
	if err != nil {
		fail(err)
	}
	defer env.close()

	devices, err := env.fleet.Store().ListProjected(context.Background())
	if err != nil {
		fail(err)
	}

	fmt.Printf("%-36s  %-20s  %-12s  %-15s  %s\n", "ID", "NAME", "STATUS", "IP", "LAST SEEN")
	for _, d := range devices {
		lastSeen := d.LastSeen.Format(time.RFC3339)
		if d.LastSeenEstimated {
			lastSeen = "never"
		}
		fmt.Printf("%-36s  %-20s  %-12s  %-15s  %s\n",
			d.ID, d.Name, d.Status, d.IPAddress, lastSeen)
	}
	fmt.Printf("\n%d devices\n", len(devices))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
