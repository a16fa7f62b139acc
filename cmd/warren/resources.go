package main

import (
	"fmt"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/jbweber/warren/internal/libvirt"
	"github.com/jbweber/warren/internal/loadavg"
	"github.com/jbweber/warren/internal/output"
)

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Show the target host's resource usage",
	Long: `Show how much CPU and memory the target host's active guests claim,
their live memory statistics, and the host's load averages.

Load averages come from the shared sample file the hosts' cron jobs
maintain; when the file is not configured or has no entry for the host
the load columns are omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		host, err := resolveHost(cfg, "")
		if err != nil {
			return err
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		ctx := newContext()
		client, err := connect(ctx, cfg, host)
		if err != nil {
			return fmt.Errorf("failed to connect to libvirt: %w", err)
		}
		defer closeClient(client)

		report := &output.Report{Host: host}

		report.Resources, err = libvirt.NewInspector(client.Libvirt()).HostResources(ctx)
		if err != nil {
			return fmt.Errorf("failed to inspect host resources: %w", err)
		}

		if cfg.UptimeCache != "" {
			cache := loadavg.NewCache(cfg.UptimeCache, time.Duration(cfg.UptimeCacheTTL), clock.WallClock, cfg.ValidHosts)
			if sample, err := cache.Get(host); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: no load average for %s: %v\n", host, err)
			} else {
				report.Load = &sample
			}
		}

		result, err := formatter.FormatReport(report)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Print(result)
		return nil
	},
}
