package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbweber/warren/internal/config"
	"github.com/jbweber/warren/internal/libvirt"
	"github.com/jbweber/warren/internal/logging"
	"github.com/jbweber/warren/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath   string
	targetHost   string
	outputFormat string
	noHeaders    bool
	verbose      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "warren",
	Short: "Warren - ZFS-backed libvirt guest provisioning",
	Long: `Warren provisions libvirt guests from ZFS machine-image snapshots.

A guest is created by cloning a snapshot into a per-guest dataset,
injecting the guest's network identity into the cloned disk image,
registering the dataset as a storage pool, and defining the domain.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/warren/config.yaml", "path to the warren configuration file")
	rootCmd.PersistentFlags().StringVar(&targetHost, "host", "", "hypervisor host to target (default from config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false, "omit headers in table output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(domainsCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(testConnCmd)
}

// newContext returns the command context with the process logger
// attached.
func newContext() context.Context {
	logger := logging.New()
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logging.WithLogger(context.Background(), logger)
}

func loadConfig() (*config.Config, error) {
	return config.LoadFromFile(configPath)
}

// resolveHost picks the target host: the --host flag wins, then the
// request's host, then the configured default. The result must be on
// the allow-list.
func resolveHost(cfg *config.Config, fromRequest string) (string, error) {
	host := targetHost
	if host == "" {
		host = fromRequest
	}
	if host == "" {
		host = cfg.DefaultHost
	}
	if err := cfg.CheckHosts(host); err != nil {
		return "", err
	}
	return host, nil
}

func connect(ctx context.Context, cfg *config.Config, host string) (*libvirt.Client, error) {
	return libvirt.ConnectWithContext(ctx, host, time.Duration(cfg.ConnectTimeout))
}

func closeClient(client *libvirt.Client) {
	if err := client.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", err)
	}
}

func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connection",
	Long:  `Test connectivity to the target host's libvirt daemon and display version information.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		host, err := resolveHost(cfg, "")
		if err != nil {
			return err
		}

		fmt.Printf("Testing libvirt connection to %s...\n", host)

		ctx := newContext()
		client, err := connect(ctx, cfg, host)
		if err != nil {
			return fmt.Errorf("failed to connect to libvirt: %w", err)
		}
		defer closeClient(client)

		fmt.Println("✓ Connected to libvirt daemon")

		if err := client.Ping(); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		hvType, err := client.Libvirt().ConnectGetType()
		if err != nil {
			return fmt.Errorf("failed to get hypervisor type: %w", err)
		}
		fmt.Printf("✓ Hypervisor type: %s\n", hvType)

		// libvirt returns the version as an integer like 8006000 for 8.6.0
		libVersion, err := client.Libvirt().ConnectGetLibVersion()
		if err != nil {
			return fmt.Errorf("failed to get libvirt version: %w", err)
		}
		major := libVersion / 1000000
		minor := (libVersion % 1000000) / 1000
		patch := libVersion % 1000
		fmt.Printf("✓ Libvirt version: %d.%d.%d\n", major, minor, patch)

		hostname, err := client.Libvirt().ConnectGetHostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		fmt.Printf("✓ Hypervisor hostname: %s\n", hostname)

		fmt.Println("\nConnection test successful!")
		return nil
	},
}
