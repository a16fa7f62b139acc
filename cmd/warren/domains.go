package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/warren/internal/libvirt"
	"github.com/jbweber/warren/internal/output"
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Inspect and control domains",
	Long:  `List, inspect, and control the domains on the target host.`,
}

var (
	listActive   bool
	listInactive bool
)

func init() {
	domainsListCmd.Flags().BoolVar(&listActive, "active", false, "list only running domains")
	domainsListCmd.Flags().BoolVar(&listInactive, "inactive", false, "list only defined but not running domains")

	domainsCmd.AddCommand(domainsListCmd)
	domainsCmd.AddCommand(domainsStateCmd)
	domainsCmd.AddCommand(domainsXMLCmd)
	domainsCmd.AddCommand(domainsStartCmd)
	domainsCmd.AddCommand(domainsShutdownCmd)
	domainsCmd.AddCommand(domainsTerminateCmd)
	domainsCmd.AddCommand(domainsUndefineCmd)
}

// withDomains loads config, connects to the target host and hands the
// domain surface to fn.
func withDomains(fn func(ctx context.Context, domains *libvirt.Domains) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	host, err := resolveHost(cfg, "")
	if err != nil {
		return err
	}

	ctx := newContext()
	client, err := connect(ctx, cfg, host)
	if err != nil {
		return fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer closeClient(client)

	return fn(ctx, libvirt.NewDomains(client.Libvirt()))
}

var domainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List domains",
	Long: `List the domains on the target host with their states.

By default every defined domain is listed; --active and --inactive
narrow the listing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		return withDomains(func(ctx context.Context, domains *libvirt.Domains) error {
			var names []string
			var err error
			switch {
			case listActive:
				names, err = domains.Active(ctx)
			case listInactive:
				names, err = domains.Inactive(ctx)
			default:
				names, err = domains.All(ctx)
			}
			if err != nil {
				return err
			}

			rows := make([]output.DomainRow, 0, len(names))
			for _, name := range names {
				state, err := domains.State(ctx, libvirt.ByName(name))
				if err != nil {
					state = "-"
				}
				rows = append(rows, output.DomainRow{Name: name, State: state})
			}

			result, err := formatter.FormatDomains(rows)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			fmt.Print(result)
			return nil
		})
	},
}

var domainsStateCmd = &cobra.Command{
	Use:   "state <name|id>",
	Short: "Show a domain's state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDomains(func(ctx context.Context, domains *libvirt.Domains) error {
			state, err := domains.State(ctx, libvirt.ParseRef(args[0]))
			if err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		})
	},
}

var domainsXMLCmd = &cobra.Command{
	Use:   "xml <name|id>",
	Short: "Show a domain's definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDomains(func(ctx context.Context, domains *libvirt.Domains) error {
			xml, err := domains.XML(ctx, libvirt.ParseRef(args[0]))
			if err != nil {
				return err
			}
			fmt.Println(xml)
			return nil
		})
	},
}

var domainsStartCmd = &cobra.Command{
	Use:   "start <name|id>",
	Short: "Start a defined domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDomains(func(ctx context.Context, domains *libvirt.Domains) error {
			if err := domains.Start(ctx, libvirt.ParseRef(args[0])); err != nil {
				return err
			}
			fmt.Printf("✓ Domain %s started\n", args[0])
			return nil
		})
	},
}

var domainsShutdownCmd = &cobra.Command{
	Use:   "shutdown <name|id>",
	Short: "Request a graceful shutdown",
	Long: `Request a graceful shutdown of a running domain.

The request is delivered to the guest, which may ignore it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDomains(func(ctx context.Context, domains *libvirt.Domains) error {
			if err := domains.Shutdown(ctx, libvirt.ParseRef(args[0])); err != nil {
				return err
			}
			fmt.Printf("✓ Shutdown requested for domain %s\n", args[0])
			return nil
		})
	},
}

var domainsTerminateCmd = &cobra.Command{
	Use:   "terminate <name|id>",
	Short: "Force-stop a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDomains(func(ctx context.Context, domains *libvirt.Domains) error {
			if err := domains.Terminate(ctx, libvirt.ParseRef(args[0])); err != nil {
				return err
			}
			fmt.Printf("✓ Domain %s terminated\n", args[0])
			return nil
		})
	},
}

var domainsUndefineCmd = &cobra.Command{
	Use:   "undefine <name|id>",
	Short: "Remove a domain definition",
	Long:  `Remove a domain's definition. A running domain is force-stopped first.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDomains(func(ctx context.Context, domains *libvirt.Domains) error {
			if err := domains.Undefine(ctx, libvirt.ParseRef(args[0])); err != nil {
				return err
			}
			fmt.Printf("✓ Domain %s undefined\n", args[0])
			return nil
		})
	},
}
