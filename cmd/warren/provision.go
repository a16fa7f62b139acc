package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/warren/internal/config"
	"github.com/jbweber/warren/internal/inject"
	"github.com/jbweber/warren/internal/libvirt"
	"github.com/jbweber/warren/internal/provision"
	"github.com/jbweber/warren/internal/remote"
	"github.com/jbweber/warren/internal/template"
	"github.com/jbweber/warren/internal/zfs"
)

// newOrchestrator wires one host's provisioning pipeline from the
// process configuration and an open libvirt connection.
func newOrchestrator(cfg *config.Config, host string, client *libvirt.Client) *provision.Orchestrator {
	runner := &remote.ShellRunner{User: cfg.SSHUser}
	templates := template.NewCache(clock.WallClock, time.Duration(cfg.TemplateCacheTTL))
	return provision.New(provision.Deps{
		Cloner:      zfs.NewCloner(host, runner),
		Injector:    inject.NewInjector(host, runner, cfg.MountPoint, kmutex.New()),
		Pools:       libvirt.NewRegistrar(client.Libvirt(), templates, cfg.PoolTemplate),
		Definer:     libvirt.NewDefiner(client.Libvirt(), templates),
		Domains:     libvirt.NewDomains(client.Libvirt()),
		TemplateDir: cfg.TemplateDir,
		Rollback:    cfg.Rollback(),
		StepTimeout: time.Duration(cfg.RemoteTimeout),
	})
}

var provisionCmd = &cobra.Command{
	Use:   "provision <request.yaml>",
	Short: "Provision a guest from a request file",
	Long: `Provision a new guest from a YAML request file.

The request names the snapshot to clone, the dataset to clone it into,
the guest's identity (name or IP address; the other half is resolved
through DNS), and the bridge interface. Example:

  dataset: tank/guests/g1
  snapshot: tank/images/ubuntu@golden
  guest_name: g1
  bridge: br0
  memory_mib: 2048
  vcpus: 2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read request %s: %w", args[0], err)
		}
		var req provision.Request
		if err := yaml.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("failed to parse request %s: %w", args[0], err)
		}
		if req.Snapshot == "" {
			req.Snapshot = cfg.DefaultSnapshot
		}

		host, err := resolveHost(cfg, req.Host)
		if err != nil {
			return err
		}
		req.Host = host

		ctx := newContext()
		client, err := connect(ctx, cfg, host)
		if err != nil {
			return fmt.Errorf("failed to connect to libvirt: %w", err)
		}
		defer closeClient(client)

		res, err := newOrchestrator(cfg, host, client).Provision(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to provision guest: %w", err)
		}

		fmt.Printf("✓ Guest %s (%s) provisioned on %s (run %s)\n",
			res.GuestName, res.IPAddress, host, res.RunID)
		return nil
	},
}

var destroyDataset string

func init() {
	destroyCmd.Flags().StringVar(&destroyDataset, "dataset", "", "also destroy the guest's backing dataset")
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <guest-name>",
	Short: "Destroy a provisioned guest",
	Long: `Destroy a guest's provisioning artifacts in reverse creation order.

This will:
- Force-stop and undefine the domain
- Remove the guest's storage pool
- Destroy the backing dataset when --dataset is given

Every step is attempted; failures are collected and reported together.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guest := args[0]

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

		var errs []error

		domains := libvirt.NewDomains(client.Libvirt())
		if err := domains.Undefine(ctx, libvirt.ByName(guest)); err != nil {
			errs = append(errs, err)
		} else {
			fmt.Printf("✓ Domain %s undefined\n", guest)
		}

		templates := template.NewCache(clock.WallClock, time.Duration(cfg.TemplateCacheTTL))
		pools := libvirt.NewRegistrar(client.Libvirt(), templates, cfg.PoolTemplate)
		if err := pools.RemovePool(ctx, guest); err != nil {
			errs = append(errs, err)
		} else {
			fmt.Printf("✓ Pool %s removed\n", guest)
		}

		if destroyDataset != "" {
			runner := &remote.ShellRunner{User: cfg.SSHUser}
			if err := zfs.NewCloner(host, runner).Destroy(ctx, destroyDataset); err != nil {
				errs = append(errs, err)
			} else {
				fmt.Printf("✓ Dataset %s destroyed\n", destroyDataset)
			}
		}

		return errors.Join(errs...)
	},
}
