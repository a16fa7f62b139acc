// Package zfs drives the ZFS command line tooling on a hypervisor host
// to manage per-guest datasets. A guest's disk lives in a dataset cloned
// copy-on-write from an immutable machine-image snapshot; the snapshot
// itself is never mutated and many clones may reference it concurrently.
package zfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/jbweber/warren/internal/remote"
)

// CloneError reports a failed snapshot clone, carrying the zfs tool's
// diagnostic output.
type CloneError struct {
	Snapshot string
	Dataset  string
	Err      error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone %s to %s: %v", e.Snapshot, e.Dataset, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// QueryError reports a failed dataset property query.
type QueryError struct {
	Dataset  string
	Property string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to query %s of %s: %v", e.Property, e.Dataset, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Cloner manages datasets on a single host.
type Cloner struct {
	host   string
	runner remote.Runner
}

// NewCloner returns a Cloner operating on the given host through runner.
func NewCloner(host string, runner remote.Runner) *Cloner {
	return &Cloner{host: host, runner: runner}
}

// Host returns the host this cloner operates on.
func (c *Cloner) Host() string { return c.host }

// NormalizeDataset trims trailing path separators from a dataset name.
// "tank/guests/g1/" and "tank/guests/g1" name the same dataset.
func NormalizeDataset(name string) string {
	return strings.TrimRight(name, "/")
}

// Clone creates a writable dataset from a snapshot. A single attempt is
// made; whether to abort the pipeline is the caller's decision.
func (c *Cloner) Clone(ctx context.Context, snapshot, dataset string) error {
	dataset = NormalizeDataset(dataset)
	if _, err := c.runner.Run(ctx, c.host, "zfs", "clone", snapshot, dataset); err != nil {
		return &CloneError{Snapshot: snapshot, Dataset: dataset, Err: err}
	}
	return nil
}

// MountPoint resolves the filesystem path a dataset is mounted at. The
// zfs tool prints a single value; only the first output line is used.
func (c *Cloner) MountPoint(ctx context.Context, dataset string) (string, error) {
	dataset = NormalizeDataset(dataset)
	out, err := c.runner.Run(ctx, c.host, "zfs", "get", "mountpoint", dataset, "-H", "-o", "value")
	if err != nil {
		return "", &QueryError{Dataset: dataset, Property: "mountpoint", Err: err}
	}
	return remote.FirstLine(out), nil
}

// Destroy removes a dataset. Used only for teardown of provisioning
// artifacts; the source snapshot is never a valid argument.
func (c *Cloner) Destroy(ctx context.Context, dataset string) error {
	dataset = NormalizeDataset(dataset)
	if strings.Contains(dataset, "@") {
		return fmt.Errorf("refusing to destroy snapshot %q", dataset)
	}
	if _, err := c.runner.Run(ctx, c.host, "zfs", "destroy", dataset); err != nil {
		return fmt.Errorf("failed to destroy dataset %s: %w", dataset, err)
	}
	return nil
}
