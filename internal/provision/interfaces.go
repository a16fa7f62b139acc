package provision

import (
	"context"

	golibvirt "github.com/digitalocean/go-libvirt"

	"github.com/jbweber/warren/internal/libvirt"
)

// cloner defines the dataset operations needed for provisioning.
//
// In production, this is satisfied by *zfs.Cloner.
// In tests, this is satisfied by mock implementations.
type cloner interface {
	// Clone creates a writable dataset from a snapshot
	Clone(ctx context.Context, snapshot, dataset string) error

	// MountPoint resolves the filesystem path of a dataset
	MountPoint(ctx context.Context, dataset string) (string, error)

	// Destroy removes a dataset (rollback only)
	Destroy(ctx context.Context, dataset string) error
}

// injector defines the identity injection operation.
//
// In production, this is satisfied by *inject.Injector.
type injector interface {
	// Inject writes the guest's IP and hostname into the cloned image
	Inject(ctx context.Context, imageDir, ip, hostname string) error
}

// poolRegistrar defines the storage pool operations needed.
//
// In production, this is satisfied by *libvirt.Registrar.
type poolRegistrar interface {
	// CreatePool defines an auto-starting pool over a mount path
	CreatePool(ctx context.Context, name, path string) (golibvirt.StoragePool, error)

	// RemovePool tears a pool back down (rollback only)
	RemovePool(ctx context.Context, name string) error
}

// domainDefiner defines the domain registration operation.
//
// In production, this is satisfied by *libvirt.Definer.
type domainDefiner interface {
	// DefineDomain registers a domain and returns its definition
	DefineDomain(ctx context.Context, p libvirt.DomainParams) (string, error)
}

// domainRemover removes a domain definition (rollback only).
//
// In production, this is satisfied by *libvirt.Domains.
type domainRemover interface {
	Undefine(ctx context.Context, ref libvirt.DomainRef) error
}

// resolver defines the DNS lookups used to complete a guest identity.
//
// In production, this is satisfied by *net.Resolver.
type resolver interface {
	// LookupHost resolves a host name to addresses
	LookupHost(ctx context.Context, host string) ([]string, error)

	// LookupAddr resolves an address to host names
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}
