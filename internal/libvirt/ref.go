package libvirt

import (
	"context"
	"fmt"
	"strconv"

	"github.com/digitalocean/go-libvirt"
)

// DomainRef addresses a domain either by name or by the numeric ID the
// hypervisor assigns while it runs. Exactly one variant is set; every
// operation resolves a ref through the same lookup dispatch.
type DomainRef struct {
	name string
	id   int32
	byID bool
}

// ByName refers to a domain by its persistent name.
func ByName(name string) DomainRef { return DomainRef{name: name} }

// ByID refers to a running domain by its numeric ID.
func ByID(id int32) DomainRef { return DomainRef{id: id, byID: true} }

// ParseRef interprets an all-digits argument as a numeric ID and
// anything else as a name.
func ParseRef(s string) DomainRef {
	if id, err := strconv.ParseInt(s, 10, 32); err == nil {
		return ByID(int32(id))
	}
	return ByName(s)
}

func (r DomainRef) String() string {
	if r.byID {
		return strconv.FormatInt(int64(r.id), 10)
	}
	return r.name
}

// domainRPC defines the libvirt operations the Domains surface needs.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type domainRPC interface {
	// ConnectListAllDomains enumerates domains matching flags
	ConnectListAllDomains(NeedResults int32, Flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)

	// DomainLookupByName looks up a domain by name
	DomainLookupByName(Name string) (libvirt.Domain, error)

	// DomainLookupByID looks up a running domain by numeric ID
	DomainLookupByID(ID int32) (libvirt.Domain, error)

	// DomainGetState gets the state of a domain
	DomainGetState(Dom libvirt.Domain, Flags uint32) (int32, int32, error)

	// DomainGetXMLDesc returns the definition of a domain
	DomainGetXMLDesc(Dom libvirt.Domain, Flags libvirt.DomainXMLFlags) (string, error)

	// DomainCreate starts a defined domain
	DomainCreate(Dom libvirt.Domain) error

	// DomainShutdown requests a guest shutdown (not guaranteed)
	DomainShutdown(Dom libvirt.Domain) error

	// DomainDestroy force-stops a domain
	DomainDestroy(Dom libvirt.Domain) error

	// DomainUndefine removes a domain definition
	DomainUndefine(Dom libvirt.Domain) error
}

// Domains is the read/lifecycle surface over one host's domains.
type Domains struct {
	rpc domainRPC
}

// NewDomains returns a Domains surface over rpc.
func NewDomains(rpc domainRPC) *Domains {
	return &Domains{rpc: rpc}
}

// lookup is the single dispatch point turning a DomainRef into a
// concrete domain handle.
func (d *Domains) lookup(ref DomainRef) (libvirt.Domain, error) {
	if ref.byID {
		return d.rpc.DomainLookupByID(ref.id)
	}
	return d.rpc.DomainLookupByName(ref.name)
}

func (d *Domains) list(flags libvirt.ConnectListAllDomainsFlags) ([]string, error) {
	domains, _, err := d.rpc.ConnectListAllDomains(1, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	names := make([]string, 0, len(domains))
	for _, dom := range domains {
		names = append(names, dom.Name)
	}
	return names, nil
}

// All returns every domain defined on the host, regardless of state.
func (d *Domains) All(ctx context.Context) ([]string, error) {
	return d.list(libvirt.ConnectListDomainsActive | libvirt.ConnectListDomainsInactive)
}

// Active returns the currently running domains.
func (d *Domains) Active(ctx context.Context) ([]string, error) {
	return d.list(libvirt.ConnectListDomainsActive)
}

// Inactive returns the defined but not running domains.
func (d *Domains) Inactive(ctx context.Context) ([]string, error) {
	return d.list(libvirt.ConnectListDomainsInactive)
}

// XML returns the definition of the referenced domain.
func (d *Domains) XML(ctx context.Context, ref DomainRef) (string, error) {
	dom, err := d.lookup(ref)
	if err != nil {
		return "", fmt.Errorf("domain %s not found: %w", ref, err)
	}
	return d.rpc.DomainGetXMLDesc(dom, 0)
}

// State returns the referenced domain's state as a string.
func (d *Domains) State(ctx context.Context, ref DomainRef) (string, error) {
	dom, err := d.lookup(ref)
	if err != nil {
		return "", fmt.Errorf("domain %s not found: %w", ref, err)
	}

	state, _, err := d.rpc.DomainGetState(dom, 0)
	if err != nil {
		return "", fmt.Errorf("failed to get state of domain %s: %w", ref, err)
	}

	switch libvirt.DomainState(state) {
	case libvirt.DomainRunning:
		return "running", nil
	case libvirt.DomainPaused:
		return "paused", nil
	case libvirt.DomainShutdown:
		return "shutdown", nil
	case libvirt.DomainShutoff:
		return "shut off", nil
	case libvirt.DomainCrashed:
		return "crashed", nil
	default:
		return fmt.Sprintf("unsupported domain state: %d", state), nil
	}
}

// Start boots a defined domain.
func (d *Domains) Start(ctx context.Context, ref DomainRef) error {
	dom, err := d.lookup(ref)
	if err != nil {
		return fmt.Errorf("domain %s not found: %w", ref, err)
	}
	if err := d.rpc.DomainCreate(dom); err != nil {
		return fmt.Errorf("failed to start domain %s: %w", ref, err)
	}
	return nil
}

// Shutdown requests a graceful shutdown of the referenced domain. The
// guest may ignore it.
func (d *Domains) Shutdown(ctx context.Context, ref DomainRef) error {
	dom, err := d.lookup(ref)
	if err != nil {
		return fmt.Errorf("domain %s not found: %w", ref, err)
	}
	if err := d.rpc.DomainShutdown(dom); err != nil {
		return fmt.Errorf("failed to shut down domain %s: %w", ref, err)
	}
	return nil
}

// Terminate force-stops the referenced domain.
func (d *Domains) Terminate(ctx context.Context, ref DomainRef) error {
	dom, err := d.lookup(ref)
	if err != nil {
		return fmt.Errorf("domain %s not found: %w", ref, err)
	}
	if err := d.rpc.DomainDestroy(dom); err != nil {
		return fmt.Errorf("failed to terminate domain %s: %w", ref, err)
	}
	return nil
}

// Undefine removes the referenced domain's definition. A running domain
// is force-stopped first. Used for teardown of provisioning artifacts.
func (d *Domains) Undefine(ctx context.Context, ref DomainRef) error {
	dom, err := d.lookup(ref)
	if err != nil {
		return fmt.Errorf("domain %s not found: %w", ref, err)
	}
	// Ignore the destroy error: the domain is usually not running.
	_ = d.rpc.DomainDestroy(dom)
	if err := d.rpc.DomainUndefine(dom); err != nil {
		return fmt.Errorf("failed to undefine domain %s: %w", ref, err)
	}
	return nil
}
