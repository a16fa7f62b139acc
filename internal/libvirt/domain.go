package libvirt

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/jbweber/warren/internal/template"
)

// DomainDefinitionError reports a domain definition the control plane
// rejected, or a domain template that failed to render.
type DomainDefinitionError struct {
	Name string
	Err  error
}

func (e *DomainDefinitionError) Error() string {
	return fmt.Sprintf("failed to define domain %q: %v", e.Name, e.Err)
}

func (e *DomainDefinitionError) Unwrap() error { return e.Err }

// domainDefineRPC defines the libvirt operations the Definer needs.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type domainDefineRPC interface {
	// DomainDefineXML registers a persistent domain from XML
	DomainDefineXML(XML string) (libvirt.Domain, error)

	// DomainGetXMLDesc returns the live definition of a domain
	DomainGetXMLDesc(Dom libvirt.Domain, Flags libvirt.DomainXMLFlags) (string, error)
}

// DomainParams describes the guest to define. Memory is accepted in MiB
// and converted to the KiB value libvirt expects.
type DomainParams struct {
	Name      string
	MemoryMiB uint
	VCPUs     uint
	DiskPath  string
	Bridge    string
	// TemplatePath is the domain definition template file for the
	// requested VM template identifier.
	TemplatePath string
}

// Definer registers domains rendered from per-template definition files.
type Definer struct {
	rpc       domainDefineRPC
	templates *template.Cache

	// newUUID generates the domain's unique identifier; replaceable in
	// tests so rendered output is deterministic.
	newUUID func() string
}

// NewDefiner returns a Definer rendering definitions through templates.
func NewDefiner(rpc domainDefineRPC, templates *template.Cache) *Definer {
	return &Definer{
		rpc:       rpc,
		templates: templates,
		newUUID:   func() string { return uuid.New().String() },
	}
}

// DefineDomain renders the template with the guest's name, a fresh
// UUID, the KiB memory value (used for both current and maximum
// memory), vCPU count, disk path and bridge, registers it with the
// control plane (the domain is not started), and returns the
// hypervisor's echoed definition for the new domain.
func (d *Definer) DefineDomain(ctx context.Context, p DomainParams) (string, error) {
	memKiB := p.MemoryMiB * 1024

	xml, err := d.templates.Render(p.TemplatePath,
		p.Name, d.newUUID(), memKiB, memKiB, p.VCPUs, p.DiskPath, p.Bridge)
	if err != nil {
		return "", &DomainDefinitionError{Name: p.Name, Err: err}
	}

	var def libvirtxml.Domain
	if err := def.Unmarshal(xml); err != nil {
		return "", &DomainDefinitionError{Name: p.Name, Err: fmt.Errorf("rendered domain definition is not valid XML: %w", err)}
	}

	dom, err := d.rpc.DomainDefineXML(xml)
	if err != nil {
		return "", &DomainDefinitionError{Name: p.Name, Err: err}
	}

	defined, err := d.rpc.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return "", &DomainDefinitionError{Name: p.Name, Err: fmt.Errorf("domain defined but definition could not be read back: %w", err)}
	}

	return defined, nil
}
