package libvirt

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/jbweber/warren/internal/template"
)

// PoolDefinitionError reports a storage pool definition the control
// plane rejected, or a pool template that failed to render.
type PoolDefinitionError struct {
	Pool string
	Err  error
}

func (e *PoolDefinitionError) Error() string {
	return fmt.Sprintf("failed to define storage pool %q: %v", e.Pool, e.Err)
}

func (e *PoolDefinitionError) Unwrap() error { return e.Err }

// poolRPC defines the libvirt operations the Registrar needs.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type poolRPC interface {
	// StoragePoolDefineXML defines a persistent pool from XML
	StoragePoolDefineXML(XML string, Flags uint32) (libvirt.StoragePool, error)

	// StoragePoolSetAutostart marks a pool to activate on host boot
	StoragePoolSetAutostart(Pool libvirt.StoragePool, Autostart int32) error

	// StoragePoolLookupByName looks up a pool by name
	StoragePoolLookupByName(Name string) (libvirt.StoragePool, error)

	// StoragePoolDestroy stops a pool
	StoragePoolDestroy(Pool libvirt.StoragePool) error

	// StoragePoolUndefine removes a pool definition
	StoragePoolUndefine(Pool libvirt.StoragePool) error
}

// Registrar registers per-guest directory storage pools, one per guest,
// named after the guest and bound to its dataset mount path.
type Registrar struct {
	rpc          poolRPC
	templates    *template.Cache
	templatePath string
}

// NewRegistrar returns a Registrar rendering definitions from the pool
// template file at templatePath.
func NewRegistrar(rpc poolRPC, templates *template.Cache, templatePath string) *Registrar {
	return &Registrar{rpc: rpc, templates: templates, templatePath: templatePath}
}

// CreatePool defines a persistent directory pool named name over the
// dataset mount path and marks it to auto-activate so it survives
// hypervisor restarts. The rendered definition is parsed locally before
// submission so template damage fails with a useful error instead of a
// control-plane rejection.
func (r *Registrar) CreatePool(ctx context.Context, name, path string) (libvirt.StoragePool, error) {
	xml, err := r.templates.Render(r.templatePath, name, path)
	if err != nil {
		return libvirt.StoragePool{}, &PoolDefinitionError{Pool: name, Err: err}
	}

	var def libvirtxml.StoragePool
	if err := def.Unmarshal(xml); err != nil {
		return libvirt.StoragePool{}, &PoolDefinitionError{Pool: name, Err: fmt.Errorf("rendered pool definition is not valid XML: %w", err)}
	}

	pool, err := r.rpc.StoragePoolDefineXML(xml, 0)
	if err != nil {
		return libvirt.StoragePool{}, &PoolDefinitionError{Pool: name, Err: err}
	}

	if err := r.rpc.StoragePoolSetAutostart(pool, 1); err != nil {
		return libvirt.StoragePool{}, &PoolDefinitionError{Pool: name, Err: fmt.Errorf("pool defined but autostart failed: %w", err)}
	}

	return pool, nil
}

// RemovePool stops and undefines the pool named name. Used only for
// teardown of provisioning artifacts.
func (r *Registrar) RemovePool(ctx context.Context, name string) error {
	pool, err := r.rpc.StoragePoolLookupByName(name)
	if err != nil {
		return fmt.Errorf("pool not found: %w", err)
	}

	// The pool may not be active; a destroy failure is not fatal to
	// the undefine.
	_ = r.rpc.StoragePoolDestroy(pool)

	if err := r.rpc.StoragePoolUndefine(pool); err != nil {
		return fmt.Errorf("failed to undefine pool %q: %w", name, err)
	}
	return nil
}
