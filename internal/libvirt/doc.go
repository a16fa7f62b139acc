// Package libvirt provides the hypervisor control-plane surface used by
// the provisioning pipeline and the read paths.
//
// This package wraps github.com/digitalocean/go-libvirt to provide:
//   - Connection management per host (local Unix socket or remote TCP)
//   - Storage pool registration from operator templates (Registrar)
//   - Domain definition from operator templates (Definer)
//   - Domain addressing by name or numeric ID and lifecycle operations
//     (Domains, DomainRef)
//   - Per-host resource accounting over active domains (Inspector)
//
// Connection Management:
//
//	client, err := libvirt.Connect("hv01", 30*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// The Registrar, Definer, Domains and Inspector types each consume only
// the narrow slice of the libvirt API they need, declared as an
// unexported interface in this package. The *libvirt.Libvirt returned
// by Client.Libvirt() satisfies all of them implicitly, and tests
// substitute mock implementations.
package libvirt
