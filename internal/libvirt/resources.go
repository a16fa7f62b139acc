package libvirt

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
)

// maxMemoryStats bounds the per-domain stat array requested from the
// hypervisor; libvirt returns fewer when the balloon driver is absent.
const maxMemoryStats = 16

// inspectorRPC defines the libvirt operations the Inspector needs.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type inspectorRPC interface {
	// ConnectListAllDomains enumerates domains matching flags
	ConnectListAllDomains(NeedResults int32, Flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)

	// DomainGetInfo returns state, memory and vCPU info for a domain
	DomainGetInfo(Dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error)

	// DomainMemoryStats returns live memory statistics for a domain
	DomainMemoryStats(Dom libvirt.Domain, MaxStats uint32, Flags uint32) ([]libvirt.DomainMemoryStat, error)
}

// HostResources is the per-host accounting snapshot: how much CPU and
// memory the active guests claim, plus their live memory statistics.
type HostResources struct {
	// ActiveCores is the sum of vCPUs assigned to running domains.
	ActiveCores uint `json:"activeCores" yaml:"active_cores"`
	// RequestedMemoryKiB is the sum of maximum memory of running
	// domains, in KiB.
	RequestedMemoryKiB uint64 `json:"requestedMemoryKiB" yaml:"requested_memory_kib"`
	// MemoryStats maps domain name to its live memory statistics.
	MemoryStats map[string]map[string]uint64 `json:"memoryStats" yaml:"memory_stats"`
}

// Inspector aggregates resource accounting across one host's active
// domains.
type Inspector struct {
	rpc inspectorRPC
}

// NewInspector returns an Inspector over rpc.
func NewInspector(rpc inspectorRPC) *Inspector {
	return &Inspector{rpc: rpc}
}

// HostResources sums assigned vCPUs and maximum memory over the active
// domains and collects per-domain memory statistics.
func (i *Inspector) HostResources(ctx context.Context) (*HostResources, error) {
	domains, _, err := i.rpc.ConnectListAllDomains(1, libvirt.ConnectListDomainsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active domains: %w", err)
	}

	res := &HostResources{
		MemoryStats: make(map[string]map[string]uint64, len(domains)),
	}

	for _, dom := range domains {
		_, maxMem, _, vcpus, _, err := i.rpc.DomainGetInfo(dom)
		if err != nil {
			return nil, fmt.Errorf("failed to get info for domain %q: %w", dom.Name, err)
		}
		res.ActiveCores += uint(vcpus)
		res.RequestedMemoryKiB += maxMem

		stats, err := i.rpc.DomainMemoryStats(dom, maxMemoryStats, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to get memory stats for domain %q: %w", dom.Name, err)
		}
		res.MemoryStats[dom.Name] = tagStats(stats)
	}

	return res, nil
}

// tagStats converts the hypervisor's tagged stat array into a map keyed
// by the tag's conventional name.
func tagStats(stats []libvirt.DomainMemoryStat) map[string]uint64 {
	out := make(map[string]uint64, len(stats))
	for _, s := range stats {
		out[memoryStatName(s.Tag)] = s.Val
	}
	return out
}

func memoryStatName(tag int32) string {
	switch libvirt.DomainMemoryStatTags(tag) {
	case libvirt.DomainMemoryStatSwapIn:
		return "swap_in"
	case libvirt.DomainMemoryStatSwapOut:
		return "swap_out"
	case libvirt.DomainMemoryStatMajorFault:
		return "major_fault"
	case libvirt.DomainMemoryStatMinorFault:
		return "minor_fault"
	case libvirt.DomainMemoryStatUnused:
		return "unused"
	case libvirt.DomainMemoryStatAvailable:
		return "available"
	case libvirt.DomainMemoryStatActualBalloon:
		return "actual"
	case libvirt.DomainMemoryStatRss:
		return "rss"
	case libvirt.DomainMemoryStatUsable:
		return "usable"
	case libvirt.DomainMemoryStatLastUpdate:
		return "last_update"
	case libvirt.DomainMemoryStatDiskCaches:
		return "disk_caches"
	default:
		return fmt.Sprintf("tag_%d", tag)
	}
}
