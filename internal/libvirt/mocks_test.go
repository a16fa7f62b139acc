package libvirt

import (
	"fmt"
	"sync"

	"github.com/digitalocean/go-libvirt"
)

// mockRPC is a mock implementation of the poolRPC, domainDefineRPC,
// domainRPC and inspectorRPC interfaces for testing.
type mockRPC struct {
	mu sync.Mutex

	// Configurable behavior
	storagePoolDefineXMLFunc   func(xml string, flags uint32) (libvirt.StoragePool, error)
	storagePoolSetAutostartFnc func(pool libvirt.StoragePool, autostart int32) error
	storagePoolLookupFunc      func(name string) (libvirt.StoragePool, error)
	domainDefineXMLFunc        func(xml string) (libvirt.Domain, error)
	domainGetXMLDescFunc       func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	connectListAllDomainsFunc  func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	domainLookupByNameFunc     func(name string) (libvirt.Domain, error)
	domainLookupByIDFunc       func(id int32) (libvirt.Domain, error)
	domainGetStateFunc         func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainGetInfoFunc          func(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error)
	domainMemoryStatsFunc      func(dom libvirt.Domain, maxStats, flags uint32) ([]libvirt.DomainMemoryStat, error)

	// Call tracking
	storagePoolDefineXMLCalls   []string
	storagePoolSetAutostartArgs []int32
	storagePoolDestroyCalls     []libvirt.StoragePool
	storagePoolUndefineCalls    []libvirt.StoragePool
	domainDefineXMLCalls        []string
	domainLookupByNameCalls     []string
	domainLookupByIDCalls       []int32
	domainCreateCalls           []libvirt.Domain
	domainShutdownCalls         []libvirt.Domain
	domainDestroyCalls          []libvirt.Domain
	domainUndefineCalls         []libvirt.Domain
}

func (m *mockRPC) StoragePoolDefineXML(xml string, flags uint32) (libvirt.StoragePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storagePoolDefineXMLCalls = append(m.storagePoolDefineXMLCalls, xml)
	if m.storagePoolDefineXMLFunc != nil {
		return m.storagePoolDefineXMLFunc(xml, flags)
	}
	return libvirt.StoragePool{Name: "mock-pool"}, nil
}

func (m *mockRPC) StoragePoolSetAutostart(pool libvirt.StoragePool, autostart int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storagePoolSetAutostartArgs = append(m.storagePoolSetAutostartArgs, autostart)
	if m.storagePoolSetAutostartFnc != nil {
		return m.storagePoolSetAutostartFnc(pool, autostart)
	}
	return nil
}

func (m *mockRPC) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storagePoolLookupFunc != nil {
		return m.storagePoolLookupFunc(name)
	}
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockRPC) StoragePoolDestroy(pool libvirt.StoragePool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storagePoolDestroyCalls = append(m.storagePoolDestroyCalls, pool)
	return nil
}

func (m *mockRPC) StoragePoolUndefine(pool libvirt.StoragePool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storagePoolUndefineCalls = append(m.storagePoolUndefineCalls, pool)
	return nil
}

func (m *mockRPC) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDefineXMLCalls = append(m.domainDefineXMLCalls, xml)
	if m.domainDefineXMLFunc != nil {
		return m.domainDefineXMLFunc(xml)
	}
	return libvirt.Domain{Name: "mock-domain"}, nil
}

func (m *mockRPC) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.domainGetXMLDescFunc != nil {
		return m.domainGetXMLDescFunc(dom, flags)
	}
	return fmt.Sprintf("<domain><name>%s</name></domain>", dom.Name), nil
}

func (m *mockRPC) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectListAllDomainsFunc != nil {
		return m.connectListAllDomainsFunc(needResults, flags)
	}
	return nil, 0, nil
}

func (m *mockRPC) DomainLookupByName(name string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByNameCalls = append(m.domainLookupByNameCalls, name)
	if m.domainLookupByNameFunc != nil {
		return m.domainLookupByNameFunc(name)
	}
	return libvirt.Domain{Name: name}, nil
}

func (m *mockRPC) DomainLookupByID(id int32) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByIDCalls = append(m.domainLookupByIDCalls, id)
	if m.domainLookupByIDFunc != nil {
		return m.domainLookupByIDFunc(id)
	}
	return libvirt.Domain{Name: fmt.Sprintf("domain-%d", id), ID: id}, nil
}

func (m *mockRPC) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.domainGetStateFunc != nil {
		return m.domainGetStateFunc(dom, flags)
	}
	return int32(libvirt.DomainRunning), 0, nil
}

func (m *mockRPC) DomainCreate(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainCreateCalls = append(m.domainCreateCalls, dom)
	return nil
}

func (m *mockRPC) DomainShutdown(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainShutdownCalls = append(m.domainShutdownCalls, dom)
	return nil
}

func (m *mockRPC) DomainDestroy(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDestroyCalls = append(m.domainDestroyCalls, dom)
	return nil
}

func (m *mockRPC) DomainUndefine(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainUndefineCalls = append(m.domainUndefineCalls, dom)
	return nil
}

func (m *mockRPC) DomainGetInfo(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.domainGetInfoFunc != nil {
		return m.domainGetInfoFunc(dom)
	}
	return uint8(libvirt.DomainRunning), 1048576, 524288, 1, 0, nil
}

func (m *mockRPC) DomainMemoryStats(dom libvirt.Domain, maxStats, flags uint32) ([]libvirt.DomainMemoryStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.domainMemoryStatsFunc != nil {
		return m.domainMemoryStatsFunc(dom, maxStats, flags)
	}
	return nil, nil
}

// Interface conformance checks.
var (
	_ poolRPC         = (*mockRPC)(nil)
	_ domainDefineRPC = (*mockRPC)(nil)
	_ domainRPC       = (*mockRPC)(nil)
	_ inspectorRPC    = (*mockRPC)(nil)
)
