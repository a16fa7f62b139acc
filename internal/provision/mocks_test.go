package provision

import (
	"context"
	"fmt"
	"sync"

	golibvirt "github.com/digitalocean/go-libvirt"

	"github.com/jbweber/warren/internal/libvirt"
)

// callLog records the order of pipeline calls across all mocks so tests
// can assert the strict step ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(name string) int {
	n := 0
	for _, c := range l.recorded() {
		if c == name {
			n++
		}
	}
	return n
}

// mockCloner is a mock implementation of the cloner interface.
type mockCloner struct {
	log *callLog

	cloneFunc      func(snapshot, dataset string) error
	mountPointFunc func(dataset string) (string, error)
	destroyFunc    func(dataset string) error
}

func (m *mockCloner) Clone(ctx context.Context, snapshot, dataset string) error {
	m.log.record("clone")
	if m.cloneFunc != nil {
		return m.cloneFunc(snapshot, dataset)
	}
	return nil
}

func (m *mockCloner) MountPoint(ctx context.Context, dataset string) (string, error) {
	m.log.record("mountpoint")
	if m.mountPointFunc != nil {
		return m.mountPointFunc(dataset)
	}
	return "/tank/guests/g1", nil
}

func (m *mockCloner) Destroy(ctx context.Context, dataset string) error {
	m.log.record("destroy-dataset")
	if m.destroyFunc != nil {
		return m.destroyFunc(dataset)
	}
	return nil
}

// mockInjector is a mock implementation of the injector interface.
type mockInjector struct {
	log *callLog

	injectFunc func(imageDir, ip, hostname string) error

	injectArgs [][3]string
}

func (m *mockInjector) Inject(ctx context.Context, imageDir, ip, hostname string) error {
	m.log.record("inject")
	m.injectArgs = append(m.injectArgs, [3]string{imageDir, ip, hostname})
	if m.injectFunc != nil {
		return m.injectFunc(imageDir, ip, hostname)
	}
	return nil
}

// mockPools is a mock implementation of the poolRegistrar interface.
type mockPools struct {
	log *callLog

	createPoolFunc func(name, path string) (golibvirt.StoragePool, error)

	createPoolArgs [][2]string
}

func (m *mockPools) CreatePool(ctx context.Context, name, path string) (golibvirt.StoragePool, error) {
	m.log.record("create-pool")
	m.createPoolArgs = append(m.createPoolArgs, [2]string{name, path})
	if m.createPoolFunc != nil {
		return m.createPoolFunc(name, path)
	}
	return golibvirt.StoragePool{Name: name}, nil
}

func (m *mockPools) RemovePool(ctx context.Context, name string) error {
	m.log.record("remove-pool")
	return nil
}

// mockDefiner is a mock implementation of the domainDefiner interface.
type mockDefiner struct {
	log *callLog

	defineDomainFunc func(p libvirt.DomainParams) (string, error)

	defineDomainArgs []libvirt.DomainParams
}

func (m *mockDefiner) DefineDomain(ctx context.Context, p libvirt.DomainParams) (string, error) {
	m.log.record("define-domain")
	m.defineDomainArgs = append(m.defineDomainArgs, p)
	if m.defineDomainFunc != nil {
		return m.defineDomainFunc(p)
	}
	return fmt.Sprintf("<domain><name>%s</name></domain>", p.Name), nil
}

// mockDomains is a mock implementation of the domainRemover interface.
type mockDomains struct {
	log *callLog
}

func (m *mockDomains) Undefine(ctx context.Context, ref libvirt.DomainRef) error {
	m.log.record("undefine-domain")
	return nil
}

// mockResolver is a mock implementation of the resolver interface.
type mockResolver struct {
	log *callLog

	lookupHostFunc func(host string) ([]string, error)
	lookupAddrFunc func(addr string) ([]string, error)
}

func (m *mockResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	m.log.record("lookup-host")
	if m.lookupHostFunc != nil {
		return m.lookupHostFunc(host)
	}
	return []string{"10.0.0.5"}, nil
}

func (m *mockResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	m.log.record("lookup-addr")
	if m.lookupAddrFunc != nil {
		return m.lookupAddrFunc(addr)
	}
	return []string{"g1.example.net."}, nil
}

// testPipeline bundles the orchestrator and its mocks for one test.
type testPipeline struct {
	log      *callLog
	cloner   *mockCloner
	injector *mockInjector
	pools    *mockPools
	definer  *mockDefiner
	domains  *mockDomains
	resolver *mockResolver
}

func newTestPipeline() *testPipeline {
	log := &callLog{}
	return &testPipeline{
		log:      log,
		cloner:   &mockCloner{log: log},
		injector: &mockInjector{log: log},
		pools:    &mockPools{log: log},
		definer:  &mockDefiner{log: log},
		domains:  &mockDomains{log: log},
		resolver: &mockResolver{log: log},
	}
}

func (p *testPipeline) orchestrator(rollback bool) *Orchestrator {
	return &Orchestrator{
		cloner:      p.cloner,
		injector:    p.injector,
		pools:       p.pools,
		definer:     p.definer,
		domains:     p.domains,
		resolver:    p.resolver,
		templateDir: "/etc/warren/templates",
		rollback:    rollback,
	}
}
