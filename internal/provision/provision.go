// Package provision sequences guest creation into one logical
// transaction: resolve the guest's identity, clone its dataset from a
// machine-image snapshot, inject identity into the cloned disk image,
// register the dataset as a storage pool, and define the domain. The
// first failing step ends the run; later steps are never attempted and
// nothing is retried, so remote infrastructure failures stay visible to
// the operator instead of silently double-cloning datasets.
package provision

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/warren/internal/inject"
	"github.com/jbweber/warren/internal/libvirt"
	"github.com/jbweber/warren/internal/logging"
	"github.com/jbweber/warren/internal/zfs"
)

// State names one stage of a provisioning run.
type State string

const (
	StateValidating       State = "validating"
	StateCloning          State = "cloning"
	StateInjecting        State = "injecting"
	StatePoolRegistration State = "pool-registration"
	StateDomainDefinition State = "domain-definition"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Request describes one guest to provision. At least one of GuestName
// and IPAddress must be set; the other is resolved through DNS.
type Request struct {
	// Host is the hypervisor to provision on. Empty means local.
	Host string `yaml:"host,omitempty"`
	// Dataset receives the clone of Snapshot.
	Dataset string `yaml:"dataset"`
	// Snapshot is the machine-image snapshot to clone
	// (pool/path@snapshot-name).
	Snapshot string `yaml:"snapshot"`
	// GuestName is the hostname injected into the guest.
	GuestName string `yaml:"guest_name,omitempty"`
	// IPAddress is the address injected into the guest.
	IPAddress string `yaml:"ip_address,omitempty"`
	// Bridge is the host bridge interface the guest attaches to.
	Bridge string `yaml:"bridge"`
	// MemoryMiB is the guest memory in MiB. Defaults to 1024.
	MemoryMiB uint `yaml:"memory_mib,omitempty"`
	// VCPUs defaults to 1.
	VCPUs uint `yaml:"vcpus,omitempty"`
	// Template is the VM template identifier. Defaults to "ubuntu".
	Template string `yaml:"template,omitempty"`
}

// Normalize fills unset fields with their defaults.
func (r *Request) Normalize() {
	if r.MemoryMiB == 0 {
		r.MemoryMiB = 1024
	}
	if r.VCPUs == 0 {
		r.VCPUs = 1
	}
	if r.Template == "" {
		r.Template = "ubuntu"
	}
	r.Dataset = zfs.NormalizeDataset(r.Dataset)
}

// Validate checks the request for structural errors. Identity presence
// is checked by the orchestrator's validating stage, not here, so the
// error taxonomy stays distinct.
func (r *Request) Validate() error {
	if r.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	if r.Snapshot == "" {
		return fmt.Errorf("snapshot is required")
	}
	if !strings.Contains(r.Snapshot, "@") {
		return fmt.Errorf("snapshot %q must name a snapshot (pool/path@name)", r.Snapshot)
	}
	if r.Bridge == "" {
		return fmt.Errorf("bridge is required")
	}
	if r.IPAddress != "" && net.ParseIP(r.IPAddress) == nil {
		return fmt.Errorf("invalid IP address %q", r.IPAddress)
	}
	return nil
}

// Result is the outcome of a successful run.
type Result struct {
	// RunID correlates the run's log lines.
	RunID string `json:"runId" yaml:"run_id"`
	// GuestName and IPAddress are the fully resolved identity.
	GuestName string `json:"guestName" yaml:"guest_name"`
	IPAddress string `json:"ipAddress" yaml:"ip_address"`
	// DomainXML is the hypervisor's echoed definition of the new
	// domain.
	DomainXML string `json:"domainXML" yaml:"domain_xml"`
}

// Deps are the collaborators for one host's provisioning pipeline.
type Deps struct {
	Cloner   *zfs.Cloner
	Injector *inject.Injector
	Pools    *libvirt.Registrar
	Definer  *libvirt.Definer
	Domains  *libvirt.Domains
	Resolver *net.Resolver
	// TemplateDir holds the per-template domain definition files.
	TemplateDir string
	// Rollback enables reverse-order teardown of created artifacts on
	// failure.
	Rollback bool
	// StepTimeout bounds each remote step. Zero disables the bound.
	StepTimeout time.Duration
}

// Orchestrator runs provisioning transactions against one host.
type Orchestrator struct {
	cloner      cloner
	injector    injector
	pools       poolRegistrar
	definer     domainDefiner
	domains     domainRemover
	resolver    resolver
	templateDir string
	rollback    bool
	stepTimeout time.Duration
}

// New returns an Orchestrator wired to deps.
func New(deps Deps) *Orchestrator {
	r := deps.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	return &Orchestrator{
		cloner:      deps.Cloner,
		injector:    deps.Injector,
		pools:       deps.Pools,
		definer:     deps.Definer,
		domains:     deps.Domains,
		resolver:    r,
		templateDir: deps.TemplateDir,
		rollback:    deps.Rollback,
		stepTimeout: deps.StepTimeout,
	}
}

// artifacts is the ordered record of remote state created by a run,
// used for reverse-order teardown on failure.
type artifacts struct {
	dataset string
	pool    string
	domain  string
}

// Provision runs the full pipeline for req. On success the result
// carries the defined domain's configuration; on failure the first
// step's error is returned and, when rollback is enabled, created
// artifacts are torn down best-effort in reverse order.
func (o *Orchestrator) Provision(ctx context.Context, req Request) (*Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := ulid.Make().String()
	logger := logging.FromContext(ctx).WithFields(logrus.Fields{
		"run_id": runID,
		"host":   req.Host,
	})
	ctx = logging.WithLogger(ctx, logger)

	logger.WithField("state", StateValidating).Info("provisioning guest")
	name, ip, err := o.resolveIdentity(ctx, req.GuestName, req.IPAddress)
	if err != nil {
		logger.WithField("state", StateFailed).WithError(err).Error("identity validation failed")
		return nil, err
	}
	logger = logger.WithField("guest", name)

	created := &artifacts{}
	result, err := o.run(ctx, req, name, ip, created)
	if err != nil {
		logger.WithField("state", StateFailed).WithError(err).Error("provisioning failed")
		if o.rollback {
			o.teardown(ctx, created)
		}
		return nil, err
	}

	result.RunID = runID
	logger.WithField("state", StateDone).Info("guest provisioned")
	return result, nil
}

// run drives the remote steps in strict sequence, recording each
// created artifact before the next step begins.
func (o *Orchestrator) run(ctx context.Context, req Request, name, ip string, created *artifacts) (*Result, error) {
	logger := logging.FromContext(ctx)

	logger.WithField("state", StateCloning).Info("cloning machine image")
	if err := o.inStep(ctx, func(ctx context.Context) error {
		return o.cloner.Clone(ctx, req.Snapshot, req.Dataset)
	}); err != nil {
		return nil, err
	}
	created.dataset = req.Dataset

	var mountPath string
	if err := o.inStep(ctx, func(ctx context.Context) error {
		var err error
		mountPath, err = o.cloner.MountPoint(ctx, req.Dataset)
		return err
	}); err != nil {
		return nil, err
	}

	logger.WithField("state", StateInjecting).Info("injecting guest identity")
	if err := o.inStep(ctx, func(ctx context.Context) error {
		return o.injector.Inject(ctx, mountPath, ip, name)
	}); err != nil {
		return nil, err
	}

	logger.WithField("state", StatePoolRegistration).Info("registering storage pool")
	if err := o.inStep(ctx, func(ctx context.Context) error {
		_, err := o.pools.CreatePool(ctx, name, mountPath)
		return err
	}); err != nil {
		return nil, err
	}
	created.pool = name

	logger.WithField("state", StateDomainDefinition).Info("defining domain")
	var domainXML string
	if err := o.inStep(ctx, func(ctx context.Context) error {
		var err error
		domainXML, err = o.definer.DefineDomain(ctx, libvirt.DomainParams{
			Name:         name,
			MemoryMiB:    req.MemoryMiB,
			VCPUs:        req.VCPUs,
			DiskPath:     mountPath + "/" + inject.RootImageName,
			Bridge:       req.Bridge,
			TemplatePath: o.templatePath(req.Template),
		})
		return err
	}); err != nil {
		return nil, err
	}
	created.domain = name

	return &Result{GuestName: name, IPAddress: ip, DomainXML: domainXML}, nil
}

// resolveIdentity fills in whichever half of the identity the request
// omitted. Both absent fails immediately, before any remote call.
func (o *Orchestrator) resolveIdentity(ctx context.Context, name, ip string) (string, string, error) {
	switch {
	case name == "" && ip == "":
		return "", "", &MissingIdentityError{}
	case name != "" && ip == "":
		addrs, err := o.resolver.LookupHost(ctx, name)
		if err != nil || len(addrs) == 0 {
			if err == nil {
				err = fmt.Errorf("no addresses returned")
			}
			return "", "", &IdentityResolutionError{Kind: "name", Value: name, Err: err}
		}
		return name, addrs[0], nil
	case name == "" && ip != "":
		names, err := o.resolver.LookupAddr(ctx, ip)
		if err != nil || len(names) == 0 {
			if err == nil {
				err = fmt.Errorf("no names returned")
			}
			return "", "", &IdentityResolutionError{Kind: "address", Value: ip, Err: err}
		}
		return shortHostname(names[0]), ip, nil
	default:
		return name, ip, nil
	}
}

// shortHostname trims a reverse-lookup FQDN down to the leading label.
func shortHostname(fqdn string) string {
	fqdn = strings.TrimSuffix(fqdn, ".")
	if i := strings.IndexByte(fqdn, '.'); i > 0 {
		return fqdn[:i]
	}
	return fqdn
}

// inStep runs one remote step under the per-step timeout.
func (o *Orchestrator) inStep(ctx context.Context, fn func(context.Context) error) error {
	if o.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.stepTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// teardown removes created artifacts in reverse order. Every outcome is
// logged individually; errors never propagate so the step failure that
// triggered teardown stays the reported one.
func (o *Orchestrator) teardown(ctx context.Context, created *artifacts) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx)

	if created.domain != "" {
		if err := o.domains.Undefine(ctx, libvirt.ByName(created.domain)); err != nil {
			logger.WithField("domain", created.domain).WithError(err).Warn("rollback: failed to undefine domain")
		} else {
			logger.WithField("domain", created.domain).Info("rollback: domain undefined")
		}
	}

	if created.pool != "" {
		if err := o.pools.RemovePool(ctx, created.pool); err != nil {
			logger.WithField("pool", created.pool).WithError(err).Warn("rollback: failed to remove pool")
		} else {
			logger.WithField("pool", created.pool).Info("rollback: pool removed")
		}
	}

	if created.dataset != "" {
		if err := o.cloner.Destroy(ctx, created.dataset); err != nil {
			logger.WithField("dataset", created.dataset).WithError(err).Warn("rollback: failed to destroy dataset")
		} else {
			logger.WithField("dataset", created.dataset).Info("rollback: dataset destroyed")
		}
	}
}

func (o *Orchestrator) templatePath(template string) string {
	return o.templateDir + "/" + template + ".xml"
}
