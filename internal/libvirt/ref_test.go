package libvirt

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/digitalocean/go-libvirt"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in     string
		wantID bool
	}{
		{"g1", false},
		{"web-01", false},
		{"42", true},
		{"0", true},
		{"12abc", false},
	}

	for _, tt := range tests {
		ref := ParseRef(tt.in)
		if ref.byID != tt.wantID {
			t.Errorf("ParseRef(%q).byID = %v, want %v", tt.in, ref.byID, tt.wantID)
		}
		if ref.String() != tt.in {
			t.Errorf("ParseRef(%q).String() = %q", tt.in, ref.String())
		}
	}
}

func TestLookupDispatch(t *testing.T) {
	rpc := &mockRPC{}
	d := NewDomains(rpc)

	if _, err := d.XML(context.Background(), ByName("g1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.XML(context.Background(), ByID(7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(rpc.domainLookupByNameCalls, []string{"g1"}) {
		t.Errorf("name lookups = %v, want [g1]", rpc.domainLookupByNameCalls)
	}
	if !reflect.DeepEqual(rpc.domainLookupByIDCalls, []int32{7}) {
		t.Errorf("ID lookups = %v, want [7]", rpc.domainLookupByIDCalls)
	}
}

func TestListFlags(t *testing.T) {
	var gotFlags []libvirt.ConnectListAllDomainsFlags
	rpc := &mockRPC{
		connectListAllDomainsFunc: func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
			gotFlags = append(gotFlags, flags)
			return []libvirt.Domain{{Name: "g1"}, {Name: "g2"}}, 2, nil
		},
	}
	d := NewDomains(rpc)

	ctx := context.Background()
	if _, err := d.Active(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Inactive(ctx); err != nil {
		t.Fatal(err)
	}
	names, err := d.All(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(names, []string{"g1", "g2"}) {
		t.Errorf("All() = %v", names)
	}

	want := []libvirt.ConnectListAllDomainsFlags{
		libvirt.ConnectListDomainsActive,
		libvirt.ConnectListDomainsInactive,
		libvirt.ConnectListDomainsActive | libvirt.ConnectListDomainsInactive,
	}
	if !reflect.DeepEqual(gotFlags, want) {
		t.Errorf("flags = %v, want %v", gotFlags, want)
	}
}

func TestState(t *testing.T) {
	tests := []struct {
		state int32
		want  string
	}{
		{int32(libvirt.DomainRunning), "running"},
		{int32(libvirt.DomainPaused), "paused"},
		{int32(libvirt.DomainShutdown), "shutdown"},
		{int32(libvirt.DomainShutoff), "shut off"},
		{int32(libvirt.DomainCrashed), "crashed"},
		{99, "unsupported domain state: 99"},
	}

	for _, tt := range tests {
		rpc := &mockRPC{
			domainGetStateFunc: func(dom libvirt.Domain, flags uint32) (int32, int32, error) {
				return tt.state, 0, nil
			},
		}
		d := NewDomains(rpc)

		got, err := d.State(context.Background(), ByName("g1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("State(%d) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestLifecycleOps(t *testing.T) {
	rpc := &mockRPC{}
	d := NewDomains(rpc)
	ctx := context.Background()

	if err := d.Start(ctx, ByName("g1")); err != nil {
		t.Fatal(err)
	}
	if err := d.Shutdown(ctx, ByName("g1")); err != nil {
		t.Fatal(err)
	}
	if err := d.Terminate(ctx, ByID(3)); err != nil {
		t.Fatal(err)
	}

	if len(rpc.domainCreateCalls) != 1 {
		t.Errorf("expected 1 start, got %d", len(rpc.domainCreateCalls))
	}
	if len(rpc.domainShutdownCalls) != 1 {
		t.Errorf("expected 1 shutdown, got %d", len(rpc.domainShutdownCalls))
	}
	if len(rpc.domainDestroyCalls) != 1 {
		t.Errorf("expected 1 destroy, got %d", len(rpc.domainDestroyCalls))
	}
}

func TestOpsLookupFailure(t *testing.T) {
	rpc := &mockRPC{
		domainLookupByNameFunc: func(name string) (libvirt.Domain, error) {
			return libvirt.Domain{}, errors.New("domain not found")
		},
	}
	d := NewDomains(rpc)
	ctx := context.Background()

	if err := d.Start(ctx, ByName("missing")); err == nil {
		t.Error("Start: expected error for unknown domain")
	}
	if _, err := d.State(ctx, ByName("missing")); err == nil {
		t.Error("State: expected error for unknown domain")
	}
	if len(rpc.domainCreateCalls) != 0 {
		t.Error("no lifecycle call should follow a failed lookup")
	}
}

func TestUndefineDestroysFirst(t *testing.T) {
	rpc := &mockRPC{}
	d := NewDomains(rpc)

	if err := d.Undefine(context.Background(), ByName("g1")); err != nil {
		t.Fatal(err)
	}

	if len(rpc.domainDestroyCalls) != 1 || len(rpc.domainUndefineCalls) != 1 {
		t.Errorf("expected destroy then undefine, got %d/%d",
			len(rpc.domainDestroyCalls), len(rpc.domainUndefineCalls))
	}
}
