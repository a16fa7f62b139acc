package zfs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jbweber/warren/internal/remote"
)

// mockRunner is a mock implementation of remote.Runner for testing.
type mockRunner struct {
	mu sync.Mutex

	runFunc func(host string, argv []string) (string, error)

	calls [][]string
}

func (m *mockRunner) Run(ctx context.Context, host string, argv ...string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]string{host}, argv...))
	if m.runFunc != nil {
		return m.runFunc(host, argv)
	}
	return "", nil
}

var _ remote.Runner = (*mockRunner)(nil)

func TestNormalizeDataset(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tank/guests/g1", "tank/guests/g1"},
		{"tank/guests/g1/", "tank/guests/g1"},
		{"tank/guests/g1///", "tank/guests/g1"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeDataset(tt.in); got != tt.want {
			t.Errorf("NormalizeDataset(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCloneCommand(t *testing.T) {
	runner := &mockRunner{}
	c := NewCloner("hv01", runner)

	if err := c.Clone(context.Background(), "tank/img@base", "tank/guests/g1/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 command, got %d", len(runner.calls))
	}
	got := strings.Join(runner.calls[0], " ")
	want := "hv01 zfs clone tank/img@base tank/guests/g1"
	if got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestCloneFailure(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(host string, argv []string) (string, error) {
			return "", &remote.CommandError{Host: host, Stderr: "cannot create 'tank/guests/g1': dataset already exists"}
		},
	}
	c := NewCloner("hv01", runner)

	err := c.Clone(context.Background(), "tank/img@base", "tank/guests/g1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var cloneErr *CloneError
	if !errors.As(err, &cloneErr) {
		t.Fatalf("expected *CloneError, got %T", err)
	}
	if !strings.Contains(cloneErr.Error(), "dataset already exists") {
		t.Errorf("error should carry the tool diagnostic, got %q", cloneErr.Error())
	}
}

func TestMountPoint(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(host string, argv []string) (string, error) {
			return "/tank/guests/g1\ntrailing noise", nil
		},
	}
	c := NewCloner("hv01", runner)

	mp, err := c.MountPoint(context.Background(), "tank/guests/g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mp != "/tank/guests/g1" {
		t.Errorf("MountPoint() = %q, want %q", mp, "/tank/guests/g1")
	}

	got := strings.Join(runner.calls[0], " ")
	want := "hv01 zfs get mountpoint tank/guests/g1 -H -o value"
	if got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestMountPointQueryError(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(host string, argv []string) (string, error) {
			return "", &remote.CommandError{Host: host, Stderr: "dataset does not exist"}
		},
	}
	c := NewCloner("hv01", runner)

	_, err := c.MountPoint(context.Background(), "tank/guests/missing")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("expected *QueryError, got %T", err)
	}
}

func TestDestroy(t *testing.T) {
	runner := &mockRunner{}
	c := NewCloner("hv01", runner)

	if err := c.Destroy(context.Background(), "tank/guests/g1/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := strings.Join(runner.calls[0], " ")
	want := "hv01 zfs destroy tank/guests/g1"
	if got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestDestroyRefusesSnapshots(t *testing.T) {
	runner := &mockRunner{}
	c := NewCloner("hv01", runner)

	if err := c.Destroy(context.Background(), "tank/img@base"); err == nil {
		t.Fatal("expected error destroying a snapshot name")
	}
	if len(runner.calls) != 0 {
		t.Errorf("no command should run for a snapshot name, got %d", len(runner.calls))
	}
}
