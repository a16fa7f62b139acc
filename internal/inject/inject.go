// Package inject writes per-guest network identity into a cloned disk
// image before the guest ever boots. The dataset's raw root image is
// attached as a loop device, its first partition mounted at a fixed
// staging path, and the interfaces stanza and hostname written into the
// mounted filesystem.
//
// The staging mount point is one well-known path shared by every
// injection on a host, so injections are serialized per host with a
// keyed mutex. Two injections on different hosts touch distinct remote
// filesystems and may run concurrently.
package inject

import (
	"context"
	"fmt"

	"github.com/im7mortal/kmutex"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/warren/internal/logging"
	"github.com/jbweber/warren/internal/remote"
)

// RootImageName is the disk image file every machine-image dataset
// carries at its top level.
const RootImageName = "root.raw"

// InjectionError reports a failed identity injection. It always carries
// the error from the attach/mount/write step, never a cleanup error.
type InjectionError struct {
	Host string
	Err  error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("failed to inject guest identity on host %q: %v", e.Host, e.Err)
}

func (e *InjectionError) Unwrap() error { return e.Err }

// Injector performs identity injection on a single host.
type Injector struct {
	host       string
	runner     remote.Runner
	mountPoint string
	locks      *kmutex.Kmutex
}

// NewInjector returns an Injector for host using the fixed staging
// mountPoint. locks must be the process-wide per-host injection lock
// set; every Injector in the process shares it.
func NewInjector(host string, runner remote.Runner, mountPoint string, locks *kmutex.Kmutex) *Injector {
	return &Injector{host: host, runner: runner, mountPoint: mountPoint, locks: locks}
}

// Inject attaches <imageDir>/root.raw as a loop device, mounts its first
// partition, and writes the guest's IP address and hostname into the
// image. The unmount/detach cleanup runs on every exit path; the loop
// device is detached exactly once per successful attach.
func (i *Injector) Inject(ctx context.Context, imageDir, ip, hostname string) error {
	i.locks.Lock(i.host)
	defer i.locks.Unlock(i.host)

	var device string
	defer func() {
		i.cleanup(ctx, device)
	}()

	imagePath := fmt.Sprintf("%s/%s", imageDir, RootImageName)
	out, err := i.runner.Run(ctx, i.host, "losetup", "--find", "--show", "-P", imagePath)
	if err != nil {
		return &InjectionError{Host: i.host, Err: err}
	}
	device = remote.FirstField(out)
	if device == "" {
		return &InjectionError{Host: i.host, Err: fmt.Errorf("losetup reported no device for %s", imagePath)}
	}

	partition := device + "p1"
	if _, err := i.runner.Run(ctx, i.host, "mount", partition, i.mountPoint); err != nil {
		return &InjectionError{Host: i.host, Err: err}
	}

	if err := i.writeIdentity(ctx, ip, hostname); err != nil {
		return &InjectionError{Host: i.host, Err: err}
	}

	return nil
}

// writeIdentity appends the network-interface stanza and overwrites the
// hostname file inside the mounted guest filesystem. The content is
// shell-quoted, not escaped: the shell hands printf the exact bytes,
// newlines and tabs included.
func (i *Injector) writeIdentity(ctx context.Context, ip, hostname string) error {
	stanza := fmt.Sprintf("\nauto ens3\niface ens3 inet static\n\taddress %s\n", ip)
	appendIfaces := fmt.Sprintf("printf %%s %s >> %s/etc/network/interfaces", remote.ShellQuote(stanza), i.mountPoint)
	if _, err := i.runner.Run(ctx, i.host, "sh", "-c", appendIfaces); err != nil {
		return err
	}

	writeHostname := fmt.Sprintf("printf %%s %s > %s/etc/hostname", remote.ShellQuote(hostname+"\n"), i.mountPoint)
	if _, err := i.runner.Run(ctx, i.host, "sh", "-c", writeHostname); err != nil {
		return err
	}

	return nil
}

// cleanup unmounts the staging mount point and, when a loop device was
// attached, detaches it. Errors are logged and swallowed: a busy mount
// or loop device is expected under contention and must not mask the
// error that ended the injection.
func (i *Injector) cleanup(ctx context.Context, device string) {
	// The original failure may have been a deadline expiry; cleanup
	// still has to run.
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx).WithFields(logrus.Fields{
		"host":        i.host,
		"mount_point": i.mountPoint,
	})

	if _, err := i.runner.Run(ctx, i.host, "umount", i.mountPoint); err != nil {
		logger.WithError(err).Warn("failed to unmount injection mount point")
	}

	if device == "" {
		return
	}
	if _, err := i.runner.Run(ctx, i.host, "losetup", "-d", device); err != nil {
		logger.WithField("device", device).WithError(err).Warn("failed to detach loop device")
	}
}
