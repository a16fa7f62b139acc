// Package remote executes host tooling (zfs, losetup, mount) either
// locally or on a remote hypervisor host by prefixing the command with an
// ssh invocation. All output is captured; a command that writes to its
// error stream is treated as failed even when it exits zero, because the
// storage tools report partial failures that way.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/warren/internal/logging"
)

// Runner executes a command on a target host and returns its captured
// standard output.
//
// In production this is satisfied by *ShellRunner. In tests it is
// satisfied by mock implementations.
type Runner interface {
	Run(ctx context.Context, host string, argv ...string) (string, error)
}

// CommandError reports a command that failed or produced diagnostic
// output on its error stream.
type CommandError struct {
	Host   string
	Cmd    string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command %q on host %q failed: %s", e.Cmd, e.Host, e.Stderr)
	}
	return fmt.Sprintf("command %q on host %q failed: %v", e.Cmd, e.Host, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// TimeoutError reports a remote operation that exceeded its deadline.
// Network-partitioned hosts surface here instead of hanging a worker.
type TimeoutError struct {
	Host string
	Cmd  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q on host %q timed out", e.Cmd, e.Host)
}

// ShellRunner runs commands through the local shell environment,
// prefixing an ssh invocation when the target host is not local.
type ShellRunner struct {
	// User is the login user for remote hosts. Empty means the ssh
	// config decides.
	User string
}

var _ Runner = (*ShellRunner)(nil)

// Local reports whether host refers to the machine we are running on.
func Local(host string) bool {
	return host == "" || host == "localhost"
}

// ShellQuote wraps s in single quotes so a POSIX shell parses it back
// as one literal word, newlines and tabs included. Embedded single
// quotes are closed, escaped and reopened.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// command builds the argv actually executed: argv itself for local
// hosts, or argv behind an ssh prefix naming the target host. ssh joins
// its command words with spaces and the remote login shell re-tokenizes
// the result, so each word is quoted to survive the round trip intact.
func (r *ShellRunner) command(host string, argv []string) []string {
	if Local(host) {
		return argv
	}
	prefix := []string{"ssh"}
	if r.User != "" {
		prefix = append(prefix, "-l", r.User)
	}
	prefix = append(prefix, host)
	for _, arg := range argv {
		prefix = append(prefix, ShellQuote(arg))
	}
	return prefix
}

// Run executes argv on host and returns trimmed standard output. The
// command fails if it exits non-zero, writes to stderr, or the context
// deadline expires.
func (r *ShellRunner) Run(ctx context.Context, host string, argv ...string) (string, error) {
	if len(argv) == 0 {
		return "", errors.New("remote: empty command")
	}

	full := r.command(host, argv)

	cmdline := strings.Join(argv, " ")
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"host": host,
		"cmd":  cmdline,
	}).Debug("running command")

	cmd := exec.CommandContext(ctx, full[0], full[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", &TimeoutError{Host: host, Cmd: cmdline}
	}

	diag := strings.TrimSpace(stderr.String())
	if err != nil || diag != "" {
		return "", &CommandError{Host: host, Cmd: cmdline, Stderr: diag, Err: err}
	}

	return strings.TrimSpace(stdout.String()), nil
}

// FirstLine returns the first line of command output.
func FirstLine(out string) string {
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		return strings.TrimSpace(out[:i])
	}
	return strings.TrimSpace(out)
}

// FirstField returns the first whitespace-delimited token of the first
// line of command output, or "" when there is none.
func FirstField(out string) string {
	fields := strings.Fields(FirstLine(out))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
