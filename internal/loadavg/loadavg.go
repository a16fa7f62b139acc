// Package loadavg serves per-host load-average samples collected out of
// band by a cron job on each hypervisor. The samples land in one YAML
// file keyed by host name; this cache reads the file on demand and
// serves it from memory within a bounded staleness window.
package loadavg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"gopkg.in/yaml.v3"
)

// Sample holds the 1, 5 and 15 minute load averages for one host.
type Sample struct {
	One     float64 `json:"load1" yaml:"load1"`
	Five    float64 `json:"load5" yaml:"load5"`
	Fifteen float64 `json:"load15" yaml:"load15"`
}

// Cache is a process-wide snapshot of the load-average file. Readers
// are concurrent; the refresh swaps the whole map behind the lock so a
// reader never observes a half-written snapshot.
type Cache struct {
	path    string
	ttl     time.Duration
	clock   clock.Clock
	allowed map[string]bool

	mu      sync.Mutex
	samples map[string]Sample
	readAt  time.Time
}

// NewCache returns a cache over the sample file at path. allowedHosts
// is the validated host allow-list: a host appearing in the file but
// not in the list is a configuration error, reported rather than
// silently dropped.
func NewCache(path string, ttl time.Duration, clk clock.Clock, allowedHosts []string) *Cache {
	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[h] = true
	}
	return &Cache{path: path, ttl: ttl, clock: clk, allowed: allowed}
}

// Get returns the sample for host, forcing a refresh first when the
// cached snapshot is older than the TTL.
func (c *Cache) Get(host string) (Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.samples == nil || c.ttl <= 0 || now.Sub(c.readAt) >= c.ttl {
		if err := c.refreshLocked(now); err != nil {
			return Sample{}, err
		}
	}

	s, ok := c.samples[host]
	if !ok {
		return Sample{}, fmt.Errorf("no load average sample for host %q", host)
	}
	return s, nil
}

// refreshLocked reloads the sample file. Callers hold c.mu.
func (c *Cache) refreshLocked(now time.Time) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read load average file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse load average file %s: %w", c.path, err)
	}

	samples := make(map[string]Sample, len(raw))
	for host, line := range raw {
		if !c.allowed[host] {
			return fmt.Errorf("load average file lists host %q which is not in the valid host list", host)
		}
		s, err := parseSample(line)
		if err != nil {
			return fmt.Errorf("bad load average entry for host %q: %w", host, err)
		}
		samples[host] = s
	}

	c.samples = samples
	c.readAt = now
	return nil
}

// parseSample parses "0.66, 0.44, 0.87" into a Sample.
func parseSample(line string) (Sample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return Sample{}, fmt.Errorf("expected 3 comma-separated values, got %q", line)
	}

	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("bad load value %q: %w", p, err)
		}
		vals[i] = v
	}

	return Sample{One: vals[0], Five: vals[1], Fifteen: vals[2]}, nil
}
