package output

import (
	"bytes"
	"fmt"
	"sort"
	"text/tabwriter"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatDomains formats a domain listing as a table.
func (f *TableFormatter) FormatDomains(rows []DomainRow) (string, error) {
	if len(rows) == 0 {
		return "No domains found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSTATE")
	}

	for _, row := range rows {
		state := row.State
		if state == "" {
			state = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row.Name, state)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatReport formats a host resource report as a table. The summary
// row carries the aggregate claims and load averages; per-domain memory
// statistics follow, one row per domain and stat.
func (f *TableFormatter) FormatReport(r *Report) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "HOST\tCORES\tMEMORY\tLOAD1\tLOAD5\tLOAD15")
	}

	cores, memory := "-", "-"
	if r.Resources != nil {
		cores = fmt.Sprintf("%d", r.Resources.ActiveCores)
		memory = fmt.Sprintf("%d MiB", r.Resources.RequestedMemoryKiB/1024)
	}

	load1, load5, load15 := "-", "-", "-"
	if r.Load != nil {
		load1 = fmt.Sprintf("%.2f", r.Load.One)
		load5 = fmt.Sprintf("%.2f", r.Load.Five)
		load15 = fmt.Sprintf("%.2f", r.Load.Fifteen)
	}

	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		r.Host, cores, memory, load1, load5, load15)
	_ = w.Flush()

	if r.Resources != nil && len(r.Resources.MemoryStats) > 0 {
		buf.WriteString("\n")
		sw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		if !f.NoHeaders {
			_, _ = fmt.Fprintln(sw, "DOMAIN\tSTAT\tVALUE")
		}
		for _, domain := range sortedKeys(r.Resources.MemoryStats) {
			stats := r.Resources.MemoryStats[domain]
			for _, stat := range sortedKeys(stats) {
				_, _ = fmt.Fprintf(sw, "%s\t%s\t%d\n", domain, stat, stats[stat])
			}
		}
		_ = sw.Flush()
	}

	return buf.String(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
