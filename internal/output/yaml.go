package output

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatDomains formats a domain listing as YAML.
func (f *YAMLFormatter) FormatDomains(rows []DomainRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	data, err := yaml.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to marshal domains to YAML: %w", err)
	}

	return string(data), nil
}

// FormatReport formats a host resource report as YAML.
func (f *YAMLFormatter) FormatReport(r *Report) (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to YAML: %w", err)
	}

	return string(data), nil
}
