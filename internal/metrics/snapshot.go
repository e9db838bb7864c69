package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// WriteSnapshot gathers the registry and writes it to path in the
// Prometheus text exposition format, so the final state of a run survives
// after the scrape endpoint goes away.
func WriteSnapshot(path string, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	return writeFamilies(path, families)
}

// WriteDefaultSnapshot snapshots the default registry.
func WriteDefaultSnapshot(path string) error {
	return WriteSnapshot(path, prometheus.DefaultGatherer)
}

func writeFamilies(path string, families []*dto.MetricFamily) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}

	enc := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			f.Close()
			return fmt.Errorf("encoding %s: %w", family.GetName(), err)
		}
	}
	return f.Close()
}
