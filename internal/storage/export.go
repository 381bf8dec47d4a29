package storage

import (
	"encoding/json"
	"io"
	"math"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/experiment"
)

// ExportData is the JSON form of a run. Non-finite numbers are omitted.
type ExportData struct {
	RunMetadata
	Telemetry []exportTelemetry `json:"telemetry"`
	Profile   []exportProfile   `json:"profile"`
}

type exportTelemetry struct {
	Iteration           int      `json:"iteration"`
	KineticEnergy       float64  `json:"kinetic_energy"`
	ConvergenceMetric   *float64 `json:"convergence_metric,omitempty"`
	MaxDensityDeviation float64  `json:"max_density_deviation"`
	State               string   `json:"state"`
}

type exportProfile struct {
	Material string   `json:"material"`
	Count    int      `json:"count"`
	Mass     float64  `json:"mass"`
	Mean     *float64 `json:"mean_radius,omitempty"`
	Std      *float64 `json:"std_radius,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func exportTelemetrySeries(series []dynamo.Telemetry) []exportTelemetry {
	out := make([]exportTelemetry, len(series))
	for i, t := range series {
		out[i] = exportTelemetry{
			Iteration:           t.Iteration,
			KineticEnergy:       t.KineticEnergy,
			ConvergenceMetric:   finite(t.ConvergenceMetric),
			MaxDensityDeviation: t.MaxDensityDeviation,
			State:               t.State.String(),
		}
	}
	return out
}

// ExportJSON writes a finished run to w.
func ExportJSON(w io.Writer, out *experiment.Outcome) error {
	data := ExportData{
		RunMetadata: metadata(out.Scenario.Name, out),
		Telemetry:   exportTelemetrySeries(out.Telemetry),
	}
	for _, p := range out.Profile {
		data.Profile = append(data.Profile, exportProfile{
			Material: out.Scenario.Materials[p.Material].ID,
			Count:    p.Count,
			Mass:     p.Mass,
			Mean:     finite(p.Mean),
			Std:      finite(p.Std),
		})
	}
	return encode(w, data)
}

// ExportStored writes a stored run to w.
func (s *Store) ExportStored(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	series, err := s.LoadTelemetry(runID)
	if err != nil {
		return err
	}
	return encode(w, ExportData{RunMetadata: *meta, Telemetry: exportTelemetrySeries(series)})
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
