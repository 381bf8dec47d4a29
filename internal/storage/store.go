// Package storage persists finished runs as a directory per run holding
// metadata.json, telemetry.csv and field.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/fgmsim/internal/blend"
	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/experiment"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID             string                 `json:"id"`
	Scenario       string                 `json:"scenario"`
	Timestamp      time.Time              `json:"timestamp"`
	Seed           int64                  `json:"seed"`
	ParticleCount  int                    `json:"particle_count"`
	H              float64                `json:"h"`
	Dt             float64                `json:"dt"`
	Omega          float64                `json:"omega"`
	Materials      []string               `json:"materials"`
	Resolution     [3]int                 `json:"resolution"`
	Iterations     int                    `json:"iterations"`
	Converged      bool                   `json:"converged"`
	Reason         string                 `json:"reason"`
	Stratification float64                `json:"stratification"`
	Elapsed        time.Duration          `json:"elapsed_ns"`
	Metrics        map[string]float64     `json:"metrics"`
	Volumes        []blend.MaterialVolume `json:"volumes"`
}

func metadata(id string, out *experiment.Outcome) RunMetadata {
	s := out.Scenario
	meta := RunMetadata{
		ID:             id,
		Scenario:       s.Name,
		Timestamp:      time.Now(),
		Seed:           s.Params.RandSeed,
		H:              s.Params.H,
		Dt:             s.Params.Dt,
		Omega:          s.Params.Omega,
		Resolution:     s.Resolution,
		Stratification: out.Stratification,
		Elapsed:        out.Elapsed,
		Metrics:        out.Metrics,
	}
	for _, m := range s.Materials {
		meta.Materials = append(meta.Materials, m.ID)
	}
	if n := len(out.Telemetry); n > 0 {
		meta.ParticleCount = out.Telemetry[n-1].ParticleCount
	}
	if out.Result != nil {
		meta.Iterations = out.Result.Iterations
		meta.Converged = out.Result.Converged
		meta.Reason = out.Result.Reason
		if out.Result.Field != nil {
			meta.Volumes = out.Result.Field.Volumes
		}
	}
	return meta
}

// Save writes a finished run and returns its id.
func (s *Store) Save(out *experiment.Outcome) (string, error) {
	name := strings.ReplaceAll(out.Scenario.Name, string(filepath.Separator), "_")
	if name == "" {
		name = "run"
	}
	runID := fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), metadata(runID, out)); err != nil {
		return "", err
	}
	if err := writeTelemetry(filepath.Join(runDir, "telemetry.csv"), out.Telemetry); err != nil {
		return "", err
	}
	if out.Result != nil && out.Result.Field != nil {
		if err := writeField(filepath.Join(runDir, "field.csv"), out.Result.Field); err != nil {
			return "", err
		}
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var telemetryHeader = []string{"iteration", "kinetic_energy", "convergence_metric", "particle_count", "max_density_deviation", "state"}

func writeTelemetry(path string, series []dynamo.Telemetry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(telemetryHeader); err != nil {
		return err
	}
	for _, t := range series {
		row := []string{
			strconv.Itoa(t.Iteration),
			formatFloat(t.KineticEnergy),
			formatFloat(t.ConvergenceMetric),
			strconv.Itoa(t.ParticleCount),
			formatFloat(t.MaxDensityDeviation),
			t.State.String(),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeField(path string, field *blend.Field) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"ix", "iy", "iz", "x", "y", "z", "dominant", "density", "rest_density", "stiffness", "viscosity"}
	for _, m := range field.Materials {
		header = append(header, "c_"+m)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	res := field.Resolution
	for iz := 0; iz < res[2]; iz++ {
		for iy := 0; iy < res[1]; iy++ {
			for ix := 0; ix < res[0]; ix++ {
				c := field.At(ix, iy, iz)
				p := field.Center(ix, iy, iz)
				row := []string{
					strconv.Itoa(ix), strconv.Itoa(iy), strconv.Itoa(iz),
					formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z),
					dominantName(field, c.Dominant),
					formatFloat(c.Density), formatFloat(c.RestDensity),
					formatFloat(c.Stiffness), formatFloat(c.Viscosity),
				}
				for _, x := range c.Concentration {
					row = append(row, formatFloat(x))
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
	}
	w.Flush()
	return w.Error()
}

func dominantName(field *blend.Field, k int) string {
	if k < 0 {
		return ""
	}
	return field.Materials[k]
}

// List returns the metadata of every stored run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].Timestamp.Before(runs[j].Timestamp)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadTelemetry(runID string) ([]dynamo.Telemetry, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "telemetry.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []dynamo.Telemetry{}, nil
	}

	series := make([]dynamo.Telemetry, 0, len(records)-1)
	for i, rec := range records[1:] {
		t, err := parseTelemetry(rec)
		if err != nil {
			return nil, fmt.Errorf("telemetry.csv line %d: %w", i+2, err)
		}
		series = append(series, t)
	}
	return series, nil
}

func parseTelemetry(rec []string) (dynamo.Telemetry, error) {
	var t dynamo.Telemetry
	if len(rec) != len(telemetryHeader) {
		return t, fmt.Errorf("expected %d fields, got %d", len(telemetryHeader), len(rec))
	}

	var err error
	if t.Iteration, err = strconv.Atoi(rec[0]); err != nil {
		return t, err
	}
	if t.KineticEnergy, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return t, err
	}
	if t.ConvergenceMetric, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return t, err
	}
	if t.ParticleCount, err = strconv.Atoi(rec[3]); err != nil {
		return t, err
	}
	if t.MaxDensityDeviation, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return t, err
	}
	state, ok := parseState(rec[5])
	if !ok {
		return t, fmt.Errorf("unknown state %q", rec[5])
	}
	t.State = state
	return t, nil
}

func parseState(name string) (dynamo.RunState, bool) {
	for s := dynamo.Uninitialized; s <= dynamo.Failed; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// Energy returns the kinetic energy series of a stored run.
func (s *Store) Energy(runID string) ([]float64, error) {
	series, err := s.LoadTelemetry(runID)
	if err != nil {
		return nil, err
	}
	energy := make([]float64, len(series))
	for i, t := range series {
		energy[i] = t.KineticEnergy
	}
	return energy, nil
}
