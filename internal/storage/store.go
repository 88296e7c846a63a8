package storage

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/san-kum/dynblocks/internal/sim"
)

// ErrRunNotFound indicates a run ID without a stored run.
var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes a stored run. States, Inputs and Observed name the
// columns of states.csv after the time column, in that order.
type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Adaptive   bool               `json:"adaptive,omitempty"`
	Steps      int                `json:"steps"`
	Params     map[string]float64 `json:"params,omitempty"`
	States     []string           `json:"states"`
	Inputs     []string           `json:"inputs,omitempty"`
	Observed   []string           `json:"observed,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	// NonFinite names the metrics that were NaN or infinite. JSON cannot hold
	// those values, so they are left out of Metrics.
	NonFinite  []string     `json:"non_finite_metrics,omitempty"`
	Controller *ControlInfo `json:"controller,omitempty"`
}

// ControlInfo records the feedback controller of a run.
type ControlInfo struct {
	Kind   string  `json:"kind"`
	State  string  `json:"state"`
	Input  string  `json:"input"`
	Kp     float64 `json:"kp"`
	Ki     float64 `json:"ki"`
	Kd     float64 `json:"kd"`
	Target float64 `json:"target"`
}

// Columns returns the header of states.csv.
func (m *RunMetadata) Columns() []string {
	cols := make([]string, 0, 1+len(m.States)+len(m.Inputs)+len(m.Observed))
	cols = append(cols, "time")
	cols = append(cols, m.States...)
	cols = append(cols, m.Inputs...)
	return append(cols, m.Observed...)
}

// Save writes meta and the trajectory of result. observed holds one row of
// observed values per recorded state and may be nil. The run ID and timestamp
// of meta are assigned here.
func (s *Store) Save(meta RunMetadata, result *sim.Result, observed [][]float64) (string, error) {
	meta.ID = newRunID(meta.Model)
	meta.Timestamp = time.Now().UTC()
	meta.Steps = result.StepsTaken
	if observed == nil {
		meta.Observed = nil
	}
	meta.Metrics, meta.NonFinite = splitFinite(meta.Metrics)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		os.RemoveAll(runDir)
		return "", errors.Wrapf(err, "run %s metadata", meta.ID)
	}
	if err := writeStates(filepath.Join(runDir, statesFile), &meta, result, observed); err != nil {
		os.RemoveAll(runDir)
		return "", errors.Wrapf(err, "run %s states", meta.ID)
	}
	return meta.ID, nil
}

// splitFinite returns the finite entries of m and the sorted names of the rest.
func splitFinite(m map[string]float64) (map[string]float64, []string) {
	if len(m) == 0 {
		return m, nil
	}
	finite := make(map[string]float64, len(m))
	var rest []string
	for name, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			rest = append(rest, name)
			continue
		}
		finite[name] = v
	}
	sort.Strings(rest)
	return finite, rest
}

func newRunID(model string) string {
	model = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, model)
	if model == "" {
		model = "run"
	}
	return model + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeStates(path string, meta *RunMetadata, result *sim.Result, observed [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeRows(csv.NewWriter(f), meta, result, observed); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeRows(w *csv.Writer, meta *RunMetadata, result *sim.Result, observed [][]float64) error {
	if err := w.Write(meta.Columns()); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{format(result.Times[i])}
		for _, v := range result.States[i] {
			row = append(row, format(v))
		}
		// Controls are applied over the step that starts at a sample; the last
		// sample repeats the final inputs.
		var u sim.Control
		switch {
		case i < len(result.Controls):
			u = result.Controls[i]
		case len(result.Controls) > 0:
			u = result.Controls[len(result.Controls)-1]
		}
		for j := range meta.Inputs {
			v := 0.0
			if j < len(u) {
				v = u[j]
			}
			row = append(row, format(v))
		}
		if i < len(observed) {
			for _, v := range observed[i] {
				row = append(row, format(v))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns the stored runs, newest first.
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

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "run %s metadata", runID)
	}
	return &meta, nil
}

// Trajectory is the content of states.csv.
type Trajectory struct {
	Columns []string    `json:"columns"`
	Times   []float64   `json:"times"`
	Rows    [][]float64 `json:"rows"`
}

// Column returns the values of the named column.
func (tr *Trajectory) Column(name string) ([]float64, bool) {
	if name == "time" {
		return tr.Times, true
	}
	if len(tr.Columns) == 0 {
		return nil, false
	}
	for j, c := range tr.Columns[1:] {
		if c != name {
			continue
		}
		out := make([]float64, len(tr.Rows))
		for i, row := range tr.Rows {
			if j < len(row) {
				out[i] = row[j]
			}
		}
		return out, true
	}
	return nil, false
}

func (s *Store) LoadStates(runID string) (*Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "run %s states", runID)
	}

	tr := &Trajectory{Times: []float64{}, Rows: [][]float64{}}
	if len(records) == 0 {
		return tr, nil
	}
	tr.Columns = records[0]

	for i, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		values := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "run %s row %d column %d", runID, i+1, j)
			}
			values[j] = v
		}
		tr.Times = append(tr.Times, values[0])
		tr.Rows = append(tr.Rows, values[1:])
	}
	return tr, nil
}
