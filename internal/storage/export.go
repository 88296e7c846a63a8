package storage

import (
	"encoding/json"
	"io"
)

// ExportData is the JSON form of a stored run.
type ExportData struct {
	RunMetadata
	Trajectory *Trajectory `json:"trajectory"`
}

// Export writes the metadata and trajectory of runID as indented JSON.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tr, err := s.LoadStates(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, meta, tr)
}

func ExportJSON(w io.Writer, meta *RunMetadata, tr *Trajectory) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{RunMetadata: *meta, Trajectory: tr})
}
