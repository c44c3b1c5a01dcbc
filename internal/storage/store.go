package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/taskctl/internal/config"
	"github.com/san-kum/taskctl/internal/sim"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Model      string  `json:"model"`
	Integrator string  `json:"integrator"`
	Controller string  `json:"controller"`
	Dt         float64 `json:"dt"`
	Duration   float64 `json:"duration"`
	MassScale  float64 `json:"mass_scale"`

	Kp      float64    `json:"kp"`
	Kd      float64    `json:"kd"`
	Damping float64    `json:"damping"`
	Target  [3]float64 `json:"target"`

	Steps           int                `json:"steps"`
	Failures        int                `json:"failures"`
	Regularizations int                `json:"regularizations"`
	Saturations     int                `json:"saturations"`
	Metrics         map[string]float64 `json:"metrics"`

	// Error is set when the run stopped early.
	Error string `json:"error,omitempty"`
}

// Save writes the run's metadata and samples. runErr is the error the run
// ended with, if any; the partial result is still stored.
func (s *Store) Save(cfg *config.Config, result *sim.Result, runErr error) (string, error) {
	arm, err := cfg.Arm()
	if err != nil {
		return "", err
	}
	now := s.now()
	runID := fmt.Sprintf("%s_%s", cfg.Model, now.UTC().Format("20060102T150405.000000000"))
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	settings := cfg.Settings(arm)
	meta := RunMetadata{
		ID:              runID,
		Timestamp:       now,
		Model:           cfg.Model,
		Integrator:      cfg.Integrator,
		Controller:      cfg.Controller,
		Dt:              cfg.Dt,
		Duration:        cfg.Duration,
		MassScale:       cfg.MassScale,
		Kp:              settings.Kp,
		Kd:              settings.Kd,
		Damping:         settings.Damping,
		Target:          [3]float64{settings.Target.X, settings.Target.Y, settings.Target.Z},
		Steps:           result.StepsTaken,
		Failures:        result.Failures,
		Regularizations: result.Regularizations,
		Saturations:     result.Saturations,
		Metrics:         result.Metrics,
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteCSV(f, result, arm.NumCoords()); err != nil {
		return "", err
	}
	return runID, f.Close()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

// List returns every stored run, oldest first. Directories without
// readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// OpenSamples opens the raw samples.csv of a stored run.
func (s *Store) OpenSamples(runID string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.baseDir, runID, samplesFile))
}

func (s *Store) LoadSamples(runID string) (*Samples, error) {
	f, err := s.OpenSamples(runID)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
