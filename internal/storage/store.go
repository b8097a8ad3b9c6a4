package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/motor"
	"github.com/san-kum/kinesim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	eventsFile   = "events.csv"
	pathFile     = "path.csv"
	configFile   = "config.yaml"
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
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	Timestamp            time.Time          `json:"timestamp"`
	Mode                 string             `json:"mode"`
	Seed                 int64              `json:"seed"`
	NanosecondsPerStep   float64            `json:"nanoseconds_per_step"`
	DurationNs           float64            `json:"duration_ns"`
	Steps                int64              `json:"steps"`
	SimulatedNanoseconds float64            `json:"simulated_ns"`
	Events               int                `json:"events"`
	Displacement         float64            `json:"displacement_nm"`
	WalkingSpeed         float64            `json:"walking_speed_um_per_s"`
	Metrics              map[string]float64 `json:"metrics"`
}

// Save writes one run into its own directory: metadata, the configuration
// it ran with, the event log and the hips path.
func (s *Store) Save(name string, cfg *config.Config, result *sim.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:                   runID,
		Name:                 name,
		Timestamp:            now,
		Mode:                 result.Mode,
		Seed:                 result.Seed,
		NanosecondsPerStep:   cfg.NanosecondsPerStep,
		DurationNs:           cfg.DurationNs,
		Steps:                result.Steps,
		SimulatedNanoseconds: result.SimulatedNanoseconds,
		Events:               len(result.Events),
		Displacement:         result.Displacement,
		WalkingSpeed:         result.WalkingSpeed,
		Metrics:              result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(runDir, eventsFile), func(w io.Writer) error {
		return WriteEventsCSV(w, result.Events)
	}); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(runDir, pathFile), func(w io.Writer) error {
		return WritePathCSV(w, result.HipsPath)
	}); err != nil {
		return "", err
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every stored run, oldest first.
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
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

func (s *Store) LoadEvents(runID string) ([]sim.Event, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, eventsFile))
	if err != nil {
		return nil, err
	}

	events := make([]sim.Event, 0, len(records))
	for i, record := range records {
		if len(record) < 5 {
			return nil, fmt.Errorf("storage: %s line %d: want 5 fields, got %d", eventsFile, i+2, len(record))
		}
		step, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w", eventsFile, i+2, err)
		}
		t, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w", eventsFile, i+2, err)
		}
		agent, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w", eventsFile, i+2, err)
		}
		from, err := motor.ParseState(record[3])
		if err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w", eventsFile, i+2, err)
		}
		to, err := motor.ParseState(record[4])
		if err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w", eventsFile, i+2, err)
		}
		events = append(events, sim.Event{Step: step, TimeNanoseconds: t, Agent: agent, From: from, To: to})
	}
	return events, nil
}

func (s *Store) LoadPath(runID string) ([]sim.PathPoint, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, pathFile))
	if err != nil {
		return nil, err
	}

	path := make([]sim.PathPoint, 0, len(records))
	for _, record := range records {
		if len(record) < 5 {
			continue
		}
		var vals [4]float64
		ok := true
		for j := range vals {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				ok = false
				break
			}
			vals[j] = v
		}
		bound, err := strconv.Atoi(record[4])
		if !ok || err != nil {
			continue
		}
		path = append(path, sim.PathPoint{TimeNanoseconds: vals[0], X: vals[1], Y: vals[2], Z: vals[3], Bound: bound})
	}
	return path, nil
}

// readCSV returns the records after the header.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return [][]string{}, nil
	}
	return records[1:], nil
}
