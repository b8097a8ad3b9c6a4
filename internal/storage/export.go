package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/kinetics"
	"github.com/san-kum/kinesim/internal/sim"
)

type ExportEvent struct {
	Step            int64   `json:"step"`
	TimeNanoseconds float64 `json:"time_ns"`
	Motor           int     `json:"motor"`
	From            string  `json:"from"`
	To              string  `json:"to"`
}

type ExportData struct {
	Mode                 string              `json:"mode"`
	Seed                 int64               `json:"seed"`
	NanosecondsPerStep   float64             `json:"nanoseconds_per_step"`
	Rates                map[string]float64  `json:"rates"`
	Steps                int64               `json:"steps"`
	SimulatedNanoseconds float64             `json:"simulated_ns"`
	WalkingSpeed         float64             `json:"walking_speed_um_per_s"`
	Metrics              map[string]float64  `json:"metrics"`
	Stats                [2][]kinetics.Stats `json:"stats"`
	Events               []ExportEvent       `json:"events"`
}

func ExportJSON(w io.Writer, cfg *config.Config, result *sim.Result) error {
	data := ExportData{
		Mode:                 result.Mode,
		Seed:                 result.Seed,
		NanosecondsPerStep:   cfg.NanosecondsPerStep,
		Rates:                cfg.Rates,
		Steps:                result.Steps,
		SimulatedNanoseconds: result.SimulatedNanoseconds,
		WalkingSpeed:         result.WalkingSpeed,
		Metrics:              result.Metrics,
		Stats:                result.Stats,
		Events:               make([]ExportEvent, len(result.Events)),
	}
	for i, e := range result.Events {
		data.Events[i] = ExportEvent{
			Step:            e.Step,
			TimeNanoseconds: e.TimeNanoseconds,
			Motor:           e.Agent,
			From:            e.From.String(),
			To:              e.To.String(),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteEventsCSV writes step, time_ns, motor, from, to rows.
func WriteEventsCSV(w io.Writer, events []sim.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step", "time_ns", "motor", "from", "to"}); err != nil {
		return err
	}
	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.Step, 10),
			strconv.FormatFloat(e.TimeNanoseconds, 'f', -1, 64),
			strconv.Itoa(e.Agent),
			e.From.String(),
			e.To.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WritePathCSV(w io.Writer, path []sim.PathPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time_ns", "x", "y", "z", "bound"}); err != nil {
		return err
	}
	for _, p := range path {
		row := []string{
			strconv.FormatFloat(p.TimeNanoseconds, 'f', -1, 64),
			strconv.FormatFloat(p.X, 'f', 6, 64),
			strconv.FormatFloat(p.Y, 'f', 6, 64),
			strconv.FormatFloat(p.Z, 'f', 6, 64),
			strconv.Itoa(p.Bound),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
