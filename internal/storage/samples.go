package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/taskctl/internal/sim"
)

// Samples is a run read back from CSV. Tau and TaskErrors have one entry
// per controller tick, so one fewer than Times.
type Samples struct {
	Times      []float64
	Q, U, Tau  [][]float64
	TaskErrors []float64
}

// NumCoords is the number of joints in the samples.
func (s *Samples) NumCoords() int {
	if len(s.Q) == 0 {
		return 0
	}
	return len(s.Q[0])
}

// Column returns one series by CSV column name, e.g. "q1" or "task_error".
func (s *Samples) Column(name string) ([]float64, error) {
	if name == "task_error" {
		return s.TaskErrors, nil
	}
	if name == "time" {
		return s.Times, nil
	}
	for prefix, rows := range map[string][][]float64{"tau": s.Tau, "q": s.Q, "u": s.U} {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		j, err := strconv.Atoi(rest)
		if err != nil || j < 0 || j >= s.NumCoords() {
			continue
		}
		out := make([]float64, 0, len(rows))
		for _, row := range rows {
			if j < len(row) {
				out = append(out, row[j])
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown column %q", name)
}

func header(n int) []string {
	h := []string{"time"}
	for _, prefix := range []string{"q", "u", "tau"} {
		for i := 0; i < n; i++ {
			h = append(h, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	return append(h, "task_error")
}

func format(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteCSV writes one row per recorded state of a run with n joints. Rows
// past the last controller tick leave the torque and error fields empty.
func WriteCSV(out io.Writer, result *sim.Result, n int) error {
	w := csv.NewWriter(out)
	if err := w.Write(header(n)); err != nil {
		return err
	}
	for i, x := range result.States {
		if len(x) != 2*n {
			return fmt.Errorf("state %d has length %d, want %d", i, len(x), 2*n)
		}
		row := make([]string, 0, 3*n+2)
		row = append(row, format(result.Times[i]))
		for _, v := range x {
			row = append(row, format(v))
		}
		for j := 0; j < n; j++ {
			if i < len(result.Torques) {
				row = append(row, format(result.Torques[i][j]))
			} else {
				row = append(row, "")
			}
		}
		if i < len(result.TaskErrors) {
			row = append(row, format(result.TaskErrors[i]))
		} else {
			row = append(row, "")
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV parses what WriteCSV wrote.
func ReadCSV(in io.Reader) (*Samples, error) {
	r := csv.NewReader(in)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("samples: missing header")
	}
	cols := len(records[0])
	if cols < 2 || (cols-2)%3 != 0 {
		return nil, fmt.Errorf("samples: header has %d columns", cols)
	}
	n := (cols - 2) / 3

	s := &Samples{}
	for i, rec := range records[1:] {
		vals := make([]float64, cols)
		present := make([]bool, cols)
		for j, field := range rec {
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("samples: row %d column %s: %w", i+1, records[0][j], err)
			}
			vals[j], present[j] = v, true
		}
		s.Times = append(s.Times, vals[0])
		s.Q = append(s.Q, vals[1:1+n])
		s.U = append(s.U, vals[1+n:1+2*n])
		if n > 0 && present[1+2*n] {
			s.Tau = append(s.Tau, vals[1+2*n:1+3*n])
		}
		if present[cols-1] {
			s.TaskErrors = append(s.TaskErrors, vals[cols-1])
		}
	}
	return s, nil
}
