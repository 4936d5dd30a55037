package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type EpisodeRecord struct {
	ID   int
	Seed uint64
	EpisodeMetric
}

type StepRecord struct {
	Episode int // EpisodeRecord.ID
	State   string
	Action  string
	StepMetric
}

// SummaryRecord is one named statistic of an experiment.
type SummaryRecord struct {
	Name  string
	Value float64
}

type Writer struct {
	RunID   string
	baseDir string
}

// NewWriter creates a fresh run directory below root/name.
func NewWriter(root, name string) (*Writer, error) {
	runID := uuid.NewString()
	dir := time.Now().UTC().Format("20060102T150405Z") + "-" + runID[:8]
	baseDir := filepath.Join(root, name, dir)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		RunID:   runID,
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteEpisodeRecords(records []EpisodeRecord) error {
	header := []string{"run", "id", "seed", "start_time", "end_time", "duration", "steps", "total_cost"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			w.RunID,
			strconv.Itoa(record.ID),
			strconv.FormatUint(record.Seed, 10),
			record.StartTime.Format(time.RFC3339Nano),
			record.EndTime.Format(time.RFC3339Nano),
			record.Duration.String(),
			strconv.Itoa(record.Steps),
			formatFloat(record.TotalCost),
		})
	}
	return w.write("episode_records.csv", header, rows)
}

func (w *Writer) WriteStepRecords(records []StepRecord) error {
	header := []string{"run", "episode", "step", "state", "action", "cost", "duration", "iterations", "nodes", "is_tree_reused", "is_fallback"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			w.RunID,
			strconv.Itoa(record.Episode),
			strconv.Itoa(record.Step),
			record.State,
			record.Action,
			formatFloat(record.Cost),
			record.Duration.String(),
			strconv.Itoa(record.Iterations),
			strconv.Itoa(record.Nodes),
			strconv.FormatBool(record.IsTreeReused),
			strconv.FormatBool(record.IsFallback),
		})
	}
	return w.write("step_records.csv", header, rows)
}

func (w *Writer) WriteSummary(records []SummaryRecord) error {
	header := []string{"run", "name", "value"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{w.RunID, record.Name, formatFloat(record.Value)})
	}
	return w.write("summary.csv", header, rows)
}

func (w *Writer) write(name string, header []string, rows [][]string) error {
	path := filepath.Join(w.baseDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	err = writer.WriteAll(rows)
	if err != nil {
		return fmt.Errorf("failed to write %s rows: %w", name, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
