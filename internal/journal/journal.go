// Package journal is the append-only record of executed trades. The core
// only writes; reporting reads the sink out of band.
package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/yanun0323/errors"
)

// Entry is one executed trade.
type Entry struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	PlacedAt   time.Time `json:"placedAt"`
	Instrument string    `json:"instrument"`
	Direction  string    `json:"direction"`
	Stop       float64   `json:"stop"`
	Target     float64   `json:"target"`
	Confidence int       `json:"confidence"`
	Strategy   string    `json:"strategy"`
}

// TableName fixes the Postgres table for GORM.
func (Entry) TableName() string {
	return "trade_journal"
}

// Journal is the append-only sink.
type Journal interface {
	Append(ctx context.Context, e Entry) error
}

// CSVJournal appends entries to a local CSV file, one line per trade.
type CSVJournal struct {
	mu   sync.Mutex
	path string
}

// NewCSV creates a CSV journal at path.
func NewCSV(path string) *CSVJournal {
	return &CSVJournal{path: path}
}

// Append writes one CSV row.
func (j *CSVJournal) Append(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open journal file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := []string{
		e.PlacedAt.Format(time.RFC3339),
		e.Instrument,
		e.Direction,
		fmt.Sprintf("%.2f", e.Stop),
		fmt.Sprintf("%.2f", e.Target),
		fmt.Sprint(e.Confidence),
		e.Strategy,
	}
	if err := w.Write(record); err != nil {
		return errors.Wrap(err, "write journal record")
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush journal")
}
