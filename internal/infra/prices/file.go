package prices

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"mm_stats/internal/domain"
)

// FileSource reads a price history file with one JSON object per line:
//
//	{"timestamp": 1510000000, "price": 301.25}
type FileSource struct {
	path string
}

// NewFileSource creates a source over a JSON-lines price history file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type fileRecord struct {
	Timestamp int64         `json:"timestamp"`
	Price     domain.Amount `json:"price"`
}

// FetchPrices returns the file's points within [start, end], oldest first.
// Blank lines are skipped; any other malformed line is an error.
func (s *FileSource) FetchPrices(ctx context.Context, start, end time.Time) ([]domain.PricePoint, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	lo, hi := domain.TimestampOf(start), domain.TimestampOf(end)
	var points []domain.PricePoint

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec fileRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", s.path, line, err)
		}
		ts := domain.Timestamp(rec.Timestamp)
		if ts < lo || ts > hi {
			continue
		}
		points = append(points, domain.PricePoint{Timestamp: ts, Price: rec.Price})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read price file: %w", err)
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points, nil
}
