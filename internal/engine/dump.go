package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"mm_stats/internal/domain"
)

// DumpTimeline writes the snapshot sequence as indented JSON for offline inspection.
func DumpTimeline(filename string, tracked domain.Account, snapshots []domain.Snapshot) error {
	slog.Info("Dumping snapshot timeline...", slog.String("file", filename), slog.Int("snapshots", len(snapshots)))

	data := struct {
		Tracked   domain.Account    `json:"tracked"`
		Snapshots []domain.Snapshot `json:"snapshots"`
	}{
		Tracked:   tracked,
		Snapshots: snapshots,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		return fmt.Errorf("failed to write timeline: %w", err)
	}
	return nil
}
