package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yungbote/habitlens-backend/internal/timeutil"
	"github.com/yungbote/habitlens-backend/internal/types"
)

func (s *Store) summaryDir(user string) string {
	return filepath.Join(s.userDir(user), summaryDirName)
}

func (s *Store) archiveDir(user string) string {
	return filepath.Join(s.userDir(user), archiveDirName)
}

// rangeSuffix is the shared tail of summary file names covering [from, to]:
// "_<fromYYYYMMDD>-<toYYYYMMDD>.json".
func rangeSuffix(from, to time.Time) string {
	return fmt.Sprintf("_%s-%s.json",
		from.In(timeutil.Zone).Format(timeutil.CompactDayLayout),
		to.In(timeutil.Zone).Format(timeutil.CompactDayLayout))
}

// ArchiveSummaries moves every existing summary file for the same date range
// into the archive folder. Superseded summaries are never deleted. Returns
// the archived paths.
func (s *Store) ArchiveSummaries(user string, from, to time.Time) ([]string, error) {
	dir := s.summaryDir(user)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("docstore: read summary dir: %w", err)
	}

	suffix := rangeSuffix(from, to)
	var moved []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if err := os.MkdirAll(s.archiveDir(user), 0o755); err != nil {
			return moved, fmt.Errorf("docstore: create archive dir: %w", err)
		}
		dst := filepath.Join(s.archiveDir(user), e.Name())
		if err := os.Rename(filepath.Join(dir, e.Name()), dst); err != nil {
			return moved, fmt.Errorf("docstore: archive summary %s: %w", e.Name(), err)
		}
		s.log.Info("Archived superseded summary", "user_id", user, "file", e.Name())
		moved = append(moved, dst)
	}
	return moved, nil
}

// WriteSummary writes a fresh multi-day roll-up named
// "<generatedDate>_<fromYYYYMMDD>-<toYYYYMMDD>.json" in the summary folder.
func (s *Store) WriteSummary(user string, from, to time.Time, summary *types.RangeSummary) (string, error) {
	if err := os.MkdirAll(s.summaryDir(user), 0o755); err != nil {
		return "", fmt.Errorf("docstore: create summary dir: %w", err)
	}
	name := timeutil.DayFileName(s.now()) + rangeSuffix(from, to)
	path := filepath.Join(s.summaryDir(user), name)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("docstore: marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("docstore: write summary: %w", err)
	}
	return path, nil
}
