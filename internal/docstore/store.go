// Package docstore persists per-user-per-day analysis documents as JSON
// files under an injected base directory. Writes are read-merge-overwrite:
// the existing day document's analyses array is concatenated with the new
// entries and the file is rewritten in full.
//
// There is no lock or version check around the read-modify-write; two
// concurrent writers to the same (user, day) key race. Callers serialize
// rebuilds per user-day (the orchestrator holds one in-flight rebuild per
// bucket day).
package docstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/timeutil"
	"github.com/yungbote/habitlens-backend/internal/types"
)

const (
	summaryDirName = "Summary"
	archiveDirName = "Move"
)

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store reads and writes day documents under base.
type Store struct {
	base string
	log  *logger.Logger
	now  func() time.Time
}

func New(baseDir string, baseLog *logger.Logger) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("docstore: base directory required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("docstore: create base dir: %w", err)
	}
	return &Store{
		base: baseDir,
		log:  baseLog.With("service", "DocumentStore"),
		now:  time.Now,
	}, nil
}

// WriteResult describes one committed write.
type WriteResult struct {
	Path     string
	Size     int64
	Checksum string
	Created  bool
}

func sanitizeUser(user string) string {
	clean := unsafePathChars.ReplaceAllString(user, "_")
	if clean == "" {
		clean = "_"
	}
	return clean
}

func (s *Store) userDir(user string) string {
	return filepath.Join(s.base, sanitizeUser(user))
}

func (s *Store) dayPath(user string, day time.Time) string {
	return filepath.Join(s.userDir(user), timeutil.DayFileName(day)+".json")
}

// WriteMerge appends entries to the (user, day) document, creating it when
// absent, and overwrites the file. A read failure on an existing file is
// treated the same as a missing file and falls back to create-new; that can
// mask a genuine I/O error, which is accepted here.
func (s *Store) WriteMerge(user string, day time.Time, entries []types.DailyTimeline) (*WriteResult, error) {
	existing, found, err := s.ReadDay(user, day)
	if err != nil {
		s.log.Warn("Unreadable day document, replacing", "user_id", user, "day", timeutil.DayFileName(day), "error", err)
		found = false
	}

	doc := &types.DayDocument{
		UserID: user,
		Date:   timeutil.DayFileName(day),
	}
	if found {
		doc.Analyses = existing.Analyses
	}
	doc.Analyses = append(doc.Analyses, entries...)

	path := s.dayPath(user, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("docstore: create user dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("docstore: marshal day document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("docstore: write day document: %w", err)
	}

	sum := sha256.Sum256(data)
	return &WriteResult{
		Path:     path,
		Size:     int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
		Created:  !found,
	}, nil
}

// WriteMergeToday merges into the current wall-clock day.
func (s *Store) WriteMergeToday(user string, entries []types.DailyTimeline) (*WriteResult, error) {
	return s.WriteMerge(user, timeutil.StartOfDay(s.now()), entries)
}

// WriteMergePreviousDay merges into the calendar day before ref. Used by the
// nightly noon-to-noon run, whose results belong to the day that just closed.
func (s *Store) WriteMergePreviousDay(user string, ref time.Time, entries []types.DailyTimeline) (*WriteResult, error) {
	return s.WriteMerge(user, timeutil.PreviousDay(ref), entries)
}

// ReadDay loads one day document. found=false with a nil error means the
// file does not exist.
func (s *Store) ReadDay(user string, day time.Time) (*types.DayDocument, bool, error) {
	data, err := os.ReadFile(s.dayPath(user, day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("docstore: read day document: %w", err)
	}
	var doc types.DayDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("docstore: decode day document: %w", err)
	}
	return &doc, true, nil
}

// Delete removes one day document. A missing file is not an error.
func (s *Store) Delete(user string, day time.Time) error {
	err := os.Remove(s.dayPath(user, day))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("docstore: delete day document: %w", err)
	}
	return nil
}

// DayFile is one entry of a range listing.
type DayFile struct {
	Date string
	Day  time.Time
	Path string
	Doc  *types.DayDocument
}

// ListRange iterates day by day from from to to inclusive and returns the
// documents that exist, in ascending date order. Missing days are skipped
// silently; a day that exists but cannot be decoded is skipped with a
// warning. Holes never produce an error.
func (s *Store) ListRange(user string, from, to time.Time, includeData bool) ([]DayFile, error) {
	start := timeutil.StartOfDay(from)
	end := timeutil.StartOfDay(to)

	var out []DayFile
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		path := s.dayPath(user, day)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		f := DayFile{
			Date: timeutil.DayFileName(day),
			Day:  day,
			Path: path,
		}
		if includeData {
			doc, found, err := s.ReadDay(user, day)
			if err != nil {
				s.log.Warn("Skipping unreadable day document in range", "user_id", user, "day", f.Date, "error", err)
				continue
			}
			if !found {
				continue
			}
			f.Doc = doc
		}
		out = append(out, f)
	}
	return out, nil
}
