package versioning

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// History file layout: a JSON header line followed by one JSON revision
// record per line. Records are only ever appended.

const (
	historyFormat    = "conceptforge-history"
	historyVersion   = 1
	historyExtension = ".history"
)

// ErrInvalidHistoryFile indicates a history file that is missing, truncated,
// or not in the expected format.
var ErrInvalidHistoryFile = errors.New("versioning: invalid history file")

type historyHeader struct {
	Format       string   `json:"format"`
	Version      int      `json:"version"`
	BaseRevision Revision `json:"base_revision"`
}

// HistoryFile is a handle on one project's on-disk change log.
type HistoryFile struct {
	path string
	base Revision
}

// NormalizeName derives a filesystem-safe history file name from a project
// name: NFKC-normalize, then collapse every whitespace run to a single
// underscore ("Proj A" becomes "Proj_A").
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(name)), "_")
}

// CreateNew creates a fresh history file named after name inside dir,
// anchored at base. It fails when the target already exists.
func CreateNew(dir, name string, base Revision) (*HistoryFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("versioning: create project directory: %w", err)
	}
	path := filepath.Join(dir, NormalizeName(name)+historyExtension)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("versioning: create history file: %w", err)
	}
	defer f.Close()

	header, err := json.Marshal(historyHeader{Format: historyFormat, Version: historyVersion, BaseRevision: base})
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(append(header, '\n')); err != nil {
		return nil, fmt.Errorf("versioning: write history header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("versioning: sync history file: %w", err)
	}
	return &HistoryFile{path: path, base: base}, nil
}

// OpenExisting opens a history file already on disk. It fails with
// ErrInvalidHistoryFile when the file is missing or its header does not
// parse.
func OpenExisting(path string) (*HistoryFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: file does not exist", ErrInvalidHistoryFile, path)
		}
		return nil, fmt.Errorf("versioning: open history file: %w", err)
	}
	defer f.Close()

	header, err := readHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidHistoryFile, path, err)
	}
	return &HistoryFile{path: path, base: header.BaseRevision}, nil
}

// Path returns the absolute location of the history file.
func (h *HistoryFile) Path() string {
	return h.path
}

// Dir returns the project directory containing the history file.
func (h *HistoryFile) Dir() string {
	return filepath.Dir(h.path)
}

// BaseRevision returns the revision the history is anchored at.
func (h *HistoryFile) BaseRevision() Revision {
	return h.base
}

// Head returns the highest revision recorded in the file, or the base
// revision when the log holds no records yet.
func (h *HistoryFile) Head() (Revision, error) {
	history, err := h.ReadAll()
	if err != nil {
		return 0, err
	}
	return history.Head(), nil
}

// ReadAll loads the full change history from disk.
func (h *HistoryFile) ReadAll() (*ChangeHistory, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidHistoryFile, h.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: %s: missing header", ErrInvalidHistoryFile, h.path)
	}
	var header historyHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil || header.Format != historyFormat {
		return nil, fmt.Errorf("%w: %s: bad header", ErrInvalidHistoryFile, h.path)
	}

	history := NewChangeHistory(header.BaseRevision)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record RevisionRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("%w: %s: bad revision record: %v", ErrInvalidHistoryFile, h.path, err)
		}
		history.Revisions = append(history.Revisions, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidHistoryFile, h.path, err)
	}
	return history, nil
}

// Append writes the given records to the end of the log in order.
func (h *HistoryFile) Append(records []RevisionRecord) error {
	f, err := os.OpenFile(h.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidHistoryFile, h.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("versioning: append revision: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("versioning: append revision: %w", err)
	}
	return f.Sync()
}

func readHeader(f *os.File) (historyHeader, error) {
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return historyHeader{}, errors.New("missing header")
	}
	var header historyHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return historyHeader{}, errors.New("header does not parse")
	}
	if header.Format != historyFormat || header.Version != historyVersion {
		return historyHeader{}, fmt.Errorf("unexpected format %q version %d", header.Format, header.Version)
	}
	return header, nil
}
