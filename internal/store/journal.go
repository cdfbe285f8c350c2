package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

// Persistence defines the interface for event storage.
type Persistence interface {
	// Load reads all records from storage.
	Load() ([]model.EventRecord, error)

	// Append adds a record to storage.
	Append(r model.EventRecord) error

	// Rewrite replaces the entire storage file.
	Rewrite(rs []model.EventRecord) error

	// Clear removes all stored records.
	Clear() error

	// Close releases file handles and resources.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	SchemaVersion int   `json:"hostbridge_journal_version"`
	CreatedAt     int64 `json:"created_at"`
}

// ErrJournalClosed is returned when operations are attempted on a closed journal.
var ErrJournalClosed = errors.New("journal is closed")

// Journal implements Persistence using a JSONL file.
type Journal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	j := &Journal{path: path, file: file}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if err := j.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return j, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) writeHeader() error {
	data, err := json.Marshal(schemaHeader{
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	_, err = j.file.Write(append(data, '\n'))
	return err
}

// Load reads all records from the journal.
func (j *Journal) Load() ([]model.EventRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed || j.file == nil {
		return nil, ErrJournalClosed
	}

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", j.path, err)
	}

	records, err := readRecords(j.file)
	if err != nil {
		return records, err
	}

	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return records, err
	}
	return records, nil
}

// ReadJournal reads the records of a journal file without opening it for writing.
func ReadJournal(path string) ([]model.EventRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRecords(f)
}

func readRecords(r io.Reader) ([]model.EventRecord, error) {
	var records []model.EventRecord
	scanner := bufio.NewScanner(r)

	const maxLineSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.SchemaVersion > 0 {
				if header.SchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.SchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		// Skip malformed lines.
		var rec model.EventRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.ID != "" {
			records = append(records, rec)
		}
	}

	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("error reading journal: %w", err)
	}
	return records, nil
}

// Append adds a record to the journal.
func (j *Journal) Append(r model.EventRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed || j.file == nil {
		return ErrJournalClosed
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return j.file.Sync()
}

// Rewrite replaces the journal contents with rs.
func (j *Journal) Rewrite(rs []model.EventRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}

	backupPath, err := j.truncateLocked()
	if err != nil {
		return err
	}

	for _, r := range rs {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := j.file.Write(append(data, '\n')); err != nil {
			return err
		}
	}

	if err := j.file.Sync(); err != nil {
		return err
	}
	os.Remove(backupPath)
	return nil
}

// Clear removes all records, keeping the header.
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}

	backupPath, err := j.truncateLocked()
	if err != nil {
		return err
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	os.Remove(backupPath)
	return nil
}

// truncateLocked moves the current file aside and starts a new one with a
// header. It returns the backup path. Caller must hold j.mu.
func (j *Journal) truncateLocked() (string, error) {
	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return "", err
		}
		j.file = nil
	}

	backupPath := j.path + ".bak"
	if err := os.Rename(j.path, backupPath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(j.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0o600)
	if err != nil {
		os.Rename(backupPath, j.path)
		return "", fmt.Errorf("failed to create new file: %w", err)
	}
	j.file = file

	if err := j.writeHeader(); err != nil {
		return "", err
	}
	return backupPath, nil
}

// Close releases file handles and resources.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		return err
	}
	return nil
}
