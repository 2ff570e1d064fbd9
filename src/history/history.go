package history

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

const (
	// DefaultMaxRecords caps the ring until the configured limit is
	// applied.
	DefaultMaxRecords = 100

	thumbnailSize = 120
	jpegQuality   = 70

	idLayout        = "20060102_150405"
	timestampLayout = "2006-01-02 15:04:05"
)

// Record is one recognition result. IDs are microsecond timestamps, so
// records sort by age and stay stable across restarts.
type Record struct {
	ID             string  `json:"id"`
	Timestamp      string  `json:"timestamp"`
	Text           string  `json:"text"`
	ImageThumbnail string  `json:"image_thumbnail,omitempty"`
	ElapsedTime    float64 `json:"elapsed_time"`
}

// Manager keeps recognition results newest first, trimmed to a cap,
// persisted to history.json after every mutation.
type Manager struct {
	mu      sync.Mutex
	path    string
	max     int
	records []Record

	now func() time.Time
}

// NewManager loads history.json from dir, starting empty when the file
// is missing or unreadable.
func NewManager(dir string) *Manager {
	m := &Manager{
		path: filepath.Join(dir, "history.json"),
		max:  DefaultMaxRecords,
		now:  time.Now,
	}
	m.load()
	return m
}

func (m *Manager) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Failed to load history: %v", err)
		}
		return
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Printf("Failed to parse history: %v (starting empty)", err)
		return
	}
	m.records = records
}

// saveLocked persists the ring. Callers hold m.mu. Write failures only
// log; history keeps working in memory.
func (m *Manager) saveLocked() {
	data, err := json.MarshalIndent(m.records, "", "  ")
	if err != nil {
		log.Printf("Failed to marshal history: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		log.Printf("Failed to create history dir: %v", err)
		return
	}
	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		log.Printf("Failed to write history: %v", err)
		return
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		log.Printf("Failed to replace history file: %v", err)
	}
}

// SetMaxRecords applies the configured cap, trimming oldest records when
// the ring already exceeds it.
func (m *Manager) SetMaxRecords(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.max = n
	if len(m.records) > n {
		m.records = m.records[:n]
		m.saveLocked()
	}
}

// Add stores a new record at the front and evicts the oldest past the
// cap. A nil image stores no thumbnail.
func (m *Manager) Add(text string, img image.Image, elapsedSeconds float64) Record {
	var thumb string
	if img != nil {
		thumb = thumbnailBase64(img)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec := Record{
		ID:             recordID(now),
		Timestamp:      now.Format(timestampLayout),
		Text:           text,
		ImageThumbnail: thumb,
		ElapsedTime:    elapsedSeconds,
	}

	m.records = append([]Record{rec}, m.records...)
	if len(m.records) > m.max {
		m.records = m.records[:m.max]
	}
	m.saveLocked()
	return rec
}

// recordID formats t the way existing history files expect:
// date_time_microseconds.
func recordID(t time.Time) string {
	return t.Format(idLayout) + fmt.Sprintf("_%06d", t.Nanosecond()/1000)
}

// Records returns up to limit records starting at offset, newest first.
// limit <= 0 returns everything past the offset.
func (m *Manager) Records(limit, offset int) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(m.records) {
		return nil
	}
	rest := m.records[offset:]
	if limit <= 0 || limit > len(rest) {
		limit = len(rest)
	}
	out := make([]Record, limit)
	copy(out, rest[:limit])
	return out
}

// ByID returns the record with the given id.
func (m *Manager) ByID(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Delete removes the record with the given id and reports whether it
// existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			m.saveLocked()
			return true
		}
	}
	return false
}

// Clear removes every record.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
	m.saveLocked()
}

// Count returns the number of stored records.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Search returns records whose text contains query, case-insensitively,
// newest first, up to limit (<= 0 for no cap).
func (m *Manager) Search(query string, limit int) []Record {
	q := strings.ToLower(query)

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.records {
		if !strings.Contains(strings.ToLower(r.Text), q) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// thumbnailBase64 shrinks img to fit the thumbnail box, preserving
// aspect ratio, and encodes it as base64 JPEG. Failures log and store no
// thumbnail.
func thumbnailBase64(img image.Image) string {
	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		log.Printf("Failed to encode history thumbnail: %v", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
