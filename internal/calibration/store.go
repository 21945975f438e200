package calibration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the well-known location of the calibration file.
const DefaultPath = "dimensoes_placa.json"

// Store reads and writes the calibration record.
type Store interface {
	// Read returns the most recently written record, ErrNotFound if none
	// exists, or an error wrapping ErrInvalid if the stored content is malformed.
	Read() (Record, error)
	// Write validates and persists rec, replacing any prior record.
	Write(rec Record) error
}

// FileStore keeps the record in a single file. Files ending in .yaml or .yml
// are YAML; anything else is indented JSON.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore at path, or at DefaultPath when path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{Path: path}
}

// Read implements Store.
func (s *FileStore) Read() (Record, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, s.Path)
		}
		return Record{}, fmt.Errorf("read calibration %s: %w", s.Path, err)
	}
	rec, err := decode(data, s.isYAML())
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", s.Path, err)
	}
	return rec, nil
}

// Write implements Store. The file is replaced atomically.
func (s *FileStore) Write(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := encode(rec, s.isYAML())
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create calibration dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".calibration-*")
	if err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	return nil
}

func (s *FileStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.Path))
	return ext == ".yaml" || ext == ".yml"
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Read implements Store.
func (m *MemoryStore) Read() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return Record{}, ErrNotFound
	}
	return *m.rec, nil
}

// Write implements Store.
func (m *MemoryStore) Write(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &rec
	return nil
}

// wireRecord accepts both the current keys and the legacy Portuguese keys
// (largura, altura, versao) written by the first capture scripts.
type wireRecord struct {
	Width     *int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height    *int    `json:"height,omitempty" yaml:"height,omitempty"`
	Timestamp *string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Version   *int    `json:"version,omitempty" yaml:"version,omitempty"`

	Largura *int `json:"largura,omitempty" yaml:"largura,omitempty"`
	Altura  *int `json:"altura,omitempty" yaml:"altura,omitempty"`
	Versao  *int `json:"versao,omitempty" yaml:"versao,omitempty"`
}

func decode(data []byte, asYAML bool) (Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Record{}, fmt.Errorf("%w: empty file", ErrInvalid)
	}
	var w wireRecord
	var err error
	if asYAML {
		err = yaml.Unmarshal(data, &w)
	} else {
		err = json.Unmarshal(data, &w)
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	width, ok := firstInt(w.Width, w.Largura)
	if !ok {
		return Record{}, fmt.Errorf("%w: missing width", ErrInvalid)
	}
	height, ok := firstInt(w.Height, w.Altura)
	if !ok {
		return Record{}, fmt.Errorf("%w: missing height", ErrInvalid)
	}
	version, ok := firstInt(w.Version, w.Versao)
	if !ok {
		return Record{}, fmt.Errorf("%w: missing version", ErrInvalid)
	}
	rec := Record{Width: width, Height: height, Version: version}
	if w.Timestamp != nil {
		rec.Timestamp = *w.Timestamp
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func encode(rec Record, asYAML bool) ([]byte, error) {
	if asYAML {
		data, err := yaml.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode calibration: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode calibration: %w", err)
	}
	return append(data, '\n'), nil
}

func firstInt(vals ...*int) (int, bool) {
	for _, v := range vals {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}
