// Package storage persists ledger state as a JSON file, one per node.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/luca-patrignani/blockvote/ledger"
)

const (
	// DefaultDataDir is where node state files live unless configured.
	DefaultDataDir = "data"
	// BackupFileSuffix is appended to a state file that could not be parsed.
	BackupFileSuffix = ".backup"
	// FilePermissions of written state files.
	FilePermissions = 0o644
)

var (
	// ErrNotFound is returned by Load when no state file exists yet.
	ErrNotFound = errors.New("state file not found")
	// ErrCorrupt is returned by Load when the state file is not valid JSON.
	ErrCorrupt = errors.New("state file corrupt")
)

// PathForPort returns the state file of the node listening on port.
func PathForPort(dataDir string, port int) string {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	return filepath.Join(dataDir, "chain_"+strconv.Itoa(port)+".json")
}

// FileStore implements ledger.Store on top of a single JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ ledger.Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state file. A file that cannot be parsed is copied aside
// with BackupFileSuffix before ErrCorrupt is returned.
func (s *FileStore) Load() (ledger.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ledger.State{}, ErrNotFound
	}
	if err != nil {
		return ledger.State{}, fmt.Errorf("read state file: %w", err)
	}
	var st ledger.State
	if err := json.Unmarshal(data, &st); err != nil {
		if backupErr := renameio.WriteFile(s.path+BackupFileSuffix, data, FilePermissions); backupErr != nil {
			return ledger.State{}, errors.Join(fmt.Errorf("%w: %v", ErrCorrupt, err), backupErr)
		}
		return ledger.State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return st, nil
}

// Save replaces the state file atomically, creating its directory first.
func (s *FileStore) Save(st ledger.State) error {
	if st.Chain == nil {
		st.Chain = []ledger.Block{}
	}
	if st.Mempool == nil {
		st.Mempool = []ledger.Transaction{}
	}
	if st.Nodes == nil {
		st.Nodes = []string{}
	}
	data, err := json.MarshalIndent(st, "", "    ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, FilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
