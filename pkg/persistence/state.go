package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// StateFileName is the file name used inside the state directory.
const StateFileName = "state.json"

// AddressState is the persisted address cache.
type AddressState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// LastAddress is the device address used by the last invocation.
	LastAddress string `json:"last_address,omitempty"`

	// Source records how LastAddress was obtained ("explicit", "ad-hoc",
	// "discovered").
	Source string `json:"source,omitempty"`
}

// AddressStore manages persistence of the address cache to a JSON file.
type AddressStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewAddressStore creates a store backed by path.
func NewAddressStore(path string) *AddressStore {
	return &AddressStore{path: path, now: time.Now}
}

// NewAddressStoreInDir creates a store for StateFileName in dir.
func NewAddressStoreInDir(dir string) *AddressStore {
	return NewAddressStore(filepath.Join(dir, StateFileName))
}

// Path returns the backing file path.
func (s *AddressStore) Path() string {
	return s.path
}

// Save persists the state to disk.
func (s *AddressStore) Save(state *AddressState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

func (s *AddressStore) save(state *AddressState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = s.now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *AddressStore) Load() (*AddressState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *AddressStore) load() (*AddressState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &AddressState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

// LastAddress returns the cached address, or "" if none is stored.
func (s *AddressStore) LastAddress() (string, error) {
	state, err := s.Load()
	if err != nil || state == nil {
		return "", err
	}
	return state.LastAddress, nil
}

// Remember stores addr as the last-used address.
// Saving the address that is already cached does not rewrite the file.
func (s *AddressStore) Remember(addr, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		state = nil
	}
	if state != nil && state.LastAddress == addr && state.Source == source {
		return nil
	}

	return s.save(&AddressState{
		SavedAt:     s.now(),
		LastAddress: addr,
		Source:      source,
	})
}

// Clear removes the state file.
func (s *AddressStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
