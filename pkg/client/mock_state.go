package client

import (
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory test implementation of StoreInterface
type MockStore struct {
	mu sync.RWMutex

	config  map[string]string
	icons   map[string]BuddyIconRecord
	picture *PictureRecord
	dir     string

	// Error injection
	getConfigErr error
	setConfigErr error
	saveIconErr  error
}

var _ StoreInterface = (*MockStore)(nil)

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		config: make(map[string]string),
		icons:  make(map[string]BuddyIconRecord),
		dir:    "/tmp/mock-ymsg",
	}
}

func (s *MockStore) GetConfig(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.getConfigErr != nil {
		return "", s.getConfigErr
	}
	return s.config[key], nil
}

func (s *MockStore) SetConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setConfigErr != nil {
		return s.setConfigErr
	}
	s.config[key] = value
	return nil
}

func (s *MockStore) GetLastUsername() string {
	v, _ := s.GetConfig("last_username")
	return v
}

func (s *MockStore) SetLastUsername(name string) error {
	return s.SetConfig("last_username", name)
}

func (s *MockStore) GetPicture() (PictureRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.picture == nil {
		return PictureRecord{}, false
	}
	return *s.picture, true
}

func (s *MockStore) SetPicture(rec PictureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picture = &rec
	return nil
}

func (s *MockStore) GetBuddyIcon(handle string) (BuddyIconRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.icons[Normalize(handle)]
	return rec, ok, nil
}

func (s *MockStore) SaveBuddyIcon(rec BuddyIconRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveIconErr != nil {
		return s.saveIconErr
	}
	rec.Handle = Normalize(rec.Handle)
	if rec.Updated.IsZero() {
		rec.Updated = time.Now()
	}
	s.icons[rec.Handle] = rec
	return nil
}

func (s *MockStore) ForgetBuddyIcon(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.icons, Normalize(handle))
	return nil
}

func (s *MockStore) BuddyIcons() ([]BuddyIconRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BuddyIconRecord, 0, len(s.icons))
	for _, rec := range s.icons {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (s *MockStore) PruneBuddyIcons(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, rec := range s.icons {
		if rec.Updated.Before(before) {
			delete(s.icons, k)
			n++
		}
	}
	return n, nil
}

func (s *MockStore) GetStateDir() string { return s.dir }
func (s *MockStore) Close() error        { return nil }

// Test helpers

// SetGetConfigError makes GetConfig fail with err
func (s *MockStore) SetGetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getConfigErr = err
}

// SetSetConfigError makes SetConfig fail with err
func (s *MockStore) SetSetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConfigErr = err
}

// SetSaveIconError makes SaveBuddyIcon fail with err
func (s *MockStore) SetSaveIconError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveIconErr = err
}
