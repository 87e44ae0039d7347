package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

func errProfileNotFound(id string) error {
	return fmt.Errorf("profile not found: %s", id)
}

// MemoryReportStore is an in-memory ReportStore. It backs ephemeral runs
// (--no-persist) and tests; semantics match the SQLite implementation,
// including lazy purging of expired pending records.
type MemoryReportStore struct {
	mu      sync.Mutex
	reports map[string]Report
	// Now is the clock used for retention checks; tests may replace it.
	Now func() time.Time
}

// NewMemoryReportStore creates an empty in-memory report cache.
func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{
		reports: make(map[string]Report),
		Now:     time.Now,
	}
}

func (s *MemoryReportStore) purgeExpiredLocked() {
	cutoff := s.Now().Add(-PendingRetention)
	for id, r := range s.reports {
		if r.IsPending() && r.PendingSince.Before(cutoff) {
			delete(s.reports, id)
		}
	}
}

func (s *MemoryReportStore) Get(_ context.Context, id string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked()
	if r, ok := s.reports[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *MemoryReportStore) Put(_ context.Context, report *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = *report
	return nil
}

func (s *MemoryReportStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, id)
	return nil
}

func (s *MemoryReportStore) List(_ context.Context) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked()
	reports := make([]Report, 0, len(s.reports))
	for _, r := range s.reports {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

func (s *MemoryReportStore) IDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked()
	ids := make([]string, 0, len(s.reports))
	for id := range s.reports {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryReportStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = make(map[string]Report)
	return nil
}

func (s *MemoryReportStore) Close() error { return nil }

// MemoryProfileStore is an in-memory ProfileStore with the same default
// promotion rule as the SQLite implementation.
type MemoryProfileStore struct {
	mu        sync.Mutex
	profiles  map[string]Profile
	defaultID string
	Now       func() time.Time
}

// NewMemoryProfileStore creates an empty in-memory profile store.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[string]Profile),
		Now:      time.Now,
	}
}

func (s *MemoryProfileStore) purgeExpiredLocked() {
	cutoff := s.Now().Add(-PendingRetention)
	for id, p := range s.profiles {
		if p.IsPending() && p.PendingSince.Before(cutoff) {
			delete(s.profiles, id)
		}
	}
}

func (s *MemoryProfileStore) Get(_ context.Context, id string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked()
	if p, ok := s.profiles[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *MemoryProfileStore) Put(_ context.Context, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = *profile
	return nil
}

func (s *MemoryProfileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)

	if s.defaultID != id {
		return nil
	}

	// Promote the most recently created remaining profile, ties broken by id.
	s.defaultID = ""
	var newest Profile
	for _, p := range s.profiles {
		if s.defaultID == "" || p.CreatedAt.After(newest.CreatedAt) ||
			(p.CreatedAt.Equal(newest.CreatedAt) && p.ID < newest.ID) {
			newest = p
			s.defaultID = p.ID
		}
	}
	return nil
}

func (s *MemoryProfileStore) List(_ context.Context) ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked()
	profiles := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt.After(profiles[j].CreatedAt)
	})
	return profiles, nil
}

func (s *MemoryProfileStore) IDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryProfileStore) DefaultID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultID, nil
}

func (s *MemoryProfileStore) SetDefault(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return errProfileNotFound(id)
	}
	s.defaultID = id
	return nil
}

func (s *MemoryProfileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = make(map[string]Profile)
	s.defaultID = ""
	return nil
}

func (s *MemoryProfileStore) Close() error { return nil }
