// Package sync reconciles the local report cache and profile store against
// the backend. It is local-first and best-effort: failures are swallowed and
// logged, never shown to the user, with one exception — a 401 propagates so
// session invalidation can run. There are no automatic retries; the next
// login attempt retries implicitly.
package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/patternhq/pattern-engine/internal/api"
	"github.com/patternhq/pattern-engine/internal/storage"
)

// ReportSyncer performs the bidirectional report merge: download remote
// records missing locally, bulk-upload local records missing remotely.
type ReportSyncer struct {
	client *api.Client
	store  storage.ReportStore
	logger *log.Logger
}

// NewReportSyncer creates a report syncer.
func NewReportSyncer(client *api.Client, store storage.ReportStore) *ReportSyncer {
	return &ReportSyncer{
		client: client,
		store:  store,
		logger: log.WithPrefix("sync/reports"),
	}
}

// Run executes one reconciliation pass. The returned error is non-nil only
// for an authorization failure; everything else is swallowed.
func (s *ReportSyncer) Run(ctx context.Context) error {
	// Snapshot local IDs before any download so freshly-downloaded records
	// are not mistaken for local creations needing upload.
	localIDs, err := s.store.IDs(ctx)
	if err != nil {
		s.logger.Error("failed to read local report ids", "error", err)
		return nil
	}
	localSet := toSet(localIDs)

	remoteIDs, err := s.client.ListReportIDs(ctx)
	if err != nil {
		return swallow(s.logger, "failed to fetch remote report ids", err)
	}
	remoteSet := toSet(remoteIDs)

	// Download remote records missing locally.
	for _, id := range remoteIDs {
		if localSet[id] {
			continue
		}
		report, err := s.client.GetReport(ctx, id)
		if err != nil {
			if unauthorized(err) {
				return err
			}
			s.logger.Warn("failed to download report", "id", id, "error", err)
			continue
		}
		if err := s.store.Put(ctx, report); err != nil {
			s.logger.Warn("failed to store downloaded report", "id", id, "error", err)
		}
	}

	// Upload local records missing remotely, in one batch.
	var toUpload []storage.Report
	for _, id := range localIDs {
		if remoteSet[id] {
			continue
		}
		report, err := s.store.Get(ctx, id)
		if err != nil || report == nil {
			continue
		}
		toUpload = append(toUpload, *report)
	}
	if len(toUpload) == 0 {
		return nil
	}

	synced, err := s.client.UploadReports(ctx, toUpload)
	if err != nil {
		return swallow(s.logger, "failed to upload reports", err)
	}
	s.logger.Info("uploaded local reports", "count", synced)

	// Uploaded records are on the backend now; lift the retention window.
	for _, report := range toUpload {
		if !report.IsPending() {
			continue
		}
		report.PendingSince = time.Time{}
		if err := s.store.Put(ctx, &report); err != nil {
			s.logger.Warn("failed to clear pending marker", "id", report.ID, "error", err)
		}
	}
	return nil
}

// ProfileSyncer performs the bidirectional profile merge. Unlike reports,
// the remote list endpoint returns full records, and uploads go one at a
// time so a single bad record cannot sink the batch.
type ProfileSyncer struct {
	client *api.Client
	store  storage.ProfileStore
	logger *log.Logger
}

// NewProfileSyncer creates a profile syncer.
func NewProfileSyncer(client *api.Client, store storage.ProfileStore) *ProfileSyncer {
	return &ProfileSyncer{
		client: client,
		store:  store,
		logger: log.WithPrefix("sync/profiles"),
	}
}

// Run executes one reconciliation pass, with the same error policy as
// ReportSyncer.Run. Profiles created while anonymous are bulk-flushed first,
// so the remote listing already includes them when the merge runs.
func (s *ProfileSyncer) Run(ctx context.Context) error {
	if err := s.flushPending(ctx); err != nil {
		return err
	}

	localIDs, err := s.store.IDs(ctx)
	if err != nil {
		s.logger.Error("failed to read local profile ids", "error", err)
		return nil
	}
	localSet := toSet(localIDs)

	remoteProfiles, err := s.client.ListProfiles(ctx)
	if err != nil {
		return swallow(s.logger, "failed to fetch remote profiles", err)
	}

	remoteSet := make(map[string]bool, len(remoteProfiles))
	for _, remote := range remoteProfiles {
		remoteSet[remote.ID] = true
		if localSet[remote.ID] {
			continue
		}
		remote := remote
		if err := s.store.Put(ctx, &remote); err != nil {
			s.logger.Warn("failed to store downloaded profile", "id", remote.ID, "error", err)
		}
	}

	for _, id := range localIDs {
		if remoteSet[id] {
			continue
		}
		profile, err := s.store.Get(ctx, id)
		if err != nil || profile == nil {
			continue
		}
		// The local ID travels with the upload so the backend upserts
		// rather than minting a new identity.
		if _, err := s.client.CreateProfile(ctx, *profile); err != nil {
			if unauthorized(err) {
				return err
			}
			s.logger.Warn("failed to upload profile", "id", id, "error", err)
			continue
		}
		if profile.IsPending() {
			profile.PendingSince = time.Time{}
			if err := s.store.Put(ctx, profile); err != nil {
				s.logger.Warn("failed to clear pending marker", "id", id, "error", err)
			}
		}
	}
	return nil
}

// flushPending bulk-uploads profiles carrying a pending marker and clears
// the markers on success.
func (s *ProfileSyncer) flushPending(ctx context.Context) error {
	all, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list local profiles", "error", err)
		return nil
	}

	var pending []storage.Profile
	for _, p := range all {
		if p.IsPending() {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	synced, err := s.client.SyncProfiles(ctx, pending)
	if err != nil {
		return swallow(s.logger, "failed to flush pending profiles", err)
	}
	s.logger.Info("flushed pending profiles", "count", synced)

	for _, p := range pending {
		p.PendingSince = time.Time{}
		if err := s.store.Put(ctx, &p); err != nil {
			s.logger.Warn("failed to clear pending marker", "id", p.ID, "error", err)
		}
	}
	return nil
}

// Manager triggers both syncers exactly once per authentication transition
// into "logged in", keyed by user identity.
type Manager struct {
	reports  *ReportSyncer
	profiles *ProfileSyncer

	mu         stdsync.Mutex
	lastUserID string
}

// NewManager creates a sync manager.
func NewManager(reports *ReportSyncer, profiles *ProfileSyncer) *Manager {
	return &Manager{reports: reports, profiles: profiles}
}

// OnAuthChange runs reconciliation when userID represents a new login. An
// empty userID (logout) resets the gate without syncing. Re-invocations with
// the same userID are no-ops. The returned error is non-nil only for an
// authorization failure.
func (m *Manager) OnAuthChange(ctx context.Context, userID string) error {
	m.mu.Lock()
	if userID == "" || userID == m.lastUserID {
		m.lastUserID = userID
		m.mu.Unlock()
		return nil
	}
	m.lastUserID = userID
	m.mu.Unlock()

	if err := m.reports.Run(ctx); err != nil {
		return err
	}
	return m.profiles.Run(ctx)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func unauthorized(err error) bool {
	return errors.Is(err, api.ErrUnauthorized)
}

// swallow logs an error and eats it, unless it is the 401 that must reach
// the session-invalidation handler.
func swallow(logger *log.Logger, msg string, err error) error {
	if unauthorized(err) {
		return err
	}
	logger.Error(msg, "error", err)
	return nil
}
