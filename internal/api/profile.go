package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patternhq/pattern-engine/internal/storage"
)

const (
	profilePath     = "/app/profile"
	profileSyncPath = "/api/app/profile/sync"
)

// wireProfile is the backend's profile representation. Unlike reports, the
// profile endpoints already speak camelCase. The backend does not track
// updatedAt, so createdAt stands in for it on download.
type wireProfile struct {
	ID        string `json:"id,omitempty"`
	BirthDate string `json:"birthDate"`
	BirthTime string `json:"birthTime,omitempty"`
	Gender    string `json:"gender"`
	City      string `json:"city,omitempty"`
	Label     string `json:"label,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (w wireProfile) toProfile() storage.Profile {
	createdAt, err := time.Parse(time.RFC3339, w.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	return storage.Profile{
		ID:        w.ID,
		BirthDate: w.BirthDate,
		BirthTime: w.BirthTime,
		Gender:    w.Gender,
		City:      w.City,
		Label:     w.Label,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func toWireProfile(p storage.Profile) wireProfile {
	return wireProfile{
		ID:        p.ID,
		BirthDate: p.BirthDate,
		BirthTime: p.BirthTime,
		Gender:    p.Gender,
		City:      p.City,
		Label:     p.Label,
	}
}

// ListProfiles fetches all remote profiles.
func (c *Client) ListProfiles(ctx context.Context) ([]storage.Profile, error) {
	var result struct {
		Profiles []wireProfile `json:"profiles"`
	}
	if err := c.doJSON(ctx, http.MethodGet, profilePath, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}
	profiles := make([]storage.Profile, len(result.Profiles))
	for i, w := range result.Profiles {
		profiles[i] = w.toProfile()
	}
	return profiles, nil
}

// CreateProfile creates (or, when the payload carries a locally generated id,
// upserts) a profile on the backend and returns the stored record.
func (c *Client) CreateProfile(ctx context.Context, profile storage.Profile) (*storage.Profile, error) {
	var result struct {
		Success bool        `json:"success"`
		Profile wireProfile `json:"profile"`
	}
	if err := c.doJSON(ctx, http.MethodPost, profilePath, toWireProfile(profile), &result); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	stored := result.Profile.toProfile()
	return &stored, nil
}

// UpdateProfile updates an existing remote profile.
func (c *Client) UpdateProfile(ctx context.Context, profile storage.Profile) error {
	if err := c.doJSON(ctx, http.MethodPut, profilePath+"/"+profile.ID, toWireProfile(profile), nil); err != nil {
		return fmt.Errorf("failed to update profile %s: %w", profile.ID, err)
	}
	return nil
}

// DeleteProfile deletes a remote profile.
func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, profilePath+"/"+id, nil, nil); err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", id, err)
	}
	return nil
}

// SyncProfiles bulk-uploads previously-anonymous local profiles after the
// user authenticates. Requires a bearer token.
func (c *Client) SyncProfiles(ctx context.Context, profiles []storage.Profile) (int, error) {
	wires := make([]wireProfile, len(profiles))
	for i, p := range profiles {
		wires[i] = toWireProfile(p)
	}

	body := map[string]any{"profiles": wires}
	var result struct {
		Synced int `json:"synced"`
	}
	if err := c.doJSON(ctx, http.MethodPost, profileSyncPath, body, &result); err != nil {
		return 0, fmt.Errorf("failed to sync profiles: %w", err)
	}
	return result.Synced, nil
}
