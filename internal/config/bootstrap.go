package config

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/patternhq/pattern-engine/internal/api"
)

// Bootstrap is the remote app-startup configuration. The backend may deliver
// each group either nested ({"ads": {"enabled": true}}) or flattened
// ("ads.enabled": "true"); ParseBootstrap accepts both.
type Bootstrap struct {
	Version      VersionConfig      `json:"version"`
	Features     FeaturesConfig     `json:"features"`
	UI           UIConfig           `json:"ui"`
	Announcement AnnouncementConfig `json:"announcement"`
	Ads          AdsConfig          `json:"ads"`
}

// VersionConfig describes the latest released client version.
type VersionConfig struct {
	LatestVersion string `json:"latest_version"`
	ForceUpdate   bool   `json:"force_update"`
	DownloadURL   string `json:"download_url"`
	IOSURL        string `json:"ios_url"`
	AndroidURL    string `json:"android_url"`
}

// FeaturesConfig holds remote feature flags.
type FeaturesConfig struct {
	EnableNewYearTheme bool `json:"enable_new_year_theme"`
	ShowHomeBanner     bool `json:"show_home_banner"`
}

// UIConfig holds remote UI settings.
type UIConfig struct {
	ThemeColor string `json:"theme_color"`
}

// AnnouncementConfig holds the in-app announcement banner settings.
type AnnouncementConfig struct {
	Enabled bool   `json:"enabled"`
	Content string `json:"content"`
}

// AdsConfig holds ad settings.
type AdsConfig struct {
	Enabled   bool   `json:"enabled"`
	AppOpenID string `json:"app_open_id"`
}

// DefaultBootstrap returns the safe values used when the config endpoint is
// unreachable or malformed.
func DefaultBootstrap() Bootstrap {
	return Bootstrap{
		Version: VersionConfig{LatestVersion: "1.0.0"},
		UI:      UIConfig{ThemeColor: "system"},
	}
}

// FetchBootstrap retrieves and parses the remote bootstrap document. Errors
// are absorbed into the defaults; app startup never blocks on this.
func FetchBootstrap(ctx context.Context, client *api.Client) Bootstrap {
	raw, err := client.GetBootstrap(ctx)
	if err != nil {
		log.WithPrefix("config").Warn("bootstrap fetch failed, using defaults", "error", err)
		return DefaultBootstrap()
	}
	return ParseBootstrap(raw)
}

// ParseBootstrap parses a raw bootstrap document. For each group it first
// attempts the structured nested shape, then falls back to the declared
// flattening rule: a top-level key "<group>.<field>" carries the field
// value, with "true"/"false" strings coerced to booleans.
func ParseBootstrap(raw map[string]any) Bootstrap {
	b := DefaultBootstrap()
	if raw == nil {
		return b
	}

	version := groupValues(raw, "version")
	applyString(version, "latest_version", &b.Version.LatestVersion)
	applyBool(version, "force_update", &b.Version.ForceUpdate)
	applyString(version, "download_url", &b.Version.DownloadURL)
	applyString(version, "ios_url", &b.Version.IOSURL)
	applyString(version, "android_url", &b.Version.AndroidURL)

	features := groupValues(raw, "features")
	applyBool(features, "enable_new_year_theme", &b.Features.EnableNewYearTheme)
	applyBool(features, "show_home_banner", &b.Features.ShowHomeBanner)

	ui := groupValues(raw, "ui")
	applyString(ui, "theme_color", &b.UI.ThemeColor)

	announcement := groupValues(raw, "announcement")
	applyBool(announcement, "enabled", &b.Announcement.Enabled)
	applyString(announcement, "content", &b.Announcement.Content)

	ads := groupValues(raw, "ads")
	applyBool(ads, "enabled", &b.Ads.Enabled)
	applyString(ads, "app_open_id", &b.Ads.AppOpenID)

	return b
}

// groupValues collects a group's fields: the nested object when present,
// else any flattened "<group>.<field>" keys.
func groupValues(raw map[string]any, group string) map[string]any {
	if nested, ok := raw[group].(map[string]any); ok {
		return nested
	}

	flat := make(map[string]any)
	prefix := group + "."
	for key, value := range raw {
		if strings.HasPrefix(key, prefix) {
			flat[strings.TrimPrefix(key, prefix)] = value
		}
	}
	return flat
}

func applyString(values map[string]any, key string, dst *string) {
	if s, ok := values[key].(string); ok {
		*dst = s
	}
}

func applyBool(values map[string]any, key string, dst *bool) {
	switch v := values[key].(type) {
	case bool:
		*dst = v
	case string:
		if v == "true" {
			*dst = true
		} else if v == "false" {
			*dst = false
		}
	}
}
