package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patternhq/pattern-engine/internal/storage"
)

const historyPath = "/api/app/history"

// wireReport is the backend's snake_case representation of a report.
type wireReport struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Content   string `json:"content"`
	BirthDate string `json:"birth_date"`
	BirthTime string `json:"birth_time,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

func (w wireReport) toReport() storage.Report {
	createdAt, err := time.Parse(time.RFC3339, w.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	return storage.Report{
		ID:        w.ID,
		CreatedAt: createdAt,
		Content:   w.Content,
		BirthDate: w.BirthDate,
		BirthTime: w.BirthTime,
		Gender:    w.Gender,
		Summary:   w.Summary,
	}
}

func toWireReport(r storage.Report) wireReport {
	return wireReport{
		ID:        r.ID,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		Content:   r.Content,
		BirthDate: r.BirthDate,
		BirthTime: r.BirthTime,
		Gender:    r.Gender,
		Summary:   r.Summary,
	}
}

// ListReportIDs fetches the authoritative set of remote report IDs.
func (c *Client) ListReportIDs(ctx context.Context) ([]string, error) {
	var items []struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodGet, historyPath, nil, &items); err != nil {
		return nil, fmt.Errorf("failed to fetch history ids: %w", err)
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids, nil
}

// GetReport fetches one full report record by id.
func (c *Client) GetReport(ctx context.Context, id string) (*storage.Report, error) {
	var wire wireReport
	if err := c.doJSON(ctx, http.MethodGet, historyPath+"/"+id, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to fetch report %s: %w", id, err)
	}
	report := wire.toReport()
	return &report, nil
}

// UploadReports bulk-uploads locally created reports and returns how many the
// backend accepted.
func (c *Client) UploadReports(ctx context.Context, reports []storage.Report) (int, error) {
	wires := make([]wireReport, len(reports))
	for i, r := range reports {
		wires[i] = toWireReport(r)
	}

	body := map[string]any{"reports": wires}
	var result struct {
		Synced int `json:"synced"`
	}
	if err := c.doJSON(ctx, http.MethodPost, historyPath, body, &result); err != nil {
		return 0, fmt.Errorf("failed to upload reports: %w", err)
	}
	return result.Synced, nil
}

// DeleteReport deletes a report on the backend.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, historyPath+"/"+id, nil, nil); err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	return nil
}
