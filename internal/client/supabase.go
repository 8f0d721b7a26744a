package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseClient writes rows to a Supabase (PostgREST) table.
type SupabaseClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSupabaseClient creates a new Supabase client
func NewSupabaseClient(baseURL, apiKey string) (*SupabaseClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase key is required")
	}
	return &SupabaseClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// Upsert inserts rows into table, merging rows that collide on onConflict
// (a comma separated column list).
func (c *SupabaseClient) Upsert(ctx context.Context, table, onConflict string, rows any) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if onConflict != "" {
		url += "?on_conflict=" + onConflict
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("failed to upsert into %s: status %d: %s", table, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
