package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type ollamaTags struct {
	Models []struct {
		Name       string `json:"name"`
		Size       int64  `json:"size"`
		ModifiedAt string `json:"modified_at"`
		Details    struct {
			Family string `json:"family"`
		} `json:"details"`
	} `json:"models"`
}

func getJSON(ctx context.Context, timeout time.Duration, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy response: HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// DetectOllama checks that the server at url answers and lists its models.
// An empty url means DefaultOllamaURL. A failed model listing still counts
// as available.
func DetectOllama(ctx context.Context, url string) OllamaStatus {
	if url == "" {
		url = DefaultOllamaURL
	}
	status := OllamaStatus{URL: url}

	start := time.Now()
	var version struct {
		Version string `json:"version"`
	}
	err := getJSON(ctx, 3*time.Second, url+"/api/version", &version)
	status.Latency = time.Since(start)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Available = true
	status.Version = version.Version

	if models, err := ListOllamaModels(ctx, url); err == nil {
		status.Models = models
	}
	return status
}

// ListOllamaModels fetches the models pulled into the server at url.
func ListOllamaModels(ctx context.Context, url string) ([]OllamaModel, error) {
	if url == "" {
		url = DefaultOllamaURL
	}
	var tags ollamaTags
	if err := getJSON(ctx, 5*time.Second, url+"/api/tags", &tags); err != nil {
		return nil, err
	}

	models := make([]OllamaModel, 0, len(tags.Models))
	for _, m := range tags.Models {
		mod, _ := time.Parse(time.RFC3339, m.ModifiedAt)
		models = append(models, OllamaModel{
			Name:       m.Name,
			Size:       m.Size,
			Family:     m.Details.Family,
			ModifiedAt: mod,
		})
	}
	return models, nil
}
