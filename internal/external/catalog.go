package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/holotutor/hub-server-go/internal/config"
	"github.com/holotutor/hub-server-go/internal/model"
)

// CatalogClient fetches tutor personas from the upstream catalog service.
type CatalogClient struct {
	url        string
	httpClient *http.Client
}

func NewCatalogClient(cfg *config.Config) *CatalogClient {
	return &CatalogClient{
		url:        cfg.PersonasAPIURL,
		httpClient: &http.Client{Timeout: config.CatalogTimeout},
	}
}

// Fetch returns the full catalog. A client with no configured URL fetches
// nothing, which makes the companion service fall through to its built-in
// fallback.
func (c *CatalogClient) Fetch(ctx context.Context) ([]model.Companion, error) {
	if c.url == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send catalog request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog api error [%d]", resp.StatusCode)
	}

	// the upstream serves either a bare array or a wrapped object
	var companions []model.Companion
	if err := json.Unmarshal(respBody, &companions); err == nil {
		return companions, nil
	}
	var wrapped struct {
		Companions []model.Companion `json:"companions"`
	}
	if err := json.Unmarshal(respBody, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal catalog response: %w", err)
	}
	return wrapped.Companions, nil
}
