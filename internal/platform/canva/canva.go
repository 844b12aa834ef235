// Package canva implements the Canva sync handler (design import).
package canva

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mockforge/mockforge/internal/platform"
)

const PlatformName = "canva"

// Supported operations.
const (
	OpListDesigns  = "list_designs"
	OpExportDesign = "export_design"
)

// Handler imports designs from the Canva Connect API.
type Handler struct {
	cfg platform.HandlerConfig
}

// Factory creates a new Canva handler.
func Factory(cfg platform.HandlerConfig) (platform.Handler, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("canva: http client required")
	}
	return &Handler{cfg: cfg}, nil
}

func (h *Handler) Name() string { return PlatformName }

func (h *Handler) Operations() []string {
	return []string{OpListDesigns, OpExportDesign}
}

func (h *Handler) client(req platform.Request) *platform.APIClient {
	return &platform.APIClient{
		Platform: PlatformName,
		BaseURL:  "https://api.canva.com/rest/v1",
		HTTP:     h.cfg.HTTPClient,
		Token:    req.AccessToken,
	}
}

func (h *Handler) Handle(ctx context.Context, req platform.Request) (*platform.Result, error) {
	api := h.client(req)

	switch req.Operation {
	case OpListDesigns:
		return h.listDesigns(ctx, api)
	case OpExportDesign:
		return h.exportDesign(ctx, api, req)
	default:
		return nil, platform.ErrUnsupportedOperation
	}
}

func (h *Handler) listDesigns(ctx context.Context, api *platform.APIClient) (*platform.Result, error) {
	var resp struct {
		Items []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Thumbnail struct {
				URL string `json:"url"`
			} `json:"thumbnail"`
		} `json:"items"`
	}
	if err := api.GetJSON(ctx, "/designs?limit=50", &resp); err != nil {
		return nil, err
	}
	return platform.Ok(map[string]any{"designs": resp.Items, "count": len(resp.Items)}), nil
}

// exportDesign starts an export job and returns its id; the app polls the
// job from its own import pipeline.
func (h *Handler) exportDesign(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		DesignID string `json:"designId"`
		Format   string `json:"format"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || in.DesignID == "" {
		return nil, fmt.Errorf("canva: designId required: %w", platform.ErrUnsupportedOperation)
	}
	if in.Format == "" {
		in.Format = "png"
	}

	body := map[string]any{
		"design_id": in.DesignID,
		"format":    map[string]any{"type": in.Format},
	}
	var resp struct {
		Job struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"job"`
	}
	if err := api.PostJSON(ctx, "/exports", body, &resp); err != nil {
		return nil, err
	}
	return platform.Ok(resp.Job), nil
}
