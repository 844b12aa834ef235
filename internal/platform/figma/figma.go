// Package figma implements the Figma sync handler (read-only import).
package figma

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mockforge/mockforge/internal/platform"
)

const PlatformName = "figma"

// Supported operations.
const (
	OpListProjects = "list_projects"
	OpListFiles    = "list_files"
	OpExportFrames = "export_frames"
)

// Handler imports design sources from the Figma REST API.
type Handler struct {
	cfg platform.HandlerConfig
}

// Factory creates a new Figma handler.
func Factory(cfg platform.HandlerConfig) (platform.Handler, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("figma: http client required")
	}
	return &Handler{cfg: cfg}, nil
}

func (h *Handler) Name() string { return PlatformName }

func (h *Handler) Operations() []string {
	return []string{OpListProjects, OpListFiles, OpExportFrames}
}

func (h *Handler) client(req platform.Request) *platform.APIClient {
	return &platform.APIClient{
		Platform: PlatformName,
		BaseURL:  "https://api.figma.com/v1",
		HTTP:     h.cfg.HTTPClient,
		Token:    req.AccessToken,
	}
}

func (h *Handler) Handle(ctx context.Context, req platform.Request) (*platform.Result, error) {
	api := h.client(req)

	switch req.Operation {
	case OpListProjects:
		return h.listProjects(ctx, api, req)
	case OpListFiles:
		return h.listFiles(ctx, api, req)
	case OpExportFrames:
		return h.exportFrames(ctx, api, req)
	default:
		return nil, platform.ErrUnsupportedOperation
	}
}

func (h *Handler) listProjects(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		TeamID string `json:"teamId"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || in.TeamID == "" {
		return nil, fmt.Errorf("figma: teamId required: %w", platform.ErrUnsupportedOperation)
	}

	var resp struct {
		Name     string `json:"name"`
		Projects []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"projects"`
	}
	if err := api.GetJSON(ctx, "/teams/"+in.TeamID+"/projects", &resp); err != nil {
		return nil, err
	}
	return platform.Ok(resp), nil
}

func (h *Handler) listFiles(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		ProjectID string `json:"projectId"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || in.ProjectID == "" {
		return nil, fmt.Errorf("figma: projectId required: %w", platform.ErrUnsupportedOperation)
	}

	var resp struct {
		Files []struct {
			Key          string `json:"key"`
			Name         string `json:"name"`
			ThumbnailURL string `json:"thumbnail_url"`
			LastModified string `json:"last_modified"`
		} `json:"files"`
	}
	if err := api.GetJSON(ctx, "/projects/"+in.ProjectID+"/files", &resp); err != nil {
		return nil, err
	}
	return platform.Ok(map[string]any{"files": resp.Files, "count": len(resp.Files)}), nil
}

// exportFrames asks Figma to render node ids to PNG URLs which the app then
// imports as mockup sources.
func (h *Handler) exportFrames(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		FileKey string   `json:"fileKey"`
		NodeIDs []string `json:"nodeIds"`
		Scale   int      `json:"scale"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || in.FileKey == "" || len(in.NodeIDs) == 0 {
		return nil, fmt.Errorf("figma: fileKey and nodeIds required: %w", platform.ErrUnsupportedOperation)
	}
	if in.Scale <= 0 {
		in.Scale = 2
	}

	path := fmt.Sprintf("/images/%s?ids=%s&format=png&scale=%d", in.FileKey, joinIDs(in.NodeIDs), in.Scale)
	var resp struct {
		Err    string            `json:"err"`
		Images map[string]string `json:"images"`
	}
	if err := api.GetJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.Err != "" {
		return nil, &platform.UpstreamError{Platform: PlatformName, StatusCode: 200, Body: resp.Err}
	}
	return platform.Ok(map[string]any{"images": resp.Images}), nil
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
