// Package dropbox implements the Dropbox sync handler.
package dropbox

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/mockforge/mockforge/internal/platform"
)

const PlatformName = "dropbox"

// Supported operations.
const (
	OpListFolders  = "list_folders"
	OpCreateFolder = "create_folder"
	OpUploadImages = "upload_images"
)

// Handler implements folder/file sync against the Dropbox API v2.
type Handler struct {
	cfg platform.HandlerConfig
}

// Factory creates a new Dropbox handler.
func Factory(cfg platform.HandlerConfig) (platform.Handler, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("dropbox: http client required")
	}
	return &Handler{cfg: cfg}, nil
}

func (h *Handler) Name() string { return PlatformName }

func (h *Handler) Operations() []string {
	return []string{OpListFolders, OpCreateFolder, OpUploadImages}
}

// QuotaCost charges one generation credit per uploaded mockup.
func (h *Handler) QuotaCost(operation string, payload json.RawMessage) int {
	if operation != OpUploadImages {
		return 0
	}
	var in struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(payload, &in); err != nil {
		return 0
	}
	return len(in.URLs)
}

func (h *Handler) client(req platform.Request) *platform.APIClient {
	return &platform.APIClient{
		Platform: PlatformName,
		BaseURL:  "https://api.dropboxapi.com/2",
		HTTP:     h.cfg.HTTPClient,
		Token:    req.AccessToken,
	}
}

func (h *Handler) Handle(ctx context.Context, req platform.Request) (*platform.Result, error) {
	api := h.client(req)

	switch req.Operation {
	case OpListFolders:
		return h.listFolders(ctx, api, req)
	case OpCreateFolder:
		return h.createFolder(ctx, api, req)
	case OpUploadImages:
		return h.uploadImages(ctx, api, req)
	default:
		return nil, platform.ErrUnsupportedOperation
	}
}

type entry struct {
	Tag  string `json:".tag"`
	Name string `json:"name"`
	Path string `json:"path_display"`
}

func (h *Handler) listFolders(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		Path string `json:"path"`
	}
	_ = json.Unmarshal(req.Payload, &in) // path defaults to root

	var resp struct {
		Entries []entry `json:"entries"`
		HasMore bool    `json:"has_more"`
	}
	body := map[string]any{"path": in.Path, "recursive": false}
	if err := api.PostJSON(ctx, "/files/list_folder", body, &resp); err != nil {
		return nil, err
	}

	folders := make([]entry, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		if e.Tag == "folder" {
			folders = append(folders, e)
		}
	}
	return platform.Ok(map[string]any{"folders": folders, "hasMore": resp.HasMore}), nil
}

func (h *Handler) createFolder(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || in.Path == "" {
		return nil, fmt.Errorf("dropbox: path required: %w", platform.ErrUnsupportedOperation)
	}

	var resp struct {
		Metadata entry `json:"metadata"`
	}
	if err := api.PostJSON(ctx, "/files/create_folder_v2", map[string]any{"path": in.Path}, &resp); err != nil {
		return nil, err
	}
	return platform.Ok(resp.Metadata), nil
}

// uploadImages saves N externally hosted mockup URLs into a folder.
// Items are processed in order and each failure is reported per item;
// one bad URL no longer aborts the batch.
func (h *Handler) uploadImages(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		Folder string   `json:"folder"`
		URLs   []string `json:"urls"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || len(in.URLs) == 0 {
		return nil, fmt.Errorf("dropbox: urls required: %w", platform.ErrUnsupportedOperation)
	}

	items := make([]platform.ItemResult, 0, len(in.URLs))
	for i, u := range in.URLs {
		data, err := h.saveURL(ctx, api, in.Folder, u)
		if err != nil {
			items = append(items, platform.ItemResult{Index: i, Error: err.Error()})
			continue
		}
		items = append(items, platform.ItemResult{Index: i, Success: true, Data: data})
	}
	return platform.Ok(map[string]any{"items": items}), nil
}

// saveURL uses Dropbox's server-side save_url so the file never transits
// this service.
func (h *Handler) saveURL(ctx context.Context, api *platform.APIClient, folder, rawURL string) (any, error) {
	name := path.Base(strings.SplitN(rawURL, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "mockup.png"
	}
	dst := path.Join("/", folder, name)

	var resp struct {
		Tag   string `json:".tag"`
		JobID string `json:"async_job_id"`
	}
	if err := api.PostJSON(ctx, "/files/save_url", map[string]any{"path": dst, "url": rawURL}, &resp); err != nil {
		return nil, err
	}
	return map[string]any{"path": dst, "jobId": resp.JobID}, nil
}
