// Package gdrive implements the Google Drive sync handler.
package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/mockforge/mockforge/internal/platform"
)

const PlatformName = "gdrive"

// Supported operations.
const (
	OpListFolders  = "list_folders"
	OpCreateFolder = "create_folder"
	OpUploadImages = "upload_images"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Handler implements folder/file sync against the Drive API v3.
type Handler struct {
	cfg platform.HandlerConfig
}

// Factory creates a new Google Drive handler.
func Factory(cfg platform.HandlerConfig) (platform.Handler, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("gdrive: http client required")
	}
	return &Handler{cfg: cfg}, nil
}

func (h *Handler) Name() string { return PlatformName }

func (h *Handler) Operations() []string {
	return []string{OpListFolders, OpCreateFolder, OpUploadImages}
}

// QuotaCost charges one generation credit per uploaded mockup. Malformed
// payloads charge nothing; Handle rejects them before any upstream call.
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
		BaseURL:  "https://www.googleapis.com/drive/v3",
		HTTP:     h.cfg.HTTPClient,
		Token:    req.AccessToken,
	}
}

func (h *Handler) Handle(ctx context.Context, req platform.Request) (*platform.Result, error) {
	api := h.client(req)

	switch req.Operation {
	case OpListFolders:
		return h.listFolders(ctx, api)
	case OpCreateFolder:
		return h.createFolder(ctx, api, req)
	case OpUploadImages:
		return h.uploadImages(ctx, api, req)
	default:
		return nil, platform.ErrUnsupportedOperation
	}
}

type file struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

func (h *Handler) listFolders(ctx context.Context, api *platform.APIClient) (*platform.Result, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("mimeType='%s' and trashed=false", folderMimeType))
	q.Set("pageSize", "100")
	q.Set("fields", "files(id,name,mimeType)")

	var resp struct {
		Files []file `json:"files"`
	}
	if err := api.GetJSON(ctx, "/files?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return platform.Ok(map[string]any{"folders": resp.Files, "count": len(resp.Files)}), nil
}

func (h *Handler) createFolder(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || in.Name == "" {
		return nil, fmt.Errorf("gdrive: name required: %w", platform.ErrUnsupportedOperation)
	}

	body := map[string]any{"name": in.Name, "mimeType": folderMimeType}
	if in.ParentID != "" {
		body["parents"] = []string{in.ParentID}
	}
	var created file
	if err := api.PostJSON(ctx, "/files", body, &created); err != nil {
		return nil, err
	}
	return platform.Ok(created), nil
}

// uploadImages downloads each mockup URL and uploads it into the target
// folder, reporting one result per item.
func (h *Handler) uploadImages(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		FolderID string   `json:"folderId"`
		URLs     []string `json:"urls"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || len(in.URLs) == 0 {
		return nil, fmt.Errorf("gdrive: urls required: %w", platform.ErrUnsupportedOperation)
	}

	items := make([]platform.ItemResult, 0, len(in.URLs))
	for i, u := range in.URLs {
		uploaded, err := h.uploadOne(ctx, api, in.FolderID, u)
		if err != nil {
			items = append(items, platform.ItemResult{Index: i, Error: err.Error()})
			continue
		}
		items = append(items, platform.ItemResult{Index: i, Success: true, Data: uploaded})
	}
	return platform.Ok(map[string]any{"items": items}), nil
}

func (h *Handler) uploadOne(ctx context.Context, api *platform.APIClient, folderID, rawURL string) (any, error) {
	body, err := api.FetchURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	name := path.Base(strings.SplitN(rawURL, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "mockup.png"
	}

	// Simple media upload, then a metadata patch to name and place it.
	var uploaded file
	err = api.PostRaw(ctx,
		"https://www.googleapis.com/upload/drive/v3/files?uploadType=media",
		body, "image/png", nil, &uploaded)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{"name": name}
	q := ""
	if folderID != "" {
		q = "?addParents=" + url.QueryEscape(folderID)
	}
	var renamed file
	if err := api.PatchJSON(ctx, "/files/"+uploaded.ID+q, patch, &renamed); err != nil {
		return nil, err
	}
	return renamed, nil
}
