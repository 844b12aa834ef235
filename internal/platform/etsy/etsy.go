// Package etsy implements the Etsy sync handler.
package etsy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mockforge/mockforge/internal/platform"
)

const PlatformName = "etsy"

// Supported operations.
const (
	OpListListings   = "list_listings"
	OpImportListings = "import_listings"
	OpPublishImage   = "publish_image"
)

// Handler implements listing sync against the Etsy Open API v3.
type Handler struct {
	cfg platform.HandlerConfig
}

// Factory creates a new Etsy handler.
func Factory(cfg platform.HandlerConfig) (platform.Handler, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("etsy: http client required")
	}
	return &Handler{cfg: cfg}, nil
}

func (h *Handler) Name() string { return PlatformName }

func (h *Handler) Operations() []string {
	return []string{OpListListings, OpImportListings, OpPublishImage}
}

// QuotaCost charges one generation credit for publishing a mockup to a
// listing; reads and imports are free.
func (h *Handler) QuotaCost(operation string, _ json.RawMessage) int {
	if operation == OpPublishImage {
		return 1
	}
	return 0
}

func (h *Handler) client(req platform.Request) *platform.APIClient {
	return &platform.APIClient{
		Platform: PlatformName,
		BaseURL:  "https://api.etsy.com/v3/application",
		HTTP:     h.cfg.HTTPClient,
		Token:    req.AccessToken,
		// Etsy requires the app keystring alongside the OAuth token.
		Headers: map[string]string{"x-api-key": req.Settings["api_key"]},
	}
}

func (h *Handler) Handle(ctx context.Context, req platform.Request) (*platform.Result, error) {
	api := h.client(req)

	switch req.Operation {
	case OpListListings:
		return h.listListings(ctx, api, req)
	case OpImportListings:
		return h.importListings(ctx, api, req)
	case OpPublishImage:
		return h.publishImage(ctx, api, req)
	default:
		return nil, platform.ErrUnsupportedOperation
	}
}

type listing struct {
	ListingID int64  `json:"listing_id"`
	Title     string `json:"title"`
	State     string `json:"state"`
	URL       string `json:"url"`
}

func (h *Handler) shopID(req platform.Request) (string, error) {
	id := req.Settings["shop_id"]
	if id == "" {
		return "", fmt.Errorf("etsy: connection missing shop_id")
	}
	return id, nil
}

func (h *Handler) listListings(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	shopID, err := h.shopID(req)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Count   int       `json:"count"`
		Results []listing `json:"results"`
	}
	if err := api.GetJSON(ctx, fmt.Sprintf("/shops/%s/listings/active?limit=50", shopID), &resp); err != nil {
		return nil, err
	}
	return platform.Ok(map[string]any{"listings": resp.Results, "count": resp.Count}), nil
}

func (h *Handler) importListings(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		ListingIDs []int64 `json:"listingIds"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || len(in.ListingIDs) == 0 {
		return nil, fmt.Errorf("etsy: listingIds required: %w", platform.ErrUnsupportedOperation)
	}

	items := make([]platform.ItemResult, 0, len(in.ListingIDs))
	for i, id := range in.ListingIDs {
		var got listing
		err := api.GetJSON(ctx, fmt.Sprintf("/listings/%d", id), &got)
		if err != nil {
			items = append(items, platform.ItemResult{Index: i, Error: err.Error()})
			continue
		}
		items = append(items, platform.ItemResult{Index: i, Success: true, Data: got})
	}
	return platform.Ok(map[string]any{"items": items}), nil
}

// publishImage uploads a rendered mockup to a listing. Etsy's upload
// endpoint accepts a source URL reference for externally hosted files.
func (h *Handler) publishImage(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	shopID, err := h.shopID(req)
	if err != nil {
		return nil, err
	}
	var in struct {
		ListingID int64  `json:"listingId"`
		ImageURL  string `json:"imageUrl"`
		Rank      int    `json:"rank"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || in.ListingID == 0 || in.ImageURL == "" {
		return nil, fmt.Errorf("etsy: listingId and imageUrl required: %w", platform.ErrUnsupportedOperation)
	}

	body := map[string]any{"image_url": in.ImageURL, "rank": in.Rank}
	var resp struct {
		ListingImageID int64  `json:"listing_image_id"`
		URLFullxfull   string `json:"url_fullxfull"`
	}
	if err := api.PostJSON(ctx, fmt.Sprintf("/shops/%s/listings/%d/images", shopID, in.ListingID), body, &resp); err != nil {
		return nil, err
	}
	return platform.Ok(resp), nil
}
