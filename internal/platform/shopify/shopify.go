// Package shopify implements the Shopify sync handler.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mockforge/mockforge/internal/platform"
)

const PlatformName = "shopify"

const apiVersion = "2024-01"

// Supported operations.
const (
	OpListProducts   = "list_products"
	OpImportProducts = "import_products"
	OpPublishImage   = "publish_image"
)

// Handler implements product catalog sync against the Shopify Admin API.
type Handler struct {
	cfg platform.HandlerConfig
}

// Factory creates a new Shopify handler.
func Factory(cfg platform.HandlerConfig) (platform.Handler, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("shopify: http client required")
	}
	return &Handler{cfg: cfg}, nil
}

func (h *Handler) Name() string { return PlatformName }

func (h *Handler) Operations() []string {
	return []string{OpListProducts, OpImportProducts, OpPublishImage}
}

// QuotaCost charges one generation credit for publishing a mockup to a
// product; catalog reads and imports are free.
func (h *Handler) QuotaCost(operation string, _ json.RawMessage) int {
	if operation == OpPublishImage {
		return 1
	}
	return 0
}

// client builds an Admin API client for the connection's shop domain.
// The shop domain is stored in connection settings at OAuth callback time.
func (h *Handler) client(req platform.Request) (*platform.APIClient, error) {
	shop := req.Settings["shop"]
	if shop == "" {
		return nil, fmt.Errorf("shopify: connection missing shop domain")
	}
	return &platform.APIClient{
		Platform: PlatformName,
		BaseURL:  fmt.Sprintf("https://%s.myshopify.com/admin/api/%s", shop, apiVersion),
		HTTP:     h.cfg.HTTPClient,
		Headers:  map[string]string{"X-Shopify-Access-Token": req.AccessToken},
	}, nil
}

func (h *Handler) Handle(ctx context.Context, req platform.Request) (*platform.Result, error) {
	api, err := h.client(req)
	if err != nil {
		return nil, err
	}

	switch req.Operation {
	case OpListProducts:
		return h.listProducts(ctx, api)
	case OpImportProducts:
		return h.importProducts(ctx, api, req)
	case OpPublishImage:
		return h.publishImage(ctx, api, req)
	default:
		return nil, platform.ErrUnsupportedOperation
	}
}

type product struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
	Status string `json:"status"`
	Image  *struct {
		Src string `json:"src"`
	} `json:"image,omitempty"`
}

// listProducts fetches the shop's product catalog (first page, 50 items).
func (h *Handler) listProducts(ctx context.Context, api *platform.APIClient) (*platform.Result, error) {
	var resp struct {
		Products []product `json:"products"`
	}
	if err := api.GetJSON(ctx, "/products.json?limit=50", &resp); err != nil {
		return nil, err
	}
	return platform.Ok(map[string]any{"products": resp.Products, "count": len(resp.Products)}), nil
}

// importProducts fetches products filtered by the requested ids so the app
// can import them as mockup targets.
func (h *Handler) importProducts(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		ProductIDs []int64 `json:"productIds"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || len(in.ProductIDs) == 0 {
		return nil, fmt.Errorf("shopify: productIds required: %w", platform.ErrUnsupportedOperation)
	}

	items := make([]platform.ItemResult, 0, len(in.ProductIDs))
	for i, id := range in.ProductIDs {
		var resp struct {
			Product product `json:"product"`
		}
		err := api.GetJSON(ctx, fmt.Sprintf("/products/%d.json", id), &resp)
		if err != nil {
			items = append(items, platform.ItemResult{Index: i, Error: err.Error()})
			continue
		}
		items = append(items, platform.ItemResult{Index: i, Success: true, Data: resp.Product})
	}
	return platform.Ok(map[string]any{"items": items}), nil
}

// publishImage attaches a rendered mockup image (by URL) to a product.
func (h *Handler) publishImage(ctx context.Context, api *platform.APIClient, req platform.Request) (*platform.Result, error) {
	var in struct {
		ProductID int64  `json:"productId"`
		ImageURL  string `json:"imageUrl"`
		Alt       string `json:"alt"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || in.ProductID == 0 || in.ImageURL == "" {
		return nil, fmt.Errorf("shopify: productId and imageUrl required: %w", platform.ErrUnsupportedOperation)
	}

	body := map[string]any{
		"image": map[string]any{"src": in.ImageURL, "alt": in.Alt},
	}
	var resp struct {
		Image struct {
			ID  int64  `json:"id"`
			Src string `json:"src"`
		} `json:"image"`
	}
	if err := api.PostJSON(ctx, fmt.Sprintf("/products/%d/images.json", in.ProductID), body, &resp); err != nil {
		return nil, err
	}
	return platform.Ok(resp.Image), nil
}
