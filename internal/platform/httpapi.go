package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIClient is a minimal REST helper shared by the platform handlers.
// It normalizes auth headers, JSON codecs and upstream error mapping so
// each handler only describes its endpoints.
type APIClient struct {
	Platform string
	BaseURL  string
	HTTP     *http.Client
	Token    string
	// Headers are set on every request. Platforms with non-Bearer auth
	// (Shopify's X-Shopify-Access-Token) put their token here and leave
	// Token empty.
	Headers map[string]string
}

// GetJSON performs GET and decodes the JSON response into out.
func (c *APIClient) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

// PostJSON performs POST with a JSON body and decodes the response into out.
func (c *APIClient) PostJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", c.Platform, err)
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, http.MethodPost, path, body, "application/json", out)
}

// PatchJSON performs PATCH with a JSON body.
func (c *APIClient) PatchJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", c.Platform, err)
	}
	return c.do(ctx, http.MethodPatch, path, bytes.NewReader(b), "application/json", out)
}

// PutJSON performs PUT with a JSON body.
func (c *APIClient) PutJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", c.Platform, err)
	}
	return c.do(ctx, http.MethodPut, path, bytes.NewReader(b), "application/json", out)
}

// PostRaw performs POST with an arbitrary body (uploads).
func (c *APIClient) PostRaw(ctx context.Context, path string, body io.Reader, contentType string, extraHeaders map[string]string, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, body, contentType)
	if err != nil {
		return err
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	return c.send(req, out)
}

// FetchURL downloads an arbitrary URL (image fetch for upload-by-URL ops).
// The caller owns closing the returned body.
func (c *APIClient) FetchURL(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, &UpstreamError{Platform: c.Platform, StatusCode: resp.StatusCode, Body: "fetch " + rawURL}
	}
	return resp.Body, nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	u := path
	if !strings.HasPrefix(path, "http") {
		u = strings.TrimRight(c.BaseURL, "/") + path
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *APIClient) send(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Platform, err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode/100 != 2 {
		return &UpstreamError{
			Platform:   c.Platform,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	if out != nil && len(b) > 0 {
		if err := json.Unmarshal(b, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", c.Platform, err)
		}
	}
	return nil
}
