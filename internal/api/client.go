// internal/api/client.go
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hexatlas/engine/internal/fault"
	"github.com/hexatlas/engine/pkg/core"
)

// Client handles communication with the remote catalog/store service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the remote service is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fault.Wrap(fault.Network, fmt.Errorf("healthcheck request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fault.New(fault.Network, "healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Markers lists every placement known to the remote store.
func (c *Client) Markers() ([]core.MarkerRecord, error) {
	var markers []core.MarkerRecord
	if err := c.getJSON("/api/markers", &markers); err != nil {
		return nil, err
	}
	return markers, nil
}

// CreateMarker persists a new placement and returns the record with its
// assigned identifier. The catalog number travels as "hexagram_number",
// which is what the store binds.
func (c *Client) CreateMarker(catalogNumber int, x, y float64) (core.MarkerRecord, error) {
	body := map[string]any{
		"hexagram_number": catalogNumber,
		"x":               x,
		"y":               y,
	}

	var created core.MarkerRecord
	if err := c.sendJSON(http.MethodPost, "/api/markers", body, &created); err != nil {
		return core.MarkerRecord{}, err
	}
	return created, nil
}

// UpdateMarker persists a position and image change for an existing
// placement. The store replies with a confirmation message, not the
// record, so there is nothing to decode.
func (c *Client) UpdateMarker(id uint, x, y float64, image string) error {
	body := map[string]any{
		"x":     x,
		"y":     y,
		"image": image,
	}

	path := fmt.Sprintf("/api/markers/%d", id)
	return c.sendJSON(http.MethodPut, path, body, nil)
}

// DeleteMarker removes a placement from the remote store.
func (c *Client) DeleteMarker(id uint) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+fmt.Sprintf("/api/markers/%d", id), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Wrap(fault.Network, fmt.Errorf("delete request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fault.New(fault.Network, "delete returned status %d", resp.StatusCode)
	}
	return nil
}

// Catalog lists the full catalog.
func (c *Client) Catalog() ([]core.CatalogEntry, error) {
	var entries []core.CatalogEntry
	if err := c.getJSON("/api/hexagrams", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CatalogDetail fetches the full record for one catalog entry, including
// its line texts.
func (c *Client) CatalogDetail(number int) (core.CatalogDetail, error) {
	var detail core.CatalogDetail
	if err := c.getJSON(fmt.Sprintf("/api/hexagrams/%d", number), &detail); err != nil {
		return core.CatalogDetail{}, err
	}
	return detail, nil
}

// SearchCatalog runs a text search over name, symbol and number.
func (c *Client) SearchCatalog(query string) ([]core.CatalogEntry, error) {
	var entries []core.CatalogEntry
	path := "/api/hexagrams/search?q=" + url.QueryEscape(query)
	if err := c.getJSON(path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UploadImage streams an image file to the remote store and returns the
// hosted URI.
func (c *Client) UploadImage(filename string, content io.Reader, catalogNumber int) (string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write form fields and file in goroutine
	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		_ = writer.WriteField("hexagramNumber", fmt.Sprint(catalogNumber))

		part, err := writer.CreateFormFile("image", filename)
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/upload-image", pr)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.Network, fmt.Errorf("upload request failed: %w", err))
	}
	defer resp.Body.Close()

	// Check goroutine error
	if writeErr := <-errCh; writeErr != nil {
		return "", writeErr
	}

	if resp.StatusCode != http.StatusOK {
		return "", fault.New(fault.Network, "upload returned status %d", resp.StatusCode)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fault.Wrap(fault.Network, fmt.Errorf("failed to decode upload response: %w", err))
	}
	return result.URL, nil
}

func (c *Client) getJSON(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fault.Wrap(fault.Network, fmt.Errorf("request %s failed: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fault.New(fault.Network, "%s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fault.Wrap(fault.Network, fmt.Errorf("failed to decode %s response: %w", path, err))
	}
	return nil
}

func (c *Client) sendJSON(method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Wrap(fault.Network, fmt.Errorf("%s %s failed: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fault.New(fault.Network, "%s %s returned status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fault.Wrap(fault.Network, fmt.Errorf("failed to decode %s response: %w", path, err))
		}
	}
	return nil
}
