// Package client is a small REST client for the VM facade, used by vmctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
)

type Client struct {
	base string
	http *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.do(ctx, http.MethodGet, "/health", nil, &out)
}

func (c *Client) Create(ctx context.Context, req models.CreateRequest) (*models.VM, error) {
	return c.vm(ctx, http.MethodPost, "/vm", req)
}

func (c *Client) Get(ctx context.Context, id string) (*models.VM, error) {
	return c.vm(ctx, http.MethodGet, "/vm/"+url.PathEscape(id), nil)
}

func (c *Client) List(ctx context.Context) ([]*models.VM, error) {
	var out models.VMListResponse
	if err := c.do(ctx, http.MethodGet, "/vm", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Update(ctx context.Context, id string, changes models.UpdateRequest) (*models.VM, error) {
	return c.vm(ctx, http.MethodPut, "/vm/"+url.PathEscape(id), changes)
}

func (c *Client) Action(ctx context.Context, id string, req models.ActionRequest) (*models.VM, error) {
	return c.vm(ctx, http.MethodPost, "/vm/"+url.PathEscape(id)+"/action", req)
}

func (c *Client) vm(ctx context.Context, method, path string, body interface{}) (*models.VM, error) {
	var out models.VMResponse
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return out.VM, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var failure models.VMResponse
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&failure); err == nil && failure.Error != "" {
			msg = failure.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ParseParam splits a key=value or key:=value flag. key:=value always sends
// an integer. key=value sends a string, except for the integer sizing keys
// (cpu, ram_gb, disk_gb) whose integral values become integers.
func ParseParam(kv string) (string, models.SpecValue, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" || k == ":" {
		return "", models.SpecValue{}, fmt.Errorf("param %q must be key=value or key:=integer", kv)
	}
	if key, forced := strings.CutSuffix(k, ":"); forced {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", models.SpecValue{}, fmt.Errorf("param %q: %q is not an integer", key, v)
		}
		return key, models.Int(n), nil
	}
	if models.IsIntegerKey(k) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && strconv.FormatInt(n, 10) == v {
			return k, models.Int(n), nil
		}
	}
	return k, models.String(v), nil
}
