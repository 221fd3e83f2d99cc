// Package kong is a client for the gateway control-plane admin API.
//
// It speaks the Kong admin API dialect: upsert-by-name services, routes
// nested under services, route-scoped plugins, consumers addressable by
// username, and consumer ACL groups. Listings are paginated through an
// opaque offset returned with every page.
package kong

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saidutt46/switchboard-marketplace/internal/metrics"
	"github.com/saidutt46/switchboard-marketplace/internal/ratelimit"
)

const pageSize = 100

// APIError is a non-2xx admin API response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gateway API error (%d) on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// IsNotFound reports whether err is a 404 from the admin API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 (unique constraint) from the admin API.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// ClientConfig configures one admin API client.
type ClientConfig struct {
	// Environment labels logs and metrics.
	Environment string
	BaseURL     string
	Token       string
	Timeout     time.Duration
	Transport   http.RoundTripper

	// Limiter throttles admin calls per environment. Nil means unthrottled.
	Limiter ratelimit.Limiter
}

// Client talks to the admin API of one gateway.
type Client struct {
	env     string
	baseURL string
	token   string
	http    *http.Client
	limiter ratelimit.Limiter
}

// NewClient creates an admin API client.
func NewClient(cfg ClientConfig) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport(nil)
	}
	return &Client{
		env:     cfg.Environment,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		limiter: cfg.Limiter,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// do sends one request and decodes the JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.env); err != nil {
			return fmt.Errorf("gateway request %s %s throttled: %w", method, path, err)
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Kong-Admin-Token", c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveGatewayCall(c.env, method, 0, time.Since(start))
		return fmt.Errorf("gateway request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()
	metrics.ObserveGatewayCall(c.env, method, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	log.Debug().
		Str("component", "gateway_client").
		Str("environment", c.env).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Admin API call")

	if resp.StatusCode >= 400 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response of %s %s: %w", method, path, err)
	}
	return nil
}

// listAll follows offsets until the last page.
func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	offset := ""
	for {
		q := url.Values{}
		q.Set("size", fmt.Sprint(pageSize))
		if offset != "" {
			q.Set("offset", offset)
		}

		var p page[T]
		if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Data...)

		if p.Offset == "" || len(p.Data) == 0 {
			return all, nil
		}
		offset = p.Offset
	}
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

// Status checks that the admin API is reachable.
func (c *Client) Status(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/status", nil, nil)
}

// UpsertService creates or replaces the service with svc.Name.
func (c *Client) UpsertService(ctx context.Context, svc Service) (*Service, error) {
	var out Service
	if err := c.do(ctx, http.MethodPut, "/services/"+escape(svc.Name), svc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRoute creates a route under serviceID.
func (c *Client) CreateRoute(ctx context.Context, serviceID string, route Route) (*Route, error) {
	route.Service = nil
	var out Route
	if err := c.do(ctx, http.MethodPost, "/services/"+escape(serviceID)+"/routes", route, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRoute patches an existing route in place, keeping its id.
func (c *Client) UpdateRoute(ctx context.Context, id string, route Route) (*Route, error) {
	var out Route
	if err := c.do(ctx, http.MethodPatch, "/routes/"+escape(id), route, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRoute removes a route. A missing route is not an error.
func (c *Client) DeleteRoute(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/routes/"+escape(id), nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// ListRoutePlugins returns all plugins scoped to a route.
func (c *Client) ListRoutePlugins(ctx context.Context, routeID string) ([]Plugin, error) {
	return listAll[Plugin](ctx, c, "/routes/"+escape(routeID)+"/plugins")
}

// CreateRoutePlugin adds a plugin to a route.
func (c *Client) CreateRoutePlugin(ctx context.Context, routeID string, plugin Plugin) (*Plugin, error) {
	plugin.Route = nil
	var out Plugin
	if err := c.do(ctx, http.MethodPost, "/routes/"+escape(routeID)+"/plugins", plugin, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePlugin patches a plugin in place.
func (c *Client) UpdatePlugin(ctx context.Context, id string, plugin Plugin) (*Plugin, error) {
	var out Plugin
	if err := c.do(ctx, http.MethodPatch, "/plugins/"+escape(id), plugin, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertConsumer creates or replaces the consumer with consumer.Username.
func (c *Client) UpsertConsumer(ctx context.Context, consumer Consumer) (*Consumer, error) {
	var out Consumer
	if err := c.do(ctx, http.MethodPut, "/consumers/"+escape(consumer.Username), consumer, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListACLs returns every ACL group membership of a consumer.
func (c *Client) ListACLs(ctx context.Context, consumerID string) ([]ACL, error) {
	return listAll[ACL](ctx, c, "/consumers/"+escape(consumerID)+"/acls")
}

// AddACL adds consumerID to group.
func (c *Client) AddACL(ctx context.Context, consumerID, group string) (*ACL, error) {
	var out ACL
	body := map[string]string{"group": group}
	if err := c.do(ctx, http.MethodPost, "/consumers/"+escape(consumerID)+"/acls", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteACL removes one membership by its ACL id.
func (c *Client) DeleteACL(ctx context.Context, consumerID, aclID string) error {
	err := c.do(ctx, http.MethodDelete, "/consumers/"+escape(consumerID)+"/acls/"+escape(aclID), nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}
