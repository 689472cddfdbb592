// Package client is a typed HTTP client for the discount service. The
// discountctl CLI and integration tooling drive the service through it.
package client

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"airdiscount/internal/agent"
	"airdiscount/internal/api"
	"airdiscount/internal/ml"
)

// Client talks to one discount service instance.
type Client struct {
	base string
	rest *resty.Client
}

// New builds a client for the service at base, for example
// "http://localhost:8000".
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second) // default fallback
	}
	return &Client{base: base, rest: r}
}

// Health checks the /healthz endpoint and returns the reported status.
func (c *Client) Health() (string, error) {
	var health api.HealthResponse
	resp, err := c.rest.R().
		SetResult(&health).
		Get(c.base + "/healthz")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return health.Status, nil
}

// Version returns the service version string.
func (c *Client) Version() (string, error) {
	var version api.VersionResponse
	resp, err := c.rest.R().
		SetResult(&version).
		Get(c.base + "/version")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return version.Version, nil
}

// ModelInfo fetches the served model snapshot.
func (c *Client) ModelInfo() (*ml.ModelInfo, error) {
	var info ml.ModelInfo
	resp, err := c.rest.R().
		SetResult(&info).
		Get(c.base + "/model/info")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &info, nil
}

// Predict scores raw feature records and returns one discount per row.
func (c *Client) Predict(records []map[string]any) (*api.PredictResponse, error) {
	var result api.PredictResponse
	resp, err := c.rest.R().
		SetBody(api.PredictRequest{Records: records}).
		SetResult(&result).
		Post(c.base + "/predict")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// History lists the most recently journaled predictions.
func (c *Client) History(limit int) (*api.HistoryResponse, error) {
	var result api.HistoryResponse
	req := c.rest.R().SetResult(&result)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get(c.base + "/history")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// RouteInsights fetches the aggregated view of one stored route.
func (c *Client) RouteInsights(routeID int64) (*agent.Insights, error) {
	var insights agent.Insights
	resp, err := c.rest.R().
		SetQueryParam("route_id", strconv.FormatInt(routeID, 10)).
		SetResult(&insights).
		Get(c.base + "/route_insights")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &insights, nil
}

// HeuristicDiscount asks for the rule-based discount on a stored route.
func (c *Client) HeuristicDiscount(routeID int64, travelHistory map[string]any) (*api.HeuristicResponse, error) {
	var result api.HeuristicResponse
	resp, err := c.rest.R().
		SetBody(api.HeuristicRequest{RouteID: routeID, TravelHistory: travelHistory}).
		SetResult(&result).
		Post(c.base + "/heuristic_discount")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// SynthGenerate runs the synthetic data generator on the server.
func (c *Client) SynthGenerate(req api.GenerateRequest) (*api.GenerateResponse, error) {
	var result api.GenerateResponse
	resp, err := c.rest.R().
		SetBody(req).
		SetResult(&result).
		Post(c.base + "/synth_generate")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}
