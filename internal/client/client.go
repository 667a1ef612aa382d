// Package client implements the HTTP surface of the remote statistics
// service: metric endpoints, plugin validation/execution, upload and reset,
// plus the session token exchange every call participates in.
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
	"time"

	"github.com/okrause/seriesdash/internal/logger"
	"github.com/okrause/seriesdash/internal/models"
)

const defaultTimeout = 30 * time.Second

// Client talks to the remote statistics service. All methods attach the
// current session token and observe rotated tokens on every response.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenManager
}

// New creates a client for the service at baseURL.
func New(baseURL string, tokens *TokenManager) *Client {
	if tokens == nil {
		tokens = NewTokenManager("")
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
	}
}

// Tokens returns the session token manager shared by all calls.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// do performs one request/response exchange. Failed responses come back as
// a classified *ErrorRecord.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.tokens.Attach(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyErr(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	c.tokens.Observe(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Classify(resp.StatusCode, resp.Header, body)
	}

	return body, nil
}

// metricQuery builds the shared query parameters of a metric call.
func metricQuery(req models.MetricRequest) url.Values {
	q := url.Values{}
	q.Set("category", req.Category)
	q.Set("filename", req.File1)
	if req.File2 != "" {
		q.Set("filename2", req.File2)
	}
	if req.Tolerance > 0 {
		q.Set("tolerance", strconv.Itoa(req.Tolerance))
	}
	if req.Window.Start != "" {
		q.Set("start", req.Window.Start)
	}
	if req.Window.End != "" {
		q.Set("end", req.Window.End)
	}
	return q
}

// fetchMetric issues one metric call and extracts the scalar under the
// kind's response key. A JSON null value returns (nil, nil).
func (c *Client) fetchMetric(ctx context.Context, req models.MetricRequest) (*float64, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/timeseries/"+req.Kind.Endpoint, metricQuery(req), nil)
	if err != nil {
		return nil, err
	}

	var result map[string]*float64
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", req.Kind.ID, err)
	}

	value, ok := result[req.Kind.ResponseKey]
	if !ok {
		return nil, fmt.Errorf("response missing %q key", req.Kind.ResponseKey)
	}
	return value, nil
}

// PairMetric computes one pairwise metric value for two files of a
// category. A nil value with nil error means the server declined the pair.
func (c *Client) PairMetric(ctx context.Context, req models.MetricRequest) (*float64, error) {
	if req.File2 == "" {
		return nil, fmt.Errorf("pair metric %s requires two filenames", req.Kind.ID)
	}
	return c.fetchMetric(ctx, req)
}

// SeriesStat computes one single-series statistic for a file.
func (c *Client) SeriesStat(ctx context.Context, req models.MetricRequest) (*float64, error) {
	return c.fetchMetric(ctx, req)
}

// fetchSeries issues one series-transform call and extracts the derived
// timestamp -> value series under key.
func (c *Client) fetchSeries(ctx context.Context, path, key string, q url.Values) (map[string]float64, error) {
	body, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}

	var payload map[string]map[string]float64
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", key, err)
	}
	series, ok := payload[key]
	if !ok {
		return nil, fmt.Errorf("response missing %q", key)
	}
	return series, nil
}

// RollingMean fetches the moving average of one series. windowSize is a
// duration string like "1d"; empty uses the server default.
func (c *Client) RollingMean(ctx context.Context, category, filename, windowSize string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("filename", filename)
	if windowSize != "" {
		q.Set("window_size", windowSize)
	}
	return c.fetchSeries(ctx, "/api/timeseries/rolling_mean", "rolling_mean", q)
}

// Difference fetches the point-by-point difference of two series matched
// by nearest timestamp. The route predates the /api prefix on the server.
// A zero tolerance lets the server derive one from the sample spacing.
func (c *Client) Difference(ctx context.Context, category, file1, file2 string, tolerance int) (map[string]float64, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("filename1", file1)
	q.Set("filename2", file2)
	if tolerance > 0 {
		q.Set("tolerance", strconv.Itoa(tolerance))
	}
	return c.fetchSeries(ctx, "/timeseries/difference", "difference", q)
}

// UploadPayload is the wire shape of an upload: timestamp -> category ->
// file name -> value. The server rejects payloads missing the category
// level with a 400.
type UploadPayload map[string]map[string]map[string]float64

// Upload pushes parsed time-series data to the service.
func (c *Client) Upload(ctx context.Context, payload UploadPayload) error {
	_, err := c.do(ctx, http.MethodPost, "/api/upload-timeseries", nil, payload)
	return err
}

// ClearRemote asks the service to drop all server-side series state. Used
// by the reset action.
func (c *Client) ClearRemote(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/clear-timeseries", nil, nil)
	return err
}

// ValidatePlugin submits plugin code for server-side validation. A false
// result carries the server's explanation.
func (c *Client) ValidatePlugin(ctx context.Context, code string) (bool, string, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/plugins/validate", nil, map[string]string{"code": code})
	if err != nil {
		return false, "", err
	}

	var result struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, "", fmt.Errorf("failed to parse validation response: %w", err)
	}
	return result.Valid, result.Error, nil
}

// ExecutePlugin runs plugin code against every file pair of a category and
// returns the resulting file-by-file value map.
func (c *Client) ExecutePlugin(ctx context.Context, code, category string, files []string, window models.Window) (map[string]map[string]float64, error) {
	payload := map[string]any{
		"code":      code,
		"category":  category,
		"filenames": files,
	}
	if window.Start != "" {
		payload["start"] = window.Start
	}
	if window.End != "" {
		payload["end"] = window.End
	}

	body, err := c.do(ctx, http.MethodPost, "/api/plugins/execute", nil, payload)
	if err != nil {
		return nil, err
	}

	var result struct {
		Results map[string]map[string]float64 `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse plugin execution response: %w", err)
	}
	return result.Results, nil
}
