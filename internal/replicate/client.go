package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studio-backend/internal/jsonvalue"
)

// Prediction statuses reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

type Client struct {
	baseURL      string
	apiToken     string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAsset     int64
}

type Prediction struct {
	ID     string           `json:"id"`
	Model  string           `json:"model"`
	Status string           `json:"status"`
	Output *jsonvalue.Value `json:"output"`
	Error  json.RawMessage  `json:"error"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

func (p *Prediction) Done() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

type createPredictionRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

// PredictionError is returned when a prediction ends failed or canceled.
type PredictionError struct {
	ID     string
	Status string
	Detail string
}

func (e *PredictionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("prediction %s %s", e.ID, e.Status)
	}
	return fmt.Sprintf("prediction %s %s: %s", e.ID, e.Status, e.Detail)
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d, body: %s", e.StatusCode, e.Body)
}

const defaultMaxAssetBytes = 32 << 20

var ErrAssetTooLarge = errors.New("generated asset exceeds the size limit")

// Asset is a downloaded generation result.
type Asset struct {
	Data        []byte
	ContentType string
}

func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pollInterval: time.Second,
		maxAsset:     defaultMaxAssetBytes,
	}
}

// WithPollInterval sets how often an unfinished prediction is re-fetched.
func (c *Client) WithPollInterval(d time.Duration) *Client {
	c.pollInterval = d
	return c
}

// WithMaxAssetSize caps how many bytes Download reads.
func (c *Client) WithMaxAssetSize(n int64) *Client {
	c.maxAsset = n
	return c
}

func (c *Client) Configured() bool {
	return c.apiToken != ""
}

// Run creates a prediction for model and waits for it to finish, returning its output.
//
// model is either "owner/name", which runs the model's latest version, or
// "owner/name:version".
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (*jsonvalue.Value, error) {
	prediction, err := c.CreatePrediction(ctx, model, input)
	if err != nil {
		return nil, err
	}

	for !prediction.Done() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("prediction %s not finished: %w", prediction.ID, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		prediction, err = c.GetPrediction(ctx, prediction)
		if err != nil {
			return nil, err
		}
	}

	if prediction.Status != StatusSucceeded {
		return nil, &PredictionError{
			ID:     prediction.ID,
			Status: prediction.Status,
			Detail: errorDetail(prediction.Error),
		}
	}

	return prediction.Output, nil
}

func (c *Client) CreatePrediction(ctx context.Context, model string, input map[string]any) (*Prediction, error) {
	url, body, err := c.predictionTarget(model, input)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	var prediction Prediction
	if err := c.do(req, &prediction); err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}

	return &prediction, nil
}

func (c *Client) GetPrediction(ctx context.Context, prediction *Prediction) (*Prediction, error) {
	url := prediction.URLs.Get
	if url == "" {
		url = c.baseURL + "/predictions/" + prediction.ID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result Prediction
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("failed to get prediction %s: %w", prediction.ID, err)
	}

	return &result, nil
}

// Download fetches a generated asset. Non-2xx responses return a *StatusError
// and bodies over the size limit ErrAssetTooLarge.
func (c *Client) Download(ctx context.Context, downloadURL string) (*Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if resp.ContentLength > c.maxAsset {
		return nil, fmt.Errorf("%w: %d bytes", ErrAssetTooLarge, resp.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxAsset+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.maxAsset {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrAssetTooLarge, c.maxAsset)
	}

	return &Asset{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (c *Client) predictionTarget(model string, input map[string]any) (string, createPredictionRequest, error) {
	body := createPredictionRequest{Input: input}

	name, version, hasVersion := strings.Cut(model, ":")
	owner, modelName, ok := strings.Cut(name, "/")
	if !ok || owner == "" || modelName == "" || strings.Contains(modelName, "/") {
		return "", body, fmt.Errorf("invalid model identifier %q, expected owner/name[:version]", model)
	}

	if hasVersion {
		if version == "" {
			return "", body, fmt.Errorf("invalid model identifier %q, empty version", model)
		}
		body.Version = version
		return c.baseURL + "/predictions", body, nil
	}

	return c.baseURL + "/models/" + owner + "/" + modelName + "/predictions", body, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return nil
}

func errorDetail(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// IsStatusError reports whether err is a non-2xx response and returns it.
func IsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
