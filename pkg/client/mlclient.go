// Package client provides the HTTP client for the ML inference backend.
//
// The backend exposes one route group per service (yolo, vqa) under /v1,
// each with inference, health, model-info, and drift-monitoring endpoints.
// MLClient wraps that contract with typed requests and responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"
)

// Service identifies which backend route group a client talks to.
type Service string

const (
	ServiceYOLO Service = "yolo"
	ServiceVQA  Service = "vqa"
)

// Valid reports whether s names a known backend service.
func (s Service) Valid() bool {
	return s == ServiceYOLO || s == ServiceVQA
}

// MLClient is an HTTP client for one service of the ML inference backend.
// It is safe for concurrent use by multiple goroutines.
type MLClient struct {
	baseURL    string
	service    Service
	httpClient *http.Client
}

// NewMLClient creates a client for the given service. The baseURL should
// include the scheme and host (e.g., "http://localhost:8000"). A default
// timeout of 30 seconds is used; inference on cold models is slow.
func NewMLClient(baseURL string, service Service) *MLClient {
	return NewMLClientWithTimeout(baseURL, service, 30*time.Second)
}

// NewMLClientWithTimeout creates a client with a custom timeout.
func NewMLClientWithTimeout(baseURL string, service Service, timeout time.Duration) *MLClient {
	return &MLClient{
		baseURL: baseURL,
		service: service,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Service returns the backend service this client targets.
func (c *MLClient) Service() Service {
	return c.service
}

// endpoint builds the URL for a service-scoped path like "health" or
// "drift/status".
func (c *MLClient) endpoint(path string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = fmt.Sprintf("/v1/%s/%s", c.service, path)
	return u.String(), nil
}

// HealthStatus is the response from GET /v1/{service}/health.
type HealthStatus struct {
	Status string `json:"status"`
	Model  struct {
		Name string `json:"name"`
	} `json:"model"`
	DriftDetector struct {
		ReferenceSamples int `json:"reference_samples"`
		CurrentSamples   int `json:"current_samples"`
	} `json:"drift_detector"`
}

// Health checks the service health endpoint.
func (c *MLClient) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.getJSON(ctx, "health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ModelInfo returns the model metadata from GET /v1/{service}/model/info.
// The shape differs per service, so it stays a generic map.
func (c *MLClient) ModelInfo(ctx context.Context) (map[string]any, error) {
	var info map[string]any
	if err := c.getJSON(ctx, "model/info", &info); err != nil {
		return nil, err
	}
	return info, nil
}

// EvidentlyDrift carries the per-request drift block the backend attaches
// to inference responses.
type EvidentlyDrift struct {
	DatasetDrift       bool     `json:"dataset_drift"`
	DriftShare         *float64 `json:"drift_share"`
	NumDriftedFeatures int      `json:"num_drifted_features"`
}

// Detection is one detected object in a YOLO response.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// DetectResult is the response from POST /v1/yolo/detect/.
type DetectResult struct {
	TotalObjects   int            `json:"total_objects"`
	Brightness     float64        `json:"brightness"`
	AvgConfidence  float64        `json:"avg_confidence"`
	EmbeddingDrift float64        `json:"embedding_drift"`
	EvidentlyDrift EvidentlyDrift `json:"evidently_drift"`
	Detections     []Detection    `json:"detections"`
}

// Detect submits an image to the YOLO detection endpoint as a multipart
// upload under the "file" field.
func (c *MLClient) Detect(ctx context.Context, filename string, image []byte) (*DetectResult, error) {
	if c.service != ServiceYOLO {
		return nil, fmt.Errorf("detect is a yolo endpoint, client targets %q", c.service)
	}

	body, contentType, err := encodeImageForm("file", filename, image, nil)
	if err != nil {
		return nil, err
	}

	var result DetectResult
	if err := c.postForm(ctx, "detect/", body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VQAFeatures are the question/answer features the backend extracts for
// drift monitoring.
type VQAFeatures struct {
	Brightness     float64 `json:"brightness"`
	QuestionType   string  `json:"question_type"`
	QuestionLength int     `json:"question_length"`
	AnswerLength   int     `json:"answer_length"`
}

// AnswerResult is the response from POST /v1/vqa/answer.
type AnswerResult struct {
	Question       string         `json:"question"`
	Answer         string         `json:"answer"`
	InferenceTime  float64        `json:"inference_time"`
	Features       VQAFeatures    `json:"features"`
	EvidentlyDrift EvidentlyDrift `json:"evidently_drift"`
}

// AnswerOptions tune the VQA generation parameters.
type AnswerOptions struct {
	MaxLength int
	NumBeams  int
}

// DefaultAnswerOptions matches the backend's form-field defaults.
func DefaultAnswerOptions() AnswerOptions {
	return AnswerOptions{MaxLength: 50, NumBeams: 5}
}

// Answer submits an image and question to the VQA endpoint. The image goes
// under the "image" field; question and generation parameters are plain
// form fields.
func (c *MLClient) Answer(ctx context.Context, filename string, image []byte, question string, opts AnswerOptions) (*AnswerResult, error) {
	if c.service != ServiceVQA {
		return nil, fmt.Errorf("answer is a vqa endpoint, client targets %q", c.service)
	}
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	fields := map[string]string{
		"question":   question,
		"max_length": strconv.Itoa(opts.MaxLength),
		"num_beams":  strconv.Itoa(opts.NumBeams),
	}
	body, contentType, err := encodeImageForm("image", filename, image, fields)
	if err != nil {
		return nil, err
	}

	var result AnswerResult
	if err := c.postForm(ctx, "answer", body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FeatureDrift is the per-feature drift entry inside a drift status.
type FeatureDrift struct {
	DriftDetected bool    `json:"drift_detected"`
	DriftScore    float64 `json:"drift_score"`
}

// DriftDetection is the detector block of GET /v1/{service}/drift/status.
type DriftDetection struct {
	CurrentSamples     int                     `json:"current_samples"`
	ReferenceSamples   int                     `json:"reference_samples"`
	DatasetDrift       bool                    `json:"dataset_drift"`
	DriftShare         float64                 `json:"drift_share"`
	NumDriftedFeatures int                     `json:"num_drifted_features"`
	TotalFeatures      int                     `json:"total_features"`
	FeatureDrifts      map[string]FeatureDrift `json:"feature_drifts"`
}

// DriftStatus is the response from GET /v1/{service}/drift/status.
// Status is "success" once the detector has enough samples, otherwise
// "insufficient_data".
type DriftStatus struct {
	Status         string          `json:"status"`
	Message        string          `json:"message"`
	DriftDetection *DriftDetection `json:"drift_detection"`
	Statistics     map[string]any  `json:"statistics"`
}

// Sufficient reports whether the detector had enough data to score drift.
func (s *DriftStatus) Sufficient() bool {
	return s.Status == "success" && s.DriftDetection != nil
}

// DriftStatus fetches the current drift detection status.
func (c *MLClient) DriftStatus(ctx context.Context) (*DriftStatus, error) {
	var status DriftStatus
	if err := c.getJSON(ctx, "drift/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DriftSummary is the response from GET /v1/{service}/drift/summary.
type DriftSummary struct {
	Status     string         `json:"status"`
	Statistics map[string]any `json:"statistics"`
}

// DriftSummary fetches the detector's summary statistics.
func (c *MLClient) DriftSummary(ctx context.Context) (*DriftSummary, error) {
	var summary DriftSummary
	if err := c.getJSON(ctx, "drift/summary", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ResetReference asks the detector to adopt the current window as the new
// reference baseline via POST /v1/{service}/drift/reset-reference.
func (c *MLClient) ResetReference(ctx context.Context) error {
	u, err := c.endpoint("drift/reset-reference")
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset reference: unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// DataQuality is the response from GET /v1/{service}/data-quality.
type DataQuality struct {
	Status      string         `json:"status"`
	Message     string         `json:"message"`
	DataQuality map[string]any `json:"data_quality"`
}

// DataQuality fetches the detector's data quality report.
func (c *MLClient) DataQuality(ctx context.Context) (*DataQuality, error) {
	var quality DataQuality
	if err := c.getJSON(ctx, "data-quality", &quality); err != nil {
		return nil, err
	}
	return &quality, nil
}

func (c *MLClient) getJSON(ctx context.Context, path string, out any) error {
	u, err := c.endpoint(path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status code: %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *MLClient) postForm(ctx context.Context, path string, body []byte, contentType string, out any) error {
	u, err := c.endpoint(path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status code: %d: %s", path, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// encodeImageForm builds a multipart body with the image under fieldName
// plus any extra plain fields. The image part is sent as image/jpeg, which
// is what the backend's upload handlers expect.
func encodeImageForm(fieldName, filename string, image []byte, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, filename))
	header.Set("Content-Type", "image/jpeg")

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %q: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
