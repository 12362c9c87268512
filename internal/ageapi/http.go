package ageapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/age-gate/internal/logging"
)

const maxResponseBytes = 1 << 20

// HTTPClient calls the age-estimation service over JSON/HTTP.
type HTTPClient struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient constructs a client posting predictions to url. A non-empty
// token is sent as a bearer credential.
func NewHTTPClient(url, token string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("ageapi_http"),
	}
}

// Predict sends one prediction request.
func (c *HTTPClient) Predict(ctx context.Context, req PredictRequest) (*Prediction, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, logging.NewOperationError("ageapi.encode_request", "", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, logging.NewOperationError("ageapi.build_request", "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		wrapped := logging.NewOperationError("ageapi.predict", "", err)
		c.logger.Error("age api call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, logging.NewOperationError("ageapi.read_response", "", err)
	}

	c.logger.Debug("age api responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.Bool("secure", req.Secure),
		zap.String("level_of_assurance", string(req.LevelOfAssurance)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: body}
	}
	return DecodePrediction(body)
}
