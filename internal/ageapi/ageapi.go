// Package ageapi talks to the remote age-estimation service.
package ageapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/age-gate/internal/assurance"
)

// ErrMissingAge is returned when a successful response carries no age estimate.
var ErrMissingAge = errors.New("prediction response missing age")

// PredictRequest is the payload of a single prediction call.
type PredictRequest struct {
	Image            string          `json:"img"`
	Secure           bool            `json:"secure"`
	LevelOfAssurance assurance.Level `json:"level_of_assurance,omitempty"`
}

// AgeEstimate is the "age" block of a prediction.
type AgeEstimate struct {
	Age   *float64 `json:"age"`
	StDev float64  `json:"st_dev,omitempty"`
}

// Prediction is the decoded success body. Fields the service adds beyond the
// age estimate are kept in Raw.
type Prediction struct {
	Age AgeEstimate     `json:"age"`
	Raw json.RawMessage `json:"-"`
}

// Years returns the estimated age.
func (p *Prediction) Years() (float64, error) {
	if p == nil || p.Age.Age == nil {
		return 0, ErrMissingAge
	}
	return *p.Age.Age, nil
}

// Client exposes the subset of the age-estimation API used by a capture session.
type Client interface {
	Predict(ctx context.Context, req PredictRequest) (*Prediction, error)
}

// Error is a failure reported by the service itself. Body is kept verbatim
// because the service returns either a JSON document or plain text.
type Error struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("age api returned status %d: %s", e.StatusCode, bytes.TrimSpace(e.Body))
}

// Detail renders the body for display: JSON objects and arrays are indented,
// JSON strings are unquoted and anything else is returned as is.
func (e *Error) Detail() string {
	trimmed := bytes.TrimSpace(e.Body)
	var decoded interface{}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return string(e.Body)
	}
	switch v := decoded.(type) {
	case map[string]interface{}, []interface{}:
		out, err := indentJSON(trimmed)
		if err != nil {
			return string(e.Body)
		}
		return out
	case string:
		return v
	default:
		return string(e.Body)
	}
}

// Describe returns the text shown to the user for a failed prediction.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail()
	}
	return err.Error()
}

// DecodePrediction parses a success body and checks it carries an age.
func DecodePrediction(body []byte) (*Prediction, error) {
	var prediction Prediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	if prediction.Age.Age == nil {
		return nil, ErrMissingAge
	}
	prediction.Raw = append(json.RawMessage(nil), body...)
	return &prediction, nil
}
