// Package predict talks to the ARGO model server for quality control,
// region identification and salinity estimates.
package predict

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

	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// ErrUnavailable wraps every transport or model-side failure
var ErrUnavailable = errors.New("model server unavailable")

// ModelType is the closed set of models the server hosts
type ModelType string

const (
	QualityControl       ModelType = "quality_control"
	RegionIdentification ModelType = "region_identification"
	SalinityPrediction   ModelType = "salinity_prediction"
)

// ModelTypes lists every supported model
var ModelTypes = []ModelType{QualityControl, RegionIdentification, SalinityPrediction}

// ParseModelType validates a model name from a request
func ParseModelType(s string) (ModelType, error) {
	for _, m := range ModelTypes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown model type %q", models.ErrInvalidArgument, s)
}

// Prediction is the union of the model responses; which fields are set depends on the model
type Prediction struct {
	Model             ModelType `json:"model"`
	Class             *int      `json:"prediction,omitempty"`
	IsGood            *bool     `json:"isGood,omitempty"`
	RegionID          *int      `json:"regionId,omitempty"`
	RegionName        string    `json:"regionName,omitempty"`
	PredictedSalinity *float64  `json:"predictedSalinity,omitempty"`
	Confidence        float64   `json:"confidence"`
	Error             string    `json:"error,omitempty"`
}

// Client posts feature vectors to {baseURL}/predict/{model}
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a model server client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Predict runs one model over the given features
func (c *Client) Predict(ctx context.Context, model ModelType, features map[string]float64) (Prediction, error) {
	if _, err := ParseModelType(string(model)); err != nil {
		return Prediction{}, err
	}
	if len(features) == 0 {
		return Prediction{}, fmt.Errorf("%w: features are required", models.ErrInvalidArgument)
	}

	body, err := json.Marshal(features)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to marshal features: %w", err)
	}

	url := fmt.Sprintf("%s/predict/%s", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Prediction{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Prediction{}, fmt.Errorf("%w: failed to decode response: %w", ErrUnavailable, err)
	}
	if p.Error != "" {
		return Prediction{}, fmt.Errorf("%w: %s", ErrUnavailable, p.Error)
	}
	p.Model = model
	return p, nil
}

// Features maps a stored profile onto the model server's feature names
func Features(p models.Profile) map[string]float64 {
	return map[string]float64{
		"LATITUDE":           p.Latitude,
		"LONGITUDE":          p.Longitude,
		"PRES_ADJUSTED_mean": p.PressureMean,
		"TEMP_ADJUSTED_mean": p.SurfaceTemp,
		"PSAL_ADJUSTED_mean": p.SurfaceSalinity,
		"STRAT":              p.MeanStratification,
		"MLD":                p.MixedLayerDepth,
		"THERMOCLINE":        p.ThermoclineDepth,
		"OHC":                p.OceanHeatContent,
	}
}
