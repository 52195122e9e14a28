package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/lurewatch/lurewatch/internal/config"
	"github.com/lurewatch/lurewatch/internal/features"
	"github.com/lurewatch/lurewatch/internal/heuristics"
)

var (
	// ErrFeatureMismatch is returned when a vector does not match features.Names.
	ErrFeatureMismatch = errors.New("feature vector does not match model features")
	// ErrNoModel is returned when prediction is requested without a model.
	ErrNoModel = errors.New("no model configured")
)

// Prediction is a raw model output. Probabilities[0] is legitimate and
// Probabilities[1] is phishing.
type Prediction struct {
	Label         int        `json:"prediction"`
	Probabilities [2]float64 `json:"probabilities"`
}

// Verdict converts the prediction to percentages. Label 1 means phishing.
func (p *Prediction) Verdict() *ModelVerdict {
	v := &ModelVerdict{
		Result:         heuristics.Legitimate,
		Prediction:     p.Label,
		LegitimateProb: math.Round(p.Probabilities[0]*10000) / 100,
		PhishingProb:   math.Round(p.Probabilities[1]*10000) / 100,
	}
	if p.Label == 1 {
		v.Result = heuristics.Phishing
	}
	return v
}

// Model is a statistical phishing classifier over the features.Names vector.
type Model interface {
	Predict(ctx context.Context, vector []float64) (*Prediction, error)
}

// RemoteModel calls a model-serving endpoint over HTTP.
type RemoteModel struct {
	endpoint string
	client   *http.Client
}

// NewRemoteModel builds a client for cfg.URL. When a client id is set the
// requests carry an OAuth2 client-credentials token.
func NewRemoteModel(ctx context.Context, cfg config.Model) *RemoteModel {
	base := &http.Client{Timeout: cfg.Timeout}
	client := base
	if cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
		client.Timeout = cfg.Timeout
	}
	return &RemoteModel{
		endpoint: strings.TrimRight(cfg.URL, "/") + "/predict",
		client:   client,
	}
}

type predictRequest struct {
	FeatureNames []string  `json:"feature_names"`
	Features     []float64 `json:"features"`
}

// Predict sends the vector to the endpoint.
func (m *RemoteModel) Predict(ctx context.Context, vector []float64) (*Prediction, error) {
	if len(vector) != len(features.Names) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrFeatureMismatch, len(vector), len(features.Names))
	}

	body, err := json.Marshal(predictRequest{FeatureNames: features.Names, Features: vector})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		Prediction    int       `json:"prediction"`
		Probabilities []float64 `json:"probabilities"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if len(out.Probabilities) != 2 {
		return nil, fmt.Errorf("model returned %d probabilities, want 2", len(out.Probabilities))
	}
	return &Prediction{
		Label:         out.Prediction,
		Probabilities: [2]float64{out.Probabilities[0], out.Probabilities[1]},
	}, nil
}
