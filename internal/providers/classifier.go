package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/osvaldoandrade/classifyq/internal/tracing"
	"github.com/osvaldoandrade/classifyq/pkg/domain"
)

// Classifier runs inference for one image. Predictions are returned in the
// order the endpoint ranks them.
type Classifier interface {
	Classify(ctx context.Context, image []byte, contentType string) ([]domain.Prediction, error)
}

type HTTPClassifierConfig struct {
	Endpoint string
	TopK     int
	Labels   []string
	Timeout  time.Duration
}

type httpClassifier struct {
	endpoint string
	topK     int
	labels   []string
	client   *http.Client
}

func NewHTTPClassifier(cfg HTTPClassifierConfig) (Classifier, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("inference endpoint required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &httpClassifier{
		endpoint: cfg.Endpoint,
		topK:     cfg.TopK,
		labels:   cfg.Labels,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type inferenceResponse struct {
	Predictions   json.RawMessage `json:"predictions"`
	Probabilities json.RawMessage `json:"probabilities"`
}

func (c *httpClassifier) Classify(ctx context.Context, image []byte, contentType string) ([]domain.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-image")
	req.Header.Set("Accept", "application/json")
	tracing.InjectHeaders(ctx, req.Header)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("classification failed (status %d)", resp.StatusCode)
	}
	return c.decode(body)
}

func (c *httpClassifier) decode(body []byte) ([]domain.Prediction, error) {
	var out inferenceResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	raw := out.Predictions
	if len(raw) == 0 || string(raw) == "null" {
		raw = out.Probabilities
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("inference response has no predictions")
	}

	var labeled []domain.Prediction
	if err := json.Unmarshal(raw, &labeled); err == nil && allLabeled(labeled) {
		return labeled, nil
	}

	var scores []float64
	if err := json.Unmarshal(raw, &scores); err != nil {
		var batched [][]float64
		if err := json.Unmarshal(raw, &batched); err != nil || len(batched) == 0 {
			return nil, fmt.Errorf("unrecognized prediction format")
		}
		scores = batched[0]
	}
	return c.topScores(scores), nil
}

func allLabeled(ps []domain.Prediction) bool {
	for _, p := range ps {
		if p.Label == "" {
			return false
		}
	}
	return true
}

// topScores ranks raw class scores and keeps the best topK.
func (c *httpClassifier) topScores(scores []float64) []domain.Prediction {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if len(idx) > c.topK {
		idx = idx[:c.topK]
	}
	out := make([]domain.Prediction, 0, len(idx))
	for _, i := range idx {
		out = append(out, domain.Prediction{
			Label:      c.label(i),
			Confidence: math.Round(scores[i]*10000) / 10000,
		})
	}
	return out
}

func (c *httpClassifier) label(i int) string {
	if i < len(c.labels) && c.labels[i] != "" {
		return c.labels[i]
	}
	return fmt.Sprintf("Class %d", i)
}

// LoadLabels reads one label per line; blank lines keep their index.
func LoadLabels(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		labels = append(labels, strings.TrimSpace(sc.Text()))
	}
	return labels, sc.Err()
}
