package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/osvaldoandrade/classifyq/internal/metrics"
	"github.com/osvaldoandrade/classifyq/internal/tracing"
	"github.com/osvaldoandrade/classifyq/pkg/domain"
)

type NotifierService interface {
	Notify(ctx context.Context, result domain.Result) error
}

type notifierService struct {
	logger     *slog.Logger
	webhookURL string
	secret     string
	client     *http.Client
	now        func() time.Time
}

// Notification is the webhook body delivered for each completed result.
type Notification struct {
	Subject string        `json:"subject"`
	Message string        `json:"message"`
	Result  domain.Result `json:"result"`
	SentAt  string        `json:"sentAt"`
}

func NewNotifierService(logger *slog.Logger, webhookURL, secret string, timeout time.Duration) NotifierService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &notifierService{
		logger:     logger,
		webhookURL: strings.TrimSpace(webhookURL),
		secret:     secret,
		client:     &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

func (n *notifierService) Notify(ctx context.Context, result domain.Result) error {
	if n.webhookURL == "" {
		return nil
	}
	b, err := json.Marshal(BuildNotification(result, n.now()))
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectHeaders(ctx, req.Header)
	n.addSignature(req, b)

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("notify", "failure").Inc()
		return fmt.Errorf("deliver notification: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.WebhookDeliveriesTotal.WithLabelValues("notify", "failure").Inc()
		return fmt.Errorf("deliver notification: status %d", resp.StatusCode)
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues("notify", "success").Inc()
	n.logger.Debug("notification sent", "id", result.ID, "file", result.SourceName)
	return nil
}

// BuildNotification renders the subject and plain-text body for a result.
func BuildNotification(result domain.Result, now time.Time) Notification {
	file := result.SourceName
	if strings.TrimSpace(file) == "" {
		file = "Unknown"
	}
	label := "No prediction available"
	confidence := "N/A"
	if top, ok := result.TopPrediction(); ok {
		label = top.Label
		confidence = fmt.Sprintf("%.2f%%", top.Confidence*100)
	}
	msg := fmt.Sprintf("Image Classification Completed\n\nFile: %s\nPrediction: %s\nConfidence: %s", file, label, confidence)
	return Notification{
		Subject: "Prediction for " + file,
		Message: msg,
		Result:  result,
		SentAt:  now.UTC().Format(time.RFC3339),
	}
}

func (n *notifierService) addSignature(req *http.Request, body []byte) {
	if strings.TrimSpace(n.secret) == "" {
		return
	}
	ts := n.now().UTC().Unix()
	req.Header.Set("X-Classifyq-Timestamp", fmt.Sprintf("%d", ts))
	req.Header.Set("X-Classifyq-Signature", Sign(n.secret, ts, body))
}

// Sign returns the hex HMAC-SHA256 of "<ts>.<body>".
func Sign(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
