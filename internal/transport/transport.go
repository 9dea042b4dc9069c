// Package transport implements the Primary/Secondary bundle-submission
// channels of spec §4.5. Both real transports share one HTTP-POST shape;
// PaperTransport never leaves the process, for the PAPER_MODE flag.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rawblock/triarb-engine/pkg/models"
)

// Transport is the uniform submit operation every channel exposes.
type Transport interface {
	Submit(ctx context.Context, job models.SubmissionJob) models.SubmitOutcome
	Name() string
}

type submitRequest struct {
	JobID        string   `json:"jobId"`
	Transactions [][]byte `json:"transactions"`
}

type submitResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// HTTPTransport posts a bundle to an external relay over HTTP. url points
// at the relay's submit endpoint; deadline bounds a single attempt.
type HTTPTransport struct {
	name     string
	url      string
	deadline time.Duration
	client   *http.Client
}

// NewHTTPTransport builds an HTTP-backed transport with its own client so
// Primary and Secondary never share connection pools.
func NewHTTPTransport(name, url string, deadline time.Duration) *HTTPTransport {
	return &HTTPTransport{
		name:     name,
		url:      url,
		deadline: deadline,
		client:   &http.Client{Timeout: deadline},
	}
}

func (t *HTTPTransport) Name() string { return t.name }

// Submit posts job's built transactions and classifies the response into
// one of the four outcome kinds spec §4.5 names.
func (t *HTTPTransport) Submit(ctx context.Context, job models.SubmissionJob) models.SubmitOutcome {
	ctx, cancel := context.WithTimeout(ctx, t.deadline)
	defer cancel()

	body, err := json.Marshal(submitRequest{JobID: job.ID, Transactions: job.BuiltTransactions})
	if err != nil {
		return models.SubmitOutcome{Kind: models.OutcomeTransportError, Err: fmt.Errorf("%s: marshal bundle: %w", t.name, err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return models.SubmitOutcome{Kind: models.OutcomeTransportError, Err: fmt.Errorf("%s: build request: %w", t.name, err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return models.SubmitOutcome{Kind: models.OutcomeTransportError, Err: fmt.Errorf("%s: %w", t.name, err)}
	}
	defer resp.Body.Close()

	var decoded submitResponse
	_ = json.NewDecoder(resp.Body).Decode(&decoded)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.SubmitOutcome{Kind: models.OutcomeRateLimited, Reason: "rate_limited"}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return models.SubmitOutcome{Kind: models.OutcomeAccepted, ID: decoded.ID}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		reason := decoded.Error
		if reason == "" {
			reason = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return models.SubmitOutcome{Kind: models.OutcomeRejected, Reason: reason}
	default:
		return models.SubmitOutcome{Kind: models.OutcomeTransportError, Err: fmt.Errorf("%s: http %d", t.name, resp.StatusCode)}
	}
}

// PaperTransport logs what would have been submitted without sending
// anything, for PAPER_MODE.
type PaperTransport struct {
	name string
	log  *zap.Logger
}

// NewPaperTransport builds a no-op transport that always "accepts".
func NewPaperTransport(name string, log *zap.Logger) *PaperTransport {
	return &PaperTransport{name: name, log: log}
}

func (t *PaperTransport) Name() string { return t.name }

func (t *PaperTransport) Submit(_ context.Context, job models.SubmissionJob) models.SubmitOutcome {
	t.log.Info("paper mode: would submit bundle",
		zap.String("transport", t.name),
		zap.String("jobId", job.ID),
		zap.Float64("reservedBase", job.ReservedBase),
		zap.Float64("netProfit", job.Cost.NetProfit),
	)
	return models.SubmitOutcome{Kind: models.OutcomeAccepted, ID: "paper-" + job.ID}
}
