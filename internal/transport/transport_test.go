package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rawblock/triarb-engine/pkg/models"
)

func job() models.SubmissionJob {
	return models.SubmissionJob{ID: "job-1", BuiltTransactions: [][]byte{[]byte("ix1")}}
}

func TestHTTPTransport_Accepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"bundle-1"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport("primary", srv.URL, time.Second)
	out := tr.Submit(context.Background(), job())
	if out.Kind != models.OutcomeAccepted || out.ID != "bundle-1" {
		t.Fatalf("expected accepted bundle-1, got %+v", out)
	}
}

func TestHTTPTransport_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := NewHTTPTransport("primary", srv.URL, time.Second)
	out := tr.Submit(context.Background(), job())
	if out.Kind != models.OutcomeRateLimited {
		t.Fatalf("expected rate limited, got %+v", out)
	}
}

func TestHTTPTransport_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad bundle"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport("primary", srv.URL, time.Second)
	out := tr.Submit(context.Background(), job())
	if out.Kind != models.OutcomeRejected || out.Reason != "bad bundle" {
		t.Fatalf("expected rejected with reason, got %+v", out)
	}
}

func TestHTTPTransport_TransportErrorOnUnreachable(t *testing.T) {
	tr := NewHTTPTransport("primary", "http://127.0.0.1:1", 100*time.Millisecond)
	out := tr.Submit(context.Background(), job())
	if out.Kind != models.OutcomeTransportError {
		t.Fatalf("expected transport error, got %+v", out)
	}
}

func TestPaperTransport_AlwaysAccepts(t *testing.T) {
	tr := NewPaperTransport("paper", zap.NewNop())
	out := tr.Submit(context.Background(), job())
	if out.Kind != models.OutcomeAccepted {
		t.Fatalf("expected accepted, got %+v", out)
	}
}
