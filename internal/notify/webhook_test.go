package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mutsynchub/poslens/internal/kpi"
	"github.com/mutsynchub/poslens/internal/pipeline"
)

func TestWebhook_PostsEnvelope(t *testing.T) {
	var gotKey string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ranAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res := pipeline.Result{
		Tenant:   "org-42",
		Analytic: "eda",
		Report:   kpi.Report{KPIs: kpi.Scalars{StockOnHand: 8}},
		RanAt:    ranAt,
	}

	wh := NewWebhook(srv.URL, "secret-key")
	if err := wh.Publish(context.Background(), res); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if gotKey != "secret-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	var env struct {
		OrgID   string          `json:"org_id"`
		Type    string          `json:"type"`
		Results json.RawMessage `json:"results"`
		LastRun time.Time       `json:"last_run"`
	}
	if err := json.Unmarshal(gotBody, &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env.OrgID != "org-42" || env.Type != "eda" || !env.LastRun.Equal(ranAt) {
		t.Errorf("envelope = %+v", env)
	}
	var rep kpi.Report
	if err := json.Unmarshal(env.Results, &rep); err != nil {
		t.Fatalf("decoding results: %v", err)
	}
	if rep.KPIs.StockOnHand != 8 {
		t.Errorf("results stock_on_hand = %d, want 8", rep.KPIs.StockOnHand)
	}
}

func TestWebhook_ErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "")
	if err := wh.Publish(context.Background(), pipeline.Result{Tenant: "t1"}); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestWebhook_DisabledWhenURLEmpty(t *testing.T) {
	wh := NewWebhook("", "key")
	if err := wh.Publish(context.Background(), pipeline.Result{Tenant: "t1"}); err != nil {
		t.Fatalf("disabled webhook returned %v", err)
	}
}
