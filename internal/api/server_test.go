package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/user/product-crawler/internal/monitoring"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, checks map[string]Pinger) (*httptest.Server, *monitoring.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := monitoring.NewMetrics(reg)
	status := func() Status { return Status{RunID: "run-1", CrawlName: "darazquery", Mode: "query", Written: 4, Duplicates: 1} }
	srv := httptest.NewServer(NewServer("127.0.0.1:0", reg, m, status, checks, zaptest.NewLogger(t)).Handler())
	t.Cleanup(srv.Close)
	return srv, m
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestStats(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	code, body := get(t, srv.URL+"/api/stats")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var st Status
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatal(err)
	}
	if st.RunID != "run-1" || st.Written != 4 || st.Duplicates != 1 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	srv, m := newTestServer(t, nil)
	m.IncRecords("written")
	code, body := get(t, srv.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(body, `crawler_records_total{outcome="written"} 1`) {
		t.Errorf("metrics output missing record counter:\n%s", body)
	}

	get(t, srv.URL+"/api/stats")
	_, body = get(t, srv.URL+"/metrics")
	if !strings.Contains(body, `crawler_http_requests_total{method="GET",route="/api/stats",status="200"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks map[string]Pinger
		code   int
	}{
		{"no dependencies", nil, http.StatusOK},
		{"healthy", map[string]Pinger{"redis": pinger{}}, http.StatusOK},
		{"unhealthy", map[string]Pinger{"redis": pinger{}, "postgres": pinger{errors.New("down")}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := newTestServer(t, tt.checks)
			code, body := get(t, srv.URL+"/api/health")
			if code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, code, body)
			}
		})
	}
}
