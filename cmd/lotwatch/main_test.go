package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/lotwatch/internal/config"
	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/monitor"
	"github.com/rickgao/lotwatch/internal/writer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		want    string
		wantErr bool
	}{
		{name: "json", cfg: config.LoggingConfig{Level: "debug", Format: "json"}, want: `"level":"DEBUG"`},
		{name: "text", cfg: config.LoggingConfig{Level: "debug", Format: "text"}, want: "level=DEBUG"},
		{name: "console", cfg: config.LoggingConfig{Level: "debug", Format: "console"}, want: "probe"},
		{name: "bad level", cfg: config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: config.LoggingConfig{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(tt.cfg, &buf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			logger.Debug("probe")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func testSources(pingErr error, sessions int64) statusSources {
	return statusSources{
		backend:  "postgres",
		ping:     func(context.Context) error { return pingErr },
		monitor:  func() monitor.Stats { return monitor.Stats{Sessions: sessions, Closings: 3} },
		recorder: func() writer.Metrics { return writer.Metrics{Accepted: 3, Duplicates: 1} },
		joins:    func() (int64, int64) { return 2, 1 },
		clients:  func() int { return 0 },
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		sessions   int64
		wantCode   int
		wantStatus string
	}{
		{name: "healthy", sessions: 1, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "no session yet", sessions: 0, wantCode: http.StatusOK, wantStatus: "degraded"},
		{name: "store down", pingErr: errors.New("refused"), sessions: 1, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createHealthHandler(testSources(tt.pingErr, tt.sessions), nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
		})
	}
}

func TestStatsHandler(t *testing.T) {
	h := createHealthHandler(testSources(nil, 4), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var body struct {
		Monitor  monitor.Stats    `json:"monitor"`
		Recorder map[string]int64 `json:"recorder"`
		Joins    map[string]int64 `json:"joins"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Monitor.Sessions != 4 {
		t.Errorf("monitor.sessions = %d, want 4", body.Monitor.Sessions)
	}
	if body.Recorder["duplicates"] != 1 {
		t.Errorf("recorder.duplicates = %d, want 1", body.Recorder["duplicates"])
	}
	if body.Joins["failed"] != 1 {
		t.Errorf("joins.failed = %d, want 1", body.Joins["failed"])
	}

	// No stream handler configured.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/closings", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/ws/closings code = %d, want 404", rec.Code)
	}
}

func TestRenderClosings(t *testing.T) {
	at := time.Date(2026, 10, 18, 15, 4, 5, 0, time.UTC)
	recs := []model.ClosingRecord{
		{LotNumber: "41234567", Title: "2019 HONDA CIVIC", PriceText: "$9,750", PriceAtClose: decimal.NewFromInt(9750), Outcome: model.OutcomeSold, ObservedAt: at},
		{LotNumber: "55512345", Title: "2015 FORD F-150", Outcome: model.OutcomeApproved, ObservedAt: at},
	}

	var buf bytes.Buffer
	renderClosings(&buf, recs)
	out := buf.String()

	for _, want := range []string{"41234567", "$9,750", "approved", "2015 FORD F-150"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
