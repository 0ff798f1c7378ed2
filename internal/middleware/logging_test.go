package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/miniwallet/internal/metrics"
)

// walletRoute はルーターと同じ順序でロギングとBearer認証を組んだ保護ルートを返す。
func walletRoute(logger *slog.Logger, mc metrics.MetricsCollector, inner http.HandlerFunc) http.Handler {
	return chimw.RequestID(
		NewLoggingMiddleware(logger, mc)(
			NewBearerAuthMiddleware(acceptToken("wallet-token", "demo-user"))(inner),
		),
	)
}

// logEntries はJSONログを1行ずつ解析する。
func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggingMiddleware_WalletRequests(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		handler    http.HandlerFunc
		wantStatus int
		wantLevel  string
		wantUserID string
	}{
		{
			name:  "認証済みの残高取得",
			token: "wallet-token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"confirmed":"0.12345678"}`))
			},
			wantStatus: http.StatusOK,
			wantLevel:  "INFO",
			wantUserID: "demo-user",
		},
		{
			name:       "トークン不一致は内側に届かず401",
			token:      "stale-token",
			handler:    func(w http.ResponseWriter, r *http.Request) { t.Error("handler should not run") },
			wantStatus: http.StatusUnauthorized,
			wantLevel:  "WARN",
		},
		{
			name:  "取得元の障害はERROR",
			token: "wallet-token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantStatus: http.StatusBadGateway,
			wantLevel:  "ERROR",
			wantUserID: "demo-user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			req := httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			walletRoute(logger, nil, tt.handler).ServeHTTP(httptest.NewRecorder(), req)

			entries := logEntries(t, &buf)
			if len(entries) != 1 {
				t.Fatalf("log entries = %d, want 1", len(entries))
			}
			entry := entries[0]

			if entry["msg"] != "http_request" || entry["level"] != tt.wantLevel {
				t.Errorf("msg/level = %v/%v, want http_request/%s", entry["msg"], entry["level"], tt.wantLevel)
			}
			if entry["path"] != "/api/wallet/balance" || entry["method"] != "GET" {
				t.Errorf("method/path = %v %v", entry["method"], entry["path"])
			}
			if status, _ := entry["status"].(float64); int(status) != tt.wantStatus {
				t.Errorf("status = %v, want %d", entry["status"], tt.wantStatus)
			}
			if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
				t.Errorf("duration_ms = %v", entry["duration_ms"])
			}
			if id, _ := entry["request_id"].(string); id == "" {
				t.Error("expected request_id")
			}

			got, hasUser := entry["user_id"]
			if tt.wantUserID == "" && hasUser {
				t.Errorf("user_id should be absent for rejected token, got %v", got)
			}
			if tt.wantUserID != "" && got != tt.wantUserID {
				t.Errorf("user_id = %v, want %q", got, tt.wantUserID)
			}
		})
	}
}

// TestLoggingMiddleware_QuietPathsNeedDebug はヘルスチェックの成功がINFOでは出力されないことを検証する。
func TestLoggingMiddleware_QuietPathsNeedDebug(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	var info bytes.Buffer
	NewLoggingMiddleware(slog.New(slog.NewJSONHandler(&info, nil)), nil)(ok).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if info.Len() != 0 {
		t.Errorf("health check should not be logged at INFO, got %s", info.String())
	}

	var debug bytes.Buffer
	debugLogger := slog.New(slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}))
	NewLoggingMiddleware(debugLogger, nil)(ok).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if entries := logEntries(t, &debug); len(entries) != 1 || entries[0]["level"] != "DEBUG" {
		t.Errorf("metrics scrape entries = %v, want one DEBUG entry", entries)
	}
}

// statusCountingMetrics はRecordHTTPStatusだけを記録するメトリクスのフェイク。
type statusCountingMetrics struct {
	metrics.MetricsCollector
	statuses []int
}

func (m *statusCountingMetrics) RecordHTTPStatus(code int) {
	m.statuses = append(m.statuses, code)
}

// TestLoggingMiddleware_RecordsHTTPStatusMetric は認証で弾かれたリクエストも集計されることを検証する。
func TestLoggingMiddleware_RecordsHTTPStatusMetric(t *testing.T) {
	mc := &statusCountingMetrics{}
	route := walletRoute(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), mc,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	authed := httptest.NewRequest(http.MethodPost, "/api/notifications", nil)
	authed.Header.Set("Authorization", "Bearer wallet-token")
	route.ServeHTTP(httptest.NewRecorder(), authed)
	route.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/notifications", nil))

	want := []int{http.StatusNoContent, http.StatusUnauthorized}
	if len(mc.statuses) != 2 || mc.statuses[0] != want[0] || mc.statuses[1] != want[1] {
		t.Errorf("statuses = %v, want %v", mc.statuses, want)
	}
}

func TestRequestLogLevel(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		want   slog.Level
	}{
		{"通常の成功", "/api/wallet", http.StatusOK, slog.LevelInfo},
		{"ヘルスチェックの成功", "/health", http.StatusOK, slog.LevelDebug},
		{"メトリクスの成功", "/metrics", http.StatusOK, slog.LevelDebug},
		{"ヘルスチェックでも5xxはERROR", "/health", http.StatusInternalServerError, slog.LevelError},
		{"4xxはWARN", "/api/wallet", http.StatusUnauthorized, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := requestLogLevel(tt.path, tt.status); got != tt.want {
				t.Errorf("requestLogLevel(%q, %d) = %v, want %v", tt.path, tt.status, got, tt.want)
			}
		})
	}
}
