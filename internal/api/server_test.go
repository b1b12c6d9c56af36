// 本文件用于 HTTP 接口测试 覆盖查询 工单操作 阈值调整与导出
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"prod-watch/internal/metrics"
	"prod-watch/internal/models"
	"prod-watch/internal/service"
)

var fixedNow = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (http.Handler, *service.Monitor) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "2024-05-01.csv"), []byte("Hour,PASS,FAIL\n08:00,50,2\n09:00,40,10\n"), 0o644); err != nil {
		t.Fatalf("写入产量文件失败: %v", err)
	}
	alarms := "报警代码,报警内容,类别,开始时间,结束时间,持续时间(s)\nE01,气压低,气动,2024-05-01 09:00:00,2024-05-01 09:30:00,1800\n"
	if err := os.WriteFile(filepath.Join(root, "alarm_20240501.csv"), []byte(alarms), 0o644); err != nil {
		t.Fatalf("写入报警文件失败: %v", err)
	}
	cfg := &models.Config{
		ProductionRoot:    root,
		ProductionPattern: "{yyyy-MM-dd}.csv",
		AlarmRoot:         root,
		AlarmPattern:      "alarm_{yyyyMMdd}.csv",
		Timezone:          "UTC",
		TicketStore:       models.TicketStoreJSON,
		TicketFile:        filepath.Join(t.TempDir(), "tickets.json"),
		RefreshSchedule:   "@every 1h",
		WarningRules:      models.DefaultWarningRuleOptions(),
	}
	m, err := service.NewMonitor(cfg, filepath.Join(t.TempDir(), "config.yaml"), metrics.NewCollector())
	if err != nil {
		t.Fatalf("创建监控服务失败: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop() })
	m.SetClock(func() time.Time { return fixedNow })
	return NewHandler(m), m
}

func doRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("解析响应失败: %v, body=%s", err, rec.Body.String())
	}
	return out
}

func TestQuery_ProdSummary(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/api/query?type=prod.summary&date=2024-05-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望状态码 200，实际为 %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["type"] != "prod.summary" {
		t.Fatalf("期望结果类型为 prod.summary，实际为 %v", body["type"])
	}
}

func TestQuery_ErrorReport(t *testing.T) {
	h, _ := newTestHandler(t)
	cases := []string{
		"/api/query",
		"/api/query?type=unknown",
		"/api/query?type=prod.summary",
		"/api/query?type=prod.alarm.impact&start=2024-05-01&threshold=abc",
		"/api/query?type=alarm.top&date=2024-05-01&topN=-1",
	}
	for _, target := range cases {
		rec := doRequest(h, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s 期望状态码 400，实际为 %d", target, rec.Code)
		}
		if body := decodeBody(t, rec); body["type"] != "error" {
			t.Fatalf("%s 期望返回 error 结果，实际为 %v", target, body)
		}
	}
	if rec := doRequest(h, http.MethodPost, "/api/query?type=prod.summary", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("期望 POST 查询返回 405，实际为 %d", rec.Code)
	}
}

func TestTickets_ListAndActions(t *testing.T) {
	h, m := newTestHandler(t)
	if rec := doRequest(h, http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusOK {
		t.Fatalf("手动刷新失败: %d %s", rec.Code, rec.Body.String())
	}

	rec := doRequest(h, http.MethodGet, "/api/tickets", "")
	body := decodeBody(t, rec)
	if body["view"] != "pending" {
		t.Fatalf("期望默认视图为 pending，实际为 %v", body["view"])
	}
	items, _ := body["items"].([]any)
	if len(items) == 0 {
		t.Fatalf("期望刷新后存在待处理工单")
	}
	fingerprint := items[0].(map[string]any)["fingerprint"].(string)

	rec = doRequest(h, http.MethodPost, "/api/tickets/ack", `{"fingerprint":"`+fingerprint+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("确认工单失败: %d %s", rec.Code, rec.Body.String())
	}
	ticketBody := decodeBody(t, rec)["ticket"].(map[string]any)
	if ticketBody["status"] != string(models.StatusAcknowledged) {
		t.Fatalf("期望工单状态为 Acknowledged，实际为 %v", ticketBody["status"])
	}

	until := fixedNow.Add(3 * time.Hour).Format(time.RFC3339)
	rec = doRequest(h, http.MethodPost, "/api/tickets/ignore", `{"fingerprint":"`+fingerprint+`","until":"`+until+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("忽略工单失败: %d %s", rec.Code, rec.Body.String())
	}
	for _, rec := range m.Tickets().All() {
		if rec.Fingerprint == fingerprint && (rec.IgnoredUntil == nil || !rec.IgnoredUntil.Equal(fixedNow.Add(3*time.Hour))) {
			t.Fatalf("忽略截止时间错误: %+v", rec.IgnoredUntil)
		}
	}

	cases := []struct {
		target string
		body   string
		want   int
	}{
		{target: "/api/tickets/ack", body: `{"fingerprint":"missing"}`, want: http.StatusNotFound},
		{target: "/api/tickets/close", body: `{"fingerprint":"` + fingerprint + `"}`, want: http.StatusNotFound},
		{target: "/api/tickets/ack", body: `{}`, want: http.StatusBadRequest},
		{target: "/api/tickets/ignore", body: `{"fingerprint":"` + fingerprint + `","until":"tomorrow"}`, want: http.StatusBadRequest},
		{target: "/api/tickets/ignore", body: `{"fingerprint":"` + fingerprint + `","until":"2024-05-01T09:00:00Z"}`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := doRequest(h, http.MethodPost, tc.target, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s %s 期望状态码 %d，实际为 %d", tc.target, tc.body, tc.want, rec.Code)
		}
	}

	if rec := doRequest(h, http.MethodGet, "/api/tickets?view=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("未知视图应返回 400，实际为 %d", rec.Code)
	}
}

func TestExport_XLSX(t *testing.T) {
	h, m := newTestHandler(t)
	m.RefreshOnce(service.TriggerManual)

	for _, target := range []string{"/api/tickets/export.xlsx?view=all", "/api/query/impact.xlsx?start=2024-05-01&window=8-9"} {
		rec := doRequest(h, http.MethodGet, target, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s 导出失败: %d %s", target, rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
			t.Fatalf("%s 期望 XLSX 类型，实际为 %s", target, got)
		}
		if !strings.HasPrefix(rec.Body.String(), "PK") {
			t.Fatalf("%s 期望返回 zip 格式内容", target)
		}
	}
	if rec := doRequest(h, http.MethodGet, "/api/query/impact.xlsx", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("缺少区间参数应返回 400，实际为 %d", rec.Code)
	}
}

func TestRules_GetAndUpdate(t *testing.T) {
	h, m := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/api/rules", "")
	if body := decodeBody(t, rec); body["yieldThresholdPercent"] != 97.0 {
		t.Fatalf("期望默认良率阈值为 97，实际为 %v", body["yieldThresholdPercent"])
	}

	rec = doRequest(h, http.MethodPut, "/api/rules", `{"yieldThresholdPercent":85}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("更新阈值失败: %d %s", rec.Code, rec.Body.String())
	}
	rules := m.Rules()
	if rules.YieldThresholdPercent != 85 || rules.LookbackHours != models.DefaultLookbackHours {
		t.Fatalf("部分更新应只修改提交的字段，实际为 %+v", rules)
	}

	if rec := doRequest(h, http.MethodPut, "/api/rules", `{"throughputRatio":1.5}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("非法阈值应返回 400，实际为 %d", rec.Code)
	}
	if rec := doRequest(h, http.MethodPut, "/api/rules", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("非法请求体应返回 400，实际为 %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestHandler(t)
	doRequest(h, http.MethodPost, "/api/refresh", "")

	body := decodeBody(t, doRequest(h, http.MethodGet, "/api/health", ""))
	if body["ok"] != true || body["lastRefresh"] == nil {
		t.Fatalf("健康检查内容不符合预期: %v", body)
	}
	storeStats, ok := body["ticketStore"].(map[string]any)
	if !ok || storeStats["quarantined"] != 0.0 || storeStats["writeFailures"] != 0.0 {
		t.Fatalf("健康检查应包含工单存储计数: %v", body["ticketStore"])
	}

	rec := doRequest(h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望指标接口返回 200，实际为 %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pw_refresh_total{trigger="manual"} 1`) {
		t.Fatalf("指标内容缺少刷新计数: %s", rec.Body.String())
	}
}

func TestWithCORS_Preflight(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodOptions, "/api/rules", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("期望预检返回 204，实际为 %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("期望允许任意来源，实际为 %q", got)
	}
}

func TestHealth_ReportsQuarantinedTicketFile(t *testing.T) {
	h, m := newTestHandler(t)
	if err := os.WriteFile(m.Tickets().Path(), []byte("[{broken"), 0o644); err != nil {
		t.Fatalf("写入损坏工单文件失败: %v", err)
	}
	doRequest(h, http.MethodGet, "/api/tickets?view=all", "")

	body := decodeBody(t, doRequest(h, http.MethodGet, "/api/health", ""))
	storeStats, ok := body["ticketStore"].(map[string]any)
	if !ok || storeStats["quarantined"] != 1.0 {
		t.Fatalf("期望健康检查报告 1 次隔离，实际为 %v", body["ticketStore"])
	}
	if path, _ := storeStats["lastQuarantine"].(string); !strings.HasPrefix(path, m.Tickets().Path()+".bad-") {
		t.Fatalf("隔离文件路径不符合预期: %v", storeStats["lastQuarantine"])
	}
}
