// 本文件用于提供查询 工单操作 阈值调整与导出的 HTTP 接口
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prod-watch/internal/config"
	"prod-watch/internal/export"
	"prod-watch/internal/logger"
	"prod-watch/internal/models"
	"prod-watch/internal/query"
	"prod-watch/internal/report"
	"prod-watch/internal/service"
	"prod-watch/internal/ticket"
)

// Server 封装 HTTP 服务
type Server struct {
	httpServer *http.Server
}

type handler struct {
	monitor *service.Monitor
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// NewServer 构建供看板与脚本调用的 HTTP 服务
func NewServer(cfg *models.Config, monitor *service.Monitor) *Server {
	srv := &http.Server{
		Addr:         cfg.APIBind,
		Handler:      NewHandler(monitor),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return &Server{httpServer: srv}
}

// NewHandler 注册全部路由
func NewHandler(monitor *service.Monitor) http.Handler {
	h := &handler{monitor: monitor}
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitor.Metrics().Handler())
	mux.HandleFunc("/api/health", h.health)
	mux.HandleFunc("/api/query", h.query)
	mux.HandleFunc("/api/query/impact.xlsx", h.exportImpact)
	mux.HandleFunc("/api/refresh", h.refresh)
	mux.HandleFunc("/api/tickets", h.tickets)
	mux.HandleFunc("/api/tickets/export.xlsx", h.exportTickets)
	mux.HandleFunc("/api/tickets/", h.ticketAction)
	mux.HandleFunc("/api/rules", h.rules)
	return withCORS(mux)
}

// Start 异步启动 HTTP 服务
func (s *Server) Start() {
	go func() {
		logger.Info("API 服务监听 %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API 服务异常退出: %v", err)
		}
	}()
}

// Shutdown 优雅关闭 HTTP 服务
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"ok":          true,
		"cachedFiles": h.monitor.CachedFiles(),
		"ticketFile":  h.monitor.Tickets().Path(),
	}
	if last, ok := h.monitor.LastRefresh(); ok {
		payload["lastRefresh"] = last
	}
	if stats, ok := h.monitor.Tickets().BackendStats(); ok {
		payload["ticketStore"] = stats
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	req, err := parseQueryRequest(r)
	if err != nil {
		writeReport(w, report.NewError("query", err))
		return
	}
	writeReport(w, h.monitor.Dispatcher().Dispatch(req))
}

func (h *handler) exportImpact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	req, err := parseQueryRequest(r)
	if err != nil {
		writeReport(w, report.NewError(report.TypeAlarmImpact, err))
		return
	}
	req.Type = report.TypeAlarmImpact
	out := h.monitor.Dispatcher().Dispatch(req)
	impact, ok := out.(report.AlarmImpact)
	if !ok {
		writeReport(w, out)
		return
	}
	data, err := export.ImpactXLSX(impact)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeXLSX(w, fmt.Sprintf("alarm-impact-%s-%s.xlsx", impact.Range.Start, impact.Range.End), data)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	result, ok := h.monitor.RefreshOnce(service.TriggerManual)
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "refresh already running"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) tickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeReport(w, h.monitor.Dispatcher().Dispatch(query.Request{
		Type: report.TypeWarningTickets,
		View: r.URL.Query().Get("view"),
	}))
}

func (h *handler) exportTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	view, err := ticket.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	now := h.monitor.Now()
	data, err := export.TicketsXLSX(h.monitor.Tickets().List(view, now), h.monitor.Location())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeXLSX(w, fmt.Sprintf("warning-tickets-%s.xlsx", now.In(h.monitor.Location()).Format("20060102-1504")), data)
}

// ticketAction 处理 POST /api/tickets/{ack|ignore|process}
func (h *handler) ticketAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	action, err := ticket.ParseAction(strings.TrimPrefix(r.URL.Path, "/api/tickets/"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	var req struct {
		Fingerprint string `json:"fingerprint"`
		Until       string `json:"until"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Fingerprint) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	var until time.Time
	if raw := strings.TrimSpace(req.Until); raw != "" {
		if until, err = time.Parse(time.RFC3339, raw); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "until must be RFC3339"})
			return
		}
	}
	rec, err := h.monitor.Tickets().Apply(action, strings.TrimSpace(req.Fingerprint), until, h.monitor.Now())
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ticket.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	logger.Info("工单操作: %s %s -> %s", action, rec.Fingerprint, rec.Status)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"ticket": rec,
	})
}

func (h *handler) rules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.monitor.Rules())
	case http.MethodPut, http.MethodPost:
		// 以当前阈值为底 允许只提交部分字段
		rules := h.monitor.Rules()
		if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		if err := config.ValidateRules(rules); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		applied, err := h.monitor.UpdateRules(rules)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":    true,
			"rules": applied,
		})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func parseQueryRequest(r *http.Request) (query.Request, error) {
	q := r.URL.Query()
	req := query.Request{
		Type:   q.Get("type"),
		Date:   q.Get("date"),
		Start:  q.Get("start"),
		End:    q.Get("end"),
		Window: q.Get("window"),
		View:   q.Get("view"),
	}
	threshold, err := query.ParseThreshold(q.Get("threshold"))
	if err != nil {
		return req, err
	}
	req.Threshold = threshold
	if raw := strings.TrimSpace(q.Get("topN")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return req, fmt.Errorf("%w: topN 格式错误: %s", report.ErrInvalidRequest, raw)
		}
		req.TopN = n
	}
	return req, nil
}

// writeReport 错误结果返回 400 其余返回 200
func writeReport(w http.ResponseWriter, out report.Report) {
	status := http.StatusOK
	if report.IsError(out) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
