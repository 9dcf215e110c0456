package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/benchmark"
	"github.com/sells-group/laser-ci/internal/model"
	"github.com/sells-group/laser-ci/internal/report"
	"github.com/sells-group/laser-ci/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs err and hides it from the client.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api: request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := s.store.FindProducts(r.Context(), store.ProductFilter{
		Vendor:  q.Get("vendor"),
		Segment: q.Get("segment"),
	})
	if err != nil {
		internalError(w, r, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := s.product(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	p, ok := s.product(w, r)
	if !ok {
		return
	}
	records, err := s.store.ListSpecRecords(r.Context(), p.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if m := r.URL.Query().Get("model"); m != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Model == m {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []model.CanonicalSpecRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// product loads the {id} path product, writing 404 or 500 on failure.
func (s *Server) product(w http.ResponseWriter, r *http.Request) (*model.Product, bool) {
	p, err := s.store.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return nil, false
	}
	if err != nil {
		internalError(w, r, err)
		return nil, false
	}
	return p, true
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{Status: model.RunStatus(q.Get("status"))}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = ts
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.PipelineRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	if s.opts.Collector == nil {
		writeError(w, http.StatusNotFound, "monitoring disabled")
		return
	}
	snap, err := s.opts.Collector.Collect(r.Context(), s.opts.LookbackHours)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) buildReport(w http.ResponseWriter, r *http.Request) (*benchmark.Report, bool) {
	q := r.URL.Query()
	days := s.opts.ReportDays
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return nil, false
		}
		days = n
	}
	baseline := s.opts.BaselineVendor
	if v := q.Get("baseline"); v != "" {
		baseline = v
	}

	rep, err := benchmark.MonthlyReport(r.Context(), s.store, s.now(), days, baseline)
	if err != nil {
		internalError(w, r, err)
		return nil, false
	}
	return rep, true
}

func (s *Server) monthlyReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.buildReport(w, r)
	if !ok {
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(report.Markdown(rep)))
	case "html":
		page, err := report.HTML(report.PageTitle, report.Markdown(rep))
		if err != nil {
			internalError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	default:
		writeError(w, http.StatusBadRequest, "format must be json, md or html")
	}
}

func (s *Server) benchmarkReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	rows := rep.Comparison
	if rows == nil {
		rows = []benchmark.ComparisonRow{}
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, rows)
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="benchmark.csv"`)
		if err := report.WriteCSV(w, report.ComparisonColumns, report.ComparisonRows(rows)); err != nil {
			zap.L().Error("api: write benchmark csv", zap.Error(err))
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="benchmark.xlsx"`)
		if err := report.WriteXLSX(w, "benchmark", report.ComparisonColumns, report.ComparisonRows(rows)); err != nil {
			zap.L().Error("api: write benchmark xlsx", zap.Error(err))
		}
	default:
		writeError(w, http.StatusBadRequest, "format must be json, csv or xlsx")
	}
}
