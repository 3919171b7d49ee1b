package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/core/ports"
	"github.com/kirillkom/document-profiles/internal/observability/metrics"
)

const maxBodyBytes = 1 << 20

// Services groups the inbound ports the router exposes.
type Services struct {
	Profiles  ports.ProfileService
	Schema    ports.SchemaService
	Values    ports.ValueService
	Documents ports.DocumentService
	Loans     ports.LoanService
	Approvals ports.ApprovalService
}

type Options struct {
	Service           string
	RateLimitRPS      float64
	RateLimitBurst    int
	BackpressureLimit int
	BackpressureWait  time.Duration
	RequestTimeout    time.Duration
	Metrics           *metrics.HTTPServerMetrics
	Logger            *slog.Logger
}

type Router struct {
	svc     Services
	opts    Options
	logger  *slog.Logger
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(svc Services, opts Options) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{svc: svc, opts: opts, logger: logger, metrics: opts.Metrics}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)

	mux.HandleFunc("POST /v1/profiles", rt.createProfile)
	mux.HandleFunc("GET /v1/profiles", rt.listProfiles)
	mux.HandleFunc("GET /v1/profiles/{id}", rt.getProfile)
	mux.HandleFunc("PATCH /v1/profiles/{id}", rt.updateProfile)
	mux.HandleFunc("DELETE /v1/profiles/{id}", rt.deleteProfile)
	mux.HandleFunc("POST /v1/profiles/{id}/open", rt.openProfile)
	mux.HandleFunc("POST /v1/profiles/{id}/close", rt.closeProfile)
	mux.HandleFunc("POST /v1/profiles/{id}/archive", rt.archiveProfile)
	mux.HandleFunc("POST /v1/profiles/{id}/move", rt.moveProfile)
	mux.HandleFunc("GET /v1/profiles/{id}/children", rt.listChildren)
	mux.HandleFunc("POST /v1/profiles/{id}/instantiate", rt.instantiateTemplate)
	mux.HandleFunc("POST /v1/profiles/{id}/fields/copy", rt.copyFields)

	mux.HandleFunc("POST /v1/fields", rt.createField)
	mux.HandleFunc("GET /v1/fields", rt.listFields)
	mux.HandleFunc("POST /v1/fields/reorder", rt.reorderFields)
	mux.HandleFunc("GET /v1/fields/{id}", rt.getField)
	mux.HandleFunc("PUT /v1/fields/{id}", rt.updateField)
	mux.HandleFunc("DELETE /v1/fields/{id}", rt.deleteField)

	mux.HandleFunc("POST /v1/profiles/{id}/documents", rt.addDocument)
	mux.HandleFunc("GET /v1/profiles/{id}/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/profiles/{id}/documents/export", rt.exportRegister)
	mux.HandleFunc("POST /v1/profiles/{id}/documents/reorder", rt.reorderDocuments)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	mux.HandleFunc("PUT /v1/documents/{id}", rt.updateDocument)
	mux.HandleFunc("DELETE /v1/documents/{id}", rt.removeDocument)
	mux.HandleFunc("POST /v1/documents/{id}/move", rt.moveDocument)
	mux.HandleFunc("POST /v1/documents/{id}/copy", rt.copyDocument)

	mux.HandleFunc("GET /v1/documents/{id}/values", rt.getValues)
	mux.HandleFunc("PUT /v1/documents/{id}/values", rt.setValues)
	mux.HandleFunc("DELETE /v1/documents/{id}/values/{field_id}", rt.deleteValue)

	mux.HandleFunc("POST /v1/documents/{id}/approvals", rt.requestApproval)
	mux.HandleFunc("GET /v1/documents/{id}/approvals", rt.listApprovals)
	mux.HandleFunc("GET /v1/approvals/{id}", rt.getApproval)
	mux.HandleFunc("POST /v1/approvals/{id}/approve", rt.approveApproval)
	mux.HandleFunc("POST /v1/approvals/{id}/reject", rt.rejectApproval)

	mux.HandleFunc("POST /v1/loans", rt.requestLoan)
	mux.HandleFunc("GET /v1/loans", rt.listLoans)
	mux.HandleFunc("GET /v1/loans/overdue", rt.overdueLoans)
	mux.HandleFunc("GET /v1/loans/{id}", rt.getLoan)
	mux.HandleFunc("POST /v1/loans/{id}/approve", rt.approveLoan)
	mux.HandleFunc("POST /v1/loans/{id}/reject", rt.rejectLoan)
	mux.HandleFunc("POST /v1/loans/{id}/borrow", rt.borrowLoan)
	mux.HandleFunc("POST /v1/loans/{id}/return", rt.returnLoan)

	var h http.Handler = mux
	h = timeoutMiddleware(h, rt.opts.RequestTimeout)
	h = backpressureMiddleware(h, rt.opts.BackpressureLimit, rt.opts.BackpressureWait)
	h = rateLimitMiddleware(h, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	if rt.metrics != nil {
		h = rt.metrics.Middleware(rt.opts.Service, h)
	}
	h = accessLogMiddleware(rt.logger, h)
	return requestIDMiddleware(h)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	body := newErrorBody(err)
	if rt.metrics != nil {
		rt.metrics.RecordDomainError(rt.opts.Service, body.Kind)
	}
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"kind", body.Kind,
			"error", err,
		)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewFieldError(domain.ErrValidation, "request", "body", fmt.Sprintf("invalid json: %v", err))
	}
	return nil
}

// actorID returns the caller identity mutations are attributed to.
func actorID(r *http.Request) (string, error) {
	actor := strings.TrimSpace(r.Header.Get(actorIDHeader))
	if actor == "" {
		return "", domain.NewFieldError(domain.ErrValidation, "request", actorIDHeader, "actor header is required")
	}
	return actor, nil
}

func pageFromQuery(r *http.Request) (domain.PageRequest, error) {
	q := r.URL.Query()
	page := domain.PageRequest{
		Query: q.Get("q"),
		Sort:  q.Get("sort"),
	}
	var err error
	if page.Page, err = queryInt(r, "page"); err != nil {
		return page, err
	}
	if page.Size, err = queryInt(r, "size"); err != nil {
		return page, err
	}
	if page.Desc, err = queryBool(r, "desc"); err != nil {
		return page, err
	}
	return page, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.NewFieldError(domain.ErrValidation, "request", key, "must be an integer")
	}
	return n, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.NewFieldError(domain.ErrValidation, "request", key, "must be a boolean")
	}
	return b, nil
}

func queryOptional(r *http.Request, key string) *string {
	if !r.URL.Query().Has(key) {
		return nil
	}
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil
	}
	return &v
}
