// Package api exposes the ledger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/yelinaung/cashflow-ledger/internal/api/middleware"
	"gitlab.com/yelinaung/cashflow-ledger/internal/api/response"
	"gitlab.com/yelinaung/cashflow-ledger/internal/authz"
	"gitlab.com/yelinaung/cashflow-ledger/internal/extraction"
	"gitlab.com/yelinaung/cashflow-ledger/internal/ledger"
	"gitlab.com/yelinaung/cashflow-ledger/internal/logger"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gitlab.com/yelinaung/cashflow-ledger/internal/normalize"
	"gitlab.com/yelinaung/cashflow-ledger/internal/repository"
	"gitlab.com/yelinaung/cashflow-ledger/internal/transcription"
)

// CompanyHeader selects the tenant of a request.
const CompanyHeader = "X-Company-ID"

// MaxAudioBytes caps uploaded audio, matching the Whisper upload limit.
const MaxAudioBytes = 25 << 20

// PermissionLister returns an actor's role and permission table. *authz.Guard satisfies it.
type PermissionLister interface {
	Permissions(ctx context.Context, actorID, tenantID string) (authz.PermissionView, error)
}

// TenantLister returns the companies an actor belongs to.
type TenantLister interface {
	ListTenants(ctx context.Context, actorID string) ([]models.Company, error)
}

// Handler serves the ledger endpoints.
type Handler struct {
	svc     *ledger.Service
	perms   PermissionLister
	tenants TenantLister
}

// NewHandler creates a Handler.
func NewHandler(svc *ledger.Service, perms PermissionLister, tenants TenantLister) *Handler {
	return &Handler{svc: svc, perms: perms, tenants: tenants}
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateRecord stores a record submitted as structured fields.
func (h *Handler) CreateRecord(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	fields, ok := bindFields(c)
	if !ok {
		return
	}

	out, err := h.svc.CreateStructured(c.Request.Context(), actor, fields)
	if err != nil {
		writeError(c, err, outcomeData(out))
		return
	}
	response.Created(c, out)
}

// CreateFromTranscript extracts and stores a record from free text.
func (h *Handler) CreateFromTranscript(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	out, err := h.svc.CreateFromTranscript(c.Request.Context(), actor, req.Transcript)
	if err != nil {
		writeError(c, err, outcomeData(out))
		return
	}
	response.Created(c, out)
}

// CreateFromAudio transcribes an uploaded "audio" file and stores the record.
func (h *Handler) CreateFromAudio(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxAudioBytes+1<<20)
	file, err := c.FormFile("audio")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", "multipart field \"audio\" is required")
		return
	}
	if file.Size > MaxAudioBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, "too_large", "audio file is too large")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", "cannot read audio file")
		return
	}
	defer func() { _ = f.Close() }()

	audio, err := io.ReadAll(io.LimitReader(f, MaxAudioBytes))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", "cannot read audio file")
		return
	}

	mimeType := file.Header.Get("Content-Type")
	out, err := h.svc.CreateFromAudio(c.Request.Context(), actor, audio, mimeType)
	if err != nil {
		writeError(c, err, outcomeData(out))
		return
	}
	response.Created(c, out)
}

// ReplaceRecord overwrites a record with new fields.
func (h *Handler) ReplaceRecord(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}
	fields, ok := bindFields(c)
	if !ok {
		return
	}

	out, err := h.svc.Replace(c.Request.Context(), actor, id, fields)
	if err != nil {
		writeError(c, err, outcomeData(out))
		return
	}
	response.Success(c, out)
}

// DeleteRecord removes a record.
func (h *Handler) DeleteRecord(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		writeError(c, err, nil)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// ListRecords returns the records visible to the actor.
func (h *Handler) ListRecords(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	q, ok := bindQuery(c)
	if !ok {
		return
	}

	records, err := h.svc.List(c.Request.Context(), actor, q)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	response.Success(c, records)
}

// Stats returns totals over the visible records.
func (h *Handler) Stats(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	q, ok := bindQuery(c)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), actor, q)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	response.Success(c, stats)
}

// StatsChart returns a PNG pie chart of visible expenses by counterparty.
func (h *Handler) StatsChart(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	q, ok := bindQuery(c)
	if !ok {
		return
	}

	png, err := h.svc.StatsChart(c.Request.Context(), actor, q)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// Permissions returns the actor's role and permission table in the company.
func (h *Handler) Permissions(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	view, err := h.perms.Permissions(c.Request.Context(), actor.ID, actor.TenantID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	response.Success(c, view)
}

// Companies lists the companies the actor belongs to. It needs no company header.
func (h *Handler) Companies(c *gin.Context) {
	actorID := c.GetString(middleware.ActorKey)
	if actorID == "" {
		response.Error(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}

	companies, err := h.tenants.ListTenants(c.Request.Context(), actorID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	if companies == nil {
		companies = []models.Company{}
	}
	response.Success(c, companies)
}

func actorOf(c *gin.Context) (ledger.Actor, bool) {
	actorID := c.GetString(middleware.ActorKey)
	if actorID == "" {
		response.Error(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return ledger.Actor{}, false
	}
	tenantID := c.GetHeader(CompanyHeader)
	if tenantID == "" {
		response.Error(c, http.StatusBadRequest, "missing_company", CompanyHeader+" header is required")
		return ledger.Actor{}, false
	}
	return ledger.Actor{ID: actorID, TenantID: tenantID}, true
}

// bindFields decodes a JSON object keeping numbers exact.
func bindFields(c *gin.Context) (normalize.Fields, bool) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()

	var fields normalize.Fields
	if err := dec.Decode(&fields); err != nil || fields == nil {
		response.Error(c, http.StatusBadRequest, "bad_request", "body must be a JSON object")
		return nil, false
	}
	return fields, true
}

func recordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "bad_request", "invalid record id")
		return 0, false
	}
	return id, true
}

func bindQuery(c *gin.Context) (ledger.Query, bool) {
	q, err := parseQuery(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", err.Error())
		return ledger.Query{}, false
	}
	return q, true
}

func parseQuery(c *gin.Context) (ledger.Query, error) {
	var q ledger.Query

	scope, err := models.ParseScope(c.Query("scope"))
	if err != nil {
		return q, err
	}
	q.Scope = scope

	if kind := models.Kind(c.Query("kind")); kind != "" {
		if !kind.Valid() {
			return q, fmt.Errorf("invalid kind %q", kind)
		}
		q.Kind = kind
	}

	for name, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(models.DateLayout, v)
		if err != nil {
			return q, fmt.Errorf("invalid %s date %q, want %s", name, v, models.DateLayout)
		}
		*dst = t
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, errors.New("to is before from")
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > repository.DefaultListLimit*10 {
			return q, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = limit
	}
	return q, nil
}

// outcomeData keeps a nil outcome from becoming a non-nil interface.
func outcomeData(out *ledger.Outcome) any {
	if out == nil {
		return nil
	}
	return out
}

// writeError maps service errors to HTTP statuses. data, when set, is sent
// along with validation failures.
func writeError(c *gin.Context, err error, data any) {
	var verr *ledger.ValidationError

	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		response.Error(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.Is(err, authz.ErrNotMember):
		response.Error(c, http.StatusForbidden, "not_member", "not a member of this company")
	case errors.Is(err, authz.ErrInsufficientPermission):
		response.Error(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.As(err, &verr):
		if data == nil {
			data = verr.Report
		}
		response.ErrorWithData(c, http.StatusUnprocessableEntity, "invalid_record", verr.Report.Summary(), data)
	case errors.Is(err, repository.ErrRecordNotFound):
		response.Error(c, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, ledger.ErrNoData):
		response.Error(c, http.StatusNotFound, "no_data", "no records to chart")
	case errors.Is(err, repository.ErrDuplicateDocument):
		response.Error(c, http.StatusConflict, "duplicate_document", err.Error())
	case errors.Is(err, extraction.ErrEmptyTranscript), errors.Is(err, transcription.ErrEmptyAudio):
		response.Error(c, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, transcription.ErrNoSpeech):
		response.Error(c, http.StatusUnprocessableEntity, "no_speech", "no speech recognized")
	case errors.Is(err, extraction.ErrProcessingFailed), errors.Is(err, transcription.ErrTranscriptionFailed):
		response.Error(c, http.StatusBadGateway, "processing_failed", "processing failed, please retry")
	case errors.Is(err, ledger.ErrNotConfigured):
		response.Error(c, http.StatusServiceUnavailable, "unavailable", "this ingestion path is not enabled")
	default:
		logger.FromContext(c.Request.Context()).Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
