package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"yunmun/api/internal/auth"
	"yunmun/api/internal/export"
	"yunmun/api/internal/logging"
	"yunmun/api/internal/trackchanges"
)

type HTTPServer struct {
	service     *Service
	tokenSecret []byte
	corsOrigin  string
	logger      *slog.Logger
}

func NewHTTPServer(service *Service, tokenSecret []byte, corsOrigin string, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{service: service, tokenSecret: tokenSecret, corsOrigin: corsOrigin, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{s.corsOrigin}),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
		handlers.ExposedHeaders([]string{"X-Request-ID", "Content-Disposition"}),
	)
	return s.withMiddleware(cors(s.routes()))
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "Method not allowed", nil)
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	api.HandleFunc("/me", s.authed(s.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/diff", s.authed(s.handleDiff)).Methods(http.MethodPost)
	api.HandleFunc("/diff/materialize", s.authed(s.handleMaterialize)).Methods(http.MethodPost)

	api.HandleFunc("/works", s.authed(s.handleListWorks)).Methods(http.MethodGet)
	api.HandleFunc("/works", s.authed(s.handleCreateWork)).Methods(http.MethodPost)

	work := api.PathPrefix("/works/{workId}").Subrouter()
	work.HandleFunc("", s.authed(s.handleGetWork)).Methods(http.MethodGet)
	work.HandleFunc("/activities", s.authed(s.handleActivities)).Methods(http.MethodGet)
	work.HandleFunc("/search", s.authed(s.handleSearch)).Methods(http.MethodGet)
	work.HandleFunc("/export", s.authed(s.handleExport)).Methods(http.MethodGet)
	work.HandleFunc("/export", s.authed(s.handlePublishExport)).Methods(http.MethodPost)
	work.HandleFunc("/archive", s.authed(s.handleArchiveHistory)).Methods(http.MethodGet)
	work.HandleFunc("/glossary", s.authed(s.handleListGlossary)).Methods(http.MethodGet)
	work.HandleFunc("/glossary", s.authed(s.handleAddGlossaryTerm)).Methods(http.MethodPost)
	work.HandleFunc("/contracts", s.authed(s.handleListContracts)).Methods(http.MethodGet)
	work.HandleFunc("/contracts", s.authed(s.handleCreateContract)).Methods(http.MethodPost)
	work.HandleFunc("/contracts/{contractId}/complete", s.authed(s.handleCompleteContract)).Methods(http.MethodPost)

	work.HandleFunc("/chapters", s.authed(s.handleListChapters)).Methods(http.MethodGet)
	work.HandleFunc("/chapters", s.authed(s.handleCreateChapter)).Methods(http.MethodPost)
	chapter := work.PathPrefix("/chapters/{number:[0-9]+}").Subrouter()
	chapter.HandleFunc("", s.authed(s.handleGetChapter)).Methods(http.MethodGet)
	chapter.HandleFunc("", s.authed(s.handlePatchChapter)).Methods(http.MethodPatch)
	chapter.HandleFunc("", s.authed(s.handleDeleteChapter)).Methods(http.MethodDelete)
	chapter.HandleFunc("/retranslate", s.authed(s.handleRetranslate)).Methods(http.MethodPost)
	chapter.HandleFunc("/track-changes", s.authed(s.handleReviewTrackChanges)).Methods(http.MethodGet)
	chapter.HandleFunc("/track-changes/apply", s.authed(s.handleApplyTrackChanges)).Methods(http.MethodPost)
	chapter.HandleFunc("/snapshots", s.authed(s.handleListSnapshots)).Methods(http.MethodGet)
	chapter.HandleFunc("/snapshots", s.authed(s.handleCreateSnapshot)).Methods(http.MethodPost)
	chapter.HandleFunc("/snapshots/{snapshotId}/restore", s.authed(s.handleRestoreSnapshot)).Methods(http.MethodPost)
	return r
}

type actorHandler func(w http.ResponseWriter, r *http.Request, actor auth.Actor)

// authed resolves the bearer token into an actor before calling next.
func (s *HTTPServer) authed(next actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		next(w, r, actor)
	}
}

func (s *HTTPServer) requireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required", nil)
		return auth.Actor{}, false
	}
	actor, err := auth.ActorFromToken(s.tokenSecret, token)
	if err != nil {
		s.writeMappedError(w, r, err)
		return auth.Actor{}, false
	}
	return actor, true
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	writeJSON(w, http.StatusOK, map[string]any{"userId": actor.UserID, "name": actor.Name, "role": actor.Role})
}

func (s *HTTPServer) handleDiff(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	var body struct {
		Baseline  string `json:"baseline"`
		Candidate string `json:"candidate"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	view, err := s.service.ComputeDiff(body.Baseline, body.Candidate)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleMaterialize(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	var body struct {
		Chunks    []trackchanges.Chunk          `json:"chunks"`
		Decisions map[int]trackchanges.Decision `json:"decisions"`
		Policy    trackchanges.Policy           `json:"policy"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	result, err := s.service.MaterializeResult(body.Chunks, body.Decisions, body.Policy)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *HTTPServer) handleListWorks(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	works, err := s.service.ListWorks(r.Context(), actor)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"works": mapViews(works, workView)})
}

func (s *HTTPServer) handleCreateWork(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	var input CreateWorkInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	work, err := s.service.CreateWork(r.Context(), actor, input)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"work": workView(work)})
}

func (s *HTTPServer) handleGetWork(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	work, err := s.service.GetWork(r.Context(), actor, mux.Vars(r)["workId"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"work": workView(work)})
}

func (s *HTTPServer) handleActivities(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	limit := queryInt(r, "limit", 50)
	activities, err := s.service.ListActivities(r.Context(), actor, mux.Vars(r)["workId"], limit)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": mapViews(activities, activityView)})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	response, err := s.service.SearchChapters(r.Context(), actor, mux.Vars(r)["workId"], q, queryInt(r, "limit", 20))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	result, err := s.service.ExportWork(r.Context(), actor, mux.Vars(r)["workId"], format)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handlePublishExport(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	var body struct {
		Format string `json:"format"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	format, err := export.ParseFormat(body.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	artifact, err := s.service.PublishExport(r.Context(), actor, mux.Vars(r)["workId"], format)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"artifact": artifact})
}

func (s *HTTPServer) handleArchiveHistory(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	history, err := s.service.ArchiveHistory(r.Context(), actor, mux.Vars(r)["workId"], queryInt(r, "limit", 20))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": history})
}

func (s *HTTPServer) handleListGlossary(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	terms, err := s.service.ListGlossary(r.Context(), actor, mux.Vars(r)["workId"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"terms": terms})
}

func (s *HTTPServer) handleAddGlossaryTerm(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	var input AddGlossaryTermInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	term, err := s.service.AddGlossaryTerm(r.Context(), actor, mux.Vars(r)["workId"], input)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"term": glossaryTermView(term)})
}

func (s *HTTPServer) handleListContracts(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	contracts, err := s.service.ListContracts(r.Context(), actor, mux.Vars(r)["workId"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contracts": mapViews(contracts, contractView)})
}

func (s *HTTPServer) handleCreateContract(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	var input CreateContractInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	contract, err := s.service.CreateContract(r.Context(), actor, mux.Vars(r)["workId"], input)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"contract": contractView(contract)})
}

func (s *HTTPServer) handleCompleteContract(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	vars := mux.Vars(r)
	contract, err := s.service.CompleteContract(r.Context(), actor, vars["workId"], vars["contractId"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contract": contractView(contract)})
}

func (s *HTTPServer) handleListChapters(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	chapters, err := s.service.ListChapters(r.Context(), actor, mux.Vars(r)["workId"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": mapViews(chapters, chapterSummaryView)})
}

func (s *HTTPServer) handleCreateChapter(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	var input CreateChapterInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	chapter, err := s.service.CreateChapter(r.Context(), actor, mux.Vars(r)["workId"], input)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"chapter": chapterView(chapter)})
}

func (s *HTTPServer) handleGetChapter(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	workID, number, ok := chapterVars(w, r)
	if !ok {
		return
	}
	chapter, err := s.service.GetChapter(r.Context(), actor, workID, number)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapter": chapterView(chapter)})
}

func (s *HTTPServer) handlePatchChapter(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	workID, number, ok := chapterVars(w, r)
	if !ok {
		return
	}
	var patch ChapterPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	chapter, err := s.service.ApplyChapterMutation(r.Context(), actor, workID, number, patch)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapter": chapterView(chapter)})
}

func (s *HTTPServer) handleDeleteChapter(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	workID, number, ok := chapterVars(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteChapter(r.Context(), actor, workID, number); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *HTTPServer) handleRetranslate(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	workID, number, ok := chapterVars(w, r)
	if !ok {
		return
	}
	var input RetranslateInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	chapter, err := s.service.RetranslateChapter(r.Context(), actor, workID, number, input)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapter": chapterView(chapter)})
}

func (s *HTTPServer) handleReviewTrackChanges(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	workID, number, ok := chapterVars(w, r)
	if !ok {
		return
	}
	view, err := s.service.ReviewTrackChanges(r.Context(), actor, workID, number)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleApplyTrackChanges(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	workID, number, ok := chapterVars(w, r)
	if !ok {
		return
	}
	var input ApplyTrackChangesInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	chapter, err := s.service.ApplyTrackChanges(r.Context(), actor, workID, number, input)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapter": chapterView(chapter)})
}

func (s *HTTPServer) handleListSnapshots(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	workID, number, ok := chapterVars(w, r)
	if !ok {
		return
	}
	snapshots, err := s.service.ListSnapshots(r.Context(), actor, workID, number)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": mapViews(snapshots, snapshotView)})
}

func (s *HTTPServer) handleCreateSnapshot(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	workID, number, ok := chapterVars(w, r)
	if !ok {
		return
	}
	var input CreateSnapshotInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	snapshot, err := s.service.CreateSnapshot(r.Context(), actor, workID, number, input)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"snapshot": snapshotView(snapshot)})
}

func (s *HTTPServer) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	workID, number, ok := chapterVars(w, r)
	if !ok {
		return
	}
	var input RestoreSnapshotInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	chapter, err := s.service.RestoreSnapshot(r.Context(), actor, workID, number, mux.Vars(r)["snapshotId"], input)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapter": chapterView(chapter)})
}

func chapterVars(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	vars := mux.Vars(r)
	number, err := strconv.Atoi(vars["number"])
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid chapter number", nil)
		return "", 0, false
	}
	return vars["workId"], number, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		r = r.WithContext(logging.WithRequestID(r.Context(), requestID))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)
		writer.Header().Set("Cache-Control", "no-store")
		writer.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// writeMappedError classifies err and logs the ones that are not the
// caller's fault.
func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), s.logger).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, CodeNotFound, "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, CodeUnauthenticated, "Unauthorized", nil
	}
	return http.StatusInternalServerError, CodeServerError, "Server error", nil
}
