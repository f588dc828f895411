package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/usecase"
)

const maxRequestBody = 1 << 20

type Extractor interface {
	Execute(ctx context.Context, runID uuid.UUID, videoURL string) (*usecase.Extraction, error)
}

type Checker interface {
	Execute(ctx context.Context, req usecase.CheckRequest) (*entity.CheckResult, error)
}

// FileResolver maps a requested path to a staged file, rejecting anything outside the staging root.
type FileResolver interface {
	Resolve(requested string) (string, error)
}

type Server struct {
	extractor      Extractor
	checker        Checker
	files          FileResolver
	requestTimeout time.Duration
	logger         *zap.Logger
	server         *http.Server
}

func NewServer(port int, extractor Extractor, checker Checker, files FileResolver, requestTimeout time.Duration, logger *zap.Logger) *Server {
	s := &Server{
		extractor:      extractor,
		checker:        checker,
		files:          files,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /extract-frames/{$}", s.handleExtract)
	mux.HandleFunc("POST /extract-frames", s.handleExtract)
	mux.HandleFunc("POST /check-video/{$}", s.handleCheck)
	mux.HandleFunc("POST /check-video", s.handleCheck)
	mux.HandleFunc("GET /frame", s.handleFrame)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.logger.Info("http server starting", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
}

type videoRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	videoURL, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	ext, err := s.extractor.Execute(ctx, uuid.New(), videoURL)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ext.Manifest)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	videoURL, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	result, err := s.checker.Execute(ctx, usecase.CheckRequest{RunID: uuid.New(), VideoURL: videoURL})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	path, err := s.files.Resolve(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req videoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return "", false
	}
	req.URL = strings.TrimSpace(req.URL)
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		s.writeError(w, http.StatusUnprocessableEntity, "url must be an http(s) URL")
		return "", false
	}
	return req.URL, true
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func statusFor(err error) int {
	var (
		downloadErr   *entity.DownloadError
		moderationErr *entity.ModerationError
	)
	switch {
	case errors.As(err, &downloadErr):
		return http.StatusBadRequest
	case errors.As(err, &moderationErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
