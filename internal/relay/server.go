package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/remote"
	"github.com/roach88/shellsync/internal/store"
	"github.com/roach88/shellsync/internal/syncer"
)

const (
	// defaultPullLimit applies when GET /records has no limit.
	defaultPullLimit = 100

	// maxPushBatch bounds records per POST /records.
	maxPushBatch = remote.MaxPullLimit

	userKey = "user"
)

// Server is the relay HTTP server.
type Server struct {
	db     *store.SQLite
	tokens map[string]string
	logger *slog.Logger
	router *gin.Engine
}

// New creates a relay over db. tokens maps auth tokens to users.
func New(db *store.SQLite, tokens map[string]string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		db:     db,
		tokens: tokens,
		logger: logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	authed := r.Group("/", s.authenticate())
	authed.GET("/status", s.getStatus)
	authed.POST("/records", s.postRecords)
	authed.GET("/records", s.getRecords)

	s.router = r
	return s
}

// OrphanedUsers returns the stored accounts that no configured token
// authenticates. Their records stay in the database but cannot be reached.
func (s *Server) OrphanedUsers(ctx context.Context) ([]string, error) {
	users, err := s.db.Users(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(s.tokens))
	for _, user := range s.tokens {
		known[user] = true
	}

	var orphaned []string
	for _, user := range users {
		if !known[user] {
			orphaned = append(orphaned, user)
		}
	}
	return orphaned, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("relay shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("relay request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"user", c.GetString(userKey),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || scheme != remote.AuthScheme || token == "" {
			abort(c, http.StatusUnauthorized, "missing or malformed Authorization header")
			return
		}
		user, ok := s.tokens[token]
		if !ok {
			abort(c, http.StatusUnauthorized, "unknown token")
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// remoteFor returns the authenticated user's partition.
func (s *Server) remoteFor(c *gin.Context) *syncer.StoreRemote {
	return syncer.NewStoreRemote(s.db.ForUser(c.GetString(userKey)))
}

func (s *Server) getStatus(c *gin.Context) {
	status, err := s.remoteFor(c).Status(c.Request.Context())
	if err != nil {
		s.serverError(c, "status", err)
		return
	}
	c.JSON(http.StatusOK, remote.StatusResponse{Hosts: status})
}

func (s *Server) postRecords(c *gin.Context) {
	var req remote.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(req.Records) > maxPushBatch {
		abort(c, http.StatusBadRequest, fmt.Sprintf("batch of %d exceeds %d records", len(req.Records), maxPushBatch))
		return
	}
	for i, r := range req.Records {
		if err := validateEnvelope(r); err != nil {
			abort(c, http.StatusBadRequest, fmt.Sprintf("record %d: %v", i, err))
			return
		}
	}

	results, err := s.remoteFor(c).Push(c.Request.Context(), req.Records)
	if err != nil {
		s.serverError(c, "push", err)
		return
	}

	rejected := 0
	for _, res := range results {
		if !res.Accepted {
			rejected++
		}
	}
	if rejected > 0 {
		s.logger.Warn("relay rejected records",
			"user", c.GetString(userKey),
			"rejected", rejected,
			"batch", len(results),
		)
	}
	c.JSON(http.StatusOK, remote.PushResponse{Results: results})
}

func (s *Server) getRecords(c *gin.Context) {
	host, err := record.ParseHostID(c.Query("host"))
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid host")
		return
	}
	tag := record.Tag(c.Query("tag"))
	if tag == "" {
		abort(c, http.StatusBadRequest, "missing tag")
		return
	}

	start, err := strconv.ParseInt(c.DefaultQuery("start_idx", "0"), 10, 64)
	if err != nil || start < 0 {
		abort(c, http.StatusBadRequest, "invalid start_idx")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPullLimit)))
	if err != nil || limit <= 0 {
		abort(c, http.StatusBadRequest, "invalid limit")
		return
	}

	recs, err := s.remoteFor(c).Pull(c.Request.Context(), host, tag, start, limit)
	if err != nil {
		s.serverError(c, "pull", err)
		return
	}
	if recs == nil {
		recs = []record.Record{}
	}
	c.JSON(http.StatusOK, remote.RecordsResponse{Records: recs})
}

// validateEnvelope checks the shape of a pushed record. Content and chain
// linkage are checked by the store.
func validateEnvelope(r record.Record) error {
	switch {
	case r.ID == "":
		return errors.New("missing id")
	case r.Tag == "":
		return errors.New("missing tag")
	case r.Idx < 0:
		return errors.New("negative idx")
	case r.Data.Scheme == "":
		return errors.New("missing data.scheme")
	case len(r.Data.Ciphertext) == 0:
		return errors.New("missing data.ciphertext")
	}
	host, err := record.ParseHostID(string(r.Host))
	if err != nil {
		return errors.New("invalid host")
	}
	if host != r.Host {
		return fmt.Errorf("host %q is not canonical, use %q", r.Host, host)
	}
	return nil
}

func (s *Server) serverError(c *gin.Context, op string, err error) {
	s.logger.Error("relay request failed", "op", op, "user", c.GetString(userKey), "error", err)
	abort(c, http.StatusInternalServerError, "internal error")
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, remote.ErrorResponse{Error: msg})
}
