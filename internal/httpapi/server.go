// Package httpapi exposes the engine over a small JSON control API for the
// headless runner.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"novasight/internal/domain"
	"novasight/internal/usecase"
)

// Controller is the engine surface the API drives.
type Controller interface {
	Focus(mode domain.DetectionMode) error
	Blur()
	PressIn(ctx context.Context) error
	PressOut(ctx context.Context) (domain.VoiceCommandResult, error)
	SubmitFaceProfile(ctx context.Context, profile domain.FaceProfile) error
	CancelFaceProfile() error
	SetPermissions(camera, microphone bool)
	Status() domain.Status
}

type focusRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type permissionsRequest struct {
	Camera     *bool `json:"camera" binding:"required"`
	Microphone *bool `json:"microphone" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server routes control requests to the engine.
type Server struct {
	engine Controller
	events *EventLog
	logger *slog.Logger
}

func NewServer(engine Controller, events *EventLog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, events: events, logger: logger.With("component", "httpapi")}
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog)

	api := router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/events", s.handleEvents)
	api.POST("/focus", s.handleFocus)
	api.POST("/blur", s.handleBlur)
	api.POST("/press", s.handlePress)
	api.POST("/release", s.handleRelease)
	api.POST("/face", s.handleFaceSubmit)
	api.DELETE("/face", s.handleFaceCancel)
	api.POST("/permissions", s.handlePermissions)
	return router
}

func (s *Server) requestLog(c *gin.Context) {
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
	)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusOK, []Event{})
		return
	}
	after, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, errors.New("after must be a non-negative integer"))
		return
	}
	c.JSON(http.StatusOK, s.events.Since(after))
}

func (s *Server) handleFocus(c *gin.Context) {
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	mode := domain.DetectionMode(req.Mode)
	if !mode.Valid() {
		s.respondError(c, http.StatusBadRequest, errors.New("unknown detection mode "+strconv.Quote(req.Mode)))
		return
	}
	if err := s.engine.Focus(mode); err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleBlur(c *gin.Context) {
	s.engine.Blur()
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handlePress(c *gin.Context) {
	if err := s.engine.PressIn(c.Request.Context()); err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleRelease(c *gin.Context) {
	// The command outlives the HTTP request once recording has stopped.
	result, err := s.engine.PressOut(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleFaceSubmit(c *gin.Context) {
	var profile domain.FaceProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.SubmitFaceProfile(c.Request.Context(), profile); err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleFaceCancel(c *gin.Context) {
	if err := s.engine.CancelFaceProfile(); err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handlePermissions(c *gin.Context) {
	var req permissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	s.engine.SetPermissions(*req.Camera, *req.Microphone)
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrIncompleteProfile):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, usecase.ErrNoPendingCapture),
		errors.Is(err, usecase.ErrListeningBusy),
		errors.Is(err, usecase.ErrNoActiveRecording),
		errors.Is(err, usecase.ErrNoActiveSession):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
