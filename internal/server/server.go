// Package server wires the login service, the per-wall broker registry,
// and the WebSocket protocol together behind a gin HTTP router
// (spec.md §6, grounded on gallery-so-go-gallery's server/server.go
// CoreInit pattern).
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liquidev/rakugaki/internal/config"
	"github.com/liquidev/rakugaki/internal/login"
)

// Server is the assembled HTTP+WebSocket frontend for one rakugaki
// instance: one login.Service and one lazily-populated wall registry.
type Server struct {
	cfg      *config.Config
	log      *logrus.Entry
	login    *login.Service
	registry *registry
	devMode  bool
}

// New assembles a Server over fs, rooted at dbRoot ("db/users",
// "db/walls/<id>" below it).
func New(cfg *config.Config, fs afero.Fs, dbRoot string, log *logrus.Entry, devMode bool) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		login:    login.NewService(fs, dbRoot+"/users"),
		registry: newRegistry(fs, dbRoot+"/walls", cfg, log),
		devMode:  devMode,
	}
}

// Router builds the gin.Engine serving every HTTP endpoint spec.md §7
// names: POST /api/login, GET /static/*, GET /docs/*, the WebSocket
// upgrade at GET /api/wall, and (dev only) /auto-reload/*.
func (s *Server) Router() *gin.Engine {
	if !s.devMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), ginLogger(s.log))

	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	router.POST("/api/login", s.handleLogin)
	router.GET("/api/wall", s.handleWallSocket)
	router.Static("/static", "./static")
	router.Static("/docs", "./docs")

	if s.devMode {
		router.GET("/auto-reload/stall", handleAutoReloadStall)
		router.POST("/auto-reload/back-up", handleAutoReloadBackUp)
	}

	return router
}

// Close stops every live wall actor, flushing dirty chunks to disk.
func (s *Server) Close() {
	s.registry.closeAll()
}

func ginLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Info("request")
	}
}

type loginRequest struct {
	Nickname string `json:"nickname"`
}

type loginResponse struct {
	UserID string `json:"userId"`
	Secret string `json:"secret"`
}

type errorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// handleLogin implements `POST /api/login {nickname}` (spec.md §7):
// issues a fresh {userId, secret} pair on success.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request"})
		return
	}

	userID, secret, err := s.login.Register(req.Nickname)
	if err != nil {
		var nickErr *login.InvalidNicknameError
		if ok := asInvalidNickname(err, &nickErr); ok {
			c.JSON(http.StatusConflict, errorResponse{Error: nickErr.Reason, Suggestions: nickErr.Suggestions})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "registration failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{UserID: userID, Secret: secret})
}

func asInvalidNickname(err error, target **login.InvalidNicknameError) bool {
	if e, ok := err.(*login.InvalidNicknameError); ok {
		*target = e
		return true
	}
	return false
}

func handleAutoReloadStall(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func handleAutoReloadBackUp(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
