package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/generallabsolutions/crm-backend/internal/activities"
	"github.com/generallabsolutions/crm-backend/internal/audit"
	"github.com/generallabsolutions/crm-backend/internal/leads"
	"github.com/generallabsolutions/crm-backend/internal/notes"
	"github.com/generallabsolutions/crm-backend/internal/tasks"
	"github.com/generallabsolutions/crm-backend/internal/users"
)

const (
	userIDContextKey = "crm_user_id"
	anonymousActor   = "dashboard"
)

var (
	errMissingLeadService     = errors.New("lead service dependency required")
	errMissingTaskService     = errors.New("task service dependency required")
	errMissingActivityService = errors.New("activity service dependency required")
	errMissingNoteService     = errors.New("note service dependency required")
	errMissingAuditService    = errors.New("audit service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// SessionTokenManager issues and validates dashboard session tokens.
type SessionTokenManager interface {
	IssueSessionToken(userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP layer to the domain services. Tokens, Users,
// APIKey and Feed are optional; the rest are required.
type Dependencies struct {
	Leads      *leads.Service
	Tasks      *tasks.Service
	Activities *activities.Service
	Notes      *notes.Service
	Audit      *audit.Service
	Users      *users.Service
	Tokens     SessionTokenManager
	APIKey     string
	Feed       *EventFeed
	Logger     *zap.Logger
}

// NewHTTPHandler builds the CRM REST API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Leads == nil {
		return nil, errMissingLeadService
	}
	if deps.Tasks == nil {
		return nil, errMissingTaskService
	}
	if deps.Activities == nil {
		return nil, errMissingActivityService
	}
	if deps.Notes == nil {
		return nil, errMissingNoteService
	}
	if deps.Audit == nil {
		return nil, errMissingAuditService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		leads:      deps.Leads,
		tasks:      deps.Tasks,
		activities: deps.Activities,
		notes:      deps.Notes,
		audit:      deps.Audit,
		users:      deps.Users,
		tokens:     deps.Tokens,
		apiKey:     deps.APIKey,
		feed:       deps.Feed,
		logger:     logger,
	}

	router.GET("/health", handler.handleHealth)
	router.POST("/api/auth/session", handler.handleSession)

	api := router.Group("/api")
	api.Use(handler.resolveIdentity)

	api.GET("/leads", handler.handleListLeads)
	api.POST("/leads", handler.handleCreateLead)
	api.PUT("/leads/:id", handler.handleUpdateLead)
	api.DELETE("/leads/:id", handler.handleDeleteLead)
	api.PUT("/leads/:id/status", handler.handleLeadStatus)

	api.GET("/tasks", handler.handleListTasks)
	api.POST("/tasks", handler.handleCreateTask)
	api.PUT("/tasks/:id/status", handler.handleTaskStatus)
	api.DELETE("/tasks/:id", handler.handleDeleteTask)

	api.GET("/activities", handler.handleListActivities)
	api.POST("/activities", handler.handleCreateActivity)

	api.GET("/notes", handler.handleListNotes)
	api.POST("/notes", handler.handleCreateNote)
	api.DELETE("/notes/:id", handler.handleDeleteNote)

	api.GET("/logs", handler.handleListLogs)
	api.POST("/logs", handler.handleCreateLog)

	api.GET("/users", handler.handleListUsers)
	api.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	leads      *leads.Service
	tasks      *tasks.Service
	activities *activities.Service
	notes      *notes.Service
	audit      *audit.Service
	users      *users.Service
	tokens     SessionTokenManager
	apiKey     string
	feed       *EventFeed
	logger     *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sessionRequestPayload struct {
	APIKey string `json:"api_key"`
	UserID string `json:"user_id"`
}

type sessionResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleSession(c *gin.Context) {
	if h.tokens == nil || h.apiKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sessions_disabled"})
		return
	}

	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.APIKey != h.apiKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.users != nil {
		if _, err := h.users.Find(c.Request.Context(), request.UserID); err != nil {
			h.logger.Warn("session requested for unknown user", zap.String("user_id", request.UserID))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(request.UserID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

// resolveIdentity pins the audit actor from a bearer token when one is
// presented. Requests without a token stay anonymous; only a malformed or
// forged token is rejected.
func (h *httpHandler) resolveIdentity(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Set(userIDContextKey, anonymousActor)
		c.Next()
		return
	}
	if h.tokens == nil || !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		// Expired sessions are routine; anything else deserves attention.
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) actor(c *gin.Context) string {
	if actor := c.GetString(userIDContextKey); actor != "" {
		return actor
	}
	return anonymousActor
}

// handleEvents streams audit entries to the dashboard as server-sent events.
func (h *httpHandler) handleEvents(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "events_disabled"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	stream, cleanup := h.feed.Subscribe(c.Request.Context())
	defer cleanup()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case entry := <-stream:
			c.SSEvent("log", entry)
			c.Writer.Flush()
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}
