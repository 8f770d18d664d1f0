package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/generallabsolutions/crm-backend/internal/activities"
	"github.com/generallabsolutions/crm-backend/internal/audit"
	"github.com/generallabsolutions/crm-backend/internal/leads"
	"github.com/generallabsolutions/crm-backend/internal/notes"
	"github.com/generallabsolutions/crm-backend/internal/tasks"
)

const dateOnlyFormat = "2006-01-02"

type leadRequestPayload struct {
	Name        string           `json:"name"`
	Company     string           `json:"company"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone"`
	Position    string           `json:"position"`
	Source      string           `json:"source"`
	Status      string           `json:"status"`
	Responsible string           `json:"responsible"`
	Score       *int             `json:"score"`
	Temperature string           `json:"temperature"`
	Value       *decimal.Decimal `json:"value"`
	Notes       string           `json:"notes"`
	LastContact *time.Time       `json:"last_contact"`
}

func (p leadRequestPayload) toInput() leads.Input {
	return leads.Input{
		Name:        p.Name,
		Company:     p.Company,
		Email:       p.Email,
		Phone:       p.Phone,
		Position:    p.Position,
		Source:      p.Source,
		Status:      p.Status,
		Responsible: p.Responsible,
		Score:       p.Score,
		Temperature: p.Temperature,
		Value:       p.Value,
		Notes:       p.Notes,
		LastContact: p.LastContact,
	}
}

type statusRequestPayload struct {
	Status string `json:"status"`
}

func (h *httpHandler) handleListLeads(c *gin.Context) {
	listed, err := h.leads.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listed)
}

func (h *httpHandler) handleCreateLead(c *gin.Context) {
	var request leadRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.leads.Create(c.Request.Context(), h.actor(c), request.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateLead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var request leadRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.leads.Update(c.Request.Context(), h.actor(c), id, request.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteLead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.leads.Delete(c.Request.Context(), h.actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleLeadStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var request statusRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.leads.SetStatus(c.Request.Context(), h.actor(c), id, request.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type taskRequestPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	LeadID      *uint      `json:"lead_id"`
	Assignee    string     `json:"assignee"`
}

func (h *httpHandler) handleListTasks(c *gin.Context) {
	listed, err := h.tasks.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listed)
}

func (h *httpHandler) handleCreateTask(c *gin.Context) {
	var request taskRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.tasks.Create(c.Request.Context(), h.actor(c), tasks.Input{
		Title:       request.Title,
		Description: request.Description,
		DueDate:     request.DueDate,
		Priority:    request.Priority,
		Status:      request.Status,
		LeadID:      request.LeadID,
		Assignee:    request.Assignee,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleTaskStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var request statusRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.tasks.UpdateStatus(c.Request.Context(), h.actor(c), id, request.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), h.actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type activityRequestPayload struct {
	LeadID      *uint      `json:"lead_id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (h *httpHandler) handleListActivities(c *gin.Context) {
	listed, err := h.activities.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listed)
}

func (h *httpHandler) handleCreateActivity(c *gin.Context) {
	var request activityRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.activities.Create(c.Request.Context(), h.actor(c), activities.Input{
		LeadID:      request.LeadID,
		Type:        request.Type,
		Title:       request.Title,
		Description: request.Description,
		ScheduledAt: request.ScheduledAt,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type noteRequestPayload struct {
	LeadID  uint   `json:"lead_id"`
	Content string `json:"content"`
	Color   string `json:"color"`
	UserID  string `json:"user_id"`
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	var leadID uint
	if raw := c.Query("lead_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_lead_id"})
			return
		}
		leadID = uint(parsed)
	}
	listed, err := h.notes.List(c.Request.Context(), leadID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listed)
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var request noteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.notes.Create(c.Request.Context(), h.actor(c), notes.Input{
		LeadID:  request.LeadID,
		Content: request.Content,
		Color:   request.Color,
		UserID:  request.UserID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.notes.Delete(c.Request.Context(), h.actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type logRequestPayload struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UserID      string `json:"user_id"`
	LeadID      *uint  `json:"lead_id"`
}

func (h *httpHandler) handleListLogs(c *gin.Context) {
	filter := audit.Filter{Type: c.Query("type")}

	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse(dateOnlyFormat, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_start_date"})
			return
		}
		filter.Start = &parsed
	}
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := time.Parse(dateOnlyFormat, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_end_date"})
			return
		}
		filter.End = &parsed
	}

	entries, err := h.audit.Query(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *httpHandler) handleCreateLog(c *gin.Context) {
	var request logRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	userID := request.UserID
	if userID == "" {
		userID = h.actor(c)
	}
	stored, err := h.audit.Append(c.Request.Context(), audit.Entry{
		Type:        request.Type,
		Title:       request.Title,
		Description: request.Description,
		UserID:      userID,
		LeadID:      request.LeadID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	if h.users == nil {
		c.JSON(http.StatusOK, []struct{}{})
		return
	}
	listed, err := h.users.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listed)
}

func parseID(c *gin.Context) (uint, bool) {
	parsed, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return uint(parsed), true
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, leads.ErrInvalidLead),
		errors.Is(err, tasks.ErrInvalidTask),
		errors.Is(err, activities.ErrInvalidActivity),
		errors.Is(err, notes.ErrInvalidNote),
		errors.Is(err, audit.ErrInvalidEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, leads.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, leads.ErrNotFound),
		errors.Is(err, tasks.ErrNotFound),
		errors.Is(err, notes.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
