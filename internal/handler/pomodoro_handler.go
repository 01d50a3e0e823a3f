package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "focusify/internal/errors"
	"focusify/internal/middleware"
	"focusify/internal/service"
)

type PomodoroHandler struct {
	pomodoroService *service.PomodoroService
}

type versionRequest struct {
	BaseVersion int `json:"baseVersion"`
}

type switchModeRequest struct {
	BaseVersion int    `json:"baseVersion"`
	Mode        string `json:"mode"`
}

type updateSettingsRequest struct {
	BaseVersion   int   `json:"baseVersion"`
	AutoStartNext *bool `json:"autoStartNext"`
}

// versionedAction is a service operation that only needs a base version.
type versionedAction func(ctx context.Context, userID string, baseVersion int) (*service.StateView, *apperrors.APIError)

func NewPomodoroHandler(pomodoroService *service.PomodoroService) *PomodoroHandler {
	return &PomodoroHandler{pomodoroService: pomodoroService}
}

func (h *PomodoroHandler) GetState(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeError(c, apperrors.Unauthorized(""))
		return
	}

	state, apiErr := h.pomodoroService.GetState(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PomodoroHandler) Start(c *gin.Context) {
	h.versioned(c, h.pomodoroService.Start)
}

func (h *PomodoroHandler) Pause(c *gin.Context) {
	h.versioned(c, h.pomodoroService.Pause)
}

func (h *PomodoroHandler) Reset(c *gin.Context) {
	h.versioned(c, h.pomodoroService.Reset)
}

func (h *PomodoroHandler) ResetCycle(c *gin.Context) {
	h.versioned(c, h.pomodoroService.ResetCycle)
}

func (h *PomodoroHandler) NewDay(c *gin.Context) {
	h.versioned(c, h.pomodoroService.NewDay)
}

func (h *PomodoroHandler) Clear(c *gin.Context) {
	h.versioned(c, h.pomodoroService.Clear)
}

func (h *PomodoroHandler) SwitchMode(c *gin.Context) {
	var req switchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return
	}
	if req.BaseVersion <= 0 {
		writeError(c, apperrors.BadRequest("invalid_base_version", "baseVersion is required"))
		return
	}

	userID := middleware.UserID(c)
	state, apiErr := h.pomodoroService.SwitchMode(c.Request.Context(), userID, req.Mode, req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PomodoroHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return
	}
	if req.BaseVersion <= 0 {
		writeError(c, apperrors.BadRequest("invalid_base_version", "baseVersion is required"))
		return
	}

	userID := middleware.UserID(c)
	state, apiErr := h.pomodoroService.UpdateSettings(c.Request.Context(), userID, service.UpdateSettingsInput{
		BaseVersion:   req.BaseVersion,
		AutoStartNext: req.AutoStartNext,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PomodoroHandler) GetHistory(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeError(c, apperrors.Unauthorized(""))
		return
	}

	limit := 50
	rawLimit := c.Query("limit")
	if rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil {
			limit = parsed
		}
	}

	sessions, apiErr := h.pomodoroService.GetHistory(c.Request.Context(), userID, limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *PomodoroHandler) TodayStats(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeError(c, apperrors.Unauthorized(""))
		return
	}

	stats, apiErr := h.pomodoroService.TodayStats(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *PomodoroHandler) versioned(c *gin.Context, action versionedAction) {
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return
	}
	if req.BaseVersion <= 0 {
		writeError(c, apperrors.BadRequest("invalid_base_version", "baseVersion is required"))
		return
	}

	userID := middleware.UserID(c)
	state, apiErr := action(c.Request.Context(), userID, req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
