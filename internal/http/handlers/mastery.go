package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"
	"github.com/yungbote/neurobridge-mastery/internal/http/response"
	"github.com/yungbote/neurobridge-mastery/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

type MasteryHandler struct {
	log     *logger.Logger
	mastery services.MasteryService
}

func NewMasteryHandler(log *logger.Logger, mastery services.MasteryService) *MasteryHandler {
	return &MasteryHandler{log: log.With("handler", "MasteryHandler"), mastery: mastery}
}

func requestUser(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return rd.UserID, true
}

// POST /mastery/attempts
func (h *MasteryHandler) RecordAttempt(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req services.MasteryAttemptInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.mastery.RecordAttempt(c.Request.Context(), userID, req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GET /mastery/records?skill_type=
func (h *MasteryHandler) ListRecords(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	recs, err := h.mastery.ListRecords(c.Request.Context(), userID, c.Query("skill_type"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"records": recs})
}

// GET /mastery/records/:skill_type?concept_id=
func (h *MasteryHandler) GetRecord(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	rec, err := h.mastery.GetRecord(c.Request.Context(), userID, c.Param("skill_type"), c.Query("concept_id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"record": rec})
}

// GET /mastery/due
func (h *MasteryHandler) ListDueForReview(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	recs, err := h.mastery.GetSkillsDueForReview(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"records": recs})
}

// GET /mastery/practice
func (h *MasteryHandler) ListNeedingPractice(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	recs, err := h.mastery.GetSkillsNeedingPractice(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"records": recs})
}

// GET /mastery/mastered
func (h *MasteryHandler) ListMastered(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	recs, err := h.mastery.GetMasteredSkills(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"records": recs})
}

// GET /mastery/stats
func (h *MasteryHandler) Stats(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	stats, err := h.mastery.GetMasteryStats(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}

// GET /mastery/difficulty/:skill_type
func (h *MasteryHandler) RecommendedDifficulty(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	st, err := personalization.ParseSkillType(c.Param("skill_type"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	level, err := h.mastery.GetRecommendedDifficulty(c.Request.Context(), userID, string(st))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"skill_type": st, "difficulty_level": level})
}

// GET /mastery/attempts?limit=
func (h *MasteryHandler) ListAttempts(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be an integer"))
			return
		}
		limit = n
	}
	attempts, err := h.mastery.ListAttempts(c.Request.Context(), userID, limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"attempts": attempts})
}

// GET /mastery/export
func (h *MasteryHandler) Export(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	export, err := h.mastery.ExportUserData(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="mastery-export.json"`)
	response.RespondOK(c, export)
}
