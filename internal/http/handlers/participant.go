package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/construxio/sitehub-backend/internal/http/response"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/services"
)

type ParticipantHandler struct {
	log          *logger.Logger
	participants services.ParticipantService
}

func NewParticipantHandler(log *logger.Logger, participants services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{
		log:          log.With("handler", "ParticipantHandler"),
		participants: participants,
	}
}

func (h *ParticipantHandler) Get(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	row, err := h.participants.Get(c.Request.Context(), userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, row)
}

func (h *ParticipantHandler) List(c *gin.Context) {
	ids, ok := queryIDs(c)
	if !ok {
		return
	}
	rows, err := h.participants.GetMany(c.Request.Context(), ids)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"participants": rows})
}
