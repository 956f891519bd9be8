package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/construxio/sitehub-backend/internal/http/response"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/services"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type MilestoneHandler struct {
	log        *logger.Logger
	milestones services.MilestoneService
}

func NewMilestoneHandler(log *logger.Logger, milestones services.MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{
		log:        log.With("handler", "MilestoneHandler"),
		milestones: milestones,
	}
}

func (h *MilestoneHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	row, etag, err := h.milestones.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", etag)
	response.RespondOK(c, row)
}

func (h *MilestoneHandler) List(c *gin.Context) {
	ids, ok := queryIDs(c)
	if !ok {
		return
	}
	rows, err := h.milestones.GetMany(c.Request.Context(), ids)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	items := make([]gin.H, len(rows))
	for i, row := range rows {
		items[i] = gin.H{"milestone": row, "eTag": snapshot.ETagOf(row.Version)}
	}
	response.RespondOK(c, gin.H{"milestones": items})
}

func (h *MilestoneHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var in services.MilestoneInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	out, err := h.milestones.Create(c.Request.Context(), in, actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", out.ETag)
	c.JSON(http.StatusCreated, out.Snapshot)
}

func (h *MilestoneHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var in services.MilestoneInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	out, err := h.milestones.Update(c.Request.Context(), id, in, ifMatch(c), actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", out.ETag)
	response.RespondOK(c, out.Snapshot)
}

func (h *MilestoneHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.milestones.Delete(c.Request.Context(), id, ifMatch(c), actor); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
