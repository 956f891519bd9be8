package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/construxio/sitehub-backend/internal/batch"
	"github.com/construxio/sitehub-backend/internal/http/response"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/services"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type ProjectHandler struct {
	log        *logger.Logger
	projects   services.ProjectService
	reschedule *batch.RescheduleCoordinator
}

func NewProjectHandler(log *logger.Logger, projects services.ProjectService, reschedule *batch.RescheduleCoordinator) *ProjectHandler {
	return &ProjectHandler{
		log:        log.With("handler", "ProjectHandler"),
		projects:   projects,
		reschedule: reschedule,
	}
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	row, etag, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", etag)
	response.RespondOK(c, row)
}

func (h *ProjectHandler) List(c *gin.Context) {
	ids, ok := queryIDs(c)
	if !ok {
		return
	}
	rows, err := h.projects.GetMany(c.Request.Context(), ids)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	items := make([]gin.H, len(rows))
	for i, row := range rows {
		items[i] = gin.H{"project": row, "eTag": snapshot.ETagOf(row.Version)}
	}
	response.RespondOK(c, gin.H{"projects": items})
}

func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var in services.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	out, err := h.projects.Create(c.Request.Context(), in, actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", out.ETag)
	c.JSON(http.StatusCreated, out.Snapshot)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var in services.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	out, err := h.projects.Update(c.Request.Context(), id, in, ifMatch(c), actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", out.ETag)
	response.RespondOK(c, out.Snapshot)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.projects.Delete(c.Request.Context(), id, ifMatch(c), actor); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandler) Reschedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var in struct {
		Days         int         `json:"days" binding:"required"`
		TaskIDs      []uuid.UUID `json:"taskIds"`
		MilestoneIDs []uuid.UUID `json:"milestoneIds"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	result, err := h.reschedule.Execute(c.Request.Context(), batch.Operation{
		ProjectID:    id,
		Days:         in.Days,
		TaskIDs:      in.TaskIDs,
		MilestoneIDs: in.MilestoneIDs,
		Actor:        actor,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, result)
}
