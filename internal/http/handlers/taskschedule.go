package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/construxio/sitehub-backend/internal/http/response"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/services"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type TaskScheduleHandler struct {
	log       *logger.Logger
	schedules services.TaskScheduleService
}

func NewTaskScheduleHandler(log *logger.Logger, schedules services.TaskScheduleService) *TaskScheduleHandler {
	return &TaskScheduleHandler{
		log:       log.With("handler", "TaskScheduleHandler"),
		schedules: schedules,
	}
}

func (h *TaskScheduleHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	row, etag, err := h.schedules.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", etag)
	response.RespondOK(c, row)
}

func (h *TaskScheduleHandler) List(c *gin.Context) {
	ids, ok := queryIDs(c)
	if !ok {
		return
	}
	rows, err := h.schedules.GetMany(c.Request.Context(), ids)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	items := make([]gin.H, len(rows))
	for i, row := range rows {
		items[i] = gin.H{"schedule": row, "eTag": snapshot.ETagOf(row.Version)}
	}
	response.RespondOK(c, gin.H{"schedules": items})
}

func (h *TaskScheduleHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var in services.TaskScheduleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	out, err := h.schedules.Create(c.Request.Context(), in, actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", out.ETag)
	c.JSON(http.StatusCreated, out.Snapshot)
}

func (h *TaskScheduleHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var in services.TaskScheduleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	out, err := h.schedules.Update(c.Request.Context(), id, in, ifMatch(c), actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", out.ETag)
	response.RespondOK(c, out.Snapshot)
}

func (h *TaskScheduleHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.schedules.Delete(c.Request.Context(), id, ifMatch(c), actor); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
