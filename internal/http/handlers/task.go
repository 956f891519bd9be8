package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/construxio/sitehub-backend/internal/command"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/http/response"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/services"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type TaskHandler struct {
	log   *logger.Logger
	tasks services.TaskService
}

func NewTaskHandler(log *logger.Logger, tasks services.TaskService) *TaskHandler {
	return &TaskHandler{
		log:   log.With("handler", "TaskHandler"),
		tasks: tasks,
	}
}

func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	row, etag, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", etag)
	response.RespondOK(c, row)
}

func (h *TaskHandler) List(c *gin.Context) {
	ids, ok := queryIDs(c)
	if !ok {
		return
	}
	rows, err := h.tasks.GetMany(c.Request.Context(), ids)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	items := make([]gin.H, len(rows))
	for i, row := range rows {
		items[i] = gin.H{"task": row, "eTag": snapshot.ETagOf(row.Version)}
	}
	response.RespondOK(c, gin.H{"tasks": items})
}

func (h *TaskHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var in services.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	out, err := h.tasks.Create(c.Request.Context(), in, actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", out.ETag)
	c.JSON(http.StatusCreated, out.Snapshot)
}

func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var in services.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	out, err := h.tasks.Update(c.Request.Context(), id, in, ifMatch(c), actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", out.ETag)
	response.RespondOK(c, out.Snapshot)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), id, ifMatch(c), actor); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) Send(c *gin.Context)   { h.transition(c, h.tasks.Send) }
func (h *TaskHandler) Start(c *gin.Context)  { h.transition(c, h.tasks.Start) }
func (h *TaskHandler) Close(c *gin.Context)  { h.transition(c, h.tasks.Close) }
func (h *TaskHandler) Accept(c *gin.Context) { h.transition(c, h.tasks.Accept) }

func (h *TaskHandler) transition(c *gin.Context, do func(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	out, err := do(c.Request.Context(), id, ifMatch(c), actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("ETag", out.ETag)
	response.RespondOK(c, out.Snapshot)
}
