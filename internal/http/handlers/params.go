package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/construxio/sitehub-backend/internal/http/response"
)

// pathID parses a UUID path parameter, responding 400 on garbage.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "INVALID_IDENTIFIER",
			fmt.Errorf("path parameter %q is not a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

// actorID reads the acting user from the X-Actor-Id header. Authentication is
// handled upstream at the gateway; this service only records who acted.
func actorID(c *gin.Context) (uuid.UUID, bool) {
	actor, err := uuid.Parse(c.GetHeader("X-Actor-Id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "MISSING_ACTOR",
			fmt.Errorf("X-Actor-Id header is required"))
		return uuid.Nil, false
	}
	return actor, true
}

// queryIDs parses the comma-separated ids query parameter, responding 400 on
// garbage. An absent parameter yields an empty list.
func queryIDs(c *gin.Context) ([]uuid.UUID, bool) {
	var ids []uuid.UUID
	for _, raw := range strings.Split(c.Query("ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "INVALID_IDENTIFIER",
				fmt.Errorf("ids entry %q is not a UUID", raw))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// ifMatch returns the caller's version token, empty when the caller opted out
// of the optimistic check.
func ifMatch(c *gin.Context) string {
	return c.GetHeader("If-Match")
}
