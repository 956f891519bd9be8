package snapshot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/construxio/sitehub-backend/internal/platform/apierr"
)

// ETagOf wraps a snapshot version into the opaque token callers echo back via
// If-Match to prove which state they observed.
func ETagOf(version int64) string {
	return strconv.Quote(strconv.FormatInt(version, 10))
}

// ParseETag unwraps a version token. Weak validator prefixes are accepted and
// ignored since the token content is an exact version either way.
func ParseETag(tag string) (int64, error) {
	tag = strings.TrimSpace(strings.TrimPrefix(tag, "W/"))
	if unquoted, err := strconv.Unquote(tag); err == nil {
		tag = unquoted
	}
	version, err := strconv.ParseInt(tag, 10, 64)
	if err != nil || version < 0 {
		return 0, apierr.Conflict(fmt.Errorf("malformed version token %q: %w", tag, apierr.ErrVersionConflict))
	}
	return version, nil
}
