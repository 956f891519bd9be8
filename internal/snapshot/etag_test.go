package snapshot

import (
	"errors"
	"testing"

	"github.com/construxio/sitehub-backend/internal/platform/apierr"
)

func TestETagRoundTrip(t *testing.T) {
	etag := ETagOf(3)
	if etag != `"3"` {
		t.Fatalf("ETagOf(3) = %s, want %q", etag, `"3"`)
	}
	version, err := ParseETag(etag)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if version != 3 {
		t.Fatalf("got version %d, want 3", version)
	}
}

func TestParseETagWeakValidator(t *testing.T) {
	version, err := ParseETag(`W/"12"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if version != 12 {
		t.Fatalf("got version %d, want 12", version)
	}
}

func TestParseETagGarbage(t *testing.T) {
	for _, raw := range []string{"", "abc", `"abc"`, `"`} {
		if _, err := ParseETag(raw); err == nil {
			t.Fatalf("ParseETag(%q) accepted garbage", raw)
		} else if !errors.Is(err, apierr.ErrVersionConflict) {
			t.Fatalf("ParseETag(%q) error %v, want version conflict", raw, err)
		}
	}
}
