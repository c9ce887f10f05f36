package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func params(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest("GET", "/?"+query, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContextDefaults(t *testing.T) {
	p := params(t, "")
	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("defaults = (%d, %d), want (%d, 0)", p.Limit, p.Offset, DefaultLimit)
	}
}

func TestFromContextExplicit(t *testing.T) {
	p := params(t, "limit=50&offset=10")
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("params = (%d, %d), want (50, 10)", p.Limit, p.Offset)
	}
}

func TestFromContextCapsLimit(t *testing.T) {
	p := params(t, "limit=5000")
	if p.Limit != MaxLimit {
		t.Errorf("limit = %d, want capped at %d", p.Limit, MaxLimit)
	}
}

func TestFromContextRejectsNegatives(t *testing.T) {
	p := params(t, "limit=-5&offset=-3")
	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("params = (%d, %d), want (%d, 0)", p.Limit, p.Offset, DefaultLimit)
	}
}

func TestNewResponseHasMore(t *testing.T) {
	r := NewResponse(nil, 45, 20, 0)
	if !r.HasMore {
		t.Error("offset 0 of 45 with limit 20 should have more")
	}
	r = NewResponse(nil, 45, 20, 40)
	if r.HasMore {
		t.Error("offset 40 of 45 with limit 20 should not have more")
	}
}

func TestNextOffset(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}
	if got := p.NextOffset(); got != 60 {
		t.Errorf("NextOffset = %d, want 60", got)
	}
	if p.HasNext(45) {
		t.Error("HasNext(45) at offset 40 limit 20 = true, want false")
	}
	if !p.HasNext(100) {
		t.Error("HasNext(100) at offset 40 limit 20 = false, want true")
	}
}
