package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextWithQuery(""))
	if p.Limit != DefaultLimit {
		t.Errorf("expected limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextWithQuery("limit=25&offset=50"))
	if p.Limit != 25 || p.Offset != 50 {
		t.Errorf("expected 25/50, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	p := FromContext(contextWithQuery("limit=50000&offset=-3"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit %d, got %d", MaxLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestParams_Window(t *testing.T) {
	tests := []struct {
		name       string
		p          Params
		total      int
		start, end int
	}{
		{"first page", Params{Limit: 10}, 25, 0, 10},
		{"last page", Params{Limit: 10, Offset: 20}, 25, 20, 25},
		{"past the end", Params{Limit: 10, Offset: 40}, 25, 25, 25},
		{"no limit", Params{Offset: 5}, 25, 5, 25},
		{"empty", Params{Limit: 10}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.p.Window(tt.total)
			if start != tt.start || end != tt.end {
				t.Errorf("expected [%d,%d), got [%d,%d)", tt.start, tt.end, start, end)
			}
		})
	}
}

func TestParams_HasNext(t *testing.T) {
	if !(Params{Limit: 10}).HasNext(11) {
		t.Error("expected next page")
	}
	if (Params{Limit: 10}).HasNext(10) {
		t.Error("expected no next page")
	}
}

func TestPage(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	got := Page(items, Params{Limit: 2, Offset: 1})
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("unexpected page %v", got)
	}
}
