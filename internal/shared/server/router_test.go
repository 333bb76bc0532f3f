package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/shared/config"
)

func TestRateLimitGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/api/v1/analysis/run", "ANALYSIS"},
		{http.MethodPost, "/api/v1/imports", "IMPORT"},
		{http.MethodGet, "/api/v1/imports", "DEFAULT"},
		{http.MethodPatch, "/api/v1/proposals/p1", "DEFAULT"},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(tt.method, tt.path, nil)
		if got := rateLimitGroup(c); got != tt.want {
			t.Fatalf("%s %s: got %s, want %s", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestRateLimitRulesUppercasesGroups(t *testing.T) {
	rules := rateLimitRules(map[string]config.RateLimit{"analysis": {Rate: 0.5, Burst: 1}})
	if r, ok := rules["ANALYSIS"]; !ok || r.Burst != 1 || r.Rate != 0.5 {
		t.Fatalf("unexpected rules %+v", rules)
	}
}

func TestHealthIsPublic(t *testing.T) {
	r := NewRouter(RouterDeps{Config: config.Config{ReviewerRole: "tuning:review"}})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAddr(t *testing.T) {
	for in, want := range map[string]string{"": ":8080", "9090": ":9090", ":7000": ":7000"} {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
