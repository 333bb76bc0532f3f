package proposals_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/applier"
	"tuning-backend/internal/proposals"
	"tuning-backend/internal/settings"
)

func strPtr(s string) *string { return &s }

type env struct {
	router   *gin.Engine
	repo     *proposals.MemoryRepo
	settings *settings.MemoryStore
	id       string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := proposals.NewMemoryRepo()
	store := settings.NewMemoryStore()
	store.Put(settings.Setting{ProfileID: "default", Name: "tone", Value: strPtr("casual")})
	store.Put(settings.Setting{ProfileID: "default", Name: "length", Value: strPtr("long")})

	svc := &proposals.Service{Repo: repo}
	p, err := svc.Create(context.Background(), proposals.Proposal{
		ProfileID: "default",
		Recommendations: []proposals.Recommendation{
			{Setting: "tone", Action: proposals.ActionSet, From: strPtr("casual"), To: strPtr("formal")},
			{Setting: "length", Action: proposals.ActionSet, From: strPtr("long"), To: strPtr("short")},
			{Setting: "format", Action: proposals.ActionAppend, To: strPtr("use bullets")},
		},
		WindowStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		CreatedBy:   "analyzer",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	review := &proposals.Review{
		Svc:     svc,
		Applier: &applier.Service{UoW: applier.NewMemoryUnitOfWork(repo, store)},
	}
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("userId", "reviewer-1") })
	proposals.NewHandler(svc, review, store).RegisterRoutes(router.Group("/api/v1"))
	return &env{router: router, repo: repo, settings: store, id: p.ID}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, resp.Body.String())
	}
	return body.Error.Code
}

func TestGetProposalWithReview(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/api/v1/proposals/"+e.id+"?selected=0,2", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Proposal proposals.Proposal `json:"proposal"`
		Review   proposals.View     `json:"review"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Proposal.ID != e.id || len(body.Review.Rows) != 3 || len(body.Review.Selected) != 2 {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}

	if resp := e.do(t, http.MethodGet, "/api/v1/proposals/"+e.id+"?selected=a", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad selection, got %d", resp.Code)
	}
	if resp := e.do(t, http.MethodGet, "/api/v1/proposals/missing", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestListProposals(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/api/v1/proposals?status=pending&profileId=default", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Proposals []proposals.Proposal `json:"proposals"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(body.Proposals))
	}

	if resp := e.do(t, http.MethodGet, "/api/v1/proposals?status=archived", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.Code)
	}
	if resp := e.do(t, http.MethodGet, "/api/v1/proposals?limit=-1", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", resp.Code)
	}
}

func TestPatchAcceptAndApplySubset(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPatch, "/api/v1/proposals/"+e.id, map[string]any{
		"status":                  "accepted",
		"apply":                   true,
		"selectedRecommendations": []int{0, 2},
		"expectedStatus":          "pending",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Proposal proposals.Proposal     `json:"proposal"`
		Applied  *proposals.ApplyResult `json:"applied"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Proposal.Status != proposals.StatusApplied || body.Applied == nil || len(body.Applied.Changes) != 2 {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if st, _ := e.settings.Get("default", "length"); *st.Value != "long" {
		t.Fatalf("unselected setting written: %q", *st.Value)
	}
	if st, _ := e.settings.Get("default", "format"); st.Value == nil || *st.Value != "use bullets" {
		t.Fatalf("format not written: %+v", st)
	}

	audit := e.do(t, http.MethodGet, "/api/v1/proposals/"+e.id+"/audit", nil)
	var auditBody struct {
		Entries []settings.AuditEntry `json:"entries"`
	}
	if err := json.Unmarshal(audit.Body.Bytes(), &auditBody); err != nil {
		t.Fatal(err)
	}
	if len(auditBody.Entries) != 2 || auditBody.Entries[0].AppliedBy != "reviewer-1" {
		t.Fatalf("unexpected audit %s", audit.Body.String())
	}
}

func TestPatchRejectThenApplyConflicts(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPatch, "/api/v1/proposals/"+e.id, map[string]any{"status": "rejected", "expectedStatus": "pending"})
	if resp.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = e.do(t, http.MethodPatch, "/api/v1/proposals/"+e.id, map[string]any{
		"status": "applied", "selectedRecommendations": []int{0}, "expectedStatus": "pending",
	})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "invalid_proposal_state" {
		t.Fatalf("code = %s", code)
	}

	resp = e.do(t, http.MethodPatch, "/api/v1/proposals/"+e.id, map[string]any{"status": "applied", "selectedRecommendations": []int{0}})
	if code := errorCode(t, resp); resp.Code != http.StatusConflict || code != "invalid_proposal_state" {
		t.Fatalf("expected 409 invalid_proposal_state, got %d %s", resp.Code, code)
	}
}

func TestPatchErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{name: "empty selection", body: map[string]any{"status": "accepted", "selectedRecommendations": []int{}}, status: http.StatusBadRequest, code: "empty_selection"},
		{name: "out of range", body: map[string]any{"status": "accepted", "selectedRecommendations": []int{7}}, status: http.StatusBadRequest, code: "index_out_of_range"},
		{name: "duplicate", body: map[string]any{"status": "accepted", "selectedRecommendations": []int{1, 1}}, status: http.StatusBadRequest, code: "duplicate_index"},
		{name: "pending status", body: map[string]any{"status": "pending"}, status: http.StatusBadRequest, code: "validation_error"},
		{name: "unknown expected", body: map[string]any{"status": "rejected", "expectedStatus": "done"}, status: http.StatusBadRequest, code: "validation_error"},
		{name: "reject with apply", body: map[string]any{"status": "rejected", "apply": true}, status: http.StatusBadRequest, code: "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			resp := e.do(t, http.MethodPatch, "/api/v1/proposals/"+e.id, tt.body)
			if resp.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, resp.Code, resp.Body.String())
			}
			if code := errorCode(t, resp); code != tt.code {
				t.Fatalf("code = %s, want %s", code, tt.code)
			}
		})
	}
}

func TestPatchApplyDrift(t *testing.T) {
	e := newEnv(t)
	e.settings.Put(settings.Setting{ProfileID: "default", Name: "length", Value: strPtr("medium")})

	resp := e.do(t, http.MethodPatch, "/api/v1/proposals/"+e.id, map[string]any{"status": "applied", "selectedRecommendations": []int{0, 1}})
	if code := errorCode(t, resp); resp.Code != http.StatusConflict || code != "setting_drift" {
		t.Fatalf("expected 409 setting_drift, got %d %s", resp.Code, code)
	}
	if st, _ := e.settings.Get("default", "tone"); *st.Value != "casual" {
		t.Fatalf("tone written despite rollback: %q", *st.Value)
	}
	p, _ := e.repo.Get(context.Background(), e.id)
	if p.Status != proposals.StatusPending {
		t.Fatalf("status = %s", p.Status)
	}
}

func TestPatchDryRunKeepsStatus(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPatch, "/api/v1/proposals/"+e.id, map[string]any{"status": "applied", "dryRun": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	p, _ := e.repo.Get(context.Background(), e.id)
	if p.Status != proposals.StatusPending {
		t.Fatalf("dry run moved status to %s", p.Status)
	}
	if st, _ := e.settings.Get("default", "tone"); *st.Value != "casual" {
		t.Fatalf("dry run wrote tone: %q", *st.Value)
	}
}
