package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/security"
)

func TestReviewTypeGate(t *testing.T) {
	own := &model.Goal{ID: "g1", EmployeeID: testEmployee.ID}
	other := &model.Goal{ID: "g2", EmployeeID: "someone-else"}

	tests := []struct {
		name     string
		t        model.ReviewType
		goal     *model.Goal
		user     model.User
		wantDeny bool
	}{
		{name: "self on own goal", t: model.ReviewTypeSelf, goal: own, user: testEmployee},
		{name: "self on other goal", t: model.ReviewTypeSelf, goal: other, user: testEmployee, wantDeny: true},
		{name: "potential by employee", t: model.ReviewTypePotential, goal: own, user: testEmployee, wantDeny: true},
		{name: "potential by manager", t: model.ReviewTypePotential, goal: own, user: testManager},
		{name: "manager review by manager", t: model.ReviewTypeManager, goal: own, user: testManager},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			got := reviewTypeGate(tt.t, tt.goal, &u)
			if (got != "") != tt.wantDeny {
				t.Errorf("reviewTypeGate() = %q, wantDeny %v", got, tt.wantDeny)
			}
		})
	}
}

func TestReviewHandler_CreateRedirects(t *testing.T) {
	tests := []struct {
		name       string
		user       model.User
		reviewType string
		wantLoc    string
		wantPost   bool
	}{
		{
			name:       "manager review continues to scoring",
			user:       testManager,
			reviewType: "manager",
			wantLoc:    "/reviews/complete-manager/r-9",
			wantPost:   true,
		},
		{
			name:       "self review goes to goal analytics",
			user:       testEmployee,
			reviewType: "self",
			wantLoc:    "/analytics/goal/g1",
			wantPost:   true,
		},
		{
			name:       "manager type by employee goes back to goal",
			user:       testEmployee,
			reviewType: "manager",
			wantLoc:    "/goals/g1",
			wantPost:   true,
		},
		{
			name:       "potential by employee is refused",
			user:       testEmployee,
			reviewType: "potential",
			wantLoc:    "/goals/g1",
			wantPost:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend(t)
			b.handle("GET /api/v1/goals/g1", http.StatusOK, model.Goal{ID: "g1", EmployeeID: testEmployee.ID, Title: "Ship it"})
			b.handle("POST /api/v1/reviews/{$}", http.StatusOK, model.Review{ID: "r-9", GoalID: "g1"})

			view, err := NewRenderer(nil)
			if err != nil {
				t.Fatalf("NewRenderer() error = %v", err)
			}
			h := NewReviewHandler(view, security.NewSanitizer(), nil)

			form := url.Values{
				"goal_id":     {"g1"},
				"review_type": {tt.reviewType},
				"question_id": {"q1"},
				"answer_q1":   {"done"},
				"score_q1":    {"4"},
			}
			req := httptest.NewRequest(http.MethodPost, "/reviews/create", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req = requestWithScope(t, b, authedRecord(tt.user), req)
			w := httptest.NewRecorder()
			h.Create(w, req)

			if w.Code != http.StatusFound {
				t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusFound, w.Body.String())
			}
			if got := w.Header().Get("Location"); got != tt.wantLoc {
				t.Errorf("Location = %q, want %q", got, tt.wantLoc)
			}

			posted := false
			b.mu.Lock()
			for _, c := range b.calls {
				if c == "POST reviews/" {
					posted = true
				}
			}
			b.mu.Unlock()
			if posted != tt.wantPost {
				t.Errorf("review posted = %v, want %v", posted, tt.wantPost)
			}
		})
	}
}

func TestReviewHandler_CreateInvalidTypeRendersForm(t *testing.T) {
	b := newFakeBackend(t)
	b.handle("GET /api/v1/goals/g1", http.StatusOK, model.Goal{ID: "g1", EmployeeID: testEmployee.ID, Title: "Ship it"})

	view, err := NewRenderer(nil)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	h := NewReviewHandler(view, security.NewSanitizer(), nil)

	form := url.Values{"goal_id": {"g1"}, "review_type": {"bogus"}}
	req := httptest.NewRequest(http.MethodPost, "/reviews/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = requestWithScope(t, b, authedRecord(testEmployee), req)
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(w.Body.String(), "入力内容を確認してください") {
		t.Error("validation message not rendered")
	}
}

func TestReviewHandler_FinalizeRequiresRating(t *testing.T) {
	b := newFakeBackend(t)
	h := NewReviewHandler(nil, security.NewSanitizer(), nil)

	req := httptest.NewRequest(http.MethodPost, "/reviews/r1/final", strings.NewReader("final_feedback=ok"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = requestWithScope(t, b, authedRecord(testManager), req)
	w := httptest.NewRecorder()
	h.Finalize(w, req)

	var res Result
	decodeBody(t, w, &res)
	if res.Success {
		t.Error("Finalize succeeded without a rating")
	}
	if b.count() != 0 {
		t.Errorf("backend calls = %d, want 0", b.count())
	}
}
