package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mentormatch/mentormatch/internal/matching"
)

type stubMatcher struct {
	topicID          int64
	targetRole       string
	roleID           int64
	studentUserID    int64
	supervisorUserID int64
}

func (s *stubMatcher) MatchTopic(_ context.Context, topicID int64, targetRole string) *matching.TopicMatch {
	s.topicID = topicID
	s.targetRole = targetRole
	return &matching.TopicMatch{Status: "ok", TopicID: topicID, Items: []matching.CandidateItem{}}
}

func (s *stubMatcher) MatchRole(_ context.Context, roleID int64) *matching.RoleMatch {
	s.roleID = roleID
	return &matching.RoleMatch{Status: "ok", RoleID: roleID, Items: []matching.CandidateItem{}}
}

func (s *stubMatcher) MatchStudent(_ context.Context, userID int64) *matching.StudentMatch {
	s.studentUserID = userID
	return &matching.StudentMatch{Status: "ok", StudentUserID: userID, Items: []matching.RoleItem{}}
}

func (s *stubMatcher) MatchSupervisor(_ context.Context, userID int64) *matching.SupervisorMatch {
	s.supervisorUserID = userID
	return &matching.SupervisorMatch{Status: "ok", SupervisorUserID: userID, Items: []matching.TopicItem{}}
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("pool closed") }

func postForm(t *testing.T, handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMatchTopicEndpoint(t *testing.T) {
	stub := &stubMatcher{}
	handler := New(stub, okPinger{}, zap.NewNop()).Handler()

	rec := postForm(t, handler, "/api/match-topic", url.Values{
		"topic_id":    {"7"},
		"target_role": {"supervisor"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if stub.topicID != 7 || stub.targetRole != "supervisor" {
		t.Fatalf("unexpected call: topic=%d role=%s", stub.topicID, stub.targetRole)
	}

	var body matching.TopicMatch
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" || body.TopicID != 7 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Items == nil {
		t.Fatalf("expected an items array in the response")
	}
}

func TestMatchTopicEndpointRejectsBadID(t *testing.T) {
	stub := &stubMatcher{}
	handler := New(stub, okPinger{}, zap.NewNop()).Handler()

	for _, value := range []string{"", "abc", "0", "-4"} {
		rec := postForm(t, handler, "/api/match-topic", url.Values{"topic_id": {value}})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("topic_id=%q: expected 400, got %d", value, rec.Code)
		}
		var body struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Status != "error" || body.Message == "" {
			t.Fatalf("unexpected error body: %+v", body)
		}
	}
	if stub.topicID != 0 {
		t.Fatalf("expected the matcher to stay uncalled")
	}
}

func TestMatchRoleEndpoint(t *testing.T) {
	stub := &stubMatcher{}
	handler := New(stub, okPinger{}, zap.NewNop()).Handler()

	rec := postForm(t, handler, "/api/match-role", url.Values{"role_id": {"3"}})

	if rec.Code != http.StatusOK || stub.roleID != 3 {
		t.Fatalf("unexpected result: status=%d role=%d", rec.Code, stub.roleID)
	}
}

func TestMatchStudentEndpoint(t *testing.T) {
	stub := &stubMatcher{}
	handler := New(stub, okPinger{}, zap.NewNop()).Handler()

	rec := postForm(t, handler, "/api/match-student", url.Values{"student_user_id": {"55"}})

	if rec.Code != http.StatusOK || stub.studentUserID != 55 {
		t.Fatalf("unexpected result: status=%d student=%d", rec.Code, stub.studentUserID)
	}
}

func TestMatchSupervisorEndpoint(t *testing.T) {
	stub := &stubMatcher{}
	handler := New(stub, okPinger{}, zap.NewNop()).Handler()

	rec := postForm(t, handler, "/api/match-supervisor", url.Values{"supervisor_user_id": {"77"}})

	if rec.Code != http.StatusOK || stub.supervisorUserID != 77 {
		t.Fatalf("unexpected result: status=%d supervisor=%d", rec.Code, stub.supervisorUserID)
	}
}

func TestHealthz(t *testing.T) {
	handler := New(&stubMatcher{}, okPinger{}, zap.NewNop()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthzReportsDatabaseFailure(t *testing.T) {
	handler := New(&stubMatcher{}, failingPinger{}, zap.NewNop()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "error" || body.Message == "" {
		t.Fatalf("unexpected body: %+v", body)
	}
}
