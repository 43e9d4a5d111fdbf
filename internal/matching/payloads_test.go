package matching

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTrimText(t *testing.T) {
	if got := TrimText("short", 10); got != "short" {
		t.Fatalf("expected short strings untouched, got %q", got)
	}
	if got := TrimText("abcdef", 3); got != "abc" {
		t.Fatalf("expected truncation to keep the start, got %q", got)
	}
	// Rune-based, so multibyte text never gets cut mid-character.
	if got := TrimText("привет", 4); got != "прив" {
		t.Fatalf("unexpected multibyte truncation: %q", got)
	}
	if got := TrimText("abc", 0); got != "abc" {
		t.Fatalf("limit 0 must disable truncation, got %q", got)
	}
}

func TestBuildCandidatesPayloadNumbersPool(t *testing.T) {
	topic := TopicRow{ID: 5, Title: "Topic", AuthorID: 1, AuthorName: "Author", SeekingRole: RoleStudent}
	pool := candidatePool(3)

	payload := BuildCandidatesPayload(topic, pool, RoleStudent)

	if payload.Task != "rank_candidates_for_topic" {
		t.Fatalf("unexpected task: %s", payload.Task)
	}
	if len(payload.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(payload.Candidates))
	}
	for i, candidate := range payload.Candidates {
		if candidate.Num != i+1 {
			t.Fatalf("candidate %d: expected num %d, got %d", i, i+1, candidate.Num)
		}
	}
	if payload.Topic.ID != 5 || payload.Topic.AuthorName != "Author" {
		t.Fatalf("unexpected topic block: %+v", payload.Topic)
	}
}

func TestBuildCandidatesPayloadTruncatesCV(t *testing.T) {
	topic := TopicRow{ID: 1, Title: "Topic"}
	pool := candidatePool(1)
	pool[0].Student.CV = strings.Repeat("x", TextLimit+500)

	payload := BuildCandidatesPayload(topic, pool, RoleStudent)

	profile, ok := payload.Candidates[0].Profile.(studentProfilePayload)
	if !ok {
		t.Fatalf("expected a student profile, got %T", payload.Candidates[0].Profile)
	}
	if len(profile.CV) != TextLimit {
		t.Fatalf("expected CV capped at %d, got %d", TextLimit, len(profile.CV))
	}
}

func TestBuildCandidatesPayloadPicksProfileByRole(t *testing.T) {
	topic := TopicRow{ID: 1, Title: "Topic"}
	capacity := 3
	pool := []CandidateRow{{
		UserID:     1,
		FullName:   "Dual",
		Student:    &StudentProfile{Skills: "Go"},
		Supervisor: &SupervisorProfile{Position: "Professor", Capacity: &capacity},
	}}

	payload := BuildCandidatesPayload(topic, pool, RoleSupervisor)

	if _, ok := payload.Candidates[0].Profile.(supervisorProfilePayload); !ok {
		t.Fatalf("expected the supervisor profile for the supervisor pool, got %T", payload.Candidates[0].Profile)
	}
}

func TestBuildRolesForStudentPayloadFlattensProfile(t *testing.T) {
	student := StudentRow{
		UserID:   9,
		FullName: "Student",
		Profile:  StudentProfile{Program: "CS", Skills: "Go, SQL"},
	}
	openings := []RoleOpening{{ID: 1, Name: "Backend", TopicID: 2, TopicTitle: "Topic"}}

	payload := BuildRolesForStudentPayload(student, openings)

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var decoded struct {
		Student map[string]any `json:"student"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	// Profile fields sit directly on the student object, not nested.
	if decoded.Student["program"] != "CS" {
		t.Fatalf("expected flattened profile, got %v", decoded.Student)
	}
	if decoded.Student["user_id"] != float64(9) {
		t.Fatalf("expected user_id on the student object, got %v", decoded.Student)
	}
}

func TestBuildTopicsForSupervisorPayloadNumbersPool(t *testing.T) {
	supervisor := SupervisorRow{UserID: 4, FullName: "Supervisor"}
	openings := []TopicOpening{
		{ID: 10, Title: "First"},
		{ID: 11, Title: "Second"},
	}

	payload := BuildTopicsForSupervisorPayload(supervisor, openings)

	if payload.Task != "rank_topics_for_supervisor" {
		t.Fatalf("unexpected task: %s", payload.Task)
	}
	if payload.Topics[0].Num != 1 || payload.Topics[1].Num != 2 {
		t.Fatalf("unexpected numbering: %+v", payload.Topics)
	}
}
