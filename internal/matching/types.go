// Package matching implements the ranking flows: assemble a candidate pool,
// ask the model for a top-5, reconcile the answer against the pool, persist
// dense ranks, and fall back deterministically when the model cannot be used.
package matching

import (
	"context"
	"strings"
	"time"
)

// Role distinguishes the two sides of the platform.
type Role string

const (
	RoleStudent    Role = "student"
	RoleSupervisor Role = "supervisor"
)

// NormalizeRole maps arbitrary input to a valid role, defaulting to student.
// Comparison is case-insensitive so form input like "Supervisor" still picks
// the supervisor pool.
func NormalizeRole(s string) Role {
	if Role(strings.ToLower(strings.TrimSpace(s))) == RoleSupervisor {
		return RoleSupervisor
	}
	return RoleStudent
}

// TopicRow is a topic enriched with its author.
type TopicRow struct {
	ID               int64
	Title            string
	Description      string
	ExpectedOutcomes string
	RequiredSkills   string
	SeekingRole      Role
	Direction        int
	AuthorID         int64
	AuthorName       string
}

// RoleRow is a role enriched with its owning topic.
type RoleRow struct {
	ID             int64
	TopicID        int64
	Name           string
	Description    string
	RequiredSkills string
	Capacity       *int

	TopicTitle            string
	TopicDescription      string
	TopicRequiredSkills   string
	TopicExpectedOutcomes string
	SeekingRole           Role
	Direction             int
	AuthorID              int64
	AuthorName            string
}

// StudentProfile is the student-specific slice of a user profile.
type StudentProfile struct {
	Program            string
	Skills             string
	Interests          string
	CV                 string
	SkillsToLearn      string
	PreferredTeamTrack string
	TeamRole           string
	TeamNeeds          string
	DevTrack           int
	ScienceTrack       int
	StartupTrack       int
}

// SupervisorProfile is the supervisor-specific slice of a user profile.
type SupervisorProfile struct {
	Position     string
	Degree       string
	Capacity     *int
	Interests    string
	Requirements string
}

// CandidateRow is one member of a candidate pool. Score is nil when the user
// has never been scored against the target.
type CandidateRow struct {
	UserID     int64
	FullName   string
	Username   string
	Email      string
	CreatedAt  time.Time
	Score      *float64
	Student    *StudentProfile
	Supervisor *SupervisorProfile
}

// StudentRow is a profile-enriched student user.
type StudentRow struct {
	UserID   int64
	FullName string
	Username string
	Email    string
	Profile  StudentProfile
}

// SupervisorRow is a profile-enriched supervisor user.
type SupervisorRow struct {
	UserID   int64
	FullName string
	Username string
	Email    string
	Profile  SupervisorProfile
}

// RoleOpening is a role that still needs a student.
type RoleOpening struct {
	ID             int64
	Name           string
	Description    string
	RequiredSkills string
	Capacity       *int
	TopicID        int64
	TopicTitle     string
	Direction      int
	AuthorID       int64
	AuthorName     string
}

// TopicOpening is an active topic that still needs a supervisor.
type TopicOpening struct {
	ID               int64
	Title            string
	Description      string
	RequiredSkills   string
	ExpectedOutcomes string
	AuthorID         int64
	AuthorName       string
	CreatedAt        time.Time
}

// Repository provides the read side of the matching flows. Point lookups
// return (nil, nil) when the entity does not exist.
type Repository interface {
	Topic(ctx context.Context, topicID int64) (*TopicRow, error)
	Role(ctx context.Context, roleID int64) (*RoleRow, error)
	TopicCandidates(ctx context.Context, topicID int64, role Role, limit int) ([]CandidateRow, error)
	RecentStudents(ctx context.Context, limit int) ([]CandidateRow, error)
	Student(ctx context.Context, userID int64) (*StudentRow, error)
	Supervisor(ctx context.Context, userID int64) (*SupervisorRow, error)
	OpenRolesForStudents(ctx context.Context, limit int) ([]RoleOpening, error)
	OpenTopicsForSupervisors(ctx context.Context, limit int) ([]TopicOpening, error)

	// ResolveCV turns a stored CV reference (raw text, URL, or /media/<id>
	// pointer) into plain text. It never fails: on any extraction problem
	// the original reference is returned unchanged.
	ResolveCV(ctx context.Context, ref string) string
}

// ScoredItem is one persisted ranking row. Score is the affine 6-rank mapping,
// kept human-debuggable on purpose.
type ScoredItem struct {
	TargetID int64
	Rank     int
	Score    float64
	Primary  bool
}

// Sink persists ranking results. Each call replaces the previous ranked top-5
// for its actor; pre-existing unranked score rows are left alone.
type Sink interface {
	SaveTopicCandidates(ctx context.Context, topicID int64, items []ScoredItem) error
	SaveRoleCandidates(ctx context.Context, roleID int64, items []ScoredItem) error
	SaveStudentRoles(ctx context.Context, studentUserID int64, items []ScoredItem) error
	SaveSupervisorTopics(ctx context.Context, supervisorUserID int64, items []ScoredItem) error
}

// Envelope item shapes, one per operation.

// CandidateItem is a ranked user in topic/role matching results.
type CandidateItem struct {
	Rank          int      `json:"rank"`
	UserID        int64    `json:"user_id"`
	FullName      string   `json:"full_name"`
	Role          Role     `json:"role,omitempty"`
	Reason        string   `json:"reason"`
	OriginalScore *float64 `json:"original_score"`
}

// RoleItem is a ranked role opening in student matching results.
type RoleItem struct {
	Rank       int    `json:"rank"`
	RoleID     int64  `json:"role_id"`
	RoleName   string `json:"role_name"`
	TopicID    int64  `json:"topic_id"`
	TopicTitle string `json:"topic_title"`
	Reason     string `json:"reason"`
}

// TopicItem is a ranked topic opening in supervisor matching results.
type TopicItem struct {
	Rank    int    `json:"rank"`
	TopicID int64  `json:"topic_id"`
	Title   string `json:"title"`
	Reason  string `json:"reason"`
}

// TopicMatch is the envelope returned by MatchTopic.
type TopicMatch struct {
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	TopicID    int64           `json:"topic_id,omitempty"`
	TargetRole Role            `json:"target_role,omitempty"`
	TopicTitle string          `json:"topic_title,omitempty"`
	Items      []CandidateItem `json:"items"`
}

// RoleMatch is the envelope returned by MatchRole.
type RoleMatch struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	RoleID  int64           `json:"role_id,omitempty"`
	Items   []CandidateItem `json:"items"`
}

// StudentMatch is the envelope returned by MatchStudent.
type StudentMatch struct {
	Status        string     `json:"status"`
	Message       string     `json:"message,omitempty"`
	StudentUserID int64      `json:"student_user_id,omitempty"`
	Items         []RoleItem `json:"items"`
}

// SupervisorMatch is the envelope returned by MatchSupervisor.
type SupervisorMatch struct {
	Status           string      `json:"status"`
	Message          string      `json:"message,omitempty"`
	SupervisorUserID int64       `json:"supervisor_user_id,omitempty"`
	Items            []TopicItem `json:"items"`
}

const (
	statusOK    = "ok"
	statusError = "error"
)
