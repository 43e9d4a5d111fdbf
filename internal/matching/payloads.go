package matching

import "encoding/json"

// TextLimit bounds free-text fields embedded in model payloads (notably CVs)
// to respect downstream prompt-size limits.
const TextLimit = 20000

// TrimText silently truncates s to the limit, keeping the start of the string.
func TrimText(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

type studentProfilePayload struct {
	Program            string `json:"program,omitempty"`
	Skills             string `json:"skills,omitempty"`
	Interests          string `json:"interests,omitempty"`
	SkillsToLearn      string `json:"skills_to_learn,omitempty"`
	PreferredTeamTrack string `json:"preferred_team_track,omitempty"`
	TeamRole           string `json:"team_role,omitempty"`
	TeamNeeds          string `json:"team_needs,omitempty"`
	DevTrack           int    `json:"dev_track,omitempty"`
	ScienceTrack       int    `json:"science_track,omitempty"`
	StartupTrack       int    `json:"startup_track,omitempty"`
	CV                 string `json:"cv,omitempty"`
}

type supervisorProfilePayload struct {
	Position     string `json:"position,omitempty"`
	Degree       string `json:"degree,omitempty"`
	Capacity     *int   `json:"capacity,omitempty"`
	Interests    string `json:"interests,omitempty"`
	Requirements string `json:"requirements,omitempty"`
}

func studentPayload(p StudentProfile) studentProfilePayload {
	return studentProfilePayload{
		Program:            p.Program,
		Skills:             p.Skills,
		Interests:          p.Interests,
		SkillsToLearn:      p.SkillsToLearn,
		PreferredTeamTrack: p.PreferredTeamTrack,
		TeamRole:           p.TeamRole,
		TeamNeeds:          p.TeamNeeds,
		DevTrack:           p.DevTrack,
		ScienceTrack:       p.ScienceTrack,
		StartupTrack:       p.StartupTrack,
		CV:                 TrimText(p.CV, TextLimit),
	}
}

func supervisorPayload(p SupervisorProfile) supervisorProfilePayload {
	return supervisorProfilePayload{
		Position:     p.Position,
		Degree:       p.Degree,
		Capacity:     p.Capacity,
		Interests:    p.Interests,
		Requirements: p.Requirements,
	}
}

type payloadCandidate struct {
	Num           int      `json:"num"`
	UserID        int64    `json:"user_id"`
	FullName      string   `json:"full_name"`
	Username      string   `json:"username,omitempty"`
	Email         string   `json:"email,omitempty"`
	OriginalScore *float64 `json:"original_score"`
	Profile       any      `json:"profile"`
}

func candidateEntries(candidates []CandidateRow, role Role) []payloadCandidate {
	entries := make([]payloadCandidate, 0, len(candidates))
	for i, candidate := range candidates {
		var profile any
		switch {
		case role == RoleSupervisor && candidate.Supervisor != nil:
			profile = supervisorPayload(*candidate.Supervisor)
		case candidate.Student != nil:
			profile = studentPayload(*candidate.Student)
		}
		entries = append(entries, payloadCandidate{
			Num:           i + 1,
			UserID:        candidate.UserID,
			FullName:      candidate.FullName,
			Username:      candidate.Username,
			Email:         candidate.Email,
			OriginalScore: candidate.Score,
			Profile:       profile,
		})
	}
	return entries
}

type compactTopic struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	AuthorID         int64  `json:"author_id"`
	AuthorName       string `json:"author_name"`
	SeekingRole      Role   `json:"seeking_role,omitempty"`
	Description      string `json:"description,omitempty"`
	ExpectedOutcomes string `json:"expected_outcomes,omitempty"`
	RequiredSkills   string `json:"required_skills,omitempty"`
	Direction        int    `json:"direction,omitempty"`
}

type compactRole struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	RequiredSkills string `json:"required_skills,omitempty"`
	Capacity       *int   `json:"capacity,omitempty"`
}

// CandidatesPayload is the model input for ranking candidates against a topic.
type CandidatesPayload struct {
	Task        string             `json:"task"`
	TargetRole  Role               `json:"target_role"`
	Topic       compactTopic       `json:"topic"`
	Candidates  []payloadCandidate `json:"candidates"`
	Instruction string             `json:"instruction"`
}

// BuildCandidatesPayload shapes a topic and its candidate pool for the model.
func BuildCandidatesPayload(topic TopicRow, candidates []CandidateRow, role Role) CandidatesPayload {
	return CandidatesPayload{
		Task:       "rank_candidates_for_topic",
		TargetRole: role,
		Topic: compactTopic{
			ID:               topic.ID,
			Title:            topic.Title,
			AuthorID:         topic.AuthorID,
			AuthorName:       topic.AuthorName,
			SeekingRole:      topic.SeekingRole,
			Description:      topic.Description,
			ExpectedOutcomes: topic.ExpectedOutcomes,
			RequiredSkills:   topic.RequiredSkills,
			Direction:        topic.Direction,
		},
		Candidates:  candidateEntries(candidates, role),
		Instruction: "Return the top five candidates and briefly explain each choice.",
	}
}

// RoleCandidatesPayload is the model input for ranking students against a role.
type RoleCandidatesPayload struct {
	Task        string             `json:"task"`
	Topic       compactTopic       `json:"topic"`
	Role        compactRole        `json:"role"`
	Candidates  []payloadCandidate `json:"candidates"`
	Instruction string             `json:"instruction"`
}

// BuildRoleCandidatesPayload shapes a role, its owning topic, and the student
// pool for the model.
func BuildRoleCandidatesPayload(role RoleRow, candidates []CandidateRow) RoleCandidatesPayload {
	return RoleCandidatesPayload{
		Task: "rank_candidates_for_role",
		Topic: compactTopic{
			ID:               role.TopicID,
			Title:            role.TopicTitle,
			AuthorID:         role.AuthorID,
			AuthorName:       role.AuthorName,
			Description:      role.TopicDescription,
			ExpectedOutcomes: role.TopicExpectedOutcomes,
			RequiredSkills:   role.TopicRequiredSkills,
			Direction:        role.Direction,
		},
		Role: compactRole{
			ID:             role.ID,
			Name:           role.Name,
			Description:    role.Description,
			RequiredSkills: role.RequiredSkills,
			Capacity:       role.Capacity,
		},
		Candidates:  candidateEntries(candidates, RoleStudent),
		Instruction: "Pick the five students best suited for this role and say why.",
	}
}

type payloadStudent struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	studentProfilePayload
}

type payloadRoleOpening struct {
	Num                int    `json:"num"`
	RoleID             int64  `json:"role_id"`
	RoleName           string `json:"role_name"`
	RoleRequiredSkills string `json:"role_required_skills,omitempty"`
	TopicID            int64  `json:"topic_id"`
	TopicTitle         string `json:"topic_title"`
	Direction          int    `json:"direction,omitempty"`
	AuthorName         string `json:"author_name,omitempty"`
}

// RolesForStudentPayload is the model input for ranking open roles for a student.
type RolesForStudentPayload struct {
	Task        string               `json:"task"`
	Student     payloadStudent       `json:"student"`
	Roles       []payloadRoleOpening `json:"roles"`
	Instruction string               `json:"instruction"`
}

// BuildRolesForStudentPayload shapes a student and the open-role pool for the model.
func BuildRolesForStudentPayload(student StudentRow, openings []RoleOpening) RolesForStudentPayload {
	roles := make([]payloadRoleOpening, 0, len(openings))
	for i, opening := range openings {
		roles = append(roles, payloadRoleOpening{
			Num:                i + 1,
			RoleID:             opening.ID,
			RoleName:           opening.Name,
			RoleRequiredSkills: opening.RequiredSkills,
			TopicID:            opening.TopicID,
			TopicTitle:         opening.TopicTitle,
			Direction:          opening.Direction,
			AuthorName:         opening.AuthorName,
		})
	}

	return RolesForStudentPayload{
		Task: "rank_roles_for_student",
		Student: payloadStudent{
			UserID:                student.UserID,
			FullName:              student.FullName,
			Username:              student.Username,
			Email:                 student.Email,
			studentProfilePayload: studentPayload(student.Profile),
		},
		Roles:       roles,
		Instruction: "Pick the five roles that fit this student best and briefly justify each.",
	}
}

type payloadSupervisor struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	supervisorProfilePayload
}

type payloadTopicOpening struct {
	Num              int    `json:"num"`
	TopicID          int64  `json:"topic_id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	RequiredSkills   string `json:"required_skills,omitempty"`
	ExpectedOutcomes string `json:"expected_outcomes,omitempty"`
	AuthorName       string `json:"author_name,omitempty"`
}

// TopicsForSupervisorPayload is the model input for ranking open topics for a
// supervisor.
type TopicsForSupervisorPayload struct {
	Task        string                `json:"task"`
	Supervisor  payloadSupervisor     `json:"supervisor"`
	Topics      []payloadTopicOpening `json:"topics"`
	Instruction string                `json:"instruction"`
}

// BuildTopicsForSupervisorPayload shapes a supervisor and the open-topic pool
// for the model.
func BuildTopicsForSupervisorPayload(supervisor SupervisorRow, openings []TopicOpening) TopicsForSupervisorPayload {
	topics := make([]payloadTopicOpening, 0, len(openings))
	for i, opening := range openings {
		topics = append(topics, payloadTopicOpening{
			Num:              i + 1,
			TopicID:          opening.ID,
			Title:            opening.Title,
			Description:      opening.Description,
			RequiredSkills:   opening.RequiredSkills,
			ExpectedOutcomes: opening.ExpectedOutcomes,
			AuthorName:       opening.AuthorName,
		})
	}

	return TopicsForSupervisorPayload{
		Task: "rank_topics_for_supervisor",
		Supervisor: payloadSupervisor{
			UserID:                   supervisor.UserID,
			FullName:                 supervisor.FullName,
			Username:                 supervisor.Username,
			Email:                    supervisor.Email,
			supervisorProfilePayload: supervisorPayload(supervisor.Profile),
		},
		Topics:      topics,
		Instruction: "Pick the five topics that suit this supervisor best and explain why.",
	}
}

// encodePayload serializes a payload for the model. The payload types contain
// nothing json.Marshal can reject.
func encodePayload(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
