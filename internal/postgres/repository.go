package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mentormatch/mentormatch/internal/matching"
)

// Repository reads topics, roles and user pools for the matching flows.
type Repository struct {
	pool      *pgxpool.Pool
	mediaRoot string
	logger    *zap.Logger
}

// NewRepository wires a repository over the given pool. mediaRoot is the
// directory that media_files object keys are relative to.
func NewRepository(pool *pgxpool.Pool, mediaRoot string, logger *zap.Logger) *Repository {
	return &Repository{pool: pool, mediaRoot: mediaRoot, logger: logger}
}

// Topic returns the topic with its author, or (nil, nil) when absent.
func (r *Repository) Topic(ctx context.Context, topicID int64) (*matching.TopicRow, error) {
	const query = `
SELECT t.id, t.title, COALESCE(t.description, ''), COALESCE(t.expected_outcomes, ''),
       COALESCE(t.required_skills, ''), COALESCE(t.seeking_role, 'student'),
       COALESCE(t.direction, 0), u.id, u.full_name
FROM topics t
JOIN users u ON u.id = t.author_user_id
WHERE t.id = $1`

	var row matching.TopicRow
	var seeking string
	err := r.pool.QueryRow(ctx, query, topicID).Scan(
		&row.ID, &row.Title, &row.Description, &row.ExpectedOutcomes,
		&row.RequiredSkills, &seeking, &row.Direction, &row.AuthorID, &row.AuthorName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch topic %d: %w", topicID, err)
	}
	row.SeekingRole = matching.NormalizeRole(seeking)
	return &row, nil
}

// Role returns the role joined with its owning topic, or (nil, nil) when absent.
func (r *Repository) Role(ctx context.Context, roleID int64) (*matching.RoleRow, error) {
	const query = `
SELECT r.id, r.topic_id, r.name, COALESCE(r.description, ''),
       COALESCE(r.required_skills, ''), r.capacity,
       t.title, COALESCE(t.description, ''), COALESCE(t.required_skills, ''),
       COALESCE(t.expected_outcomes, ''), COALESCE(t.seeking_role, 'student'),
       COALESCE(t.direction, 0), t.author_user_id, u.full_name
FROM roles r
JOIN topics t ON t.id = r.topic_id
JOIN users u ON u.id = t.author_user_id
WHERE r.id = $1`

	var row matching.RoleRow
	var seeking string
	err := r.pool.QueryRow(ctx, query, roleID).Scan(
		&row.ID, &row.TopicID, &row.Name, &row.Description,
		&row.RequiredSkills, &row.Capacity,
		&row.TopicTitle, &row.TopicDescription, &row.TopicRequiredSkills,
		&row.TopicExpectedOutcomes, &seeking,
		&row.Direction, &row.AuthorID, &row.AuthorName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch role %d: %w", roleID, err)
	}
	row.SeekingRole = matching.NormalizeRole(seeking)
	return &row, nil
}

// TopicCandidates returns the candidate pool for a topic. It prefers users
// already scored against the topic; when none exist it falls back to the most
// recently registered users of the target role, so fresh installs still get
// a pool to rank.
func (r *Repository) TopicCandidates(ctx context.Context, topicID int64, role matching.Role, limit int) ([]matching.CandidateRow, error) {
	if role == matching.RoleSupervisor {
		return r.supervisorCandidates(ctx, topicID, limit)
	}
	return r.studentCandidates(ctx, topicID, limit)
}

func (r *Repository) studentCandidates(ctx context.Context, topicID int64, limit int) ([]matching.CandidateRow, error) {
	const scored = `
SELECT u.id, u.full_name, COALESCE(u.username, ''), COALESCE(u.email, ''), u.created_at,
       tc.score, ` + studentProfileColumns + `
FROM topic_candidates tc
JOIN users u ON u.id = tc.user_id
LEFT JOIN student_profiles sp ON sp.user_id = u.id
WHERE tc.topic_id = $1
  AND (LOWER(u.role) = 'student' OR sp.user_id IS NOT NULL)
ORDER BY tc.score DESC NULLS LAST, u.created_at DESC
LIMIT $2`

	rows, err := r.queryStudentPool(ctx, scored, topicID, limit)
	if err != nil {
		r.logger.Debug("scored candidate query failed, using recency pool", zap.Error(err))
	}
	if len(rows) > 0 {
		return rows, nil
	}
	return r.RecentStudents(ctx, limit)
}

func (r *Repository) supervisorCandidates(ctx context.Context, topicID int64, limit int) ([]matching.CandidateRow, error) {
	const scored = `
SELECT u.id, u.full_name, COALESCE(u.username, ''), COALESCE(u.email, ''), u.created_at,
       tc.score, ` + supervisorProfileColumns + `
FROM topic_candidates tc
JOIN users u ON u.id = tc.user_id AND LOWER(u.role) = 'supervisor'
LEFT JOIN supervisor_profiles sp ON sp.user_id = u.id
WHERE tc.topic_id = $1
ORDER BY tc.score DESC NULLS LAST, u.created_at DESC
LIMIT $2`

	rows, err := r.querySupervisorPool(ctx, scored, topicID, limit)
	if err != nil {
		r.logger.Debug("scored candidate query failed, using recency pool", zap.Error(err))
	}
	if len(rows) > 0 {
		return rows, nil
	}

	const recent = `
SELECT u.id, u.full_name, COALESCE(u.username, ''), COALESCE(u.email, ''), u.created_at,
       NULL::double precision, ` + supervisorProfileColumns + `
FROM users u
LEFT JOIN supervisor_profiles sp ON sp.user_id = u.id
WHERE LOWER(u.role) = 'supervisor'
ORDER BY u.created_at DESC
LIMIT $1`

	return r.querySupervisorPool(ctx, recent, limit)
}

// RecentStudents returns the most recently registered students, unscored.
func (r *Repository) RecentStudents(ctx context.Context, limit int) ([]matching.CandidateRow, error) {
	const query = `
SELECT u.id, u.full_name, COALESCE(u.username, ''), COALESCE(u.email, ''), u.created_at,
       NULL::double precision, ` + studentProfileColumns + `
FROM users u
LEFT JOIN student_profiles sp ON sp.user_id = u.id
WHERE (LOWER(u.role) = 'student' OR sp.user_id IS NOT NULL)
ORDER BY u.created_at DESC
LIMIT $1`

	return r.queryStudentPool(ctx, query, limit)
}

const studentProfileColumns = `
       COALESCE(sp.program, ''), COALESCE(sp.skills, ''), COALESCE(sp.interests, ''),
       COALESCE(sp.cv, ''), COALESCE(sp.skills_to_learn, ''),
       COALESCE(sp.preferred_team_track, ''), COALESCE(sp.team_has, ''), COALESCE(sp.team_needs, ''),
       COALESCE(sp.dev_track, 0), COALESCE(sp.science_track, 0), COALESCE(sp.startup_track, 0)`

const supervisorProfileColumns = `
       COALESCE(sp.position, ''), COALESCE(sp.degree, ''), sp.capacity, COALESCE(sp.interests, '')`

func (r *Repository) queryStudentPool(ctx context.Context, query string, args ...any) ([]matching.CandidateRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query student pool: %w", err)
	}
	defer rows.Close()

	var out []matching.CandidateRow
	for rows.Next() {
		var c matching.CandidateRow
		var p matching.StudentProfile
		if err := rows.Scan(
			&c.UserID, &c.FullName, &c.Username, &c.Email, &c.CreatedAt, &c.Score,
			&p.Program, &p.Skills, &p.Interests, &p.CV, &p.SkillsToLearn,
			&p.PreferredTeamTrack, &p.TeamRole, &p.TeamNeeds,
			&p.DevTrack, &p.ScienceTrack, &p.StartupTrack,
		); err != nil {
			return nil, fmt.Errorf("scan student pool: %w", err)
		}
		c.Student = &p
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student pool: %w", err)
	}
	return out, nil
}

func (r *Repository) querySupervisorPool(ctx context.Context, query string, args ...any) ([]matching.CandidateRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query supervisor pool: %w", err)
	}
	defer rows.Close()

	var out []matching.CandidateRow
	for rows.Next() {
		var c matching.CandidateRow
		var p matching.SupervisorProfile
		if err := rows.Scan(
			&c.UserID, &c.FullName, &c.Username, &c.Email, &c.CreatedAt, &c.Score,
			&p.Position, &p.Degree, &p.Capacity, &p.Interests,
		); err != nil {
			return nil, fmt.Errorf("scan supervisor pool: %w", err)
		}
		c.Supervisor = &p
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supervisor pool: %w", err)
	}
	return out, nil
}

// Student returns the profile-enriched student, or (nil, nil) when absent.
func (r *Repository) Student(ctx context.Context, userID int64) (*matching.StudentRow, error) {
	const query = `
SELECT u.id, u.full_name, COALESCE(u.username, ''), COALESCE(u.email, ''), ` + studentProfileColumns + `
FROM users u
LEFT JOIN student_profiles sp ON sp.user_id = u.id
WHERE u.id = $1 AND (LOWER(u.role) = 'student' OR sp.user_id IS NOT NULL)`

	var row matching.StudentRow
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&row.UserID, &row.FullName, &row.Username, &row.Email,
		&row.Profile.Program, &row.Profile.Skills, &row.Profile.Interests,
		&row.Profile.CV, &row.Profile.SkillsToLearn,
		&row.Profile.PreferredTeamTrack, &row.Profile.TeamRole, &row.Profile.TeamNeeds,
		&row.Profile.DevTrack, &row.Profile.ScienceTrack, &row.Profile.StartupTrack,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch student %d: %w", userID, err)
	}
	return &row, nil
}

// Supervisor returns the profile-enriched supervisor, or (nil, nil) when absent.
func (r *Repository) Supervisor(ctx context.Context, userID int64) (*matching.SupervisorRow, error) {
	const query = `
SELECT u.id, u.full_name, COALESCE(u.username, ''), COALESCE(u.email, ''),
       COALESCE(sp.position, ''), COALESCE(sp.degree, ''), sp.capacity,
       COALESCE(sp.interests, ''), COALESCE(sp.requirements, '')
FROM users u
LEFT JOIN supervisor_profiles sp ON sp.user_id = u.id
WHERE u.id = $1 AND LOWER(u.role) = 'supervisor'`

	var row matching.SupervisorRow
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&row.UserID, &row.FullName, &row.Username, &row.Email,
		&row.Profile.Position, &row.Profile.Degree, &row.Profile.Capacity,
		&row.Profile.Interests, &row.Profile.Requirements,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch supervisor %d: %w", userID, err)
	}
	return &row, nil
}

// OpenRolesForStudents lists roles on active topics that still seek students,
// newest topics first.
func (r *Repository) OpenRolesForStudents(ctx context.Context, limit int) ([]matching.RoleOpening, error) {
	const query = `
SELECT r.id, r.name, COALESCE(r.description, ''), COALESCE(r.required_skills, ''), r.capacity,
       t.id, t.title, COALESCE(t.direction, 0), t.author_user_id, u.full_name
FROM roles r
JOIN topics t ON t.id = r.topic_id AND t.is_active = TRUE AND t.seeking_role = 'student'
JOIN users u ON u.id = t.author_user_id
ORDER BY t.created_at DESC, r.id ASC
LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query open roles: %w", err)
	}
	defer rows.Close()

	var out []matching.RoleOpening
	for rows.Next() {
		var o matching.RoleOpening
		if err := rows.Scan(
			&o.ID, &o.Name, &o.Description, &o.RequiredSkills, &o.Capacity,
			&o.TopicID, &o.TopicTitle, &o.Direction, &o.AuthorID, &o.AuthorName,
		); err != nil {
			return nil, fmt.Errorf("scan open roles: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open roles: %w", err)
	}
	return out, nil
}

// OpenTopicsForSupervisors lists active topics that still seek a supervisor,
// newest first.
func (r *Repository) OpenTopicsForSupervisors(ctx context.Context, limit int) ([]matching.TopicOpening, error) {
	const query = `
SELECT t.id, t.title, COALESCE(t.description, ''), COALESCE(t.required_skills, ''),
       COALESCE(t.expected_outcomes, ''), t.author_user_id, u.full_name, t.created_at
FROM topics t
JOIN users u ON u.id = t.author_user_id
WHERE t.is_active = TRUE AND t.seeking_role = 'supervisor'
ORDER BY t.created_at DESC
LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query open topics: %w", err)
	}
	defer rows.Close()

	var out []matching.TopicOpening
	for rows.Next() {
		var o matching.TopicOpening
		if err := rows.Scan(
			&o.ID, &o.Title, &o.Description, &o.RequiredSkills,
			&o.ExpectedOutcomes, &o.AuthorID, &o.AuthorName, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan open topics: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open topics: %w", err)
	}
	return out, nil
}
