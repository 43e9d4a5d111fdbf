package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentormatch/mentormatch/internal/matching"
)

// Sink writes ranking results into the four candidate tables. Each save
// replaces the actor's previous ranked rows in one transaction, so rerunning
// a match never leaves stale ranks behind. Rows a curator already approved
// keep their approved flag: the upsert never touches that column.
type Sink struct {
	pool *pgxpool.Pool
}

// NewSink wires a sink over the given pool.
func NewSink(pool *pgxpool.Pool) *Sink {
	return &Sink{pool: pool}
}

// SaveTopicCandidates stores the ranked top users for a topic.
func (s *Sink) SaveTopicCandidates(ctx context.Context, topicID int64, items []matching.ScoredItem) error {
	const clear = `DELETE FROM topic_candidates WHERE topic_id = $1 AND rank IS NOT NULL`
	const upsert = `
INSERT INTO topic_candidates (topic_id, user_id, score, is_primary, approved, rank, created_at)
VALUES ($1, $2, $3, $4, FALSE, $5, now())
ON CONFLICT (topic_id, user_id)
DO UPDATE SET score = EXCLUDED.score, is_primary = EXCLUDED.is_primary, rank = EXCLUDED.rank`

	return s.replace(ctx, "topic candidates", clear, upsert, topicID, items)
}

// SaveRoleCandidates stores the ranked top users for a role.
func (s *Sink) SaveRoleCandidates(ctx context.Context, roleID int64, items []matching.ScoredItem) error {
	const clear = `DELETE FROM role_candidates WHERE role_id = $1 AND rank IS NOT NULL`
	const upsert = `
INSERT INTO role_candidates (role_id, user_id, score, is_primary, approved, rank, created_at)
VALUES ($1, $2, $3, $4, FALSE, $5, now())
ON CONFLICT (role_id, user_id)
DO UPDATE SET score = EXCLUDED.score, is_primary = EXCLUDED.is_primary, rank = EXCLUDED.rank`

	return s.replace(ctx, "role candidates", clear, upsert, roleID, items)
}

// SaveStudentRoles stores the ranked role openings for a student.
func (s *Sink) SaveStudentRoles(ctx context.Context, studentUserID int64, items []matching.ScoredItem) error {
	const clear = `DELETE FROM student_candidates WHERE user_id = $1 AND rank IS NOT NULL`
	const upsert = `
INSERT INTO student_candidates (user_id, role_id, score, is_primary, approved, rank, created_at)
VALUES ($1, $2, $3, $4, FALSE, $5, now())
ON CONFLICT (user_id, role_id)
DO UPDATE SET score = EXCLUDED.score, is_primary = EXCLUDED.is_primary, rank = EXCLUDED.rank`

	return s.replace(ctx, "student roles", clear, upsert, studentUserID, items)
}

// SaveSupervisorTopics stores the ranked topic openings for a supervisor.
func (s *Sink) SaveSupervisorTopics(ctx context.Context, supervisorUserID int64, items []matching.ScoredItem) error {
	const clear = `DELETE FROM supervisor_candidates WHERE user_id = $1 AND rank IS NOT NULL`
	const upsert = `
INSERT INTO supervisor_candidates (user_id, topic_id, score, is_primary, approved, rank, created_at)
VALUES ($1, $2, $3, $4, FALSE, $5, now())
ON CONFLICT (user_id, topic_id)
DO UPDATE SET score = EXCLUDED.score, is_primary = EXCLUDED.is_primary, rank = EXCLUDED.rank`

	return s.replace(ctx, "supervisor topics", clear, upsert, supervisorUserID, items)
}

func (s *Sink) replace(ctx context.Context, what, clear, upsert string, actorID int64, items []matching.ScoredItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", what, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, clear, actorID); err != nil {
		return fmt.Errorf("clear %s: %w", what, err)
	}
	for _, item := range items {
		if _, err := tx.Exec(ctx, upsert, actorID, item.TargetID, item.Score, item.Primary, item.Rank); err != nil {
			return fmt.Errorf("upsert %s: %w", what, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save %s: %w", what, err)
	}
	return nil
}
