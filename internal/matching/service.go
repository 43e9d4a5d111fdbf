package matching

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mentormatch/mentormatch/internal/ai"
)

// Fallback justifications attached when the model was not consulted. The pool
// is already ordered (score, then recency), so the fallback is simply its head.
const (
	FallbackReasonCandidates = "LLM unavailable: showing the most recently added candidates."
	FallbackReasonRoles      = "LLM unavailable: showing the most recently opened roles."
	FallbackReasonTopics     = "LLM unavailable: showing the most recently created topics."
)

const (
	defaultCandidateLimit = 20
	defaultRolePoolLimit  = 40
	defaultTopicPoolLimit = 20
)

// Deps aggregates the collaborators of the matching service. Ranker may be nil
// when no model credentials are configured; the service then always uses the
// deterministic fallback.
type Deps struct {
	Repo   Repository
	Sink   Sink
	Ranker ai.Ranker
	Logger *zap.Logger

	// Pool bounds; zero values pick the defaults.
	CandidateLimit int
	RolePoolLimit  int
	TopicPoolLimit int
}

// Service runs the four matching flows. Each invocation is synchronous and
// independent; persistence is last-write-wins per (actor, target-class) key.
type Service struct {
	repo           Repository
	sink           Sink
	ranker         ai.Ranker
	logger         *zap.Logger
	candidateLimit int
	rolePoolLimit  int
	topicPoolLimit int
}

// New creates a matching service from its dependencies.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	candidateLimit := deps.CandidateLimit
	if candidateLimit <= 0 {
		candidateLimit = defaultCandidateLimit
	}
	rolePoolLimit := deps.RolePoolLimit
	if rolePoolLimit <= 0 {
		rolePoolLimit = defaultRolePoolLimit
	}
	topicPoolLimit := deps.TopicPoolLimit
	if topicPoolLimit <= 0 {
		topicPoolLimit = defaultTopicPoolLimit
	}

	return &Service{
		repo:           deps.Repo,
		sink:           deps.Sink,
		ranker:         deps.Ranker,
		logger:         logger,
		candidateLimit: candidateLimit,
		rolePoolLimit:  rolePoolLimit,
		topicPoolLimit: topicPoolLimit,
	}
}

// MatchTopic ranks candidates of the requested role for a topic. When
// targetRole is empty the topic's seeking_role decides which side is ranked.
func (s *Service) MatchTopic(ctx context.Context, topicID int64, targetRole string) *TopicMatch {
	topic, err := s.repo.Topic(ctx, topicID)
	if err != nil {
		s.logger.Warn("fetching topic failed", zap.Int64("topic_id", topicID), zap.Error(err))
		return &TopicMatch{Status: statusError, Message: "internal error"}
	}
	if topic == nil {
		return &TopicMatch{Status: statusError, Message: fmt.Sprintf("Topic #%d not found", topicID)}
	}

	role := topic.SeekingRole
	if strings.TrimSpace(targetRole) != "" {
		role = NormalizeRole(targetRole)
	}
	if role != RoleSupervisor {
		role = RoleStudent
	}

	pool, err := s.repo.TopicCandidates(ctx, topicID, role, s.candidateLimit)
	if err != nil {
		s.logger.Warn("fetching topic candidates failed", zap.Int64("topic_id", topicID), zap.Error(err))
		pool = nil
	}
	s.resolveCVs(ctx, pool)

	ranked := s.rank(ctx, len(pool),
		fallbackForCandidates(pool),
		func() string { return encodePayload(BuildCandidatesPayload(*topic, pool, role)) },
		s.rankCandidates,
	)

	items := make([]CandidateItem, 0, len(ranked))
	for _, r := range resolveRanked(ranked, pool, func(c CandidateRow) int64 { return c.UserID }) {
		items = append(items, CandidateItem{
			Rank:          r.Rank,
			UserID:        r.Row.UserID,
			FullName:      r.Row.FullName,
			Role:          role,
			Reason:        r.Reason,
			OriginalScore: r.Row.Score,
		})
	}

	if len(items) > 0 {
		scored := make([]ScoredItem, 0, len(items))
		for _, item := range items {
			scored = append(scored, scoredItem(item.UserID, item.Rank))
		}
		if err := s.sink.SaveTopicCandidates(ctx, topicID, scored); err != nil {
			s.logger.Warn("persisting topic candidates failed", zap.Int64("topic_id", topicID), zap.Error(err))
		}
	}

	return &TopicMatch{
		Status:     statusOK,
		TopicID:    topicID,
		TargetRole: role,
		TopicTitle: topic.Title,
		Items:      items,
	}
}

// MatchRole ranks students for a role. The pool is always the most recently
// registered students, unscored.
func (s *Service) MatchRole(ctx context.Context, roleID int64) *RoleMatch {
	role, err := s.repo.Role(ctx, roleID)
	if err != nil {
		s.logger.Warn("fetching role failed", zap.Int64("role_id", roleID), zap.Error(err))
		return &RoleMatch{Status: statusError, Message: "internal error"}
	}
	if role == nil {
		return &RoleMatch{Status: statusError, Message: fmt.Sprintf("Role #%d not found", roleID)}
	}

	pool, err := s.repo.RecentStudents(ctx, s.candidateLimit)
	if err != nil {
		s.logger.Warn("fetching students failed", zap.Int64("role_id", roleID), zap.Error(err))
		pool = nil
	}
	s.resolveCVs(ctx, pool)

	ranked := s.rank(ctx, len(pool),
		fallbackForCandidates(pool),
		func() string { return encodePayload(BuildRoleCandidatesPayload(*role, pool)) },
		s.rankCandidates,
	)

	items := make([]CandidateItem, 0, len(ranked))
	for _, r := range resolveRanked(ranked, pool, func(c CandidateRow) int64 { return c.UserID }) {
		items = append(items, CandidateItem{
			Rank:          r.Rank,
			UserID:        r.Row.UserID,
			FullName:      r.Row.FullName,
			Reason:        r.Reason,
			OriginalScore: r.Row.Score,
		})
	}

	if len(items) > 0 {
		scored := make([]ScoredItem, 0, len(items))
		for _, item := range items {
			scored = append(scored, scoredItem(item.UserID, item.Rank))
		}
		if err := s.sink.SaveRoleCandidates(ctx, roleID, scored); err != nil {
			s.logger.Warn("persisting role candidates failed", zap.Int64("role_id", roleID), zap.Error(err))
		}
	}

	return &RoleMatch{Status: statusOK, RoleID: roleID, Items: items}
}

// MatchStudent ranks open roles for a student.
func (s *Service) MatchStudent(ctx context.Context, studentUserID int64) *StudentMatch {
	student, err := s.repo.Student(ctx, studentUserID)
	if err != nil {
		s.logger.Warn("fetching student failed", zap.Int64("user_id", studentUserID), zap.Error(err))
		return &StudentMatch{Status: statusError, Message: "internal error"}
	}
	if student == nil {
		return &StudentMatch{Status: statusError, Message: fmt.Sprintf("Student #%d not found", studentUserID)}
	}

	student.Profile.CV = s.repo.ResolveCV(ctx, student.Profile.CV)

	pool, err := s.repo.OpenRolesForStudents(ctx, s.rolePoolLimit)
	if err != nil {
		s.logger.Warn("fetching open roles failed", zap.Int64("user_id", studentUserID), zap.Error(err))
		pool = nil
	}

	ranked := s.rank(ctx, len(pool),
		fallbackEntries(len(pool), func(i int) int64 { return pool[i].ID }, FallbackReasonRoles),
		func() string { return encodePayload(BuildRolesForStudentPayload(*student, pool)) },
		s.rankRoles,
	)

	items := make([]RoleItem, 0, len(ranked))
	for _, r := range resolveRanked(ranked, pool, func(o RoleOpening) int64 { return o.ID }) {
		items = append(items, RoleItem{
			Rank:       r.Rank,
			RoleID:     r.Row.ID,
			RoleName:   r.Row.Name,
			TopicID:    r.Row.TopicID,
			TopicTitle: r.Row.TopicTitle,
			Reason:     r.Reason,
		})
	}

	if len(items) > 0 {
		scored := make([]ScoredItem, 0, len(items))
		for _, item := range items {
			scored = append(scored, scoredItem(item.RoleID, item.Rank))
		}
		if err := s.sink.SaveStudentRoles(ctx, studentUserID, scored); err != nil {
			s.logger.Warn("persisting roles for student failed", zap.Int64("user_id", studentUserID), zap.Error(err))
		}
	}

	return &StudentMatch{Status: statusOK, StudentUserID: studentUserID, Items: items}
}

// MatchSupervisor ranks open topics for a supervisor.
func (s *Service) MatchSupervisor(ctx context.Context, supervisorUserID int64) *SupervisorMatch {
	supervisor, err := s.repo.Supervisor(ctx, supervisorUserID)
	if err != nil {
		s.logger.Warn("fetching supervisor failed", zap.Int64("user_id", supervisorUserID), zap.Error(err))
		return &SupervisorMatch{Status: statusError, Message: "internal error"}
	}
	if supervisor == nil {
		return &SupervisorMatch{Status: statusError, Message: fmt.Sprintf("Supervisor #%d not found", supervisorUserID)}
	}

	pool, err := s.repo.OpenTopicsForSupervisors(ctx, s.topicPoolLimit)
	if err != nil {
		s.logger.Warn("fetching open topics failed", zap.Int64("user_id", supervisorUserID), zap.Error(err))
		pool = nil
	}

	ranked := s.rank(ctx, len(pool),
		fallbackEntries(len(pool), func(i int) int64 { return pool[i].ID }, FallbackReasonTopics),
		func() string { return encodePayload(BuildTopicsForSupervisorPayload(*supervisor, pool)) },
		s.rankTopics,
	)

	items := make([]TopicItem, 0, len(ranked))
	for _, r := range resolveRanked(ranked, pool, func(o TopicOpening) int64 { return o.ID }) {
		items = append(items, TopicItem{
			Rank:    r.Rank,
			TopicID: r.Row.ID,
			Title:   r.Row.Title,
			Reason:  r.Reason,
		})
	}

	if len(items) > 0 {
		scored := make([]ScoredItem, 0, len(items))
		for _, item := range items {
			scored = append(scored, scoredItem(item.TopicID, item.Rank))
		}
		if err := s.sink.SaveSupervisorTopics(ctx, supervisorUserID, scored); err != nil {
			s.logger.Warn("persisting topics for supervisor failed", zap.Int64("user_id", supervisorUserID), zap.Error(err))
		}
	}

	return &SupervisorMatch{Status: statusOK, SupervisorUserID: supervisorUserID, Items: items}
}

// rank decides between the model and the deterministic fallback. The model is
// consulted at most once, and only when it is configured and the pool is big
// enough to satisfy the five-entry contract.
func (s *Service) rank(ctx context.Context, poolSize int, fallback []ai.Entry, payload func() string, call func(context.Context, string) ([]ai.Entry, error)) []ai.Entry {
	if s.ranker == nil || poolSize < ai.TopSize {
		return fallback
	}

	entries, err := call(ctx, payload())
	if err != nil {
		s.logger.Warn("model ranking failed, using fallback", zap.Error(err))
		return fallback
	}
	return entries
}

// The rank callbacks close over s.ranker lazily: rank checks for a nil ranker
// before invoking them.

func (s *Service) rankCandidates(ctx context.Context, payloadJSON string) ([]ai.Entry, error) {
	return s.ranker.RankCandidates(ctx, payloadJSON)
}

func (s *Service) rankRoles(ctx context.Context, payloadJSON string) ([]ai.Entry, error) {
	return s.ranker.RankRoles(ctx, payloadJSON)
}

func (s *Service) rankTopics(ctx context.Context, payloadJSON string) ([]ai.Entry, error) {
	return s.ranker.RankTopics(ctx, payloadJSON)
}

// resolveCVs replaces stored CV references with extracted text for student
// candidates.
func (s *Service) resolveCVs(ctx context.Context, pool []CandidateRow) {
	for i := range pool {
		if pool[i].Student == nil || pool[i].Student.CV == "" {
			continue
		}
		pool[i].Student.CV = s.repo.ResolveCV(ctx, pool[i].Student.CV)
	}
}

func fallbackForCandidates(pool []CandidateRow) []ai.Entry {
	return fallbackEntries(len(pool), func(i int) int64 { return pool[i].UserID }, FallbackReasonCandidates)
}

// fallbackEntries takes the first min(TopSize, n) pool entries in their
// existing order.
func fallbackEntries(n int, id func(int) int64, reason string) []ai.Entry {
	if n > ai.TopSize {
		n = ai.TopSize
	}
	entries := make([]ai.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, ai.Entry{ID: id(i), Num: i + 1, Reason: reason})
	}
	return entries
}

type resolved[T any] struct {
	Row    T
	Rank   int
	Reason string
}

// resolveRanked maps model entries back to pool rows: by declared identifier
// first, then by 1-based position. Entries that resolve to nothing, or to a
// row already claimed by an earlier entry, are dropped; surviving items get
// dense ranks starting at 1.
func resolveRanked[T any](entries []ai.Entry, pool []T, id func(T) int64) []resolved[T] {
	byID := make(map[int64]int, len(pool))
	for i, row := range pool {
		byID[id(row)] = i
	}

	used := make(map[int]bool, len(entries))
	out := make([]resolved[T], 0, len(entries))
	for _, entry := range entries {
		idx, ok := byID[entry.ID]
		if !ok {
			idx = entry.Num - 1
			if idx < 0 || idx >= len(pool) {
				continue
			}
		}
		if used[idx] {
			continue
		}
		used[idx] = true
		out = append(out, resolved[T]{Row: pool[idx], Rank: len(out) + 1, Reason: entry.Reason})
	}
	return out
}

// scoredItem maps a rank to its persisted score: rank 1 scores 5, rank 5
// scores 1.
func scoredItem(targetID int64, rank int) ScoredItem {
	return ScoredItem{
		TargetID: targetID,
		Rank:     rank,
		Score:    float64(6 - rank),
		Primary:  rank == 1,
	}
}
