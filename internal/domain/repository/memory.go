package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"
)

// MemoryStore implements every repository in process memory. Records are copied on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	contests     map[string]model.Contest
	problems     map[string]model.Problem
	problemOrder []string
	submissions  map[string]model.Submission
	users        map[string]model.User
}

var (
	_ ContestRepository    = (*MemoryStore)(nil)
	_ ProblemRepository    = (*MemoryStore)(nil)
	_ SubmissionRepository = (*MemoryStore)(nil)
	_ UserRepository       = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contests:    make(map[string]model.Contest),
		problems:    make(map[string]model.Problem),
		submissions: make(map[string]model.Submission),
		users:       make(map[string]model.User),
	}
}

func (m *MemoryStore) CreateContest(ctx context.Context, c *model.Contest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contests[c.ID]; ok {
		return fmt.Errorf("contest %s already exists: %w", c.ID, common.ErrConflict)
	}
	stored := *c
	stored.Problems = nil
	m.contests[c.ID] = stored
	return nil
}

func (m *MemoryStore) FindContest(ctx context.Context, id string) (*model.Contest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) CreateProblem(ctx context.Context, p *model.Problem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.problems[p.ID]; ok {
		return fmt.Errorf("problem %s already exists: %w", p.ID, common.ErrConflict)
	}
	m.problems[p.ID] = copyProblem(*p)
	m.problemOrder = append(m.problemOrder, p.ID)
	return nil
}

func (m *MemoryStore) FindProblem(ctx context.Context, id string) (*model.Problem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	p = copyProblem(p)
	return &p, nil
}

func (m *MemoryStore) ListProblemsByContest(ctx context.Context, contestID string) ([]model.Problem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	problems := []model.Problem{}
	for _, id := range m.problemOrder {
		if p := m.problems[id]; p.ContestID == contestID {
			problems = append(problems, copyProblem(p))
		}
	}
	return problems, nil
}

func (m *MemoryStore) CreateSubmission(ctx context.Context, s *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submissions[s.ID]; ok {
		return fmt.Errorf("submission %s already exists: %w", s.ID, common.ErrConflict)
	}
	m.submissions[s.ID] = copySubmission(*s)
	return nil
}

func (m *MemoryStore) FindSubmission(ctx context.Context, id string) (*model.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	s = copySubmission(s)
	return &s, nil
}

func (m *MemoryStore) UpdateSubmission(ctx context.Context, s *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.submissions[s.ID]
	if !ok {
		return common.ErrNotFound
	}
	if stored.Status.IsTerminal() {
		return fmt.Errorf("submission %s is already graded: %w", s.ID, common.ErrConflict)
	}
	next := copySubmission(*s)
	stored.Status = next.Status
	stored.ErrorMessage = next.ErrorMessage
	stored.TestCasesPassed = next.TestCasesPassed
	stored.TotalTestCases = next.TotalTestCases
	stored.ProcessedAt = next.ProcessedAt
	m.submissions[s.ID] = stored
	return nil
}

func (m *MemoryStore) MarkRunning(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return false, common.ErrNotFound
	}
	if s.Status != model.StatusPending {
		return false, nil
	}
	s.Status = model.StatusRunning
	m.submissions[id] = s
	return true, nil
}

func (m *MemoryStore) ListSubmissions(ctx context.Context, contestID string) ([]model.Submission, error) {
	return m.filterSubmissions(func(s *model.Submission) bool { return s.ContestID == contestID }, true, 0), nil
}

func (m *MemoryStore) ListSubmissionsByStatus(ctx context.Context, status model.SubmissionStatus, after SubmissionCursor, limit int) ([]model.Submission, error) {
	return m.filterSubmissions(func(s *model.Submission) bool {
		return s.Status == status && !after.covers(s)
	}, false, limit), nil
}

func (m *MemoryStore) filterSubmissions(keep func(*model.Submission) bool, newestFirst bool, limit int) []model.Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := []model.Submission{}
	for _, s := range m.submissions {
		if keep(&s) {
			subs = append(subs, copySubmission(s))
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		a, b := subs[i], subs[j]
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			if newestFirst {
				return a.SubmittedAt.After(b.SubmittedAt)
			}
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
	}
	stored := *u
	stored.JoinedContests = append([]string(nil), u.JoinedContests...)
	m.users[u.Username] = stored
	return nil
}

func (m *MemoryStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	u.JoinedContests = append([]string(nil), u.JoinedContests...)
	return &u, nil
}

func (m *MemoryStore) JoinContest(ctx context.Context, username, contestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return false, common.ErrNotFound
	}
	if _, ok := m.contests[contestID]; !ok {
		return false, common.ErrNotFound
	}
	for _, id := range u.JoinedContests {
		if id == contestID {
			return false, nil
		}
	}
	u.JoinedContests = append(append([]string(nil), u.JoinedContests...), contestID)
	m.users[username] = u
	return true, nil
}

func copyProblem(p model.Problem) model.Problem {
	p.InputTestCases = append([]string(nil), p.InputTestCases...)
	p.ExpectedOutputs = append([]string(nil), p.ExpectedOutputs...)
	return p
}

func copySubmission(s model.Submission) model.Submission {
	if s.ErrorMessage != nil {
		msg := *s.ErrorMessage
		s.ErrorMessage = &msg
	}
	if s.ProcessedAt != nil {
		t := *s.ProcessedAt
		s.ProcessedAt = &t
	}
	return s
}
