package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"
)

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.CreateContest(ctx, &model.Contest{ID: "C1", Name: "Contest"}); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateProblem(ctx, &model.Problem{ID: "P1", ContestID: "C1", InputTestCases: []string{"1"}, ExpectedOutputs: []string{"1"}}); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateProblem(ctx, &model.Problem{ID: "P2", ContestID: "C1"}); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateProblem(ctx, &model.Problem{ID: "X1", ContestID: "OTHER"}); err != nil {
		t.Fatal(err)
	}
	return m
}

func pending(id string, at time.Time) *model.Submission {
	return &model.Submission{ID: id, ContestID: "C1", ProblemID: "P1", Username: "alice", Status: model.StatusPending, SubmittedAt: at}
}

func TestMemoryContestsAndProblems(t *testing.T) {
	ctx := context.Background()
	m := seededStore(t)

	if _, err := m.FindContest(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("FindContest(missing) err = %v", err)
	}
	if err := m.CreateContest(ctx, &model.Contest{ID: "C1"}); !errors.Is(err, common.ErrConflict) {
		t.Errorf("duplicate contest err = %v", err)
	}

	problems, err := m.ListProblemsByContest(ctx, "C1")
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 2 || problems[0].ID != "P1" || problems[1].ID != "P2" {
		t.Errorf("problems = %+v", problems)
	}

	p, _ := m.FindProblem(ctx, "P1")
	p.InputTestCases[0] = "mutated"
	again, _ := m.FindProblem(ctx, "P1")
	if again.InputTestCases[0] != "1" {
		t.Error("store shares test case slices with callers")
	}
}

func TestMemoryMarkRunningClaimsOnce(t *testing.T) {
	ctx := context.Background()
	m := seededStore(t)
	if err := m.CreateSubmission(ctx, pending("S1", time.Now())); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	claims := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.MarkRunning(ctx, "S1")
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				claims++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if claims != 1 {
		t.Fatalf("claims = %d, want 1", claims)
	}
	s, _ := m.FindSubmission(ctx, "S1")
	if s.Status != model.StatusRunning {
		t.Errorf("status = %s", s.Status)
	}
	if _, err := m.MarkRunning(ctx, "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("MarkRunning(nope) err = %v", err)
	}
}

func TestMemoryUpdateSubmissionIsMonotonic(t *testing.T) {
	ctx := context.Background()
	m := seededStore(t)
	sub := pending("S1", time.Now())
	if err := m.CreateSubmission(ctx, sub); err != nil {
		t.Fatal(err)
	}

	sub.ApplyResult(&model.ExecutionResult{Status: model.StatusAccepted, TestCasesPassed: 1, TotalTestCases: 1}, time.Now())
	sub.Code = "ignored"
	if err := m.UpdateSubmission(ctx, sub); err != nil {
		t.Fatal(err)
	}
	stored, _ := m.FindSubmission(ctx, "S1")
	if stored.Status != model.StatusAccepted || stored.ProcessedAt == nil || stored.TestCasesPassed != 1 {
		t.Errorf("stored = %+v", stored)
	}
	if stored.Code != "" {
		t.Error("UpdateSubmission changed immutable fields")
	}

	sub.Fail("late failure", time.Now())
	if err := m.UpdateSubmission(ctx, sub); !errors.Is(err, common.ErrConflict) {
		t.Errorf("overwrite of terminal record err = %v", err)
	}
	if err := m.UpdateSubmission(ctx, pending("missing", time.Now())); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("update of unknown record err = %v", err)
	}
}

func TestMemoryListSubmissionsOrdering(t *testing.T) {
	ctx := context.Background()
	m := seededStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"S1", "S2", "S3"} {
		if err := m.CreateSubmission(ctx, pending(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	other := pending("S4", base)
	other.ContestID = "OTHER"
	m.CreateSubmission(ctx, other)

	subs, err := m.ListSubmissions(ctx, "C1")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 3 || subs[0].ID != "S3" || subs[2].ID != "S1" {
		t.Errorf("ListSubmissions order = %v", ids(subs))
	}

	m.MarkRunning(ctx, "S2")
	oldest, _ := m.ListSubmissionsByStatus(ctx, model.StatusPending, SubmissionCursor{}, 2)
	if got := ids(oldest); len(got) != 2 || got[0] != "S4" || got[1] != "S1" {
		t.Errorf("ListSubmissionsByStatus = %v", got)
	}
	next, _ := m.ListSubmissionsByStatus(ctx, model.StatusPending, CursorOf(&oldest[1]), 2)
	if got := ids(next); len(got) != 1 || got[0] != "S3" {
		t.Errorf("ListSubmissionsByStatus after S1 = %v", got)
	}
}

func TestMemoryListSubmissionsByStatusPagesSameTimestamp(t *testing.T) {
	ctx := context.Background()
	m := seededStore(t)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"B", "A", "C"} {
		m.CreateSubmission(ctx, pending(id, at))
	}
	var seen []string
	cursor := SubmissionCursor{}
	for {
		page, err := m.ListSubmissionsByStatus(ctx, model.StatusPending, cursor, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(page) == 0 {
			break
		}
		seen = append(seen, page[0].ID)
		cursor = CursorOf(&page[0])
	}
	if strings.Join(seen, ",") != "A,B,C" {
		t.Errorf("pages = %v", seen)
	}
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	m := seededStore(t)
	if err := m.CreateUser(ctx, &model.User{Username: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateUser(ctx, &model.User{Username: "alice"}); !errors.Is(err, common.ErrConflict) {
		t.Errorf("duplicate user err = %v", err)
	}

	joined, err := m.JoinContest(ctx, "alice", "C1")
	if err != nil || !joined {
		t.Fatalf("first join = %v, %v", joined, err)
	}
	joined, err = m.JoinContest(ctx, "alice", "C1")
	if err != nil || joined {
		t.Fatalf("second join = %v, %v", joined, err)
	}
	if _, err := m.JoinContest(ctx, "alice", "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("join unknown contest err = %v", err)
	}

	u, err := m.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(u.JoinedContests) != 1 || u.JoinedContests[0] != "C1" {
		t.Errorf("joined = %v", u.JoinedContests)
	}
}

func ids(subs []model.Submission) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.ID
	}
	return out
}
