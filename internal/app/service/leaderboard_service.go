package service

import (
	"context"
	"fmt"

	"contest_judge/internal/domain/model"
	"contest_judge/internal/domain/repository"

	"golang.org/x/sync/singleflight"
)

type LeaderboardService struct {
	contestRepo    repository.ContestRepository
	submissionRepo repository.SubmissionRepository
	group          singleflight.Group
}

func NewLeaderboardService(contestRepo repository.ContestRepository, submissionRepo repository.SubmissionRepository) *LeaderboardService {
	return &LeaderboardService{contestRepo: contestRepo, submissionRepo: submissionRepo}
}

// Leaderboard ranks the contest's participants from its full submission history. Concurrent
// calls for the same contest share one computation.
func (s *LeaderboardService) Leaderboard(ctx context.Context, contestID string) ([]model.LeaderboardEntry, error) {
	// The computation is shared, so one caller going away must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(contestID, func() (interface{}, error) {
		if _, err := s.contestRepo.FindContest(shared, contestID); err != nil {
			return nil, fmt.Errorf("contest %s: %w", contestID, err)
		}
		subs, err := s.submissionRepo.ListSubmissions(shared, contestID)
		if err != nil {
			return nil, err
		}
		return model.BuildLeaderboard(subs), nil
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing a result must not see each other's edits.
	entries := v.([]model.LeaderboardEntry)
	return append([]model.LeaderboardEntry(nil), entries...), nil
}
