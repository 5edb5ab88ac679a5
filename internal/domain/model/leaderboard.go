package model

import "sort"

type LeaderboardEntry struct {
	Rank                int    `json:"rank"`
	Username            string `json:"username"`
	TotalSubmissions    int    `json:"total_submissions"`
	AcceptedSubmissions int    `json:"accepted_submissions"`
	ProblemsSolved      int    `json:"problems_solved"`
}

// BuildLeaderboard groups submissions by user and ranks them by distinct problems solved,
// then accepted submissions, then username.
func BuildLeaderboard(submissions []Submission) []LeaderboardEntry {
	type stats struct {
		entry  LeaderboardEntry
		solved map[string]struct{}
	}
	byUser := make(map[string]*stats)
	for i := range submissions {
		sub := &submissions[i]
		st, ok := byUser[sub.Username]
		if !ok {
			st = &stats{
				entry:  LeaderboardEntry{Username: sub.Username},
				solved: make(map[string]struct{}),
			}
			byUser[sub.Username] = st
		}
		st.entry.TotalSubmissions++
		if sub.Status == StatusAccepted {
			st.entry.AcceptedSubmissions++
			st.solved[sub.ProblemID] = struct{}{}
		}
	}

	entries := make([]LeaderboardEntry, 0, len(byUser))
	for _, st := range byUser {
		st.entry.ProblemsSolved = len(st.solved)
		entries = append(entries, st.entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ProblemsSolved != b.ProblemsSolved {
			return a.ProblemsSolved > b.ProblemsSolved
		}
		if a.AcceptedSubmissions != b.AcceptedSubmissions {
			return a.AcceptedSubmissions > b.AcceptedSubmissions
		}
		return a.Username < b.Username
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
