package service

import (
	"sort"
	"strings"

	"partygame/internal/models"
)

// Award 計算單一作答應得的分數，答錯或題目沒有正確答案時為 0
func Award(q *Question, a Answer) int {
	if q == nil || q.Correct == nil {
		return 0
	}
	if matches(q.Type, *q.Correct, a) {
		return q.Points
	}
	return 0
}

func matches(kind QuestionKind, correct, submitted Answer) bool {
	switch kind {
	case KindSingle:
		return submitted.Choices == nil && submitted.Value == correct.Value
	case KindText:
		return strings.EqualFold(strings.TrimSpace(submitted.Value), strings.TrimSpace(correct.Value))
	case KindMulti:
		return sameSet(submitted.Choices, correct.Choices)
	default:
		return false
	}
}

// sameSet 忽略順序與重複
func sameSet(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	left := make(map[string]struct{}, len(a))
	for _, v := range a {
		left[v] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, ok := left[v]; !ok {
			return false
		}
		right[v] = struct{}{}
	}
	return len(left) == len(right)
}

// Leaderboard 依分數遞減排序，同分者維持傳入順序 (加入順序)
func Leaderboard(participants []*Participant) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, models.LeaderboardEntry{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []models.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}
