package models

// LeaderboardEntry 排行榜上的一筆資料
type LeaderboardEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}
