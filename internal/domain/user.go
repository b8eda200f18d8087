package domain

// User is a registered participant. The ID comes from the external
// authentication collaborator and never changes.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IconURL     string `json:"icon_url,omitempty"`
	WinCount    int    `json:"win_count"`
	LoseCount   int    `json:"lose_count"`
	DrawCount   int    `json:"draw_count"`
}

// UserUpdate carries the mutable profile fields. Nil means leave unchanged.
type UserUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	IconURL     *string `json:"icon_url,omitempty"`
}

// MatchResult records the outcome of a finished event. Exactly one of
// WinnerID/LoserID pairing or Draw applies; on a draw both participants are
// listed and neither is a winner.
type MatchResult struct {
	EventID  string `json:"event_id"`
	WinnerID string `json:"winner_id,omitempty"`
	LoserID  string `json:"loser_id,omitempty"`
	Draw     bool   `json:"draw,omitempty"`
}
