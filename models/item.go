package models

import "fmt"

// TeamStats is what the statistics provider reports for one team.
// Any EPA component may be missing (nil).
type TeamStats struct {
	Team       int      `json:"team"`
	EPATotal   *float64 `json:"epa_total"`
	EPAAuto    *float64 `json:"epa_auto"`
	EPATeleop  *float64 `json:"epa_teleop"`
	EPAEndgame *float64 `json:"epa_endgame"`
}

// Item is a team card on the board. ID is stable and serves as the
// drag identity.
type Item struct {
	ID string `json:"id"`
	TeamStats
}

// ItemID derives the drag identity from the team number.
func ItemID(team int) string {
	return fmt.Sprintf("team-%d", team)
}

// NewItem wraps team stats into a board item.
func NewItem(stats TeamStats) Item {
	return Item{ID: ItemID(stats.Team), TeamStats: stats}
}
