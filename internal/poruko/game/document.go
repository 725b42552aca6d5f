package game

// Document is the root persisted object of the pole game. It is stored as a
// single JSON file through docstore and mutated only by the Engine.
type Document struct {
	System    System                 `json:"system"`
	Users     map[string]*UserRecord `json:"users"`
	Variables map[string]string      `json:"variables"`
}

// System holds the date-keyed reset state and the summary cooldown timestamp.
type System struct {
	// CurrentDate is the day the document was last scored on ("2006-01-02").
	// A scoring attempt on a later day clears TodaysWinners.
	CurrentDate string `json:"current_date"`

	// CurrentMonth is the running season ("2006-01"). A scoring attempt in a
	// later month zeroes every user's points and streak.
	CurrentMonth string `json:"current_month"`

	// TodaysWinners lists user IDs in finishing order. Never longer than
	// PodiumSize and never contains the same user twice.
	TodaysWinners []string `json:"todays_winners"`

	// LastSummaryAt is the RFC 3339 timestamp of the last successful chat
	// summary, empty before the first one. Owned by the cooldown gate.
	LastSummaryAt string `json:"last_summary_at,omitempty"`
}

// UserRecord is the per-user game state for the current season.
type UserRecord struct {
	DisplayName  string   `json:"display_name"`
	Points       int      `json:"points"`
	Streak       int      `json:"streak"`
	Achievements []string `json:"achievements"`
	LastWinDate  string   `json:"last_win_date"`
}

// DefaultDocument returns an empty game document.
func DefaultDocument() Document {
	return Document{
		System: System{
			TodaysWinners: []string{},
		},
		Users:     map[string]*UserRecord{},
		Variables: map[string]string{},
	}
}

func (u *UserRecord) hasAchievement(tag string) bool {
	for _, a := range u.Achievements {
		if a == tag {
			return true
		}
	}
	return false
}
