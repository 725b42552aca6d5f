// Package game implements the daily "pole" scoring game: the first three
// qualifying messages of each day win podium points, with streak and
// precision bonuses, monthly seasons, rank titles, and achievements.
//
// All state lives in a single JSON document persisted through docstore. The
// Engine is the only writer of that document. Wall-clock time is always
// passed in by the caller so the reset state machine stays deterministic and
// testable.
package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bdobrica/poruko/internal/poruko/docstore"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"

	// PodiumSize is the number of winners per day.
	PodiumSize = 3

	// AchievementPrecision is awarded once for a rank-1 pole landed within
	// the first two seconds of the minute.
	AchievementPrecision = "precision"

	// precisionWindowSeconds bounds the wall-clock second for the bonus.
	precisionWindowSeconds = 2

	// streakBonusFrom is the streak length at which the daily bonus point
	// starts being awarded.
	streakBonusFrom = 3
)

// Expected scoring failures, distinguished with errors.Is by the dispatcher.
var (
	ErrPodiumClosed  = errors.New("game: podium closed for today")
	ErrAlreadyScored = errors.New("game: user already scored today")
)

// basePoints maps podium rank to base points.
var basePoints = map[int]int{1: 3, 2: 2, 3: 1}

// medals maps podium rank to its tier label.
var medals = map[int]string{1: "gold", 2: "silver", 3: "bronze"}

// Result describes a successful scoring attempt so the caller can compose
// the chat reply.
type Result struct {
	Rank    int    // 1..3
	Medal   string // "gold", "silver", "bronze"
	Awarded int    // total points granted by this attempt
	Streak  int    // streak length after this win

	PrecisionBonus bool // rank-1 attempt inside the precision window
	StreakBonus    bool // streak reached streakBonusFrom or beyond
	NewAchievement bool // precision achievement granted for the first time
	NewSeason      bool // this attempt triggered the month rollover
}

// Standing is one row of the season ranking.
type Standing struct {
	UserID      string
	DisplayName string
	Points      int
	Title       string
}

// Engine owns the persisted game document.
type Engine struct {
	store *docstore.Store[Document]
}

// New creates an Engine persisting its document at path.
func New(path string) *Engine {
	return &Engine{store: docstore.New(path, DefaultDocument)}
}

// applyResets advances the document to now's month and day. Both transitions
// are idempotent: re-entering the stored month or day is a no-op. Returns
// whether the month rolled over.
func applyResets(doc *Document, now time.Time) (newSeason bool) {
	month := now.Format(monthLayout)
	if doc.System.CurrentMonth != month {
		newSeason = doc.System.CurrentMonth != ""
		for _, u := range doc.Users {
			u.Points = 0
			u.Streak = 0
		}
		doc.System.CurrentMonth = month
	}

	date := now.Format(dateLayout)
	if doc.System.CurrentDate != date {
		doc.System.CurrentDate = date
		doc.System.TodaysWinners = []string{}
	}
	return newSeason
}

// AttemptScore processes one pole attempt at the given wall-clock time.
//
// Failed attempts (podium closed, repeat attempt) return ErrPodiumClosed or
// ErrAlreadyScored without persisting anything. Successful attempts mutate
// the document and save it; a save failure is logged by the store caller
// chain and the in-memory award for that attempt is lost, which is accepted
// best-effort behaviour.
func (e *Engine) AttemptScore(userID, displayName string, now time.Time) (*Result, error) {
	doc := e.store.Load()
	newSeason := applyResets(&doc, now)

	winners := doc.System.TodaysWinners
	if len(winners) >= PodiumSize {
		return nil, ErrPodiumClosed
	}
	for _, w := range winners {
		if w == userID {
			return nil, ErrAlreadyScored
		}
	}

	rank := len(winners) + 1
	res := &Result{
		Rank:      rank,
		Medal:     medals[rank],
		NewSeason: newSeason,
	}

	user, ok := doc.Users[userID]
	if !ok {
		user = &UserRecord{Achievements: []string{}}
		doc.Users[userID] = user
	}
	user.DisplayName = displayName

	points := basePoints[rank]

	if rank == 1 && now.Second() < precisionWindowSeconds {
		points += 2
		res.PrecisionBonus = true
		if !user.hasAchievement(AchievementPrecision) {
			user.Achievements = append(user.Achievements, AchievementPrecision)
			res.NewAchievement = true
		}
	}

	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	if user.LastWinDate == yesterday {
		user.Streak++
		if user.Streak >= streakBonusFrom {
			points++
			res.StreakBonus = true
		}
	} else {
		user.Streak = 1
	}
	res.Streak = user.Streak

	user.LastWinDate = now.Format(dateLayout)
	user.Points += points
	res.Awarded = points

	doc.System.TodaysWinners = append(doc.System.TodaysWinners, userID)

	if err := e.store.Save(doc); err != nil {
		return nil, fmt.Errorf("game: persist attempt: %w", err)
	}
	return res, nil
}

// Rank returns up to topN users ordered by points descending. Ties keep a
// stable order by user ID so the standings do not jitter between calls.
func (e *Engine) Rank(topN int) []Standing {
	doc := e.store.Load()

	standings := make([]Standing, 0, len(doc.Users))
	for id, u := range doc.Users {
		standings = append(standings, Standing{
			UserID:      id,
			DisplayName: u.DisplayName,
			Points:      u.Points,
			Title:       TitleFor(u.Points),
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Points != standings[j].Points {
			return standings[i].Points > standings[j].Points
		}
		return standings[i].UserID < standings[j].UserID
	})

	if topN > 0 && len(standings) > topN {
		standings = standings[:topN]
	}
	return standings
}

// Achievements returns the achievement tags collected by a user, or nil when
// the user is unknown.
func (e *Engine) Achievements(userID string) []string {
	doc := e.store.Load()
	u, ok := doc.Users[userID]
	if !ok {
		return nil
	}
	return append([]string(nil), u.Achievements...)
}

// SetVariable stores a free-form text value under a lowercased key.
func (e *Engine) SetVariable(key, value string) error {
	doc := e.store.Load()
	doc.Variables[strings.ToLower(key)] = value
	if err := e.store.Save(doc); err != nil {
		return fmt.Errorf("game: persist variable: %w", err)
	}
	return nil
}

// GetVariable looks up a stored text value by lowercased key.
func (e *Engine) GetVariable(key string) (string, bool) {
	doc := e.store.Load()
	v, ok := doc.Variables[strings.ToLower(key)]
	return v, ok
}

// LastSummaryAt returns the timestamp of the last successful summary. The
// second return is false before the first summary or when the stored value
// does not parse.
func (e *Engine) LastSummaryAt() (time.Time, bool) {
	doc := e.store.Load()
	if doc.System.LastSummaryAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, doc.System.LastSummaryAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetLastSummaryAt overwrites and persists the summary timestamp.
func (e *Engine) SetLastSummaryAt(t time.Time) error {
	doc := e.store.Load()
	doc.System.LastSummaryAt = t.Format(time.RFC3339)
	if err := e.store.Save(doc); err != nil {
		return fmt.Errorf("game: persist summary timestamp: %w", err)
	}
	return nil
}
