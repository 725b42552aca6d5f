package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/poruko/internal/poruko/cooldown"
	"github.com/bdobrica/poruko/internal/poruko/game"
	"github.com/bdobrica/poruko/internal/poruko/history"
	"github.com/bdobrica/poruko/internal/poruko/messages"
)

// rankingSize is how many rows the !ranking reply shows.
const rankingSize = 10

// Summariser produces the chat summary. Implemented by summary.Client.
type Summariser interface {
	Summarise(ctx context.Context, transcript string) (string, error)
}

// WeatherService answers !tiempo. Implemented by weather.Client.
type WeatherService interface {
	Get(ctx context.Context, zip string) (string, error)
}

// Notifier posts interim notices while a slow operation runs. Implemented
// by the Matrix client.
type Notifier interface {
	SendNotice(roomID, message string) error
}

// Handlers implements the game command set.
type Handlers struct {
	engine     *game.Engine
	log        *history.Log
	gate       *cooldown.Gate
	summariser Summariser
	weather    WeatherService
	notifier   Notifier
	msgs       messages.Messages

	// summaryWindow is the lookback used for !resumen transcripts.
	summaryWindow time.Duration

	// displayName resolves a Matrix user ID to a shown name.
	displayName func(userID string) string

	// now returns the current time in the group's timezone. Injected so
	// date-sensitive logic is testable.
	now func() time.Time
}

// HandlersConfig wires the collaborators into Handlers.
type HandlersConfig struct {
	Engine        *game.Engine
	Log           *history.Log
	Gate          *cooldown.Gate
	Summariser    Summariser
	Weather       WeatherService
	Notifier      Notifier
	Messages      messages.Messages
	SummaryWindow time.Duration
	DisplayName   func(userID string) string
	Now           func() time.Time
}

// NewHandlers creates the command handler set.
func NewHandlers(cfg HandlersConfig) *Handlers {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DisplayName == nil {
		cfg.DisplayName = func(userID string) string { return userID }
	}
	return &Handlers{
		engine:        cfg.Engine,
		log:           cfg.Log,
		gate:          cfg.Gate,
		summariser:    cfg.Summariser,
		weather:       cfg.Weather,
		notifier:      cfg.Notifier,
		msgs:          cfg.Messages,
		summaryWindow: cfg.SummaryWindow,
		displayName:   cfg.DisplayName,
		now:           cfg.Now,
	}
}

// Register attaches every handler to the router.
func (h *Handlers) Register(r *Router) {
	r.Register("ranking", h.HandleRanking)
	r.Register("logros", h.HandleAchievements)
	r.Register("tiempo", h.HandleWeather)
	r.Register("set", h.HandleSetVariable)
	r.Register("get", h.HandleGetVariable)
	r.Register("resumen", h.HandleSummary)
}

// HandleRanking renders the season standings.
func (h *Handlers) HandleRanking(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	standings := h.engine.Rank(rankingSize)
	if len(standings) == 0 {
		return h.msgs.RankingEmpty, nil
	}

	lines := []string{h.msgs.RankingHeader, ""}
	for i, s := range standings {
		lines = append(lines, messages.Render(h.msgs.RankingEntry, map[string]any{
			"Position": i + 1,
			"Name":     s.DisplayName,
			"Points":   s.Points,
			"Title":    s.Title,
		}))
	}
	return strings.Join(lines, "\n"), nil
}

// HandleAchievements lists the sender's achievement tags.
func (h *Handlers) HandleAchievements(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	tags := h.engine.Achievements(evt.Sender.String())
	if len(tags) == 0 {
		return h.msgs.AchievementsEmpty, nil
	}
	return messages.Render(h.msgs.Achievements, map[string]any{
		"List": strings.Join(tags, ", "),
	}), nil
}

// HandleWeather answers !tiempo <postal code>.
func (h *Handlers) HandleWeather(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	zip, ok := cmd.GetArg(0)
	if !ok {
		return h.msgs.WeatherUsage, nil
	}

	report, err := h.weather.Get(ctx, zip)
	if err != nil {
		slog.Warn("weather lookup failed", "zip", zip, "err", err)
		return h.msgs.WeatherError, nil
	}
	return report, nil
}

// HandleSetVariable stores a free-form text variable: !set <nombre> <texto>.
func (h *Handlers) HandleSetVariable(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	key, ok := cmd.GetArg(0)
	value := cmd.Trailing(1)
	if !ok || value == "" {
		return h.msgs.SetUsage, nil
	}

	if err := h.engine.SetVariable(key, value); err != nil {
		return "", fmt.Errorf("set variable: %w", err)
	}
	return messages.Render(h.msgs.VariableSaved, map[string]any{
		"Key": strings.ToLower(key),
	}), nil
}

// HandleGetVariable retrieves a stored variable: !get <nombre>.
func (h *Handlers) HandleGetVariable(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	key, ok := cmd.GetArg(0)
	if !ok {
		return h.msgs.GetUsage, nil
	}

	value, ok := h.engine.GetVariable(key)
	if !ok {
		return h.msgs.VariableMissing, nil
	}
	return value, nil
}

// HandleSummary runs the cooldown-gated chat summary for the room the
// command arrived in.
//
// The gate is check-then-commit: the timestamp is recorded only after the
// summariser produced a result, so a failed summary does not burn the
// cooldown and the fallback message costs the group nothing.
func (h *Handlers) HandleSummary(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	now := h.now()
	roomID := evt.RoomID.String()

	if d := h.gate.TryAcquire(now); !d.Allowed {
		return messages.Render(h.msgs.CooldownWait, map[string]any{
			"Minutes": int(math.Round(d.Remaining.Minutes())),
		}), nil
	}

	if err := h.notifier.SendNotice(roomID, h.msgs.SummaryThinking); err != nil {
		slog.Warn("interim notice failed", "room", roomID, "err", err)
	}

	transcript := h.log.RecentText(roomID, h.summaryWindow, now)
	text, err := h.summariser.Summarise(ctx, transcript)
	if err != nil {
		slog.Error("summary failed", "room", roomID, "err", err)
		return h.msgs.SummaryFallback, nil
	}

	if err := h.gate.Record(now); err != nil {
		// The summary itself succeeded; a lost cooldown timestamp only
		// means the next one may come early.
		slog.Error("cooldown record failed", "err", err)
	}

	return messages.Render(h.msgs.SummaryHeader, map[string]any{
		"Summary": text,
	}), nil
}

// HandlePole processes a pole attempt for the sender. It is not a
// "!"-command — the dispatcher calls it when a group message matches the
// pole keyword.
func (h *Handlers) HandlePole(ctx context.Context, evt *event.Event) (string, error) {
	now := h.now()
	sender := evt.Sender.String()
	name := h.displayName(sender)

	res, err := h.engine.AttemptScore(sender, name, now)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrPodiumClosed):
			return messages.Render(h.msgs.Late, map[string]any{"Name": name}), nil
		case errors.Is(err, game.ErrAlreadyScored):
			return messages.Render(h.msgs.AlreadyScored, map[string]any{"Name": name}), nil
		}
		return "", fmt.Errorf("pole attempt: %w", err)
	}

	parts := []string{}
	if res.NewSeason {
		parts = append(parts, h.msgs.NewSeason)
	}
	parts = append(parts, messages.Render(h.msgs.Score, map[string]any{
		"Medal":  medalEmoji(res.Rank),
		"Name":   name,
		"Points": res.Awarded,
	}))
	if res.PrecisionBonus {
		parts = append(parts, h.msgs.PrecisionBonus)
	}
	if res.StreakBonus {
		parts = append(parts, messages.Render(h.msgs.StreakBonus, map[string]any{
			"Streak": res.Streak,
		}))
	}
	return strings.Join(parts, "\n"), nil
}

// medalEmoji maps a podium rank to its emoji.
func medalEmoji(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return ""
}
