package commands_test

// Handler tests use real engine/history/gate instances over temp files so
// the persistence path is exercised too; only the network collaborators
// (summariser, weather) are faked.

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/poruko/internal/poruko/commands"
	"github.com/bdobrica/poruko/internal/poruko/cooldown"
	"github.com/bdobrica/poruko/internal/poruko/game"
	"github.com/bdobrica/poruko/internal/poruko/history"
	"github.com/bdobrica/poruko/internal/poruko/messages"
)

type fakeSummariser struct {
	text string
	err  error
	got  string
}

func (f *fakeSummariser) Summarise(ctx context.Context, transcript string) (string, error) {
	f.got = transcript
	return f.text, f.err
}

type fakeWeather struct {
	report string
	err    error
}

func (f *fakeWeather) Get(ctx context.Context, zip string) (string, error) {
	return f.report, f.err
}

type fakeNotifier struct {
	notices []string
}

func (f *fakeNotifier) SendNotice(roomID, message string) error {
	f.notices = append(f.notices, message)
	return nil
}

type fixture struct {
	handlers   *commands.Handlers
	engine     *game.Engine
	log        *history.Log
	summariser *fakeSummariser
	weather    *fakeWeather
	notifier   *fakeNotifier
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	f := &fixture{
		engine:     game.New(filepath.Join(dir, "pole.json")),
		log:        history.New(filepath.Join(dir, "history.json"), 3*time.Hour),
		summariser: &fakeSummariser{text: "resumen 😏"},
		weather:    &fakeWeather{report: "🌤️ Madrid: 21.0ºC, despejado"},
		notifier:   &fakeNotifier{},
		now:        time.Date(2024, 3, 5, 10, 0, 30, 0, time.UTC),
	}
	f.handlers = commands.NewHandlers(commands.HandlersConfig{
		Engine:        f.engine,
		Log:           f.log,
		Gate:          cooldown.New(f.engine, 2*time.Hour),
		Summariser:    f.summariser,
		Weather:       f.weather,
		Notifier:      f.notifier,
		Messages:      messages.Defaults(),
		SummaryWindow: 2 * time.Hour,
		Now:           func() time.Time { return f.now },
	})
	return f
}

func fakeEvent(sender string) *event.Event {
	return &event.Event{
		Sender: id.UserID(sender),
		RoomID: id.RoomID("!grupo:example.org"),
	}
}

func parseCmd(t *testing.T, text string) *commands.Command {
	t.Helper()
	cmd, err := commands.NewRouter("!").Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return cmd
}

func TestHandlePoleAwardsAndReplies(t *testing.T) {
	f := newFixture(t)

	got, err := f.handlers.HandlePole(context.Background(), fakeEvent("@ana:example.org"))
	if err != nil {
		t.Fatalf("HandlePole: %v", err)
	}
	if !strings.Contains(got, "🥇") || !strings.Contains(got, "+3 pts") {
		t.Errorf("reply = %q, want gold medal and +3", got)
	}
}

func TestHandlePoleRepeatAndLateReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.handlers.HandlePole(ctx, fakeEvent("@ana:example.org")); err != nil {
		t.Fatal(err)
	}

	got, err := f.handlers.HandlePole(ctx, fakeEvent("@ana:example.org"))
	if err != nil {
		t.Fatalf("repeat attempt: %v", err)
	}
	if !strings.Contains(got, "ya tienes medalla") {
		t.Errorf("repeat reply = %q", got)
	}

	for _, u := range []string{"@b:x", "@c:x"} {
		if _, err := f.handlers.HandlePole(ctx, fakeEvent(u)); err != nil {
			t.Fatal(err)
		}
	}
	got, err = f.handlers.HandlePole(ctx, fakeEvent("@tarde:x"))
	if err != nil {
		t.Fatalf("late attempt: %v", err)
	}
	if !strings.Contains(got, "Llegas tarde") {
		t.Errorf("late reply = %q", got)
	}
}

func TestHandleRanking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.handlers.HandleRanking(ctx, parseCmd(t, "!ranking"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if got != messages.Defaults().RankingEmpty {
		t.Errorf("empty ranking = %q", got)
	}

	if _, err := f.handlers.HandlePole(ctx, fakeEvent("@ana:example.org")); err != nil {
		t.Fatal(err)
	}
	got, err = f.handlers.HandleRanking(ctx, parseCmd(t, "!ranking"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "CLASIFICACIÓN") || !strings.Contains(got, "3 pts") {
		t.Errorf("ranking = %q", got)
	}
}

func TestHandleAchievements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.handlers.HandleAchievements(ctx, parseCmd(t, "!logros"), fakeEvent("@ana:example.org"))
	if err != nil {
		t.Fatal(err)
	}
	if got != messages.Defaults().AchievementsEmpty {
		t.Errorf("no achievements reply = %q", got)
	}

	// Precision pole: second 0 grants the achievement.
	f.now = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	if _, err := f.handlers.HandlePole(ctx, fakeEvent("@ana:example.org")); err != nil {
		t.Fatal(err)
	}
	got, err = f.handlers.HandleAchievements(ctx, parseCmd(t, "!logros"), fakeEvent("@ana:example.org"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, game.AchievementPrecision) {
		t.Errorf("achievements reply = %q", got)
	}
}

func TestHandleWeather(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.handlers.HandleWeather(ctx, parseCmd(t, "!tiempo 28001"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if got != f.weather.report {
		t.Errorf("weather reply = %q", got)
	}

	// Missing argument → usage.
	got, err = f.handlers.HandleWeather(ctx, parseCmd(t, "!tiempo"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if got != messages.Defaults().WeatherUsage {
		t.Errorf("usage reply = %q", got)
	}

	// Service failure → fixed error string, no propagated error.
	f.weather.err = errors.New("boom")
	got, err = f.handlers.HandleWeather(ctx, parseCmd(t, "!tiempo 28001"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if got != messages.Defaults().WeatherError {
		t.Errorf("error reply = %q", got)
	}
}

func TestHandleSetGetVariable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.handlers.HandleSetVariable(ctx, parseCmd(t, "!set Lista pan y leche"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "lista") {
		t.Errorf("set reply = %q", got)
	}

	got, err = f.handlers.HandleGetVariable(ctx, parseCmd(t, "!get LISTA"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "pan y leche" {
		t.Errorf("get reply = %q", got)
	}

	got, err = f.handlers.HandleGetVariable(ctx, parseCmd(t, "!get nada"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if got != messages.Defaults().VariableMissing {
		t.Errorf("missing variable reply = %q", got)
	}

	got, err = f.handlers.HandleSetVariable(ctx, parseCmd(t, "!set soloclave"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if got != messages.Defaults().SetUsage {
		t.Errorf("set usage reply = %q", got)
	}
}

func TestHandleSummarySuccessRecordsCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.log.Append("!grupo:example.org", "Ana", "hola", f.now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	got, err := f.handlers.HandleSummary(ctx, parseCmd(t, "!resumen"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "resumen 😏") {
		t.Errorf("summary reply = %q", got)
	}
	if !strings.Contains(f.summariser.got, "Ana: hola") {
		t.Errorf("transcript = %q, want retention window text", f.summariser.got)
	}
	if len(f.notifier.notices) != 1 {
		t.Errorf("interim notices = %d, want 1", len(f.notifier.notices))
	}

	// The cooldown is now armed: a second request inside 2h is denied.
	f.now = f.now.Add(59 * time.Minute)
	got, err = f.handlers.HandleSummary(ctx, parseCmd(t, "!resumen"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "61 minutos") {
		t.Errorf("cooldown reply = %q, want ~61 minute countdown", got)
	}
}

func TestHandleSummaryFailureDoesNotBurnCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.summariser.err = errors.New("modelo caído")

	got, err := f.handlers.HandleSummary(ctx, parseCmd(t, "!resumen"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if got != messages.Defaults().SummaryFallback {
		t.Errorf("failure reply = %q, want fallback", got)
	}

	// Gate must still be open: the failed attempt recorded nothing.
	f.summariser.err = nil
	got, err = f.handlers.HandleSummary(ctx, parseCmd(t, "!resumen"), fakeEvent("@ana:x"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "resumen 😏") {
		t.Errorf("retry reply = %q, want a fresh summary", got)
	}
}
