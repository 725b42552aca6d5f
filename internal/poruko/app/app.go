// Package app wires the Poruko subsystems together and routes every inbound
// Matrix event to exactly one behaviour: a "!" command, a pole attempt, a GIF
// keyword reply, the China clock easter egg, or silence.
package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/poruko/common/trace"
	"github.com/bdobrica/poruko/internal/poruko/commands"
	"github.com/bdobrica/poruko/internal/poruko/cooldown"
	"github.com/bdobrica/poruko/internal/poruko/game"
	"github.com/bdobrica/poruko/internal/poruko/gifs"
	"github.com/bdobrica/poruko/internal/poruko/history"
	"github.com/bdobrica/poruko/internal/poruko/matrix"
	"github.com/bdobrica/poruko/internal/poruko/messages"
	"github.com/bdobrica/poruko/internal/poruko/store"
	"github.com/bdobrica/poruko/internal/poruko/summary"
	"github.com/bdobrica/poruko/internal/poruko/weather"
)

// poleRe matches the bare word "pole" anywhere in a message. Word boundaries
// keep "polea" and "Interpol" from scoring.
var poleRe = regexp.MustCompile(`(?i)\bpole\b`)

// Config holds application configuration, assembled from the environment by
// cmd/poruko.
type Config struct {
	// DatabasePath is the SQLite file backing the Matrix sync state.
	DatabasePath string
	// ScorePath, HistoryPath and GifsPath are the JSON documents for the
	// game, the retention log and the GIF index.
	ScorePath   string
	HistoryPath string
	GifsPath    string
	// MessagesPath optionally overrides the stock message catalogue.
	MessagesPath string

	Matrix  matrix.Config
	Weather weather.Config
	Summary summary.Config

	// AdminUser is the Matrix user ID allowed to file GIFs over private
	// chat. Empty disables the admin flow.
	AdminUser string

	// Location is the group's timezone; midnight in this zone opens the
	// podium.
	Location *time.Location

	// Retention is how long captured conversation is kept; SummaryWindow is
	// the lookback for !resumen; SummaryCooldown throttles it.
	Retention       time.Duration
	SummaryWindow   time.Duration
	SummaryCooldown time.Duration
}

// App is the assembled bot.
type App struct {
	config   *Config
	store    *store.Store
	matrix   *matrix.Client
	router   *commands.Router
	handlers *commands.Handlers
	engine   *game.Engine
	log      *history.Log
	gifs     *gifs.Index
	msgs     messages.Messages
	china    *time.Location

	// pending maps a private room to the media reference of a GIF the admin
	// just sent, awaiting its category.
	mu      sync.Mutex
	pending map[string]string
}

// New assembles the application from config.
func New(config *Config) (*App, error) {
	if config.Location == nil {
		config.Location = time.UTC
	}

	msgs, err := messages.Load(config.MessagesPath)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	// Inject the DB so the client persists the sync token across restarts.
	matrixCfg := config.Matrix
	matrixCfg.DB = st.DB()
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initialize Matrix client: %w", err)
	}

	engine := game.New(config.ScorePath)
	retentionLog := history.New(config.HistoryPath, config.Retention)
	gifIndex := gifs.New(config.GifsPath)

	now := func() time.Time { return time.Now().In(config.Location) }

	handlers := commands.NewHandlers(commands.HandlersConfig{
		Engine:        engine,
		Log:           retentionLog,
		Gate:          cooldown.New(engine, config.SummaryCooldown),
		Summariser:    summary.New(config.Summary),
		Weather:       weather.New(config.Weather),
		Notifier:      matrixClient,
		Messages:      msgs,
		SummaryWindow: config.SummaryWindow,
		DisplayName:   matrixClient.DisplayName,
		Now:           now,
	})

	router := commands.NewRouter("!")
	handlers.Register(router)

	china, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		slog.Warn("China clock unavailable", "err", err)
	}

	return &App{
		config:   config,
		store:    st,
		matrix:   matrixClient,
		router:   router,
		handlers: handlers,
		engine:   engine,
		log:      retentionLog,
		gifs:     gifIndex,
		msgs:     msgs,
		china:    china,
		pending:  map[string]string{},
	}, nil
}

// Run starts the bot and blocks until an interrupt signal arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("start Matrix client: %w", err)
	}

	for _, roomID := range a.config.Matrix.GameRooms {
		if err := a.matrix.SendNotice(roomID, a.msgs.Startup); err != nil {
			slog.Warn("startup notice failed", "room", roomID, "err", err)
		}
	}

	slog.Info("Poruko is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop stops the application.
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.matrix.Stop()

	slog.Info("closing database")
	a.store.Close()
}

// handleMessage routes one inbound message. The Matrix client has already
// dropped the bot's own events, notices from other bots, and anything that is
// not text or an image.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	ctx = trace.WithTraceID(ctx, trace.GenerateID())

	msg := evt.Content.AsMessage()
	if msg == nil {
		return
	}

	if !a.matrix.IsGameRoom(evt.RoomID.String()) {
		a.handlePrivate(ctx, evt, msg)
		return
	}
	a.handleGameRoom(ctx, evt, msg)
}

// handleGameRoom is the group-room routing policy: commands are answered,
// everything else is captured into the retention log and then checked for a
// pole attempt, the China clock, or a GIF keyword. At most one reply per
// message.
func (a *App) handleGameRoom(ctx context.Context, evt *event.Event, msg *event.MessageEventContent) {
	if msg.MsgType != event.MsgText {
		return
	}
	roomID := evt.RoomID.String()
	text := msg.Body

	cmd, err := a.router.Parse(text)
	if err == nil {
		// Commands never enter the retention log; a transcript full of
		// !ranking noise would poison the summaries.
		if !a.router.Known(cmd.Name) {
			slog.Debug("unknown command ignored", "name", cmd.Name, "trace", trace.FromContext(ctx))
			return
		}
		reply, err := a.router.Route(ctx, text, evt)
		if err != nil {
			slog.Error("command failed", "name", cmd.Name, "err", err, "trace", trace.FromContext(ctx))
			return
		}
		a.send(roomID, reply)
		return
	}
	if !errors.Is(err, commands.ErrNotACommand) {
		// A bare "!" or similar; treat as chat noise.
		return
	}

	author := a.matrix.DisplayName(evt.Sender.String())
	if err := a.log.Append(roomID, author, text, time.Now().In(a.config.Location)); err != nil {
		slog.Warn("retention capture failed", "room", roomID, "err", err)
	}

	if poleRe.MatchString(text) {
		reply, err := a.handlers.HandlePole(ctx, evt)
		if err != nil {
			slog.Error("pole attempt failed", "err", err, "trace", trace.FromContext(ctx))
			return
		}
		a.reply(roomID, evt.ID.String(), reply)
		return
	}

	if a.china != nil && strings.Contains(strings.ToLower(text), "hola china") {
		a.send(roomID, messages.Render(a.msgs.ChinaTime, map[string]any{
			"Time": time.Now().In(a.china).Format("15:04"),
		}))
		return
	}

	if category, ok := a.gifs.Match(text); ok {
		if ref, ok := a.gifs.Pick(category); ok {
			if err := a.matrix.SendImage(roomID, ref, category); err != nil {
				slog.Warn("gif send failed", "category", category, "err", err)
			}
		}
		return
	}
}

// handlePrivate is the admin GIF-filing flow. Any room outside the configured
// game rooms counts as private chat; only the admin gets replies there, and
// nothing said in private ever reaches the retention log.
func (a *App) handlePrivate(ctx context.Context, evt *event.Event, msg *event.MessageEventContent) {
	if a.config.AdminUser == "" || evt.Sender.String() != a.config.AdminUser {
		return
	}
	roomID := evt.RoomID.String()

	if msg.MsgType == event.MsgImage {
		ref := string(msg.URL)
		if ref == "" {
			return
		}
		a.mu.Lock()
		a.pending[roomID] = ref
		a.mu.Unlock()
		a.send(roomID, a.msgs.GifPrompt)
		return
	}

	a.mu.Lock()
	ref, ok := a.pending[roomID]
	if ok {
		delete(a.pending, roomID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}

	category := strings.TrimSpace(msg.Body)
	added, err := a.gifs.Add(category, ref)
	if err != nil {
		slog.Warn("gif filing failed", "category", category, "err", err)
		a.send(roomID, a.msgs.GifPrompt)
		// Keep the reference so the admin can retry with a valid category.
		a.mu.Lock()
		a.pending[roomID] = ref
		a.mu.Unlock()
		return
	}

	tmpl := a.msgs.GifSaved
	if !added {
		tmpl = a.msgs.GifDuplicate
	}
	a.send(roomID, messages.Render(tmpl, map[string]any{
		"Category": strings.ToLower(category),
	}))
}

// send posts a message with Markdown bold rendered as HTML, falling back to
// the plain body for clients without HTML support.
func (a *App) send(roomID, text string) {
	if text == "" {
		return
	}
	if err := a.matrix.SendFormattedMessage(roomID, markdownToHTML(text), text); err != nil {
		slog.Error("send failed", "room", roomID, "err", err)
	}
}

// reply answers a specific event the same way, so pole results land on the
// winning message.
func (a *App) reply(roomID, eventID, text string) {
	if text == "" {
		return
	}
	if err := a.matrix.ReplyToMessage(roomID, eventID, markdownToHTML(text), text); err != nil {
		slog.Error("reply failed", "room", roomID, "err", err)
	}
}

// markdownToHTML converts the only Markdown Poruko emits — **bold** and
// newlines — into HTML for a Matrix m.text event with
// format=org.matrix.custom.html. Everything else is escaped; display names
// and variable values are user-controlled and must not become markup.
func markdownToHTML(md string) string {
	var b strings.Builder
	s := md
	for {
		start := strings.Index(s, "**")
		if start == -1 {
			b.WriteString(html.EscapeString(s))
			break
		}
		end := strings.Index(s[start+2:], "**")
		if end == -1 {
			b.WriteString(html.EscapeString(s))
			break
		}
		end += start + 2
		b.WriteString(html.EscapeString(s[:start]))
		b.WriteString("<strong>")
		b.WriteString(html.EscapeString(s[start+2 : end]))
		b.WriteString("</strong>")
		s = s[end+2:]
	}
	return strings.ReplaceAll(b.String(), "\n", "<br/>")
}
