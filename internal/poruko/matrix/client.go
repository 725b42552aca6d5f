// Package matrix wraps the mautrix client for Poruko.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// GameRooms are the group rooms where the pole game runs. Any other
	// joined room is treated as a private chat.
	GameRooms []string
	// DB is an optional SQLite connection used to persist the Matrix sync
	// token (next_batch) across restarts. When nil, an in-memory store is
	// used and room history is replayed on every restart — old pole
	// attempts included.
	DB *sql.DB
}

// MessageHandler processes incoming Matrix message events.
type MessageHandler func(ctx context.Context, evt *event.Event)

// Client wraps the Matrix client.
type Client struct {
	client     *mautrix.Client
	config     *Config
	stopCh     chan struct{}
	msgHandler MessageHandler

	mu    sync.Mutex
	names map[string]string // sender → display name cache
}

// New creates a new Matrix client.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create Matrix client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		stopCh: make(chan struct{}),
		names:  map[string]string{},
	}

	if config.DB != nil {
		client.Store = newDBSyncStore(config.DB)
		slog.Info("Matrix sync store: using persistent SQLite store")
	} else {
		slog.Warn("Matrix sync store: no DB configured, history will replay on restart")
	}

	return c, nil
}

const (
	backoffMin = 2 * time.Second
	backoffMax = 5 * time.Minute
)

// syncBackoff escalates the reconnect delay from backoffMin toward
// backoffMax across consecutive sync failures.
type syncBackoff struct {
	delay time.Duration
}

func newSyncBackoff() *syncBackoff {
	return &syncBackoff{delay: backoffMin}
}

// next returns the delay to sleep before the upcoming reconnect attempt and
// doubles the stored delay, clamped at backoffMax.
func (b *syncBackoff) next() time.Duration {
	d := b.delay
	b.delay *= 2
	if b.delay > backoffMax {
		b.delay = backoffMax
	}
	return d
}

// reset starts the escalation over after a sync that held for a while.
func (b *syncBackoff) reset() {
	b.delay = backoffMin
}

// Start joins the configured game rooms and begins syncing in the
// background, reconnecting with exponential backoff when the homeserver
// drops the sync. Without retries a transient homeserver error would leave
// the bot deaf until the next restart.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)

	for _, roomID := range c.config.GameRooms {
		if err := c.joinRoom(id.RoomID(roomID)); err != nil {
			return fmt.Errorf("join game room %s: %w", roomID, err)
		}
	}

	go func() {
		backoff := newSyncBackoff()
		for {
			start := time.Now()
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				// A sync that held longer than the cap means the
				// connection had recovered; escalate from the start again.
				if time.Since(start) > backoffMax {
					backoff.reset()
				}
				delay := backoff.next()
				slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", delay)
				select {
				case <-c.stopCh:
					return
				case <-time.After(delay):
				}
				continue
			}
			// Sync returned nil — clean StopSync().
			return
		}
	}()

	return nil
}

// Stop stops the Matrix client.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendFormattedMessage sends a message with an HTML body and plain fallback.
func (c *Client) SendFormattedMessage(roomID, html, plaintext string) error {
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plaintext,
		Format:        event.FormatHTML,
		FormattedBody: html,
	}
	_, err := c.client.SendMessageEvent(context.Background(), id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("send formatted message: %w", err)
	}
	return nil
}

// SendNotice sends an m.notice. Notices are the conventional "from a bot"
// message type and are skipped by handleMessage, so bots never feed each
// other.
func (c *Client) SendNotice(roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	_, err := c.client.SendMessageEvent(context.Background(), id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	return nil
}

// ReplyToMessage sends a reply to a specific event, with an HTML body and
// plain fallback. Pole scoring answers the triggering message directly so
// the winner is unambiguous in a busy room.
func (c *Client) ReplyToMessage(roomID, eventID, html, plaintext string) error {
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plaintext,
		Format:        event.FormatHTML,
		FormattedBody: html,
		RelatesTo: &event.RelatesTo{
			InReplyTo: &event.InReplyTo{
				EventID: id.EventID(eventID),
			},
		},
	}
	_, err := c.client.SendMessageEvent(context.Background(), id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// SendImage posts a previously uploaded media reference (mxc:// URI) as an
// m.image event. Used for the GIF replies.
func (c *Client) SendImage(roomID, mxcURI, altText string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgImage,
		Body:    altText,
		URL:     id.ContentURIString(mxcURI),
	}
	_, err := c.client.SendMessageEvent(context.Background(), id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("send image: %w", err)
	}
	return nil
}

// IsGameRoom reports whether roomID is one of the configured group rooms.
func (c *Client) IsGameRoom(roomID string) bool {
	for _, r := range c.config.GameRooms {
		if r == roomID {
			return true
		}
	}
	return false
}

// DisplayName resolves a user's display name, caching results for the
// process lifetime. Falls back to the bare user ID when the profile lookup
// fails — a missing name must never block game handling.
func (c *Client) DisplayName(userID string) string {
	c.mu.Lock()
	if name, ok := c.names[userID]; ok {
		c.mu.Unlock()
		return name
	}
	c.mu.Unlock()

	name := userID
	profile, err := c.client.GetProfile(context.Background(), id.UserID(userID))
	if err != nil {
		slog.Warn("profile lookup failed", "user", userID, "err", err)
	} else if profile.DisplayName != "" {
		name = profile.DisplayName
	}

	c.mu.Lock()
	c.names[userID] = name
	c.mu.Unlock()
	return name
}

// handleMessage filters incoming events before handing them to the
// registered handler: the bot's own messages are dropped, as are notices
// (the automated-sender convention) and anything that is not text or an
// image.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	msgContent := evt.Content.AsMessage()
	if msgContent == nil {
		return
	}
	switch msgContent.MsgType {
	case event.MsgText, event.MsgImage:
	default:
		return
	}

	if c.msgHandler != nil {
		c.msgHandler(ctx, evt)
	}
}

// joinRoom attempts to join a room.
func (c *Client) joinRoom(roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(context.Background(), roomID)
	if err != nil {
		// M_FORBIDDEN is what homeservers return when the bot is already a
		// member. Use mautrix's typed error instead of string matching.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
