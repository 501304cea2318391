// Package store is the in-memory marketplace state: users, farms, requests
// and conversations, plus the session user and the farm browsing state.
//
// All state sits behind one mutex, so every command observes and leaves
// behind a consistent whole. Events and notifications produced by a command
// are delivered after the command has committed and the lock is released;
// delivery failures never affect the command's result.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/localmeat/internal/loader"
	"github.com/safar/localmeat/internal/models"
	"github.com/safar/localmeat/internal/notify"
)

const (
	appName         = "LocalMeat"
	defaultLocation = "California"
	fallbackName    = "User"
)

type Marketplace struct {
	mu sync.Mutex

	now      func() time.Time
	notifier notify.Notifier
	logger   *slog.Logger

	session       uuid.UUID
	users         []models.User
	farms         []models.Farm
	requests      []models.Request
	conversations []models.Conversation

	searchText  string
	farmFilters map[string]struct{}

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

type Option func(*Marketplace)

func WithNotifier(n notify.Notifier) Option {
	return func(m *Marketplace) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithClock replaces time.Now as the source of timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Marketplace) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Marketplace) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func newMarketplace(opts []Option) *Marketplace {
	m := &Marketplace{
		now:         time.Now,
		notifier:    notify.Discard,
		logger:      slog.Default(),
		farmFilters: make(map[string]struct{}),
		subs:        make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open reads the initial data set from src, falling back to the built-in
// seed data when src is nil, fails, or leaves a collection empty.
func Open(ctx context.Context, src loader.Source, opts ...Option) *Marketplace {
	m := newMarketplace(opts)
	snap, _ := loader.LoadOrSeed(ctx, src, m.now(), m.logger)
	m.install(snap)
	return m
}

// New builds a marketplace directly from a snapshot, which is copied.
func New(snap *loader.Snapshot, opts ...Option) *Marketplace {
	m := newMarketplace(opts)
	if snap == nil {
		snap = &loader.Snapshot{}
	}
	m.install(snap)
	return m
}

func (m *Marketplace) install(snap *loader.Snapshot) {
	m.users = make([]models.User, len(snap.Users))
	copy(m.users, snap.Users)

	m.farms = make([]models.Farm, 0, len(snap.Farms))
	for _, f := range snap.Farms {
		m.farms = append(m.farms, cloneFarm(f))
	}
	m.requests = make([]models.Request, 0, len(snap.Requests))
	for _, r := range snap.Requests {
		m.requests = append(m.requests, cloneRequest(r))
	}
	m.conversations = make([]models.Conversation, 0, len(snap.Conversations))
	for _, c := range snap.Conversations {
		m.conversations = append(m.conversations, cloneConversation(c))
	}

	m.session = uuid.Nil
	for _, u := range m.users {
		if u.Role == models.RoleConsumer {
			m.session = u.ID
			break
		}
	}
}

// effects collects what a command must announce once it has committed.
type effects struct {
	events        []Event
	notifications []notify.Notification
}

func (fx *effects) event(e Event) {
	fx.events = append(fx.events, e)
}

func (fx *effects) notify(recipient uuid.UUID, title, body string) {
	fx.notifications = append(fx.notifications, notify.Notification{
		Recipient: recipient,
		Title:     title,
		Body:      body,
	})
}

// commit releases the state lock and delivers fx. Callers must hold m.mu.
func (m *Marketplace) commit(ctx context.Context, fx *effects) {
	m.mu.Unlock()
	if fx == nil {
		return
	}

	for _, e := range fx.events {
		m.publish(e)
	}
	for _, n := range fx.notifications {
		if err := m.notifier.Notify(ctx, n); err != nil {
			m.logger.WarnContext(ctx, "notification delivery failed",
				"title", n.Title,
				"recipient", n.Recipient.String(),
				"error", err,
			)
		}
	}
}

func (m *Marketplace) sessionUser() (*models.User, bool) {
	if m.session == uuid.Nil {
		return nil, false
	}
	return m.findUser(m.session)
}

func (m *Marketplace) findUser(id uuid.UUID) (*models.User, bool) {
	for i := range m.users {
		if m.users[i].ID == id {
			return &m.users[i], true
		}
	}
	return nil, false
}

func (m *Marketplace) findFarm(id uuid.UUID) (*models.Farm, bool) {
	for i := range m.farms {
		if m.farms[i].ID == id {
			return &m.farms[i], true
		}
	}
	return nil, false
}

func (m *Marketplace) findRequest(id uuid.UUID) (*models.Request, bool) {
	for i := range m.requests {
		if m.requests[i].ID == id {
			return &m.requests[i], true
		}
	}
	return nil, false
}

func (m *Marketplace) findConversation(id uuid.UUID) (*models.Conversation, bool) {
	for i := range m.conversations {
		if m.conversations[i].ID == id {
			return &m.conversations[i], true
		}
	}
	return nil, false
}

func (m *Marketplace) findConversationBetween(a, b uuid.UUID) (*models.Conversation, bool) {
	for i := range m.conversations {
		if m.conversations[i].Between(a, b) {
			return &m.conversations[i], true
		}
	}
	return nil, false
}

func cloneFarm(f models.Farm) models.Farm {
	f.Offerings = append([]models.MeatOffering{}, f.Offerings...)
	if f.Coordinates != nil {
		c := *f.Coordinates
		f.Coordinates = &c
	}
	return f
}

func cloneRequest(r models.Request) models.Request {
	r.Responses = append([]models.RequestResponse{}, r.Responses...)
	if r.Coordinates != nil {
		c := *r.Coordinates
		r.Coordinates = &c
	}
	return r
}

func cloneConversation(c models.Conversation) models.Conversation {
	c.Messages = append([]models.Message{}, c.Messages...)
	return c
}
