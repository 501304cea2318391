package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/localmeat/internal/models"
)

// Login makes the user matching (email, role) the session user, comparing
// emails case-insensitively. Unknown pairs get a new user. Login never fails
// for a valid role; the only error is ErrInvalidRole.
func (m *Marketplace) Login(ctx context.Context, email string, role models.Role) (models.User, error) {
	if !role.Valid() {
		return models.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	m.mu.Lock()
	user, fx := m.login(email, role)
	m.commit(ctx, fx)
	return user, nil
}

func (m *Marketplace) login(email string, role models.Role) (models.User, *effects) {
	fx := &effects{}

	for _, u := range m.users {
		if u.Role == role && strings.EqualFold(u.Email, email) {
			m.session = u.ID
			fx.event(Event{Kind: EventLoggedIn, UserID: u.ID})
			fx.notify(u.ID, "Welcome Back!", fmt.Sprintf("Hello %s, welcome back to %s!", u.Name, appName))
			return u, fx
		}
	}

	user := models.User{
		ID:       uuid.New(),
		Email:    email,
		Name:     nameFromEmail(email),
		Role:     role,
		Location: defaultLocation,
		Avatar:   "person.circle",
	}
	m.users = append(m.users, user)
	m.session = user.ID

	fx.event(Event{Kind: EventUserCreated, UserID: user.ID})
	fx.event(Event{Kind: EventLoggedIn, UserID: user.ID})
	fx.notify(user.ID, fmt.Sprintf("Welcome to %s!", appName), "Thank you for joining our platform!")
	return user, fx
}

// nameFromEmail returns the text before the first "@", or a fallback when that is empty.
func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return fallbackName
	}
	return local
}

func (m *Marketplace) Logout() {
	m.mu.Lock()
	var fx *effects
	if m.session != uuid.Nil {
		fx = &effects{}
		fx.event(Event{Kind: EventLoggedOut, UserID: m.session})
		m.session = uuid.Nil
	}
	m.commit(context.Background(), fx)
}

func (m *Marketplace) CurrentUser() (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.sessionUser()
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

func (m *Marketplace) User(id uuid.UUID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.findUser(id)
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return *u, nil
}

func (m *Marketplace) Users() []models.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.User, len(m.users))
	copy(out, m.users)
	return out
}

// UpdateProfile applies the non-nil fields of upd to the session user. Email
// and role cannot be changed.
func (m *Marketplace) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (models.User, error) {
	m.mu.Lock()
	user, fx, err := m.updateProfile(upd)
	m.commit(ctx, fx)
	return user, err
}

func (m *Marketplace) updateProfile(upd models.ProfileUpdate) (models.User, *effects, error) {
	u, ok := m.sessionUser()
	if !ok {
		return models.User{}, nil, ErrNotAuthenticated
	}

	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return models.User{}, nil, fmt.Errorf("%w: name must not be empty", ErrInvalidProfile)
	}

	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	if upd.Location != nil {
		u.Location = *upd.Location
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}

	fx := &effects{}
	fx.event(Event{Kind: EventProfileUpdated, UserID: u.ID})
	return *u, fx, nil
}
