package session

import (
	"context"
	"testing"
	"time"

	"github.com/guiqiqi/itmo-moodle-agent/auth/jwt"
	"github.com/guiqiqi/itmo-moodle-agent/database/dbtest"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T) (*RefreshStore, *identity.Store, *identity.Identity, *fakeClock) {
	t.Helper()
	db := dbtest.Open(t, append(identity.Models(), Models()...)...)
	identities := identity.NewStore(db)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer, err := jwt.NewIssuer(jwt.Config{Secret: "0123456789abcdef0123456789abcdef"}, jwt.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	store := NewRefreshStore(db, identities, issuer, 24*time.Hour, logger.NewNop(), WithClock(clock.Now))

	ident, err := identities.Create(context.Background(), identity.NewIdentity{Email: "student@itmo.ru"})
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	return store, identities, ident, clock
}

func TestCreateAndRefresh(t *testing.T) {
	store, _, ident, clock := setup(t)
	ctx := context.Background()

	tok, err := store.Create(ctx, ident.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(tok.Content) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(tok.Content))
	}
	if !tok.ValidBefore.Equal(clock.t.Add(24 * time.Hour)) {
		t.Errorf("expected valid_before now+ttl, got %s", tok.ValidBefore)
	}

	access, err := store.Refresh(ctx, tok.Content)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if access.Claims.Subject != ident.ID.String() {
		t.Errorf("expected subject %s, got %s", ident.ID, access.Claims.Subject)
	}

	// not rotated: the same content keeps working
	if _, err := store.Refresh(ctx, tok.Content); err != nil {
		t.Errorf("expected second refresh to succeed, got %v", err)
	}
	stored, _ := store.get(ctx, ident.ID)
	if stored.Content != tok.Content {
		t.Error("expected refresh token content unchanged")
	}
}

func TestCreateReplacesPrevious(t *testing.T) {
	store, _, ident, _ := setup(t)
	ctx := context.Background()

	first, _ := store.Create(ctx, ident.ID)
	second, err := store.Create(ctx, ident.ID)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if first.Content == second.Content {
		t.Fatal("expected new content")
	}
	if _, err := store.Refresh(ctx, first.Content); !apperrors.HasCode(err, apperrors.ErrCodeRefreshTokenInvalid) {
		t.Errorf("expected superseded token rejected, got %v", err)
	}
	if _, err := store.Refresh(ctx, second.Content); err != nil {
		t.Errorf("expected current token accepted, got %v", err)
	}
}

func TestRefreshRejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*RefreshStore, *identity.Store, *identity.Identity, *fakeClock) string
	}{
		{"unknown", func(*RefreshStore, *identity.Store, *identity.Identity, *fakeClock) string {
			return "deadbeef"
		}},
		{"empty", func(*RefreshStore, *identity.Store, *identity.Identity, *fakeClock) string {
			return ""
		}},
		{"expired", func(s *RefreshStore, _ *identity.Store, ident *identity.Identity, c *fakeClock) string {
			tok, _ := s.Create(context.Background(), ident.ID)
			c.Advance(24*time.Hour + time.Second)
			return tok.Content
		}},
		{"disabled owner", func(s *RefreshStore, ids *identity.Store, ident *identity.Identity, _ *fakeClock) string {
			tok, _ := s.Create(context.Background(), ident.ID)
			_ = ids.Disable(context.Background(), ident.ID)
			return tok.Content
		}},
		{"deleted owner", func(s *RefreshStore, ids *identity.Store, ident *identity.Identity, _ *fakeClock) string {
			tok, _ := s.Create(context.Background(), ident.ID)
			_ = ids.Delete(context.Background(), ident.ID)
			return tok.Content
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, ids, ident, clock := setup(t)
			content := tc.setup(store, ids, ident, clock)
			if _, err := store.Refresh(context.Background(), content); !apperrors.HasCode(err, apperrors.ErrCodeRefreshTokenInvalid) {
				t.Errorf("expected REFRESH_TOKEN_INVALID, got %v", err)
			}
		})
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	store, _, ident, _ := setup(t)
	ctx := context.Background()

	tok, _ := store.Create(ctx, ident.ID)
	if err := store.Destroy(ctx, ident.ID); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if err := store.Destroy(ctx, ident.ID); err != nil {
		t.Errorf("expected second Destroy to succeed, got %v", err)
	}
	if _, err := store.Refresh(ctx, tok.Content); !apperrors.HasCode(err, apperrors.ErrCodeRefreshTokenInvalid) {
		t.Errorf("expected destroyed token rejected, got %v", err)
	}
	if _, err := store.get(ctx, ident.ID); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	store, ids, ident, clock := setup(t)
	ctx := context.Background()
	other, _ := ids.Create(ctx, identity.NewIdentity{Email: "other@itmo.ru"})

	_, _ = store.Create(ctx, ident.ID)
	clock.Advance(12 * time.Hour)
	_, _ = store.Create(ctx, other.ID)
	clock.Advance(13 * time.Hour)

	n, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}
	if _, err := store.get(ctx, other.ID); err != nil {
		t.Errorf("expected other token kept, got %v", err)
	}
}
