package app

import (
	"context"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"mailboxapi/pkg/domain"
	"mailboxapi/pkg/queue"
	"mailboxapi/pkg/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestApp(t *testing.T, mutate func(*Config)) *App {
	t.Helper()
	cfg := Config{
		DatabaseURL: "memory://",
		JWTSecret:   testSecret,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func mustRegister(t *testing.T, a *App, email string) domain.User {
	t.Helper()
	user, err := a.Register(context.Background(), RegisterInput{Email: email, Password: "secret123", Name: "Test User"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()

	user := mustRegister(t, a, "sarah@example.com")
	if user.Role != domain.RoleUser {
		t.Fatalf("expected default role user, got %q", user.Role)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret123" {
		t.Fatalf("expected hashed password")
	}

	loggedIn, token, err := a.Login(ctx, "sarah@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("login returned user %s, want %s", loggedIn.ID, user.ID)
	}
	id, err := a.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.UserID != user.ID || id.Email != user.Email || id.Role != domain.RoleUser {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := a.Register(ctx, RegisterInput{Email: "sarah@example.com", Password: "secret123", Name: "Again"}); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	a := newTestApp(t, nil)
	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"bad email", RegisterInput{Email: "nope", Password: "secret123", Name: "Ann"}, "email"},
		{"display name email", RegisterInput{Email: "Ann <ann@example.com>", Password: "secret123", Name: "Ann"}, "email"},
		{"short password", RegisterInput{Email: "ann@example.com", Password: "12345", Name: "Ann"}, "password"},
		{"long password", RegisterInput{Email: "ann@example.com", Password: strings.Repeat("x", 73), Name: "Ann"}, "password"},
		{"short name", RegisterInput{Email: "ann@example.com", Password: "secret123", Name: "A"}, "name"},
		{"unknown role", RegisterInput{Email: "ann@example.com", Password: "secret123", Name: "Ann", Role: "root"}, "role"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Register(context.Background(), tc.in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, vErr.Field)
			}
		})
	}
}

func TestAdminSignupGate(t *testing.T) {
	closed := newTestApp(t, nil)
	_, err := closed.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "secret123", Name: "Admin", Role: "admin"})
	if !errors.Is(err, ErrRoleNotAllowed) {
		t.Fatalf("expected ErrRoleNotAllowed, got %v", err)
	}

	open := newTestApp(t, func(cfg *Config) { cfg.AllowAdminSignup = true })
	user, err := open.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "secret123", Name: "Admin", Role: "admin"})
	if err != nil {
		t.Fatalf("admin signup: %v", err)
	}
	if user.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %q", user.Role)
	}
}

func TestLoginErrorsAreIndistinguishable(t *testing.T) {
	a := newTestApp(t, nil)
	mustRegister(t, a, "known@example.com")

	_, _, unknownErr := a.Login(context.Background(), "unknown@example.com", "secret123")
	_, _, wrongErr := a.Login(context.Background(), "known@example.com", "wrong-password")
	_, _, emptyErr := a.Login(context.Background(), "", "")
	for _, err := range []error{unknownErr, wrongErr, emptyErr} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("login errors differ: %q vs %q", unknownErr, wrongErr)
	}
}

func TestLoginUnknownEmailStillComparesPassword(t *testing.T) {
	var compared []string
	orig := rejectPassword
	rejectPassword = func(password string) bool {
		compared = append(compared, password)
		return orig(password)
	}
	t.Cleanup(func() { rejectPassword = orig })

	a := newTestApp(t, nil)
	mustRegister(t, a, "known@example.com")

	if _, _, err := a.Login(context.Background(), "unknown@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(compared) != 1 || compared[0] != "secret123" {
		t.Fatalf("expected one placeholder comparison for the unknown account, got %v", compared)
	}
	if _, _, err := a.Login(context.Background(), "known@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(compared) != 1 {
		t.Fatalf("known accounts must compare against their own hash, got %v", compared)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newTestApp(t, nil)
	mustRegister(t, a, "bye@example.com")
	_, token, err := a.Login(context.Background(), "bye@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := a.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := a.Authenticate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}
}

func TestChangePasswordRevokesEarlierTokens(t *testing.T) {
	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	sessions, err := store.NewJWTSessionStoreWithOptions(testSecret, time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{Now: clock.Now})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	a := newTestApp(t, func(cfg *Config) {
		cfg.Sessions = sessions
		cfg.Now = clock.Now
	})
	ctx := context.Background()
	user := mustRegister(t, a, "pw@example.com")
	_, oldToken, err := a.Login(ctx, "pw@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	changed, err := a.ChangePassword(ctx, user.ID, "not-it", "another123")
	if err != nil || changed {
		t.Fatalf("wrong current password: changed=%v err=%v", changed, err)
	}
	if _, err := a.Authenticate(oldToken); err != nil {
		t.Fatalf("failed change must keep token valid: %v", err)
	}

	clock.Advance(2 * time.Second)
	changed, err = a.ChangePassword(ctx, user.ID, "secret123", "another123")
	if err != nil || !changed {
		t.Fatalf("change password: changed=%v err=%v", changed, err)
	}
	if _, err := a.Authenticate(oldToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected old token revoked, got %v", err)
	}

	if _, _, err := a.Login(ctx, "pw@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must fail, got %v", err)
	}
	_, newToken, err := a.Login(ctx, "pw@example.com", "another123")
	if err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := a.Authenticate(newToken); err != nil {
		t.Fatalf("token issued after change must work: %v", err)
	}
}

func TestProfileCounts(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	user := mustRegister(t, a, "profile@example.com")
	if _, err := a.CreateNotification(ctx, user.ID, "One", "", ""); err != nil {
		t.Fatalf("create notification: %v", err)
	}
	if _, err := a.CreateMessage(ctx, user.ID, "Hi", "there", domain.MessageUser); err != nil {
		t.Fatalf("create message: %v", err)
	}
	if _, err := a.CreateMessage(ctx, user.ID, "Hi again", "there", ""); err != nil {
		t.Fatalf("create message: %v", err)
	}

	profile, err := a.Profile(ctx, user.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.UnreadNotifications != 1 || profile.UnreadMessages != 2 {
		t.Fatalf("unexpected counts: %+v", profile)
	}

	name := "  New Name  "
	updated, err := a.UpdateProfile(ctx, user.ID, ProfileInput{Name: &name})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "New Name" {
		t.Fatalf("expected trimmed name, got %q", updated.Name)
	}
	if _, err := a.Profile(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestEmailQueryParse(t *testing.T) {
	tests := []struct {
		name    string
		q       EmailQuery
		field   string
		checkFn func(t *testing.T, f domain.EmailFilter, p domain.PageRequest)
	}{
		{
			name: "defaults",
			checkFn: func(t *testing.T, f domain.EmailFilter, p domain.PageRequest) {
				if p.Page != 1 || p.Limit != domain.DefaultPageLimit || p.SortOrder != domain.SortDesc {
					t.Fatalf("unexpected defaults: %+v", p)
				}
			},
		},
		{name: "zero page", q: EmailQuery{Page: "0"}, field: "page"},
		{name: "page offset overflows", q: EmailQuery{Page: "922337203685477581"}, field: "page"},
		{name: "page overflows int", q: EmailQuery{Page: "99999999999999999999"}, field: "page"},
		{
			name: "largest page",
			q:    EmailQuery{Page: strconv.Itoa(math.MaxInt / 100), Limit: "100"},
			checkFn: func(t *testing.T, _ domain.EmailFilter, p domain.PageRequest) {
				if p.Offset() <= 0 {
					t.Fatalf("expected positive offset, got %d", p.Offset())
				}
			},
		},
		{name: "limit too large", q: EmailQuery{Limit: "101"}, field: "limit"},
		{name: "bad sort", q: EmailQuery{SortBy: "password"}, field: "sortBy"},
		{name: "bad order", q: EmailQuery{SortOrder: "up"}, field: "sortOrder"},
		{name: "bad view", q: EmailQuery{View: "spam"}, field: "view"},
		{name: "bad bool", q: EmailQuery{IsRead: "maybe"}, field: "isRead"},
		{name: "bad date", q: EmailQuery{DateFrom: "yesterday"}, field: "dateFrom"},
		{name: "inverted range", q: EmailQuery{DateFrom: "2026-03-05", DateTo: "2026-03-02"}, field: "dateFrom"},
		{name: "inverted timestamps", q: EmailQuery{DateFrom: "2026-03-02T11:00:00Z", DateTo: "2026-03-02T10:00:00Z"}, field: "dateFrom"},
		{
			name: "same day range",
			q:    EmailQuery{DateFrom: "2026-03-02T18:00:00Z", DateTo: "2026-03-02"},
			checkFn: func(t *testing.T, f domain.EmailFilter, _ domain.PageRequest) {
				if f.DateFrom == nil || f.DateTo == nil || !f.DateFrom.Before(*f.DateTo) {
					t.Fatalf("unexpected range: %v - %v", f.DateFrom, f.DateTo)
				}
			},
		},
		{
			name: "flags and labels",
			q:    EmailQuery{IsStarred: "true", Labels: "Work, ,Travel", SortBy: "subject", SortOrder: "ASC", View: "Unread"},
			checkFn: func(t *testing.T, f domain.EmailFilter, p domain.PageRequest) {
				if f.IsStarred == nil || !*f.IsStarred {
					t.Fatalf("expected isStarred=true")
				}
				if len(f.Labels) != 2 || f.Labels[0] != "Work" || f.Labels[1] != "Travel" {
					t.Fatalf("unexpected labels: %v", f.Labels)
				}
				if p.SortBy != "subject" || p.SortOrder != domain.SortAsc || f.View != domain.ViewUnread {
					t.Fatalf("unexpected sort/view: %+v %q", p, f.View)
				}
			},
		},
		{
			name: "date only upper bound covers the day",
			q:    EmailQuery{DateFrom: "2026-03-01", DateTo: "2026-03-02"},
			checkFn: func(t *testing.T, f domain.EmailFilter, _ domain.PageRequest) {
				want := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
				if f.DateTo == nil || !f.DateTo.Equal(want) || !f.DateToExclusive {
					t.Fatalf("unexpected dateTo: %v exclusive=%v", f.DateTo, f.DateToExclusive)
				}
			},
		},
		{
			name: "timestamp upper bound is inclusive",
			q:    EmailQuery{DateTo: "2026-03-02T10:00:00Z"},
			checkFn: func(t *testing.T, f domain.EmailFilter, _ domain.PageRequest) {
				if f.DateTo == nil || f.DateToExclusive {
					t.Fatalf("expected inclusive dateTo, got %v exclusive=%v", f.DateTo, f.DateToExclusive)
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, p, err := tc.q.Parse()
			if tc.field != "" {
				var vErr *ValidationError
				if !errors.As(err, &vErr) || vErr.Field != tc.field {
					t.Fatalf("expected validation error on %q, got %v", tc.field, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			tc.checkFn(t, f, p)
		})
	}
}

func TestEmailOperationsAreScopedToOwner(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	owner := mustRegister(t, a, "owner@example.com")
	other := mustRegister(t, a, "other@example.com")

	email, err := a.ImportEmail(ctx, owner.ID, ImportedEmail{From: "x@example.com", To: owner.Email, Subject: "Hello", Body: "hi"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if _, err := a.GetEmail(ctx, other.ID, email.ID); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound for other user, got %v", err)
	}
	if _, err := a.ToggleStar(ctx, other.ID, email.ID); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound for other user toggle, got %v", err)
	}
	if err := a.DeleteEmail(ctx, other.ID, email.ID); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound for other user delete, got %v", err)
	}

	starred, err := a.ToggleStar(ctx, owner.ID, email.ID)
	if err != nil || !starred.IsStarred {
		t.Fatalf("toggle star: %+v %v", starred, err)
	}
	unstarred, err := a.ToggleStar(ctx, owner.ID, email.ID)
	if err != nil || unstarred.IsStarred {
		t.Fatalf("toggle star back: %+v %v", unstarred, err)
	}
	read, err := a.MarkEmailRead(ctx, owner.ID, email.ID)
	if err != nil || !read.IsRead {
		t.Fatalf("mark read: %+v %v", read, err)
	}
	read, err = a.MarkEmailRead(ctx, owner.ID, email.ID)
	if err != nil || !read.IsRead {
		t.Fatalf("mark read is idempotent: %+v %v", read, err)
	}
}

func TestListEmailsPagination(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	user := mustRegister(t, a, "page@example.com")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := a.ImportEmail(ctx, user.ID, ImportedEmail{
			From:      "x@example.com",
			Subject:   "Mail",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			IsRead:    i%2 == 0,
		}); err != nil {
			t.Fatalf("import: %v", err)
		}
	}

	emails, page, err := a.ListEmails(ctx, user.ID, EmailQuery{Page: "3", Limit: "2"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(emails) != 1 || page.Total != 5 || page.TotalPages != 3 || page.Page != 3 {
		t.Fatalf("unexpected page: %d %+v", len(emails), page)
	}
	if !emails[0].Timestamp.Equal(base) {
		t.Fatalf("expected oldest email on last page, got %v", emails[0].Timestamp)
	}

	unread, page, err := a.ListEmails(ctx, user.ID, EmailQuery{View: "unread"})
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 2 || page.Total != 2 {
		t.Fatalf("expected 2 unread, got %d (%+v)", len(unread), page)
	}

	empty, page, err := a.ListEmails(ctx, user.ID, EmailQuery{Page: "9"})
	if err != nil {
		t.Fatalf("list beyond end: %v", err)
	}
	if len(empty) != 0 || page.Total != 5 {
		t.Fatalf("expected empty page with total, got %d %+v", len(empty), page)
	}
}

func TestLabels(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	user := mustRegister(t, a, "labels@example.com")

	label, err := a.CreateLabel(ctx, user.ID, "  Work ", "")
	if err != nil {
		t.Fatalf("create label: %v", err)
	}
	if label.Name != "Work" {
		t.Fatalf("expected trimmed name, got %q", label.Name)
	}
	found := false
	for _, c := range labelPalette {
		if c == label.Color {
			found = true
		}
	}
	if !found {
		t.Fatalf("color %q not from palette", label.Color)
	}
	if _, err := a.CreateLabel(ctx, user.ID, "Work", "#000000"); !errors.Is(err, ErrLabelExists) {
		t.Fatalf("expected ErrLabelExists, got %v", err)
	}
	if _, err := a.CreateLabel(ctx, user.ID, "Bad", "red"); err == nil {
		t.Fatalf("expected invalid color error")
	}
	if _, err := a.CreateLabel(ctx, user.ID, " ", ""); err == nil {
		t.Fatalf("expected empty name error")
	}

	email, err := a.ImportEmail(ctx, user.ID, ImportedEmail{From: "x@example.com", Subject: "Tagged", Labels: []string{"Work", "Personal"}})
	if err != nil {
		t.Fatalf("import with labels: %v", err)
	}
	if len(email.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %v", email.Labels)
	}
	labels, err := a.ListLabels(ctx, user.ID)
	if err != nil || len(labels) != 2 {
		t.Fatalf("expected auto-created Personal label, got %v %v", labels, err)
	}

	again, err := a.AddLabelToEmail(ctx, user.ID, email.ID, "Work")
	if err != nil || len(again.Labels) != 2 {
		t.Fatalf("adding a present label is a no-op: %v %v", again.Labels, err)
	}
	removed, err := a.RemoveLabelFromEmail(ctx, user.ID, email.ID, "Work")
	if err != nil || len(removed.Labels) != 1 {
		t.Fatalf("remove label: %v %v", removed.Labels, err)
	}
	if _, err := a.RemoveLabelFromEmail(ctx, user.ID, email.ID, "Missing"); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound for unknown label, got %v", err)
	}

	if err := a.DeleteLabel(ctx, user.ID, label.ID); err != nil {
		t.Fatalf("delete label: %v", err)
	}
	if err := a.DeleteLabel(ctx, user.ID, label.ID); !errors.Is(err, ErrLabelNotFound) {
		t.Fatalf("expected ErrLabelNotFound, got %v", err)
	}
}

func TestFeed(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	user := mustRegister(t, a, "feed@example.com")
	other := mustRegister(t, a, "feed2@example.com")

	n, err := a.CreateNotification(ctx, user.ID, "Alert", "body", domain.NotificationError)
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	if _, err := a.CreateNotification(ctx, user.ID, "Alert", "body", "fatal"); err == nil {
		t.Fatalf("expected invalid type error")
	}
	if _, err := a.MarkNotificationRead(ctx, other.ID, n.ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound for other user, got %v", err)
	}
	marked, err := a.MarkNotificationRead(ctx, user.ID, n.ID)
	if err != nil || !marked.IsRead {
		t.Fatalf("mark notification: %+v %v", marked, err)
	}
	updated, err := a.MarkAllNotificationsRead(ctx, user.ID)
	if err != nil || updated != 0 {
		t.Fatalf("mark all with none unread: %d %v", updated, err)
	}
	if err := a.DeleteNotification(ctx, user.ID, n.ID); err != nil {
		t.Fatalf("delete notification: %v", err)
	}
	if err := a.DeleteNotification(ctx, user.ID, n.ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}

	for _, raw := range []string{"0", "101", "abc"} {
		if _, err := ParseFeedLimit(raw); err == nil {
			t.Fatalf("expected error for limit %q", raw)
		}
	}
	if n, err := ParseFeedLimit(""); err != nil || n != store.DefaultFeedLimit {
		t.Fatalf("default feed limit: %d %v", n, err)
	}
}

type fakeSweepQueue struct {
	mu   sync.Mutex
	jobs map[string]queue.SweepJob
}

func (q *fakeSweepQueue) Enqueue(_ context.Context, hours int, requestedBy string) (queue.SweepJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.jobs == nil {
		q.jobs = map[string]queue.SweepJob{}
	}
	job := queue.SweepJob{ID: "job-1", RetentionHours: hours, RequestedBy: requestedBy, Status: queue.StatusQueued}
	q.jobs[job.ID] = job
	return job, nil
}

func (q *fakeSweepQueue) GetJob(_ context.Context, id string) (queue.SweepJob, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	return job, ok, nil
}

func TestSweeps(t *testing.T) {
	admin := domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}
	user := domain.Identity{UserID: "user-1", Role: domain.RoleUser}

	t.Run("inline", func(t *testing.T) {
		a := newTestApp(t, nil)
		if _, err := a.TriggerSweep(context.Background(), user, nil); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		out, err := a.TriggerSweep(context.Background(), admin, nil)
		if err != nil {
			t.Fatalf("trigger sweep: %v", err)
		}
		if out.Queued() || out.Run == nil || out.Run.RetentionHours != 48 || out.Run.Trigger != domain.TriggerManual {
			t.Fatalf("unexpected outcome: %+v", out)
		}
		runs, err := a.RecentSweeps(context.Background(), admin, 0)
		if err != nil || len(runs) != 1 {
			t.Fatalf("recent sweeps: %v %v", runs, err)
		}
		if _, err := a.SweepJob(context.Background(), admin, "job-1"); !errors.Is(err, ErrSweepJobNotFound) {
			t.Fatalf("expected ErrSweepJobNotFound without queue, got %v", err)
		}
	})

	t.Run("zero retention sweeps everything before now", func(t *testing.T) {
		mem := store.NewMemoryStore()
		a := newTestApp(t, func(cfg *Config) { cfg.Store = mem })
		created := time.Now().Add(-2 * time.Hour)
		if err := mem.CreateEmail(context.Background(), domain.Email{UserID: user.UserID, Subject: "recent", Timestamp: created, CreatedAt: created}); err != nil {
			t.Fatalf("create email: %v", err)
		}
		zero := 0
		first, err := a.TriggerSweep(context.Background(), admin, &zero)
		if err != nil {
			t.Fatalf("first sweep: %v", err)
		}
		if first.Run.RetentionHours != 0 || first.Run.Result.DeletedEmails != 1 {
			t.Fatalf("unexpected first run: %+v", first.Run)
		}
		second, err := a.TriggerSweep(context.Background(), admin, &zero)
		if err != nil {
			t.Fatalf("second sweep: %v", err)
		}
		if second.Run.Result.Total() != 0 {
			t.Fatalf("expected second sweep to delete nothing, got %+v", second.Run.Result)
		}
	})

	t.Run("configured zero retention", func(t *testing.T) {
		zero := time.Duration(0)
		a := newTestApp(t, func(cfg *Config) { cfg.Retention = &zero })
		out, err := a.TriggerSweep(context.Background(), admin, nil)
		if err != nil {
			t.Fatalf("trigger sweep: %v", err)
		}
		if out.Run.RetentionHours != 0 {
			t.Fatalf("expected configured zero retention, got %d", out.Run.RetentionHours)
		}
	})

	t.Run("negative retention", func(t *testing.T) {
		a := newTestApp(t, nil)
		negative := -1
		_, err := a.TriggerSweep(context.Background(), admin, &negative)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "retentionHours" {
			t.Fatalf("expected retentionHours validation error, got %v", err)
		}
	})

	t.Run("queued", func(t *testing.T) {
		q := &fakeSweepQueue{}
		a := newTestApp(t, func(cfg *Config) { cfg.SweepQueue = q })
		hours := 12
		out, err := a.TriggerSweep(context.Background(), admin, &hours)
		if err != nil {
			t.Fatalf("trigger sweep: %v", err)
		}
		if !out.Queued() || out.Job.RetentionHours != 12 || out.Job.RequestedBy != "admin-1" {
			t.Fatalf("unexpected outcome: %+v", out)
		}
		job, err := a.SweepJob(context.Background(), admin, out.Job.ID)
		if err != nil || job.Status != queue.StatusQueued {
			t.Fatalf("sweep job: %+v %v", job, err)
		}
		if _, err := a.SweepJob(context.Background(), admin, "missing"); !errors.Is(err, ErrSweepJobNotFound) {
			t.Fatalf("expected ErrSweepJobNotFound, got %v", err)
		}
	})
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func (s *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.failPut {
		return errors.New("bucket offline")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStore) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://objects.example.com/" + key + "?expires=" + expiry.String(), nil
}

func (s *fakeObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func TestImportEmailUploadsAttachments(t *testing.T) {
	objects := &fakeObjectStore{}
	a := newTestApp(t, func(cfg *Config) { cfg.Objects = objects })
	ctx := context.Background()
	user := mustRegister(t, a, "import@example.com")

	email, err := a.ImportEmail(ctx, user.ID, ImportedEmail{
		From:    "x@example.com",
		Subject: "With files",
		Attachments: []ImportedAttachment{
			{Filename: "a/b.txt", ContentType: "text/plain", Body: []byte("hello")},
			{Filename: "remote.pdf", URL: "https://cdn.example.com/remote.pdf", Size: 42},
		},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !email.HasAttachments || len(email.Attachments) != 2 {
		t.Fatalf("unexpected attachments: %+v", email.Attachments)
	}
	var uploaded, remote domain.Attachment
	for _, att := range email.Attachments {
		if att.Filename == "remote.pdf" {
			remote = att
		} else {
			uploaded = att
		}
	}
	if uploaded.Size != 5 || !strings.HasPrefix(uploaded.URL, "attachments/") {
		t.Fatalf("unexpected uploaded attachment: %+v", uploaded)
	}
	if len(objects.objects) != 1 {
		t.Fatalf("expected one stored object, got %d", len(objects.objects))
	}
	if remote.Size != 42 {
		t.Fatalf("expected remote size kept, got %d", remote.Size)
	}

	signed, err := a.AttachmentURL(ctx, user.ID, email.ID, uploaded.ID)
	if err != nil {
		t.Fatalf("attachment url: %v", err)
	}
	if !strings.HasPrefix(signed, "https://objects.example.com/attachments/") {
		t.Fatalf("expected presigned url, got %q", signed)
	}
	direct, err := a.AttachmentURL(ctx, user.ID, email.ID, remote.ID)
	if err != nil || direct != "https://cdn.example.com/remote.pdf" {
		t.Fatalf("expected stored url, got %q %v", direct, err)
	}
	if _, err := a.AttachmentURL(ctx, user.ID, email.ID, email.ID); !errors.Is(err, ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound, got %v", err)
	}
}

func TestImportEmailUploadFailure(t *testing.T) {
	a := newTestApp(t, func(cfg *Config) { cfg.Objects = &fakeObjectStore{failPut: true} })
	ctx := context.Background()
	user := mustRegister(t, a, "fail@example.com")
	_, err := a.ImportEmail(ctx, user.ID, ImportedEmail{
		From:        "x@example.com",
		Attachments: []ImportedAttachment{{Filename: "x.bin", Body: []byte{1}}},
	})
	if err == nil {
		t.Fatalf("expected upload error")
	}
	counts, err := a.EmailCounts(ctx, user.ID)
	if err != nil || counts.Inbox != 0 {
		t.Fatalf("failed import must not store the email: %+v %v", counts, err)
	}
}
