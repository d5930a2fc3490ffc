package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
)

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("duplicate user email", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := newTestUser("dup@example.com")
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		u.ID = util.NewID()
		if err := s.CreateUser(ctx, u); !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("expected duplicate email error, got %v", err)
		}
	})

	t.Run("toggle is an involution", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		e := seedEmail(t, s, userID, "hello", time.Now().UTC().Truncate(time.Second))

		first, ok, err := s.ToggleEmailFlag(ctx, userID, e.ID, domain.FlagStarred)
		if err != nil || !ok {
			t.Fatalf("toggle once: ok=%v err=%v", ok, err)
		}
		if !first.IsStarred {
			t.Fatalf("expected starred after first toggle")
		}
		second, ok, err := s.ToggleEmailFlag(ctx, userID, e.ID, domain.FlagStarred)
		if err != nil || !ok {
			t.Fatalf("toggle twice: ok=%v err=%v", ok, err)
		}
		if second.IsStarred != e.IsStarred {
			t.Fatalf("expected original starred state %v, got %v", e.IsStarred, second.IsStarred)
		}
		if second.UpdatedAt.Before(e.UpdatedAt) {
			t.Fatalf("expected updatedAt to move forward")
		}
	})

	t.Run("emails of other users read as missing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		owner, other := util.NewID(), util.NewID()
		e := seedEmail(t, s, owner, "private", time.Now().UTC())

		if _, ok, err := s.GetEmail(ctx, other, e.ID); err != nil || ok {
			t.Fatalf("expected not found for other user, ok=%v err=%v", ok, err)
		}
		if _, ok, err := s.SetEmailFlag(ctx, other, e.ID, domain.FlagRead, true); err != nil || ok {
			t.Fatalf("expected flag update to miss, ok=%v err=%v", ok, err)
		}
		if ok, err := s.DeleteEmail(ctx, other, e.ID); err != nil || ok {
			t.Fatalf("expected delete to miss, ok=%v err=%v", ok, err)
		}
		if _, ok, err := s.GetEmail(ctx, owner, e.ID); err != nil || !ok {
			t.Fatalf("expected owner to still see email, ok=%v err=%v", ok, err)
		}
	})

	t.Run("pagination is stable and complete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		base := time.Now().UTC().Truncate(time.Second)
		want := make(map[string]struct{})
		for i := 0; i < 7; i++ {
			// pairs share a timestamp so the id tie-break decides order
			e := seedEmail(t, s, userID, fmt.Sprintf("mail %d", i), base.Add(-time.Duration(i/2)*time.Minute))
			want[e.ID] = struct{}{}
		}

		var pages [][]domain.Email
		for page := 1; page <= 3; page++ {
			items, total, err := s.ListEmails(ctx, userID, domain.EmailFilter{}, domain.PageRequest{Page: page, Limit: 3})
			if err != nil {
				t.Fatalf("list page %d: %v", page, err)
			}
			if total != 7 {
				t.Fatalf("expected total 7, got %d", total)
			}
			pages = append(pages, items)
		}
		if len(pages[0]) != 3 || len(pages[1]) != 3 || len(pages[2]) != 1 {
			t.Fatalf("unexpected page sizes %d/%d/%d", len(pages[0]), len(pages[1]), len(pages[2]))
		}
		var prev *domain.Email
		for _, page := range pages {
			for i := range page {
				e := page[i]
				if _, ok := want[e.ID]; !ok {
					t.Fatalf("unexpected or duplicated email %s", e.ID)
				}
				delete(want, e.ID)
				if prev != nil && e.Timestamp.After(prev.Timestamp) {
					t.Fatalf("expected descending timestamps")
				}
				if prev != nil && e.Timestamp.Equal(prev.Timestamp) && e.ID > prev.ID {
					t.Fatalf("expected descending id tie-break")
				}
				prev = &e
			}
		}
		if len(want) != 0 {
			t.Fatalf("missing %d emails across pages", len(want))
		}

		again, _, err := s.ListEmails(ctx, userID, domain.EmailFilter{}, domain.PageRequest{Page: 2, Limit: 3})
		if err != nil {
			t.Fatalf("repeat page: %v", err)
		}
		for i := range again {
			if again[i].ID != pages[1][i].ID {
				t.Fatalf("page 2 changed between calls")
			}
		}

		beyond, total, err := s.ListEmails(ctx, userID, domain.EmailFilter{}, domain.PageRequest{Page: 9, Limit: 3})
		if err != nil {
			t.Fatalf("list beyond: %v", err)
		}
		if len(beyond) != 0 || total != 7 {
			t.Fatalf("expected empty page with total 7, got %d items total %d", len(beyond), total)
		}
	})

	t.Run("huge page is empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		seedEmail(t, s, userID, "only", time.Now().UTC())
		for _, page := range []int{math.MaxInt / 100, math.MaxInt} {
			items, total, err := s.ListEmails(ctx, userID, domain.EmailFilter{}, domain.PageRequest{Page: page, Limit: 100})
			if err != nil {
				t.Fatalf("list page %d: %v", page, err)
			}
			if len(items) != 0 || total != 1 {
				t.Fatalf("page %d: expected no items with total 1, got %d items total %d", page, len(items), total)
			}
		}
	})

	t.Run("unknown sort column is rejected", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.ListEmails(context.Background(), util.NewID(), domain.EmailFilter{}, domain.PageRequest{SortBy: "body; DROP TABLE emails"})
		if !errors.Is(err, ErrUnknownSortColumn) {
			t.Fatalf("expected unknown sort column, got %v", err)
		}
	})

	t.Run("filters combine", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		now := time.Now().UTC().Truncate(time.Second)
		a := seedEmail(t, s, userID, "Quarterly 50% report", now)
		seedEmail(t, s, userID, "Quarterly 500 report", now.Add(-48*time.Hour))
		if _, _, err := s.SetEmailFlag(ctx, userID, a.ID, domain.FlagRead, true); err != nil {
			t.Fatalf("mark read: %v", err)
		}

		items, total, err := s.ListEmails(ctx, userID, domain.EmailFilter{Search: "50%"}, domain.PageRequest{})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if total != 1 || items[0].ID != a.ID {
			t.Fatalf("expected literal percent match only, got total %d", total)
		}

		items, total, err = s.ListEmails(ctx, userID, domain.EmailFilter{Search: "QUARTERLY", View: domain.ViewUnread}, domain.PageRequest{})
		if err != nil {
			t.Fatalf("search unread: %v", err)
		}
		if total != 1 || items[0].ID == a.ID {
			t.Fatalf("expected only the unread email, got total %d", total)
		}

		from := now.Add(-time.Hour)
		_, total, err = s.ListEmails(ctx, userID, domain.EmailFilter{DateFrom: &from}, domain.PageRequest{})
		if err != nil {
			t.Fatalf("date filter: %v", err)
		}
		if total != 1 {
			t.Fatalf("expected one email after dateFrom, got %d", total)
		}
	})

	t.Run("label filter is scoped to the user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		alice, bob := util.NewID(), util.NewID()
		now := time.Now().UTC()
		aliceMail := seedEmail(t, s, alice, "alice work", now)
		seedEmail(t, s, alice, "alice other", now)
		bobMail := seedEmail(t, s, bob, "bob work", now)
		addLabel(t, s, alice, aliceMail.ID, "Work")
		addLabel(t, s, bob, bobMail.ID, "Work")

		items, total, err := s.ListEmails(ctx, alice, domain.EmailFilter{Labels: []string{"Work", "Travel"}}, domain.PageRequest{})
		if err != nil {
			t.Fatalf("list by label: %v", err)
		}
		if total != 1 || items[0].ID != aliceMail.ID {
			t.Fatalf("expected only alice's labelled email, got %d", total)
		}
		if len(items[0].Labels) != 1 || items[0].Labels[0] != "Work" {
			t.Fatalf("expected labels annotation, got %v", items[0].Labels)
		}
	})

	t.Run("adding a label twice is a no-op", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		e := seedEmail(t, s, userID, "labelled", time.Now().UTC())
		addLabel(t, s, userID, e.ID, "Travel")
		addLabel(t, s, userID, e.ID, "Travel")

		got, _, err := s.GetEmail(ctx, userID, e.ID)
		if err != nil {
			t.Fatalf("get email: %v", err)
		}
		if len(got.Labels) != 1 {
			t.Fatalf("expected a single label, got %v", got.Labels)
		}
		labels, err := s.ListLabels(ctx, userID)
		if err != nil {
			t.Fatalf("list labels: %v", err)
		}
		if len(labels) != 1 || labels[0].Color != "#FF6B6B" {
			t.Fatalf("expected one Travel label with its first color, got %+v", labels)
		}
	})

	t.Run("label add on a foreign email misses", func(t *testing.T) {
		s := newStore(t)
		owner := util.NewID()
		e := seedEmail(t, s, owner, "mine", time.Now().UTC())
		ok, err := s.AddLabelToEmail(context.Background(), util.NewID(), e.ID, "Work", "#FF6B6B")
		if err != nil || ok {
			t.Fatalf("expected foreign add to miss, ok=%v err=%v", ok, err)
		}
	})

	t.Run("removing a missing label is not found", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		e := seedEmail(t, s, userID, "plain", time.Now().UTC())
		ok, err := s.RemoveLabelFromEmail(ctx, userID, e.ID, "Nope")
		if err != nil || ok {
			t.Fatalf("expected missing label to miss, ok=%v err=%v", ok, err)
		}
		addLabel(t, s, userID, e.ID, "Work")
		for i := 0; i < 2; i++ {
			ok, err = s.RemoveLabelFromEmail(ctx, userID, e.ID, "Work")
			if err != nil || !ok {
				t.Fatalf("remove %d: ok=%v err=%v", i, ok, err)
			}
		}
	})

	t.Run("duplicate label names conflict", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		l := domain.Label{UserID: userID, Name: "Finance", Color: "#F59E0B"}
		if err := s.CreateLabel(ctx, l); err != nil {
			t.Fatalf("create label: %v", err)
		}
		if err := s.CreateLabel(ctx, l); !errors.Is(err, ErrDuplicateLabel) {
			t.Fatalf("expected duplicate label, got %v", err)
		}
		other := domain.Label{UserID: util.NewID(), Name: "Finance", Color: "#F59E0B"}
		if err := s.CreateLabel(ctx, other); err != nil {
			t.Fatalf("expected same name for another user to work: %v", err)
		}
	})

	t.Run("deleting a label unlinks it", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		e := seedEmail(t, s, userID, "tagged", time.Now().UTC())
		addLabel(t, s, userID, e.ID, "Health")
		labels, err := s.ListLabels(ctx, userID)
		if err != nil || len(labels) != 1 {
			t.Fatalf("list labels: %v (%d)", err, len(labels))
		}
		if ok, err := s.DeleteLabel(ctx, util.NewID(), labels[0].ID); err != nil || ok {
			t.Fatalf("expected foreign delete to miss, ok=%v err=%v", ok, err)
		}
		if ok, err := s.DeleteLabel(ctx, userID, labels[0].ID); err != nil || !ok {
			t.Fatalf("delete label: ok=%v err=%v", ok, err)
		}
		got, _, err := s.GetEmail(ctx, userID, e.ID)
		if err != nil {
			t.Fatalf("get email: %v", err)
		}
		if len(got.Labels) != 0 {
			t.Fatalf("expected no labels after delete, got %v", got.Labels)
		}
	})

	t.Run("counts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		a := seedEmail(t, s, userID, "a", time.Now().UTC())
		seedEmail(t, s, userID, "b", time.Now().UTC())
		seedEmail(t, s, util.NewID(), "elsewhere", time.Now().UTC())
		if _, _, err := s.ToggleEmailFlag(ctx, userID, a.ID, domain.FlagImportant); err != nil {
			t.Fatalf("toggle important: %v", err)
		}
		if _, _, err := s.SetEmailFlag(ctx, userID, a.ID, domain.FlagRead, true); err != nil {
			t.Fatalf("mark read: %v", err)
		}
		c, err := s.EmailCounts(ctx, userID)
		if err != nil {
			t.Fatalf("counts: %v", err)
		}
		want := domain.EmailCounts{Inbox: 2, Important: 1, Unread: 1}
		if c != want {
			t.Fatalf("unexpected counts %+v", c)
		}
	})

	t.Run("attachments are scoped through their email", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		e := domain.Email{
			UserID:  userID,
			From:    "sender@example.com",
			To:      "me@example.com",
			Subject: "with file",
			Body:    "see attached",
			Attachments: []domain.Attachment{
				{Filename: "report.pdf", Size: 1024, Type: "application/pdf", URL: "attachments/report.pdf"},
			},
		}
		if err := s.CreateEmail(ctx, e); err != nil {
			t.Fatalf("create email: %v", err)
		}
		items, _, err := s.ListEmails(ctx, userID, domain.EmailFilter{}, domain.PageRequest{})
		if err != nil || len(items) != 1 {
			t.Fatalf("list: %v (%d)", err, len(items))
		}
		got := items[0]
		if !got.HasAttachments || len(got.Attachments) != 1 {
			t.Fatalf("expected one attachment, got %+v", got.Attachments)
		}
		att := got.Attachments[0]
		if _, ok, err := s.GetAttachment(ctx, util.NewID(), got.ID, att.ID); err != nil || ok {
			t.Fatalf("expected foreign attachment to miss, ok=%v err=%v", ok, err)
		}
		found, ok, err := s.GetAttachment(ctx, userID, got.ID, att.ID)
		if err != nil || !ok {
			t.Fatalf("get attachment: ok=%v err=%v", ok, err)
		}
		if found.URL != "attachments/report.pdf" {
			t.Fatalf("unexpected attachment url %q", found.URL)
		}
	})

	t.Run("has attachments follows the stored attachments", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		e := domain.Email{UserID: userID, From: "a@x.io", To: "b@x.io", Subject: "claims a file", Body: "none here", HasAttachments: true}
		if err := s.CreateEmail(ctx, e); err != nil {
			t.Fatalf("create email: %v", err)
		}
		items, _, err := s.ListEmails(ctx, userID, domain.EmailFilter{}, domain.PageRequest{})
		if err != nil || len(items) != 1 {
			t.Fatalf("list: %v (%d)", err, len(items))
		}
		if items[0].HasAttachments {
			t.Fatalf("expected hasAttachments=false without attachments")
		}
		yes := true
		with, _, err := s.ListEmails(ctx, userID, domain.EmailFilter{HasAttachments: &yes}, domain.PageRequest{})
		if err != nil || len(with) != 0 {
			t.Fatalf("expected attachment filter to miss, got %d (%v)", len(with), err)
		}
	})

	t.Run("mark read lowers the unread count", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		var ids []string
		for i := 0; i < 3; i++ {
			n := domain.Notification{ID: util.NewID(), UserID: userID, Title: fmt.Sprintf("n%d", i), Message: "body"}
			if err := s.CreateNotification(ctx, n); err != nil {
				t.Fatalf("create notification: %v", err)
			}
			ids = append(ids, n.ID)
		}
		before, err := s.UnreadNotificationCount(ctx, userID)
		if err != nil || before != 3 {
			t.Fatalf("unread before: %d %v", before, err)
		}
		n, ok, err := s.MarkNotificationRead(ctx, userID, ids[0])
		if err != nil || !ok || !n.IsRead {
			t.Fatalf("mark read: ok=%v err=%v", ok, err)
		}
		after, err := s.UnreadNotificationCount(ctx, userID)
		if err != nil || after != before-1 {
			t.Fatalf("unread after: %d %v", after, err)
		}
		if _, ok, err := s.MarkNotificationRead(ctx, util.NewID(), ids[1]); err != nil || ok {
			t.Fatalf("expected foreign mark read to miss, ok=%v err=%v", ok, err)
		}
		changed, err := s.MarkAllNotificationsRead(ctx, userID)
		if err != nil || changed != 2 {
			t.Fatalf("mark all: changed=%d err=%v", changed, err)
		}
		if ok, err := s.DeleteNotification(ctx, userID, ids[2]); err != nil || !ok {
			t.Fatalf("delete notification: ok=%v err=%v", ok, err)
		}
		list, err := s.ListNotifications(ctx, userID, 0)
		if err != nil || len(list) != 2 {
			t.Fatalf("list notifications: %d %v", len(list), err)
		}
	})

	t.Run("messages list newest first with limit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		base := time.Now().UTC().Truncate(time.Second)
		for i := 0; i < 4; i++ {
			m := domain.Message{UserID: userID, Title: fmt.Sprintf("m%d", i), Content: "hi", Timestamp: base.Add(time.Duration(i) * time.Minute)}
			if err := s.CreateMessage(ctx, m); err != nil {
				t.Fatalf("create message: %v", err)
			}
		}
		list, err := s.ListMessages(ctx, userID, 2)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(list) != 2 || list[0].Title != "m3" || list[1].Title != "m2" {
			t.Fatalf("unexpected messages %+v", list)
		}
		if list[0].Type != domain.MessageSystem {
			t.Fatalf("expected default message type, got %q", list[0].Type)
		}
		count, err := s.UnreadMessageCount(ctx, userID)
		if err != nil || count != 4 {
			t.Fatalf("unread messages: %d %v", count, err)
		}
		changed, err := s.MarkAllMessagesRead(ctx, userID)
		if err != nil || changed != 4 {
			t.Fatalf("mark all messages: %d %v", changed, err)
		}
		changed, err = s.MarkAllMessagesRead(ctx, userID)
		if err != nil || changed != 0 {
			t.Fatalf("second mark all: %d %v", changed, err)
		}
	})

	t.Run("sweep is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := util.NewID()
		old := time.Now().UTC().Add(-72 * time.Hour)
		stale := domain.Email{UserID: userID, From: "a@x.io", To: "b@x.io", Subject: "old", Body: "old", CreatedAt: old, Timestamp: old,
			Attachments: []domain.Attachment{{Filename: "a.txt", Size: 1, Type: "text/plain", URL: "a.txt"}}}
		if err := s.CreateEmail(ctx, stale); err != nil {
			t.Fatalf("create stale email: %v", err)
		}
		fresh := seedEmail(t, s, userID, "fresh", time.Now().UTC())
		if err := s.CreateNotification(ctx, domain.Notification{UserID: userID, Title: "old", Message: "x", CreatedAt: old}); err != nil {
			t.Fatalf("create notification: %v", err)
		}
		if err := s.CreateMessage(ctx, domain.Message{UserID: userID, Title: "old", Content: "x", CreatedAt: old}); err != nil {
			t.Fatalf("create message: %v", err)
		}

		cutoff := time.Now().UTC().Add(-48 * time.Hour)
		first, err := s.Sweep(ctx, cutoff)
		if err != nil {
			t.Fatalf("first sweep: %v", err)
		}
		if first.DeletedEmails != 1 || first.DeletedNotifications != 1 || first.DeletedMessages != 1 {
			t.Fatalf("unexpected first sweep %+v", first)
		}
		second, err := s.Sweep(ctx, cutoff)
		if err != nil {
			t.Fatalf("second sweep: %v", err)
		}
		if second.Total() != 0 {
			t.Fatalf("expected second sweep to delete nothing, got %+v", second)
		}
		if _, ok, err := s.GetEmail(ctx, userID, fresh.ID); err != nil || !ok {
			t.Fatalf("expected fresh email to survive, ok=%v err=%v", ok, err)
		}
	})

	t.Run("sweep runs round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		started := time.Now().UTC().Truncate(time.Second)
		run := domain.SweepRun{
			ID:             util.NewID(),
			Trigger:        domain.TriggerManual,
			RetentionHours: 48,
			Cutoff:         started.Add(-48 * time.Hour),
			StartedAt:      started,
			FinishedAt:     started.Add(time.Second),
			Result:         domain.SweepResult{DeletedEmails: 3},
		}
		if err := s.SaveSweepRun(ctx, run); err != nil {
			t.Fatalf("save run: %v", err)
		}
		runs, err := s.ListSweepRuns(ctx, 5)
		if err != nil {
			t.Fatalf("list runs: %v", err)
		}
		if len(runs) == 0 || runs[0].ID != run.ID || runs[0].Result.DeletedEmails != 3 {
			t.Fatalf("unexpected runs %+v", runs)
		}
	})

	t.Run("profile updates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := newTestUser("profile@example.com")
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		name := "Renamed"
		got, ok, err := s.UpdateUserProfile(ctx, u.ID, domain.ProfileUpdate{Name: &name})
		if err != nil || !ok {
			t.Fatalf("update profile: ok=%v err=%v", ok, err)
		}
		if got.Name != name || got.Email != u.Email {
			t.Fatalf("unexpected user %+v", got)
		}
		if _, ok, err := s.UpdateUserProfile(ctx, util.NewID(), domain.ProfileUpdate{Name: &name}); err != nil || ok {
			t.Fatalf("expected missing user, ok=%v err=%v", ok, err)
		}
		if ok, err := s.UpdateUserPassword(ctx, u.ID, "new-hash"); err != nil || !ok {
			t.Fatalf("update password: ok=%v err=%v", ok, err)
		}
		reloaded, _, err := s.GetUserByEmail(ctx, u.Email)
		if err != nil || reloaded.PasswordHash != "new-hash" {
			t.Fatalf("expected new hash, got %q err=%v", reloaded.PasswordHash, err)
		}
	})
}

func newTestUser(email string) domain.User {
	return domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         domain.RoleUser,
	}
}

func seedEmail(t *testing.T, s Store, userID, subject string, ts time.Time) domain.Email {
	t.Helper()
	e := domain.Email{
		ID:        util.NewID(),
		UserID:    userID,
		From:      "sender@example.com",
		To:        "me@example.com",
		Subject:   subject,
		Body:      "body of " + subject,
		Timestamp: ts,
	}
	if err := s.CreateEmail(context.Background(), e); err != nil {
		t.Fatalf("create email: %v", err)
	}
	got, ok, err := s.GetEmail(context.Background(), userID, e.ID)
	if err != nil || !ok {
		t.Fatalf("reload email: ok=%v err=%v", ok, err)
	}
	return got
}

func addLabel(t *testing.T, s Store, userID, emailID, name string) {
	t.Helper()
	ok, err := s.AddLabelToEmail(context.Background(), userID, emailID, name, "#FF6B6B")
	if err != nil || !ok {
		t.Fatalf("add label %q: ok=%v err=%v", name, ok, err)
	}
}
