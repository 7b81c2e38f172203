package store_test

import (
	"context"
	"testing"

	"experimenter/internal/testsupport"
)

func TestPopUnreadNotifications(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	user := testsupport.MustUser(t, st, "owner@example.com")
	other := testsupport.MustUser(t, st, "other@example.com")

	for _, msg := range []string{"first", "second"} {
		if _, err := st.CreateNotification(ctx, user.ID, msg); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
	}
	if _, err := st.CreateNotification(ctx, other.ID, "not yours"); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	popped, err := st.PopUnreadNotifications(ctx, user.ID)
	if err != nil {
		t.Fatalf("PopUnreadNotifications failed: %v", err)
	}
	if len(popped) != 2 || popped[0].Message != "first" || popped[1].Message != "second" {
		t.Fatalf("unexpected notifications %#v", popped)
	}

	again, err := st.PopUnreadNotifications(ctx, user.ID)
	if err != nil {
		t.Fatalf("PopUnreadNotifications failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected notifications to be consumed, got %#v", again)
	}

	total, unread, err := st.CountNotifications(ctx, user.ID)
	if err != nil {
		t.Fatalf("CountNotifications failed: %v", err)
	}
	if total != 2 || unread != 0 {
		t.Fatalf("unexpected counts total=%d unread=%d", total, unread)
	}
	_, otherUnread, err := st.CountNotifications(ctx, other.ID)
	if err != nil {
		t.Fatalf("CountNotifications failed: %v", err)
	}
	if otherUnread != 1 {
		t.Fatalf("expected other user's notification untouched, got %d", otherUnread)
	}
}

func TestMarkNotificationsRead(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	user := testsupport.MustUser(t, st, "owner@example.com")

	n, err := st.CreateNotification(ctx, user.ID, "hello")
	if err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}
	if err := st.MarkNotificationsRead(ctx, []int64{n.ID}); err != nil {
		t.Fatalf("MarkNotificationsRead failed: %v", err)
	}
	unread, err := st.UnreadNotifications(ctx, user.ID)
	if err != nil {
		t.Fatalf("UnreadNotifications failed: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
	all, err := st.ListNotifications(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(all) != 1 || !all[0].Read {
		t.Fatalf("expected read notification, got %#v", all)
	}
}
