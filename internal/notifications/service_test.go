package notifications_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"experimenter/internal/notifications"
	"experimenter/internal/testsupport"
)

func TestNewServiceReturnsNoopWithoutStore(t *testing.T) {
	svc := notifications.NewService(nil)
	if err := svc.NotifyBugCreateFailed(context.Background(), 1); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	pending, err := svc.Pending(context.Background(), 1)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %#v, %v", pending, err)
	}
}

func TestServiceFormatsMessages(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.MustUser(t, st, "owner@example.com")
	svc := notifications.NewService(st)
	ctx := context.Background()

	steps := []func() error{
		func() error { return svc.NotifyReviewEmailSent(ctx, user.ID, "review@example.com", "Pref Flip") },
		func() error { return svc.NotifyShipEmailSent(ctx, user.ID, "ship@example.com", "Pref Flip") },
		func() error { return svc.NotifyBugCreated(ctx, user.ID, "https://bugzilla.test/show_bug.cgi?id=1") },
		func() error { return svc.NotifyBugCreateFailed(ctx, user.ID) },
		func() error { return svc.NotifyBugCommentAdded(ctx, user.ID, "https://bugzilla.test/show_bug.cgi?id=1") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	pending, err := svc.Pending(ctx, user.ID)
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	var got []string
	for _, n := range pending {
		got = append(got, n.Message)
	}
	want := []string{
		"An email was sent to review@example.com about Pref Flip",
		"An email was sent to ship@example.com about Pref Flip",
		`A <a target="_blank" href="https://bugzilla.test/show_bug.cgi?id=1">Bugzilla Ticket</a> was created for your experiment`,
		"Experimenter failed to create a Bugzilla Ticket for your experiment.  Please contact an Experimenter Administrator on #ask-experimenter on Slack.",
		`The <a target="_blank" href="https://bugzilla.test/show_bug.cgi?id=1">Bugzilla Ticket</a> was updated with the details of this experiment`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}

	again, err := svc.Pending(ctx, user.ID)
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected pending notifications to be consumed, got %d", len(again))
	}
}

func TestServiceEscapesEmailSentValues(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.MustUser(t, st, "owner@example.com")
	svc := notifications.NewService(st)
	ctx := context.Background()

	if err := svc.NotifyReviewEmailSent(ctx, user.ID, "a&b@example.com", "<script>alert(1)</script>"); err != nil {
		t.Fatalf("NotifyReviewEmailSent failed: %v", err)
	}
	if err := svc.NotifyShipEmailSent(ctx, user.ID, "ship@example.com", `"Ship" <b>it</b>`); err != nil {
		t.Fatalf("NotifyShipEmailSent failed: %v", err)
	}
	pending, err := svc.Pending(ctx, user.ID)
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	var got []string
	for _, n := range pending {
		got = append(got, n.Message)
	}
	want := []string{
		"An email was sent to a&amp;b@example.com about &lt;script&gt;alert(1)&lt;/script&gt;",
		"An email was sent to ship@example.com about &#34;Ship&#34; &lt;b&gt;it&lt;/b&gt;",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}
