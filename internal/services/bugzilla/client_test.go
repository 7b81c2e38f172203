package bugzilla_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"experimenter/internal/experiments"
	"experimenter/internal/services"
	"experimenter/internal/services/bugzilla"
	"experimenter/internal/testsupport"
)

type recorder struct {
	mu       sync.Mutex
	requests []map[string]any
	paths    []string
}

func (r *recorder) record(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		t.Errorf("decode request: %v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, body)
	r.paths = append(r.paths, req.URL.Path+"?"+req.URL.RawQuery)
	return body
}

func newExperiment() *experiments.Experiment {
	e := testsupport.ReadyExperiment("Pref Flip")
	e.ID = 1
	e.OwnerEmail = "owner@example.com"
	e.QAStatus = "Green"
	e.Variants = testsupport.DefaultVariants()
	return e
}

func TestCreateBug(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(t, r)
		_, _ = w.Write([]byte(`{"id": 12345}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBugzillaHost(server.URL))
	cfg.Bugzilla.CCList = "a@example.com, b@example.com"
	client := bugzilla.NewClient(cfg)

	id, err := client.CreateBug(context.Background(), newExperiment())
	if err != nil {
		t.Fatalf("CreateBug returned error: %v", err)
	}
	if id != "12345" {
		t.Fatalf("unexpected id %q", id)
	}
	if len(rec.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(rec.requests))
	}
	if rec.paths[0] != "/rest/bug?api_key=test" {
		t.Fatalf("unexpected path %q", rec.paths[0])
	}
	body := rec.requests[0]
	if body["summary"] != "[Shield] Pref Flip" || body["product"] != "Shield" || body["component"] != "Shield Study" || body["version"] != "unspecified" {
		t.Fatalf("unexpected bug fields %#v", body)
	}
	if body["assigned_to"] != "owner@example.com" {
		t.Fatalf("expected assignee, got %#v", body["assigned_to"])
	}
	cc, _ := body["cc"].([]any)
	if len(cc) != 2 || cc[1] != "b@example.com" {
		t.Fatalf("unexpected cc %#v", body["cc"])
	}
	description, _ := body["description"].(string)
	if !strings.Contains(description, "https://experimenter.test/experiments/pref-flip/") {
		t.Fatalf("expected experiment url in description, got %q", description)
	}
}

func TestCreateBugRetriesWithoutInvalidAssignee(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := rec.record(t, r)
		if _, ok := body["assigned_to"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": true, "code": 51, "message": "There is no user named 'owner@example.com'."}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": 777}`))
	}))
	defer server.Close()

	client := bugzilla.NewClient(testsupport.NewConfig(t, testsupport.WithBugzillaHost(server.URL)))
	id, err := client.CreateBug(context.Background(), newExperiment())
	if err != nil {
		t.Fatalf("CreateBug returned error: %v", err)
	}
	if id != "777" {
		t.Fatalf("unexpected id %q", id)
	}
	if len(rec.requests) != 2 {
		t.Fatalf("expected a retry, got %d requests", len(rec.requests))
	}
}

func TestCreateBugFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "bugzilla error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error": true, "code": 32000, "message": "bad product"}`))
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{}`))
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			client := bugzilla.NewClient(testsupport.NewConfig(t, testsupport.WithBugzillaHost(server.URL)))
			_, err := client.CreateBug(context.Background(), newExperiment())
			var bzErr *bugzilla.Error
			if !errors.As(err, &bzErr) {
				t.Fatalf("expected *bugzilla.Error, got %v", err)
			}
			if !errors.Is(err, services.ErrExternal) {
				t.Fatalf("expected external classification, got %v", err)
			}
		})
	}
}

func TestCreateBugTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := server.URL
	server.Close()

	client := bugzilla.NewClient(testsupport.NewConfig(t, testsupport.WithBugzillaHost(host)))
	if _, err := client.CreateBug(context.Background(), newExperiment()); !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestAddComment(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(t, r)
		_, _ = w.Write([]byte(`{"id": 99}`))
	}))
	defer server.Close()

	client := bugzilla.NewClient(testsupport.NewConfig(t, testsupport.WithBugzillaHost(server.URL)))
	e := newExperiment()
	e.BugzillaID = "12345"
	id, err := client.AddComment(context.Background(), e)
	if err != nil {
		t.Fatalf("AddComment returned error: %v", err)
	}
	if id != "99" {
		t.Fatalf("unexpected comment id %q", id)
	}
	if rec.paths[0] != "/rest/bug/12345/comment?api_key=test" {
		t.Fatalf("unexpected path %q", rec.paths[0])
	}
	comment, _ := rec.requests[0]["comment"].(string)
	for _, want := range []string{"Pref Flip Study", "browser.test.enabled", "Control Control 50%", "0.5% of Nightly Firefox 57.0"} {
		if !strings.Contains(comment, want) {
			t.Fatalf("expected comment to contain %q, got:\n%s", want, comment)
		}
	}
}

func TestAddCommentRequiresBug(t *testing.T) {
	client := bugzilla.NewClient(testsupport.NewConfig(t))
	if _, err := client.AddComment(context.Background(), newExperiment()); !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected error without bug id, got %v", err)
	}
}
