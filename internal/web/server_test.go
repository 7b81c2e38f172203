package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"experimenter/internal/api"
	"experimenter/internal/config"
	"experimenter/internal/experiments"
	"experimenter/internal/metrics"
	"experimenter/internal/notifications"
	"experimenter/internal/store"
	"experimenter/internal/tasks"
	"experimenter/internal/testsupport"
	"experimenter/internal/web"
)

const userEmail = "user@example.com"

type harness struct {
	cfg    *config.Config
	store  *store.Store
	server *web.Server
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	reg := metrics.New()
	svc := api.NewExperimentService(cfg, st, tasks.NewQueue(st, 3), reg, nil)
	srv, err := web.New(cfg, web.Deps{
		Experiments:   svc,
		Directory:     st,
		Notifications: notifications.NewService(st),
		Metrics:       reg,
		Version:       web.VersionInfo{Source: "https://github.com/mozilla/experimenter", Version: "test", Commit: "abc123"},
	})
	if err != nil {
		t.Fatalf("web.New failed: %v", err)
	}
	return &harness{cfg: cfg, store: st, server: srv}
}

func (h *harness) do(t *testing.T, method, target string, body url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func (h *harness) as(t *testing.T, method, target string, body url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(t, method, target, body, map[string]string{h.cfg.Server.AuthHeader: userEmail})
}

func (h *harness) experiment(t *testing.T, slug string) *experiments.Experiment {
	t.Helper()
	e, err := h.store.GetExperimentBySlug(context.Background(), slug)
	if err != nil {
		t.Fatalf("GetExperimentBySlug(%q): %v", slug, err)
	}
	return e
}

func (h *harness) owner(t *testing.T) experiments.User {
	return testsupport.MustUser(t, h.store, "owner@example.com")
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != want {
		t.Fatalf("redirect mismatch: got %q want %q", got, want)
	}
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Fatalf("expected JSON error body, got %q", rec.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/__lbheartbeat__", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id header")
	}
}

func TestOpsEndpoints(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/__heartbeat__", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"ok"`) {
		t.Fatalf("unexpected heartbeat %d %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodGet, "/__version__", nil, nil)
	var version web.VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &version); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if version.Commit != "abc123" {
		t.Fatalf("unexpected version %+v", version)
	}

	h.do(t, http.MethodGet, "/api/v1/experiments/", nil, nil)
	rec = h.do(t, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "experimenter_http_requests_total") {
		t.Fatalf("expected http metrics, got %d", rec.Code)
	}
}

func TestCreateExperiment(t *testing.T) {
	h := newHarness(t)
	form := url.Values{
		"type":                      []string{"pref"},
		"name":                      []string{"A new experiment!"},
		"short_description":         []string{"Let us learn new things"},
		"data_science_bugzilla_url": []string{"https://bugzilla.test/123/"},
		"feature_bugzilla_url":      []string{"https://bugzilla.test/123/"},
		"related_work":              []string{"Designs: https://www.example.com/myproject/"},
		"proposed_start_date":       []string{"2019-03-01"},
		"proposed_enrollment":       []string{"10"},
		"proposed_duration":         []string{"20"},
	}
	rec := h.as(t, http.MethodPost, "/experiments/new/", form)
	expectRedirect(t, rec, "/experiments/a-new-experiment/")

	e := h.experiment(t, "a-new-experiment")
	if e.Status != experiments.StatusDraft || e.Name != "A new experiment!" {
		t.Fatalf("unexpected experiment %s/%s", e.Status, e.Name)
	}
	if len(e.Changes) != 1 || e.Changes[0].ChangedByEmail != userEmail || e.Changes[0].OldStatus != "" {
		t.Fatalf("unexpected changes %#v", e.Changes)
	}
}

func TestCreateExperimentContinueGoesToVariants(t *testing.T) {
	h := newHarness(t)
	rec := h.as(t, http.MethodPost, "/experiments/new/", url.Values{
		"type":              []string{"addon"},
		"name":              []string{"Addon Study"},
		"short_description": []string{"short"},
		"action":            []string{"continue"},
	})
	expectRedirect(t, rec, "/experiments/addon-study/edit-variants/")
}

func TestCreateExperimentInvalidRerenders(t *testing.T) {
	h := newHarness(t)
	rec := h.as(t, http.MethodPost, "/experiments/new/", url.Values{"type": []string{"pref"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "This field is required.") {
		t.Fatalf("expected field errors in page, got %s", rec.Body.String())
	}
}

func TestPagesRender(t *testing.T) {
	h := newHarness(t)
	testsupport.CreateExperiment(t, h.store, h.owner(t), "Rendered")

	for _, target := range []string{
		"/",
		"/?ordering=firefox_version&status=Draft",
		"/experiments/new/",
		"/experiments/rendered/",
		"/experiments/rendered/edit/",
		"/experiments/rendered/edit-variants/",
		"/experiments/rendered/edit-objectives/",
		"/experiments/rendered/edit-risks/",
	} {
		t.Run(target, func(t *testing.T) {
			rec := h.as(t, http.MethodGet, target, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListPageFiltersAndOrders(t *testing.T) {
	h := newHarness(t)
	owner := h.owner(t)
	testsupport.CreateExperiment(t, h.store, owner, "Visible Draft")
	testsupport.CreateExperimentWithStatus(t, h.store, owner, "In Review", experiments.StatusReview)

	rec := h.as(t, http.MethodGet, "/?status=Review", nil)
	body := rec.Body.String()
	if !strings.Contains(body, "In Review") || strings.Contains(body, "Visible Draft") {
		t.Fatalf("status filter not applied: %s", body)
	}

	rec = h.as(t, http.MethodGet, "/?ordering=bogus", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Select a valid choice.") {
		t.Fatalf("expected invalid ordering to be reported, got %d", rec.Code)
	}
}

func TestDetailMissingExperiment(t *testing.T) {
	h := newHarness(t)
	rec := h.as(t, http.MethodGet, "/experiments/nope/", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEditVariantsContinue(t *testing.T) {
	h := newHarness(t)
	testsupport.CreateExperiment(t, h.store, h.owner(t), "Branchy")

	form := url.Values{
		"population_percent":    []string{"1.5"},
		"firefox_version":       []string{"58.0"},
		"firefox_channel":       []string{"Release"},
		"pref_key":              []string{"browser.flip"},
		"pref_type":             []string{"boolean"},
		"pref_branch":           []string{"default"},
		"variants-TOTAL_FORMS":  []string{"3"},
		"variants-0-is_control": []string{"on"},
		"variants-0-ratio":      []string{"60"},
		"variants-0-name":       []string{"Control"},
		"variants-0-value":      []string{"false"},
		"variants-1-ratio":      []string{"40"},
		"variants-1-name":       []string{"Flip"},
		"variants-1-value":      []string{"true"},
		"action":                []string{"continue"},
	}
	rec := h.as(t, http.MethodPost, "/experiments/branchy/edit-variants/", form)
	expectRedirect(t, rec, "/experiments/branchy/edit-objectives/")

	e := h.experiment(t, "branchy")
	if e.Population() != "1.5% of Release Firefox 58.0" || len(e.Variants) != 2 {
		t.Fatalf("unexpected experiment %s with %d variants", e.Population(), len(e.Variants))
	}
}

func TestEditVariantsInvalidRerenders(t *testing.T) {
	h := newHarness(t)
	testsupport.CreateExperiment(t, h.store, h.owner(t), "Broken")

	rec := h.as(t, http.MethodPost, "/experiments/broken/edit-variants/", url.Values{
		"population_percent":   []string{"0"},
		"variants-TOTAL_FORMS": []string{"0"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(h.experiment(t, "broken").Variants) != 2 {
		t.Fatal("variants should be untouched")
	}
}

func TestEditLockedExperimentFails(t *testing.T) {
	h := newHarness(t)
	testsupport.CreateExperimentWithStatus(t, h.store, h.owner(t), "Locked", experiments.StatusAccepted)

	rec := h.as(t, http.MethodPost, "/experiments/locked/edit-objectives/", url.Values{"objectives": []string{"x"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusUpdate(t *testing.T) {
	h := newHarness(t)
	testsupport.CreateExperiment(t, h.store, h.owner(t), "Moving")

	rec := h.as(t, http.MethodPost, "/experiments/moving/status/", url.Values{"status": []string{"Review"}})
	expectRedirect(t, rec, "/experiments/moving/")
	if got := h.experiment(t, "moving").Status; got != experiments.StatusReview {
		t.Fatalf("expected Review, got %s", got)
	}

	pending, err := h.store.ListTasks(context.Background(), store.TaskPending)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected review email and bug tasks, got %d", len(pending))
	}
}

func TestStatusUpdateFailureRedirects(t *testing.T) {
	h := newHarness(t)
	testsupport.CreateExperiment(t, h.store, h.owner(t), "Stays")

	rec := h.as(t, http.MethodPost, "/experiments/stays/status/", url.Values{"status": []string{"Complete"}})
	expectRedirect(t, rec, "/experiments/stays/")
	if got := h.experiment(t, "stays").Status; got != experiments.StatusDraft {
		t.Fatalf("expected Draft, got %s", got)
	}
}

func TestReviewUpdate(t *testing.T) {
	h := newHarness(t)
	testsupport.CreateExperimentWithStatus(t, h.store, h.owner(t), "Signing", experiments.StatusReview)

	form := url.Values{}
	for _, field := range []string{"review_science", "review_relman", "review_qa", "review_legal", "review_ux", "review_security"} {
		form.Set(field, "True")
	}
	rec := h.as(t, http.MethodPost, "/experiments/signing/review/", form)
	expectRedirect(t, rec, "/experiments/signing/")

	e := h.experiment(t, "signing")
	want := experiments.Reviews{Science: true, Relman: true, QA: true, Legal: true, UX: true, Security: true}
	if diff := cmp.Diff(want, e.Reviews); diff != "" {
		t.Fatalf("reviews mismatch (-want +got):\n%s", diff)
	}
	latest, _ := e.LatestChange()
	if latest.ChangedByEmail != userEmail || latest.OldStatus != experiments.StatusReview || latest.NewStatus != experiments.StatusReview {
		t.Fatalf("unexpected change %#v", latest)
	}
}

func TestCommentCreate(t *testing.T) {
	h := newHarness(t)
	e := testsupport.CreateExperiment(t, h.store, h.owner(t), "Chatty")

	rec := h.as(t, http.MethodPost, "/experiments/chatty/comment/", url.Values{
		"section": []string{"objectives"},
		"text":    []string{"Hello!"},
	})
	expectRedirect(t, rec, "/experiments/chatty/#objectives-comments")

	comments, err := h.store.CommentsBySection(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("CommentsBySection failed: %v", err)
	}
	got := comments["objectives"]
	if len(got) != 1 || got[0].Text != "Hello!" || got[0].CreatedByEmail != userEmail {
		t.Fatalf("unexpected comments %#v", got)
	}

	rec = h.as(t, http.MethodPost, "/experiments/chatty/comment/", url.Values{
		"section": []string{"invalid section"},
		"text":    []string{""},
	})
	expectRedirect(t, rec, "/experiments/chatty/")
}

func TestArchiveToggle(t *testing.T) {
	h := newHarness(t)
	testsupport.CreateExperiment(t, h.store, h.owner(t), "Dusty")

	rec := h.as(t, http.MethodPost, "/experiments/dusty/archive/", nil)
	expectRedirect(t, rec, "/experiments/dusty/")
	if !h.experiment(t, "dusty").Archived {
		t.Fatal("expected experiment to be archived")
	}
}

func TestAPIListIsWhitelisted(t *testing.T) {
	h := newHarness(t)
	owner := h.owner(t)
	testsupport.CreateExperiment(t, h.store, owner, "Draft One")
	testsupport.CreateExperimentWithStatus(t, h.store, owner, "Shipped One", experiments.StatusShip)

	rec := h.do(t, http.MethodGet, "/api/v1/experiments/?status=Ship", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list []api.Experiment
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Slug != "shipped-one" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].ExperimentURL != "https://experimenter.test/experiments/shipped-one/" {
		t.Fatalf("unexpected url %q", list[0].ExperimentURL)
	}

	rec = h.do(t, http.MethodGet, "/api/v1/experiments/?status=Bogus", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", rec.Code)
	}
}

func TestAPIListFiltersByProject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project, err := h.store.CreateProject(ctx, "Search")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	owner := h.owner(t)
	e := testsupport.CreateExperiment(t, h.store, owner, "Search Study")
	e.ProjectID = project.ID
	if err := h.store.SaveExperiment(ctx, e, owner, ""); err != nil {
		t.Fatalf("SaveExperiment failed: %v", err)
	}
	testsupport.CreateExperiment(t, h.store, owner, "Other Study")

	rec := h.do(t, http.MethodGet, "/api/v1/experiments/?project__slug="+project.Slug, nil, nil)
	var list []api.Experiment
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Slug != "search-study" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestAPIDetailRequiresAuth(t *testing.T) {
	h := newHarness(t)
	testsupport.CreateExperiment(t, h.store, h.owner(t), "Private")

	if rec := h.do(t, http.MethodGet, "/api/v1/experiments/private/", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec := h.as(t, http.MethodGet, "/api/v1/experiments/private/", nil)
	var got api.Experiment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if got.Slug != "private" || len(got.Variants) != 2 {
		t.Fatalf("unexpected detail %+v", got)
	}
}

func TestAPIAcceptAndReject(t *testing.T) {
	h := newHarness(t)
	owner := h.owner(t)
	testsupport.CreateExperimentWithStatus(t, h.store, owner, "Accept", experiments.StatusShip)
	testsupport.CreateExperimentWithStatus(t, h.store, owner, "Reject", experiments.StatusShip)
	testsupport.CreateExperiment(t, h.store, owner, "Draft")

	rec := h.as(t, http.MethodPatch, "/api/v1/experiments/accept/accept/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := h.experiment(t, "accept").Status; got != experiments.StatusAccepted {
		t.Fatalf("expected Accepted, got %s", got)
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/experiments/reject/reject/", strings.NewReader(`{"message":"Not now"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(h.cfg.Server.AuthHeader, userEmail)
	rr := httptest.NewRecorder()
	h.server.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	e := h.experiment(t, "reject")
	latest, _ := e.LatestChange()
	if e.Status != experiments.StatusRejected || latest.Message != "Not now" {
		t.Fatalf("unexpected reject state %s %q", e.Status, latest.Message)
	}

	rec = h.as(t, http.MethodPatch, "/api/v1/experiments/draft/accept/", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 accepting a draft, got %d", rec.Code)
	}
}

func TestAPINotificationsPop(t *testing.T) {
	h := newHarness(t)
	user := testsupport.MustUser(t, h.store, userEmail)
	if _, err := h.store.CreateNotification(context.Background(), user.ID, "Hello"); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	rec := h.as(t, http.MethodGet, "/api/v1/notifications/", nil)
	var first []api.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(first) != 1 || first[0].Message != "Hello" {
		t.Fatalf("unexpected notifications %+v", first)
	}

	rec = h.as(t, http.MethodGet, "/api/v1/notifications/", nil)
	var second []api.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected notifications to be consumed, got %+v", second)
	}
}

func TestBearerTokenAuth(t *testing.T) {
	h := newHarness(t, testsupport.WithJWTSecret("sekrit"))

	sign := func(secret string, claims jwt.MapClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return token
	}
	valid := sign("sekrit", jwt.MapClaims{"email": "jwt@example.com", "exp": time.Now().Add(time.Hour).Unix()})

	rec := h.do(t, http.MethodGet, "/", nil, map[string]string{"Authorization": "Bearer " + valid})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec.Code)
	}
	if _, err := h.store.GetUserByEmail(context.Background(), "jwt@example.com"); err != nil {
		t.Fatalf("expected user to be created: %v", err)
	}

	for name, token := range map[string]string{
		"wrong secret": sign("other", jwt.MapClaims{"email": "jwt@example.com"}),
		"no email":     sign("sekrit", jwt.MapClaims{"sub": "x"}),
		"expired":      sign("sekrit", jwt.MapClaims{"email": "jwt@example.com", "exp": time.Now().Add(-time.Hour).Unix()}),
	} {
		t.Run(name, func(t *testing.T) {
			rec := h.do(t, http.MethodGet, "/", nil, map[string]string{"Authorization": "Bearer " + token})
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestNotificationBannerEscapesExperimentName(t *testing.T) {
	h := newHarness(t)
	user := testsupport.MustUser(t, h.store, userEmail)
	notifier := notifications.NewService(h.store)
	if err := notifier.NotifyReviewEmailSent(context.Background(), user.ID, "review@example.com", "<script>alert(1)</script>"); err != nil {
		t.Fatalf("NotifyReviewEmailSent failed: %v", err)
	}

	rec := h.as(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Fatalf("notification rendered unescaped: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Fatalf("expected escaped notification in page: %s", body)
	}
}

func TestWhitelistedWritesStillNeedIdentity(t *testing.T) {
	h := newHarness(t, testsupport.WithAuthWhitelist("experiments-api-list", "experiments-api-accept", "experiments-create"))
	testsupport.CreateExperimentWithStatus(t, h.store, h.owner(t), "Shipping", experiments.StatusShip)

	if rec := h.do(t, http.MethodGet, "/experiments/new/", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous read of whitelisted page, got %d", rec.Code)
	}
	rec := h.do(t, http.MethodPost, "/experiments/new/", url.Values{"type": []string{"pref"}, "name": []string{"Anon"}}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous create, got %d", rec.Code)
	}
	rec = h.do(t, http.MethodPatch, "/api/v1/experiments/shipping/accept/", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous accept, got %d", rec.Code)
	}
	if got := h.experiment(t, "shipping").Status; got != experiments.StatusShip {
		t.Fatalf("expected status to stay Ship, got %s", got)
	}

	rec = h.as(t, http.MethodPatch, "/api/v1/experiments/shipping/accept/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected identified accept to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateExperimentWithReservedSlug(t *testing.T) {
	h := newHarness(t)
	rec := h.as(t, http.MethodPost, "/experiments/new/", url.Values{
		"type":              []string{"pref"},
		"name":              []string{"New"},
		"short_description": []string{"shadowing the create page"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "This name is reserved.") {
		t.Fatalf("expected reserved name error in page, got %s", rec.Body.String())
	}
}
