package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"experimenter/internal/experiments"
	"experimenter/internal/logging"
)

// page is the data handed to the layout.
type page struct {
	Title         string
	User          experiments.User
	Notifications []experiments.Notification
	Content       any
}

type listView struct {
	Filter       experiments.Filter
	Ordering     experiments.Ordering
	Orderings    []experiments.OrderingChoice
	Statuses     []experiments.Status
	Types        []experiments.Type
	Versions     []string
	Channels     []string
	Projects     []experiments.Project
	Owners       []experiments.User
	Experiments  []*experiments.Experiment
	FilterErrors experiments.FieldErrors
}

type formView struct {
	Experiment *experiments.Experiment
	Action     string
	Form       any
	Rows       []experiments.BranchForm
	Errors     experiments.FieldErrors
	Types      []experiments.Type
	Versions   []string
	Channels   []string
	PrefTypes  []string
	Branches   []string
}

type reviewField struct {
	Name    string
	Label   string
	Checked bool
}

type detailView struct {
	Experiment    *experiments.Experiment
	ExperimentURL string
	BugURL        string
	Comments      map[string][]experiments.Comment
	NextStatuses  []experiments.Status
	Incomplete    []string
	Reviews       []reviewField
	Sections      []string
}

func (s *Server) render(c echo.Context, code int, name, title string, content any) error {
	p := page{Title: title, Content: content}
	if user, ok := currentUser(c); ok {
		p.User = user
		pending, err := s.notifier.Pending(c.Request().Context(), user.ID)
		if err != nil {
			s.logger.Warn("load notifications failed", logging.Error(err))
		}
		p.Notifications = pending
	}
	return c.Render(code, name, p)
}

func detailPath(slug string) string {
	return "/experiments/" + url.PathEscape(slug) + "/"
}

func (s *Server) listPage(c echo.Context) error {
	ctx := c.Request().Context()
	query := c.QueryParams()
	view := listView{
		Orderings: experiments.OrderingChoices(),
		Statuses:  experiments.AllStatuses(),
		Types:     experiments.Types,
		Versions:  experiments.Versions,
		Channels:  experiments.Channels,
	}

	filter, ferr := experiments.DecodeFilter(query)
	ordering, oerr := experiments.ParseOrdering(query.Get("ordering"))
	if err := errors.Join(ferr, oerr); err != nil {
		var fields experiments.FieldErrors
		if errors.As(ferr, &fields) {
			view.FilterErrors = fields
		} else {
			view.FilterErrors = experiments.FieldErrors{}
		}
		if oerr != nil {
			view.FilterErrors.Add("ordering", "Select a valid choice.")
		}
		filter, ordering = experiments.Filter{}, experiments.DefaultOrdering
	}
	view.Filter, view.Ordering = filter, ordering

	var err error
	if view.Projects, err = s.dir.ListProjects(ctx); err != nil {
		return err
	}
	if view.Owners, err = s.dir.ListOwners(ctx); err != nil {
		return err
	}
	if view.Experiments, err = s.svc.List(ctx, filter, ordering); err != nil {
		return err
	}
	return s.render(c, http.StatusOK, "list.html", "Experiments", view)
}

func (s *Server) newFormView(e *experiments.Experiment, action string) formView {
	return formView{
		Experiment: e,
		Action:     action,
		Types:      experiments.Types,
		Versions:   experiments.Versions,
		Channels:   experiments.Channels,
		PrefTypes:  experiments.PrefTypes,
		Branches:   experiments.PrefBranches,
	}
}

func (s *Server) createPage(c echo.Context) error {
	view := s.newFormView(nil, "/experiments/new/")
	view.Form = experiments.OverviewFormFrom(experiments.New(experiments.TypePref))
	return s.render(c, http.StatusOK, "overview.html", "Create Experiment", view)
}

func (s *Server) createSubmit(c echo.Context) error {
	values, err := c.FormParams()
	if err != nil {
		return err
	}
	user, _ := currentUser(c)
	form := experiments.DecodeOverviewForm(values)
	e, err := s.svc.Create(c.Request().Context(), user, form)
	if fields, ok := asFieldErrors(err); ok {
		view := s.newFormView(nil, "/experiments/new/")
		view.Form, view.Errors = form, fields
		return s.render(c, http.StatusBadRequest, "overview.html", "Create Experiment", view)
	}
	if err != nil {
		return err
	}
	target := detailPath(e.Slug)
	if values.Get("action") == "continue" {
		target = detailPath(e.Slug) + "edit-variants/"
	}
	return c.Redirect(http.StatusFound, target)
}

func (s *Server) detailPage(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := s.svc.Get(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	comments, err := s.svc.Comments(ctx, e)
	if err != nil {
		return err
	}
	view := detailView{
		Experiment:    e,
		ExperimentURL: e.ExperimentURL(s.svc.Hostname()),
		BugURL:        s.svc.BugURL(e),
		Comments:      comments,
		NextStatuses:  experiments.NextStatuses(e.Status),
		Incomplete:    e.IncompleteSections(),
		Reviews:       reviewFields(e.Reviews),
		Sections:      experiments.Sections,
	}
	return s.render(c, http.StatusOK, "detail.html", e.Name, view)
}

func (s *Server) statusSubmit(c echo.Context) error {
	slug := c.Param("slug")
	values, err := c.FormParams()
	if err != nil {
		return err
	}
	user, _ := currentUser(c)
	to, err := experiments.ParseStatusForm(values)
	if err == nil {
		_, err = s.svc.UpdateStatus(c.Request().Context(), user, slug, to, "")
	}
	if err != nil {
		logging.WithContext(c.Request().Context(), s.logger).Info("status update refused",
			logging.String(logging.FieldExperiment, slug),
			logging.Error(err),
		)
	}
	return c.Redirect(http.StatusFound, detailPath(slug))
}

func (s *Server) reviewSubmit(c echo.Context) error {
	slug := c.Param("slug")
	values, err := c.FormParams()
	if err != nil {
		return err
	}
	user, _ := currentUser(c)
	if _, err := s.svc.UpdateReviews(c.Request().Context(), user, slug, experiments.DecodeReviewsForm(values)); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, detailPath(slug))
}

func (s *Server) commentSubmit(c echo.Context) error {
	slug := c.Param("slug")
	values, err := c.FormParams()
	if err != nil {
		return err
	}
	user, _ := currentUser(c)
	form := experiments.DecodeCommentForm(values)
	_, err = s.svc.AddComment(c.Request().Context(), user, slug, form)
	if _, invalid := asFieldErrors(err); invalid {
		return c.Redirect(http.StatusFound, detailPath(slug))
	}
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, detailPath(slug)+"#"+form.Section+"-comments")
}

func (s *Server) archiveSubmit(c echo.Context) error {
	slug := c.Param("slug")
	user, _ := currentUser(c)
	if _, err := s.svc.ToggleArchive(c.Request().Context(), user, slug); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, detailPath(slug))
}

func asFieldErrors(err error) (experiments.FieldErrors, bool) {
	var fields experiments.FieldErrors
	if errors.As(err, &fields) {
		return fields, true
	}
	return nil, false
}

func reviewFields(r experiments.Reviews) []reviewField {
	return []reviewField{
		{"review_science", "Data Science Sign-Off", r.Science},
		{"review_engineering", "Engineering Allocated", r.Engineering},
		{"review_qa_requested", "QA Requested", r.QARequested},
		{"review_intent_to_ship", "Intent to Ship Email Sent", r.IntentToShip},
		{"review_bugzilla", "Bugzilla Updated", r.Bugzilla},
		{"review_qa", "QA Sign-Off", r.QA},
		{"review_relman", "Release Management Sign-Off", r.Relman},
		{"review_advisory", "Lightning Advisory", r.Advisory},
		{"review_legal", "Legal Review", r.Legal},
		{"review_ux", "UX Review", r.UX},
		{"review_security", "Security Review", r.Security},
		{"review_vp", "VP Sign-Off", r.VP},
		{"review_data_steward", "Data Steward Review", r.DataSteward},
		{"review_comms", "Comms Review", r.Comms},
		{"review_impacted_teams", "Impacted Teams Review", r.ImpactedTeams},
	}
}
