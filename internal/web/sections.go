package web

import (
	"context"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"experimenter/internal/experiments"
)

// editSection is one of the section edit pages. Sections are chained so
// "save and continue" moves to the next one.
type editSection struct {
	name     string
	path     string
	template string
	title    string
	next     string
}

var editSections = []editSection{
	{name: "experiments-overview-update", path: "edit", template: "overview.html", title: "Edit Overview", next: "edit-variants"},
	{name: "experiments-variants-update", path: "edit-variants", template: "variants.html", title: "Edit Population & Branches", next: "edit-objectives"},
	{name: "experiments-objectives-update", path: "edit-objectives", template: "objectives.html", title: "Edit Objectives", next: "edit-risks"},
	{name: "experiments-risks-update", path: "edit-risks", template: "risks.html", title: "Edit Risks & Testing"},
}

func (s *Server) editPage(section editSection) echo.HandlerFunc {
	return func(c echo.Context) error {
		e, err := s.svc.Get(c.Request().Context(), c.Param("slug"))
		if err != nil {
			return err
		}
		view := s.newFormView(e, detailPath(e.Slug)+section.path+"/")
		switch section.path {
		case "edit":
			view.Form = experiments.OverviewFormFrom(e)
		case "edit-variants":
			form := experiments.VariantsFormFrom(e)
			view.Form, view.Rows = form, branchRows(form.Branches)
		case "edit-objectives":
			view.Form = experiments.ObjectivesFormFrom(e)
		case "edit-risks":
			view.Form = experiments.RisksFormFrom(e)
		}
		return s.render(c, http.StatusOK, section.template, section.title, view)
	}
}

func (s *Server) editSubmit(section editSection) echo.HandlerFunc {
	return func(c echo.Context) error {
		slug := c.Param("slug")
		values, err := c.FormParams()
		if err != nil {
			return err
		}
		form, e, err := s.applySection(c.Request().Context(), c, section, slug, values)
		if fields, ok := asFieldErrors(err); ok && e != nil {
			view := s.newFormView(e, detailPath(e.Slug)+section.path+"/")
			view.Form, view.Errors = form, fields
			if vf, ok := form.(experiments.VariantsForm); ok {
				view.Rows = branchRows(vf.Branches)
			}
			return s.render(c, http.StatusBadRequest, section.template, section.title, view)
		}
		if err != nil {
			return err
		}
		target := detailPath(e.Slug)
		if values.Get("action") == "continue" && section.next != "" {
			target += section.next + "/"
		}
		return c.Redirect(http.StatusFound, target)
	}
}

func (s *Server) applySection(ctx context.Context, c echo.Context, section editSection, slug string, values url.Values) (any, *experiments.Experiment, error) {
	user, _ := currentUser(c)
	switch section.path {
	case "edit":
		form := experiments.DecodeOverviewForm(values)
		e, err := s.svc.UpdateOverview(ctx, user, slug, form)
		return form, e, err
	case "edit-variants":
		form := experiments.DecodeVariantsForm(values)
		e, err := s.svc.UpdateVariants(ctx, user, slug, form)
		return form, e, err
	case "edit-objectives":
		form := experiments.DecodeObjectivesForm(values)
		e, err := s.svc.UpdateObjectives(ctx, user, slug, form)
		return form, e, err
	default:
		form := experiments.DecodeRisksForm(values)
		e, err := s.svc.UpdateRisks(ctx, user, slug, form)
		return form, e, err
	}
}

// branchRows pads the formset with one blank row for adding a branch, or
// a control and a treatment row when nothing is saved yet.
func branchRows(branches []experiments.BranchForm) []experiments.BranchForm {
	rows := append([]experiments.BranchForm(nil), branches...)
	if len(rows) == 0 {
		return []experiments.BranchForm{{IsControl: true, Name: "Control"}, {Name: "Treatment"}}
	}
	return append(rows, experiments.BranchForm{})
}
