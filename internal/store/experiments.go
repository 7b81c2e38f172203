package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"experimenter/internal/experiments"
	"experimenter/internal/services"
)

// experimentWritable lists the columns written by inserts and updates, in
// the order produced by experimentArgs.
var experimentWritable = []string{
	"owner_id", "project_id", "type", "status", "archived", "name", "slug",
	"short_description", "related_work", "data_science_bugzilla_url", "feature_bugzilla_url",
	"proposed_start_date", "proposed_enrollment", "proposed_duration",
	"addon_experiment_id", "addon_testing_url", "addon_release_url",
	"pref_key", "pref_type", "pref_branch",
	"population_percent", "firefox_version", "firefox_channel", "client_matching",
	"objectives", "analysis_owner", "analysis",
	"risk_partner_related", "risk_brand", "risk_fast_shipped", "risk_confidential", "risk_release_population",
	"risk_technical", "risk_technical_description", "risks", "testing", "test_builds", "qa_status",
	"reviews", "bugzilla_id",
}

// editSkipped lists the columns an edit never rewrites.
var editSkipped = map[string]struct{}{
	"status":      {},
	"bugzilla_id": {},
}

var experimentSelect = func() string {
	cols := make([]string, 0, len(experimentWritable)+6)
	cols = append(cols, "e.id")
	for _, col := range experimentWritable {
		cols = append(cols, "e."+col)
	}
	cols = append(cols,
		"e.created_at", "e.updated_at", "u.email",
		"COALESCE(p.slug, '')", "COALESCE(p.name, '')",
		"(SELECT MAX(c.changed_on) FROM experiment_changelog c WHERE c.experiment_id = e.id) AS latest_change",
	)
	return "SELECT " + strings.Join(cols, ", ") + `
FROM experiments e
JOIN users u ON u.id = e.owner_id
LEFT JOIN projects p ON p.id = e.project_id`
}()

func experimentArgs(e *experiments.Experiment) ([]any, error) {
	reviews, err := json.Marshal(e.Reviews)
	if err != nil {
		return nil, fmt.Errorf("encode reviews: %w", err)
	}
	return []any{
		e.OwnerID, nullableInt64(e.ProjectID), string(e.Type), string(e.Status), boolToInt(e.Archived), e.Name, e.Slug,
		e.ShortDescription, e.RelatedWork, e.DataScienceBugzillaURL, e.FeatureBugzillaURL,
		nullableDate(e.ProposedStartDate), e.ProposedEnrollment, e.ProposedDuration,
		e.AddonExperimentID, e.AddonTestingURL, e.AddonReleaseURL,
		e.PrefKey, e.PrefType, e.PrefBranch,
		e.PopulationPercent, e.FirefoxVersion, e.FirefoxChannel, e.ClientMatching,
		e.Objectives, e.AnalysisOwner, e.Analysis,
		nullableBool(e.RiskPartnerRelated), nullableBool(e.RiskBrand), nullableBool(e.RiskFastShipped),
		nullableBool(e.RiskConfidential), nullableBool(e.RiskReleasePopulation),
		boolToInt(e.RiskTechnical), e.RiskTechnicalDescription, e.Risks, e.Testing, e.TestBuilds, e.QAStatus,
		string(reviews), nullableString(e.BugzillaID),
	}, nil
}

func scanExperiment(scanner rowScanner) (*experiments.Experiment, error) {
	var (
		e                                                   experiments.Experiment
		projectID                                           sql.NullInt64
		typ, status                                         string
		archived, riskTechnical                             int
		startDate, bugzillaID, latestChange                 sql.NullString
		riskPartner, riskBrand, riskFast, riskConf, riskRel sql.NullInt64
		reviews, createdRaw, updatedRaw                     string
	)
	if err := scanner.Scan(
		&e.ID,
		&e.OwnerID, &projectID, &typ, &status, &archived, &e.Name, &e.Slug,
		&e.ShortDescription, &e.RelatedWork, &e.DataScienceBugzillaURL, &e.FeatureBugzillaURL,
		&startDate, &e.ProposedEnrollment, &e.ProposedDuration,
		&e.AddonExperimentID, &e.AddonTestingURL, &e.AddonReleaseURL,
		&e.PrefKey, &e.PrefType, &e.PrefBranch,
		&e.PopulationPercent, &e.FirefoxVersion, &e.FirefoxChannel, &e.ClientMatching,
		&e.Objectives, &e.AnalysisOwner, &e.Analysis,
		&riskPartner, &riskBrand, &riskFast, &riskConf, &riskRel,
		&riskTechnical, &e.RiskTechnicalDescription, &e.Risks, &e.Testing, &e.TestBuilds, &e.QAStatus,
		&reviews, &bugzillaID,
		&createdRaw, &updatedRaw, &e.OwnerEmail,
		&e.ProjectSlug, &e.ProjectName,
		&latestChange,
	); err != nil {
		return nil, err
	}

	e.ProjectID = projectID.Int64
	e.Type = experiments.Type(typ)
	e.Status = experiments.Status(status)
	e.Archived = archived != 0
	e.RiskTechnical = riskTechnical != 0
	e.RiskPartnerRelated = boolFromNull(riskPartner)
	e.RiskBrand = boolFromNull(riskBrand)
	e.RiskFastShipped = boolFromNull(riskFast)
	e.RiskConfidential = boolFromNull(riskConf)
	e.RiskReleasePopulation = boolFromNull(riskRel)
	e.BugzillaID = bugzillaID.String
	if startDate.Valid {
		if parsed, err := time.Parse(experiments.DateLayout, startDate.String); err == nil {
			e.ProposedStartDate = parsed
		}
	}
	if reviews != "" {
		if err := json.Unmarshal([]byte(reviews), &e.Reviews); err != nil {
			return nil, fmt.Errorf("decode reviews for %s: %w", e.Slug, err)
		}
	}
	e.CreatedAt = parseTime(createdRaw)
	e.UpdatedAt = parseTime(updatedRaw)
	return &e, nil
}

func experimentConflict(op string, err error) error {
	fields := experiments.FieldErrors{}
	switch {
	case strings.Contains(err.Error(), "experiments.slug"), strings.Contains(err.Error(), "experiments.name"):
		fields.Add("name", "Experiment with this Name already exists.")
	default:
		fields.Add("__all__", "Experiment conflicts with an existing record.")
	}
	return fmt.Errorf("%s: %w", op, fields)
}

// CreateExperiment inserts e with its creation changelog entry in one
// transaction. e.ID, timestamps, and e.Changes are populated on success.
func (s *Store) CreateExperiment(ctx context.Context, e *experiments.Experiment, createdBy experiments.User, message string) error {
	if e.Status == "" {
		e.Status = experiments.StatusDraft
	}
	if e.OwnerID == 0 {
		e.OwnerID = createdBy.ID
		e.OwnerEmail = createdBy.Email
	}
	args, err := experimentArgs(e)
	if err != nil {
		return err
	}
	now := s.now()
	args = append(args, formatTime(now), formatTime(now))

	var change experiments.ChangeLog
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO experiments ("+strings.Join(experimentWritable, ", ")+", created_at, updated_at) VALUES ("+makePlaceholders(len(args))+")",
			args...,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		e.ID = id
		change, err = insertChange(ctx, tx, experiments.ChangeLog{
			ExperimentID: id,
			ChangedOn:    now,
			ChangedByID:  createdBy.ID,
			NewStatus:    e.Status,
			Message:      message,
		})
		return err
	})
	if isUniqueViolation(err) {
		e.ID = 0
		return experimentConflict("create experiment", err)
	}
	if err != nil {
		e.ID = 0
		return fmt.Errorf("create experiment: %w", err)
	}
	change.ChangedByEmail = createdBy.Email
	e.CreatedAt, e.UpdatedAt = now, now
	e.Changes = append(e.Changes, change)
	return nil
}

// SaveExperiment writes the editable fields of e and appends an edit entry
// to the changelog. Status and the Bugzilla id are owned by
// TransitionExperiment and SetBugzillaID; e is refreshed with their stored values.
func (s *Store) SaveExperiment(ctx context.Context, e *experiments.Experiment, changedBy experiments.User, message string) error {
	return s.saveExperiment(ctx, e, nil, changedBy, message)
}

// SaveExperimentVariants writes e, replaces its variants, and appends an
// edit entry, all in one transaction.
func (s *Store) SaveExperimentVariants(ctx context.Context, e *experiments.Experiment, variants []experiments.Variant, changedBy experiments.User, message string) error {
	if variants == nil {
		variants = []experiments.Variant{}
	}
	return s.saveExperiment(ctx, e, variants, changedBy, message)
}

func (s *Store) saveExperiment(ctx context.Context, e *experiments.Experiment, variants []experiments.Variant, changedBy experiments.User, message string) error {
	if e.ID == 0 {
		return services.Wrap(services.ErrValidation, "store", "save experiment", "experiment has not been created", nil)
	}
	args, err := experimentArgs(e)
	if err != nil {
		return err
	}
	now := s.now()
	sets := make([]string, 0, len(experimentWritable)+1)
	setArgs := make([]any, 0, len(args)+2)
	for i, col := range experimentWritable {
		if _, skip := editSkipped[col]; skip {
			continue
		}
		sets = append(sets, col+" = ?")
		setArgs = append(setArgs, args[i])
	}
	sets = append(sets, "updated_at = ?")
	setArgs = append(setArgs, formatTime(now), e.ID)

	var (
		change     experiments.ChangeLog
		saved      []experiments.Variant
		status     string
		bugzillaID sql.NullString
	)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE experiments SET "+strings.Join(sets, ", ")+" WHERE id = ?", setArgs...)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return notFound("experiment", e.Slug)
		}
		if err := tx.QueryRowContext(ctx, "SELECT status, bugzilla_id FROM experiments WHERE id = ?", e.ID).Scan(&status, &bugzillaID); err != nil {
			return err
		}
		if variants != nil {
			if saved, err = replaceVariants(ctx, tx, e.ID, variants); err != nil {
				return err
			}
		}
		change, err = insertChange(ctx, tx, experiments.ChangeLog{
			ExperimentID: e.ID,
			ChangedOn:    now,
			ChangedByID:  changedBy.ID,
			OldStatus:    experiments.Status(status),
			NewStatus:    experiments.Status(status),
			Message:      message,
		})
		return err
	})
	if isUniqueViolation(err) {
		return experimentConflict("save experiment", err)
	}
	if err != nil {
		return fmt.Errorf("save experiment %s: %w", e.Slug, err)
	}
	if variants != nil {
		e.Variants = saved
	}
	change.ChangedByEmail = changedBy.Email
	e.Status = experiments.Status(status)
	e.BugzillaID = bugzillaID.String
	e.UpdatedAt = now
	e.Changes = append(e.Changes, change)
	return nil
}

// TransitionExperiment moves e to status to, enforcing the state machine
// and completeness gates, and appends the status change to the changelog.
// The update is guarded on the current status so concurrent transitions
// cannot both apply.
func (s *Store) TransitionExperiment(ctx context.Context, e *experiments.Experiment, to experiments.Status, changedBy experiments.User, message string) error {
	from := e.Status
	next := *e
	if err := experiments.Transition(&next, to); err != nil {
		return err
	}
	now := s.now()

	var change experiments.ChangeLog
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE experiments SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
			string(to), formatTime(now), e.ID, string(from),
		)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return services.Wrap(services.ErrInvalidTransition, "store", "transition experiment",
				fmt.Sprintf("%s is no longer %s", e.Slug, from), nil)
		}
		change, err = insertChange(ctx, tx, experiments.ChangeLog{
			ExperimentID: e.ID,
			ChangedOn:    now,
			ChangedByID:  changedBy.ID,
			OldStatus:    from,
			NewStatus:    to,
			Message:      message,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("transition experiment %s: %w", e.Slug, err)
	}
	change.ChangedByEmail = changedBy.Email
	e.Status = to
	e.UpdatedAt = now
	e.Changes = append(e.Changes, change)
	return nil
}

// SetBugzillaID records the bug filed for experiment id.
func (s *Store) SetBugzillaID(ctx context.Context, id int64, bugzillaID string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE experiments SET bugzilla_id = ?, updated_at = ? WHERE id = ?",
		nullableString(bugzillaID), formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("set bugzilla id: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return notFound("experiment", id)
	}
	return nil
}

// GetExperimentBySlug loads an experiment with its variants and changelog.
func (s *Store) GetExperimentBySlug(ctx context.Context, slug string) (*experiments.Experiment, error) {
	return s.getExperiment(ctx, "e.slug = ?", slug)
}

// GetExperimentByID loads an experiment with its variants and changelog.
func (s *Store) GetExperimentByID(ctx context.Context, id int64) (*experiments.Experiment, error) {
	return s.getExperiment(ctx, "e.id = ?", id)
}

func (s *Store) getExperiment(ctx context.Context, where string, arg any) (*experiments.Experiment, error) {
	ctx = ensureContext(ctx)
	e, err := scanExperiment(s.db.QueryRowContext(ctx, experimentSelect+" WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("experiment", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("get experiment: %w", err)
	}
	if err := s.loadRelations(ctx, []*experiments.Experiment{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListExperiments returns experiments matching filter in the given order,
// with variants and changelog loaded.
func (s *Store) ListExperiments(ctx context.Context, filter experiments.Filter, ordering experiments.Ordering) ([]*experiments.Experiment, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if !filter.Archived {
		clauses = append(clauses, "e.archived = 0")
	}
	if filter.ProjectID != 0 {
		clauses = append(clauses, "e.project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.ProjectSlug != "" {
		clauses = append(clauses, "p.slug = ?")
		args = append(args, filter.ProjectSlug)
	}
	if filter.OwnerID != 0 {
		clauses = append(clauses, "e.owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "e.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.FirefoxVersion != "" {
		clauses = append(clauses, "e.firefox_version = ?")
		args = append(args, filter.FirefoxVersion)
	}
	if filter.FirefoxChannel != "" {
		clauses = append(clauses, "e.firefox_channel = ?")
		args = append(args, filter.FirefoxChannel)
	}
	if filter.Type != "" {
		clauses = append(clauses, "e.type = ?")
		args = append(args, string(filter.Type))
	}

	query := experimentSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY " + orderClause(ordering)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	var list []*experiments.Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.loadRelations(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func orderClause(ordering experiments.Ordering) string {
	switch ordering {
	case experiments.OrderLatestChangeAsc:
		return "latest_change ASC, e.id ASC"
	case experiments.OrderFirefoxVersionAsc:
		return "CAST(e.firefox_version AS REAL) ASC, e.id ASC"
	case experiments.OrderFirefoxVersionDesc:
		return "CAST(e.firefox_version AS REAL) DESC, e.id DESC"
	case experiments.OrderFirefoxChannelAsc:
		return "e.firefox_channel ASC, e.id ASC"
	case experiments.OrderFirefoxChannelDesc:
		return "e.firefox_channel DESC, e.id DESC"
	default:
		return "latest_change DESC, e.id DESC"
	}
}

// loadRelations attaches variants and changelog entries to list in two queries.
func (s *Store) loadRelations(ctx context.Context, list []*experiments.Experiment) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[int64]*experiments.Experiment, len(list))
	ids := make([]int64, 0, len(list))
	for _, e := range list {
		byID[e.ID] = e
		ids = append(ids, e.ID)
		e.Variants = nil
		e.Changes = nil
	}
	in := makePlaceholders(len(ids))

	variants, err := s.db.QueryContext(ctx,
		"SELECT "+variantColumns+" FROM experiment_variants WHERE experiment_id IN ("+in+") ORDER BY experiment_id, is_control DESC, id",
		int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}
	for variants.Next() {
		v, err := scanVariant(variants)
		if err != nil {
			variants.Close()
			return fmt.Errorf("scan variant: %w", err)
		}
		byID[v.ExperimentID].Variants = append(byID[v.ExperimentID].Variants, v)
	}
	if err := variants.Err(); err != nil {
		variants.Close()
		return err
	}
	variants.Close()

	changes, err := s.db.QueryContext(ctx,
		"SELECT "+changeColumns+" FROM experiment_changelog c JOIN users u ON u.id = c.changed_by_id WHERE c.experiment_id IN ("+in+") ORDER BY c.experiment_id, c.changed_on, c.id",
		int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("load changelog: %w", err)
	}
	defer changes.Close()
	for changes.Next() {
		c, err := scanChange(changes)
		if err != nil {
			return fmt.Errorf("scan change: %w", err)
		}
		byID[c.ExperimentID].Changes = append(byID[c.ExperimentID].Changes, c)
	}
	return changes.Err()
}
