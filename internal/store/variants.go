package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"experimenter/internal/experiments"
)

const variantColumns = "id, experiment_id, is_control, name, slug, description, ratio, value"

func scanVariant(scanner rowScanner) (experiments.Variant, error) {
	var (
		v         experiments.Variant
		isControl int
		value     sql.NullString
	)
	if err := scanner.Scan(&v.ID, &v.ExperimentID, &isControl, &v.Name, &v.Slug, &v.Description, &v.Ratio, &value); err != nil {
		return experiments.Variant{}, err
	}
	v.IsControl = isControl != 0
	if value.Valid && value.String != "" {
		v.Value = json.RawMessage(value.String)
	}
	return v, nil
}

// ReplaceVariants swaps the variant set of experimentID for variants.
func (s *Store) ReplaceVariants(ctx context.Context, experimentID int64, variants []experiments.Variant) ([]experiments.Variant, error) {
	var saved []experiments.Variant
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		saved, err = replaceVariants(ctx, tx, experimentID, variants)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("replace variants: %w", err)
	}
	return saved, nil
}

func replaceVariants(ctx context.Context, tx *sql.Tx, experimentID int64, variants []experiments.Variant) ([]experiments.Variant, error) {
	if _, err := tx.ExecContext(ctx, "DELETE FROM experiment_variants WHERE experiment_id = ?", experimentID); err != nil {
		return nil, err
	}
	saved := make([]experiments.Variant, 0, len(variants))
	for _, v := range variants {
		var value any
		if len(v.Value) > 0 {
			value = string(v.Value)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO experiment_variants (experiment_id, is_control, name, slug, description, ratio, value) VALUES (?, ?, ?, ?, ?, ?, ?)",
			experimentID, boolToInt(v.IsControl), v.Name, v.Slug, v.Description, v.Ratio, value,
		)
		if err != nil {
			return nil, err
		}
		if v.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
		v.ExperimentID = experimentID
		saved = append(saved, v)
	}
	return saved, nil
}
