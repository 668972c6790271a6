package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Simplici0/pricecalc/internal/pricing"
)

// ParameterSetRecord is a named, persisted pricing.ParameterSet.
type ParameterSetRecord struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsDefault   bool                 `json:"isDefault"`
	Params      pricing.ParameterSet `json:"params"`
	CreatedBy   *int64               `json:"createdBy,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

type ParameterSetStore struct {
	db *sql.DB
}

const parameterSetColumns = `
	id, name, description, is_default,
	purchase_currency, selling_currency,
	quality_control_percent, transport_insurance_cost, duty, exchange_rate,
	italy_accessory_costs, tools, retail_multiplier, optimal_margin,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParameterSet(row rowScanner) (ParameterSetRecord, error) {
	var (
		rec       ParameterSetRecord
		createdBy sql.NullInt64
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Description, &rec.IsDefault,
		&rec.Params.PurchaseCurrency, &rec.Params.SellingCurrency,
		&rec.Params.QualityControlPercent, &rec.Params.TransportInsuranceCost, &rec.Params.Duty, &rec.Params.ExchangeRate,
		&rec.Params.ItalyAccessoryCosts, &rec.Params.Tools, &rec.Params.RetailMultiplier, &rec.Params.OptimalMargin,
		&createdBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return ParameterSetRecord{}, err
	}
	if createdBy.Valid {
		rec.CreatedBy = &createdBy.Int64
	}
	// The stored multiplier is never trusted.
	rec.Params = rec.Params.WithDerived()
	return rec, nil
}

func (s *ParameterSetStore) List(ctx context.Context) ([]ParameterSetRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+parameterSetColumns+` FROM parameter_sets ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("query parameter sets: %w", err)
	}
	defer rows.Close()

	sets := []ParameterSetRecord{}
	for rows.Next() {
		rec, err := scanParameterSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parameter set: %w", err)
		}
		sets = append(sets, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parameter sets: %w", err)
	}
	return sets, nil
}

func (s *ParameterSetStore) Get(ctx context.Context, id int64) (ParameterSetRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+parameterSetColumns+` FROM parameter_sets WHERE id = ?`, id)
	return s.one(row)
}

func (s *ParameterSetStore) GetDefault(ctx context.Context) (ParameterSetRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+parameterSetColumns+` FROM parameter_sets WHERE is_default LIMIT 1`)
	return s.one(row)
}

// ActiveForUser returns the set the user selected, or the default set when the
// user never selected one.
func (s *ParameterSetStore) ActiveForUser(ctx context.Context, userID int64) (ParameterSetRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+parameterSetColumns+`
		FROM parameter_sets
		WHERE id = (SELECT active_parameter_set_id FROM users WHERE id = ?)
	`, userID)
	rec, err := s.one(row)
	if errors.Is(err, ErrRecordNotFound) {
		return s.GetDefault(ctx)
	}
	return rec, err
}

func (s *ParameterSetStore) one(row *sql.Row) (ParameterSetRecord, error) {
	rec, err := scanParameterSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ParameterSetRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return ParameterSetRecord{}, fmt.Errorf("scan parameter set: %w", err)
	}
	return rec, nil
}

// Create inserts rec. The first set ever created becomes the default.
func (s *ParameterSetStore) Create(ctx context.Context, rec ParameterSetRecord) (ParameterSetRecord, error) {
	params := rec.Params.WithDerived()
	now := time.Now().UTC()

	var createdBy sql.NullInt64
	if rec.CreatedBy != nil {
		createdBy = sql.NullInt64{Int64: *rec.CreatedBy, Valid: true}
	}

	var id int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var hasDefault bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM parameter_sets WHERE is_default)`).Scan(&hasDefault); err != nil {
			return fmt.Errorf("check default parameter set: %w", err)
		}
		if !hasDefault {
			rec.IsDefault = true
		}
		if rec.IsDefault && hasDefault {
			if _, err := tx.ExecContext(ctx, `UPDATE parameter_sets SET is_default = FALSE WHERE is_default`); err != nil {
				return fmt.Errorf("clear default parameter set: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO parameter_sets (
				name, description, is_default,
				purchase_currency, selling_currency,
				quality_control_percent, transport_insurance_cost, duty, exchange_rate,
				italy_accessory_costs, tools, retail_multiplier, optimal_margin, company_multiplier,
				created_by, created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.Name, rec.Description, rec.IsDefault,
			params.PurchaseCurrency, params.SellingCurrency,
			params.QualityControlPercent, params.TransportInsuranceCost, params.Duty, params.ExchangeRate,
			params.ItalyAccessoryCosts, params.Tools, params.RetailMultiplier, params.OptimalMargin, params.CompanyMultiplier,
			createdBy, now, now,
		)
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if err != nil {
			return fmt.Errorf("insert parameter set: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read parameter set id: %w", err)
		}
		return nil
	})
	if err != nil {
		return ParameterSetRecord{}, err
	}

	return s.Get(ctx, id)
}

// Update replaces the name, description and parameters of an existing set.
// rec.IsDefault moves the default flag to the set in the same transaction;
// false leaves the flag untouched since some set must stay the default.
func (s *ParameterSetStore) Update(ctx context.Context, rec ParameterSetRecord) (ParameterSetRecord, error) {
	params := rec.Params.WithDerived()
	now := time.Now().UTC()

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE parameter_sets SET
				name = ?, description = ?,
				purchase_currency = ?, selling_currency = ?,
				quality_control_percent = ?, transport_insurance_cost = ?, duty = ?, exchange_rate = ?,
				italy_accessory_costs = ?, tools = ?, retail_multiplier = ?, optimal_margin = ?, company_multiplier = ?,
				updated_at = ?
			WHERE id = ?
		`,
			rec.Name, rec.Description,
			params.PurchaseCurrency, params.SellingCurrency,
			params.QualityControlPercent, params.TransportInsuranceCost, params.Duty, params.ExchangeRate,
			params.ItalyAccessoryCosts, params.Tools, params.RetailMultiplier, params.OptimalMargin, params.CompanyMultiplier,
			now, rec.ID,
		)
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if err != nil {
			return fmt.Errorf("update parameter set: %w", err)
		}
		if err := expectOneRow(res); err != nil {
			return err
		}
		if rec.IsDefault {
			return moveDefault(ctx, tx, rec.ID, now)
		}
		return nil
	})
	if err != nil {
		return ParameterSetRecord{}, err
	}

	return s.Get(ctx, rec.ID)
}

// UpdateExchangeRate replaces only the exchange rate of a set.
func (s *ParameterSetStore) UpdateExchangeRate(ctx context.Context, id int64, rate float64) (ParameterSetRecord, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE parameter_sets SET exchange_rate = ?, updated_at = ? WHERE id = ?`, rate, time.Now().UTC(), id)
	if err != nil {
		return ParameterSetRecord{}, fmt.Errorf("update exchange rate: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return ParameterSetRecord{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes a non-default set and clears user selections pointing at it.
func (s *ParameterSetStore) Delete(ctx context.Context, id int64) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var isDefault bool
		err := tx.QueryRowContext(ctx, `SELECT is_default FROM parameter_sets WHERE id = ?`, id).Scan(&isDefault)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("load parameter set: %w", err)
		}
		if isDefault {
			return ErrDefaultParameterSet
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET active_parameter_set_id = NULL WHERE active_parameter_set_id = ?`, id); err != nil {
			return fmt.Errorf("clear user selections: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM parameter_sets WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete parameter set: %w", err)
		}
		return nil
	})
}

// SetDefault moves the default flag to id.
func (s *ParameterSetStore) SetDefault(ctx context.Context, id int64) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM parameter_sets WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check parameter set existence: %w", err)
		}
		if !exists {
			return ErrRecordNotFound
		}

		return moveDefault(ctx, tx, id, time.Now().UTC())
	})
}

func moveDefault(ctx context.Context, tx *sql.Tx, id int64, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE parameter_sets SET is_default = FALSE WHERE is_default AND id <> ?`, id); err != nil {
		return fmt.Errorf("clear default parameter set: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE parameter_sets SET is_default = TRUE, updated_at = ? WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("set default parameter set: %w", err)
	}
	return nil
}

// SetActiveForUser records the set a user calculates with.
func (s *ParameterSetStore) SetActiveForUser(ctx context.Context, userID, id int64) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM parameter_sets WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check parameter set existence: %w", err)
		}
		if !exists {
			return ErrRecordNotFound
		}

		res, err := tx.ExecContext(ctx, `UPDATE users SET active_parameter_set_id = ? WHERE id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("set active parameter set: %w", err)
		}
		return expectOneRow(res)
	})
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
