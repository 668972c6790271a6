package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Simplici0/pricecalc/internal/auth"
	"github.com/Simplici0/pricecalc/internal/pricing"
	"github.com/Simplici0/pricecalc/internal/store"
)

const defaultParameterSetName = "Default"

// DefaultParameterSet is the factor set a fresh installation starts with.
func DefaultParameterSet() pricing.ParameterSet {
	return pricing.ParameterSet{
		PurchaseCurrency:       "USD",
		SellingCurrency:        "EUR",
		QualityControlPercent:  5,
		TransportInsuranceCost: 2.3,
		Duty:                   8,
		ExchangeRate:           1.07,
		ItalyAccessoryCosts:    1,
		Tools:                  1,
		RetailMultiplier:       2.48,
		OptimalMargin:          25,
	}.WithDerived()
}

// Config contains the values required by startup seed.
type Config struct {
	AdminUsername string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	adminID, err := seedAdmin(ctx, tx, cfg.AdminUsername, cfg.AdminPassword, &stats)
	if err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDefaultParameterSet(ctx, tx, adminID, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

// seedAdmin creates the local admin once. The returned id is zero when no
// admin is configured.
func seedAdmin(ctx context.Context, tx *sql.Tx, username, password string, stats *Stats) (int64, error) {
	if username == "" || password == "" {
		return 0, nil
	}

	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE provider = ? AND username = ?`,
		store.ProviderLocal, username,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check admin user existence: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("hash admin password: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (provider, username, display_name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, store.ProviderLocal, username, "Administrator", hash, store.RoleAdmin, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++

	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read admin user id: %w", err)
	}
	return id, nil
}

// ensureDefaultParameterSet only runs against an empty table so that an
// admin who renamed or replaced the default set keeps their choice.
func ensureDefaultParameterSet(ctx context.Context, tx *sql.Tx, adminID int64, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM parameter_sets LIMIT 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check parameter set existence: %w", err)
	}
	if exists {
		return nil
	}

	var createdBy sql.NullInt64
	if adminID != 0 {
		createdBy = sql.NullInt64{Int64: adminID, Valid: true}
	}

	p := DefaultParameterSet()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO parameter_sets (
			name, description, is_default,
			purchase_currency, selling_currency,
			quality_control_percent, transport_insurance_cost, duty, exchange_rate,
			italy_accessory_costs, tools, retail_multiplier, optimal_margin, company_multiplier,
			created_by, created_at, updated_at
		)
		VALUES (?, ?, TRUE, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		defaultParameterSetName, "Factory defaults",
		p.PurchaseCurrency, p.SellingCurrency,
		p.QualityControlPercent, p.TransportInsuranceCost, p.Duty, p.ExchangeRate,
		p.ItalyAccessoryCosts, p.Tools, p.RetailMultiplier, p.OptimalMargin, p.CompanyMultiplier,
		createdBy, now, now,
	); err != nil {
		return fmt.Errorf("insert default parameter set: %w", err)
	}
	stats.Inserts++
	return nil
}
