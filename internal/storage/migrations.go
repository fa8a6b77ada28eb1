package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the
// application expects.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS contacts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					email TEXT NOT NULL DEFAULT '',
					phone TEXT NOT NULL DEFAULT '',
					contact_type TEXT NOT NULL DEFAULT 'customer',
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS products (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					sku TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT '',
					default_unit_price TEXT NOT NULL DEFAULT '0.00',
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS analytical_accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					code TEXT NOT NULL DEFAULT '',
					parent_id INTEGER REFERENCES analytical_accounts(id) ON DELETE SET NULL,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS budget_periods (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					start_date DATETIME NOT NULL,
					end_date DATETIME NOT NULL,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					CHECK (end_date >= start_date)
				)`,

				`CREATE TABLE IF NOT EXISTS budgets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					analytic_account_id INTEGER NOT NULL REFERENCES analytical_accounts(id),
					period_id INTEGER NOT NULL REFERENCES budget_periods(id),
					kind TEXT NOT NULL DEFAULT 'expense',
					amount TEXT NOT NULL DEFAULT '0.00',
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (analytic_account_id, period_id, kind)
				)`,

				`CREATE TABLE IF NOT EXISTS budget_revisions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					budget_id INTEGER NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
					revised_amount TEXT NOT NULL,
					revised_by TEXT NOT NULL DEFAULT '',
					note TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS documents (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					number TEXT NOT NULL UNIQUE,
					doc_type TEXT NOT NULL,
					contact_id INTEGER NOT NULL REFERENCES contacts(id),
					issue_date DATETIME NOT NULL,
					due_date DATETIME,
					status TEXT NOT NULL DEFAULT 'draft',
					posted_at DATETIME,
					total_amount TEXT NOT NULL DEFAULT '0.00',
					paid_amount TEXT NOT NULL DEFAULT '0.00',
					payment_status TEXT NOT NULL DEFAULT 'na',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_documents_contact ON documents(contact_id)`,
				`CREATE INDEX idx_documents_issue_date ON documents(issue_date)`,
				`CREATE INDEX idx_documents_status ON documents(status)`,

				`CREATE TABLE IF NOT EXISTS document_lines (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
					product_id INTEGER REFERENCES products(id) ON DELETE SET NULL,
					description TEXT NOT NULL DEFAULT '',
					quantity TEXT NOT NULL DEFAULT '1.00',
					unit_price TEXT NOT NULL DEFAULT '0.00',
					line_total TEXT NOT NULL DEFAULT '0.00',
					analytic_account_id INTEGER REFERENCES analytical_accounts(id),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_lines_document ON document_lines(document_id)`,
				`CREATE INDEX idx_lines_account ON document_lines(analytic_account_id)`,

				`CREATE TABLE IF NOT EXISTS payments (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					document_id INTEGER NOT NULL REFERENCES documents(id),
					payment_date DATETIME NOT NULL,
					method TEXT NOT NULL DEFAULT 'bank',
					amount TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'posted',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_payments_document ON payments(document_id)`,
				`CREATE INDEX idx_payments_date ON payments(payment_date)`,

				`CREATE TABLE IF NOT EXISTS auto_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					is_active INTEGER NOT NULL DEFAULT 1,
					priority INTEGER NOT NULL DEFAULT 10,
					transaction_type TEXT NOT NULL,
					match_contact_id INTEGER REFERENCES contacts(id) ON DELETE SET NULL,
					match_product_id INTEGER REFERENCES products(id) ON DELETE SET NULL,
					match_product_category TEXT NOT NULL DEFAULT '',
					assign_account_id INTEGER NOT NULL REFERENCES analytical_accounts(id),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_auto_rules_type ON auto_rules(transaction_type, priority, id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Index due documents for payment health queries",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_due
				ON documents(due_date) WHERE due_date IS NOT NULL`)
			return err
		},
	},
}

// Migrate brings the schema up to ExpectedSchemaVersion. Each pending
// migration runs in its own transaction and bumps PRAGMA user_version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version, "description", m.Description)
		current = m.Version
	}

	if current < ExpectedSchemaVersion {
		return fmt.Errorf("schema version %d below expected %d", current, ExpectedSchemaVersion)
	}
	return nil
}
