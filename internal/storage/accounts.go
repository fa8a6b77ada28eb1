package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/common"
	"github.com/ledgerloom/ledgerloom/internal/model"
)

// parseStoredDecimal converts a TEXT amount column back into a
// decimal. Amounts are stored as strings so no precision is lost to
// floating point on the round trip.
func parseStoredDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("corrupt stored amount %q: %w", s, err)
	}
	return d, nil
}

// CreateAccount persists a new analytical account.
func (q queries) CreateAccount(ctx context.Context, account *model.AnalyticalAccount) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateString(account.Name, "account name"); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO analytical_accounts (name, code, parent_id, is_active)
		VALUES (?, ?, ?, ?)`,
		account.Name, account.Code, account.ParentID, account.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", mapError(err))
	}

	account.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get account ID: %w", err)
	}
	return nil
}

const accountColumns = `id, name, code, parent_id, is_active, created_at, updated_at`

func scanAccount(row *sql.Row) (*model.AnalyticalAccount, error) {
	var a model.AnalyticalAccount
	err := row.Scan(&a.ID, &a.Name, &a.Code, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

// GetAccount retrieves an analytical account by ID.
func (q queries) GetAccount(ctx context.Context, id int64) (*model.AnalyticalAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	account, err := scanAccount(q.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM analytical_accounts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("account %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// FindAccountByCode retrieves an active account by its exact code.
func (q queries) FindAccountByCode(ctx context.Context, code string) (*model.AnalyticalAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}

	account, err := scanAccount(q.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM analytical_accounts
		 WHERE code = ? AND is_active = 1 ORDER BY id LIMIT 1`, code))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("account code %q: %w", code, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find account by code: %w", err)
	}
	return account, nil
}

// FindAccountByName retrieves an active account by its exact name.
func (q queries) FindAccountByName(ctx context.Context, name string) (*model.AnalyticalAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	account, err := scanAccount(q.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM analytical_accounts
		 WHERE name = ? AND is_active = 1 ORDER BY id LIMIT 1`, name))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("account name %q: %w", name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find account by name: %w", err)
	}
	return account, nil
}

// CreateContact persists a new contact.
func (q queries) CreateContact(ctx context.Context, contact *model.Contact) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if contact == nil {
		return fmt.Errorf("%w: contact", ErrNilParameter)
	}
	if err := validateString(contact.Name, "contact name"); err != nil {
		return err
	}
	if contact.Type == "" {
		contact.Type = model.ContactCustomer
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO contacts (name, email, phone, contact_type, is_active)
		VALUES (?, ?, ?, ?, ?)`,
		contact.Name, contact.Email, contact.Phone, contact.Type, contact.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", mapError(err))
	}

	contact.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get contact ID: %w", err)
	}
	return nil
}

const contactColumns = `id, name, email, phone, contact_type, is_active, created_at, updated_at`

func scanContact(row *sql.Row) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Type, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// GetContact retrieves a contact by ID.
func (q queries) GetContact(ctx context.Context, id int64) (*model.Contact, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	contact, err := scanContact(q.q.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("contact %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return contact, nil
}

// FindOrCreateContact returns the active contact with the given name,
// creating it with the given type when none exists.
func (q queries) FindOrCreateContact(ctx context.Context, name string, contactType model.ContactType) (*model.Contact, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "contact name"); err != nil {
		return nil, err
	}

	contact, err := scanContact(q.q.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE name = ? AND is_active = 1 ORDER BY id LIMIT 1`, name))
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}

	contact = &model.Contact{Name: name, Type: contactType, IsActive: true}
	if err := q.CreateContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// CreateProduct persists a new product.
func (q queries) CreateProduct(ctx context.Context, product *model.Product) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("%w: product", ErrNilParameter)
	}
	if err := validateString(product.Name, "product name"); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO products (name, sku, category, default_unit_price, is_active)
		VALUES (?, ?, ?, ?, ?)`,
		product.Name, product.SKU, product.Category,
		product.DefaultUnitPrice.Round(2).String(), product.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", mapError(err))
	}

	product.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get product ID: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by ID.
func (q queries) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var p model.Product
	var price string
	err := q.q.QueryRowContext(ctx, `
		SELECT id, name, sku, category, default_unit_price, is_active, created_at, updated_at
		FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &price, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(mapError(err), common.ErrNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if p.DefaultUnitPrice, err = parseStoredDecimal(price); err != nil {
		return nil, err
	}
	return &p, nil
}
