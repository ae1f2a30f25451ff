package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DB is the read-only database access the sources need. *pgxpool.Pool
// satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// All returns the full set of Postgres-backed sources in sync order.
func All(db DB) []Source {
	return []Source{
		&userSource{db: db},
		&clientSource{db: db},
		&productSource{db: db},
		&accountSource{db: db},
		&invoiceSource{db: db},
	}
}

type userSource struct{ db DB }

func (s *userSource) Type() string { return TypeUsers }

func (s *userSource) FetchAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, email, role, updated_at FROM users`)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, name, email, role string
		var updated time.Time
		if err := rows.Scan(&id, &name, &email, &role, &updated); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		records = append(records, Record{
			EntityID: id,
			Text: fmt.Sprintf("User %s (%s) has role %s. Email: %s.",
				name, id, role, email),
			Metadata: map[string]any{"name": name, "role": role},
			Updated:  updated,
		})
	}
	return records, rows.Err()
}

type clientSource struct{ db DB }

func (s *clientSource) Type() string { return TypeClients }

func (s *clientSource) FetchAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, phone, address, balance, updated_at FROM clients`)
	if err != nil {
		return nil, fmt.Errorf("fetch clients: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, name, phone, address string
		var balance float64
		var updated time.Time
		if err := rows.Scan(&id, &name, &phone, &address, &balance, &updated); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		records = append(records, Record{
			EntityID: id,
			Text: fmt.Sprintf("Client %s, phone %s, address %s. Outstanding balance: %.2f.",
				name, phone, address, balance),
			Metadata: map[string]any{"name": name, "balance": balance},
			Updated:  updated,
		})
	}
	return records, rows.Err()
}

type productSource struct{ db DB }

func (s *productSource) Type() string { return TypeProducts }

func (s *productSource) FetchAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, sku, category, price, quantity, updated_at FROM products`)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, name, sku, category string
		var price float64
		var quantity int
		var updated time.Time
		if err := rows.Scan(&id, &name, &sku, &category, &price, &quantity, &updated); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		records = append(records, Record{
			EntityID: id,
			Text: fmt.Sprintf("Product %s (SKU %s) in category %s. Price: %.2f. In stock: %d units.",
				name, sku, category, price, quantity),
			Metadata: map[string]any{
				"name": name, "sku": sku, "category": category,
				"price": price, "quantity": quantity,
			},
			Updated: updated,
		})
	}
	return records, rows.Err()
}

type accountSource struct{ db DB }

func (s *accountSource) Type() string { return TypeAccounts }

func (s *accountSource) FetchAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, account_type, balance, updated_at FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, name, accountType string
		var balance float64
		var updated time.Time
		if err := rows.Scan(&id, &name, &accountType, &balance, &updated); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		records = append(records, Record{
			EntityID: id,
			Text: fmt.Sprintf("Account %s of type %s. Current balance: %.2f.",
				name, accountType, balance),
			Metadata: map[string]any{"name": name, "account_type": accountType, "balance": balance},
			Updated:  updated,
		})
	}
	return records, rows.Err()
}

type invoiceSource struct{ db DB }

func (s *invoiceSource) Type() string { return TypeInvoices }

func (s *invoiceSource) FetchAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT i.id, c.name, i.total, i.status, i.item_count, i.created_at, i.updated_at
		FROM invoices i
		JOIN clients c ON c.id = i.client_id`)
	if err != nil {
		return nil, fmt.Errorf("fetch invoices: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, clientName, status string
		var total float64
		var itemCount int
		var created, updated time.Time
		if err := rows.Scan(&id, &clientName, &total, &status, &itemCount, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		records = append(records, Record{
			EntityID: id,
			Text: fmt.Sprintf("Invoice %s for client %s, issued %s. Status: %s. %d items, total %.2f.",
				id, clientName, created.Format("2006-01-02"), status, itemCount, total),
			Metadata: map[string]any{
				"client": clientName, "status": status,
				"total": total, "issued": created.Format("2006-01-02"),
			},
			Updated: updated,
		})
	}
	return records, rows.Err()
}
