// Package source projects the store's business records into embeddable text.
// Sources read the relational store; they never mutate it. The CRUD layer that
// owns these tables lives outside this service.
package source

import (
	"context"
	"time"
)

// Known entity types, in default sync order.
const (
	TypeUsers    = "users"
	TypeClients  = "clients"
	TypeProducts = "products"
	TypeAccounts = "accounts"
	TypeInvoices = "invoices"
)

// Record is one domain record rendered for embedding.
type Record struct {
	EntityID string
	Text     string
	Metadata map[string]any
	Updated  time.Time
}

// Source enumerates all live records of one entity type.
type Source interface {
	Type() string
	FetchAll(ctx context.Context) ([]Record, error)
}
