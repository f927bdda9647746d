// Package storetest provides an in-memory SQLite store for tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Schema mirrors the Postgres migrations in SQLite dialect.
const Schema = `
CREATE TABLE products (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    name                  TEXT      NOT NULL,
    selling_price         TEXT      NOT NULL,
    price_per_piece       TEXT,
    pieces_per_box        INTEGER   NOT NULL DEFAULT 1,
    stock_quantity        INTEGER   NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
    is_active             BOOLEAN   NOT NULL DEFAULT 1,
    requires_prescription BOOLEAN   NOT NULL DEFAULT 0,
    expiry_date           TIMESTAMP,
    created_at            TIMESTAMP NOT NULL,
    updated_at            TIMESTAMP NOT NULL
);
CREATE TABLE sales (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    reference        TEXT      NOT NULL UNIQUE,
    subtotal         TEXT      NOT NULL,
    tax_amount       TEXT      NOT NULL,
    discount_percent TEXT      NOT NULL,
    discount_amount  TEXT      NOT NULL,
    total            TEXT      NOT NULL,
    payment_method   TEXT      NOT NULL,
    amount_tendered  TEXT      NOT NULL,
    change_amount    TEXT      NOT NULL,
    cashier          TEXT      NOT NULL,
    created_at       TIMESTAMP NOT NULL
);
CREATE TABLE sale_items (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    sale_id      INTEGER NOT NULL REFERENCES sales(id),
    product_id   INTEGER NOT NULL REFERENCES products(id),
    product_name TEXT    NOT NULL,
    unit_price   TEXT    NOT NULL,
    quantity     INTEGER NOT NULL,
    per_piece    BOOLEAN NOT NULL DEFAULT 0,
    line_total   TEXT    NOT NULL
);
CREATE TABLE reward_codes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    code        TEXT      NOT NULL UNIQUE,
    source_type TEXT      NOT NULL,
    source_ref  TEXT      NOT NULL,
    points      INTEGER   NOT NULL DEFAULT 0,
    redeemed    BOOLEAN   NOT NULL DEFAULT 0,
    redeemed_by TEXT,
    redeemed_at TIMESTAMP,
    created_at  TIMESTAMP NOT NULL,
    expires_at  TIMESTAMP NOT NULL
);
CREATE TABLE loyalty_accounts (
    holder     TEXT PRIMARY KEY,
    points     INTEGER   NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE online_orders (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    reference     TEXT      NOT NULL UNIQUE,
    customer      TEXT      NOT NULL,
    status        TEXT      NOT NULL,
    total         TEXT      NOT NULL,
    cancel_reason TEXT,
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL,
    cancelled_at  TIMESTAMP
);
CREATE TABLE order_items (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id     INTEGER NOT NULL REFERENCES online_orders(id),
    product_id   INTEGER NOT NULL REFERENCES products(id),
    product_name TEXT    NOT NULL,
    unit_price   TEXT    NOT NULL,
    quantity     INTEGER NOT NULL
);
CREATE TABLE purchase_orders (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    reference   TEXT      NOT NULL UNIQUE,
    supplier    TEXT      NOT NULL,
    status      TEXT      NOT NULL,
    received_by TEXT,
    received_at TIMESTAMP,
    created_at  TIMESTAMP NOT NULL
);
CREATE TABLE purchase_order_items (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    purchase_order_id INTEGER NOT NULL REFERENCES purchase_orders(id),
    product_id        INTEGER NOT NULL REFERENCES products(id),
    quantity          INTEGER NOT NULL CHECK (quantity > 0)
);
CREATE TABLE activity_logs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    actor      TEXT      NOT NULL,
    action     TEXT      NOT NULL,
    entity     TEXT      NOT NULL,
    entity_id  INTEGER   NOT NULL,
    details    TEXT      NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE settings (
    setting_key   TEXT PRIMARY KEY,
    setting_value TEXT      NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);
CREATE TABLE processed_events (
    event_id     TEXT PRIMARY KEY,
    event_type   TEXT      NOT NULL,
    processed_at TIMESTAMP NOT NULL
);
`

// New opens a fresh in-memory database with the full schema. A single
// connection is used so every caller sees the same database; concurrent
// transactions queue for it.
func New(t *testing.T) *store.Store {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(Schema)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return store.NewStoreFromDB(db)
}

// Product inserts an active box-priced product with the given stock.
func Product(t *testing.T, s *store.Store, name, price string, stock int) *models.Product {
	t.Helper()

	p := &models.Product{
		Name:          name,
		SellingPrice:  decimal.RequireFromString(price),
		PiecesPerBox:  1,
		StockQuantity: stock,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

// Stock reads the current stock of a product.
func Stock(t *testing.T, s *store.Store, productID int64) int {
	t.Helper()

	p, err := s.GetProductByID(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}
