package postgres

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// Column names follow the tables created by the first release of the back
// office, so existing databases are upgraded in place.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT,
		role TEXT,
		commission NUMERIC(5,2) DEFAULT 0,
		status TEXT DEFAULT 'Ativo'
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		costType TEXT,
		costFixo NUMERIC(14,2) DEFAULT 0,
		costPercentual NUMERIC(7,4) DEFAULT 0,
		price NUMERIC(14,2) DEFAULT 0,
		status TEXT DEFAULT 'Ativo',
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		customer TEXT,
		sellerId INT REFERENCES users(id),
		serviceId INT REFERENCES services(id),
		price NUMERIC(14,2) DEFAULT 0,
		cost NUMERIC(14,2) DEFAULT 0,
		profit NUMERIC(14,2) DEFAULT 0,
		commissionValue NUMERIC(14,2) DEFAULT 0,
		date DATE DEFAULT CURRENT_DATE,
		status TEXT DEFAULT 'open',
		commissionPaid BOOLEAN DEFAULT false,
		productType TEXT
	)`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS quantity NUMERIC(18,6) DEFAULT 0`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS unit_price NUMERIC(18,6)`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS quote NUMERIC(18,6)`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS historical_quote NUMERIC(18,6)`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS invoice_usd NUMERIC(14,2)`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS launch_date DATE`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS is_retroactive BOOLEAN DEFAULT false`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS declared_price NUMERIC(14,2)`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS unit_price_used NUMERIC(18,6)`,
	`ALTER TABLE services ADD COLUMN IF NOT EXISTS spread NUMERIC(7,4)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id SERIAL PRIMARY KEY,
		userId INT REFERENCES users(id) ON DELETE CASCADE,
		serviceId INT REFERENCES services(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ DEFAULT now(),
		UNIQUE(userId, serviceId)
	)`,
	`CREATE TABLE IF NOT EXISTS auth_accounts (
		id SERIAL PRIMARY KEY,
		login TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL
	)`,
	`ALTER TABLE auth_accounts ADD COLUMN IF NOT EXISTS created_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
	`ALTER TABLE auth_accounts ADD COLUMN IF NOT EXISTS target TEXT`,
	`ALTER TABLE auth_accounts ALTER COLUMN target DROP NOT NULL`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		actor_username TEXT NOT NULL DEFAULT '',
		actor_role TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_date ON orders (date)`,
}

var (
	sampleCustomers = []string{"Ana Costa", "Pedro Santos"}
	sampleServices  = []string{"Consignado INSS", "Refinanciamento", "Consignado FGTS"}
	sampleUsers     = []string{"João Silva", "Maria Santos"}
)

// EnsureSchema creates or upgrades the tables, makes sure the master admin
// account exists with masterPassword and removes the demo rows shipped by
// early releases.
func (s *Store) EnsureSchema(ctx context.Context, masterPassword string) error {
	hadDeclaredPrice, err := s.columnExists(ctx, "orders", "declared_price")
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	if !hadDeclaredPrice {
		// Older rows priced from their stored total unless a unit price was
		// entered; keep that total as what was declared.
		if _, err := s.db.ExecContext(ctx, `
			UPDATE orders SET declared_price = price
			WHERE declared_price IS NULL AND (unit_price IS NULL OR unit_price <= 0) AND price > 0
		`); err != nil {
			return fmt.Errorf("backfill declared price: %w", err)
		}
	}

	if masterPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(masterPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash master password: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO auth_accounts (login, email, password_hash, role)
			VALUES ('admin', 'master@zenith.com', $1, 'admin')
			ON CONFLICT (login) DO UPDATE
			SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role
		`, string(hash)); err != nil {
			return fmt.Errorf("seed master admin: %w", err)
		}
	}

	s.purgeSampleData(ctx)
	return nil
}

func (s *Store) columnExists(ctx context.Context, table string, column string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		)
	`, table, column).Scan(&exists)
	return exists, err
}

func (s *Store) purgeSampleData(ctx context.Context) {
	steps := []struct {
		query string
		arg   []string
	}{
		{`DELETE FROM assignments WHERE serviceid IN (SELECT id FROM services WHERE name = ANY($1))`, sampleServices},
		{`DELETE FROM orders WHERE customer = ANY($1)`, sampleCustomers},
		{`UPDATE orders SET serviceid = NULL WHERE serviceid IN (SELECT id FROM services WHERE name = ANY($1))`, sampleServices},
		{`DELETE FROM services WHERE name = ANY($1)`, sampleServices},
		{`UPDATE orders SET sellerid = NULL WHERE sellerid IN (SELECT id FROM users WHERE name = ANY($1))`, sampleUsers},
		{`DELETE FROM users WHERE name = ANY($1)`, sampleUsers},
	}
	for _, step := range steps {
		if _, err := s.db.ExecContext(ctx, step.query, step.arg); err != nil {
			log.Printf("[postgres] WARN: purge sample data: %v", err)
			return
		}
	}
}
