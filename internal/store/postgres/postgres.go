package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(role, ''), COALESCE(commission, 0), COALESCE(status, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.Commission, &u.Status)
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 32)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if strings.TrimSpace(user.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, phone, role, commission, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, user.Name, user.Email, user.Phone, user.Role, user.Commission, user.Status).Scan(&user.ID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if strings.TrimSpace(user.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, phone = $4, role = $5, commission = $6, status = $7
		WHERE id = $1
	`, user.ID, user.Name, user.Email, user.Phone, user.Role, user.Commission, user.Status)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE userid = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE orders SET sellerid = NULL WHERE sellerid = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return expectAffected(res)
	})
}

const serviceColumns = `id, name, COALESCE(costtype, ''), COALESCE(costfixo, 0), COALESCE(costpercentual, 0), COALESCE(price, 0), COALESCE(status, ''), COALESCE(description, ''), spread`

func scanService(row scanner) (domain.Service, error) {
	var svc domain.Service
	err := row.Scan(&svc.ID, &svc.Name, &svc.CostType, &svc.CostFixed, &svc.CostPercentage, &svc.Price, &svc.Status, &svc.Description, &svc.Spread)
	return svc, err
}

func (s *Store) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.Service, 0, 32)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *Store) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	svc, err := scanService(s.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &svc, nil
}

func (s *Store) CreateService(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	if strings.TrimSpace(svc.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO services (name, costtype, costfixo, costpercentual, price, status, description, spread)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, svc.Name, svc.CostType, svc.CostFixed, svc.CostPercentage, svc.Price, svc.Status, svc.Description, svc.Spread).Scan(&svc.ID)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	if strings.TrimSpace(svc.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE services
		SET name = $2, costtype = $3, costfixo = $4, costpercentual = $5, price = $6, status = $7, description = $8, spread = $9
		WHERE id = $1
	`, svc.ID, svc.Name, svc.CostType, svc.CostFixed, svc.CostPercentage, svc.Price, svc.Status, svc.Description, svc.Spread)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *Store) DeleteService(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE serviceid = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE orders SET serviceid = NULL WHERE serviceid = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return expectAffected(res)
	})
}

func (s *Store) ListAssignments(ctx context.Context) ([]domain.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.userid, a.serviceid, COALESCE(u.name, ''), COALESCE(sv.name, '')
		FROM assignments a
		LEFT JOIN users u ON u.id = a.userid
		LEFT JOIN services sv ON sv.id = a.serviceid
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]domain.Assignment, 0, 32)
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.ServiceID, &a.UserName, &a.ServiceName); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (s *Store) CreateAssignment(ctx context.Context, userID int64, serviceID int64) (*domain.Assignment, bool, error) {
	a := domain.Assignment{UserID: userID, ServiceID: serviceID}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO assignments (userid, serviceid)
		VALUES ($1,$2)
		ON CONFLICT (userid, serviceid) DO NOTHING
		RETURNING id
	`, userID, serviceID).Scan(&a.ID)
	created := true
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = false
		if err := s.db.QueryRowContext(ctx, `
			SELECT id FROM assignments WHERE userid = $1 AND serviceid = $2
		`, userID, serviceID).Scan(&a.ID); err != nil {
			return nil, false, err
		}
	case isForeignKeyViolation(err):
		return nil, false, store.ErrNotFound
	case err != nil:
		return nil, false, err
	}

	_ = s.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT name FROM users WHERE id = $1), ''), COALESCE((SELECT name FROM services WHERE id = $2), '')
	`, userID, serviceID).Scan(&a.UserName, &a.ServiceName)
	return &a, created, nil
}

func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

const orderSelect = `
	SELECT o.id, COALESCE(o.customer, ''), o.sellerid, o.serviceid, COALESCE(o.producttype, ''),
		COALESCE(o.quantity, 0), o.unit_price, o.quote, o.historical_quote, o.invoice_usd,
		o.declared_price, o.unit_price_used,
		COALESCE(o.price, 0), COALESCE(o.cost, 0), COALESCE(o.profit, 0), COALESCE(o.commissionvalue, 0),
		to_char(o.date, 'YYYY-MM-DD'), COALESCE(to_char(o.launch_date, 'YYYY-MM-DD'), ''),
		COALESCE(o.is_retroactive, false), COALESCE(o.status, 'open'), COALESCE(o.commissionpaid, false),
		COALESCE(u.name, ''), COALESCE(sv.name, '')
	FROM orders o
	LEFT JOIN users u ON u.id = o.sellerid
	LEFT JOIN services sv ON sv.id = o.serviceid
`

func scanOrder(row scanner) (domain.Order, error) {
	var (
		o         domain.Order
		sellerID  sql.NullInt64
		serviceID sql.NullInt64
		date      sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.Customer, &sellerID, &serviceID, &o.ProductType,
		&o.Quantity, &o.UnitPrice, &o.Quote, &o.HistoricalQuote, &o.InvoiceUSD,
		&o.DeclaredPrice, &o.UnitPriceUsed,
		&o.Price, &o.Cost, &o.Profit, &o.CommissionValue,
		&date, &o.LaunchDate,
		&o.IsRetroactive, &o.Status, &o.CommissionPaid,
		&o.SellerName, &o.ServiceName,
	)
	if err != nil {
		return o, err
	}
	if sellerID.Valid {
		o.SellerID = &sellerID.Int64
	}
	if serviceID.Valid {
		o.ServiceID = &serviceID.Int64
	}
	o.Date = date.String
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, orderSelect+` ORDER BY o.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 128)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func nullableDate(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.Customer) == "" || order.Date == "" {
		return nil, store.ErrInvalidInput
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusOpen
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (
			customer, sellerid, serviceid, producttype,
			quantity, unit_price, quote, historical_quote, invoice_usd,
			declared_price, unit_price_used,
			price, cost, profit, commissionvalue,
			date, launch_date, is_retroactive, status, commissionpaid
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16::date,$17::date,$18,$19,$20)
		RETURNING id
	`,
		order.Customer, nullableID(order.SellerID), nullableID(order.ServiceID), order.ProductType,
		order.Quantity, order.UnitPrice, order.Quote, order.HistoricalQuote, order.InvoiceUSD,
		order.DeclaredPrice, order.UnitPriceUsed,
		order.Price, order.Cost, order.Profit, order.CommissionValue,
		order.Date, nullableDate(order.LaunchDate), order.IsRetroactive, order.Status, order.CommissionPaid,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.Customer) == "" || order.Date == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET customer = $2, sellerid = $3, serviceid = $4, producttype = $5,
			quantity = $6, unit_price = $7, quote = $8, historical_quote = $9, invoice_usd = $10,
			declared_price = $11, unit_price_used = $12,
			price = $13, cost = $14, profit = $15, commissionvalue = $16,
			date = $17::date, launch_date = $18::date, is_retroactive = $19, status = $20, commissionpaid = $21
		WHERE id = $1
	`,
		order.ID, order.Customer, nullableID(order.SellerID), nullableID(order.ServiceID), order.ProductType,
		order.Quantity, order.UnitPrice, order.Quote, order.HistoricalQuote, order.InvoiceUSD,
		order.DeclaredPrice, order.UnitPriceUsed,
		order.Price, order.Cost, order.Profit, order.CommissionValue,
		order.Date, nullableDate(order.LaunchDate), order.IsRetroactive, order.Status, order.CommissionPaid,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, order.ID)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) UpdateOrderCommissionPaid(ctx context.Context, id int64, paid bool) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET commissionpaid = $2 WHERE id = $1`, id, paid)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) UpdateOrderFinancials(ctx context.Context, id int64, f domain.OrderFinancials) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET price = $2, cost = $3, profit = $4, commissionvalue = $5, quote = $6, unit_price_used = $7
		WHERE id = $1
	`, id, f.Price, f.Cost, f.Profit, f.CommissionValue, f.Quote, f.UnitPriceUsed)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) UpdateOrderDates(ctx context.Context, id int64, date string, launchDate string, isRetroactive bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET date = $2::date, launch_date = $3::date, is_retroactive = $4
		WHERE id = $1
	`, id, date, nullableDate(launchDate), isRetroactive)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) FindAccount(ctx context.Context, login string) (*domain.AuthAccount, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, store.ErrNotFound
	}

	var a domain.AuthAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, login, COALESCE(email, ''), password_hash, role, created_at
		FROM auth_accounts
		WHERE lower(login) = lower($1) OR lower(email) = lower($1)
		ORDER BY (lower(login) = lower($1)) DESC
		LIMIT 1
	`, login).Scan(&a.ID, &a.Login, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	a.Role = domain.NormalizeRole(a.Role)
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (s *Store) UpsertAccount(ctx context.Context, account domain.AuthAccount) (*domain.AuthAccount, error) {
	if strings.TrimSpace(account.Login) == "" {
		return nil, store.ErrInvalidInput
	}

	var hash any
	if account.PasswordHash != "" {
		hash = account.PasswordHash
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO auth_accounts (login, email, password_hash, role, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, now())
		ON CONFLICT (login) DO UPDATE
		SET email = EXCLUDED.email,
			password_hash = COALESCE($3, auth_accounts.password_hash),
			role = EXCLUDED.role
		RETURNING id, password_hash, created_at
	`, account.Login, account.Email, hash, account.Role).Scan(&account.ID, &account.PasswordHash, &account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isNotNullViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	return &account, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503"
}

func isNotNullViolation(err error) bool {
	return pgErrorCode(err) == "23502"
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
