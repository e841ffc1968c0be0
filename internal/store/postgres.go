package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fieldcrm/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

const customerCols = `id, name, COALESCE(email,'') AS email, COALESCE(phone,'') AS phone, COALESCE(company,'') AS company, lat, lng, stage, created_by, created_at`
const interactionCols = `id, customer_id, user_id, COALESCE(type,'') AS type, COALESCE(note,'') AS note, timestamp`
const locationCols = `id, user_id, latitude, longitude, timestamp`

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded schema files in lexical order. Every file is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil { return err }
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil { return err }
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := p.db.GetContext(ctx, &u, `SELECT id, name, email, COALESCE(role,'sales_rep') AS role FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) { return u, ErrNotFound }
	return u, err
}

func (p *Postgres) ListCustomers(ctx context.Context, sc Scope) ([]model.Customer, error) {
	out := []model.Customer{}
	var err error
	if sc.All {
		err = p.db.SelectContext(ctx, &out, `SELECT `+customerCols+` FROM customers ORDER BY id`)
	} else {
		err = p.db.SelectContext(ctx, &out, `SELECT `+customerCols+` FROM customers WHERE created_by=$1 ORDER BY id`, sc.OwnerID)
	}
	return out, err
}

func (p *Postgres) GetCustomer(ctx context.Context, id int64) (model.Customer, error) {
	var c model.Customer
	err := p.db.GetContext(ctx, &c, `SELECT `+customerCols+` FROM customers WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) { return c, ErrNotFound }
	return c, err
}

func (p *Postgres) GetCustomersByIDs(ctx context.Context, ids []int64) ([]model.Customer, error) {
	out := []model.Customer{}
	if len(ids) == 0 { return out, nil }
	err := p.db.SelectContext(ctx, &out, `SELECT `+customerCols+` FROM customers WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	return out, err
}

func (p *Postgres) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	if c.Stage == "" { c.Stage = model.StageNew }
	if c.CreatedAt.IsZero() { c.CreatedAt = time.Now().UTC() }
	stmt, err := p.db.PrepareNamedContext(ctx, `INSERT INTO customers (name, email, phone, company, lat, lng, stage, created_by, created_at)
        VALUES (:name, NULLIF(:email,''), NULLIF(:phone,''), NULLIF(:company,''), :lat, :lng, :stage, :created_by, :created_at)
        RETURNING `+customerCols)
	if err != nil { return model.Customer{}, err }
	defer func() { _ = stmt.Close() }()
	var out model.Customer
	if err := stmt.QueryRowxContext(ctx, c).StructScan(&out); err != nil { return model.Customer{}, err }
	return out, nil
}

func (p *Postgres) UpdateCustomer(ctx context.Context, id int64, patch model.CustomerPatch) (model.Customer, error) {
	var out model.Customer
	err := p.db.QueryRowxContext(ctx, `UPDATE customers SET
        name=COALESCE($2,name), email=COALESCE($3,email), phone=COALESCE($4,phone), company=COALESCE($5,company),
        lat=CASE WHEN $6::boolean THEN $7::double precision ELSE lat END,
        lng=CASE WHEN $8::boolean THEN $9::double precision ELSE lng END, stage=COALESCE($10,stage)
        WHERE id=$1 RETURNING `+customerCols,
		id, patch.Name, patch.Email, patch.Phone, patch.Company,
		patch.Lat.Set, patch.Lat.Value, patch.Lng.Set, patch.Lng.Value, patch.Stage).StructScan(&out)
	if errors.Is(err, sql.ErrNoRows) { return out, ErrNotFound }
	return out, err
}

func (p *Postgres) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil { return err }
	n, err := res.RowsAffected()
	if err != nil { return err }
	if n == 0 { return ErrNotFound }
	return nil
}

func (p *Postgres) ListInteractions(ctx context.Context, sc Scope, customerID int64) ([]model.Interaction, error) {
	q, args := interactionQuery(sc, customerID)
	out := []model.Interaction{}
	err := p.db.SelectContext(ctx, &out, q, args...)
	return out, err
}

// interactionQuery narrows by owner unless the scope is All, then by customer when set.
func interactionQuery(sc Scope, customerID int64) (string, []any) {
	var where []string
	var args []any
	if !sc.All {
		args = append(args, sc.OwnerID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if customerID != 0 {
		args = append(args, customerID)
		where = append(where, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	q := `SELECT ` + interactionCols + ` FROM interactions`
	if len(where) > 0 { q += ` WHERE ` + strings.Join(where, " AND ") }
	return q + ` ORDER BY id`, args
}

func (p *Postgres) CreateInteraction(ctx context.Context, in model.Interaction) (model.Interaction, error) {
	if in.Timestamp.IsZero() { in.Timestamp = time.Now().UTC() }
	var out model.Interaction
	err := p.db.QueryRowxContext(ctx, `INSERT INTO interactions (customer_id, user_id, type, note, timestamp)
        SELECT $1::int, $2::int, $3::varchar, $4::text, $5::timestamp WHERE EXISTS (SELECT 1 FROM customers WHERE id=$1::int)
        RETURNING `+interactionCols, in.CustomerID, in.UserID, in.Type, in.Note, in.Timestamp).StructScan(&out)
	if errors.Is(err, sql.ErrNoRows) { return out, ErrNotFound }
	return out, err
}

func (p *Postgres) AppendLocation(ctx context.Context, loc model.Location) (model.Location, error) {
	if loc.Timestamp.IsZero() { loc.Timestamp = time.Now().UTC() }
	var out model.Location
	err := p.db.QueryRowxContext(ctx, `INSERT INTO locations (user_id, latitude, longitude, timestamp) VALUES ($1,$2,$3,$4) RETURNING `+locationCols,
		loc.UserID, loc.Latitude, loc.Longitude, loc.Timestamp).StructScan(&out)
	return out, err
}

func (p *Postgres) LatestLocation(ctx context.Context, userID int64) (model.Location, error) {
	var l model.Location
	err := p.db.GetContext(ctx, &l, `SELECT `+locationCols+` FROM locations WHERE user_id=$1 ORDER BY timestamp DESC, id DESC LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) { return l, ErrNotFound }
	return l, err
}

func (p *Postgres) LatestLocations(ctx context.Context, sc Scope) ([]model.UserLocation, error) {
	q := `SELECT DISTINCT ON (l.user_id) l.user_id, u.name, l.latitude, l.longitude, l.timestamp
        FROM locations l JOIN users u ON u.id = l.user_id`
	var args []any
	if !sc.All {
		q += ` WHERE l.user_id=$1`
		args = append(args, sc.OwnerID)
	}
	q += ` ORDER BY l.user_id, l.timestamp DESC, l.id DESC`
	out := []model.UserLocation{}
	err := p.db.SelectContext(ctx, &out, q, args...)
	return out, err
}
