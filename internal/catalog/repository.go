package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Repository is a local product-info source backed by SQLite.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a second connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations() error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// Lookup returns the known products among ids. Unknown ids are left out.
func (r *Repository) Lookup(ctx context.Context, ids []int64) (map[int64]domain.ProductInfo, error) {
	out := make(map[int64]domain.ProductInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.name, p.price, p.stock_quantity, c.category_id
		FROM products p
		LEFT JOIN product_categories c ON c.product_id = p.id
		WHERE p.id IN (%s)
		ORDER BY p.id, c.category_id
	`, placeholders)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			info     domain.ProductInfo
			stock    sql.NullInt64
			category sql.NullString
		)
		if err := rows.Scan(&info.ID, &info.Name, &info.Price, &stock, &category); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		if existing, ok := out[info.ID]; ok {
			info = existing
		} else if stock.Valid {
			info.StockQuantity = domain.IntPtr(int(stock.Int64))
		}
		if category.Valid {
			info.CategoryIDs = append(info.CategoryIDs, category.String)
		}
		out[info.ID] = info
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// SetStock overwrites the stock of a product; nil marks it unknown.
func (r *Repository) SetStock(ctx context.Context, id int64, quantity *int) error {
	var value any
	if quantity != nil {
		value = *quantity
	}
	res, err := r.db.ExecContext(ctx, `UPDATE products SET stock_quantity = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
