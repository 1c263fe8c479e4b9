package store

import (
	"context"
	"errors"
	"fmt"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const productColumns = "id, name, price, category, version"

const (
	selectAllProducts        = "SELECT " + productColumns + " FROM products ORDER BY id"
	selectProductByID        = "SELECT " + productColumns + " FROM products WHERE id = $1"
	selectProductByName      = "SELECT " + productColumns + " FROM products WHERE name = $1 ORDER BY id LIMIT 1"
	selectProductsByCategory = "SELECT " + productColumns + " FROM products WHERE category = $1 ORDER BY id"
	insertProduct            = "INSERT INTO products (name, price, category) VALUES ($1, $2, $3) RETURNING " + productColumns
	updateProduct            = `UPDATE products SET name = $2, price = $3, category = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $5 RETURNING ` + productColumns
	updateProductPrice = "UPDATE products SET price = $2, version = version + 1, updated_at = now() WHERE id = $1 AND version = $3"
	deleteProduct      = "DELETE FROM products WHERE id = $1"
	productExists      = "SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)"
)

// PgStore implements ProductStore on PostgreSQL.
type PgStore struct {
	db *pgxpool.Pool
}

var _ ProductStore = (*PgStore)(nil)

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

func (p *PgStore) GetAll(ctx context.Context) ([]Product, error) {
	return p.queryProducts(ctx, selectAllProducts)
}

func (p *PgStore) GetByID(ctx context.Context, id int64) (*Product, error) {
	return p.queryProduct(ctx, selectProductByID, id)
}

func (p *PgStore) GetByName(ctx context.Context, name string) (*Product, error) {
	return p.queryProduct(ctx, selectProductByName, name)
}

func (p *PgStore) GetByCategory(ctx context.Context, category string) ([]Product, error) {
	return p.queryProducts(ctx, selectProductsByCategory, category)
}

func (p *PgStore) Add(ctx context.Context, product Product) (*Product, error) {
	row := p.db.QueryRow(ctx, insertProduct, product.Name, toNumeric(product.Price), product.Category)
	created, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	return &created, nil
}

func (p *PgStore) Update(ctx context.Context, product Product) (*Product, error) {
	var updated Product
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, updateProduct, product.ID, product.Name, toNumeric(product.Price), product.Category, product.Version)
		var err error
		updated, err = scanProduct(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return p.missingOrStale(ctx, tx, product.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to update product %d: %w", product.ID, err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &updated, nil
}

func (p *PgStore) Delete(ctx context.Context, id int64) error {
	if _, err := p.db.Exec(ctx, deleteProduct, id); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	return nil
}

// UpdateMany sends all price updates as one batch inside a single transaction.
func (p *PgStore) UpdateMany(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	return p.withTransaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, product := range products {
			batch.Queue(updateProductPrice, product.ID, toNumeric(product.Price), product.Version)
		}
		results := tx.SendBatch(ctx, batch)

		var staleID int64
		var execErr error
		for _, product := range products {
			tag, err := results.Exec()
			if err != nil {
				execErr = fmt.Errorf("failed to update price of product %d: %w", product.ID, err)
				break
			}
			if tag.RowsAffected() == 0 {
				staleID = product.ID
				break
			}
		}
		if err := results.Close(); err != nil && execErr == nil && staleID == 0 {
			execErr = fmt.Errorf("failed to close batch: %w", err)
		}
		if execErr != nil {
			return execErr
		}
		if staleID != 0 {
			return p.missingOrStale(ctx, tx, staleID)
		}
		return nil
	})
}

// missingOrStale tells apart a deleted row from a concurrent modification after a versioned write matched nothing.
func (p *PgStore) missingOrStale(ctx context.Context, tx pgx.Tx, id int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, productExists, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check product %d: %w", id, err)
	}
	if !exists {
		return catalogerrors.ErrProductNotFound
	}
	return catalogerrors.ErrOptimisticLock
}

func (p *PgStore) queryProduct(ctx context.Context, query string, arg any) (*Product, error) {
	product, err := scanProduct(p.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalogerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &product, nil
}

func (p *PgStore) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", catalogerrors.ErrTransactionBegin, err)
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w", catalogerrors.ErrTransactionRollback, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", catalogerrors.ErrTransactionCommit, err)
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var product Product
	var price pgtype.Numeric
	if err := row.Scan(&product.ID, &product.Name, &price, &product.Category, &product.Version); err != nil {
		return Product{}, err
	}
	product.Price = fromNumeric(price)
	return product, nil
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
