package repositories

import (
	"context"
	"strings"
	"time"

	"clinic_inventory_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// ItemRepository defines the database operations on the item catalogue.
type ItemRepository interface {
	Create(ctx context.Context, exec SQLExecutor, item *models.Item) (int64, error)
	GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Item, error)
	GetByName(ctx context.Context, exec SQLExecutor, name string) (*models.Item, error)
	List(ctx context.Context, filters models.ItemFilters) ([]models.Item, error)
	ListIDs(ctx context.Context, exec SQLExecutor) ([]int64, error)
	Update(ctx context.Context, exec SQLExecutor, item *models.Item) error
	AdjustStock(ctx context.Context, exec SQLExecutor, id int64, delta int) (int, error)
	SetStock(ctx context.Context, exec SQLExecutor, id int64, stock int) error
	ListWithExpiry(ctx context.Context, onOrBefore string) ([]models.Item, error)
}

type itemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new instance of ItemRepository.
func NewItemRepository(db *sqlx.DB) ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `id, name, unit, category, expiry_date, current_stock, created_at, updated_at`

func (r *itemRepository) Create(ctx context.Context, exec SQLExecutor, item *models.Item) (int64, error) {
	now := time.Now().UTC()
	id, err := insertReturningID(ctx, exec,
		`INSERT INTO items (name, unit, category, expiry_date, current_stock, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.Unit, item.Category, item.ExpiryDate, item.CurrentStock, now, now)
	if err != nil {
		return 0, wrapError(err, "creating item "+item.Name)
	}
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return id, nil
}

func (r *itemRepository) GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Item, error) {
	var item models.Item
	err := sqlx.GetContext(ctx, exec, &item, rebind(exec, `SELECT `+itemColumns+` FROM items WHERE id = ?`), id)
	if err != nil {
		return nil, wrapError(err, "getting item")
	}
	return &item, nil
}

func (r *itemRepository) GetByName(ctx context.Context, exec SQLExecutor, name string) (*models.Item, error) {
	var item models.Item
	err := sqlx.GetContext(ctx, exec, &item,
		rebind(exec, `SELECT `+itemColumns+` FROM items WHERE UPPER(name) = UPPER(?)`), strings.TrimSpace(name))
	if err != nil {
		return nil, wrapError(err, "getting item by name")
	}
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context, filters models.ItemFilters) ([]models.Item, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + itemColumns + ` FROM items`)

	var conditions []string
	var args []interface{}
	if filters.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, *filters.Category)
	}
	if filters.Search != "" {
		conditions = append(conditions, "LOWER(name) LIKE ?")
		args = append(args, likePattern(filters.Search))
	}
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY LOWER(name)")

	items := []models.Item{}
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(b.String()), args...); err != nil {
		return nil, wrapError(err, "listing items")
	}
	return items, nil
}

func (r *itemRepository) ListIDs(ctx context.Context, exec SQLExecutor) ([]int64, error) {
	ids := []int64{}
	if err := sqlx.SelectContext(ctx, exec, &ids, `SELECT id FROM items ORDER BY id`); err != nil {
		return nil, wrapError(err, "listing item ids")
	}
	return ids, nil
}

func (r *itemRepository) Update(ctx context.Context, exec SQLExecutor, item *models.Item) error {
	item.UpdatedAt = time.Now().UTC()
	res, err := exec.ExecContext(ctx, rebind(exec,
		`UPDATE items SET name = ?, unit = ?, category = ?, expiry_date = ?, updated_at = ? WHERE id = ?`),
		item.Name, item.Unit, item.Category, item.ExpiryDate, item.UpdatedAt, item.ID)
	if err != nil {
		return wrapError(err, "updating item")
	}
	return requireRow(res, "updating item")
}

// AdjustStock adds delta to current_stock and returns the new value.
func (r *itemRepository) AdjustStock(ctx context.Context, exec SQLExecutor, id int64, delta int) (int, error) {
	res, err := exec.ExecContext(ctx, rebind(exec,
		`UPDATE items SET current_stock = current_stock + ?, updated_at = ? WHERE id = ?`),
		delta, time.Now().UTC(), id)
	if err != nil {
		return 0, wrapError(err, "adjusting stock")
	}
	if err := requireRow(res, "adjusting stock"); err != nil {
		return 0, err
	}
	var stock int
	if err := sqlx.GetContext(ctx, exec, &stock, rebind(exec, `SELECT current_stock FROM items WHERE id = ?`), id); err != nil {
		return 0, wrapError(err, "reading stock")
	}
	return stock, nil
}

func (r *itemRepository) SetStock(ctx context.Context, exec SQLExecutor, id int64, stock int) error {
	res, err := exec.ExecContext(ctx, rebind(exec,
		`UPDATE items SET current_stock = ?, updated_at = ? WHERE id = ?`), stock, time.Now().UTC(), id)
	if err != nil {
		return wrapError(err, "setting stock")
	}
	return requireRow(res, "setting stock")
}

// ListWithExpiry returns items expiring on or before the given YYYY-MM-DD date.
func (r *itemRepository) ListWithExpiry(ctx context.Context, onOrBefore string) ([]models.Item, error) {
	items := []models.Item{}
	err := r.db.SelectContext(ctx, &items, r.db.Rebind(`SELECT `+itemColumns+` FROM items
		WHERE expiry_date IS NOT NULL AND expiry_date <> '' AND expiry_date <= ?
		ORDER BY expiry_date, LOWER(name)`), onOrBefore)
	if err != nil {
		return nil, wrapError(err, "listing expiring items")
	}
	return items, nil
}
