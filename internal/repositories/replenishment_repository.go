package repositories

import (
	"context"
	"fmt"
	"strings"

	"clinic_inventory_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// ReplenishmentRepository records restocks as an audit trail beside the ledger.
type ReplenishmentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, rep *models.StockReplenishment) (int64, error)
	List(ctx context.Context, itemID *int64, page, pageSize int) ([]models.StockReplenishment, int, error)
}

type replenishmentRepository struct {
	db *sqlx.DB
}

// NewReplenishmentRepository creates a new instance of ReplenishmentRepository.
func NewReplenishmentRepository(db *sqlx.DB) ReplenishmentRepository {
	return &replenishmentRepository{db: db}
}

func (r *replenishmentRepository) Create(ctx context.Context, exec SQLExecutor, rep *models.StockReplenishment) (int64, error) {
	id, err := insertReturningID(ctx, exec,
		`INSERT INTO stock_replenishments (item_id, year, month, quantity, user_id, remarks, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.ItemID, rep.Year, rep.Month, rep.Quantity, rep.UserID, rep.Remarks, rep.ReceivedAt.UTC())
	if err != nil {
		return 0, wrapError(err, "creating replenishment")
	}
	rep.ID = id
	return id, nil
}

// List pages through replenishments newest first, returning the total count.
func (r *replenishmentRepository) List(ctx context.Context, itemID *int64, page, pageSize int) ([]models.StockReplenishment, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var b strings.Builder
	b.WriteString(`SELECT sr.id, sr.item_id, sr.year, sr.month, sr.quantity, sr.user_id, sr.remarks, sr.received_at,
	    i.name AS item_name, COUNT(*) OVER() AS total_count
	  FROM stock_replenishments sr
	  JOIN items i ON i.id = sr.item_id`)
	var args []interface{}
	if itemID != nil {
		b.WriteString(" WHERE sr.item_id = ?")
		args = append(args, *itemID)
	}
	b.WriteString(" ORDER BY sr.received_at DESC, sr.id DESC LIMIT ? OFFSET ?")
	args = append(args, pageSize, (page-1)*pageSize)

	var rows []struct {
		models.StockReplenishment
		TotalCount int `db:"total_count"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(b.String()), args...); err != nil {
		return nil, 0, fmt.Errorf("%w: listing replenishments: %v", ErrDatabaseError, err)
	}

	out := make([]models.StockReplenishment, 0, len(rows))
	total := 0
	for _, row := range rows {
		out = append(out, row.StockReplenishment)
		total = row.TotalCount
	}
	return out, total, nil
}
