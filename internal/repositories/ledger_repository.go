package repositories

import (
	"context"

	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// LedgerRepository stores the per item, per month stock rows.
// Rows are unique on (item_id, year, month).
type LedgerRepository interface {
	Get(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) (*models.LedgerEntry, error)
	LatestBefore(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) (*models.LedgerEntry, error)
	ExistsAfter(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) (bool, error)
	Insert(ctx context.Context, exec SQLExecutor, e *models.LedgerEntry) (int64, error)
	InsertIgnore(ctx context.Context, exec SQLExecutor, e *models.LedgerEntry) (bool, error)
	ListAfter(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) ([]models.LedgerEntry, error)
	ListForItem(ctx context.Context, exec SQLExecutor, itemID int64) ([]models.LedgerEntry, error)
	Update(ctx context.Context, exec SQLExecutor, e *models.LedgerEntry) error
	DeleteFrom(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) (int64, error)
	ItemsMissingMonth(ctx context.Context, exec SQLExecutor, p ledger.Period) ([]int64, error)
	ListMonth(ctx context.Context, exec SQLExecutor, p ledger.Period) ([]models.MonthItem, error)
	LowStock(ctx context.Context, p ledger.Period, threshold int) ([]models.LowStockItem, error)
}

type ledgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new instance of LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

const ledgerColumns = `id, item_id, year, month, beginning_stock, replenished_stock, total_issued, balance`

func (r *ledgerRepository) Get(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := sqlx.GetContext(ctx, exec, &e, rebind(exec,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE item_id = ? AND year = ? AND month = ?`),
		itemID, p.Year, p.Month)
	if err != nil {
		return nil, wrapError(err, "getting ledger entry")
	}
	return &e, nil
}

// LatestBefore returns the most recent entry strictly before p.
func (r *ledgerRepository) LatestBefore(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := sqlx.GetContext(ctx, exec, &e, rebind(exec,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		 WHERE item_id = ? AND (year * 12 + month - 1) < ?
		 ORDER BY year DESC, month DESC LIMIT 1`),
		itemID, p.Ordinal())
	if err != nil {
		return nil, wrapError(err, "getting previous ledger entry")
	}
	return &e, nil
}

func (r *ledgerRepository) ExistsAfter(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, exec, &n, rebind(exec,
		`SELECT COUNT(*) FROM ledger_entries WHERE item_id = ? AND (year * 12 + month - 1) > ?`),
		itemID, p.Ordinal())
	if err != nil {
		return false, wrapError(err, "checking later ledger entries")
	}
	return n > 0, nil
}

func (r *ledgerRepository) Insert(ctx context.Context, exec SQLExecutor, e *models.LedgerEntry) (int64, error) {
	id, err := insertReturningID(ctx, exec,
		`INSERT INTO ledger_entries (item_id, year, month, beginning_stock, replenished_stock, total_issued, balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ItemID, e.Year, e.Month, e.BeginningStock, e.ReplenishedStock, e.TotalIssued, e.Balance)
	if err != nil {
		return 0, wrapError(err, "inserting ledger entry")
	}
	e.ID = id
	return id, nil
}

// InsertIgnore inserts e unless a row for the same month exists and reports
// whether a row was written.
func (r *ledgerRepository) InsertIgnore(ctx context.Context, exec SQLExecutor, e *models.LedgerEntry) (bool, error) {
	query := `INSERT INTO ledger_entries (item_id, year, month, beginning_stock, replenished_stock, total_issued, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (item_id, year, month) DO NOTHING`
	if exec.DriverName() == driverMySQL {
		query = `INSERT IGNORE INTO ledger_entries (item_id, year, month, beginning_stock, replenished_stock, total_issued, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	}
	res, err := exec.ExecContext(ctx, rebind(exec, query),
		e.ItemID, e.Year, e.Month, e.BeginningStock, e.ReplenishedStock, e.TotalIssued, e.Balance)
	if err != nil {
		return false, wrapError(err, "inserting ledger entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapError(err, "inserting ledger entry")
	}
	return n > 0, nil
}

// ListAfter returns the item's entries strictly after p in chronological order.
func (r *ledgerRepository) ListAfter(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) ([]models.LedgerEntry, error) {
	entries := []models.LedgerEntry{}
	err := sqlx.SelectContext(ctx, exec, &entries, rebind(exec,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		 WHERE item_id = ? AND (year * 12 + month - 1) > ?
		 ORDER BY year, month`),
		itemID, p.Ordinal())
	if err != nil {
		return nil, wrapError(err, "listing later ledger entries")
	}
	return entries, nil
}

func (r *ledgerRepository) ListForItem(ctx context.Context, exec SQLExecutor, itemID int64) ([]models.LedgerEntry, error) {
	entries := []models.LedgerEntry{}
	err := sqlx.SelectContext(ctx, exec, &entries, rebind(exec,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE item_id = ? ORDER BY year, month`), itemID)
	if err != nil {
		return nil, wrapError(err, "listing ledger entries")
	}
	return entries, nil
}

func (r *ledgerRepository) Update(ctx context.Context, exec SQLExecutor, e *models.LedgerEntry) error {
	_, err := exec.ExecContext(ctx, rebind(exec,
		`UPDATE ledger_entries
		 SET beginning_stock = ?, replenished_stock = ?, total_issued = ?, balance = ?
		 WHERE item_id = ? AND year = ? AND month = ?`),
		e.BeginningStock, e.ReplenishedStock, e.TotalIssued, e.Balance, e.ItemID, e.Year, e.Month)
	return wrapError(err, "updating ledger entry")
}

// DeleteFrom removes the item's entries at or after p.
func (r *ledgerRepository) DeleteFrom(ctx context.Context, exec SQLExecutor, itemID int64, p ledger.Period) (int64, error) {
	res, err := exec.ExecContext(ctx, rebind(exec,
		`DELETE FROM ledger_entries WHERE item_id = ? AND (year * 12 + month - 1) >= ?`), itemID, p.Ordinal())
	if err != nil {
		return 0, wrapError(err, "deleting ledger entries")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapError(err, "deleting ledger entries")
	}
	return n, nil
}

func (r *ledgerRepository) ItemsMissingMonth(ctx context.Context, exec SQLExecutor, p ledger.Period) ([]int64, error) {
	ids := []int64{}
	err := sqlx.SelectContext(ctx, exec, &ids, rebind(exec,
		`SELECT i.id FROM items i
		 WHERE NOT EXISTS (
		   SELECT 1 FROM ledger_entries le WHERE le.item_id = i.id AND le.year = ? AND le.month = ?
		 )
		 ORDER BY i.id`), p.Year, p.Month)
	if err != nil {
		return nil, wrapError(err, "listing items without ledger entry")
	}
	return ids, nil
}

// ListMonth joins every item that has an entry for p with that entry and the
// previous month's balance.
func (r *ledgerRepository) ListMonth(ctx context.Context, exec SQLExecutor, p ledger.Period) ([]models.MonthItem, error) {
	prev := p.Prev()
	rows, err := exec.QueryxContext(ctx, rebind(exec,
		`SELECT i.id, i.name, i.unit, i.category, i.expiry_date, i.current_stock, i.created_at, i.updated_at,
		        le.id, le.year, le.month, le.beginning_stock, le.replenished_stock, le.total_issued, le.balance,
		        prev.balance
		 FROM items i
		 JOIN ledger_entries le ON le.item_id = i.id AND le.year = ? AND le.month = ?
		 LEFT JOIN ledger_entries prev ON prev.item_id = i.id AND prev.year = ? AND prev.month = ?
		 ORDER BY LOWER(i.name)`),
		p.Year, p.Month, prev.Year, prev.Month)
	if err != nil {
		return nil, wrapError(err, "listing month")
	}
	defer rows.Close()

	out := []models.MonthItem{}
	for rows.Next() {
		var mi models.MonthItem
		if err := rows.Scan(
			&mi.Item.ID, &mi.Item.Name, &mi.Item.Unit, &mi.Item.Category, &mi.Item.ExpiryDate,
			&mi.Item.CurrentStock, &mi.Item.CreatedAt, &mi.Item.UpdatedAt,
			&mi.Entry.ID, &mi.Entry.Year, &mi.Entry.Month, &mi.Entry.BeginningStock,
			&mi.Entry.ReplenishedStock, &mi.Entry.TotalIssued, &mi.Entry.Balance,
			&mi.PreviousBalance,
		); err != nil {
			return nil, wrapError(err, "scanning month row")
		}
		mi.Entry.ItemID = mi.Item.ID
		out = append(out, mi)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "iterating month rows")
	}
	return out, nil
}

func (r *ledgerRepository) LowStock(ctx context.Context, p ledger.Period, threshold int) ([]models.LowStockItem, error) {
	items := []models.LowStockItem{}
	err := r.db.SelectContext(ctx, &items, r.db.Rebind(
		`SELECT i.id AS item_id, i.name, i.unit, i.category, le.balance, i.current_stock
		 FROM items i
		 JOIN ledger_entries le ON le.item_id = i.id AND le.year = ? AND le.month = ?
		 WHERE le.balance <= ?
		 ORDER BY le.balance, LOWER(i.name)`),
		p.Year, p.Month, threshold)
	if err != nil {
		return nil, wrapError(err, "listing low stock")
	}
	return items, nil
}
