package repositories

import (
	"context"
	"strings"
	"time"

	"clinic_inventory_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// TransactionRepository stores clinic visits and dispensing records.
type TransactionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.Transaction) (int64, error)
	GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Transaction, error)
	Update(ctx context.Context, exec SQLExecutor, t *models.Transaction) error
	Delete(ctx context.Context, exec SQLExecutor, id int64) error
	RenameMedication(ctx context.Context, exec SQLExecutor, from, to string) (int64, error)
	List(ctx context.Context, filters models.TransactionFilters) ([]models.Transaction, error)
	CountBetween(ctx context.Context, from, to string) (int, error)
	CountByStatus(ctx context.Context) (map[models.TransactionStatus]int, error)
	CountPatients(ctx context.Context) (int, error)
	DailyCounts(ctx context.Context, from, to string) ([]models.DailyCount, error)
	DailyIssues(ctx context.Context, exec SQLExecutor, from, to string) ([]models.DailyIssue, error)
	UsageOn(ctx context.Context, date string) ([]models.DailyInventoryRow, error)
}

type transactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a new instance of TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, date, patient_name, course_year_section, complaints, time_started, time_finished,
	medication, quantity, remarks, status, created_at, updated_at`

func (r *transactionRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Transaction) (int64, error) {
	now := time.Now().UTC()
	id, err := insertReturningID(ctx, exec,
		`INSERT INTO transactions (date, patient_name, course_year_section, complaints, time_started, time_finished,
		   medication, quantity, remarks, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date, t.PatientName, t.CourseYearSection, t.Complaints, t.TimeStarted, t.TimeFinished,
		t.Medication, t.Quantity, t.Remarks, t.Status, now, now)
	if err != nil {
		return 0, wrapError(err, "creating transaction")
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return id, nil
}

func (r *transactionRepository) GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Transaction, error) {
	var t models.Transaction
	err := sqlx.GetContext(ctx, exec, &t, rebind(exec, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`), id)
	if err != nil {
		return nil, wrapError(err, "getting transaction")
	}
	return &t, nil
}

func (r *transactionRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Transaction) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := exec.ExecContext(ctx, rebind(exec,
		`UPDATE transactions SET date = ?, patient_name = ?, course_year_section = ?, complaints = ?,
		   time_started = ?, time_finished = ?, medication = ?, quantity = ?, remarks = ?, status = ?, updated_at = ?
		 WHERE id = ?`),
		t.Date, t.PatientName, t.CourseYearSection, t.Complaints, t.TimeStarted, t.TimeFinished,
		t.Medication, t.Quantity, t.Remarks, t.Status, t.UpdatedAt, t.ID)
	if err != nil {
		return wrapError(err, "updating transaction")
	}
	return requireRow(res, "updating transaction")
}

func (r *transactionRepository) Delete(ctx context.Context, exec SQLExecutor, id int64) error {
	res, err := exec.ExecContext(ctx, rebind(exec, `DELETE FROM transactions WHERE id = ?`), id)
	if err != nil {
		return wrapError(err, "deleting transaction")
	}
	return requireRow(res, "deleting transaction")
}

// RenameMedication keeps name references intact when an item is renamed.
func (r *transactionRepository) RenameMedication(ctx context.Context, exec SQLExecutor, from, to string) (int64, error) {
	res, err := exec.ExecContext(ctx, rebind(exec,
		`UPDATE transactions SET medication = ? WHERE UPPER(medication) = UPPER(?)`), to, from)
	if err != nil {
		return 0, wrapError(err, "renaming medication")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *transactionRepository) List(ctx context.Context, filters models.TransactionFilters) ([]models.Transaction, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + transactionColumns + ` FROM transactions`)

	var conditions []string
	var args []interface{}
	if filters.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filters.Status)
	}
	if filters.DateFrom != "" {
		conditions = append(conditions, "date >= ?")
		args = append(args, filters.DateFrom)
	}
	if filters.DateTo != "" {
		conditions = append(conditions, "date <= ?")
		args = append(args, filters.DateTo)
	}
	if filters.Search != "" {
		conditions = append(conditions, "(LOWER(patient_name) LIKE ? OR LOWER(medication) LIKE ?)")
		args = append(args, likePattern(filters.Search), likePattern(filters.Search))
	}
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY date DESC, time_started DESC, id DESC")
	if filters.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, filters.Limit)
	}

	out := []models.Transaction{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(b.String()), args...); err != nil {
		return nil, wrapError(err, "listing transactions")
	}
	return out, nil
}

// CountBetween counts non-cancelled visits with from <= date <= to.
func (r *transactionRepository) CountBetween(ctx context.Context, from, to string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(
		`SELECT COUNT(*) FROM transactions WHERE date >= ? AND date <= ? AND status <> ?`),
		from, to, models.TransactionCancelled)
	if err != nil {
		return 0, wrapError(err, "counting transactions")
	}
	return n, nil
}

func (r *transactionRepository) CountByStatus(ctx context.Context) (map[models.TransactionStatus]int, error) {
	var rows []struct {
		Status models.TransactionStatus `db:"status"`
		Count  int                      `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM transactions GROUP BY status`); err != nil {
		return nil, wrapError(err, "counting by status")
	}
	out := make(map[models.TransactionStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *transactionRepository) CountPatients(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(DISTINCT LOWER(patient_name)) FROM transactions`); err != nil {
		return 0, wrapError(err, "counting patients")
	}
	return n, nil
}

func (r *transactionRepository) DailyCounts(ctx context.Context, from, to string) ([]models.DailyCount, error) {
	out := []models.DailyCount{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		`SELECT date, COUNT(*) AS count FROM transactions
		 WHERE date >= ? AND date <= ? AND status <> ?
		 GROUP BY date ORDER BY date`),
		from, to, models.TransactionCancelled)
	if err != nil {
		return nil, wrapError(err, "counting per day")
	}
	return out, nil
}

// DailyIssues sums dispensed quantities per medication and date, ignoring cancelled visits.
func (r *transactionRepository) DailyIssues(ctx context.Context, exec SQLExecutor, from, to string) ([]models.DailyIssue, error) {
	out := []models.DailyIssue{}
	err := sqlx.SelectContext(ctx, exec, &out, rebind(exec,
		`SELECT UPPER(medication) AS medication, date, SUM(quantity) AS quantity
		 FROM transactions
		 WHERE date >= ? AND date <= ? AND status <> ?
		   AND medication IS NOT NULL AND medication <> '' AND quantity > 0
		 GROUP BY UPPER(medication), date
		 ORDER BY date`),
		from, to, models.TransactionCancelled)
	if err != nil {
		return nil, wrapError(err, "summing daily issues")
	}
	return out, nil
}

func (r *transactionRepository) UsageOn(ctx context.Context, date string) ([]models.DailyInventoryRow, error) {
	out := []models.DailyInventoryRow{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		`SELECT i.id AS item_id, i.name, i.unit, i.category, COALESCE(SUM(t.quantity), 0) AS quantity_used, i.current_stock
		 FROM items i
		 LEFT JOIN transactions t ON UPPER(t.medication) = UPPER(i.name) AND t.date = ? AND t.status <> ?
		 GROUP BY i.id, i.name, i.unit, i.category, i.current_stock
		 ORDER BY LOWER(i.name)`),
		date, models.TransactionCancelled)
	if err != nil {
		return nil, wrapError(err, "reading daily usage")
	}
	return out, nil
}
