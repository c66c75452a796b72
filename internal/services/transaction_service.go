package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"clinic_inventory_backend/internal/config"
	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/internal/locking"
	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/repositories"
	"clinic_inventory_backend/pkg/utils"

	"github.com/jmoiron/sqlx"
)

// TransactionRequest is used to create or replace a clinic visit.
// The dispensed item is named by ItemID or by Medication.
type TransactionRequest struct {
	Date              string  `json:"date" binding:"required,datetime=2006-01-02"`
	PatientName       string  `json:"patient_name" binding:"required,max=255"`
	CourseYearSection *string `json:"course_year_section" binding:"omitempty,max=255"`
	Complaints        *string `json:"complaints"`
	TimeStarted       string  `json:"time_started" binding:"required"`
	TimeFinished      *string `json:"time_finished"`
	ItemID            *int64  `json:"item_id"`
	Medication        *string `json:"medication"`
	Quantity          int     `json:"quantity" binding:"gte=0"`
	Remarks           *string `json:"remarks"`
}

// FinishTransactionRequest DTO
type FinishTransactionRequest struct {
	TimeFinished string `json:"time_finished" binding:"required"`
}

// TransactionService records visits and keeps the ledger in step with what was dispensed.
type TransactionService interface {
	Create(ctx context.Context, req TransactionRequest) (*models.Transaction, error)
	Get(ctx context.Context, id int64) (*models.Transaction, error)
	List(ctx context.Context, filters models.TransactionFilters) ([]models.Transaction, error)
	Recent(ctx context.Context) ([]models.Transaction, error)
	Finish(ctx context.Context, id int64, req FinishTransactionRequest) (*models.Transaction, error)
	Cancel(ctx context.Context, id int64) (*models.Transaction, error)
	Update(ctx context.Context, id int64, req TransactionRequest) (*models.Transaction, error)
	Delete(ctx context.Context, id int64) error
	Statistics(ctx context.Context) (*models.TransactionStats, error)
}

type transactionService struct {
	db     *sqlx.DB
	book   *ledgerBook
	txRepo repositories.TransactionRepository
}

// NewTransactionService creates a new instance of TransactionService.
func NewTransactionService(db *sqlx.DB, txRepo repositories.TransactionRepository, itemRepo repositories.ItemRepository,
	ledgerRepo repositories.LedgerRepository, locker locking.Locker, cfg config.LedgerConfig) TransactionService {
	return &transactionService{
		db:     db,
		book:   newLedgerBook(itemRepo, ledgerRepo, locker, cfg),
		txRepo: txRepo,
	}
}

var clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// dispense is the resolved stock movement of a request.
type dispense struct {
	item     *models.Item
	quantity int
	period   ledger.Period
}

func (s *transactionService) validate(req *TransactionRequest) error {
	req.PatientName = strings.TrimSpace(req.PatientName)
	if req.PatientName == "" {
		return validationError("patient name is required")
	}
	if _, err := time.Parse(time.DateOnly, req.Date); err != nil {
		return validationError("date %q must be YYYY-MM-DD", req.Date)
	}
	if !clockTime.MatchString(req.TimeStarted) {
		return validationError("time started %q must be HH:MM", req.TimeStarted)
	}
	if req.TimeFinished != nil && *req.TimeFinished != "" && !clockTime.MatchString(*req.TimeFinished) {
		return validationError("time finished %q must be HH:MM", *req.TimeFinished)
	}
	if req.Quantity < 0 {
		return validationError("quantity must not be negative")
	}
	return nil
}

// resolve finds the item a request dispenses; nil when nothing is dispensed.
func (s *transactionService) resolve(ctx context.Context, exec repositories.SQLExecutor, req TransactionRequest) (*dispense, error) {
	name := strings.TrimSpace(utils.DerefString(req.Medication, ""))
	if req.ItemID == nil && name == "" {
		if req.Quantity > 0 {
			return nil, validationError("quantity given without a medication")
		}
		return nil, nil
	}
	if req.Quantity <= 0 {
		return nil, validationError("quantity must be positive when a medication is dispensed")
	}

	var item *models.Item
	var err error
	if req.ItemID != nil {
		item, err = s.book.getItem(ctx, exec, *req.ItemID)
	} else {
		item, err = s.book.items.GetByName(ctx, exec, name)
		if isNotFound(err) {
			err = fmt.Errorf("%w: %q", ErrItemNotFound, name)
		}
	}
	if err != nil {
		return nil, err
	}
	p, err := ledger.PeriodOfDate(req.Date)
	if err != nil {
		return nil, validationError("%v", err)
	}
	return &dispense{item: item, quantity: req.Quantity, period: p}, nil
}

// dispensed reconstructs the stock movement recorded on a stored transaction.
func (s *transactionService) dispensed(ctx context.Context, exec repositories.SQLExecutor, t *models.Transaction) (*dispense, error) {
	if !t.Dispenses() {
		return nil, nil
	}
	item, err := s.book.items.GetByName(ctx, exec, *t.Medication)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %q referenced by transaction %d", ErrItemNotFound, *t.Medication, t.ID)
		}
		return nil, err
	}
	p, err := ledger.PeriodOfDate(t.Date)
	if err != nil {
		return nil, err
	}
	return &dispense{item: item, quantity: t.Quantity, period: p}, nil
}

func (s *transactionService) lockFor(ctx context.Context, ds ...*dispense) (func(), error) {
	var ids []int64
	for _, d := range ds {
		if d != nil {
			ids = append(ids, d.item.ID)
		}
	}
	return s.book.lockItems(ctx, ids...)
}

// Create stores an ongoing visit and issues the dispensed quantity in the visit's month.
func (s *transactionService) Create(ctx context.Context, req TransactionRequest) (*models.Transaction, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	d, err := s.resolve(ctx, s.db, req)
	if err != nil {
		return nil, err
	}
	release, err := s.lockFor(ctx, d)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t := transactionFromRequest(req, d)
	t.Status = models.TransactionOngoing
	if t.TimeFinished != nil {
		t.Status = models.TransactionFinished
	}
	if _, err := s.txRepo.Create(ctx, tx, t); err != nil {
		return nil, err
	}
	if d != nil {
		if _, err := s.book.applyDelta(ctx, tx, d.item.ID, d.period, Delta{Issued: d.quantity}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

func transactionFromRequest(req TransactionRequest, d *dispense) *models.Transaction {
	t := &models.Transaction{
		Date:              req.Date,
		PatientName:       req.PatientName,
		CourseYearSection: utils.NewNullString(utils.DerefString(req.CourseYearSection, "")),
		Complaints:        utils.NewNullString(utils.DerefString(req.Complaints, "")),
		TimeStarted:       req.TimeStarted,
		TimeFinished:      utils.NewNullString(utils.DerefString(req.TimeFinished, "")),
		Remarks:           utils.NewNullString(utils.DerefString(req.Remarks, "")),
	}
	if d != nil {
		name := d.item.Name
		t.Medication = &name
		t.Quantity = d.quantity
	}
	return t
}

func (s *transactionService) Get(ctx context.Context, id int64) (*models.Transaction, error) {
	t, err := s.txRepo.GetByID(ctx, s.db, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: id %d", ErrTransactionNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

func (s *transactionService) List(ctx context.Context, filters models.TransactionFilters) ([]models.Transaction, error) {
	return s.txRepo.List(ctx, filters)
}

// Recent returns today's five latest visits.
func (s *transactionService) Recent(ctx context.Context) ([]models.Transaction, error) {
	today := nowFunc().Format(time.DateOnly)
	return s.txRepo.List(ctx, models.TransactionFilters{DateFrom: today, DateTo: today, Limit: 5})
}

// Finish closes an ongoing visit. Stock was already issued at creation.
func (s *transactionService) Finish(ctx context.Context, id int64, req FinishTransactionRequest) (*models.Transaction, error) {
	if !clockTime.MatchString(req.TimeFinished) {
		return nil, validationError("time finished %q must be HH:MM", req.TimeFinished)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := s.getForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TransactionOngoing {
		return nil, fmt.Errorf("%w: transaction %d is %s", ErrTransactionClosed, id, t.Status)
	}
	finished := req.TimeFinished
	t.TimeFinished = &finished
	t.Status = models.TransactionFinished
	if err := s.txRepo.Update(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

func (s *transactionService) getForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.Transaction, error) {
	t, err := s.txRepo.GetByID(ctx, exec, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: id %d", ErrTransactionNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

// reverse puts a stored transaction's issue back into its month.
func (s *transactionService) reverse(ctx context.Context, exec repositories.SQLExecutor, d *dispense) error {
	if d == nil {
		return nil
	}
	_, err := s.book.applyDelta(ctx, exec, d.item.ID, d.period, Delta{Issued: -d.quantity})
	return err
}

// Cancel marks the visit cancelled and returns its stock to the ledger.
func (s *transactionService) Cancel(ctx context.Context, id int64) (*models.Transaction, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.TransactionCancelled {
		return nil, fmt.Errorf("%w: transaction %d is cancelled", ErrTransactionClosed, id)
	}
	d, err := s.dispensed(ctx, s.db, current)
	if err != nil {
		return nil, err
	}
	release, err := s.lockFor(ctx, d)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := s.getForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TransactionCancelled {
		return nil, fmt.Errorf("%w: transaction %d is cancelled", ErrTransactionClosed, id)
	}
	if err := s.reverse(ctx, tx, d); err != nil {
		return nil, err
	}
	t.Status = models.TransactionCancelled
	if err := s.txRepo.Update(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

// Update replaces a visit: the old issue is reversed and the new one applied.
func (s *transactionService) Update(ctx context.Context, id int64, req TransactionRequest) (*models.Transaction, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.TransactionCancelled {
		return nil, fmt.Errorf("%w: transaction %d is cancelled", ErrTransactionClosed, id)
	}
	oldD, err := s.dispensed(ctx, s.db, current)
	if err != nil {
		return nil, err
	}
	newD, err := s.resolve(ctx, s.db, req)
	if err != nil {
		return nil, err
	}
	release, err := s.lockFor(ctx, oldD, newD)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.reverse(ctx, tx, oldD); err != nil {
		return nil, err
	}
	if newD != nil {
		if _, err := s.book.applyDelta(ctx, tx, newD.item.ID, newD.period, Delta{Issued: newD.quantity}); err != nil {
			return nil, err
		}
	}

	t := transactionFromRequest(req, newD)
	t.ID = current.ID
	t.CreatedAt = current.CreatedAt
	t.Status = current.Status
	if t.TimeFinished == nil {
		t.TimeFinished = current.TimeFinished
	}
	if t.TimeFinished != nil {
		t.Status = models.TransactionFinished
	}
	if err := s.txRepo.Update(ctx, tx, t); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTransactionNotFound, id)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

// Delete removes the visit, returning its stock unless it was already cancelled.
func (s *transactionService) Delete(ctx context.Context, id int64) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	d, err := s.dispensed(ctx, s.db, current)
	if err != nil {
		return err
	}
	release, err := s.lockFor(ctx, d)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.reverse(ctx, tx, d); err != nil {
		return err
	}
	if err := s.txRepo.Delete(ctx, tx, id); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: id %d", ErrTransactionNotFound, id)
		}
		return err
	}
	return tx.Commit()
}

// Statistics summarises visits for the dashboard. Weeks start on Monday.
func (s *transactionService) Statistics(ctx context.Context) (*models.TransactionStats, error) {
	now := nowFunc()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekday := (int(today.Weekday()) + 6) % 7
	weekStart := today.AddDate(0, 0, -weekday)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	todayStr := today.Format(time.DateOnly)

	stats := &models.TransactionStats{}
	counts := []struct {
		from time.Time
		dst  *int
	}{
		{today, &stats.Today},
		{weekStart, &stats.ThisWeek},
		{monthStart, &stats.ThisMonth},
		{yearStart, &stats.ThisYear},
	}
	for _, c := range counts {
		n, err := s.txRepo.CountBetween(ctx, c.from.Format(time.DateOnly), todayStr)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	byStatus, err := s.txRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats.Ongoing = byStatus[models.TransactionOngoing]
	stats.Finished = byStatus[models.TransactionFinished]
	stats.Cancelled = byStatus[models.TransactionCancelled]
	stats.Total = stats.Ongoing + stats.Finished + stats.Cancelled

	if stats.UniquePatients, err = s.txRepo.CountPatients(ctx); err != nil {
		return nil, err
	}

	from := today.AddDate(0, 0, -6)
	daily, err := s.txRepo.DailyCounts(ctx, from.Format(time.DateOnly), todayStr)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]int, len(daily))
	for _, d := range daily {
		byDate[d.Date] = d.Count
	}
	for day := from; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		stats.LastSevenDays = append(stats.LastSevenDays, models.DailyCount{Date: key, Count: byDate[key]})
	}
	return stats, nil
}
