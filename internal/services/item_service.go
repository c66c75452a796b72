package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"clinic_inventory_backend/internal/config"
	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/internal/locking"
	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/repositories"

	"github.com/jmoiron/sqlx"
)

// --- Data Transfer Objects (DTOs) ---

// EditItemMonthRequest updates an item's details and one month's figures.
// BeginningStock is only honoured at the ledger origin; later months always
// open at the previous month's balance.
type EditItemMonthRequest struct {
	Year             int     `json:"year" binding:"required,gte=1"`
	Month            int     `json:"month" binding:"required,min=1,max=12"`
	Name             *string `json:"name" binding:"omitempty,max=255"`
	Unit             *string `json:"unit" binding:"omitempty,max=64"`
	Category         *string `json:"category"`
	ExpiryDate       *string `json:"expiry_date"`
	BeginningStock   *int    `json:"beginning_stock" binding:"omitempty,gte=0"`
	ReplenishedStock *int    `json:"replenished_stock" binding:"omitempty,gte=0"`
}

// ReplenishRequest DTO
type ReplenishRequest struct {
	Year     int     `json:"year" binding:"required,gte=1"`
	Month    int     `json:"month" binding:"required,min=1,max=12"`
	Quantity int     `json:"quantity" binding:"required,gt=0"`
	Remarks  *string `json:"remarks"`
}

// ItemService manages the catalogue and the month-level inventory views.
type ItemService interface {
	CreateItem(ctx context.Context, req RegisterItemRequest) (*models.Item, error)
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ListItems(ctx context.Context, filters models.ItemFilters) ([]models.Item, error)
	MonthView(ctx context.Context, year, month int) (*models.MonthView, error)
	EditItemMonth(ctx context.Context, id int64, req EditItemMonthRequest) (*models.MonthItem, error)
	Replenish(ctx context.Context, id int64, req ReplenishRequest, userID *int64) (*models.LedgerEntry, error)
	ListReplenishments(ctx context.Context, itemID *int64, page, pageSize int) ([]models.StockReplenishment, int, error)
	LowStock(ctx context.Context, threshold *int) ([]models.LowStockItem, error)
	ExpiringItems(ctx context.Context, months int) ([]models.ExpiringItem, error)
}

type itemService struct {
	db           *sqlx.DB
	ledger       LedgerService
	book         *ledgerBook
	itemRepo     repositories.ItemRepository
	ledgerRepo   repositories.LedgerRepository
	replRepo     repositories.ReplenishmentRepository
	txRepo       repositories.TransactionRepository
	lowStock     int
	expiryMonths int
}

// NewItemService creates a new instance of ItemService.
func NewItemService(db *sqlx.DB, ledgerSvc LedgerService, itemRepo repositories.ItemRepository,
	ledgerRepo repositories.LedgerRepository, replRepo repositories.ReplenishmentRepository,
	txRepo repositories.TransactionRepository, locker locking.Locker, cfg config.LedgerConfig) ItemService {
	return &itemService{
		db:           db,
		ledger:       ledgerSvc,
		book:         newLedgerBook(itemRepo, ledgerRepo, locker, cfg),
		itemRepo:     itemRepo,
		ledgerRepo:   ledgerRepo,
		replRepo:     replRepo,
		txRepo:       txRepo,
		lowStock:     cfg.LowStockThreshold,
		expiryMonths: cfg.ExpiryWindowMonths,
	}
}

func (s *itemService) CreateItem(ctx context.Context, req RegisterItemRequest) (*models.Item, error) {
	return s.ledger.RegisterItem(ctx, req)
}

func (s *itemService) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return s.book.getItem(ctx, s.db, id)
}

func (s *itemService) ListItems(ctx context.Context, filters models.ItemFilters) ([]models.Item, error) {
	return s.itemRepo.List(ctx, filters)
}

// MonthView lazily creates the month for every item and returns it grouped by category.
func (s *itemService) MonthView(ctx context.Context, year, month int) (*models.MonthView, error) {
	p := ledger.Period{Year: year, Month: month}
	if err := s.book.checkPeriod(p); err != nil {
		return nil, err
	}
	view := &models.MonthView{Year: year, Month: month, Groups: emptyGroups()}
	if p.Before(s.book.origin) {
		return view, nil
	}
	view.Available = true

	if _, err := ensureMonthForAll(ctx, s.db, s.book, p); err != nil {
		return nil, err
	}
	rows, err := s.ledgerRepo.ListMonth(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		i := row.Item.Category.Precedence()
		if i >= len(view.Groups) {
			continue
		}
		view.Groups[i].Items = append(view.Groups[i].Items, row)
	}
	return view, nil
}

func emptyGroups() []models.CategoryGroup {
	groups := make([]models.CategoryGroup, len(models.Categories))
	for i, c := range models.Categories {
		groups[i] = models.CategoryGroup{Category: c, Label: c.Label(), Items: []models.MonthItem{}}
	}
	return groups
}

// EditItemMonth applies catalogue edits and rewrites one month's opening and
// replenished figures, then cascades. It is a bookkeeping correction: current
// stock is not changed. Only months from the origin through the current month
// can be edited.
func (s *itemService) EditItemMonth(ctx context.Context, id int64, req EditItemMonthRequest) (*models.MonthItem, error) {
	p := ledger.Period{Year: req.Year, Month: req.Month}
	if err := s.book.checkPeriod(p); err != nil {
		return nil, err
	}
	if p.Before(s.book.origin) {
		return nil, validationError("cannot edit %s: before the ledger origin %s", p, s.book.origin)
	}
	if current := ledger.PeriodOf(nowFunc()); p.After(current) {
		return nil, validationError("cannot edit %s: future month", p)
	}

	release, err := s.book.lockItems(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := s.book.getItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyItemEdits(ctx, tx, item, req); err != nil {
		return nil, err
	}

	entry, ok, err := s.book.ensureMonth(ctx, tx, id, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &LedgerError{Op: "edit", ItemID: id, Period: p, Err: ErrMonthNotAvailable}
	}

	var prevBalance *int
	prev, err := s.ledgerRepo.LatestBefore(ctx, tx, id, p)
	switch {
	case err == nil:
		prevBalance = &prev.Balance
	case !isNotFound(err):
		return nil, err
	}

	switch {
	case p == s.book.origin && req.BeginningStock != nil:
		entry.BeginningStock = *req.BeginningStock
	case prevBalance != nil:
		entry.BeginningStock = *prevBalance
	}
	if req.ReplenishedStock != nil {
		entry.ReplenishedStock = *req.ReplenishedStock
	}
	ledger.Recompute(entry)
	if err := s.ledgerRepo.Update(ctx, tx, entry); err != nil {
		return nil, err
	}
	if _, err := s.book.cascadeFrom(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &models.MonthItem{Item: *item, Entry: *entry, PreviousBalance: prevBalance}, nil
}

func (s *itemService) applyItemEdits(ctx context.Context, exec repositories.SQLExecutor, item *models.Item, req EditItemMonthRequest) error {
	if req.Name == nil && req.Unit == nil && req.Category == nil && req.ExpiryDate == nil {
		return nil
	}
	name, unit, category, expiry := item.Name, item.Unit, string(item.Category), item.ExpiryDate
	if req.Name != nil {
		name = *req.Name
	}
	if req.Unit != nil {
		unit = *req.Unit
	}
	if req.Category != nil {
		category = *req.Category
	}
	if req.ExpiryDate != nil {
		expiry = req.ExpiryDate
	}
	edited, err := itemFromRequest(name, unit, category, expiry)
	if err != nil {
		return err
	}

	oldName := item.Name
	item.Name, item.Unit, item.Category, item.ExpiryDate = edited.Name, edited.Unit, edited.Category, edited.ExpiryDate
	if err := s.itemRepo.Update(ctx, exec, item); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return fmt.Errorf("%w: item %q", ErrConflict, item.Name)
		}
		return err
	}
	if oldName != item.Name {
		if _, err := s.txRepo.RenameMedication(ctx, exec, oldName, item.Name); err != nil {
			return err
		}
	}
	return nil
}

// Replenish records a delivery into a month and cascades the new balance.
func (s *itemService) Replenish(ctx context.Context, id int64, req ReplenishRequest, userID *int64) (*models.LedgerEntry, error) {
	p := ledger.Period{Year: req.Year, Month: req.Month}
	if err := s.book.checkPeriod(p); err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, validationError("quantity must be positive")
	}

	release, err := s.book.lockItems(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.book.getItem(ctx, tx, id); err != nil {
		return nil, err
	}
	entry, err := s.book.applyDelta(ctx, tx, id, p, Delta{Replenished: req.Quantity})
	if err != nil {
		return nil, err
	}
	rep := &models.StockReplenishment{
		ItemID:     id,
		Year:       p.Year,
		Month:      p.Month,
		Quantity:   req.Quantity,
		UserID:     userID,
		Remarks:    req.Remarks,
		ReceivedAt: nowFunc(),
	}
	if _, err := s.replRepo.Create(ctx, tx, rep); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

func (s *itemService) ListReplenishments(ctx context.Context, itemID *int64, page, pageSize int) ([]models.StockReplenishment, int, error) {
	return s.replRepo.List(ctx, itemID, page, pageSize)
}

// LowStock lists items whose current month balance is at or below the threshold.
func (s *itemService) LowStock(ctx context.Context, threshold *int) ([]models.LowStockItem, error) {
	limit := s.lowStock
	if threshold != nil {
		if *threshold < 0 {
			return nil, validationError("threshold must not be negative")
		}
		limit = *threshold
	}
	p := ledger.PeriodOf(nowFunc())
	if p.Before(s.book.origin) {
		return []models.LowStockItem{}, nil
	}
	if _, err := ensureMonthForAll(ctx, s.db, s.book, p); err != nil {
		return nil, err
	}
	return s.ledgerRepo.LowStock(ctx, p, limit)
}

// ExpiringItems lists items already expired or expiring within the given number of months.
func (s *itemService) ExpiringItems(ctx context.Context, months int) ([]models.ExpiringItem, error) {
	if months <= 0 {
		months = s.expiryMonths
	}
	now := nowFunc()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := today.AddDate(0, months, 0)

	items, err := s.itemRepo.ListWithExpiry(ctx, cutoff.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	out := make([]models.ExpiringItem, 0, len(items))
	for _, item := range items {
		exp, err := time.Parse(time.DateOnly, strings.TrimSpace(*item.ExpiryDate))
		if err != nil {
			continue
		}
		days := int(exp.Sub(today).Hours() / 24)
		out = append(out, models.ExpiringItem{Item: item, DaysUntilExpiry: days, Expired: days < 0})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysUntilExpiry < out[j].DaysUntilExpiry })
	return out, nil
}
