package services

import (
	"context"
	"fmt"

	"clinic_inventory_backend/internal/config"
	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/internal/locking"
	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/repositories"
	"clinic_inventory_backend/pkg/utils"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// RegisterItemRequest DTO
type RegisterItemRequest struct {
	Name         string  `json:"name" binding:"required,max=255"`
	Unit         string  `json:"unit" binding:"required,max=64"`
	Category     string  `json:"category" binding:"required"`
	ExpiryDate   *string `json:"expiry_date" binding:"omitempty,datetime=2006-01-02"`
	OpeningStock int     `json:"opening_stock" binding:"gte=0"`
	Year         int     `json:"year" binding:"omitempty,gte=1"`
	Month        int     `json:"month" binding:"omitempty,min=1,max=12"`
}

// ItemVerification is the result of checking one item's ledger.
type ItemVerification struct {
	ItemID     int64              `json:"item_id"`
	Entries    int                `json:"entries"`
	Violations []ledger.Violation `json:"violations,omitempty"`
}

// LedgerService owns the monthly roll-forward ledger. Every mutation runs in
// one database transaction under the item's lock.
type LedgerService interface {
	EnsureMonth(ctx context.Context, itemID int64, year, month int) (*models.LedgerEntry, bool, error)
	EnsureMonthForAll(ctx context.Context, year, month int) (int, error)
	ApplyDelta(ctx context.Context, itemID int64, year, month, issuedDelta, replenishedDelta int) (*models.LedgerEntry, error)
	CascadeForward(ctx context.Context, itemID int64, year, month int) (int, error)
	RegisterItem(ctx context.Context, req RegisterItemRequest) (*models.Item, error)
	DeleteItemFrom(ctx context.Context, itemID int64, year, month int) (int64, error)
	ItemLedger(ctx context.Context, itemID int64) ([]models.LedgerEntry, error)
	Rebuild(ctx context.Context, itemID int64, syncStock bool) (int, error)
	Verify(ctx context.Context) ([]ItemVerification, error)
	Origin() ledger.Period
	Horizon() ledger.Period
}

// processLocker is shared by every service built without an explicit locker.
var processLocker = locking.NewLocalLocker()

type ledgerService struct {
	db   *sqlx.DB
	book *ledgerBook
	log  zerolog.Logger
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(db *sqlx.DB, itemRepo repositories.ItemRepository, ledgerRepo repositories.LedgerRepository,
	locker locking.Locker, cfg config.LedgerConfig) LedgerService {
	return &ledgerService{
		db:   db,
		book: newLedgerBook(itemRepo, ledgerRepo, locker, cfg),
		log:  utils.WithComponent("ledger"),
	}
}

func newLedgerBook(itemRepo repositories.ItemRepository, ledgerRepo repositories.LedgerRepository,
	locker locking.Locker, cfg config.LedgerConfig) *ledgerBook {
	if locker == nil {
		locker = processLocker
	}
	return &ledgerBook{
		items:   itemRepo,
		entries: ledgerRepo,
		locker:  locker,
		origin:  cfg.Origin,
		horizon: cfg.Horizon,
	}
}

func (s *ledgerService) Origin() ledger.Period  { return s.book.origin }
func (s *ledgerService) Horizon() ledger.Period { return s.book.horizon }

// EnsureMonth returns the item's entry for the month, creating it on first access.
// ok is false for months before the origin or before the item was tracked.
func (s *ledgerService) EnsureMonth(ctx context.Context, itemID int64, year, month int) (*models.LedgerEntry, bool, error) {
	p := ledger.Period{Year: year, Month: month}
	if err := s.book.checkPeriod(p); err != nil {
		return nil, false, err
	}
	if p.Before(s.book.origin) {
		return nil, false, nil
	}
	if _, err := s.book.getItem(ctx, s.db, itemID); err != nil {
		return nil, false, err
	}
	release, err := s.book.lockItems(ctx, itemID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, ok, err := s.book.ensureMonth(ctx, tx, itemID, p)
	if err != nil || !ok {
		return nil, ok, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, true, nil
}

// EnsureMonthForAll creates the month for every item lacking it and returns how many were created.
func (s *ledgerService) EnsureMonthForAll(ctx context.Context, year, month int) (int, error) {
	p := ledger.Period{Year: year, Month: month}
	if err := s.book.checkPeriod(p); err != nil {
		return 0, err
	}
	if p.Before(s.book.origin) {
		return 0, nil
	}
	return ensureMonthForAll(ctx, s.db, s.book, p)
}

// ensureMonthForAll takes the locks of the items missing the month before
// inserting, so a concurrent cascade never misses a lazily created row.
func ensureMonthForAll(ctx context.Context, db *sqlx.DB, book *ledgerBook, p ledger.Period) (int, error) {
	missing, err := book.entries.ItemsMissingMonth(ctx, db, p)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}
	release, err := book.lockItems(ctx, missing...)
	if err != nil {
		return 0, err
	}
	defer release()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created := 0
	for _, id := range missing {
		_, ok, err := book.ensureMonth(ctx, tx, id, p)
		if err != nil {
			return 0, err
		}
		if ok {
			created++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

// ApplyDelta adds signed issued and replenished amounts to a month and cascades.
// Current stock moves by replenished minus issued.
func (s *ledgerService) ApplyDelta(ctx context.Context, itemID int64, year, month, issuedDelta, replenishedDelta int) (*models.LedgerEntry, error) {
	p := ledger.Period{Year: year, Month: month}
	if err := s.book.checkPeriod(p); err != nil {
		return nil, err
	}
	release, err := s.book.lockItems(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.book.getItem(ctx, tx, itemID); err != nil {
		return nil, err
	}
	entry, err := s.book.applyDelta(ctx, tx, itemID, p, Delta{Issued: issuedDelta, Replenished: replenishedDelta})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug().Int64("item_id", itemID).Str("period", p.String()).
		Int("issued", issuedDelta).Int("replenished", replenishedDelta).Msg("ledger delta applied")
	return entry, nil
}

// CascadeForward propagates the month's balance through every later month and
// returns the number of entries rewritten.
func (s *ledgerService) CascadeForward(ctx context.Context, itemID int64, year, month int) (int, error) {
	p := ledger.Period{Year: year, Month: month}
	if err := s.book.checkPeriod(p); err != nil {
		return 0, err
	}
	release, err := s.book.lockItems(ctx, itemID)
	if err != nil {
		return 0, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	from, err := s.book.entries.Get(ctx, tx, itemID, p)
	if err != nil {
		if isNotFound(err) {
			return 0, &LedgerError{Op: "cascade", ItemID: itemID, Period: p, Err: ErrMonthNotAvailable}
		}
		return 0, err
	}
	n, err := s.book.cascadeFrom(ctx, tx, from)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}

// RegisterItem creates an item with its ledger from the start month (default:
// the origin) through the horizon, every month opening at the given stock.
func (s *ledgerService) RegisterItem(ctx context.Context, req RegisterItemRequest) (*models.Item, error) {
	item, err := itemFromRequest(req.Name, req.Unit, req.Category, req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	start := s.book.origin
	if req.Year != 0 || req.Month != 0 {
		start = ledger.Period{Year: req.Year, Month: req.Month}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.book.registerItem(ctx, tx, item, start, req.OpeningStock); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info().Int64("item_id", item.ID).Str("name", item.Name).Str("from", start.String()).
		Str("through", s.book.horizon.String()).Int("opening_stock", req.OpeningStock).Msg("item registered")
	return item, nil
}

// DeleteItemFrom removes the item's entries at and after the month. Earlier
// months and the item itself are untouched.
func (s *ledgerService) DeleteItemFrom(ctx context.Context, itemID int64, year, month int) (int64, error) {
	p := ledger.Period{Year: year, Month: month}
	if err := s.book.checkPeriod(p); err != nil {
		return 0, err
	}
	release, err := s.book.lockItems(ctx, itemID)
	if err != nil {
		return 0, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.book.getItem(ctx, tx, itemID); err != nil {
		return 0, err
	}
	n, err := s.book.entries.DeleteFrom(ctx, tx, itemID, p)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info().Int64("item_id", itemID).Str("from", p.String()).Int64("removed", n).Msg("ledger entries deleted")
	return n, nil
}

func (s *ledgerService) ItemLedger(ctx context.Context, itemID int64) ([]models.LedgerEntry, error) {
	if _, err := s.book.getItem(ctx, s.db, itemID); err != nil {
		return nil, err
	}
	return s.book.entries.ListForItem(ctx, s.db, itemID)
}

// Rebuild recomputes an item's whole ledger from its first month. With
// syncStock the item's current stock is reset to the latest balance not after
// the current month.
func (s *ledgerService) Rebuild(ctx context.Context, itemID int64, syncStock bool) (int, error) {
	release, err := s.book.lockItems(ctx, itemID)
	if err != nil {
		return 0, err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.book.getItem(ctx, tx, itemID); err != nil {
		return 0, err
	}
	n, err := s.book.rebuild(ctx, tx, itemID)
	if err != nil {
		return 0, err
	}
	if syncStock {
		latest, err := s.book.entries.LatestBefore(ctx, tx, itemID, ledger.PeriodOf(nowFunc()).Next())
		if err != nil && !isNotFound(err) {
			return 0, err
		}
		if latest != nil {
			if err := s.book.items.SetStock(ctx, tx, itemID, latest.Balance); err != nil {
				return 0, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}

// Verify checks every item's ledger for the balance identity and continuity.
func (s *ledgerService) Verify(ctx context.Context) ([]ItemVerification, error) {
	ids, err := s.book.items.ListIDs(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]ItemVerification, 0, len(ids))
	for _, id := range ids {
		entries, err := s.book.entries.ListForItem(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ItemVerification{
			ItemID:     id,
			Entries:    len(entries),
			Violations: ledger.Verify(entries, s.book.origin),
		})
	}
	return out, nil
}
