package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"clinic_inventory_backend/internal/config"
	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/internal/locking"
	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/repositories"

	"github.com/jmoiron/sqlx"
)

// ReportService builds the month-end inventory views.
type ReportService interface {
	MonthlyReport(ctx context.Context, year, month int) (*models.MonthlyReport, error)
	DailyInventory(ctx context.Context, date string) ([]models.DailyInventoryRow, error)
}

type reportService struct {
	db         *sqlx.DB
	book       *ledgerBook
	ledgerRepo repositories.LedgerRepository
	txRepo     repositories.TransactionRepository
}

// NewReportService creates a new instance of ReportService.
func NewReportService(db *sqlx.DB, itemRepo repositories.ItemRepository, ledgerRepo repositories.LedgerRepository,
	txRepo repositories.TransactionRepository, locker locking.Locker, cfg config.LedgerConfig) ReportService {
	return &reportService{
		db:         db,
		book:       newLedgerBook(itemRepo, ledgerRepo, locker, cfg),
		ledgerRepo: ledgerRepo,
		txRepo:     txRepo,
	}
}

// MonthlyReport returns every item's ledger row for the month with its per-day
// issuance. TotalIssued is summed from the daily figures; rows whose stored
// aggregate differs are flagged and counted in Unreconciled.
func (s *reportService) MonthlyReport(ctx context.Context, year, month int) (*models.MonthlyReport, error) {
	p := ledger.Period{Year: year, Month: month}
	if err := s.book.checkPeriod(p); err != nil {
		return nil, err
	}
	report := &models.MonthlyReport{
		Year:        year,
		Month:       month,
		DaysInMonth: p.Days(),
		Groups:      emptyReportGroups(),
		GeneratedAt: nowFunc().UTC(),
	}
	if p.Before(s.book.origin) {
		return report, nil
	}
	report.Available = true

	if _, err := ensureMonthForAll(ctx, s.db, s.book, p); err != nil {
		return nil, err
	}
	rows, err := s.ledgerRepo.ListMonth(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	issues, err := s.txRepo.DailyIssues(ctx, s.db, p.FirstDay(), p.LastDay())
	if err != nil {
		return nil, err
	}
	daily := dailyByMedication(issues)

	for _, mi := range rows {
		row := models.ReportRow{
			ItemID:         mi.Item.ID,
			Name:           mi.Item.Name,
			Unit:           mi.Item.Unit,
			Category:       mi.Item.Category,
			ExpiryDate:     mi.Item.ExpiryDate,
			BeginningStock: mi.Entry.BeginningStock,
			Replenished:    mi.Entry.ReplenishedStock,
			StoredIssued:   mi.Entry.TotalIssued,
			Balance:        mi.Entry.Balance,
			Daily:          map[int]int{},
		}
		for day, qty := range daily[strings.ToUpper(mi.Item.Name)] {
			row.Daily[day] = qty
			row.TotalIssued += qty
		}
		row.Reconciled = row.TotalIssued == row.StoredIssued
		if !row.Reconciled {
			report.Unreconciled++
		}

		i := mi.Item.Category.Precedence()
		if i >= len(report.Groups) {
			continue
		}
		report.Groups[i].Rows = append(report.Groups[i].Rows, row)
	}
	return report, nil
}

// dailyByMedication indexes the issues by upper-cased medication and day of month.
func dailyByMedication(issues []models.DailyIssue) map[string]map[int]int {
	out := make(map[string]map[int]int)
	for _, is := range issues {
		if len(is.Date) < 10 {
			continue
		}
		day, err := strconv.Atoi(is.Date[8:10])
		if err != nil {
			continue
		}
		byDay, ok := out[is.Medication]
		if !ok {
			byDay = make(map[int]int)
			out[is.Medication] = byDay
		}
		byDay[day] += is.Quantity
	}
	return out
}

func emptyReportGroups() []models.ReportGroup {
	groups := make([]models.ReportGroup, len(models.Categories))
	for i, c := range models.Categories {
		groups[i] = models.ReportGroup{Category: c, Label: c.Label(), Rows: []models.ReportRow{}}
	}
	return groups
}

// DailyInventory lists every item with the quantity dispensed on date.
func (s *reportService) DailyInventory(ctx context.Context, date string) ([]models.DailyInventoryRow, error) {
	if date == "" {
		date = nowFunc().Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return nil, validationError("date %q must be YYYY-MM-DD", date)
	}
	return s.txRepo.UsageOn(ctx, date)
}
