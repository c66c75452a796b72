package models

import "time"

// TransactionStatus is the lifecycle state of a dispensing record.
type TransactionStatus string

const (
	TransactionOngoing   TransactionStatus = "ongoing"
	TransactionFinished  TransactionStatus = "finished"
	TransactionCancelled TransactionStatus = "cancelled"
)

// Transaction is a clinic visit that may dispense an item.
// Medication references the item by name and is empty for consultations.
type Transaction struct {
	ID                int64             `json:"id" db:"id"`
	Date              string            `json:"date" db:"date"` // YYYY-MM-DD
	PatientName       string            `json:"patient_name" db:"patient_name"`
	CourseYearSection *string           `json:"course_year_section,omitempty" db:"course_year_section"`
	Complaints        *string           `json:"complaints,omitempty" db:"complaints"`
	TimeStarted       string            `json:"time_started" db:"time_started"` // HH:MM
	TimeFinished      *string           `json:"time_finished,omitempty" db:"time_finished"`
	Medication        *string           `json:"medication,omitempty" db:"medication"`
	Quantity          int               `json:"quantity" db:"quantity"`
	Remarks           *string           `json:"remarks,omitempty" db:"remarks"`
	Status            TransactionStatus `json:"status" db:"status"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// Dispenses reports whether the record moved stock.
func (t *Transaction) Dispenses() bool {
	return t.Medication != nil && *t.Medication != "" && t.Quantity > 0 && t.Status != TransactionCancelled
}

// TransactionFilters narrows transaction listings.
type TransactionFilters struct {
	Status   *TransactionStatus
	DateFrom string
	DateTo   string
	Search   string
	Limit    int
}

// DailyCount is the number of visits on a date.
type DailyCount struct {
	Date  string `json:"date" db:"date"`
	Count int    `json:"count" db:"count"`
}

// TransactionStats backs the dashboard.
type TransactionStats struct {
	Today          int          `json:"today"`
	ThisWeek       int          `json:"this_week"`
	ThisMonth      int          `json:"this_month"`
	ThisYear       int          `json:"this_year"`
	Total          int          `json:"total"`
	Ongoing        int          `json:"ongoing"`
	Finished       int          `json:"finished"`
	Cancelled      int          `json:"cancelled"`
	UniquePatients int          `json:"unique_patients"`
	LastSevenDays  []DailyCount `json:"last_seven_days"`
}
