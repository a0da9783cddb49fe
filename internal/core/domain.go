package core

import (
	"errors"
	"strings"
	"time"
)

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCreditCard   PaymentMethod = "credit card"
	PaymentDebitCard    PaymentMethod = "debit card"
	PaymentBankTransfer PaymentMethod = "bank transfer"
	PaymentOther        PaymentMethod = "other"
)

// UncategorizedName is the per-user default category assigned when no
// category is given and prediction yields nothing.
const UncategorizedName = "Uncategorized"

// User roles. New accounts get RoleUser; RoleAdmin gates the user listing.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type (
	PaymentMethod string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		Email        string
		Name         string
		Role         string
		PasswordHash string
		CreatedAt    time.Time
	}

	Category struct {
		ID          int64
		UserID      int64
		Name        string
		Description string
		Color       string
		Icon        string
		IsDefault   bool
		CreatedAt   time.Time
	}

	Expense struct {
		ID            int64
		UserID        int64
		CategoryID    int64 // 0 means uncategorized
		Description   string
		Amount        Money
		Date          Date
		PaymentMethod PaymentMethod
		Location      string
		Notes         string
		MLConfidence  float64
		CreatedAt     time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidPayment     = errors.New("invalid payment method")
	ErrEmptyEmail         = errors.New("empty email")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrNameTooLong        = errors.New("name too long (max 50 characters)")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (pm PaymentMethod) Validate() error {
	switch pm {
	case PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentBankTransfer, PaymentOther:
		return nil
	}
	return ErrInvalidPayment
}

func (e Expense) Validate() error {
	if e.UserID <= 0 {
		return errors.New("expense requires a user")
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.PaymentMethod != "" {
		if err := e.PaymentMethod.Validate(); err != nil {
			return err
		}
	}
	if len(e.Location) > 100 {
		return errors.New("location too long (max 100 characters)")
	}
	if e.MLConfidence < 0 || e.MLConfidence > 1 {
		return errors.New("ml confidence out of range [0,1]")
	}
	return nil
}

func (c Category) Validate() error {
	if c.UserID <= 0 {
		return errors.New("category requires a user")
	}
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 50 {
		return ErrNameTooLong
	}
	if len(c.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

func (u User) Validate() error {
	if len(strings.TrimSpace(u.Email)) == 0 {
		return ErrEmptyEmail
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("invalid email")
	}
	if len(strings.TrimSpace(u.Name)) == 0 {
		return ErrEmptyName
	}
	return nil
}
