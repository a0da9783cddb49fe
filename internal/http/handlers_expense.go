package http

import (
	"net/http"
	"time"

	"spendi/internal/core"
	"spendi/internal/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type expenseResponse struct {
	ID            int64     `json:"id"`
	CategoryID    int64     `json:"category_id"`
	Description   string    `json:"description"`
	AmountCents   int64     `json:"amount_cents"`
	Date          string    `json:"date"`
	PaymentMethod string    `json:"payment_method"`
	Location      string    `json:"location,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	MLConfidence  float64   `json:"ml_confidence,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:            e.ID,
		CategoryID:    e.CategoryID,
		Description:   e.Description,
		AmountCents:   e.Amount.Cents,
		Date:          e.Date.Format("2006-01-02"),
		PaymentMethod: string(e.PaymentMethod),
		Location:      e.Location,
		Notes:         e.Notes,
		MLConfidence:  e.MLConfidence,
		CreatedAt:     e.CreatedAt,
	}
}

type expenseRequest struct {
	CategoryID  int64  `json:"category_id"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	// Amount is an alternative decimal form ("12.34" or "12,34"), used
	// when amount_cents is absent.
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	PaymentMethod string `json:"payment_method"`
	Location      string `json:"location"`
	Notes         string `json:"notes"`
}

func (req expenseRequest) toExpense(userID int64) (core.Expense, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return core.Expense{}, err
	}
	if req.AmountCents == 0 && req.Amount != "" {
		cents, err := core.ParseDecimalToCents(req.Amount)
		if err != nil {
			return core.Expense{}, core.ErrInvalidAmount
		}
		req.AmountCents = cents
	}
	return core.Expense{
		UserID:        userID,
		CategoryID:    req.CategoryID,
		Description:   sanitizeInput(req.Description),
		Amount:        core.Money{Cents: req.AmountCents},
		Date:          date,
		PaymentMethod: core.PaymentMethod(req.PaymentMethod),
		Location:      sanitizeInput(req.Location),
		Notes:         sanitizeInput(req.Notes),
	}, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := req.toExpense(currentUser(r).ID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.expenses.Create(r.Context(), expense)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toExpenseResponse(created))
}

type expenseListResponse struct {
	Expenses []expenseResponse `json:"expenses"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter := storage.ExpenseFilter{
		CategoryID: queryInt64(r, "category_id"),
		MinCents:   queryInt64(r, "min_cents"),
		MaxCents:   queryInt64(r, "max_cents"),
		Search:     sanitizeInput(r.URL.Query().Get("search")),
		Limit:      queryInt(r, "limit", defaultPageSize),
		Offset:     queryInt(r, "offset", 0),
	}
	if filter.Limit < 1 || filter.Limit > maxPageSize {
		filter.Limit = defaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if v := r.URL.Query().Get("from"); v != "" {
		from, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		filter.From = from
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		filter.To = to
	}

	expenses, total, err := s.expenses.List(r.Context(), currentUser(r).ID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := expenseListResponse{
		Expenses: make([]expenseResponse, 0, len(expenses)),
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	for _, e := range expenses {
		resp.Expenses = append(resp.Expenses, toExpenseResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := s.expenses.Get(r.Context(), currentUser(r).ID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := req.toExpense(currentUser(r).ID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	expense.ID = id

	updated, err := s.expenses.Update(r.Context(), expense)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.expenses.Delete(r.Context(), currentUser(r).ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

type categoryAmountResponse struct {
	CategoryID  int64   `json:"category_id"`
	Name        string  `json:"name"`
	Color       string  `json:"color,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	AmountCents int64   `json:"amount_cents"`
	Percentage  float64 `json:"percentage"`
}

type dailyAmountResponse struct {
	Day         int   `json:"day"`
	AmountCents int64 `json:"amount_cents"`
}

type statsResponse struct {
	Year       int                      `json:"year"`
	Month      int                      `json:"month"`
	TotalCents int64                    `json:"total_cents"`
	ByCategory []categoryAmountResponse `json:"by_category"`
	Daily      []dailyAmountResponse    `json:"daily"`
}

func toCategoryAmounts(in []core.CategoryAmount) []categoryAmountResponse {
	out := make([]categoryAmountResponse, 0, len(in))
	for _, c := range in {
		out = append(out, categoryAmountResponse{
			CategoryID:  c.CategoryID,
			Name:        c.Name,
			Color:       c.Color,
			Icon:        c.Icon,
			AmountCents: c.Amount.Cents,
			Percentage:  c.Percentage,
		})
	}
	return out
}

func toDailyAmounts(in []core.DailyAmount) []dailyAmountResponse {
	out := make([]dailyAmountResponse, 0, len(in))
	for _, d := range in {
		out = append(out, dailyAmountResponse{Day: d.Day, AmountCents: d.Amount.Cents})
	}
	return out
}

func (s *Server) handleExpenseStats(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	stats, err := s.expenses.MonthlyStats(r.Context(), currentUser(r).ID, year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Year:       stats.Year,
		Month:      stats.Month,
		TotalCents: stats.Total.Cents,
		ByCategory: toCategoryAmounts(stats.ByCategory),
		Daily:      toDailyAmounts(stats.Daily),
	})
}

type predictRequest struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

type predictResponse struct {
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Confidence   float64 `json:"confidence"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sanitizeInput(req.Description) == "" {
		writeError(w, http.StatusUnprocessableEntity, "description is required")
		return
	}

	suggestion := s.expenses.Predict(r.Context(), currentUser(r).ID, sanitizeInput(req.Description), req.AmountCents)
	writeJSON(w, http.StatusOK, predictResponse{
		CategoryID:   suggestion.CategoryID,
		CategoryName: suggestion.CategoryName,
		Confidence:   suggestion.Confidence,
	})
}

type trainResponse struct {
	Trained bool `json:"trained"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	trained := s.expenses.Train(r.Context(), currentUser(r).ID)
	writeJSON(w, http.StatusOK, trainResponse{Trained: trained})
}
