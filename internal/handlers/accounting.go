package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/internal/storage"
)

// AccountingHandler serves the personal expense-tracking surface.
type AccountingHandler struct {
	accounting *storage.AccountingRepository
	logger     *slog.Logger
}

func NewAccountingHandler(accounting *storage.AccountingRepository, logger *slog.Logger) *AccountingHandler {
	return &AccountingHandler{accounting: accounting, logger: logger}
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryResponse struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (h *AccountingHandler) Categories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cats, err := h.accounting.ListCategories(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items := make([]categoryResponse, 0, len(cats))
		for _, cat := range cats {
			items = append(items, categoryResponse{CategoryID: cat.ID, Name: cat.Name, Description: cat.Description})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req categoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		cat := model.ExpenseCategory{Name: req.Name, Description: strings.TrimSpace(req.Description)}
		if err := h.accounting.CreateCategory(r.Context(), &cat); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, categoryResponse{CategoryID: cat.ID, Name: cat.Name, Description: cat.Description})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type expenseRequest struct {
	CategoryID  string `json:"category_id"`
	Merchant    string `json:"merchant"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Notes       string `json:"notes"`
	IncurredAt  string `json:"incurred_at"`
}

type expenseResponse struct {
	ExpenseID   string `json:"expense_id"`
	CategoryID  string `json:"category_id"`
	Merchant    string `json:"merchant"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Notes       string `json:"notes,omitempty"`
	IncurredAt  string `json:"incurred_at"`
}

func toExpenseResponse(exp *model.Expense) expenseResponse {
	return expenseResponse{
		ExpenseID:   exp.ID,
		CategoryID:  exp.CategoryID,
		Merchant:    exp.Merchant,
		AmountCents: exp.AmountCents,
		Currency:    exp.Currency,
		Notes:       exp.Notes,
		IncurredAt:  exp.IncurredAt.UTC().Format(time.RFC3339),
	}
}

// parseRange reads from/to query params, defaulting to the trailing year.
func parseRange(r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	from := now.AddDate(-1, 0, 0)
	to := now.AddDate(0, 0, 1)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, true
}

func (h *AccountingHandler) Expenses(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		from, to, ok := parseRange(r)
		if !ok {
			http.Error(w, "from/to must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		exps, err := h.accounting.ListExpenses(r.Context(), claims.Sub, from, to)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items := make([]expenseResponse, 0, len(exps))
		for i := range exps {
			items = append(items, toExpenseResponse(&exps[i]))
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req expenseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.CategoryID = strings.TrimSpace(req.CategoryID)
		req.Merchant = strings.TrimSpace(req.Merchant)
		if req.CategoryID == "" || req.Merchant == "" || req.AmountCents <= 0 {
			http.Error(w, "category_id, merchant and a positive amount_cents are required", http.StatusBadRequest)
			return
		}
		incurredAt, err := time.Parse("2006-01-02", strings.TrimSpace(req.IncurredAt))
		if err != nil {
			http.Error(w, "incurred_at must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = "CAD"
		}

		exp := model.Expense{
			UserID:      claims.Sub,
			CategoryID:  req.CategoryID,
			Merchant:    req.Merchant,
			AmountCents: req.AmountCents,
			Currency:    currency,
			Notes:       strings.TrimSpace(req.Notes),
			IncurredAt:  incurredAt,
		}
		if err := h.accounting.CreateExpense(r.Context(), &exp); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toExpenseResponse(&exp))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AccountingHandler) Expense(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "expense id required", http.StatusBadRequest)
		return
	}
	if err := h.accounting.DeleteExpense(r.Context(), claims.Sub, id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "expense not found", http.StatusNotFound)
			return
		}
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportRow struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Count        int    `json:"count"`
	TotalCents   int64  `json:"total_cents"`
}

func (h *AccountingHandler) Report(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	from, to, ok := parseRange(r)
	if !ok {
		http.Error(w, "from/to must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	rows, err := h.accounting.Report(r.Context(), claims.Sub, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]reportRow, 0, len(rows))
	for _, row := range rows {
		items = append(items, reportRow{
			CategoryID:   row.CategoryID,
			CategoryName: row.CategoryName,
			Count:        row.Count,
			TotalCents:   row.TotalCents,
		})
	}
	writeJSON(w, http.StatusOK, items)
}
