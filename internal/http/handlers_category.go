package http

import (
	"net/http"
	"time"

	"spendi/internal/core"
)

type categoryResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Color:       c.Color,
		Icon:        c.Icon,
		IsDefault:   c.IsDefault,
		CreatedAt:   c.CreatedAt,
	}
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

func (req categoryRequest) toCategory(userID int64) core.Category {
	return core.Category{
		UserID:      userID,
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
		Color:       sanitizeInput(req.Color),
		Icon:        sanitizeInput(req.Icon),
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.ListCategories(r.Context(), currentUser(r).ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category := req.toCategory(currentUser(r).ID)
	if err := category.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.repo.CreateCategory(r.Context(), category)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryResponse(created))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category := req.toCategory(currentUser(r).ID)
	category.ID = id
	if err := category.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updated, err := s.repo.UpdateCategory(r.Context(), category)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCategoryResponse(updated))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Expenses under the deleted category move to reassign_to, or become
	// uncategorized when it is absent.
	reassignTo := queryInt64(r, "reassign_to")

	if err := s.repo.DeleteCategory(r.Context(), currentUser(r).ID, id, reassignTo); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

type categoryStatResponse struct {
	CategoryID   int64  `json:"category_id"`
	Name         string `json:"name"`
	Color        string `json:"color,omitempty"`
	Icon         string `json:"icon,omitempty"`
	ExpenseCount int64  `json:"expense_count"`
	TotalCents   int64  `json:"total_cents"`
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.CategoryStats(r.Context(), currentUser(r).ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]categoryStatResponse, 0, len(stats))
	for _, st := range stats {
		resp = append(resp, categoryStatResponse{
			CategoryID:   st.CategoryID,
			Name:         st.Name,
			Color:        st.Color,
			Icon:         st.Icon,
			ExpenseCount: st.ExpenseCount,
			TotalCents:   st.TotalCents,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
