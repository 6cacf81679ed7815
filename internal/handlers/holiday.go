package handlers

import (
	"net/http"
	"strconv"
	"time"

	"festhub-backend/internal/models"
	"festhub-backend/internal/repository"
)

type HolidayHandler struct {
	repo *repository.HolidayRepo
}

func NewHolidayHandler(repo *repository.HolidayRepo) *HolidayHandler {
	return &HolidayHandler{repo: repo}
}

// List returns the festival calendar for ?year (default: current year),
// optionally narrowed with ?month=1-12.
func (h *HolidayHandler) List(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1900 || parsed > 2200 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "year must be a plausible four-digit year", r))
			return
		}
		year = parsed
	}

	month := 0
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 12 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "month must be between 1 and 12", r))
			return
		}
		month = parsed
	}

	holidays, err := h.repo.ListByYear(r.Context(), year, month)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to retrieve calendar", r))
		return
	}
	if holidays == nil {
		holidays = []*models.Holiday{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":     year,
		"holidays": holidays,
	})
}
