package shared

import (
	"net/http"
	"strconv"
	"time"
)

// Year reads ?year=, defaulting to the current calendar year.
func Year(r *http.Request, now time.Time) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return now.Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 2000 || year > 2100 {
		return 0, false
	}
	return year, true
}
