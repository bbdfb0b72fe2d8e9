package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/and161185/winecellar/internal/convert"
	"github.com/and161185/winecellar/internal/errs"
)

func (s *Server) viewOwners(w http.ResponseWriter, r *http.Request) {
	us, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToOwnerViews(us))
}

func (s *Server) viewStorages(w http.ResponseWriter, r *http.Request) {
	ss, err := s.cellar.ListStorages(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToStorageViews(ss))
}

func (s *Server) viewRatings(w http.ResponseWriter, r *http.Request) {
	wineID, err := queryInt64(r, "wine_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if wineID == nil {
		s.writeError(w, r, fmt.Errorf("wine_id is required: %w", errs.ErrValidation))
		return
	}
	var rater *int64
	if only, _ := strconv.ParseBool(r.URL.Query().Get("only_yours")); only {
		id := owner(r)
		rater = &id
	}
	rs, err := s.cellar.WineRatings(r.Context(), *wineID, rater)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToRatingViews(rs))
}

func (s *Server) viewMyRatings(w http.ResponseWriter, r *http.Request) {
	rs, err := s.cellar.MyRatings(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToRatingViews(rs))
}

func (s *Server) viewBottles(w http.ResponseWriter, r *http.Request) {
	storageID, err := queryInt64(r, "storage_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.cellar.Stock(r.Context(), owner(r), storageID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToStockViews(items))
}

func (s *Server) viewDrinkable(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt64(r, "year")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var y int
	if year != nil {
		y = int(*year)
	}
	items, err := s.cellar.Drinkable(r.Context(), owner(r), y)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToStockViews(items))
}
