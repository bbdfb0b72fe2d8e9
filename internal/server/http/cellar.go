package httpserver

import (
	"fmt"
	"net/http"

	"github.com/and161185/winecellar/internal/convert"
)

// owner returns the ID of the authorized caller; routes are always guarded.
func owner(r *http.Request) int64 {
	u, _ := UserFromCtx(r.Context())
	return u.ID
}

func (s *Server) addStorage(w http.ResponseWriter, r *http.Request) {
	var req convert.NewStorageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.cellar.AddStorage(r.Context(), owner(r), req.Location, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToStorageView(*st))
}

func (s *Server) deleteStorage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.cellar.DeleteStorage(r.Context(), owner(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("Storage %d deleted", id)})
}

func (s *Server) addBottles(w http.ResponseWriter, r *http.Request) {
	var req convert.AddBottlesRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.cellar.AddBottles(r.Context(), owner(r), req.ToModel())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.bottles("add", req.Quantity)
	writeJSON(w, http.StatusCreated, convert.ToEntryView(e))
}

func (s *Server) consume(w http.ResponseWriter, r *http.Request) {
	var req convert.ConsumeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := req.ToModel()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	left, rt, err := s.cellar.Consume(r.Context(), owner(r), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.bottles("consume", req.Quantity)
	out := convert.ConsumeView{Remaining: left}
	if rt != nil {
		v := convert.ToRatingView(*rt)
		out.Rating = &v
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req convert.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.cellar.Transfer(r.Context(), owner(r), req.ToModel())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.bottles("transfer", req.Quantity)
	writeJSON(w, http.StatusOK, convert.ToEntryView(e))
}

func (s *Server) addRating(w http.ResponseWriter, r *http.Request) {
	var req convert.RatingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	nr, err := req.ToModel()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rt, err := s.cellar.AddRating(r.Context(), owner(r), nr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToRatingView(*rt))
}

func (s *Server) deleteRating(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.cellar.DeleteRating(r.Context(), owner(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("Rating %d deleted", id)})
}
