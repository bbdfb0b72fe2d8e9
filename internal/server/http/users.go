package httpserver

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/and161185/winecellar/internal/convert"
	"github.com/and161185/winecellar/internal/errs"
	"github.com/gorilla/mux"
)

// formList merges repeated and space-separated values of a form field.
func formList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.PostForm[name] {
		out = append(out, strings.Fields(v)...)
	}
	return out
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// login implements the OAuth2 password grant.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed form body")
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		writeDetail(w, http.StatusBadRequest, "username and password are required")
		return
	}
	tok, err := s.auth.Login(r.Context(), username, password, formList(r, "scope"), remoteIP(r))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			s.metrics.login("rejected")
			writeUnauthorized(w, msgBadLogin, nil)
		case errors.Is(err, errs.ErrRateLimited):
			s.metrics.login("throttled")
			s.writeError(w, r, err)
		default:
			s.writeError(w, r, err)
		}
		return
	}
	s.metrics.login("ok")
	writeJSON(w, http.StatusOK, convert.ToTokenView(tok))
}

func (s *Server) extendedToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed form body")
		return
	}
	days, err := strconv.Atoi(r.PostForm.Get("days_valid"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "days_valid must be an integer")
		return
	}
	tok, err := s.auth.ExtendedToken(r.Context(), r.PostForm.Get("token_user"), formList(r, "scopes"), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToTokenView(tok))
}

func (s *Server) addUser(w http.ResponseWriter, r *http.Request) {
	var req convert.NewOwnerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.auth.CreateUser(r.Context(), req.ToNewUser())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToOwnerView(*u))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req convert.UpdateOwnerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.auth.UpdateUser(r.Context(), mux.Vars(r)["username"], req.ToUserUpdate())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToOwnerView(*u))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromCtx(r.Context())
	username := mux.Vars(r)["username"]
	if err := s.auth.DeleteUser(r.Context(), actor, username); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("User %s deleted", username)})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	us, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToOwnerViews(us))
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	writeJSON(w, http.StatusOK, convert.ToOwnerView(*u))
}
