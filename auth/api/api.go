// Package api exposes signup, signin and user management over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/andrebq/gatekeeper/auth"
	"github.com/andrebq/gatekeeper/credential"
	"github.com/andrebq/gatekeeper/internal/logutil"
	"github.com/andrebq/gatekeeper/session"
	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

const (
	maxBodySize = 64 * 1024
)

type (
	credentialsRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	updateRequest struct {
		Email    *string `json:"email" validate:"omitempty,email"`
		Password *string `json:"password" validate:"omitempty,min=1"`
	}

	// userResponse is the only representation of a user that leaves the
	// server, the password hash is never part of it.
	userResponse struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}

	handlers struct {
		svc      *auth.Service
		sessions *session.Manager
		validate *validator.Validate
	}
)

// AsHandler returns the /auth routes. Sessions are loaded and the current
// user is resolved before any route runs.
func AsHandler(ctx context.Context, svc *auth.Service, sessions *session.Manager) http.Handler {
	h := &handlers{
		svc:      svc,
		sessions: sessions,
		validate: validator.New(),
	}
	router := httprouter.New()
	router.POST("/auth/signup", h.signup)
	router.POST("/auth/signin", h.signin)
	router.POST("/auth/signout", h.signout)
	router.GET("/auth/whoami", h.whoami)
	router.GET("/auth", h.findUsers)
	router.GET("/auth/users/:id", h.findUser)
	router.PATCH("/auth/users/:id", h.updateUser)
	router.DELETE("/auth/users/:id", h.removeUser)
	return sessions.Load(WithCurrentUser(svc, router))
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.svc.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.attach(w, r, u) {
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(u))
}

func (h *handlers) signin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.svc.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.attach(w, r, u) {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(u))
}

func (h *handlers) signout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess := session.FromContext(r.Context())
	if err := h.sessions.Clear(w, r, sess); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) whoami(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	u := CurrentUserFrom(r.Context())
	if u == nil {
		http.Error(w, "Forbidden resource", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(u))
}

func (h *handlers) findUsers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	users, err := h.svc.Users(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) findUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := userID(w, ps)
	if !ok {
		return
	}
	u, err := h.svc.User(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(u))
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := userID(w, ps)
	if !ok {
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.svc.Update(r.Context(), id, auth.UpdateRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(u))
}

func (h *handlers) removeUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := userID(w, ps)
	if !ok {
		return
	}
	u, err := h.svc.Remove(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(u))
}

// attach marks u as the owner of the request session
func (h *handlers) attach(w http.ResponseWriter, r *http.Request, u *auth.User) bool {
	sess := session.FromContext(r.Context())
	sess.UserID = u.ID
	if err := h.sessions.Save(w, r, sess); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(out); err != nil {
		http.Error(w, "unable to decode request body", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// fail translates err into a response, anything that is not a known
// domain error is logged and reported as an internal error.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		conflict    auth.Conflict
		notFound    auth.NotFound
		invalid     auth.InvalidCredentials
		rejected    auth.SignupRejected
		malformed   credential.MalformedStoredValue
		status      int
		description string
	)
	switch {
	case errors.As(err, &conflict):
		status, description = http.StatusConflict, conflict.Error()
	case errors.As(err, &notFound):
		status, description = http.StatusNotFound, "User not found"
	case errors.As(err, &invalid):
		status, description = http.StatusUnauthorized, "Invalid Credentials"
	case errors.As(err, &rejected):
		status, description = http.StatusForbidden, rejected.Error()
	default:
		log := logutil.GetOrDefault(r.Context())
		ev := log.Error().Err(err).Str("http.path", r.URL.Path)
		if errors.As(err, &malformed) {
			ev = ev.Bool("data.corrupted", true)
		}
		ev.Msg("Unexpected error while handling request")
		status, description = http.StatusInternalServerError, "unable to process request, check logs for more information"
	}
	http.Error(w, description, status)
}

func userID(w http.ResponseWriter, ps httprouter.Params) (int64, bool) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func toResponse(u *auth.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "unable to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.WriteHeader(status)
	w.Write(buf)
}
