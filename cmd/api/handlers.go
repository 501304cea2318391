package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/safar/localmeat/internal/models"
	"github.com/safar/localmeat/internal/store"
	"github.com/shopspring/decimal"
)

type server struct {
	market *store.Marketplace
	logger *slog.Logger
}

func newServer(market *store.Marketplace, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{market: market, logger: logger}
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/session", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/session", s.handleLogout).Methods(http.MethodDelete)
	r.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/session/profile", s.handleUpdateProfile).Methods(http.MethodPatch)

	r.HandleFunc("/users/{id}", s.handleUserByID).Methods(http.MethodGet)

	r.HandleFunc("/farms", s.handleFarms).Methods(http.MethodGet)
	r.HandleFunc("/farms/mine", s.handleMyFarm).Methods(http.MethodGet)
	r.HandleFunc("/farms/{id}", s.handleFarmByID).Methods(http.MethodGet)
	r.HandleFunc("/farms/{id}/contact", s.handleContactFarm).Methods(http.MethodPost)
	r.HandleFunc("/meat-types", s.handleMeatTypes).Methods(http.MethodGet)

	r.HandleFunc("/requests", s.handlePostRequest).Methods(http.MethodPost)
	r.HandleFunc("/requests/open", s.handleOpenRequests).Methods(http.MethodGet)
	r.HandleFunc("/requests/mine", s.handleMyRequests).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}", s.handleRequestByID).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}/responses", s.handleRespond).Methods(http.MethodPost)
	r.HandleFunc("/requests/{id}/accept", s.handleAccept).Methods(http.MethodPost)

	r.HandleFunc("/conversations", s.handleConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", s.handleConversationByID).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/read", s.handleMarkRead).Methods(http.MethodPost)
	r.HandleFunc("/messages", s.handleSendMessage).Methods(http.MethodPost)

	r.HandleFunc("/browse", s.handleBrowse).Methods(http.MethodGet)
	r.HandleFunc("/browse/search", s.handleBrowseSearch).Methods(http.MethodPut)
	r.HandleFunc("/browse/filters", s.handleBrowseFilters).Methods(http.MethodPut)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string      `json:"email"`
		Role  models.Role `json:"role"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.market.Login(r.Context(), req.Email, req.Role)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.market.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := s.market.CurrentUser()
	if !ok {
		s.respondStoreError(w, r, store.ErrNotAuthenticated)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if !decodeBody(w, r, &upd) {
		return
	}

	user, err := s.market.UpdateProfile(r.Context(), upd)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := s.market.User(id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *server) handleFarms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	farms := s.market.FilteredFarms(q.Get("q"), q["type"])
	respondJSON(w, http.StatusOK, store.Paginate(farms, page, pageSize))
}

func (s *server) handleMyFarm(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.market.CurrentUser(); !ok {
		s.respondStoreError(w, r, store.ErrNotAuthenticated)
		return
	}
	farm, ok := s.market.MyFarm()
	if !ok {
		s.respondStoreError(w, r, store.ErrFarmNotFound)
		return
	}
	respondJSON(w, http.StatusOK, farm)
}

func (s *server) handleFarmByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	farm, err := s.market.Farm(id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, farm)
}

func (s *server) handleContactFarm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := s.market.ContactFarm(r.Context(), id, req.Content)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *server) handleMeatTypes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.market.AllMeatTypes())
}

func (s *server) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	var draft models.RequestDraft
	if !decodeBody(w, r, &draft) {
		return
	}

	req, err := s.market.PostRequest(r.Context(), draft)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, req)
}

func (s *server) handleOpenRequests(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.market.OpenRequests())
}

func (s *server) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.market.CurrentUser(); !ok {
		s.respondStoreError(w, r, store.ErrNotAuthenticated)
		return
	}
	respondJSON(w, http.StatusOK, s.market.MyRequests())
}

func (s *server) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	req, err := s.market.Request(id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// handleRespond records an offer from the session user.
func (s *server) handleRespond(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		OfferAmount decimal.Decimal `json:"offer_amount"`
		Message     string          `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	farmer, ok := s.market.CurrentUser()
	if !ok {
		s.respondStoreError(w, r, store.ErrNotAuthenticated)
		return
	}

	resp, err := s.market.RespondToRequest(r.Context(), id, farmer.ID, farmer.Name, req.OfferAmount, req.Message)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (s *server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		ResponseIndex int `json:"response_index"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	accepted, err := s.market.AcceptRequest(r.Context(), id, req.ResponseIndex)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accepted)
}

func (s *server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.market.CurrentUser(); !ok {
		s.respondStoreError(w, r, store.ErrNotAuthenticated)
		return
	}
	respondJSON(w, http.StatusOK, s.market.ConversationsForCurrentUser())
}

func (s *server) handleConversationByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, ok := s.market.CurrentUser()
	if !ok {
		s.respondStoreError(w, r, store.ErrNotAuthenticated)
		return
	}

	conv, err := s.market.Conversation(id)
	if err == nil && !conv.Involves(user.ID) {
		err = store.ErrConversationNotFound
	}
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	n, err := s.market.MarkConversationRead(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (s *server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiverID uuid.UUID `json:"receiver_id"`
		Content    string    `json:"content"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := s.market.SendMessage(r.Context(), req.ReceiverID, req.Content)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

type browseState struct {
	SearchText string        `json:"search_text"`
	Filters    []string      `json:"filters"`
	Farms      []models.Farm `json:"farms"`
}

func (s *server) browseState() browseState {
	return browseState{
		SearchText: s.market.SearchText(),
		Filters:    s.market.FarmFilters(),
		Farms:      s.market.BrowseFarms(),
	}
}

func (s *server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.browseState())
}

func (s *server) handleBrowseSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.market.SetSearchText(req.Text)
	respondJSON(w, http.StatusOK, s.browseState())
}

func (s *server) handleBrowseFilters(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Types []string `json:"types"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.market.SetFarmFilters(req.Types)
	respondJSON(w, http.StatusOK, s.browseState())
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid ID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrRequestClosed):
		return http.StatusConflict
	case errors.Is(err, store.ErrOutOfRange),
		errors.Is(err, store.ErrInvalidRole),
		errors.Is(err, store.ErrInvalidDraft),
		errors.Is(err, store.ErrInvalidProfile),
		errors.Is(err, store.ErrEmptyMessage),
		errors.Is(err, store.ErrSelfMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
