// Package http is the checkout facade: one route per user interaction,
// session identity in a header, error shapes stable across handlers.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/FreddRva/posoqo-checkout/internal/checkout/application"
	checkoutdomain "github.com/FreddRva/posoqo-checkout/internal/checkout/domain"
	paymentdomain "github.com/FreddRva/posoqo-checkout/internal/payment/domain"
	profiledomain "github.com/FreddRva/posoqo-checkout/internal/profile/domain"
	"github.com/FreddRva/posoqo-checkout/pkg/sentinel"
)

// SessionHeader carries the checkout session ID on every call after the
// session is opened.
const SessionHeader = "X-Checkout-Session"

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("checkout-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/checkout/session", h.startSession)
	r.Get("/checkout/session", h.getSession)
	r.Delete("/checkout/session", h.endSession)
	r.Post("/checkout/address/query", h.addressQuery)
	r.Get("/checkout/address/suggestions", h.addressSuggestions)
	r.Post("/checkout/address/commit", h.addressCommit)
	r.Post("/checkout/address/position", h.addressPosition)
	r.Put("/checkout/profile", h.saveProfile)
	r.Post("/checkout/continue", h.continueToPayment)
	r.Post("/checkout/pay", h.pay)

	return r
}

type startReq struct {
	UserKey string `json:"user_key"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "StartCheckout")
	defer span.End()

	var req startReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserKey == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	view, err := h.service.Start(ctx, bearerToken(r), req.UserKey)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set(SessionHeader, view.SessionID)
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	h.service.Teardown(sessionID(r))
	w.WriteHeader(http.StatusNoContent)
}

type queryReq struct {
	Query string `json:"query"`
}

func (h *Handler) addressQuery(w http.ResponseWriter, r *http.Request) {
	var req queryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := h.service.SetAddressQuery(sessionID(r), req.Query); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) addressSuggestions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Suggestions(sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": list})
}

type commitReq struct {
	Index int `json:"index"`
}

func (h *Handler) addressCommit(w http.ResponseWriter, r *http.Request) {
	var req commitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	view, err := h.service.CommitAddress(sessionID(r), req.Index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type positionReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *Handler) addressPosition(w http.ResponseWriter, r *http.Request) {
	var req positionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	view, err := h.service.MoveMarker(sessionID(r), req.Lat, req.Lng)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SaveProfile")
	defer span.End()

	var form profiledomain.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	view, err := h.service.SaveProfile(ctx, sessionID(r), bearerToken(r), form)
	if err != nil {
		var verr *profiledomain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": verr.Fields})
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) continueToPayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Continue(sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type payReq struct {
	CardholderName string `json:"cardholder_name"`
	Hosted         bool   `json:"hosted"`
	Card           struct {
		Number   string `json:"number"`
		ExpMonth string `json:"exp_month"`
		ExpYear  string `json:"exp_year"`
		CVC      string `json:"cvc"`
	} `json:"card"`
}

type payResp struct {
	application.View
	RedirectURL string `json:"redirect_url,omitempty"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Pay")
	defer span.End()

	var req payReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	out, err := h.service.Pay(ctx, sessionID(r), bearerToken(r), application.PayInput{
		CardholderName: req.CardholderName,
		Hosted:         req.Hosted,
		Card: paymentdomain.Card{
			Number:   req.Card.Number,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVC:      req.Card.CVC,
		},
	})
	if err != nil {
		var perr *paymentdomain.ProcessorError
		if errors.As(err, &perr) {
			// a decline is a normal outcome: the session view carries the
			// processor's message and stays retryable
			writeJSON(w, http.StatusPaymentRequired, out.View)
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payResp{View: out.View, RedirectURL: out.RedirectURL})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrNoSession):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, checkoutdomain.ErrEmptyCart),
		errors.Is(err, checkoutdomain.ErrProfileIncomplete),
		errors.Is(err, checkoutdomain.ErrWrongStep):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, sentinel.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, sentinel.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, sentinel.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.log.Error("checkout request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func sessionID(r *http.Request) string {
	return r.Header.Get(SessionHeader)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
