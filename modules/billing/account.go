package billing

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/productphotostudio/billing/pkg/logger"
	"github.com/productphotostudio/billing/pkg/subscription"
)

// UserIDFunc extracts the authenticated caller from a request. Session
// management lives outside this module.
type UserIDFunc func(r *http.Request) (uuid.UUID, error)

// HeaderUserID reads the caller identity from a header set by an upstream
// gateway.
func HeaderUserID(header string) UserIDFunc {
	return func(r *http.Request) (uuid.UUID, error) {
		raw := strings.TrimSpace(r.Header.Get(header))
		if raw == "" {
			return uuid.Nil, fmt.Errorf("%w: %s header is empty", ErrUnauthenticated, header)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return id, nil
	}
}

// CheckoutRequest is the body of POST /checkout.
type CheckoutRequest struct {
	Tier  subscription.Tier         `json:"tier"`
	Cycle subscription.BillingCycle `json:"cycle"`
	Email string                    `json:"email,omitempty"`
}

// PortalRequest is the optional body of POST /portal.
type PortalRequest struct {
	ReturnURL string `json:"return_url,omitempty"`
}

// PlanView is the public representation of a plan.
type PlanView struct {
	Tier        subscription.Tier                                `json:"tier"`
	Name        string                                           `json:"name"`
	Description string                                           `json:"description,omitempty"`
	Credits     int64                                            `json:"credits"`
	Prices      map[subscription.BillingCycle]subscription.Money `json:"prices,omitempty"`
}

// AccountHandler serves the caller-facing billing endpoints.
type AccountHandler struct {
	svc     subscription.Service
	userID  UserIDFunc
	log     *slog.Logger
	metrics *Metrics
}

// AccountOption configures an AccountHandler.
type AccountOption func(*AccountHandler)

// WithAccountLogger sets the logger.
func WithAccountLogger(l *slog.Logger) AccountOption {
	return func(h *AccountHandler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithAccountMetrics enables Prometheus instrumentation.
func WithAccountMetrics(m *Metrics) AccountOption {
	return func(h *AccountHandler) {
		h.metrics = m
	}
}

// NewAccountHandler creates the account endpoints.
// Panics if svc or userID is nil.
func NewAccountHandler(svc subscription.Service, userID UserIDFunc, opts ...AccountOption) *AccountHandler {
	if svc == nil {
		panic("billing: subscription service is required")
	}
	if userID == nil {
		panic("billing: UserIDFunc is required")
	}
	h := &AccountHandler{
		svc:    svc,
		userID: userID,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("billing_account"))
	return h
}

// Handle implements Mountable.
func (h *AccountHandler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/plans", h.plans)
	r.Get("/subscription", h.getSubscription)
	r.Post("/checkout", h.checkout)
	r.Post("/portal", h.portal)
	return r
}

func (h *AccountHandler) plans(w http.ResponseWriter, r *http.Request) {
	plans := h.svc.Plans()
	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, PlanView{
			Tier:        p.Tier,
			Name:        p.Name,
			Description: p.Description,
			Credits:     p.Credits,
			Prices:      p.Prices,
		})
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *AccountHandler) getSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	sub, err := h.svc.GetSubscription(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (h *AccountHandler) checkout(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	link, err := h.svc.CreateCheckoutLink(r.Context(), userID, req.Tier, req.Cycle, subscription.CheckoutOptions{
		Email: req.Email,
	})
	h.metrics.observeCheckout(tierLabel(req.Tier), cycleLabel(req.Cycle), err)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	h.log.InfoContext(r.Context(), "checkout link created",
		logger.UserID(userID),
		logger.Tier(string(req.Tier)),
		slog.String("cycle", string(req.Cycle)),
	)
	respondJSON(w, http.StatusOK, link)
}

func (h *AccountHandler) portal(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req PortalRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, h.log, err)
			return
		}
	}

	link, err := h.svc.GetCustomerPortalLink(r.Context(), userID, req.ReturnURL)
	h.metrics.observePortal(err)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

func tierLabel(t subscription.Tier) string {
	if !t.Valid() {
		return "invalid"
	}
	return string(t)
}

func cycleLabel(c subscription.BillingCycle) string {
	if !c.Valid() {
		return "invalid"
	}
	return string(c)
}
