package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/davidahmann/checkout/internal/auth"
	"github.com/davidahmann/checkout/internal/checkout"
	"github.com/davidahmann/checkout/internal/gateway"
	"github.com/davidahmann/checkout/internal/session"
	"github.com/davidahmann/checkout/pkg/types"
)

// maxBody caps request bodies; wallet client data is the largest payload.
const maxBody = 1 << 20

type Handler struct {
	Auth   auth.Authenticator
	Orders *checkout.Orders
	// Vault is nil when the configured processor has no vault support.
	Vault  *checkout.Vault
	Logger *slog.Logger
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req types.CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := checkout.CreateInput{
		ProductRef:         req.ProductRef,
		Region:             req.Region,
		PaymentMethod:      req.PaymentMethod,
		ShippingPreference: gateway.ShippingPreference(req.ShippingPreference),
		Shipping:           fromAddress(req.Shipping),
		ClientData:         req.ClientData,
	}
	if req.Vault {
		in.Vault = &gateway.VaultOnSuccess{ShopperReference: req.ShopperReference}
	}
	if req.Amount != "" {
		if claimed, err := decimal.NewFromString(req.Amount); err == nil {
			in.ClaimedAmount = &claimed
		}
	}

	intent, err := h.Orders.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrder(intent))
}

func (h *Handler) AmendOrder(w http.ResponseWriter, r *http.Request) {
	var req types.AmendOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	intent, err := h.Orders.Amend(r.Context(), checkout.AmendInput{
		IntentID: chi.URLParam(r, "id"),
		Region:   req.Region,
		Shipping: fromAddress(req.Shipping),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(intent))
}

func (h *Handler) FinalizeOrder(w http.ResponseWriter, r *http.Request) {
	var req types.FinalizeOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Orders.Finalize(r.Context(), checkout.FinalizeInput{
		IntentID: chi.URLParam(r, "id"),
		Details:  req.Details,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlement(s))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	intent, err := h.Orders.Fetch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(intent))
}

func (h *Handler) CreateSetupToken(w http.ResponseWriter, r *http.Request) {
	if !h.ensureVault(w) {
		return
	}
	var req types.SetupTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.Vault.CreateSetup(r.Context(), gateway.UsageContext{
		UsageType:          req.UsageType,
		CustomerType:       req.CustomerType,
		ShippingPreference: gateway.ShippingPreference(req.ShippingPreference),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSetupToken(st))
}

func (h *Handler) Tokenize(w http.ResponseWriter, r *http.Request) {
	if !h.ensureVault(w) {
		return
	}
	pt, err := h.Vault.Tokenize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.PaymentToken{ID: pt.ID, CustomerID: pt.CustomerID})
}

func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	if !h.ensureVault(w) {
		return
	}
	var req types.ChargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, types.Error{
			Error: "amount must be a decimal string",
			Kind:  string(checkout.KindInvalidInput),
		})
		return
	}
	s, err := h.Vault.Charge(r.Context(), checkout.ChargeInput{
		PaymentTokenID: chi.URLParam(r, "id"),
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlement(s))
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.Auth.Authenticate(r); err != nil {
			writeJSON(w, http.StatusUnauthorized, types.Error{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) ensureVault(w http.ResponseWriter) bool {
	if h.Vault == nil {
		writeJSON(w, http.StatusNotImplemented, types.Error{Error: gateway.ErrUnsupported.Error()})
		return false
	}
	return true
}

// decode reads an optional JSON body. An empty body leaves dst untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, types.Error{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err)
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, types.Error) {
	body := types.Error{Error: err.Error()}

	var validation *checkout.ValidationError
	var expired *session.ExpiredError
	var remote *gateway.RemoteError
	switch {
	case errors.As(err, &validation):
		body.Kind = string(validation.Kind)
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, checkout.ErrIntentNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, checkout.ErrSettlementPending):
		return http.StatusAccepted, body
	case errors.As(err, &expired):
		body.ElapsedMinutes = expired.ElapsedMinutes()
		body.BudgetMinutes = expired.BudgetMinutes()
		return http.StatusGone, body
	case errors.As(err, &remote):
		body.Processor = remote.Processor
		body.RemoteStatus = remote.StatusCode
		body.Payload = remote.Payload
		return http.StatusBadGateway, body
	case errors.Is(err, gateway.ErrUnsupported):
		return http.StatusNotImplemented, body
	}
	return http.StatusInternalServerError, types.Error{Error: "internal error"}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
