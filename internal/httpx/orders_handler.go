package httpx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/logx"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderCache is the read-through cache in front of GetOrder.
type OrderCache interface {
	Get(ctx context.Context, id int64, load func(context.Context) (orders.Order, error)) (orders.Order, error)
	Invalidate(ctx context.Context, id int64) error
}

// Idempotency guards POST /orders retries that carry an Idempotency-Key.
type Idempotency interface {
	Begin(ctx context.Context, key, fingerprint string) (int64, error)
	Complete(ctx context.Context, key, fingerprint string, orderID int64) error
	Abort(ctx context.Context, key string) error
}

type OrdersHandler struct {
	Orders        *orders.Service
	Authenticator *Authenticator
	Cache         OrderCache  // optional
	Idem          Idempotency // optional
	Log           *logrus.Entry
}

type CreateOrderReq struct {
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	PhoneNumber string         `json:"phone_number"`
	StatusID    *int64         `json:"statusId"`
	Items       []OrderItemReq `json:"items"`
}

type OrderItemReq struct {
	ProductID int64            `json:"productId"`
	Amount    int              `json:"amount"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type UpdateStatusReq struct {
	StatusID *int64 `json:"statusId"`
}

type AddOpinionReq struct {
	Rating      int        `json:"rating"`
	Content     string     `json:"content"`
	OpinionDate *time.Time `json:"opinion_date"`
}

type OrderResp struct {
	Order orders.Order `json:"order"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/status", h.listStatuses)
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/status/{id}", h.listByStatus)
		r.Get("/{id}", h.getOrder)
		r.With(h.Authenticator.Authenticate, h.Authenticator.RequireRole(auth.RoleEmployee)).
			Put("/{id}", h.updateStatus)
		r.With(h.Authenticator.Authenticate).Post("/{id}/opinions", h.addOpinion)
	})
}

func (h *OrdersHandler) listStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"statuses": h.Orders.Statuses()})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListOrders(ctx)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *OrdersHandler) listByStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "status id has to be an integer greater than 0")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListOrdersByStatus(ctx, id)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "order id has to be an integer greater than 0")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var o orders.Order
	var err error
	if h.Cache != nil {
		o, err = h.Cache.Get(ctx, id, func(ctx context.Context) (orders.Order, error) {
			return h.Orders.GetOrder(ctx, id)
		})
	} else {
		o, err = h.Orders.GetOrder(ctx, id)
	}
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderResp{Order: o})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "request body must be valid JSON")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	log := logx.FromContext(ctx, h.Log)

	key := r.Header.Get("Idempotency-Key")
	fp := fingerprint(req)
	if key != "" && h.Idem != nil {
		existing, err := h.Idem.Begin(ctx, key, fp)
		switch {
		case errors.Is(err, redisx.ErrInProgress):
			writeError(w, http.StatusConflict, "conflict", err.Error())
			return
		case errors.Is(err, redisx.ErrKeyReused):
			writeError(w, http.StatusUnprocessableEntity, "idempotency_key_reused", err.Error())
			return
		case err != nil:
			// Redis is a fast path only; carry on without replay protection
			log.WithError(err).Warn("idempotency unavailable")
			key = ""
		case existing > 0:
			o, err := h.Orders.GetOrder(ctx, existing)
			if err != nil {
				writeAppError(w, r, h.Log, err)
				return
			}
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, OrderResp{Order: o})
			return
		}
	}

	in := orders.CreateOrderInput{
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		StatusID:    req.StatusID,
		Items:       make([]orders.ItemInput, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, orders.ItemInput{ProductID: it.ProductID, Amount: it.Amount, UnitPrice: it.UnitPrice})
	}

	o, err := h.Orders.CreateOrder(ctx, in)
	if err != nil {
		if key != "" {
			_ = h.Idem.Abort(context.WithoutCancel(ctx), key)
		}
		writeAppError(w, r, h.Log, err)
		return
	}
	if key != "" {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), key, fp, o.ID); err != nil {
			log.WithError(err).WithField("order_id", o.ID).Warn("store idempotency key")
		}
	}
	metrics.RecordOrderCreated(o.Status.String())
	writeJSON(w, http.StatusCreated, OrderResp{Order: o})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "order id has to be an integer greater than 0")
		return
	}
	var req UpdateStatusReq
	if err := decodeJSON(r, &req); err != nil || req.StatusID == nil {
		writeError(w, http.StatusBadRequest, "validation_error", "statusId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	to := statusLabel(*req.StatusID)
	o, err := h.Orders.TransitionStatus(ctx, id, *req.StatusID)
	if err != nil {
		metrics.RecordTransition(to, resultLabel(err))
		writeAppError(w, r, h.Log, err)
		return
	}
	metrics.RecordTransition(to, "ok")
	h.invalidate(ctx, id)
	writeJSON(w, http.StatusOK, OrderResp{Order: o})
}

func (h *OrdersHandler) addOpinion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "order id has to be an integer greater than 0")
		return
	}
	var req AddOpinionReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "rating must be an integer and content a string")
		return
	}
	ident, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	op, err := h.Orders.AddOpinion(ctx, id,
		orders.Caller{UserID: ident.UserID, Login: ident.Login, Role: string(ident.Role)},
		orders.OpinionInput{Rating: req.Rating, Content: req.Content, OpinionDate: req.OpinionDate},
	)
	if err != nil {
		metrics.RecordOpinion(resultLabel(err))
		writeAppError(w, r, h.Log, err)
		return
	}
	metrics.RecordOpinion("ok")
	h.invalidate(ctx, id)
	writeJSON(w, http.StatusCreated, map[string]any{"opinion": op})
}

// invalidate drops the cached order right away; the events projector does
// the same for other replicas.
func (h *OrdersHandler) invalidate(ctx context.Context, id int64) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(context.WithoutCancel(ctx), id); err != nil {
		logx.FromContext(ctx, h.Log).WithError(err).WithField("order_id", id).Warn("invalidate cached order")
	}
}

// fingerprint identifies the decoded request so a reused idempotency key can
// be told apart from a retry.
func fingerprint(req CreateOrderReq) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// statusLabel keeps the metric label set closed.
func statusLabel(id int64) string {
	if s, ok := orders.ParseStatus(id); ok {
		return s.String()
	}
	return "unknown"
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "rejected"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
