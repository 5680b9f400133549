package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/limetech/storeledger/internal/application/ledger"
	domain "github.com/limetech/storeledger/internal/domain/catalog"
	"github.com/limetech/storeledger/internal/infrastructure/audit"
	"github.com/limetech/storeledger/internal/observability"
	"github.com/limetech/storeledger/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	ledger *ledger.Service
	trail  *audit.Trail
	log    observability.Logger
	tel    observability.Observability
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerCaller         = "X-Caller-Address"
)

func NewHandler(ledgerSvc *ledger.Service, trail *audit.Trail, logger observability.Logger,
	tel observability.Observability,
) *Handler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	return &Handler{
		ledger: ledgerSvc,
		trail:  trail,
		log:    baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:    tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Handler
	h.muxHandle(mux, http.MethodPost, "/products/add", h.handleAddProduct)
	h.muxHandle(mux, http.MethodPost, "/products/quantity", h.handleAdjustQuantity)
	h.muxHandle(mux, http.MethodPost, "/products/price", h.handleChangePrice)
	h.muxHandle(mux, http.MethodPost, "/products/buy", h.handleBuy)
	h.muxHandle(mux, http.MethodPost, "/products/return", h.handleReturn)
	h.muxHandle(mux, http.MethodPost, "/products/remove", h.handleRemoveProduct)
	h.muxHandle(mux, http.MethodPost, "/products/withdraw", h.handleWithdraw)
	h.muxHandle(mux, http.MethodGet, "/products", h.handleListProducts)
	h.muxHandle(mux, http.MethodGet, "/product", h.handleGetProduct)
	h.muxHandle(mux, http.MethodGet, "/product/owners", h.handleOwners)
	h.muxHandle(mux, http.MethodGet, "/product/buyers", h.handleBuyers)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), route)
		r = r.WithContext(ctx)

		// Wrap: Trace → Request Logger → Metrics → Access Log → Handler
		wrapped := h.withTrace(
			ObservabilityMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
				h.tel,
			)(
				h.withAccessLog(
					h.withHTTPMetrics(http.HandlerFunc(handler)),
				),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

func callerOf(r *http.Request) domain.Address {
	return domain.Address(r.Header.Get(headerCaller))
}

type addProductRequest struct {
	Name     string `json:"name"`
	Quantity uint64 `json:"quantity"`
	Price    uint64 `json:"price"`
}

type addProductResponse struct {
	ProductID uint64 `json:"product_id"`
}

func (h *Handler) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := h.ledger.AddProduct(r.Context(), callerOf(r), ledger.AddProductInput{
		Name:     req.Name,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addProductResponse{ProductID: id})
}

type adjustQuantityRequest struct {
	ProductID uint64 `json:"product_id"`
	Amount    uint64 `json:"amount"`
	Increase  bool   `json:"increase"`
}

func (h *Handler) handleAdjustQuantity(w http.ResponseWriter, r *http.Request) {
	var req adjustQuantityRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.ledger.AdjustQuantity(r.Context(), callerOf(r), req.ProductID, req.Amount, req.Increase); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type changePriceRequest struct {
	ProductID uint64 `json:"product_id"`
	Price     uint64 `json:"price"`
}

func (h *Handler) handleChangePrice(w http.ResponseWriter, r *http.Request) {
	var req changePriceRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.ledger.ChangePrice(r.Context(), callerOf(r), req.ProductID, req.Price); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type buyRequest struct {
	ProductID uint64 `json:"product_id"`
	Quantity  uint64 `json:"quantity"`
	Payment   uint64 `json:"payment"`
}

func (h *Handler) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.ledger.Buy(r.Context(), callerOf(r), req.ProductID, req.Quantity, req.Payment); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type returnRequest struct {
	ProductID uint64 `json:"product_id"`
	Quantity  uint64 `json:"quantity"`
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.ledger.Return(r.Context(), callerOf(r), req.ProductID, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type removeProductRequest struct {
	ProductID uint64 `json:"product_id"`
}

func (h *Handler) handleRemoveProduct(w http.ResponseWriter, r *http.Request) {
	var req removeProductRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.ledger.RemoveProduct(r.Context(), callerOf(r), req.ProductID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type withdrawRequest struct {
	ProductID uint64 `json:"product_id"`
}

type withdrawResponse struct {
	ProductID uint64 `json:"product_id"`
	Amount    uint64 `json:"amount"`
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	amount, err := h.ledger.Withdraw(r.Context(), callerOf(r), req.ProductID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{ProductID: req.ProductID, Amount: amount})
}

type productView struct {
	ProductID uint64 `json:"product_id"`
	Name      string `json:"name"`
	Quantity  uint64 `json:"quantity"`
	UnitPrice uint64 `json:"unit_price"`
	TotalSold uint64 `json:"total_sold"`
	Escrow    uint64 `json:"escrow"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.ledger.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, viewOf(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := h.ledger.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(product))
}

type ownersResponse struct {
	ProductID uint64           `json:"product_id"`
	Owners    []domain.Address `json:"owners"`
}

func (h *Handler) handleOwners(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	owners, err := h.ledger.OwnersOf(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ownersResponse{ProductID: id, Owners: owners})
}

type buyersResponse struct {
	ProductID uint64           `json:"product_id"`
	Buyers    []domain.Address `json:"buyers"`
}

// handleBuyers serves the historical projection derived from the audit trail:
// everyone who ever bought the product, including past owners.
func (h *Handler) handleBuyers(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := h.ledger.GetProduct(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buyersResponse{ProductID: id, Buyers: h.trail.BuyersOf(id)})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func viewOf(p *domain.Product) productView {
	return productView{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  p.Quantity,
		UnitPrice: p.UnitPrice,
		TotalSold: p.TotalSold,
		Escrow:    p.Escrow,
	}
}

func queryID(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		return 0, errors.New("id query parameter is required")
	}
	return strconv.ParseUint(raw, 10, 64)
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("storeledger.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		if h.tel != nil {
			metrics := h.tel.Metrics()
			metrics.Counter(observability.MHTTPRequests).Add(1,
				observability.L("method", r.Method),
				observability.L("route", routeFromContext(r.Context())),
				observability.L("status", strconv.Itoa(lrw.status)),
			)
			metrics.Histogram(observability.MHTTPRequestDuration).Observe(time.Since(start).Seconds(),
				observability.L("method", r.Method),
				observability.L("route", routeFromContext(r.Context())),
				observability.L("status", strconv.Itoa(lrw.status)),
			)
		}
	})
}

func decodeJSON(ctx context.Context, r *http.Request, dst any) error {
	_ = ctx
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrNotOwned):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrBlankField),
		errors.Is(err, domain.ErrIllegalQuantity),
		errors.Is(err, domain.ErrIllegalPrice):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrInsufficientPayment):
		writeError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, domain.ErrProductExists),
		errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrAlreadyOwned),
		errors.Is(err, domain.ErrWarrantyExpired),
		errors.Is(err, domain.ErrHasActiveOwners):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
