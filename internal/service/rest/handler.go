package rest

import (
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
	"github.com/marcopolo2323/tienda-celular/internal/service/sales"
)

// roleHeader задаёт роль вызывающего. Аутентификация выполняется на внешнем
// периметре, сервис доверяет уже проверенному заголовку.
const roleHeader = "X-Role"

// Handler — HTTP JSON граница движка продаж.
type Handler struct {
	engine  *sales.Engine
	catalog domain.CatalogRepository
	policy  *domain.Policy
	logger  *log.Entry
}

// NewHandler создаёт HTTP-обработчик поверх движка продаж.
func NewHandler(engine *sales.Engine, catalog domain.CatalogRepository, policy *domain.Policy, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	if policy == nil {
		policy = domain.NewPolicy()
	}
	return &Handler{
		engine:  engine,
		catalog: catalog,
		policy:  policy,
		logger:  logger,
	}
}

// Routes собирает маршруты API.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sales", h.requirePermission(domain.PermManageSales, h.createSale))
	mux.HandleFunc("POST /api/sales/{id}/cancel", h.requirePermission(domain.PermManageSales, h.cancelSale))
	mux.HandleFunc("GET /api/sales/{id}", h.requirePermission(domain.PermViewSales, h.saleDetails))
	mux.HandleFunc("GET /api/sales/summary", h.requirePermission(domain.PermViewReports, h.salesSummary))
	mux.HandleFunc("GET /api/catalog/low-stock", h.requirePermission(domain.PermViewProducts, h.lowStock))
	return mux
}

// Middleware логирует каждый запрос и навешивает базовые заголовки.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(ww, r)
		h.logger.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.status,
			"duration": time.Since(start).String(),
		}).Info("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// requirePermission проверяет роль из заголовка по таблице прав.
func (h *Handler) requirePermission(perm domain.Permission, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := domain.Role(r.Header.Get(roleHeader))
		if role == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody("missing role header"))
			return
		}
		if !h.policy.Allows(role, perm) {
			h.logger.WithFields(log.Fields{
				"role":       role,
				"permission": perm,
				"path":       r.URL.Path,
			}).Warn("permission denied")
			writeJSON(w, http.StatusForbidden, errorBody("operation is not permitted for this role"))
			return
		}
		next(w, r)
	}
}

// createSaleRequest — тело POST /api/sales.
type createSaleRequest struct {
	SellerID      string          `json:"seller_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerEmail string          `json:"customer_email"`
	PaymentMethod string          `json:"payment_method"`
	Items         []sales.RawItem `json:"items"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	if req.SellerID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("seller_id is required"))
		return
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	if problems := validateCustomer(req.CustomerName, req.CustomerPhone, req.CustomerEmail, method); len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"errors":  problems,
		})
		return
	}

	result := h.engine.ProcessSale(sales.SaleInput{
		SellerID:      req.SellerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		PaymentMethod: method,
		Items:         req.Items,
	})

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (h *Handler) cancelSale(w http.ResponseWriter, r *http.Request) {
	saleID := r.PathValue("id")
	result := h.engine.CancelSale(saleID)

	status := http.StatusOK
	if !result.Success {
		switch result.Message {
		case "sale not found":
			status = http.StatusNotFound
		case "sale is already cancelled", "sale cannot be cancelled":
			status = http.StatusConflict
		default:
			status = http.StatusUnprocessableEntity
		}
	}
	writeJSON(w, status, result)
}

func (h *Handler) saleDetails(w http.ResponseWriter, r *http.Request) {
	saleID := r.PathValue("id")
	details, err := h.engine.SaleDetails(saleID)
	if err != nil {
		if domain.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorBody("sale not found"))
			return
		}
		h.logger.WithError(err).WithField("sale_id", saleID).Error("sale details failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sale_id": saleID,
		"lines":   details,
	})
}

func (h *Handler) salesSummary(w http.ResponseWriter, r *http.Request) {
	from, ok := parseTimeParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(w, r, "to")
	if !ok {
		return
	}

	summary, err := h.engine.SalesSummary(from, to)
	if err != nil {
		h.logger.WithError(err).Error("sales summary failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListLowStock()
	if err != nil {
		h.logger.WithError(err).Error("low stock report failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	type lowStockItem struct {
		Kind  domain.ProductKind `json:"kind"`
		ID    int64              `json:"id"`
		Name  string             `json:"name"`
		Stock int32              `json:"stock"`
	}
	items := make([]lowStockItem, 0, len(products))
	for _, p := range products {
		items = append(items, lowStockItem{Kind: p.Kind, ID: p.ID, Name: p.Name, Stock: p.Stock})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// parseTimeParam разбирает необязательный RFC3339-параметр запроса.
func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(name+" must be RFC3339"))
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(message string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"message": message,
	}
}
