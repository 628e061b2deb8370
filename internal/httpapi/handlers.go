package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/domain"
	"salereport/backend/internal/store"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Health())
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Name:  q.Get("product_name"),
		Limit: parsePositiveLimit(q.Get("limit"), 100, 1000),
	}
	for key, dest := range map[string]**float64{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New(key+" must be a number"))
			return
		}
		*dest = &v
	}

	products, err := a.service.ListProducts(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleDummyProducts(w http.ResponseWriter, r *http.Request) {
	var req domain.DummyRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	products, err := a.service.CreateDummyProducts(r.Context(), req.Count)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"products": products})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentCreateRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	payment, err := a.service.CreatePayment(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"payment": payment})
}

func (a *API) handleListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseInstant(q.Get("from"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseInstant(q.Get("to"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	filter := domain.PaymentFilter{
		ProductID: strings.TrimSpace(q.Get("product_id")),
		From:      from,
		To:        to,
		Limit:     parsePositiveLimit(q.Get("limit"), 100, 1000),
	}
	if raw := strings.TrimSpace(q.Get("shop_id")); raw != "" {
		filter.Shops = strings.Split(raw, ",")
	}

	payments, err := a.service.ListPayments(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (a *API) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := a.service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": payment})
}

func (a *API) handleDummyPayments(w http.ResponseWriter, r *http.Request) {
	var req domain.DummyRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	payments, err := a.service.CreateDummyPayments(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"count": len(payments), "payments": payments})
}

func (a *API) handleShopTotal(w http.ResponseWriter, r *http.Request) {
	total, err := a.service.ShopTotal(r.Context(), chi.URLParam(r, "shopId"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, total)
}

func parseDayQuery(r *http.Request) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return nil, nil
	}
	day, err := bizday.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func (a *API) handleListOrderLines(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	lines, err := a.service.ListOrderLines(r.Context(), domain.OrderLineFilter{
		ShopID:    strings.TrimSpace(q.Get("shop_id")),
		ProductID: strings.TrimSpace(q.Get("product_id")),
		Day:       day,
		Limit:     parsePositiveLimit(q.Get("limit"), 100, 1000),
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_lines": lines})
}

func (a *API) handleGetOrderLine(w http.ResponseWriter, r *http.Request) {
	line, err := a.service.GetOrderLine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_line": line})
}

func (a *API) handleProductRevenue(w http.ResponseWriter, r *http.Request) {
	revenue, err := a.service.ProductRevenue(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revenue)
}

func (a *API) handleListSaleOrders(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	orders, err := a.service.ListSaleOrders(r.Context(), domain.SaleOrderFilter{
		ShopID: strings.TrimSpace(q.Get("shop_id")),
		Day:    day,
		Limit:  parsePositiveLimit(q.Get("limit"), 100, 1000),
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale_orders": orders})
}

func (a *API) handleGetSaleOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.GetSaleOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale_order": order})
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	var req domain.DailyReportRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.GenerateDailyReport(r.Context(), req.Date)
	a.writeReport(w, result, err)
}

func (a *API) handleRebuildDailyReport(w http.ResponseWriter, r *http.Request) {
	var req domain.DailyReportRebuildRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.RebuildDailyReport(r.Context(), req.Date, req.ClearCache)
	a.writeReport(w, result, err)
}

// writeReport keeps the partial result in the body when some shops failed.
func (a *API) writeReport(w http.ResponseWriter, result domain.DailyReportResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	if errors.Is(err, store.ErrInvalidInput) || result.Date == "" {
		a.writeServiceError(w, err)
		return
	}

	status := statusFor(err)
	if status >= 500 {
		a.logger.Error("daily report failed", zap.String("date", result.Date), zap.Error(err))
	}
	writeJSON(w, status, map[string]any{
		"error":  err.Error(),
		"report": result,
	})
}
