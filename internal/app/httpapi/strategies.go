package httpapi

import (
	"errors"
	"net/http"

	"github.com/stockpredict/server/internal/app/domain/strategy"
	ordersvc "github.com/stockpredict/server/internal/app/services/orders"
	strategysvc "github.com/stockpredict/server/internal/app/services/strategies"
	"github.com/stockpredict/server/internal/marketclock"
	"github.com/stockpredict/server/internal/middleware"
)

func (h *handler) strategyCatalog(w http.ResponseWriter, r *http.Request) {
	info, weights, err := h.app.Strategies.Catalog(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies":   info,
		"weight_types": weights,
	})
}

func (h *handler) listStrategies(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.ownAccount(w, r)
	if !ok {
		return
	}
	subs, err := h.app.Strategies.List(r.Context(), acct.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *handler) createStrategy(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.ownAccount(w, r)
	if !ok {
		return
	}

	var payload struct {
		StrategyID       int64   `json:"strategy_id"`
		WeightTypeID     int64   `json:"weight_type_id"`
		InvestmentWeight float64 `json:"investment_weight"`
		LossCutRatio     float64 `json:"loss_cut_ratio"`
		TakeProfitRatio  float64 `json:"take_profit_ratio"`
		IsAuto           bool    `json:"is_auto"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	us, err := h.app.Strategies.Create(r.Context(), strategysvc.CreateRequest{
		AccountID:        acct.ID,
		StrategyID:       payload.StrategyID,
		WeightTypeID:     payload.WeightTypeID,
		InvestmentWeight: payload.InvestmentWeight,
		LossCutRatio:     payload.LossCutRatio,
		TakeProfitRatio:  payload.TakeProfitRatio,
		IsAuto:           payload.IsAuto,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, us)
}

func (h *handler) updateStrategy(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.ownAccount(w, r)
	if !ok {
		return
	}
	sid, err := pathInt64(r, "sid")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var payload struct {
		WeightTypeID     *int64           `json:"weight_type_id"`
		InvestmentWeight *float64         `json:"investment_weight"`
		LossCutRatio     *float64         `json:"loss_cut_ratio"`
		TakeProfitRatio  *float64         `json:"take_profit_ratio"`
		IsAuto           *bool            `json:"is_auto"`
		Status           *strategy.Status `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	us, err := h.app.Strategies.Update(r.Context(), acct.ID, sid, strategysvc.UpdateRequest{
		WeightTypeID:     payload.WeightTypeID,
		InvestmentWeight: payload.InvestmentWeight,
		LossCutRatio:     payload.LossCutRatio,
		TakeProfitRatio:  payload.TakeProfitRatio,
		IsAuto:           payload.IsAuto,
		Status:           payload.Status,
	})
	if err != nil {
		writeServiceError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, us)
}

func (h *handler) deleteStrategy(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.ownAccount(w, r)
	if !ok {
		return
	}
	sid, err := pathInt64(r, "sid")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Strategies.Delete(r.Context(), acct.ID, sid); err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) positions(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.ownAccount(w, r)
	if !ok {
		return
	}
	date, err := queryDate(r, "date", marketclock.Today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	positions, err := h.app.Strategies.Positions(r.Context(), acct.ID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if positions == nil {
		positions = []strategysvc.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (h *handler) dailyStrategies(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.ownAccount(w, r)
	if !ok {
		return
	}
	from, err := queryDate(r, "from", marketclock.Today().AddDate(0, 0, -7))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := queryDate(r, "to", marketclock.Today().AddDate(0, 0, 1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	details, err := h.app.Strategies.DailyStrategies(r.Context(), acct.ID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *handler) monthlyHistory(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.ownAccount(w, r)
	if !ok {
		return
	}
	year, err := pathInt64(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	month, err := pathInt64(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := h.app.History.Monthly(r.Context(), acct.ID, int(year), int(month))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) manualSell(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var payload struct {
		StockCode string  `json:"stock_code"`
		Quantity  int64   `json:"quantity"`
		OrderType string  `json:"order_type"`
		Price     float64 `json:"price"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	signal, err := h.app.Orders.ManualSell(r.Context(), middleware.UserUID(r.Context()), id,
		payload.StockCode, payload.Quantity, payload.OrderType, payload.Price)
	if err != nil {
		if errors.Is(err, ordersvc.ErrSignalNotSent) {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeServiceError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, signal)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	orders, err := h.app.Orders.ListForStock(r.Context(), id)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
