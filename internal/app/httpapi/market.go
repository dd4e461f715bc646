package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/stockpredict/server/internal/marketclock"
)

func (h *handler) predictions(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date", time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	preds, resolved, err := h.app.Predictions.ForDate(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := map[string]interface{}{
		"predictions":    preds,
		"count":          len(preds),
		"is_market_open": marketclock.IsOpen(marketclock.Now()),
	}
	if !resolved.IsZero() {
		resp["date"] = resolved.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) hourCandles(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	date, err := queryDate(r, "date", marketclock.Today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	candles, source, err := h.app.Candles.HourCandles(r.Context(), code, date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stock_code": code,
		"date":       date.Format("2006-01-02"),
		"source":     source,
		"candles":    candles,
	})
}

func (h *handler) minuteCandles(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	date, err := queryDate(r, "date", marketclock.Today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	interval := 5
	if raw := r.URL.Query().Get("interval"); raw != "" {
		interval, err = strconv.Atoi(raw)
		if err != nil || interval <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid interval: %q", raw))
			return
		}
	}

	candles, source, err := h.app.Candles.MinuteCandles(r.Context(), code, date, interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stock_code": code,
		"date":       date.Format("2006-01-02"),
		"interval":   interval,
		"source":     source,
		"candles":    candles,
	})
}

func (h *handler) searchStocks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	stocks, err := h.app.Stocks.SearchStocks(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stocks)
}
