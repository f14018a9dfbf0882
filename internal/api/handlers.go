package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rewardLedger/internal/indexer"
	"rewardLedger/internal/model"
	"rewardLedger/internal/reward"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (s *Server) refreshRewards(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	logger.Info("manual rewards refresh requested")

	result, err := s.deps.Rewards.Refresh(r.Context())
	if err != nil {
		logger.Error("manual rewards refresh failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to refresh rewards")
		return
	}

	switch result.Status {
	case reward.StatusSkipped:
		logger.Warn("manual rewards refresh skipped")
		writeResult(w, http.StatusConflict, result, "error", "Refresh already in progress")
	case reward.StatusNoChange:
		writeResult(w, http.StatusOK, result, "message", "No new rewards detected.")
	case reward.StatusInitialized:
		logger.Info("validator rewards initialized", zap.Uint64("epoch", result.Epoch))
		writeResult(w, http.StatusCreated, result, "message", "Initialized validator rewards dataset.")
	default:
		logger.Info("manual rewards refresh persisted new rewards", zap.Uint64("epoch", result.Epoch))
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) refreshEvents(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	result, err := s.deps.Events.Refresh(r.Context())
	if err != nil {
		logger.Error("manual events refresh failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to refresh events")
		return
	}
	if result.Status == indexer.SyncSkipped {
		writeResult(w, http.StatusConflict, result, "error", "Refresh already in progress")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := s.deps.Store.ListRewards(r.Context(), s.deps.Operator)
	if err != nil {
		s.requestLogger(r).Error("list rewards failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list rewards")
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (s *Server) listRewardActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.deps.Store.ListRewardActions(r.Context())
	if err != nil {
		s.requestLogger(r).Error("list reward actions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list reward actions")
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) rewardActionsSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rewards, err := s.deps.Store.ListRewards(ctx, s.deps.Operator)
	if err != nil {
		s.requestLogger(r).Error("list rewards failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to compute summary")
		return
	}
	actions, err := s.deps.Store.ListRewardActions(ctx)
	if err != nil {
		s.requestLogger(r).Error("list reward actions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to compute summary")
		return
	}

	balance := reward.ComputeBalance(rewards, actions)
	tokens := decimal.NewFromBigInt(balance.Available, -s.tokenDecimals())
	out := map[string]interface{}{}
	if err := merge(out, balance); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute summary")
		return
	}
	out["availableTokens"] = model.FormatTokenAmount(balance.Available, s.tokenDecimals())
	if s.deps.Price != nil {
		quote := s.deps.Price.Price(ctx)
		out["availableUsd"] = tokens.Mul(quote.Price).StringFixed(2)
	}
	writeJSON(w, http.StatusOK, out)
}

type pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

type eventsPage struct {
	Data       []model.ContractEvent `json:"data"`
	Pagination pagination            `json:"pagination"`
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	page, err := positiveQueryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pageSize, err := positiveQueryInt(r, "pageSize", defaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if pageSize > maxPageSize {
		writeError(w, http.StatusBadRequest, "pageSize must be at most "+strconv.Itoa(maxPageSize))
		return
	}

	events, total, err := s.deps.Store.ListEvents(r.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		s.requestLogger(r).Error("list events failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []model.ContractEvent{}
	}
	writeJSON(w, http.StatusOK, eventsPage{
		Data: events,
		Pagination: pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: (total + int64(pageSize) - 1) / int64(pageSize),
		},
	})
}

func (s *Server) latestEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.deps.Store.LatestEvent(r.Context())
	if err != nil {
		s.requestLogger(r).Error("latest event failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load latest event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": event})
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	if s.deps.Price == nil {
		writeError(w, http.StatusNotFound, "price service disabled")
		return
	}
	quote := s.deps.Price.Price(r.Context())
	price, _ := quote.Price.Float64()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"price":    price,
		"currency": quote.Currency,
		"source":   quote.Source,
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.logger.With(zap.String("request_id", RequestID(r.Context())))
}

func (s *Server) tokenDecimals() int32 {
	if s.deps.TokenDecimals <= 0 {
		return 18
	}
	return s.deps.TokenDecimals
}

func positiveQueryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, &queryError{key: key, value: raw}
	}
	return v, nil
}

type queryError struct {
	key   string
	value string
}

func (e *queryError) Error() string {
	return e.key + " must be a positive integer, got " + strconv.Quote(e.value)
}

// writeResult flattens a pass result into the response body next to one
// extra field, so clients see status and message at the same level.
func writeResult(w http.ResponseWriter, status int, result interface{}, key, value string) {
	out := map[string]interface{}{}
	if err := merge(out, result); err != nil {
		writeError(w, http.StatusInternalServerError, "encode result")
		return
	}
	out[key] = value
	writeJSON(w, status, out)
}

func merge(dst map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, &dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
