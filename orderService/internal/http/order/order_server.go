package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/application/dto/inbound"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/mapper"
	serviceErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/service"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

const maxBodyBytes = 1 << 16

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *serverAPI) createOrder(w http.ResponseWriter, r *http.Request) {
	var body inbound.CreateOrderBody

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	request, err := body.ToRequest()
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	order, err := s.svc.CreateOrder(r.Context(), request)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, mapper.OrderToResponse(order))
}

func (s *serverAPI) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.ListOrders(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.OrdersToResponse(orders))
}

func (s *serverAPI) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := s.svc.GetOrder(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.OrderToResponse(order))
}

func (s *serverAPI) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := s.svc.CancelOrder(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.OrderToResponse(order))
}

func (s *serverAPI) getPrices(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.svc.GetPrices(r.Context(), inbound.ParseTokens(r.URL.Query().Get("tokens")))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.SnapshotToResponse(snapshot))
}

func (s *serverAPI) checkHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "reason": err.Error()})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "id must be UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *serverAPI) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, serviceErrors.ErrValidation):
		var validationErr *serviceErrors.ValidationError
		if errors.As(err, &validationErr) {
			respondError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, serviceErrors.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, serviceErrors.ErrOrderNotFound.Error())
	case errors.Is(err, serviceErrors.ErrAlreadyTerminalOrExecuting):
		respondError(w, http.StatusConflict, serviceErrors.ErrAlreadyTerminalOrExecuting.Error())
	case errors.Is(err, serviceErrors.ErrOrderAlreadyExists):
		respondError(w, http.StatusConflict, serviceErrors.ErrOrderAlreadyExists.Error())
	case errors.Is(err, serviceErrors.ErrRateLimitExceeded):
		respondError(w, http.StatusTooManyRequests, serviceErrors.ErrRateLimitExceeded.Error())
	case errors.Is(err, serviceErrors.ErrOracleUnavailable):
		respondError(w, http.StatusServiceUnavailable, serviceErrors.ErrOracleUnavailable.Error())
	default:
		zapLogger.Error(r.Context(), "request failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
