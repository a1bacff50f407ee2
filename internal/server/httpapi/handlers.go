package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/skybox/internal/server/models"
)

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePublicFile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.files.GetPublicFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rec, data, err := s.files.Download(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	ct := rec.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(rec.DisplayName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type createOrderRequest struct {
	PlanTier models.PlanTier `json:"plan_tier"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "malformed request body")
		return
	}

	order, err := s.payments.CreateOrder(r.Context(), userIDFrom(r.Context()), req.PlanTier)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type verifyPaymentResponse struct {
	Success bool `json:"success"`
}

// handleVerifyPayment only ever reports success or failure; reasons are logged.
func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, verifyPaymentResponse{Success: false})
		return
	}

	ok := s.payments.VerifyPayment(r.Context(), userIDFrom(r.Context()), req.OrderID, req.PaymentID, req.Signature)
	writeJSON(w, http.StatusOK, verifyPaymentResponse{Success: ok})
}
