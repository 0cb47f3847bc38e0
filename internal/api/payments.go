package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"dinein-service/internal/apperr"
	"dinein-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// webhookMarkTTL bounds how long a gateway event id is remembered.
const webhookMarkTTL = 24 * time.Hour

type confirmRequest struct {
	TransactionID string `json:"transactionId"`
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) initiatePayment(c *gin.Context) {
	var req service.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	payment, err := h.Payments.InitiatePayment(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, payment)
}

func (h *Handler) listPayments(c *gin.Context) {
	sessionID, err := requireQuery(c, "sessionId")
	if err != nil {
		h.fail(c, err)
		return
	}

	payments, err := h.Payments.ListPayments(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, payments)
}

// confirmPayment is the gateway's success webhook
func (h *Handler) confirmPayment(c *gin.Context) {
	var req confirmRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.badRequest(c, err)
		return
	}

	paymentID := c.Param("id")
	release, duplicate, err := h.claimDelivery(c, "confirm:"+paymentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if duplicate {
		respond(c, http.StatusOK, gin.H{"paymentId": paymentID, "duplicate": true})
		return
	}

	res, err := h.Payments.ConfirmPayment(c.Request.Context(), paymentID, req.TransactionID)
	if err != nil {
		release(err)
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

// failPayment is the gateway's decline webhook
func (h *Handler) failPayment(c *gin.Context) {
	var req failRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.badRequest(c, err)
		return
	}

	paymentID := c.Param("id")
	release, duplicate, err := h.claimDelivery(c, "fail:"+paymentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if duplicate {
		respond(c, http.StatusOK, gin.H{"paymentId": paymentID, "duplicate": true})
		return
	}

	payment, err := h.Payments.FailPayment(c.Request.Context(), paymentID, req.Reason)
	if err != nil {
		release(err)
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, payment)
}

// claimDelivery marks the delivery named by the X-Event-ID header. Without
// the header or a marker store every delivery is processed. release drops
// the mark after an upstream failure so the gateway's retry is applied.
func (h *Handler) claimDelivery(c *gin.Context, scope string) (release func(error), duplicate bool, err error) {
	release = func(error) {}

	eventID := strings.TrimSpace(c.GetHeader("X-Event-ID"))
	if eventID == "" || h.Marks == nil {
		return release, false, nil
	}

	key := "webhook:" + scope + ":" + eventID
	first, err := h.Marks.MarkOnce(c.Request.Context(), key, webhookMarkTTL)
	if err != nil {
		return release, false, apperr.Upstream("mark webhook delivery", err)
	}
	if !first {
		h.logger.Info("Duplicate webhook delivery", zap.String("event_id", eventID), zap.String("scope", scope))
		return release, true, nil
	}

	release = func(cause error) {
		if !errors.Is(cause, apperr.UpstreamFailure) {
			return
		}
		if err := h.Marks.ForgetMark(c.Request.Context(), key); err != nil {
			h.logger.Warn("Failed to release webhook mark", zap.String("key", key), zap.Error(err))
		}
	}
	return release, false, nil
}

// bindOptionalJSON binds a JSON body if one was sent.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}

func (h *Handler) generateBill(c *gin.Context) {
	bill, err := h.Payments.GenerateBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, bill)
}

func (h *Handler) getBill(c *gin.Context) {
	bill, err := h.Payments.GetBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, bill)
}
