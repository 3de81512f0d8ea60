package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/service"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Payment-Signature"

// PaymentWebhookHandler accepts payment outcome events. Delivery is
// at-least-once, so replays are expected and answered with 409.
type PaymentWebhookHandler struct {
	enrollments *service.EnrollmentService
	secret      []byte
}

// NewPaymentWebhookHandler creates a new PaymentWebhookHandler.
func NewPaymentWebhookHandler(enrollments *service.EnrollmentService, secret string) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{enrollments: enrollments, secret: []byte(secret)}
}

// SignPayload returns the signature the webhook expects for body.
func SignPayload(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandlePaymentEvent applies one payment outcome.
// POST /api/payments/webhook
// Request:  {"enrollmentId":1,"outcome":"success","paymentId":"pay_123"}
// Response: 200 {"enrollment": {...}}, 409 {"error": ..., "enrollment": {...}} on replay
func (h *PaymentWebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if !h.validSignature(body, r.Header.Get(SignatureHeader)) {
		writeError(w, http.StatusUnauthorized, "Invalid signature.")
		return
	}

	var event struct {
		EnrollmentID int64  `json:"enrollmentId"`
		Outcome      string `json:"outcome"`
		PaymentID    string `json:"paymentId"`
	}
	if err := json.Unmarshal(body, &event); err != nil || event.EnrollmentID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid payment event.")
		return
	}

	e, err := h.enrollments.ResolvePayment(r.Context(), event.EnrollmentID, domain.PaymentOutcome(event.Outcome), event.PaymentID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) && e != nil {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":      "Enrollment already resolved.",
				"enrollment": toEnrollmentDTO(e),
			})
			return
		}
		writeServiceError(w, r, "resolve payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrollment": toEnrollmentDTO(e)})
}

func (h *PaymentWebhookHandler) validSignature(body []byte, header string) bool {
	sig, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
