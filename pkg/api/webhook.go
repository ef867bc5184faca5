package api

import (
	"net/http"

	"github.com/example/storefront/pkg/webhook"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// paymentWebhook handles signed provider callbacks. Bad or missing
// signatures are rejected without touching any state; processing failures
// return 500 so the provider redelivers.
func (s *Server) paymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Could not read payload."})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := webhook.VerifySignature(payload, signature, s.config.Payment.WebhookSecret, webhook.DefaultTolerance); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid signature."})
		return
	}

	event, err := webhook.ParseEvent(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed event."})
		return
	}

	if err := s.reconciler.Process(c.Request.Context(), event); err != nil {
		s.logger.Error("Webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Event processing failed."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
