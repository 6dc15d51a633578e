package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/machine-events-service/internal/auth"
	"github.com/PratikDhanave/machine-events-service/internal/ingest"
	"github.com/PratikDhanave/machine-events-service/internal/logging"
	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// RegisterEventRoutes registers the ingestion endpoint.
//
// POST /events/batch
//   - body is a JSON array of events; an event that decodes but breaks a
//     rule is rejected in the tally, never by failing the request
//   - 400 when the body does not decode, including a single element with a
//     wrongly typed field or an eventTime that is not RFC3339
//   - 200 once every valid event is durably accepted, deduped or updated
//   - 503 when the ledger fails mid-batch; the body carries the tally of the
//     events handled so far
func RegisterEventRoutes(r gin.IRoutes, svc *ingest.Service) {
	r.POST("/events/batch", func(c *gin.Context) {
		var batch []models.RawEvent
		if err := c.ShouldBindJSON(&batch); err != nil {
			badRequest(c, "body must be a JSON array of events")
			return
		}

		tally, err := svc.IngestBatch(c.Request.Context(), batch)
		if err != nil {
			status := statusFor(err)
			if errors.Is(err, ingest.ErrReconcileExhausted) {
				status = http.StatusServiceUnavailable
			}
			logging.Errorf("tenant %s: batch %s failed: %v", auth.TenantID(c), tally.BatchID, err)
			c.JSON(status, gin.H{"error": "ledger unavailable", "tally": tally})
			return
		}

		c.JSON(http.StatusOK, tally)
	})
}
