package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/machine-events-service/internal/export"
	"github.com/PratikDhanave/machine-events-service/internal/logging"
	"github.com/PratikDhanave/machine-events-service/internal/stats"
)

const defaultTopLines = 10

// RegisterStatsRoutes registers the read-only reporting endpoints. Windows
// are half-open: an event at exactly the end bound is excluded.
//
// GET /events/stats?machineId=...&start=...&end=...
// GET /events/stats/top-defect-lines?from=...&to=...&limit=10&format=json|xlsx
func RegisterStatsRoutes(r gin.IRoutes, agg *stats.Aggregator, ranker *stats.Ranker) {
	r.GET("/events/stats", func(c *gin.Context) {
		machineID := c.Query("machineId")
		if machineID == "" || c.Query("start") == "" || c.Query("end") == "" {
			badRequest(c, "machineId, start, end are required")
			return
		}
		start, end, ok := window(c, "start", "end")
		if !ok {
			return
		}

		report, err := agg.MachineStats(c.Request.Context(), machineID, start, end)
		if err != nil {
			logging.Errorf("machine stats %s: %v", machineID, err)
			c.JSON(statusFor(err), gin.H{"error": "stats query failed"})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	r.GET("/events/stats/top-defect-lines", func(c *gin.Context) {
		if c.Query("from") == "" || c.Query("to") == "" {
			badRequest(c, "from, to are required")
			return
		}
		from, to, ok := window(c, "from", "to")
		if !ok {
			return
		}

		limit := defaultTopLines
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				badRequest(c, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		format := c.DefaultQuery("format", "json")
		if format != "json" && format != "xlsx" {
			badRequest(c, "format must be json or xlsx")
			return
		}

		lines, err := ranker.TopDefectLines(c.Request.Context(), from, to, limit)
		if err != nil {
			logging.Errorf("top defect lines: %v", err)
			c.JSON(statusFor(err), gin.H{"error": "stats query failed"})
			return
		}

		if format == "xlsx" {
			c.Header("Content-Type", export.XLSXContentType)
			c.Header("Content-Disposition", `attachment; filename="top-defect-lines.xlsx"`)
			c.Status(http.StatusOK)
			if err := export.WriteTopDefectLines(c.Writer, from, to, lines); err != nil {
				logging.Errorf("xlsx export: %v", err)
			}
			return
		}
		c.JSON(http.StatusOK, lines)
	})
}

// window parses two RFC3339 query parameters, writing a 400 on failure.
func window(c *gin.Context, fromKey, toKey string) (time.Time, time.Time, bool) {
	from, err := parseRFC3339(c.Query(fromKey))
	if err != nil {
		badRequest(c, fromKey+" must be RFC3339")
		return time.Time{}, time.Time{}, false
	}
	to, err := parseRFC3339(c.Query(toKey))
	if err != nil {
		badRequest(c, toKey+" must be RFC3339")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
