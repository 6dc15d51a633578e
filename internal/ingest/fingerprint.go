package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// fieldSep keeps adjacent fields from running together, so machineId "M1"
// with duration 23 cannot hash like machineId "M12" with duration 3.
const fieldSep = "\x1f"

// CanonicalTime is the string form of eventTime that enters the fingerprint.
func CanonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Fingerprint returns the lowercase hex SHA-256 of the fields that define an
// event's content. Equal fingerprints mean a retransmission, not a correction.
func Fingerprint(ev models.RawEvent) string {
	raw := strings.Join([]string{
		ev.EventID,
		CanonicalTime(ev.EventTime),
		ev.MachineID,
		strconv.FormatInt(ev.DurationMs, 10),
		strconv.Itoa(ev.DefectCount),
	}, fieldSep)

	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
