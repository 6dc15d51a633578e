package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMaxDurationIsSixHours(t *testing.T) {
	assert.Equal(t, (6 * time.Hour).Milliseconds(), MaxDurationMs)
}

func TestHealthStatus(t *testing.T) {
	assert.Equal(t, StatusHealthy, HealthStatus(0))
	assert.Equal(t, StatusHealthy, HealthStatus(1.999))
	assert.Equal(t, StatusWarning, HealthStatus(2.0))
	assert.Equal(t, StatusWarning, HealthStatus(12.5))
}
