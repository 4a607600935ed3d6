package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStableAlertID_Deterministic(t *testing.T) {
	a := StableAlertID("AUTH001", "src_ip:203.0.113.10", "2026-01-12T03:15")
	b := StableAlertID("AUTH001", "src_ip:203.0.113.10", "2026-01-12T03:15")
	assert.Equal(t, a, b)
	assert.True(t, len(a) == len("a_")+24)
	assert.Equal(t, "a_", a[:2])
}

func TestStableAlertID_DiffersByInput(t *testing.T) {
	a := StableAlertID("AUTH001", "src_ip:1.2.3.4", "2026-01-12T03:15")
	b := StableAlertID("AUTH001", "src_ip:1.2.3.5", "2026-01-12T03:15")
	assert.NotEqual(t, a, b)
}
