package validation

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRoomCode(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"ABC123", false},
		{"ZZZZZZ", false},
		{"000000", false},
		{"", true},
		{"abc123", true},
		{"ABC12", true},
		{"ABC1234", true},
		{"ABC-12", true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ValidateRoomCode(tt.code)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeRoomCode("  abc123 "))
	assert.NoError(t, ValidateRoomCode(NormalizeRoomCode("xy7z9q")))
}

func TestValidatePlayerID(t *testing.T) {
	assert.NoError(t, ValidatePlayerID("550e8400-e29b-41d4-a716-446655440000"))
	assert.NoError(t, ValidatePlayerID("player_1"))
	assert.Error(t, ValidatePlayerID(""))
	assert.Error(t, ValidatePlayerID("bad id"))
	assert.Error(t, ValidatePlayerID(strings.Repeat("a", 65)))
}

func TestValidateScore(t *testing.T) {
	for _, s := range []float64{0, 50, 99.5, 100} {
		assert.NoError(t, ValidateScore(s), "score %v", s)
	}
	for _, s := range []float64{-0.1, 100.01, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.Error(t, ValidateScore(s), "score %v", s)
	}
}

func TestValidateSDP(t *testing.T) {
	assert.NoError(t, ValidateSDP("v=0\r\n"))
	assert.Error(t, ValidateSDP("   "))
	assert.Error(t, ValidateSDP(strings.Repeat("a", maxSDPLength+1)))
}

func TestValidateNonEmptyString(t *testing.T) {
	assert.NoError(t, ValidateNonEmptyString("x", "field"))
	assert.EqualError(t, ValidateNonEmptyString(" \t", "landmarks"), "landmarks is required")
}
