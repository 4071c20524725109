package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var (
	// RoomCodeRegex matches a normalized room code.
	RoomCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)

	// PlayerIDRegex accepts UUIDs as well as client-chosen handles.
	PlayerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

const (
	maxPlayerIDLength = 64
	maxSDPLength      = 64 * 1024
)

// NormalizeRoomCode upper-cases and trims a room code typed by a user.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateRoomCode validates an already normalized room code.
func ValidateRoomCode(code string) error {
	if code == "" {
		return fmt.Errorf("room code is required")
	}
	if !RoomCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid room code format (expected 6 characters A-Z, 0-9)")
	}
	return nil
}

func ValidatePlayerID(playerID string) error {
	if playerID == "" {
		return fmt.Errorf("player ID is required")
	}
	if len(playerID) > maxPlayerIDLength {
		return fmt.Errorf("player ID is too long (max %d characters)", maxPlayerIDLength)
	}
	if !PlayerIDRegex.MatchString(playerID) {
		return fmt.Errorf("invalid player ID format")
	}
	return nil
}

// ValidateScore accepts finite scores within [0, 100].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("score must be a finite number")
	}
	if score < 0 || score > 100 {
		return fmt.Errorf("score must be between 0 and 100")
	}
	return nil
}

// ValidateSDP performs the cheap checks; structural parsing happens in the relay.
func ValidateSDP(sdp string) error {
	if strings.TrimSpace(sdp) == "" {
		return fmt.Errorf("sdp is required")
	}
	if len(sdp) > maxSDPLength {
		return fmt.Errorf("sdp is too long (max %d bytes)", maxSDPLength)
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
