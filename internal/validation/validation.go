// Package validation enforces the marker input rules from the command
// API's contract: latitude/longitude range, icon_id charset/length, and
// label length. Validation never consults the clock or the event log —
// rejection must happen before either is touched.
package validation

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidLatitude  = errors.New("invalid latitude")
	ErrInvalidLongitude = errors.New("invalid longitude")
	ErrInvalidIconID    = errors.New("invalid icon_id")
	ErrLabelTooLong     = errors.New("label too long")
)

const (
	maxIconIDLength = 64
	maxLabelLength  = 256
)

// Latitude validates lat is within [-90, 90] and not NaN.
func Latitude(lat float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: %v must be between -90 and 90", ErrInvalidLatitude, lat)
	}
	return nil
}

// Longitude validates lon is within [-180, 180] and not NaN.
func Longitude(lon float64) error {
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v must be between -180 and 180", ErrInvalidLongitude, lon)
	}
	return nil
}

// IconID validates charset and length only; membership in a configured
// icon set is checked separately by the command layer (see internal/icons),
// which raises a distinct ErrIconNotFound.
func IconID(iconID string) error {
	if iconID == "" {
		return fmt.Errorf("%w: icon_id cannot be empty", ErrInvalidIconID)
	}
	if len(iconID) > maxIconIDLength {
		return fmt.Errorf("%w: icon_id too long: %d chars (max %d)", ErrInvalidIconID, len(iconID), maxIconIDLength)
	}
	for _, c := range iconID {
		if !isIconIDChar(c) {
			return fmt.Errorf("%w: icon_id contains invalid characters: %s", ErrInvalidIconID, iconID)
		}
	}
	return nil
}

func isIconIDChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	default:
		return false
	}
}

// Label validates an optional label's length only, counted in bytes.
func Label(label *string) error {
	if label == nil {
		return nil
	}
	if len(*label) > maxLabelLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrLabelTooLong, len(*label), maxLabelLength)
	}
	return nil
}
