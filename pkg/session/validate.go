package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSession carries the caller-supplied fields for session creation.
type NewSession struct {
	Concert  string    `json:"concert"`
	Band     string    `json:"band"`
	Date     time.Time `json:"date"`
	Location string    `json:"location"`
	IsPublic bool      `json:"is_public"`
}

// imageExtensions are the logo formats accepted by SetLogo.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// validateNewSession checks the shape of creation input.
func validateNewSession(req NewSession) error {
	if strings.TrimSpace(req.Concert) == "" {
		return fmt.Errorf("%w: concert is required", ErrValidation)
	}
	if strings.TrimSpace(req.Band) == "" {
		return fmt.Errorf("%w: band is required", ErrValidation)
	}
	if req.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if strings.TrimSpace(req.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	return nil
}

// validateID checks that the identifier is a well-formed session ID.
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed session id %q", ErrValidation, id)
	}
	return nil
}

// validateImageFilename checks that the logo filename has a supported
// image extension.
func validateImageFilename(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return fmt.Errorf("%w: unsupported image format %q", ErrValidation, ext)
	}
	return nil
}
