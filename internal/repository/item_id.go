package repository

import (
	"regexp"

	"StockPulse/internal/domain/errs"
)

var itemIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidateItemID rejects ids that cannot be used as a storage key or file name.
func ValidateItemID(id string) error {
	if !itemIDPattern.MatchString(id) || id == "." || id == ".." {
		return errs.Validation("invalid item id %q: use 1-128 letters, digits, '.', '_' or '-'", id)
	}
	return nil
}
