package core

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Text must not be empty
//   - Year must be four ASCII digits
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}

	if doc.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyText)
	}

	if !IsValidYear(doc.Year) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidDocument, ErrInvalidYear, doc.Year)
	}

	return nil
}

// ValidateIndexEntry validates an IndexEntry before it is written to a store.
func ValidateIndexEntry(entry *IndexEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}

	if entry.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyID)
	}

	if len(entry.Vector) == 0 {
		return fmt.Errorf("%w: %w: %s", ErrInvalidEntry, ErrEmptyVector, entry.ID)
	}

	if entry.RawText == "" {
		return fmt.Errorf("%w: %w: %s", ErrInvalidEntry, ErrEmptyText, entry.ID)
	}

	return nil
}

// IsValidYear reports whether year is exactly four ASCII digits.
func IsValidYear(year string) bool {
	if len(year) != 4 {
		return false
	}
	for i := 0; i < len(year); i++ {
		if year[i] < '0' || year[i] > '9' {
			return false
		}
	}
	return true
}
