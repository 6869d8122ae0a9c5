package api

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/vdavid/mailsync/internal/contacts"
)

// ErrInvalidInput is returned for caller mistakes: out-of-range
// pagination, oversized bodies, malformed addresses. Inputs are checked
// in full before any storage or network work starts.
var ErrInvalidInput = errors.New("invalid input")

const (
	maxPageSize       = 1000
	maxSubjectLength  = 998
	maxBodyBytes      = 10 * 1024 * 1024
	maxAddressListLen = 2000
)

func validatePagination(limit, offset int) error {
	if limit < 1 || limit > maxPageSize {
		return fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidInput, maxPageSize, limit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidInput, offset)
	}
	return nil
}

func validateSubject(subject string) error {
	if len(subject) > maxSubjectLength {
		return fmt.Errorf("%w: subject exceeds %d characters", ErrInvalidInput, maxSubjectLength)
	}
	for _, r := range subject {
		if unicode.IsControl(r) && r != '\t' {
			return fmt.Errorf("%w: subject contains control characters", ErrInvalidInput)
		}
	}
	return nil
}

func validateBody(body string) error {
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidInput, maxBodyBytes)
	}
	return nil
}

func validateAddressList(field string, addresses []string) error {
	if len(strings.Join(addresses, ", ")) > maxAddressListLen {
		return fmt.Errorf("%w: %s address list exceeds %d characters", ErrInvalidInput, field, maxAddressListLen)
	}
	for _, address := range addresses {
		if !contacts.ValidAddress(address) {
			return fmt.Errorf("%w: %s contains an invalid address: %q", ErrInvalidInput, field, address)
		}
	}
	return nil
}

// validateAddressHeader checks a comma- or semicolon-separated header.
// Empty headers and empty elements are fine: drafts are saved
// half-written.
func validateAddressHeader(field, header string) error {
	if len(header) > maxAddressListLen {
		return fmt.Errorf("%w: %s address list exceeds %d characters", ErrInvalidInput, field, maxAddressListLen)
	}
	for _, part := range contacts.SplitAddresses(header) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if !contacts.ValidAddress(part) {
			return fmt.Errorf("%w: %s contains an invalid address: %q", ErrInvalidInput, field, strings.TrimSpace(part))
		}
	}
	return nil
}

func validateCompose(to, cc, bcc []string, subject, bodyPlain, bodyHTML string) error {
	if len(to) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidInput)
	}
	if err := validateSubject(subject); err != nil {
		return err
	}
	if err := validateBody(bodyPlain); err != nil {
		return err
	}
	if err := validateBody(bodyHTML); err != nil {
		return err
	}
	if err := validateAddressList("to", to); err != nil {
		return err
	}
	if err := validateAddressList("cc", cc); err != nil {
		return err
	}
	return validateAddressList("bcc", bcc)
}
