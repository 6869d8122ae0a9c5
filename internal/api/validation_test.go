package api

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vdavid/mailsync/internal/models"
)

func TestValidatePagination(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		offset  int
		wantErr bool
	}{
		{"minimum limit", 1, 0, false},
		{"maximum limit", 1000, 0, false},
		{"typical page", 50, 100, false},
		{"zero limit", 0, 0, true},
		{"negative limit", -1, 0, true},
		{"limit too large", 1001, 0, true},
		{"negative offset", 50, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePagination(tt.limit, tt.offset)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSubject(t *testing.T) {
	assert.NoError(t, validateSubject("Hello"))
	assert.NoError(t, validateSubject(""))
	assert.NoError(t, validateSubject("tabs\tare fine"))
	assert.NoError(t, validateSubject(strings.Repeat("a", 998)))
	assert.ErrorIs(t, validateSubject(strings.Repeat("a", 999)), ErrInvalidInput)
	assert.ErrorIs(t, validateSubject("broken\nsubject"), ErrInvalidInput)
	assert.ErrorIs(t, validateSubject("null\x00byte"), ErrInvalidInput)
}

func TestValidateBody(t *testing.T) {
	assert.NoError(t, validateBody(strings.Repeat("a", 10*1024*1024)))
	assert.ErrorIs(t, validateBody(strings.Repeat("a", 10*1024*1024+1)), ErrInvalidInput)
}

func TestValidateAddressList(t *testing.T) {
	assert.NoError(t, validateAddressList("to", []string{"a@example.com", "b@example.com"}))
	assert.NoError(t, validateAddressList("to", nil))
	assert.ErrorIs(t, validateAddressList("to", []string{" "}), ErrInvalidInput)

	var long []string
	for len(strings.Join(long, ", ")) <= 2000 {
		long = append(long, "someone@example.com")
	}
	assert.ErrorIs(t, validateAddressList("to", long), ErrInvalidInput)
	assert.ErrorIs(t, validateAddressList("to", []string{"not-an-address"}), ErrInvalidInput)
	assert.ErrorIs(t, validateAddressList("to", []string{"a@example.com", "b@nodot"}), ErrInvalidInput)
}

func TestValidateAddressHeader(t *testing.T) {
	assert.NoError(t, validateAddressHeader("to", ""))
	assert.NoError(t, validateAddressHeader("to", "a@example.com, Bob <b@example.com>"))
	assert.NoError(t, validateAddressHeader("to", "a@example.com,"), "trailing separator is fine for a half-written draft")
	assert.ErrorIs(t, validateAddressHeader("to", "a@example.com, not-an-address"), ErrInvalidInput)
	assert.ErrorIs(t, validateAddressHeader("to", "b@nodot"), ErrInvalidInput)
	assert.ErrorIs(t, validateAddressHeader("to", strings.Repeat("a@example.com, ", 200)), ErrInvalidInput)
}

// The tests below call Service methods with a nil pool: validation has
// to reject bad input before any storage access happens, or these would
// panic.

func TestMessagesRejectsBadPaginationBeforeStorage(t *testing.T) {
	s := New(nil, nil, nil, nil)

	_, err := s.Messages(context.Background(), 1, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Messages(context.Background(), 1, 50, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchRejectsEmptyQueryBeforeStorage(t *testing.T) {
	s := New(nil, nil, nil, nil)

	_, err := s.Search(context.Background(), 1, "   ", 50, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSendRejectsOversizedSubjectBeforeStorage(t *testing.T) {
	s := New(nil, nil, nil, nil)

	err := s.Send(context.Background(), &SendRequest{
		AccountID: 1,
		To:        []string{"a@example.com"},
		Subject:   strings.Repeat("a", 999),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSendRejectsEmptyRecipientsBeforeStorage(t *testing.T) {
	s := New(nil, nil, nil, nil)

	err := s.Send(context.Background(), &SendRequest{
		AccountID: 1,
		Subject:   "no recipients",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSaveDraftRejectsOversizedBodyBeforeStorage(t *testing.T) {
	s := New(nil, nil, nil, nil)

	err := s.SaveDraft(context.Background(), &models.Draft{
		AccountID: 1,
		BodyPlain: strings.Repeat("a", 10*1024*1024+1),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSaveDraftRejectsMalformedAddressBeforeStorage(t *testing.T) {
	s := New(nil, nil, nil, nil)

	err := s.SaveDraft(context.Background(), &models.Draft{
		AccountID:   1,
		ToAddresses: "a@example.com, not-an-address",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestContactQueriesRejectBadLimitBeforeStorage(t *testing.T) {
	s := New(nil, nil, nil, nil)

	_, err := s.SearchContacts(context.Background(), "al", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.RecentContacts(context.Background(), -5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.FrequentContacts(context.Background(), 1001)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
