// Package contacts maintains an address book harvested from message
// headers. Every address seen in a From, To, or Cc header bumps that
// contact's use count, which drives autocomplete ranking.
package contacts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// Address is a single parsed mailbox from an address header.
type Address struct {
	Name  string
	Email string
}

// ParseAddressList splits an address header into mailboxes. Entries are
// separated by commas or semicolons; separators inside quoted display
// names do not split. Entries without a syntactically plausible email
// address are dropped, not errors: harvested headers are best-effort.
//
// net/mail is not used here because real-world headers mix comma and
// semicolon separators, which it rejects.
func ParseAddressList(header string) []Address {
	var addresses []Address
	for _, part := range SplitAddresses(header) {
		name, email, ok := parseAddress(part)
		if !ok {
			continue
		}
		addresses = append(addresses, Address{Name: name, Email: email})
	}
	return addresses
}

// SplitAddresses splits an address header on commas and semicolons,
// keeping quoted display names intact. Elements are not validated.
func SplitAddresses(header string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false

	for _, r := range header {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case (r == ',' || r == ';') && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	parts = append(parts, current.String())

	return parts
}

func parseAddress(part string) (name, email string, ok bool) {
	part = strings.TrimSpace(part)
	if part == "" {
		return "", "", false
	}

	if open := strings.LastIndex(part, "<"); open >= 0 {
		end := strings.Index(part[open:], ">")
		if end < 0 {
			return "", "", false
		}
		email = strings.TrimSpace(part[open+1 : open+end])
		name = strings.TrimSpace(part[:open])
		name = strings.Trim(name, `"`)
		name = strings.TrimSpace(name)
	} else {
		email = part
	}

	email = strings.ToLower(email)
	if !validEmail(email) {
		return "", "", false
	}

	return name, email, true
}

// ValidAddress reports whether s parses as a single mailbox, either
// "Name <email>" or a bare address.
func ValidAddress(s string) bool {
	_, _, ok := parseAddress(s)
	return ok
}

// validEmail is a syntactic plausibility check, not an RFC validator.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}

	domain := email[at+1:]
	if !strings.Contains(domain, ".") {
		return false
	}

	if strings.ContainsAny(email, " \t<>") {
		return false
	}

	return strings.Trim(domain, ".") == domain
}

// Observe records every address in the given headers. New addresses are
// inserted with a use count of 1; known ones get their count bumped and
// last-used refreshed. A non-empty display name overwrites the stored
// one, an empty name never clobbers a known name.
func Observe(ctx context.Context, pool *pgxpool.Pool, headers ...string) error {
	now := time.Now()

	for _, header := range headers {
		for _, addr := range ParseAddressList(header) {
			_, err := pool.Exec(ctx, `
				INSERT INTO contacts (email, name, last_used, use_count)
				VALUES ($1, $2, $3, 1)
				ON CONFLICT (email) DO UPDATE SET
					use_count = contacts.use_count + 1,
					last_used = EXCLUDED.last_used,
					name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE contacts.name END
			`, addr.Email, addr.Name, now)
			if err != nil {
				return fmt.Errorf("failed to record contact %s: %w", addr.Email, err)
			}
		}
	}

	return nil
}

// Search returns contacts whose email or name contains the query,
// case-insensitively, most used first.
func Search(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]*models.Contact, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, email, name, last_used, use_count
		FROM contacts
		WHERE email ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY use_count DESC, last_used DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

// Recent returns contacts ordered by last use.
func Recent(ctx context.Context, pool *pgxpool.Pool, limit int) ([]*models.Contact, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, email, name, last_used, use_count
		FROM contacts
		ORDER BY last_used DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent contacts: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

// Frequent returns contacts ordered by use count.
func Frequent(ctx context.Context, pool *pgxpool.Pool, limit int) ([]*models.Contact, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, email, name, last_used, use_count
		FROM contacts
		ORDER BY use_count DESC, last_used DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get frequent contacts: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

func scanContacts(rows pgx.Rows) ([]*models.Contact, error) {
	var contacts []*models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.LastUsed, &c.UseCount); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}
