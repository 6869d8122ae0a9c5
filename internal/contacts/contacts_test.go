package contacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddressList(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected []Address
	}{
		{
			name:     "bare address",
			header:   "alice@example.com",
			expected: []Address{{Email: "alice@example.com"}},
		},
		{
			name:     "named address",
			header:   "Alice Smith <alice@example.com>",
			expected: []Address{{Name: "Alice Smith", Email: "alice@example.com"}},
		},
		{
			name:     "quoted name with comma",
			header:   `"Smith, Alice" <alice@example.com>`,
			expected: []Address{{Name: "Smith, Alice", Email: "alice@example.com"}},
		},
		{
			name:   "comma separated list",
			header: "alice@example.com, Bob <bob@example.com>",
			expected: []Address{
				{Email: "alice@example.com"},
				{Name: "Bob", Email: "bob@example.com"},
			},
		},
		{
			name:   "semicolon separated list",
			header: "alice@example.com; bob@example.com",
			expected: []Address{
				{Email: "alice@example.com"},
				{Email: "bob@example.com"},
			},
		},
		{
			name:     "email lowercased",
			header:   "Alice <ALICE@Example.COM>",
			expected: []Address{{Name: "Alice", Email: "alice@example.com"}},
		},
		{
			name:     "invalid entries dropped",
			header:   "not-an-email, alice@example.com, @example.com, bob@nodot",
			expected: []Address{{Email: "alice@example.com"}},
		},
		{
			name:     "empty header",
			header:   "",
			expected: nil,
		},
		{
			name:     "unclosed angle bracket dropped",
			header:   "Alice <alice@example.com",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAddressList(tt.header))
		})
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("alice@example.com"))
	assert.True(t, validEmail("a.b+c@sub.example.org"))
	assert.False(t, validEmail("alice"))
	assert.False(t, validEmail("@example.com"))
	assert.False(t, validEmail("alice@example"))
	assert.False(t, validEmail("alice@@example.com"))
	assert.False(t, validEmail("alice@example.com."))
	assert.False(t, validEmail("alice smith@example.com"))
}
