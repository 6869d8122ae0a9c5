package threading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{"plain subject", "Hello World", "hello world"},
		{"reply prefix", "Re: Hello World", "hello world"},
		{"forward prefix", "Fwd: Hello World", "hello world"},
		{"short forward prefix", "FW: Hello World", "hello world"},
		{"stacked prefixes", "Re: Re: Fwd: Hello World", "hello world"},
		{"mixed case prefix", "rE: hello", "hello"},
		{"no space after prefix", "Re:Hello", "hello"},
		{"bracketed tag", "[list] Hello", "hello"},
		{"tag then reply", "[list] Re: Hello", "hello"},
		{"reply then tag", "Re: [list] Hello", "hello"},
		{"unclosed bracket kept", "[broken subject", "[broken subject"},
		{"surrounding whitespace", "  Hello  ", "hello"},
		{"empty subject", "", ""},
		{"only prefixes", "Re: Fwd:", ""},
		{"prefix in the middle stays", "Notes re: the meeting", "notes re: the meeting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSubject(tt.subject))
		})
	}
}

func TestSubjectHash(t *testing.T) {
	t.Run("reply and original share a hash", func(t *testing.T) {
		assert.Equal(t, SubjectHash("Project Update"), SubjectHash("Re: Project Update"))
		assert.Equal(t, SubjectHash("Project Update"), SubjectHash("Fwd: project update"))
	})

	t.Run("different subjects differ", func(t *testing.T) {
		assert.NotEqual(t, SubjectHash("Project Update"), SubjectHash("Project Update 2"))
	})

	t.Run("stable across calls", func(t *testing.T) {
		assert.Equal(t, SubjectHash("Hello"), SubjectHash("Hello"))
	})
}
