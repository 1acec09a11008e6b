package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLuhnValid(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"4111111111111111", true},
		{"5111111111111118", true},
		{"4111111111111112", false},
		{"1", false},
		{"", false},
		{"41x1111111111111", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, luhnValid(tt.number), tt.number)
	}
}

func TestValidateIBAN(t *testing.T) {
	assert.True(t, validateIBANLength("DE89370400440532013000"))
	assert.True(t, validateIBANChecksum("DE89370400440532013000"))

	// Wrong length for DE
	assert.False(t, validateIBANLength("DE8937040044053201300"))
	// Unknown country code
	assert.False(t, validateIBANLength("XX89370400440532013000"))
	// Flipped digit breaks MOD-97
	assert.False(t, validateIBANChecksum("DE89370400440532013001"))
	// Non-alphanumeric
	assert.False(t, validateIBANChecksum("DE89-3704-0044"))
}

func TestStripNonDigits(t *testing.T) {
	assert.Equal(t, "4111222233334444", stripNonDigits("4111 2222-3333 4444"))
	assert.Equal(t, "", stripNonDigits("no digits"))
}
