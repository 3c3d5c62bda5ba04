package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderCode(t *testing.T) {
	pattern := regexp.MustCompile(`^SRT-[A-HJ-NP-Z2-9]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := GenerateOrderCode()
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestInvoiceNumber(t *testing.T) {
	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-20260309-7KQ2M9XA", InvoiceNumber(at, "SRT-7KQ2M9XA"))
}

func TestInvoiceNumbersFollowOrderCodes(t *testing.T) {
	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	owners := make(map[string]string)
	for _, code := range []string{"SRT-AAAAAAAA", "SRT-AAAAAAAB", "SRT-BAAAAAAA", "SRT-ZZZZZZZZ"} {
		number := InvoiceNumber(at, code)
		if prev, ok := owners[number]; ok {
			t.Fatalf("orders %s and %s share invoice %s", prev, code, number)
		}
		owners[number] = code
	}
	assert.Len(t, owners, 4)
}

func TestGenerateUUID(t *testing.T) {
	assert.Len(t, GenerateUUID(), 36)
	assert.NotEqual(t, GenerateUUID(), GenerateUUID())
}
