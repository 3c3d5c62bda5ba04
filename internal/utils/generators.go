package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order codes avoid 0/O and 1/I so they survive being read over the phone.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func GenerateUUID() string {
	return uuid.NewString()
}

const orderCodePrefix = "SRT-"

// GenerateOrderCode returns a human readable order code like SRT-7KQ2M9XA.
func GenerateOrderCode() string {
	return orderCodePrefix + randomString(codeAlphabet, 8)
}

// InvoiceNumber returns INV-YYYYMMDD-<order code suffix>. An order has at most
// one invoice and order codes are unique, so numbers never collide.
func InvoiceNumber(at time.Time, orderCode string) string {
	return fmt.Sprintf("INV-%s-%s", at.Format("20060102"), strings.TrimPrefix(orderCode, orderCodePrefix))
}

func randomString(alphabet string, n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			idx = big.NewInt(time.Now().UnixNano() % int64(len(alphabet)))
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
