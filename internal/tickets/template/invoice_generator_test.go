package template

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qr "ms-sorteos/internal/tickets/qr_genrator"
)

func fontPath(t *testing.T) string {
	t.Helper()
	for _, p := range []string{os.Getenv("INVOICE_FONT_PATH"), "../../../fonts/DejaVuSans.ttf", "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("no TTF font available; set INVOICE_FONT_PATH")
	return ""
}

func TestGenerateInvoice(t *testing.T) {
	gen := NewInvoicePDFGenerator(fontPath(t))
	qrGen := qr.NewQRGenerator("secret")

	var lines []InvoiceLine
	for _, code := range []string{"0001", "0002", "0003"} {
		img, err := qrGen.GenerateEncryptedQR(qr.TicketPayload{RaffleID: "r1", OrderCode: "SRT-1", TicketCode: code}, 128)
		require.NoError(t, err)
		lines = append(lines, InvoiceLine{TicketCode: code, UnitPrice: 3.33, QRCode: img})
	}

	pdf, err := gen.Generate(InvoiceData{
		Number:      "INV-20260101-000001",
		IssuedAt:    time.Now(),
		CompanyName: "Sorteos",
		RaffleName:  "Gran Sorteo",
		OrderCode:   "SRT-1",
		ClientName:  "Ana",
		Lines:       lines,
		Total:       10,
		Prizes:      []string{"0002: Bicycle"},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestGenerateInvoiceMissingFont(t *testing.T) {
	_, err := NewInvoicePDFGenerator("/nonexistent/font.ttf").Generate(InvoiceData{Number: "INV-1"})
	assert.Error(t, err)
}
