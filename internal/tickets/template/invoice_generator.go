package template

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/signintech/gopdf"
)

type InvoiceLine struct {
	TicketCode string
	UnitPrice  float64
	// QRCode is a PNG image; empty lines print without a code.
	QRCode []byte
}

type InvoiceData struct {
	Number      string
	IssuedAt    time.Time
	CompanyName string
	RaffleName  string
	OrderCode   string
	ClientName  string
	ClientEmail string
	NationalID  string
	Lines       []InvoiceLine
	Total       float64
	Prizes      []string
}

type InvoicePDFGenerator struct {
	fontPath string
}

func NewInvoicePDFGenerator(fontPath string) *InvoicePDFGenerator {
	return &InvoicePDFGenerator{fontPath: fontPath}
}

const (
	marginX    = 40.0
	pageBottom = 800.0
	qrSize     = 64.0
)

func (g *InvoicePDFGenerator) Generate(data InvoiceData) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont("dejavu", g.fontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont("dejavu", "", 16); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	addHeader(pdf, data)

	if err := pdf.SetFont("dejavu", "", 11); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	addCustomer(pdf, data)
	addLines(pdf, data.Lines)
	addTotals(pdf, data)

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func addHeader(pdf *gopdf.GoPdf, data InvoiceData) {
	pdf.SetXY(marginX, 40)
	pdf.Cell(nil, data.CompanyName)
	pdf.SetXY(marginX, 62)
	pdf.Cell(nil, "Invoice "+data.Number)
	pdf.SetXY(marginX, 84)
	pdf.Cell(nil, data.RaffleName)
}

func addCustomer(pdf *gopdf.GoPdf, data InvoiceData) {
	info := []struct {
		Label string
		Value string
	}{
		{"Order", data.OrderCode},
		{"Date", data.IssuedAt.Format("2006-01-02 15:04")},
		{"Customer", data.ClientName},
		{"Email", data.ClientEmail},
		{"ID", data.NationalID},
	}

	pdf.SetXY(marginX, 120)
	for _, item := range info {
		pdf.SetX(marginX)
		pdf.Cell(nil, item.Label+": "+item.Value)
		pdf.Br(16)
	}
	pdf.Br(10)
}

func addLines(pdf *gopdf.GoPdf, lines []InvoiceLine) {
	for _, line := range lines {
		if pdf.GetY()+qrSize > pageBottom {
			pdf.AddPage()
			pdf.SetY(40)
		}
		y := pdf.GetY()
		pdf.SetXY(marginX, y+qrSize/2-6)
		pdf.Cell(nil, fmt.Sprintf("Ticket %s", line.TicketCode))
		pdf.SetXY(marginX+200, y+qrSize/2-6)
		pdf.Cell(nil, fmt.Sprintf("%.2f", line.UnitPrice))

		if len(line.QRCode) > 0 {
			addQRCode(pdf, line.QRCode, marginX+320, y)
		}
		pdf.SetY(y + qrSize + 8)
	}
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte, x, y float64) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.SetXY(x, y)
		pdf.Cell(nil, "Failed to load QR code")
		return
	}

	rect := &gopdf.Rect{W: qrSize, H: qrSize}
	if err := pdf.ImageFrom(img, x, y, rect); err != nil {
		pdf.SetXY(x, y)
		pdf.Cell(nil, "Failed to draw QR code")
	}
}

func addTotals(pdf *gopdf.GoPdf, data InvoiceData) {
	if pdf.GetY()+60 > pageBottom {
		pdf.AddPage()
		pdf.SetY(40)
	}
	pdf.SetX(marginX)
	pdf.Cell(nil, fmt.Sprintf("Tickets: %d    Total: %.2f", len(data.Lines), data.Total))
	pdf.Br(20)

	for _, prize := range data.Prizes {
		pdf.SetX(marginX)
		pdf.Cell(nil, "Prize: "+prize)
		pdf.Br(16)
	}
}
