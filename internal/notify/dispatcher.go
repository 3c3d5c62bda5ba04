package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"ms-sorteos/internal/logger"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/order/pricing"
	"ms-sorteos/internal/storage"
	qr "ms-sorteos/internal/tickets/qr_genrator"
	"ms-sorteos/internal/tickets/template"
	"ms-sorteos/internal/utils"
)

const qrPixels = 192

// InvoiceStore reserves invoice numbers. A row exists before its PDF is written
// so a number never points at another order's file.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	SetInvoiceFile(ctx context.Context, id, location string) error
	DeleteInvoice(ctx context.Context, id string) error
}

type InvoiceRenderer interface {
	Generate(data template.InvoiceData) ([]byte, error)
}

// Dispatcher sends the customer messages of a settlement. Approved orders get
// an invoice with one QR code per ticket.
type Dispatcher struct {
	Mailer      Mailer
	Invoices    InvoiceStore
	Blobs       storage.BlobStore
	Renderer    InvoiceRenderer
	QR          *qr.QRGenerator
	CompanyName string
	Logger      *logger.Logger
	Now         func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) log() *logger.Logger {
	if d.Logger == nil {
		return logger.Discard()
	}
	return d.Logger
}

func (d *Dispatcher) NotifySettlement(ctx context.Context, notice models.SettlementNotice) error {
	switch notice.Order.Status {
	case models.OrderApproved:
		return d.notifyApproved(ctx, notice)
	case models.OrderRejected, models.OrderCancelled:
		return d.Mailer.Send(ctx, closedEmail(notice))
	default:
		return fmt.Errorf("order %s is not settled", notice.Order.ID)
	}
}

// notifyApproved always tries to send the confirmation, with the invoice
// attached when it could be produced.
func (d *Dispatcher) notifyApproved(ctx context.Context, notice models.SettlementNotice) error {
	email := approvedEmail(notice)

	invoice, pdf, invoiceErr := d.issueInvoice(ctx, notice)
	if invoiceErr != nil {
		d.log().Error("INVOICE", fmt.Sprintf("Failed to issue invoice for order %s: %v", notice.Order.ID, invoiceErr))
	} else {
		email.Attachments = append(email.Attachments, Attachment{Name: invoice.Number + ".pdf", Data: pdf})
	}

	sendErr := d.Mailer.Send(ctx, email)
	return errors.Join(invoiceErr, sendErr)
}

func (d *Dispatcher) issueInvoice(ctx context.Context, notice models.SettlementNotice) (*models.Invoice, []byte, error) {
	if d.Renderer == nil || d.Blobs == nil || d.Invoices == nil {
		return nil, nil, errors.New("invoicing is not configured")
	}

	now := d.now()
	invoice := &models.Invoice{
		ID:        utils.GenerateUUID(),
		OrderID:   notice.Order.ID,
		Number:    utils.InvoiceNumber(now, notice.Order.Code),
		Amount:    notice.Order.TotalAmount,
		CreatedAt: now,
	}

	unit := pricing.UnitPrice(notice.Order.TotalAmount, notice.Order.Quantity)
	lines := make([]template.InvoiceLine, 0, len(notice.TicketCodes))
	for _, code := range notice.TicketCodes {
		line := template.InvoiceLine{TicketCode: code, UnitPrice: unit}
		if d.QR != nil {
			img, err := d.QR.GenerateEncryptedQR(qr.TicketPayload{
				RaffleID:   notice.Raffle.ID,
				OrderCode:  notice.Order.Code,
				TicketCode: code,
			}, qrPixels)
			if err != nil {
				return nil, nil, fmt.Errorf("qr for ticket %s: %w", code, err)
			}
			line.QRCode = img
		}
		lines = append(lines, line)
	}

	prizes := make([]string, len(notice.Winners))
	for i, w := range notice.Winners {
		prizes[i] = w.TicketCode + ": " + w.Description
	}

	pdf, err := d.Renderer.Generate(template.InvoiceData{
		Number:      invoice.Number,
		IssuedAt:    now,
		CompanyName: d.CompanyName,
		RaffleName:  notice.Raffle.Name,
		OrderCode:   notice.Order.Code,
		ClientName:  notice.Client.Name,
		ClientEmail: notice.Client.Email,
		NationalID:  notice.Client.NationalID,
		Lines:       lines,
		Total:       notice.Order.TotalAmount,
		Prizes:      prizes,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("render invoice: %w", err)
	}

	if err := d.Invoices.CreateInvoice(ctx, invoice); err != nil {
		return nil, nil, fmt.Errorf("record invoice: %w", err)
	}

	location, err := d.Blobs.Put(ctx, invoice.Number+".pdf", pdf)
	if err != nil {
		if delErr := d.Invoices.DeleteInvoice(ctx, invoice.ID); delErr != nil {
			d.log().Error("INVOICE", fmt.Sprintf("Failed to remove invoice %s after storage error: %v", invoice.Number, delErr))
		}
		return nil, nil, fmt.Errorf("store invoice: %w", err)
	}
	invoice.FilePath = location

	if err := d.Invoices.SetInvoiceFile(ctx, invoice.ID, location); err != nil {
		d.log().Warn("INVOICE", fmt.Sprintf("Invoice %s stored at %s but its path was not recorded: %v", invoice.Number, location, err))
	}
	d.log().Info("INVOICE", fmt.Sprintf("Issued %s for order %s at %s", invoice.Number, notice.Order.ID, location))
	return invoice, pdf, nil
}

func approvedEmail(n models.SettlementNotice) Email {
	var text strings.Builder
	fmt.Fprintf(&text, "Hello %s,\n\nYour payment for %s was approved.\nOrder: %s\nTotal: %.2f\n\nYour tickets:\n",
		n.Client.Name, n.Raffle.Name, n.Order.Code, n.Order.TotalAmount)
	for _, code := range n.TicketCodes {
		fmt.Fprintf(&text, "  %s\n", code)
	}
	for _, w := range n.Winners {
		fmt.Fprintf(&text, "\nTicket %s won: %s\n", w.TicketCode, w.Description)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<p>Hello %s,</p><p>Your payment for <b>%s</b> was approved.</p><p>Order %s, total %.2f</p><ul>",
		html.EscapeString(n.Client.Name), html.EscapeString(n.Raffle.Name), html.EscapeString(n.Order.Code), n.Order.TotalAmount)
	for _, code := range n.TicketCodes {
		fmt.Fprintf(&body, "<li>%s</li>", html.EscapeString(code))
	}
	body.WriteString("</ul>")
	for _, w := range n.Winners {
		fmt.Fprintf(&body, "<p>Ticket %s won: %s</p>", html.EscapeString(w.TicketCode), html.EscapeString(w.Description))
	}

	return Email{
		To:      n.Client.Email,
		Subject: fmt.Sprintf("Your tickets for %s (%s)", n.Raffle.Name, n.Order.Code),
		Text:    text.String(),
		HTML:    body.String(),
	}
}

func closedEmail(n models.SettlementNotice) Email {
	reason := n.Order.StatusReason
	if reason == "" {
		reason = "no reason given"
	}
	verb := "was rejected"
	if n.Order.Status == models.OrderCancelled {
		verb = "was cancelled"
	}
	return Email{
		To:      n.Client.Email,
		Subject: fmt.Sprintf("Order %s %s", n.Order.Code, verb),
		Text: fmt.Sprintf("Hello %s,\n\nYour order %s for %s %s.\nReason: %s\n\nThe reserved tickets are available again.\n",
			n.Client.Name, n.Order.Code, n.Raffle.Name, verb, reason),
	}
}
