package notify

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-sorteos/internal/config"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/storage"
	qr "ms-sorteos/internal/tickets/qr_genrator"
	"ms-sorteos/internal/tickets/template"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, email Email) error {
	return m.Called(ctx, email).Error(0)
}

type MockInvoices struct {
	mock.Mock
}

func (m *MockInvoices) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return m.Called(ctx, invoice).Error(0)
}

func (m *MockInvoices) SetInvoiceFile(ctx context.Context, id, location string) error {
	return m.Called(ctx, id, location).Error(0)
}

func (m *MockInvoices) DeleteInvoice(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type failingBlobs struct{}

func (failingBlobs) Put(context.Context, string, []byte) (string, error) {
	return "", assert.AnError
}

func (failingBlobs) Get(context.Context, string) ([]byte, error) {
	return nil, storage.ErrNotFound
}

type fakeRenderer struct {
	data template.InvoiceData
	err  error
}

func (r *fakeRenderer) Generate(data template.InvoiceData) ([]byte, error) {
	r.data = data
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-fake"), nil
}

func notice(status models.OrderStatus, reason string) models.SettlementNotice {
	return models.SettlementNotice{
		Order: models.Order{
			ID: "o1", Code: "SRT-ABCD2345", RaffleID: "r1", Quantity: 3,
			TotalAmount: 10, Status: status, StatusReason: reason,
		},
		Client:      models.Client{Name: "Ana", Email: "ana@example.com", NationalID: "V-1"},
		Raffle:      models.Raffle{ID: "r1", Name: "Gran Sorteo"},
		TicketCodes: []string{"001", "002", "003"},
		Winners:     []models.PrizeWin{{TicketCode: "002", Description: "Bicycle"}},
	}
}

func newDispatcher(t *testing.T, mailer Mailer, invoices InvoiceStore, renderer InvoiceRenderer) (*Dispatcher, storage.BlobStore) {
	t.Helper()
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	d := &Dispatcher{
		Mailer:      mailer,
		Invoices:    invoices,
		Blobs:       blobs,
		Renderer:    renderer,
		QR:          qr.NewQRGenerator("secret"),
		CompanyName: "Sorteos",
		Now:         func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) },
	}
	return d, blobs
}

func TestApprovedSendsInvoice(t *testing.T) {
	mailer := new(MockMailer)
	invoices := new(MockInvoices)
	renderer := &fakeRenderer{}
	d, blobs := newDispatcher(t, mailer, invoices, renderer)

	var recorded *models.Invoice
	invoices.On("CreateInvoice", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(*models.Invoice) }).
		Return(nil).Once()
	invoices.On("SetInvoiceFile", mock.Anything, mock.Anything, mock.MatchedBy(func(loc string) bool {
		return strings.HasSuffix(loc, "INV-20260304-ABCD2345.pdf")
	})).Return(nil).Once()
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(e Email) bool {
		return e.To == "ana@example.com" &&
			strings.Contains(e.Text, "002") &&
			strings.Contains(e.Text, "Bicycle") &&
			len(e.Attachments) == 1 &&
			strings.HasSuffix(e.Attachments[0].Name, ".pdf")
	})).Return(nil).Once()

	require.NoError(t, d.NotifySettlement(context.Background(), notice(models.OrderApproved, "")))
	mailer.AssertExpectations(t)
	invoices.AssertExpectations(t)

	require.NotNil(t, recorded)
	assert.Equal(t, "INV-20260304-ABCD2345", recorded.Number)
	assert.Equal(t, 10.0, recorded.Amount)

	stored, err := blobs.Get(context.Background(), recorded.Number+".pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake", string(stored))

	require.Len(t, renderer.data.Lines, 3)
	assert.Equal(t, 3.33, renderer.data.Lines[0].UnitPrice)
	assert.NotEmpty(t, renderer.data.Lines[0].QRCode)
	assert.Equal(t, []string{"002: Bicycle"}, renderer.data.Prizes)
}

func TestInvoiceFailureStillSendsEmail(t *testing.T) {
	mailer := new(MockMailer)
	invoices := new(MockInvoices)
	d, _ := newDispatcher(t, mailer, invoices, &fakeRenderer{err: assert.AnError})

	mailer.On("Send", mock.Anything, mock.MatchedBy(func(e Email) bool {
		return len(e.Attachments) == 0
	})).Return(nil).Once()

	err := d.NotifySettlement(context.Background(), notice(models.OrderApproved, ""))
	assert.ErrorIs(t, err, assert.AnError)
	mailer.AssertExpectations(t)
	invoices.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
}

func TestDuplicateInvoiceKeepsStoredPDF(t *testing.T) {
	mailer := new(MockMailer)
	invoices := new(MockInvoices)
	d, blobs := newDispatcher(t, mailer, invoices, &fakeRenderer{})
	ctx := context.Background()

	_, err := blobs.Put(ctx, "INV-20260304-ABCD2345.pdf", []byte("first"))
	require.NoError(t, err)

	invoices.On("CreateInvoice", mock.Anything, mock.Anything).Return(assert.AnError).Once()
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(e Email) bool {
		return len(e.Attachments) == 0
	})).Return(nil).Once()

	err = d.NotifySettlement(ctx, notice(models.OrderApproved, ""))
	assert.ErrorIs(t, err, assert.AnError)

	stored, err := blobs.Get(ctx, "INV-20260304-ABCD2345.pdf")
	require.NoError(t, err)
	assert.Equal(t, "first", string(stored))
	invoices.AssertNotCalled(t, "SetInvoiceFile", mock.Anything, mock.Anything, mock.Anything)
	mailer.AssertExpectations(t)
}

func TestStorageFailureRemovesInvoice(t *testing.T) {
	mailer := new(MockMailer)
	invoices := new(MockInvoices)
	d, _ := newDispatcher(t, mailer, invoices, &fakeRenderer{})
	d.Blobs = failingBlobs{}

	var recorded *models.Invoice
	invoices.On("CreateInvoice", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(*models.Invoice) }).
		Return(nil).Once()
	invoices.On("DeleteInvoice", mock.Anything, mock.Anything).Return(nil).Once()
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	err := d.NotifySettlement(context.Background(), notice(models.OrderApproved, ""))
	assert.ErrorIs(t, err, assert.AnError)

	require.NotNil(t, recorded)
	invoices.AssertCalled(t, "DeleteInvoice", mock.Anything, recorded.ID)
	invoices.AssertNotCalled(t, "SetInvoiceFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestRejectedAndCancelledCarryReason(t *testing.T) {
	tests := []struct {
		status  models.OrderStatus
		reason  string
		subject string
		text    string
	}{
		{models.OrderRejected, "transfer not received", "was rejected", "transfer not received"},
		{models.OrderCancelled, "", "was cancelled", "no reason given"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			mailer := new(MockMailer)
			d, _ := newDispatcher(t, mailer, new(MockInvoices), &fakeRenderer{})
			mailer.On("Send", mock.Anything, mock.MatchedBy(func(e Email) bool {
				return strings.Contains(e.Subject, tt.subject) && strings.Contains(e.Text, tt.text)
			})).Return(nil).Once()

			require.NoError(t, d.NotifySettlement(context.Background(), notice(tt.status, tt.reason)))
			mailer.AssertExpectations(t)
		})
	}
}

func TestPendingIsNotNotified(t *testing.T) {
	d, _ := newDispatcher(t, new(MockMailer), new(MockInvoices), &fakeRenderer{})
	assert.Error(t, d.NotifySettlement(context.Background(), notice(models.OrderPending, "")))
}

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("sorteos@example.com", Email{
		To:          "ana@example.com",
		Subject:     "Your tickets",
		Text:        "hello",
		HTML:        "<p>hello</p>",
		Attachments: []Attachment{{Name: "INV-1.pdf", Data: []byte("%PDF")}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Your tickets")
	assert.Contains(t, raw, "INV-1.pdf")
	assert.Contains(t, raw, "text/html")

	_, err = buildMessage("not an address", Email{To: "ana@example.com"})
	assert.Error(t, err)
}

func TestDisabledMailerDrops(t *testing.T) {
	m := NewSMTPMailer(config.EmailConfig{Enabled: false}, nil)
	assert.NoError(t, m.Send(context.Background(), Email{To: "bad"}))
}

func TestTelegramAlerter(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"sorteos_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			mu.Lock()
			sent = append(sent, r.Form.Get("chat_id")+":"+r.Form.Get("text"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a, err := newTelegramAlerter("token", srv.URL+"/bot%s/%s", 42, nil)
	require.NoError(t, err)
	require.NoError(t, a.Alert(context.Background(), "refund order SRT-1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"42:refund order SRT-1"}, sent)
}

func TestTelegramAlerterUnconfigured(t *testing.T) {
	a, err := NewTelegramAlerter("", 0, nil)
	require.NoError(t, err)
	assert.NoError(t, a.Alert(context.Background(), "nothing happens"))
}
