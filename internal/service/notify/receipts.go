package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/appolinair2355/Mon/internal/domain/models"
	"github.com/appolinair2355/Mon/internal/service/school"
	client "github.com/appolinair2355/Mon/pkg/clients/whatsapp"
)

// ReceiptSender notifies parents after a tuition payment.
type ReceiptSender interface {
	SendPaymentReceipt(ctx context.Context, student models.TaggedStudent, amount float64) error
}

// WhatsAppReceipts sends receipts to numero_parents through the WhatsApp Cloud API.
type WhatsAppReceipts struct {
	client      client.Client
	countryCode string
	logger      *zap.Logger
}

// NewWhatsAppReceipts wires a receipt sender.
func NewWhatsAppReceipts(c client.Client, countryCode string, logger *zap.Logger) *WhatsAppReceipts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatsAppReceipts{client: c, countryCode: countryCode, logger: logger}
}

// SendPaymentReceipt sends the receipt for amount, already recorded on student.
func (s *WhatsAppReceipts) SendPaymentReceipt(ctx context.Context, student models.TaggedStudent, amount float64) error {
	to := client.NormalizeNumber(student.NumeroParents, s.countryCode)
	if to == "" {
		s.logger.Debug("no parent number, receipt skipped", zap.String("category", string(student.Type)), zap.Int("id", student.ID))
		return nil
	}

	body, err := ReceiptMessage(student, amount)
	if err != nil {
		return err
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{To: to, Body: body}); err != nil {
		return fmt.Errorf("send receipt to %s: %w", to, err)
	}
	s.logger.Info("payment receipt sent", zap.String("category", string(student.Type)), zap.Int("id", student.ID))
	return nil
}

// ReceiptMessage renders the receipt text.
func ReceiptMessage(student models.TaggedStudent, amount float64) (string, error) {
	line, err := school.TuitionFor(student)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Paiement reçu pour %s (%s): %s FCFA.\nTotal payé: %s FCFA. Reste à payer: %s FCFA.",
		student.FullName(), student.Classe, formatAmount(amount), formatAmount(line.TotalPaid), formatAmount(line.Reste)), nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Nop discards receipts when WhatsApp is not configured.
type Nop struct{}

// SendPaymentReceipt does nothing.
func (Nop) SendPaymentReceipt(context.Context, models.TaggedStudent, float64) error {
	return nil
}
