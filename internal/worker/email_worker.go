package worker

// email_worker.go
// Processes email jobs from QueueEmail: sends the rendered voucher PDF via SMTP.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Folio   string `json:"folio"`
	PDFPath string `json:"pdf_path"`
}

type valeSender interface {
	SendVale(to, folio, pdfPath string) error
}

// EmailWorker processes email jobs from QueueEmail.
type EmailWorker struct {
	mailer valeSender
}

// NewEmailWorker creates an EmailWorker with the provided SMTP mailer.
func NewEmailWorker(mailer valeSender) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("email_worker: invalid payload: %w", err))
	}
	if payload.ToEmail == "" {
		return Permanent(errors.New("email_worker: empty to_email"))
	}

	if err := w.mailer.SendVale(payload.ToEmail, payload.Folio, payload.PDFPath); err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", payload.ToEmail, err)
	}
	log.Info().Str("to", payload.ToEmail).Str("folio", payload.Folio).Msg("email_worker: vale sent")
	return nil
}
