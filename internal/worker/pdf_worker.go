package worker

// pdf_worker.go
// Renders vouchers to PDF_STORAGE_PATH and, when the job names a recipient,
// chains an email job with the rendered file.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/VictorVasquezZT2005/Prestamos/internal/infra"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
	"github.com/VictorVasquezZT2005/Prestamos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PDFJobPayload is the job envelope sent to QueuePDF.
type PDFJobPayload struct {
	ValeID string `json:"vale_id"`
	Email  string `json:"email,omitempty"`
}

type valeFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Vale, error)
}

type emailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type PDFWorker struct {
	vales       valeFinder
	emails      emailEnqueuer
	impresion   infra.Impresion
	storagePath string
	render      func(v *model.Vale, opts infra.Impresion, storagePath string) (string, error)
}

func NewPDFWorker(vales valeFinder, emails emailEnqueuer, impresion infra.Impresion, storagePath string) *PDFWorker {
	return &PDFWorker{
		vales:       vales,
		emails:      emails,
		impresion:   impresion,
		storagePath: storagePath,
		render:      infra.GenerateValePDF,
	}
}

func (w *PDFWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload PDFJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("pdf_worker: invalid payload: %w", err))
	}
	id, err := uuid.Parse(payload.ValeID)
	if err != nil {
		return Permanent(fmt.Errorf("pdf_worker: invalid vale_id %q", payload.ValeID))
	}

	v, err := w.vales.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return Permanent(fmt.Errorf("pdf_worker: vale %s no existe", id))
	}
	if err != nil {
		return err
	}

	path, err := w.render(v, w.impresion, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Str("vale_id", id.String()).Str("folio", v.NumeroFormulario).Str("path", path).Msg("pdf_worker: vale rendered")

	if payload.Email == "" || w.emails == nil {
		return nil
	}
	return w.emails.EnqueueEmail(ctx, EmailJobPayload{ToEmail: payload.Email, Folio: v.NumeroFormulario, PDFPath: path})
}
