package infra

// pdf.go renders a loan voucher on one Letter page with go-pdf/fpdf. The
// page is split in two identical halves, ORIGINAL on top and COPIA below,
// separated by a dashed cutting line.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/model"

	"github.com/go-pdf/fpdf"
)

// Impresion carries the settings shared by the PDF and HTML renderers.
type Impresion struct {
	Hospital string
	Loc      *time.Location
}

const (
	tituloVale   = "FORMULARIO DE PRÉSTAMO DE PRODUCTOS"
	margenPDF    = 12.0
	altoFila     = 5.5
	sinDato      = "N/A"
	formatoFecha = "02/01/2006 15:04"
)

// oNA prints "N/A" for a field left blank on the form.
func oNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return sinDato
	}
	return s
}

// FechaVale formats the creation time of v in loc, or "N/A".
func FechaVale(v *model.Vale, loc *time.Location) string {
	if v.CreadoEn == nil || v.CreadoEn.IsZero() {
		return sinDato
	}
	if loc == nil {
		loc = time.Local
	}
	return v.CreadoEn.In(loc).Format(formatoFecha)
}

// RenderValePDF writes the voucher PDF to w.
func RenderValePDF(w io.Writer, v *model.Vale, opts Impresion) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(margenPDF, margenPDF, margenPDF)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// Core fonts are cp1252; accents need the translator.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()
	mitad := pageH / 2

	dibujarMitad(pdf, tr, v, opts, "ORIGINAL", 0, mitad, pageW)

	pdf.SetDashPattern([]float64{2, 2}, 0)
	pdf.SetDrawColor(120, 120, 120)
	pdf.Line(margenPDF/2, mitad, pageW-margenPDF/2, mitad)
	pdf.SetDashPattern([]float64{}, 0)
	pdf.SetDrawColor(0, 0, 0)

	dibujarMitad(pdf, tr, v, opts, "COPIA", mitad, mitad, pageW)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: render: %w", err)
	}
	return nil
}

// GenerateValePDF renders the voucher into storagePath and returns the file
// path. Folios can repeat across imports, so the file name carries the vale ID.
func GenerateValePDF(v *model.Vale, opts Impresion, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("vale_%s_%s.pdf", v.NumeroFormulario, v.ID))

	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("pdf: create file: %w", err)
	}
	if err := RenderValePDF(f, v, opts); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func dibujarMitad(pdf *fpdf.Fpdf, tr func(string) string, v *model.Vale, opts Impresion, etiqueta string, top, alto, pageW float64) {
	contentW := pageW - 2*margenPDF
	bottom := top + alto - margenPDF/2

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetXY(margenPDF, top+margenPDF/2)
	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(contentW, 4, etiqueta, "", 1, "R", false, 0, "")

	if opts.Hospital != "" {
		pdf.SetX(margenPDF)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(contentW, 5, tr(opts.Hospital), "", 1, "C", false, 0, "")
	}
	pdf.SetX(margenPDF)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 6, tr(tituloVale), "", 1, "C", false, 0, "")
	pdf.Ln(1)

	pdf.SetX(margenPDF)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW/2, 5, tr("Vale #"+v.NumeroFormulario), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW/2, 5, tr("Fecha: "+FechaVale(v, opts.Loc)), "", 1, "R", false, 0, "")
	pdf.Ln(1)

	// ── Fields ───────────────────────────────────────────────────────────────
	campo := func(etiqueta, valor string, w float64, ln int) {
		pdf.SetFont("Helvetica", "B", 8)
		lw := pdf.GetStringWidth(tr(etiqueta)) + 1.5
		pdf.CellFormat(lw, altoFila, tr(etiqueta), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(w-lw, altoFila, recortar(pdf, tr(valor), w-lw), "B", ln, "L", false, 0, "")
	}
	pdf.SetX(margenPDF)
	campo("Código Hosp.:", oNA(v.Codigo), contentW/2-2, 0)
	pdf.SetX(margenPDF + contentW/2 + 2)
	campo("Requisición:", oNA(v.Requisicion), contentW/2-2, 1)
	pdf.SetX(margenPDF)
	// cp1252 has no arrow glyph; the HTML document uses ➔.
	campo("Origen » Destino:", v.AreaOrigen+"  »  "+v.AreaDestino, contentW, 1)
	pdf.SetX(margenPDF)
	campo("Paciente:", oNA(v.NombrePaciente), contentW*0.7-2, 0)
	pdf.SetX(margenPDF + contentW*0.7 + 2)
	campo("Habitación:", oNA(v.Habitacion), contentW*0.3-2, 1)
	pdf.SetX(margenPDF)
	campo("Solicitado por:", oNA(v.SolicitadoPor), contentW, 1)
	pdf.Ln(2)

	// ── Items table ──────────────────────────────────────────────────────────
	colDesc := contentW * 0.50
	colCant := contentW * 0.12
	colUM := contentW * 0.14
	colFirma := contentW - colDesc - colCant - colUM

	pdf.SetX(margenPDF)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(colDesc, altoFila, tr("DESCRIPCIÓN DE PRODUCTOS"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(colCant, altoFila, "CANT.", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colUM, altoFila, "U.M.", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colFirma, altoFila, "FIRMA RECIBIDO", "1", 1, "C", true, 0, "")

	firmasTop := bottom - 16
	filasLibres := int((firmasTop - pdf.GetY() - 2) / altoFila)
	pdf.SetFont("Helvetica", "", 8)
	for i, ins := range v.Insumos {
		if i == filasLibres-1 && len(v.Insumos) > filasLibres {
			pdf.SetX(margenPDF)
			resto := fmt.Sprintf("... y %d insumos más", len(v.Insumos)-i)
			pdf.CellFormat(contentW, altoFila, tr(resto), "1", 1, "L", false, 0, "")
			break
		}
		pdf.SetX(margenPDF)
		pdf.CellFormat(colDesc, altoFila, recortar(pdf, tr(ins.Descripcion), colDesc), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colCant, altoFila, recortar(pdf, tr(ins.Cantidad), colCant), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colUM, altoFila, recortar(pdf, tr(ins.UnidadMedida), colUM), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colFirma, altoFila, "", "1", 1, "C", false, 0, "")
	}

	// ── Signatures ───────────────────────────────────────────────────────────
	firmaW := contentW/2 - 10
	pdf.Line(margenPDF+5, firmasTop+8, margenPDF+5+firmaW, firmasTop+8)
	pdf.Line(margenPDF+contentW/2+5, firmasTop+8, margenPDF+contentW/2+5+firmaW, firmasTop+8)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(margenPDF+5, firmasTop+9)
	pdf.CellFormat(firmaW, 4, recortar(pdf, tr("ENTREGADO POR: "+v.NombreEntrega), firmaW), "", 0, "C", false, 0, "")
	pdf.SetXY(margenPDF+contentW/2+5, firmasTop+9)
	pdf.CellFormat(firmaW, 4, recortar(pdf, tr("RECIBIDO POR: "+v.NombreRecibe), firmaW), "", 0, "C", false, 0, "")
}

// recortar shortens s with an ellipsis so it fits in w millimetres.
func recortar(pdf *fpdf.Fpdf, s string, w float64) string {
	limite := w - 2
	if pdf.GetStringWidth(s) <= limite {
		return s
	}
	r := []byte(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > limite {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
