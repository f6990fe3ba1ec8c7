package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/VictorVasquezZT2005/Prestamos/internal/folio"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
)

// Texto accepts a JSON string, number, boolean or null and keeps its textual
// form. Documents exported from the old store are schemaless, so a field that
// is usually a string may arrive as a number.
type Texto string

func (t *Texto) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Texto(s)
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("se esperaba un valor escalar: %s", b)
	default:
		*t = Texto(b)
	}
	return nil
}

func (t Texto) String() string { return strings.TrimSpace(string(t)) }

type InsumoDocumento struct {
	Descripcion  Texto `json:"descripcion"`
	Cantidad     Texto `json:"cantidad"`
	UnidadMedida Texto `json:"unidadMedida"`
}

// ValeDocumento is one voucher as exported from the old document store.
type ValeDocumento struct {
	NumeroFormulario Texto             `json:"numeroFormulario"`
	Codigo           Texto             `json:"codigo"`
	Requisicion      Texto             `json:"requisicion"`
	AreaOrigen       Texto             `json:"areaOrigen"`
	AreaDestino      Texto             `json:"areaDestino"`
	SolicitadoPor    Texto             `json:"solicitadoPor"`
	Habitacion       Texto             `json:"habitacion"`
	NombrePaciente   Texto             `json:"nombrePaciente"`
	NombreEntrega    Texto             `json:"nombreEntrega"`
	NombreRecibe     Texto             `json:"nombreRecibe"`
	Insumos          []InsumoDocumento `json:"insumos"`
	CreatedAt        Texto             `json:"createdAt"`
	UpdatedAt        Texto             `json:"updatedAt"`
	UserID           Texto             `json:"userId"`
}

type ImportarRequest struct {
	Documentos []ValeDocumento `json:"documentos" validate:"required,min=1,max=5000"`
}

type RechazoImportacion struct {
	Indice int    `json:"indice"`
	Motivo string `json:"motivo"`
}

type ImportarResponse struct {
	Importados int                  `json:"importados"`
	Rechazados []RechazoImportacion `json:"rechazados"`
}

var ErrDocumentoInvalido = errors.New("documento invalido")

// Column widths of the vales and vale_insumos tables.
const (
	anchoFolio    = 20
	anchoUsuario  = 64
	anchoCantidad = 50
	anchoUnidad   = 50
)

var formatosFecha = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Normalizar validates the document and converts it into a Vale.
// A malformed folio or a value wider than its column rejects the document.
// Every other malformed field is defaulted: strings are trimmed, item rows
// without description are dropped and unparsable timestamps become nil.
func (d ValeDocumento) Normalizar() (model.Vale, error) {
	numero, err := folio.Normalizar(d.NumeroFormulario.String())
	if err != nil {
		return model.Vale{}, fmt.Errorf("%w: numeroFormulario %q", ErrDocumentoInvalido, d.NumeroFormulario.String())
	}
	if err := excede("numeroFormulario", numero, anchoFolio); err != nil {
		return model.Vale{}, err
	}
	if err := excede("userId", d.UserID.String(), anchoUsuario); err != nil {
		return model.Vale{}, err
	}

	v := model.Vale{
		NumeroFormulario: numero,
		Codigo:           d.Codigo.String(),
		Requisicion:      d.Requisicion.String(),
		AreaOrigen:       d.AreaOrigen.String(),
		AreaDestino:      d.AreaDestino.String(),
		SolicitadoPor:    d.SolicitadoPor.String(),
		Habitacion:       d.Habitacion.String(),
		NombrePaciente:   d.NombrePaciente.String(),
		NombreEntrega:    d.NombreEntrega.String(),
		NombreRecibe:     d.NombreRecibe.String(),
		UsuarioID:        d.UserID.String(),
		CreadoEn:         parseFecha(d.CreatedAt.String()),
		ActualizadoEn:    parseFecha(d.UpdatedAt.String()),
	}
	for i, ins := range d.Insumos {
		desc := ins.Descripcion.String()
		if desc == "" {
			continue
		}
		cantidad, unidad := ins.Cantidad.String(), ins.UnidadMedida.String()
		if err := excede(fmt.Sprintf("insumos[%d].cantidad", i), cantidad, anchoCantidad); err != nil {
			return model.Vale{}, err
		}
		if err := excede(fmt.Sprintf("insumos[%d].unidadMedida", i), unidad, anchoUnidad); err != nil {
			return model.Vale{}, err
		}
		v.Insumos = append(v.Insumos, model.Insumo{
			Posicion:     len(v.Insumos),
			Descripcion:  desc,
			Cantidad:     cantidad,
			UnidadMedida: unidad,
		})
	}
	return v, nil
}

// excede counts characters the way Postgres varchar does.
func excede(campo, valor string, limite int) error {
	if n := utf8.RuneCountInString(valor); n > limite {
		return fmt.Errorf("%w: %s excede %d caracteres (%d)", ErrDocumentoInvalido, campo, limite, n)
	}
	return nil
}

func parseFecha(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range formatosFecha {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
