package dto

import "time"

// JSON field names follow the documents already stored by the mobile client.

// ─── Request DTOs ────────────────────────────────────────────────────────────

type InsumoDTO struct {
	Descripcion  string `json:"descripcion"  validate:"max=500"`
	Cantidad     string `json:"cantidad"     validate:"max=50"`
	UnidadMedida string `json:"unidadMedida" validate:"max=50"`
}

// ValeRequest is the body of both create and update. Required fields are
// checked by the service, which owns the user-facing message.
type ValeRequest struct {
	Codigo         string      `json:"codigo"         validate:"max=100"`
	Requisicion    string      `json:"requisicion"    validate:"max=100"`
	AreaOrigen     string      `json:"areaOrigen"     validate:"max=150"`
	AreaDestino    string      `json:"areaDestino"    validate:"max=150"`
	SolicitadoPor  string      `json:"solicitadoPor"  validate:"max=150"`
	Habitacion     string      `json:"habitacion"     validate:"max=50"`
	NombrePaciente string      `json:"nombrePaciente" validate:"max=200"`
	NombreEntrega  string      `json:"nombreEntrega"  validate:"max=150"`
	NombreRecibe   string      `json:"nombreRecibe"   validate:"max=150"`
	MismaPersona   bool        `json:"isSamePerson"`
	Insumos        []InsumoDTO `json:"insumos"        validate:"max=200,dive"`
}

type EnviarValeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ValeFilter struct {
	Q string `form:"q"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ValeResponse struct {
	ID               string      `json:"id"`
	NumeroFormulario string      `json:"numeroFormulario"`
	Codigo           string      `json:"codigo"`
	Requisicion      string      `json:"requisicion"`
	AreaOrigen       string      `json:"areaOrigen"`
	AreaDestino      string      `json:"areaDestino"`
	SolicitadoPor    string      `json:"solicitadoPor"`
	Habitacion       string      `json:"habitacion"`
	NombrePaciente   string      `json:"nombrePaciente"`
	NombreEntrega    string      `json:"nombreEntrega"`
	NombreRecibe     string      `json:"nombreRecibe"`
	Insumos          []InsumoDTO `json:"insumos"`
	CreatedAt        *string     `json:"createdAt,omitempty"`
	UpdatedAt        *string     `json:"updatedAt,omitempty"`
	UserID           string      `json:"userId"`
}

// ValeMensajeResponse pairs a stored voucher with the confirmation shown to
// the user.
type ValeMensajeResponse struct {
	Mensaje string       `json:"mensaje"`
	Vale    ValeResponse `json:"vale"`
}

type ValeListResponse struct {
	Data  []ValeResponse `json:"data"`
	Total int            `json:"total"`
}

// SnapshotResponse is one Server-Sent Event of the live voucher list.
type SnapshotResponse struct {
	Version uint64         `json:"version"`
	At      time.Time      `json:"at"`
	Total   int            `json:"total"`
	Data    []ValeResponse `json:"data"`
}
