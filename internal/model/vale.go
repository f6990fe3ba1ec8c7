package model

import (
	"time"

	"github.com/google/uuid"
)

// Vale is a loan voucher of supplies between two hospital areas.
// NumeroFormulario is indexed but not unique: legacy data may carry duplicates.
type Vale struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroFormulario string    `gorm:"type:varchar(20);index;not null"`
	Codigo           string    `gorm:"not null;default:''"`
	Requisicion      string    `gorm:"not null;default:''"`
	AreaOrigen       string    `gorm:"not null;default:''"`
	AreaDestino      string    `gorm:"not null;default:''"`
	SolicitadoPor    string    `gorm:"not null;default:''"`
	Habitacion       string    `gorm:"not null;default:''"`
	NombrePaciente   string    `gorm:"not null;default:''"`
	NombreEntrega    string    `gorm:"not null;default:''"`
	NombreRecibe     string    `gorm:"not null;default:''"`
	Insumos          []Insumo  `gorm:"foreignKey:ValeID;constraint:OnDelete:CASCADE"`
	// UsuarioID references usuarios.id by value only; legacy uids are kept verbatim
	UsuarioID     string     `gorm:"type:varchar(64);index;not null;default:''"`
	CreadoEn      *time.Time `gorm:"column:created_at;index"`
	ActualizadoEn *time.Time `gorm:"column:updated_at"`
}

func (Vale) TableName() string { return "vales" }

// Insumo is one line item of a Vale. Cantidad is free text.
type Insumo struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ValeID       uuid.UUID `gorm:"type:uuid;index;not null"`
	Posicion     int       `gorm:"not null"`
	Descripcion  string    `gorm:"not null;default:''"`
	Cantidad     string    `gorm:"type:varchar(50);not null;default:''"`
	UnidadMedida string    `gorm:"type:varchar(50);not null;default:''"`
}

func (Insumo) TableName() string { return "vale_insumos" }

// ContadorFolio backs the atomic folio allocation mode.
type ContadorFolio struct {
	Nombre    string `gorm:"type:varchar(30);primaryKey"`
	Ultimo    int64  `gorm:"not null"`
	UpdatedAt time.Time
}

func (ContadorFolio) TableName() string { return "folios" }
