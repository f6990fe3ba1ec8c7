package dto

import "github.com/shopspring/decimal"

// BitacoraQuery selects the report partition. Mes is 0-based (0 = Enero).
type BitacoraQuery struct {
	Anio    *int   `form:"anio"    validate:"omitempty,min=1900,max=9999"`
	Mes     *int   `form:"mes"     validate:"omitempty,min=0,max=11"`
	Entrega string `form:"entrega" validate:"max=150"`
	TZ      string `form:"tz"      validate:"max=64"`
}

type MesOpcion struct {
	Numero int    `json:"numero"`
	Nombre string `json:"nombre"`
}

type BitacoraSeleccion struct {
	Anio      *int   `json:"anio"`
	Mes       *int   `json:"mes"`
	MesNombre string `json:"mesNombre,omitempty"`
	Entrega   string `json:"entrega"`
}

type BitacoraResponse struct {
	Anios                 []int                      `json:"anios"`
	Meses                 []MesOpcion                `json:"meses"`
	Entregas              []string                   `json:"entregas"`
	Seleccion             BitacoraSeleccion          `json:"seleccion"`
	TotalVales            int                        `json:"totalVales"`
	TotalInsumos          int                        `json:"totalInsumos"`
	CantidadPorUnidad     map[string]decimal.Decimal `json:"cantidadPorUnidad"`
	CantidadesNoNumericas int                        `json:"cantidadesNoNumericas"`
	Vales                 []ValeResponse             `json:"vales"`
}
