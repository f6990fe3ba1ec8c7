// Package bitacora derives the historical report over loan vouchers: the
// available year / month / deliverer dimensions, the default selection and
// the filtered view with its statistics.
package bitacora

import (
	"sort"
	"strings"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/model"

	"github.com/shopspring/decimal"
)

// Todos selects every deliverer.
const Todos = "Todos"

// SinUnidad groups quantities whose unit of measure is blank.
const SinUnidad = "SIN UNIDAD"

// Meses holds the month names indexed by the 0-based month number used by the report.
var Meses = [12]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// Seleccion is the requested filter. Nil fields are defaulted.
// Mes is 0-based (0 = Enero).
type Seleccion struct {
	Anio    *int
	Mes     *int
	Entrega string
}

// Reporte is the outcome of Construir.
type Reporte struct {
	Anios            []int    // descending
	MesesDisponibles []int    // ascending, for the effective year
	Entregas         []string // Todos first, then first-seen order

	// Effective selection after defaults
	Anio    *int
	Mes     *int
	Entrega string

	Vales        []model.Vale
	TotalVales   int
	TotalInsumos int

	// CantidadPorUnidad sums the quantities that parse as numbers, by unit.
	CantidadPorUnidad     map[string]decimal.Decimal
	CantidadesNoNumericas int
}

// NombreMes returns the Spanish month name, or "" when out of range.
func NombreMes(mes int) string {
	if mes < 0 || mes >= len(Meses) {
		return ""
	}
	return Meses[mes]
}

// Construir partitions vales by the year and month of their creation time in
// loc, applies sel (defaulting missing fields) and computes the statistics.
// Vales without a creation time are ignored entirely.
func Construir(vales []model.Vale, sel Seleccion, loc *time.Location) Reporte {
	if loc == nil {
		loc = time.Local
	}

	mesesPorAnio := make(map[int]map[int]struct{})
	entregas := []string{Todos}
	vistos := map[string]struct{}{Todos: {}}

	for i := range vales {
		t, ok := fechaDe(&vales[i], loc)
		if !ok {
			continue
		}
		anio, mes := t.Year(), int(t.Month())-1
		if mesesPorAnio[anio] == nil {
			mesesPorAnio[anio] = make(map[int]struct{})
		}
		mesesPorAnio[anio][mes] = struct{}{}

		if e := vales[i].NombreEntrega; e != "" {
			if _, ok := vistos[e]; !ok {
				vistos[e] = struct{}{}
				entregas = append(entregas, e)
			}
		}
	}

	anios := make([]int, 0, len(mesesPorAnio))
	for a := range mesesPorAnio {
		anios = append(anios, a)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(anios)))

	rep := Reporte{
		Anios:             anios,
		MesesDisponibles:  []int{},
		Entregas:          entregas,
		Entrega:           sel.Entrega,
		Vales:             []model.Vale{},
		CantidadPorUnidad: make(map[string]decimal.Decimal),
	}
	if rep.Entrega == "" {
		rep.Entrega = Todos
	}

	rep.Anio = sel.Anio
	if rep.Anio == nil && len(anios) > 0 {
		a := anios[0]
		rep.Anio = &a
	}
	if rep.Anio != nil {
		for m := range mesesPorAnio[*rep.Anio] {
			rep.MesesDisponibles = append(rep.MesesDisponibles, m)
		}
		sort.Ints(rep.MesesDisponibles)
	}

	rep.Mes = sel.Mes
	if rep.Mes == nil && len(rep.MesesDisponibles) > 0 {
		m := rep.MesesDisponibles[len(rep.MesesDisponibles)-1]
		rep.Mes = &m
	}

	if rep.Anio == nil || rep.Mes == nil {
		return rep
	}

	for i := range vales {
		v := &vales[i]
		t, ok := fechaDe(v, loc)
		if !ok || t.Year() != *rep.Anio || int(t.Month())-1 != *rep.Mes {
			continue
		}
		if rep.Entrega != Todos && v.NombreEntrega != rep.Entrega {
			continue
		}
		rep.Vales = append(rep.Vales, *v)
		rep.TotalInsumos += len(v.Insumos)
		for _, ins := range v.Insumos {
			cant, ok := parseCantidad(ins.Cantidad)
			if !ok {
				rep.CantidadesNoNumericas++
				continue
			}
			unidad := claveUnidad(ins.UnidadMedida)
			rep.CantidadPorUnidad[unidad] = rep.CantidadPorUnidad[unidad].Add(cant)
		}
	}
	rep.TotalVales = len(rep.Vales)
	return rep
}

func fechaDe(v *model.Vale, loc *time.Location) (time.Time, bool) {
	if v.CreadoEn == nil || v.CreadoEn.IsZero() {
		return time.Time{}, false
	}
	return v.CreadoEn.In(loc), true
}

func parseCantidad(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func claveUnidad(u string) string {
	u = strings.ToUpper(strings.TrimSpace(u))
	if u == "" {
		return SinUnidad
	}
	return u
}
