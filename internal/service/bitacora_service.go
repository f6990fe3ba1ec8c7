package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/bitacora"
	"github.com/VictorVasquezZT2005/Prestamos/internal/dto"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
	"github.com/VictorVasquezZT2005/Prestamos/internal/repository"

	"golang.org/x/sync/singleflight"
)

var ErrZonaInvalida = errors.New("Zona horaria invalida")

type BitacoraService interface {
	Generar(ctx context.Context, q dto.BitacoraQuery) (*dto.BitacoraResponse, error)
}

type bitacoraService struct {
	repo  repository.ValeRepository
	loc   *time.Location
	carga singleflight.Group
}

// NewBitacoraService builds reports in loc unless the query names a zone.
func NewBitacoraService(repo repository.ValeRepository, loc *time.Location) BitacoraService {
	return &bitacoraService{repo: repo, loc: loc}
}

func (s *bitacoraService) Generar(ctx context.Context, q dto.BitacoraQuery) (*dto.BitacoraResponse, error) {
	loc := s.loc
	if tz := strings.TrimSpace(q.TZ); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, ErrZonaInvalida
		}
		loc = l
	}

	vales, err := s.cargar(ctx)
	if err != nil {
		return nil, err
	}

	entrega := strings.TrimSpace(q.Entrega)
	if entrega == "" {
		entrega = bitacora.Todos
	}
	rep := bitacora.Construir(vales, bitacora.Seleccion{Anio: q.Anio, Mes: q.Mes, Entrega: entrega}, loc)
	return toBitacoraResponse(rep), nil
}

// cargaTimeout bounds the shared query, which no single caller owns.
const cargaTimeout = 30 * time.Second

// cargar collapses concurrent report requests into one query. The shared
// slice is treated as read-only. The query runs detached from the caller
// that started it, so a disconnect does not fail the callers merged into it;
// each caller still stops waiting when its own ctx ends.
func (s *bitacoraService) cargar(ctx context.Context) ([]model.Vale, error) {
	ch := s.carga.DoChan("vales", func() (interface{}, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cargaTimeout)
		defer cancel()
		return s.repo.ListByFecha(qctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.Vale), nil
	}
}

func toBitacoraResponse(rep bitacora.Reporte) *dto.BitacoraResponse {
	resp := &dto.BitacoraResponse{
		Anios:                 rep.Anios,
		Meses:                 make([]dto.MesOpcion, len(rep.MesesDisponibles)),
		Entregas:              rep.Entregas,
		TotalVales:            rep.TotalVales,
		TotalInsumos:          rep.TotalInsumos,
		CantidadPorUnidad:     rep.CantidadPorUnidad,
		CantidadesNoNumericas: rep.CantidadesNoNumericas,
		Vales:                 make([]dto.ValeResponse, len(rep.Vales)),
		Seleccion: dto.BitacoraSeleccion{
			Anio:    rep.Anio,
			Mes:     rep.Mes,
			Entrega: rep.Entrega,
		},
	}
	for i, m := range rep.MesesDisponibles {
		resp.Meses[i] = dto.MesOpcion{Numero: m, Nombre: bitacora.NombreMes(m)}
	}
	if rep.Mes != nil {
		resp.Seleccion.MesNombre = bitacora.NombreMes(*rep.Mes)
	}
	for i := range rep.Vales {
		resp.Vales[i] = toValeResponse(&rep.Vales[i])
	}
	if resp.Anios == nil {
		resp.Anios = []int{}
	}
	return resp
}
