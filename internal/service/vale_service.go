package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/dto"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
	"github.com/VictorVasquezZT2005/Prestamos/internal/repository"
	"github.com/VictorVasquezZT2005/Prestamos/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Routing keys of the voucher events.
const (
	EventoValeCreado      = "vale.creado"
	EventoValeActualizado = "vale.actualizado"
	EventoValeEliminado   = "vale.eliminado"
)

// fechaISO matches the timestamps written by the mobile client.
const fechaISO = "2006-01-02T15:04:05.000Z07:00"

// Notificador fans out "the voucher list changed" signals between instances.
// The channel returned by Suscribir holds at most one pending signal and is
// closed once ctx is done.
type Notificador interface {
	Notificar(ctx context.Context) error
	Suscribir(ctx context.Context) (<-chan struct{}, error)
}

// Publicador emits domain events. Delivery is best-effort.
type Publicador interface {
	Publicar(ctx context.Context, clave string, evento any) error
}

// Encolador schedules the background delivery of a voucher by e-mail.
type Encolador interface {
	EnqueueEnvioVale(ctx context.Context, valeID uuid.UUID, email string) error
}

// ValeEvento is the body of every voucher event.
type ValeEvento struct {
	Tipo             string    `json:"tipo"`
	ValeID           string    `json:"valeId"`
	NumeroFormulario string    `json:"numeroFormulario"`
	UsuarioID        string    `json:"usuarioId"`
	Timestamp        time.Time `json:"timestamp"`
}

// Snapshot is one immutable state of the voucher list delivered by Observar.
type Snapshot struct {
	version uint64
	at      time.Time
	vales   []dto.ValeResponse
}

func nuevoSnapshot(version uint64, vales []dto.ValeResponse) Snapshot {
	return Snapshot{version: version, at: time.Now(), vales: slices.Clone(vales)}
}

func (s Snapshot) Version() uint64           { return s.version }
func (s Snapshot) At() time.Time             { return s.at }
func (s Snapshot) Len() int                  { return len(s.vales) }
func (s Snapshot) Vales() []dto.ValeResponse { return slices.Clone(s.vales) }

func (s Snapshot) Response() dto.SnapshotResponse {
	return dto.SnapshotResponse{Version: s.version, At: s.at, Total: len(s.vales), Data: s.Vales()}
}

type ValeService interface {
	Crear(ctx context.Context, sess session.Session, req dto.ValeRequest) (*dto.ValeResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.ValeResponse, error)
	// ObtenerModelo returns the stored voucher, for rendering.
	ObtenerModelo(ctx context.Context, id uuid.UUID) (*model.Vale, error)
	Listar(ctx context.Context, q string) ([]dto.ValeResponse, error)
	Actualizar(ctx context.Context, sess session.Session, id uuid.UUID, req dto.ValeRequest) (*dto.ValeResponse, error)
	Eliminar(ctx context.Context, sess session.Session, id uuid.UUID) error
	Importar(ctx context.Context, sess session.Session, docs []dto.ValeDocumento) (*dto.ImportarResponse, error)
	Enviar(ctx context.Context, id uuid.UUID, email string) error
	// Observar emits the filtered list now and again after every change,
	// until ctx is cancelled; the channel is then closed.
	Observar(ctx context.Context, q string) (<-chan Snapshot, error)
}

type valeService struct {
	repo        repository.ValeRepository
	notificador Notificador
	publicador  Publicador
	encolador   Encolador
	now         func() time.Time
}

// NewValeService wires the voucher use cases. publicador and encolador may be nil.
func NewValeService(repo repository.ValeRepository, notificador Notificador, publicador Publicador, encolador Encolador) ValeService {
	return &valeService{
		repo:        repo,
		notificador: notificador,
		publicador:  publicador,
		encolador:   encolador,
		now:         time.Now,
	}
}

func (s *valeService) Crear(ctx context.Context, sess session.Session, req dto.ValeRequest) (*dto.ValeResponse, error) {
	req = limpiar(req)
	if req.Codigo == "" || req.NombrePaciente == "" || len(req.Insumos) == 0 || req.Insumos[0].Descripcion == "" {
		return nil, ErrValeIncompleto
	}
	if req.NombreEntrega == "" {
		req.NombreEntrega = sess.NombreVisible()
	}

	ahora := s.now()
	v := valeDesdeRequest(req)
	v.UsuarioID = sess.UserID.String()
	v.CreadoEn = &ahora

	if err := s.repo.Create(ctx, &v); err != nil {
		return nil, fmt.Errorf("crear vale: %w", err)
	}
	log.Info().Str("vale_id", v.ID.String()).Str("folio", v.NumeroFormulario).Str("usuario_id", v.UsuarioID).Msg("vale registrado")

	s.despuesDeCambio(ctx, EventoValeCreado, &v)
	resp := toValeResponse(&v)
	return &resp, nil
}

func (s *valeService) Obtener(ctx context.Context, id uuid.UUID) (*dto.ValeResponse, error) {
	v, err := s.ObtenerModelo(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toValeResponse(v)
	return &resp, nil
}

func (s *valeService) ObtenerModelo(ctx context.Context, id uuid.UUID) (*model.Vale, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrValeNoEncontrado
		}
		return nil, err
	}
	return v, nil
}

func (s *valeService) Listar(ctx context.Context, q string) ([]dto.ValeResponse, error) {
	vales, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	resp := make([]dto.ValeResponse, 0, len(vales))
	for i := range vales {
		if q != "" && !coincide(&vales[i], q) {
			continue
		}
		resp = append(resp, toValeResponse(&vales[i]))
	}
	return resp, nil
}

func coincide(v *model.Vale, q string) bool {
	texto := strings.ToLower(v.NombrePaciente + " " + v.Codigo + " " + v.NumeroFormulario)
	return strings.Contains(texto, q)
}

func (s *valeService) Actualizar(ctx context.Context, sess session.Session, id uuid.UUID, req dto.ValeRequest) (*dto.ValeResponse, error) {
	if !sess.EsAdmin() {
		return nil, ErrSoloAdmin
	}
	req = limpiar(req)
	if req.Codigo == "" || req.NombrePaciente == "" || len(req.Insumos) == 0 {
		return nil, ErrValeIncompleto
	}
	actual, err := s.ObtenerModelo(ctx, id)
	if err != nil {
		return nil, err
	}

	ahora := s.now()
	v := valeDesdeRequest(req)
	v.ID = actual.ID
	v.NumeroFormulario = actual.NumeroFormulario
	v.UsuarioID = actual.UsuarioID
	v.CreadoEn = actual.CreadoEn
	v.ActualizadoEn = &ahora

	if err := s.repo.Update(ctx, &v); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrValeNoEncontrado
		}
		return nil, fmt.Errorf("actualizar vale: %w", err)
	}
	log.Info().Str("vale_id", v.ID.String()).Str("por", sess.UserID.String()).Msg("vale actualizado")

	s.despuesDeCambio(ctx, EventoValeActualizado, &v)
	resp := toValeResponse(&v)
	return &resp, nil
}

func (s *valeService) Eliminar(ctx context.Context, sess session.Session, id uuid.UUID) error {
	if !sess.EsAdmin() {
		return ErrSoloAdmin
	}
	v, err := s.ObtenerModelo(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrValeNoEncontrado
		}
		log.Error().Err(err).Str("vale_id", id.String()).Msg("eliminar vale")
		return ErrNoSeElimino
	}
	log.Info().Str("vale_id", id.String()).Str("por", sess.UserID.String()).Msg("vale eliminado")

	s.despuesDeCambio(ctx, EventoValeEliminado, v)
	return nil
}

func (s *valeService) Importar(ctx context.Context, sess session.Session, docs []dto.ValeDocumento) (*dto.ImportarResponse, error) {
	if !sess.EsAdmin() {
		return nil, ErrSoloAdmin
	}
	resp := &dto.ImportarResponse{Rechazados: []dto.RechazoImportacion{}}
	vales := make([]model.Vale, 0, len(docs))
	for i, doc := range docs {
		v, err := doc.Normalizar()
		if err != nil {
			resp.Rechazados = append(resp.Rechazados, dto.RechazoImportacion{Indice: i, Motivo: err.Error()})
			continue
		}
		vales = append(vales, v)
	}
	if err := s.repo.Import(ctx, vales); err != nil {
		return nil, fmt.Errorf("importar vales: %w", err)
	}
	resp.Importados = len(vales)
	log.Info().Int("importados", resp.Importados).Int("rechazados", len(resp.Rechazados)).
		Str("por", sess.UserID.String()).Msg("importacion de vales")

	if resp.Importados > 0 {
		s.notificar(ctx)
	}
	return resp, nil
}

func (s *valeService) Enviar(ctx context.Context, id uuid.UUID, email string) error {
	if s.encolador == nil {
		return errors.New("envio de correo no configurado")
	}
	if _, err := s.ObtenerModelo(ctx, id); err != nil {
		return err
	}
	return s.encolador.EnqueueEnvioVale(ctx, id, strings.TrimSpace(email))
}

func (s *valeService) Observar(ctx context.Context, q string) (<-chan Snapshot, error) {
	avisos, err := s.notificador.Suscribir(ctx)
	if err != nil {
		return nil, fmt.Errorf("suscribir cambios: %w", err)
	}
	inicial, err := s.Listar(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		version := uint64(1)
		if !emitir(ctx, out, nuevoSnapshot(version, inicial)) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-avisos:
				if !ok {
					return
				}
				vales, err := s.Listar(ctx, q)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn().Err(err).Msg("observar vales: recarga fallida")
					continue
				}
				version++
				if !emitir(ctx, out, nuevoSnapshot(version, vales)) {
					return
				}
			}
		}
	}()
	return out, nil
}

func emitir(ctx context.Context, out chan<- Snapshot, snap Snapshot) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

// despuesDeCambio runs the post-commit side effects. Their failures are
// logged and never reach the caller.
func (s *valeService) despuesDeCambio(ctx context.Context, tipo string, v *model.Vale) {
	s.notificar(ctx)
	if s.publicador == nil {
		return
	}
	evento := ValeEvento{
		Tipo:             tipo,
		ValeID:           v.ID.String(),
		NumeroFormulario: v.NumeroFormulario,
		UsuarioID:        v.UsuarioID,
		Timestamp:        s.now().UTC(),
	}
	if err := s.publicador.Publicar(ctx, tipo, evento); err != nil {
		log.Warn().Err(err).Str("evento", tipo).Str("vale_id", evento.ValeID).Msg("evento no publicado")
	}
}

func (s *valeService) notificar(ctx context.Context) {
	if s.notificador == nil {
		return
	}
	if err := s.notificador.Notificar(ctx); err != nil {
		log.Warn().Err(err).Msg("notificacion de cambios fallida")
	}
}

// ─── Mapping ─────────────────────────────────────────────────────────────────

func limpiar(req dto.ValeRequest) dto.ValeRequest {
	req.Codigo = strings.TrimSpace(req.Codigo)
	req.Requisicion = strings.TrimSpace(req.Requisicion)
	req.AreaOrigen = strings.TrimSpace(req.AreaOrigen)
	req.AreaDestino = strings.TrimSpace(req.AreaDestino)
	req.SolicitadoPor = strings.TrimSpace(req.SolicitadoPor)
	req.Habitacion = strings.TrimSpace(req.Habitacion)
	req.NombrePaciente = strings.TrimSpace(req.NombrePaciente)
	req.NombreEntrega = strings.TrimSpace(req.NombreEntrega)
	req.NombreRecibe = strings.TrimSpace(req.NombreRecibe)
	if req.MismaPersona {
		req.NombreRecibe = req.SolicitadoPor
	}
	insumos := make([]dto.InsumoDTO, len(req.Insumos))
	for i, in := range req.Insumos {
		insumos[i] = dto.InsumoDTO{
			Descripcion:  strings.TrimSpace(in.Descripcion),
			Cantidad:     strings.TrimSpace(in.Cantidad),
			UnidadMedida: strings.TrimSpace(in.UnidadMedida),
		}
	}
	req.Insumos = insumos
	return req
}

func valeDesdeRequest(req dto.ValeRequest) model.Vale {
	v := model.Vale{
		Codigo:         req.Codigo,
		Requisicion:    req.Requisicion,
		AreaOrigen:     req.AreaOrigen,
		AreaDestino:    req.AreaDestino,
		SolicitadoPor:  req.SolicitadoPor,
		Habitacion:     req.Habitacion,
		NombrePaciente: req.NombrePaciente,
		NombreEntrega:  req.NombreEntrega,
		NombreRecibe:   req.NombreRecibe,
		Insumos:        make([]model.Insumo, len(req.Insumos)),
	}
	for i, in := range req.Insumos {
		v.Insumos[i] = model.Insumo{
			Posicion:     i,
			Descripcion:  in.Descripcion,
			Cantidad:     in.Cantidad,
			UnidadMedida: in.UnidadMedida,
		}
	}
	return v
}

func toValeResponse(v *model.Vale) dto.ValeResponse {
	resp := dto.ValeResponse{
		ID:               v.ID.String(),
		NumeroFormulario: v.NumeroFormulario,
		Codigo:           v.Codigo,
		Requisicion:      v.Requisicion,
		AreaOrigen:       v.AreaOrigen,
		AreaDestino:      v.AreaDestino,
		SolicitadoPor:    v.SolicitadoPor,
		Habitacion:       v.Habitacion,
		NombrePaciente:   v.NombrePaciente,
		NombreEntrega:    v.NombreEntrega,
		NombreRecibe:     v.NombreRecibe,
		Insumos:          make([]dto.InsumoDTO, len(v.Insumos)),
		CreatedAt:        formatFecha(v.CreadoEn),
		UpdatedAt:        formatFecha(v.ActualizadoEn),
		UserID:           v.UsuarioID,
	}
	for i, in := range v.Insumos {
		resp.Insumos[i] = dto.InsumoDTO{
			Descripcion:  in.Descripcion,
			Cantidad:     in.Cantidad,
			UnidadMedida: in.UnidadMedida,
		}
	}
	return resp
}

func formatFecha(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(fechaISO)
	return &s
}
