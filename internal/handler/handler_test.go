package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/dto"
	"github.com/VictorVasquezZT2005/Prestamos/internal/infra"
	"github.com/VictorVasquezZT2005/Prestamos/internal/middleware"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
	"github.com/VictorVasquezZT2005/Prestamos/internal/service"
	"github.com/VictorVasquezZT2005/Prestamos/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// ── Stubs ────────────────────────────────────────────────────────────────────

// stubVales embeds the interface so each test only provides what it calls.
type stubVales struct {
	service.ValeService
	vale      *model.Vale
	err       error
	importado *dto.ImportarResponse
	snaps     chan service.Snapshot
	enviados  []string
	creados   []dto.ValeRequest
}

func (s *stubVales) Crear(_ context.Context, _ session.Session, req dto.ValeRequest) (*dto.ValeResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.creados = append(s.creados, req)
	return &dto.ValeResponse{ID: uuid.NewString(), NumeroFormulario: "00001", NombrePaciente: req.NombrePaciente}, nil
}

func (s *stubVales) Listar(_ context.Context, q string) ([]dto.ValeResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []dto.ValeResponse{{NumeroFormulario: "00002", NombrePaciente: q}, {NumeroFormulario: "00001"}}, nil
}

func (s *stubVales) Obtener(_ context.Context, _ uuid.UUID) (*dto.ValeResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ValeResponse{NumeroFormulario: s.vale.NumeroFormulario}, nil
}

func (s *stubVales) ObtenerModelo(_ context.Context, _ uuid.UUID) (*model.Vale, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vale, nil
}

func (s *stubVales) Actualizar(_ context.Context, _ session.Session, _ uuid.UUID, req dto.ValeRequest) (*dto.ValeResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ValeResponse{NumeroFormulario: "00003", Codigo: req.Codigo}, nil
}

func (s *stubVales) Eliminar(context.Context, session.Session, uuid.UUID) error { return s.err }

func (s *stubVales) Enviar(_ context.Context, _ uuid.UUID, email string) error {
	if s.err != nil {
		return s.err
	}
	s.enviados = append(s.enviados, email)
	return nil
}

func (s *stubVales) Importar(context.Context, session.Session, []dto.ValeDocumento) (*dto.ImportarResponse, error) {
	return s.importado, s.err
}

func (s *stubVales) Observar(context.Context, string) (<-chan service.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snaps, nil
}

type stubAuth struct {
	service.AuthService
	err error
}

func (s *stubAuth) Login(context.Context, dto.LoginRequest) (*dto.LoginResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.LoginResponse{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}, nil
}

func (s *stubAuth) CrearUsuario(_ context.Context, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.UsuarioResponse{ID: uuid.NewString(), Email: req.Email, Rol: model.RolUsuario}, nil
}

func (s *stubAuth) CambiarRol(context.Context, session.Session, uuid.UUID) (*dto.UsuarioResponse, error) {
	return nil, s.err
}

func (s *stubAuth) EliminarUsuario(context.Context, session.Session, uuid.UUID) error { return s.err }

type stubBitacora struct {
	err      error
	recibido dto.BitacoraQuery
}

func (s *stubBitacora) Generar(_ context.Context, q dto.BitacoraQuery) (*dto.BitacoraResponse, error) {
	s.recibido = q
	if s.err != nil {
		return nil, s.err
	}
	return &dto.BitacoraResponse{TotalVales: 3}, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

var admin = session.Session{
	UserID:    uuid.New(),
	Email:     "admin@hospital.mx",
	Nombre:    "Admin",
	Rol:       model.RolAdmin,
	ExpiresAt: time.Date(2025, 11, 3, 18, 0, 0, 0, time.UTC),
}

func withSession(sess session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.SessionKey, sess)
		c.Next()
	}
}

func valeDePrueba() *model.Vale {
	creado := time.Date(2025, 11, 3, 16, 30, 0, 0, time.UTC)
	return &model.Vale{
		ID:               uuid.New(),
		NumeroFormulario: "00042",
		Codigo:           "HG-1",
		NombrePaciente:   "Juan Perez",
		Insumos:          []model.Insumo{{Descripcion: "Gasas", Cantidad: "10", UnidadMedida: "Caja"}},
		CreadoEn:         &creado,
	}
}

func valesRouter(svc service.ValeService) *gin.Engine {
	h := NewValesHandler(svc, infra.Impresion{Hospital: "Hospital General", Loc: time.UTC}, nil)
	r := gin.New()
	g := r.Group("/v1/vales", withSession(admin))
	g.GET("", h.Listar)
	g.GET("/stream", h.Stream)
	g.POST("", h.Crear)
	g.POST("/importar", h.Importar)
	g.GET("/:id", h.Obtener)
	g.GET("/:id/pdf", h.PDF)
	g.GET("/:id/documento", h.Documento)
	g.POST("/:id/enviar", h.Enviar)
	g.PUT("/:id", h.Actualizar)
	g.DELETE("/:id", h.Eliminar)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Detail
}

// ── Vales ────────────────────────────────────────────────────────────────────

func TestVales_CrearReturnsFolioMessage(t *testing.T) {
	svc := &stubVales{}
	w := do(valesRouter(svc), http.MethodPost, "/v1/vales", dto.ValeRequest{
		Codigo:         "HG-1",
		NombrePaciente: "Juan Perez",
		Insumos:        []dto.InsumoDTO{{Descripcion: "Gasas", Cantidad: "10", UnidadMedida: "Caja"}},
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp dto.ValeMensajeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Vale #00001 registrado con éxito", resp.Mensaje)
	assert.Equal(t, "Juan Perez", resp.Vale.NombrePaciente)
	require.Len(t, svc.creados, 1)
}

func TestVales_CrearIncompleteIs400WithMessage(t *testing.T) {
	w := do(valesRouter(&stubVales{err: service.ErrValeIncompleto}), http.MethodPost, "/v1/vales", dto.ValeRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Complete el código, paciente y al menos un insumo.", detail(t, w))
}

func TestVales_MalformedJSON(t *testing.T) {
	w := do(valesRouter(&stubVales{}), http.MethodPost, "/v1/vales", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.HasPrefix(detail(t, w), "JSON invalido"))
}

func TestVales_ValidationReportsJSONFieldNames(t *testing.T) {
	w := do(valesRouter(&stubVales{}), http.MethodPost, "/v1/vales", map[string]any{
		"codigo":         strings.Repeat("x", 101),
		"nombrePaciente": "Juan",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "max", body.Fields["codigo"])
}

func TestVales_Listar(t *testing.T) {
	w := do(valesRouter(&stubVales{}), http.MethodGet, "/v1/vales?q=perez", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ValeListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "perez", resp.Data[0].NombrePaciente)
}

func TestVales_ObtenerErrors(t *testing.T) {
	r := valesRouter(&stubVales{err: service.ErrValeNoEncontrado})

	w := do(r, http.MethodGet, "/v1/vales/no-es-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/v1/vales/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "El vale no existe", detail(t, w))
}

func TestVales_InternalErrorsAreHidden(t *testing.T) {
	w := do(valesRouter(&stubVales{err: errors.New("pq: connection refused")}), http.MethodGet, "/v1/vales", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error al listar vales", detail(t, w))
}

func TestVales_Actualizar(t *testing.T) {
	w := do(valesRouter(&stubVales{}), http.MethodPut, "/v1/vales/"+uuid.NewString(), dto.ValeRequest{Codigo: "HG-9"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ValeMensajeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Vale actualizado correctamente", resp.Mensaje)
	assert.Equal(t, "HG-9", resp.Vale.Codigo)
}

func TestVales_ActualizarNonAdminIs403(t *testing.T) {
	w := do(valesRouter(&stubVales{err: service.ErrSoloAdmin}), http.MethodPut, "/v1/vales/"+uuid.NewString(), dto.ValeRequest{})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVales_Eliminar(t *testing.T) {
	w := do(valesRouter(&stubVales{}), http.MethodDelete, "/v1/vales/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(valesRouter(&stubVales{err: service.ErrNoSeElimino}), http.MethodDelete, "/v1/vales/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "No se pudo eliminar el registro", detail(t, w))
}

func TestVales_PDF(t *testing.T) {
	w := do(valesRouter(&stubVales{vale: valeDePrueba()}), http.MethodGet, "/v1/vales/"+uuid.NewString()+"/pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "vale_00042.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestVales_Documento(t *testing.T) {
	w := do(valesRouter(&stubVales{vale: valeDePrueba()}), http.MethodGet, "/v1/vales/"+uuid.NewString()+"/documento", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "Vale #00042")
	assert.Contains(t, body, "ORIGINAL")
	assert.Contains(t, body, "COPIA")
}

func TestVales_Enviar(t *testing.T) {
	svc := &stubVales{}
	r := valesRouter(svc)

	w := do(r, http.MethodPost, "/v1/vales/"+uuid.NewString()+"/enviar", dto.EnviarValeRequest{Email: "no-es-correo"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/v1/vales/"+uuid.NewString()+"/enviar", dto.EnviarValeRequest{Email: "jefa@hospital.mx"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"jefa@hospital.mx"}, svc.enviados)
}

func TestVales_ImportarAllRejected(t *testing.T) {
	svc := &stubVales{importado: &dto.ImportarResponse{
		Rechazados: []dto.RechazoImportacion{{Indice: 0, Motivo: "documento invalido"}},
	}}
	w := do(valesRouter(svc), http.MethodPost, "/v1/vales/importar", `{"documentos":[{"numeroFormulario":"x"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	svc.importado = &dto.ImportarResponse{Importados: 1, Rechazados: []dto.RechazoImportacion{}}
	w = do(valesRouter(svc), http.MethodPost, "/v1/vales/importar", `{"documentos":[{"numeroFormulario":41}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVales_ImportarRequiresDocuments(t *testing.T) {
	w := do(valesRouter(&stubVales{}), http.MethodPost, "/v1/vales/importar", `{"documentos":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestVales_StreamWritesSnapshotEvents(t *testing.T) {
	snaps := make(chan service.Snapshot, 2)
	snaps <- service.Snapshot{}
	snaps <- service.Snapshot{}
	close(snaps)

	w := do(valesRouter(&stubVales{snaps: snaps}), http.MethodGet, "/v1/vales/stream", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, 2, strings.Count(w.Body.String(), "event:vales"))
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestVales_StreamEndsWhenServerCloses(t *testing.T) {
	snaps := make(chan service.Snapshot)
	cierre := make(chan struct{})
	h := NewValesHandler(&stubVales{snaps: snaps}, infra.Impresion{}, cierre)
	r := gin.New()
	r.GET("/stream", h.Stream)

	w := httptest.NewRecorder()
	fin := make(chan struct{})
	go func() {
		defer close(fin)
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))
	}()

	close(cierre)
	select {
	case <-fin:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after server close")
	}
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVales_StreamSubscribeFailure(t *testing.T) {
	w := do(valesRouter(&stubVales{err: errors.New("redis caido")}), http.MethodGet, "/v1/vales/stream", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ── Auth / Usuarios ──────────────────────────────────────────────────────────

func authRouter(svc service.AuthService) *gin.Engine {
	auth := NewAuthHandler(svc)
	usuarios := NewUsuariosHandler(svc)
	r := gin.New()
	r.POST("/v1/auth/login", auth.Login)
	g := r.Group("/v1", withSession(admin))
	g.GET("/auth/sesion", auth.Sesion)
	g.POST("/usuarios", usuarios.Crear)
	g.PATCH("/usuarios/:id/rol", usuarios.CambiarRol)
	g.DELETE("/usuarios/:id", usuarios.Eliminar)
	return r
}

func TestAuth_LoginStatuses(t *testing.T) {
	body := dto.LoginRequest{Email: "a@b.mx", Password: "secreto"}

	w := do(authRouter(&stubAuth{}), http.MethodPost, "/v1/auth/login", body)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(authRouter(&stubAuth{err: service.ErrCredenciales}), http.MethodPost, "/v1/auth/login", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "credenciales invalidas", detail(t, w))

	w = do(authRouter(&stubAuth{err: service.ErrSinRol}), http.MethodPost, "/v1/auth/login", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuth_Sesion(t *testing.T) {
	w := do(authRouter(&stubAuth{}), http.MethodGet, "/v1/auth/sesion", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.SesionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, admin.UserID.String(), resp.UserID)
	assert.Equal(t, "admin", resp.Rol)
	assert.Equal(t, "2025-11-03T18:00:00Z", resp.ExpiresAt)
}

func TestUsuarios_CrearDuplicateIs409(t *testing.T) {
	body := dto.CrearUsuarioRequest{Nombre: "Ana", Email: "ana@hospital.mx", Password: "secreto", ConfirmPassword: "secreto"}

	w := do(authRouter(&stubAuth{}), http.MethodPost, "/v1/usuarios", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(authRouter(&stubAuth{err: service.ErrCorreoRegistrado}), http.MethodPost, "/v1/usuarios", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "El correo ya está registrado", detail(t, w))

	w = do(authRouter(&stubAuth{err: service.ErrPasswordsDistintas}), http.MethodPost, "/v1/usuarios", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsuarios_SelfActionsAre403(t *testing.T) {
	w := do(authRouter(&stubAuth{err: service.ErrRolPropio}), http.MethodPatch, "/v1/usuarios/"+admin.UserID.String()+"/rol", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "No puedes cambiar tu propio rol.", detail(t, w))

	w = do(authRouter(&stubAuth{err: service.ErrCuentaPropia}), http.MethodDelete, "/v1/usuarios/"+admin.UserID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(authRouter(&stubAuth{}), http.MethodDelete, "/v1/usuarios/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

// ── Bitacora ─────────────────────────────────────────────────────────────────

func bitacoraRouter(svc service.BitacoraService) *gin.Engine {
	r := gin.New()
	r.GET("/v1/bitacora", NewBitacoraHandler(svc).Generar)
	return r
}

func TestBitacora_BindsQuery(t *testing.T) {
	svc := &stubBitacora{}
	w := do(bitacoraRouter(svc), http.MethodGet, "/v1/bitacora?anio=2025&mes=0&entrega=Todos&tz=UTC", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.recibido.Anio)
	require.NotNil(t, svc.recibido.Mes)
	assert.Equal(t, 2025, *svc.recibido.Anio)
	assert.Equal(t, 0, *svc.recibido.Mes)
	assert.Equal(t, "Todos", svc.recibido.Entrega)
	assert.Equal(t, "UTC", svc.recibido.TZ)
}

func TestBitacora_MonthOutOfRange(t *testing.T) {
	w := do(bitacoraRouter(&stubBitacora{}), http.MethodGet, "/v1/bitacora?mes=12", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"mes":"max"`)
}

func TestBitacora_BadZone(t *testing.T) {
	w := do(bitacoraRouter(&stubBitacora{err: service.ErrZonaInvalida}), http.MethodGet, "/v1/bitacora?tz=Marte/Olimpo", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
