package handler

import (
	"net/http"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/apierror"
	"github.com/VictorVasquezZT2005/Prestamos/internal/dto"
	"github.com/VictorVasquezZT2005/Prestamos/internal/middleware"
	"github.com/VictorVasquezZT2005/Prestamos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// Login godoc
// @Summary Login de usuario
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credenciales"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Error al iniciar sesion")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err, "Error al renovar la sesion")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.GetSession(c)); err != nil {
		respondError(c, err, "Error al cerrar sesion")
		return
	}
	c.Status(http.StatusNoContent)
}

// Sesion returns the caller as the server sees it now, so clients can react
// to role changes without signing in again.
func (h *AuthHandler) Sesion(c *gin.Context) {
	sess := middleware.GetSession(c)
	c.JSON(http.StatusOK, dto.SesionResponse{
		UserID:    sess.UserID.String(),
		Email:     sess.Email,
		Nombre:    sess.Nombre,
		Rol:       sess.Rol,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// ── Usuarios Handler ─────────────────────────────────────────────────────────

type UsuariosHandler struct{ svc service.AuthService }

func NewUsuariosHandler(svc service.AuthService) *UsuariosHandler {
	return &UsuariosHandler{svc: svc}
}

func (h *UsuariosHandler) Crear(c *gin.Context) {
	var req dto.CrearUsuarioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearUsuario(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Error al crear usuario")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *UsuariosHandler) Listar(c *gin.Context) {
	resp, err := h.svc.ListarUsuarios(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err, "Error al listar usuarios")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UsuariosHandler) Actualizar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.ActualizarUsuarioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ActualizarUsuario(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err, "Error al actualizar usuario")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UsuariosHandler) CambiarRol(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	resp, err := h.svc.CambiarRol(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		respondError(c, err, "Error al cambiar el rol")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UsuariosHandler) Eliminar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	if err := h.svc.EliminarUsuario(c.Request.Context(), middleware.GetSession(c), id); err != nil {
		respondError(c, err, "Error al eliminar usuario")
		return
	}
	c.Status(http.StatusNoContent)
}
