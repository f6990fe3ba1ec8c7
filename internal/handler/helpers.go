package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/VictorVasquezZT2005/Prestamos/internal/apierror"
	"github.com/VictorVasquezZT2005/Prestamos/internal/middleware"
	"github.com/VictorVasquezZT2005/Prestamos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

func init() {
	// Report fields by the name the client sent ("nombrePaciente", "anio").
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

// bindQueryAndValidate is bindAndValidate for query string parameters.
func bindQueryAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros invalidos: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// statusFor maps service sentinels onto HTTP statuses. Anything unknown is a
// 500 and its message is not shown to the client.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrValeNoEncontrado), errors.Is(err, service.ErrUsuarioNoEncontrado):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrValeIncompleto),
		errors.Is(err, service.ErrCamposObligatorios),
		errors.Is(err, service.ErrPasswordsDistintas),
		errors.Is(err, service.ErrPasswordCorta),
		errors.Is(err, service.ErrZonaInvalida):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrCorreoRegistrado):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrSoloAdmin),
		errors.Is(err, service.ErrRolPropio),
		errors.Is(err, service.ErrCuentaPropia),
		errors.Is(err, service.ErrSinRol):
		return http.StatusForbidden, true
	case errors.Is(err, service.ErrCredenciales),
		errors.Is(err, service.ErrTokenInvalido),
		errors.Is(err, service.ErrSesionCerrada):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrNoSeElimino):
		return http.StatusInternalServerError, true
	}
	return http.StatusInternalServerError, false
}

// respondError writes the error envelope for err. fallback is the message
// used when err is not a known service error.
func respondError(c *gin.Context, err error, fallback string) {
	status, known := statusFor(err)
	if known {
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	log.Error().Err(err).
		Str("request_id", c.GetString(middleware.RequestIDKey)).
		Str("path", c.FullPath()).
		Msg(fallback)
	c.JSON(status, apierror.New(fallback))
}
