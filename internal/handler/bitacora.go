package handler

import (
	"net/http"

	"github.com/VictorVasquezZT2005/Prestamos/internal/dto"
	"github.com/VictorVasquezZT2005/Prestamos/internal/service"

	"github.com/gin-gonic/gin"
)

type BitacoraHandler struct{ svc service.BitacoraService }

func NewBitacoraHandler(svc service.BitacoraService) *BitacoraHandler {
	return &BitacoraHandler{svc: svc}
}

// Generar godoc
// @Summary Bitacora mensual de vales
// @Tags bitacora
// @Produce json
// @Param anio query int false "Anio; por defecto el mas reciente"
// @Param mes query int false "Mes 0-11; por defecto el mas reciente del anio"
// @Param entrega query string false "Nombre de quien entrega o Todos"
// @Param tz query string false "Zona horaria IANA"
// @Success 200 {object} dto.BitacoraResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/bitacora [get]
func (h *BitacoraHandler) Generar(c *gin.Context) {
	var q dto.BitacoraQuery
	if !bindQueryAndValidate(c, &q) {
		return
	}
	resp, err := h.svc.Generar(c.Request.Context(), q)
	if err != nil {
		respondError(c, err, "Error al generar la bitacora")
		return
	}
	c.JSON(http.StatusOK, resp)
}
