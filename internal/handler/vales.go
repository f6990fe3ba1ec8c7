package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/apierror"
	"github.com/VictorVasquezZT2005/Prestamos/internal/dto"
	"github.com/VictorVasquezZT2005/Prestamos/internal/infra"
	"github.com/VictorVasquezZT2005/Prestamos/internal/middleware"
	"github.com/VictorVasquezZT2005/Prestamos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// keepAlive is the interval between SSE comments on an idle stream, below
// the usual 60s proxy read timeout.
const keepAlive = 25 * time.Second

type ValesHandler struct {
	svc       service.ValeService
	impresion infra.Impresion
	cierre    <-chan struct{}
}

// NewValesHandler builds the voucher handlers. Open streams end when cierre
// is closed; a nil channel keeps them open until the client leaves.
func NewValesHandler(svc service.ValeService, impresion infra.Impresion, cierre <-chan struct{}) *ValesHandler {
	return &ValesHandler{svc: svc, impresion: impresion, cierre: cierre}
}

// Listar godoc
// @Summary Lista de vales, folio mas alto primero
// @Tags vales
// @Produce json
// @Param q query string false "Paciente, codigo o folio"
// @Success 200 {object} dto.ValeListResponse
// @Router /v1/vales [get]
func (h *ValesHandler) Listar(c *gin.Context) {
	var filter dto.ValeFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	vales, err := h.svc.Listar(c.Request.Context(), filter.Q)
	if err != nil {
		respondError(c, err, "Error al listar vales")
		return
	}
	c.JSON(http.StatusOK, dto.ValeListResponse{Data: vales, Total: len(vales)})
}

// Crear godoc
// @Summary Registra un vale y le asigna el siguiente folio
// @Tags vales
// @Accept json
// @Produce json
// @Param body body dto.ValeRequest true "Vale"
// @Success 201 {object} dto.ValeMensajeResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/vales [post]
func (h *ValesHandler) Crear(c *gin.Context) {
	var req dto.ValeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), middleware.GetSession(c), req)
	if err != nil {
		respondError(c, err, "Error al registrar el vale")
		return
	}
	c.JSON(http.StatusCreated, dto.ValeMensajeResponse{
		Mensaje: fmt.Sprintf("Vale #%s registrado con éxito", resp.NumeroFormulario),
		Vale:    *resp,
	})
}

func (h *ValesHandler) Obtener(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Error al obtener el vale")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ValesHandler) Actualizar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.ValeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), middleware.GetSession(c), id, req)
	if err != nil {
		respondError(c, err, "Error al actualizar el vale")
		return
	}
	c.JSON(http.StatusOK, dto.ValeMensajeResponse{Mensaje: "Vale actualizado correctamente", Vale: *resp})
}

func (h *ValesHandler) Eliminar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	if err := h.svc.Eliminar(c.Request.Context(), middleware.GetSession(c), id); err != nil {
		respondError(c, err, service.ErrNoSeElimino.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// PDF renders the two-part printable voucher.
func (h *ValesHandler) PDF(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	v, err := h.svc.ObtenerModelo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Error al obtener el vale")
		return
	}
	var buf bytes.Buffer
	if err := infra.RenderValePDF(&buf, v, h.impresion); err != nil {
		respondError(c, err, "Error al generar el PDF")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="vale_%s.pdf"`, v.NumeroFormulario))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// Documento renders the same voucher as a self-contained HTML page, for the
// browser's print dialog.
func (h *ValesHandler) Documento(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	v, err := h.svc.ObtenerModelo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Error al obtener el vale")
		return
	}
	var buf bytes.Buffer
	if err := infra.RenderValeHTML(&buf, v, h.impresion); err != nil {
		respondError(c, err, "Error al generar el documento")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// Enviar queues the PDF for e-mail delivery and returns immediately.
func (h *ValesHandler) Enviar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.EnviarValeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Enviar(c.Request.Context(), id, req.Email); err != nil {
		respondError(c, err, "No se pudo programar el envio")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"mensaje": "Envio programado"})
}

func (h *ValesHandler) Importar(c *gin.Context) {
	var req dto.ImportarRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Importar(c.Request.Context(), middleware.GetSession(c), req.Documentos)
	if err != nil {
		respondError(c, err, "Error al importar vales")
		return
	}
	if resp.Importados == 0 && len(resp.Rechazados) > 0 {
		c.JSON(http.StatusUnprocessableEntity,
			apierror.NewFieldError("Ningun documento es valido", "documentos", resp.Rechazados[0].Motivo))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Stream pushes a fresh snapshot of the (optionally filtered) list as a
// Server-Sent Event every time a voucher changes. The subscription ends when
// the client disconnects or the server starts shutting down.
func (h *ValesHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	snaps, err := h.svc.Observar(ctx, c.Query("q"))
	if err != nil {
		respondError(c, err, "Error al observar vales")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			c.SSEvent("vales", snap.Response())
		case <-ticker.C:
			if _, err := io.WriteString(c.Writer, ": ping\n\n"); err != nil {
				log.Debug().Err(err).Msg("stream de vales cerrado")
				return
			}
		case <-ctx.Done():
			return
		case <-h.cierre:
			return
		}
		c.Writer.Flush()
	}
}
