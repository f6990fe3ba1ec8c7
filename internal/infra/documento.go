package infra

import (
	"fmt"
	"html/template"
	"io"

	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
)

// documentoTmpl is a self-contained printable page. Both halves come from
// the same "mitad" block.
var documentoTmpl = template.Must(template.New("vale").Funcs(template.FuncMap{"na": oNA}).Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>Vale #{{.Folio}}</title>
<style>
  @page { size: letter; margin: 10mm; }
  body { font-family: Helvetica, Arial, sans-serif; font-size: 11px; margin: 0; }
  .mitad { height: 125mm; position: relative; padding: 4mm 0; box-sizing: border-box; }
  .etiqueta { position: absolute; right: 0; top: 2mm; font-size: 9px; font-weight: bold; }
  .hospital { text-align: center; font-weight: bold; font-size: 13px; }
  h1 { text-align: center; font-size: 15px; margin: 2px 0 6px; }
  .cabecera { display: flex; justify-content: space-between; font-weight: bold; margin-bottom: 6px; }
  .campos { display: grid; grid-template-columns: 1fr 1fr; gap: 3px 12px; margin-bottom: 8px; }
  .campos .ancho { grid-column: span 2; }
  .campos b { margin-right: 4px; }
  table { width: 100%; border-collapse: collapse; }
  th, td { border: 1px solid #000; padding: 2px 4px; }
  th { background: #e6e6e6; font-size: 10px; }
  td.centro { text-align: center; }
  .firmas { position: absolute; bottom: 4mm; left: 0; right: 0; display: flex; justify-content: space-around; }
  .firma { width: 40%; border-top: 1px solid #000; text-align: center; padding-top: 2px; }
  .corte { border: none; border-top: 1px dashed #777; margin: 0; }
</style>
</head>
<body>
{{range $i, $m := .Mitades}}{{if $i}}<hr class="corte">{{end}}{{template "mitad" $m}}{{end}}
</body>
</html>
{{define "mitad"}}{{$v := .D.Vale}}
<section class="mitad">
  <div class="etiqueta">{{.Etiqueta}}</div>
  {{if .D.Hospital}}<div class="hospital">{{.D.Hospital}}</div>{{end}}
  <h1>FORMULARIO DE PRÉSTAMO DE PRODUCTOS</h1>
  <div class="cabecera"><span>Vale #{{$v.NumeroFormulario}}</span><span>Fecha: {{.D.Fecha}}</span></div>
  <div class="campos">
    <div><b>Código Hosp.:</b>{{na $v.Codigo}}</div>
    <div><b>Requisición:</b>{{na $v.Requisicion}}</div>
    <div class="ancho"><b>Origen ➔ Destino:</b>{{$v.AreaOrigen}} ➔ {{$v.AreaDestino}}</div>
    <div><b>Paciente:</b>{{na $v.NombrePaciente}}</div>
    <div><b>Habitación:</b>{{na $v.Habitacion}}</div>
    <div class="ancho"><b>Solicitado por:</b>{{na $v.SolicitadoPor}}</div>
  </div>
  <table>
    <thead><tr><th>DESCRIPCIÓN DE PRODUCTOS</th><th>CANT.</th><th>U.M.</th><th>FIRMA RECIBIDO</th></tr></thead>
    <tbody>
    {{range $v.Insumos}}<tr><td>{{.Descripcion}}</td><td class="centro">{{.Cantidad}}</td><td class="centro">{{.UnidadMedida}}</td><td></td></tr>
    {{end}}</tbody>
  </table>
  <div class="firmas">
    <div class="firma">ENTREGADO POR: {{$v.NombreEntrega}}</div>
    <div class="firma">RECIBIDO POR: {{$v.NombreRecibe}}</div>
  </div>
</section>
{{end}}`))

type documentoDatos struct {
	Vale     *model.Vale
	Hospital string
	Fecha    string
}

type mitadDatos struct {
	Etiqueta string
	D        documentoDatos
}

// RenderValeHTML writes the printable HTML document of v to w.
func RenderValeHTML(w io.Writer, v *model.Vale, opts Impresion) error {
	datos := documentoDatos{Vale: v, Hospital: opts.Hospital, Fecha: FechaVale(v, opts.Loc)}
	pagina := struct {
		Folio   string
		Mitades []mitadDatos
	}{
		Folio:   v.NumeroFormulario,
		Mitades: []mitadDatos{{Etiqueta: "ORIGINAL", D: datos}, {Etiqueta: "COPIA", D: datos}},
	}
	if err := documentoTmpl.Execute(w, pagina); err != nil {
		return fmt.Errorf("documento: render: %w", err)
	}
	return nil
}
