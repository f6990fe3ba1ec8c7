// Package folio computes the display number ("folio") of loan vouchers.
//
// A folio is a decimal digit string zero-padded to Ancho digits. Past 99999
// the width grows ("100000"); there is no wraparound.
package folio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	Ancho   = 5
	Primero = "00001"

	// ModoContador allocates from an atomic counter row.
	ModoContador = "contador"
	// ModoLectura reads the highest folio and increments it, without locking.
	ModoLectura = "lectura"
)

var ErrFolioInvalido = errors.New("numero de formulario invalido")

// Formatear renders n zero-padded to Ancho digits.
func Formatear(n int64) string {
	return fmt.Sprintf("%0*d", Ancho, n)
}

// Parse returns the numeric value of a folio.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrFolioInvalido
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrFolioInvalido, s)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFolioInvalido, s)
	}
	return n, nil
}

// Siguiente returns the folio following ultimo, or Primero when ultimo is empty.
func Siguiente(ultimo string) (string, error) {
	if strings.TrimSpace(ultimo) == "" {
		return Primero, nil
	}
	n, err := Parse(ultimo)
	if err != nil {
		return "", err
	}
	return Formatear(n + 1), nil
}

// Valido reports whether s is a well-formed folio.
func Valido(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Comparar orders folios numerically: -1 if a < b, 0 if equal, +1 if a > b.
// Both arguments are assumed to be digit strings.
func Comparar(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return strings.Compare(a, b)
}

// Normalizar re-pads a folio to Ancho digits ("42" -> "00042").
func Normalizar(s string) (string, error) {
	n, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Formatear(n), nil
}

// ModoValido reports whether modo names a known allocation strategy.
func ModoValido(modo string) bool {
	return modo == ModoContador || modo == ModoLectura
}
