package myinvois

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var phoneRe = regexp.MustCompile(`^\+?\d{8,20}$`)

// CleanPhone deja solo dígitos y un '+' inicial. Devuelve "" si el
// resultado no tiene entre 8 y 20 dígitos.
func CleanPhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if !phoneRe.MatchString(out) {
		return ""
	}
	return out
}

// FirstPhone devuelve el primer teléfono válido de la lista, o DefaultPhone.
func FirstPhone(candidates ...string) string {
	for _, c := range candidates {
		if p := CleanPhone(c); p != "" {
			return p
		}
	}
	return DefaultPhone
}

// CountryISO3 convierte un código ISO-3166 alfa-2 en alfa-3 ("MY" -> "MYS").
// Si el código ya es alfa-3 válido lo devuelve en mayúsculas; desconocido -> MYS.
func CountryISO3(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return CountryMalaysia
	}
	r, err := language.ParseRegion(code)
	if err != nil || !r.IsCountry() {
		return CountryMalaysia
	}
	return r.ISO3()
}

// IsMalaysia indica si el código de país (alfa-2 o alfa-3) es Malasia.
func IsMalaysia(code string) bool {
	return CountryISO3(code) == CountryMalaysia
}

// MaxAddressLine es el límite de caracteres de AddressLine.Line.
const MaxAddressLine = 150

// TruncateAddress normaliza a NFC y corta a MaxAddressLine caracteres (runas).
func TruncateAddress(s string) string {
	s = norm.NFC.String(s)
	n := 0
	for i := range s {
		if n == MaxAddressLine {
			return s[:i]
		}
		n++
	}
	return s
}
