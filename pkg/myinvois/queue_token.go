package myinvois

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Rango de días aceptado por el ciclo de facturación "after_N_days".
const (
	MinQueueDays = 1
	MaxQueueDays = 7
)

// QueueTokenPattern forma del token en sintaxis POSIX, usable también en SQL.
const QueueTokenPattern = `^q[0-9]+[0-9]{6}$`

var (
	queueTokenRe     = regexp.MustCompile(`^q(\d+)(\d{6})$`)
	queueTokenFormat = regexp.MustCompile(QueueTokenPattern)
)

// IsQueueTokenFormat indica si s tiene la forma q<días><ddmmyy>, sin validar el rango.
func IsQueueTokenFormat(s string) bool { return queueTokenFormat.MatchString(s) }

// QueueToken es la instrucción de envío diferido "q<días><ddmmyy>".
type QueueToken struct {
	Days int
	// Date es el día codificado en el token (00:00 en la zona dada al parsear).
	// Zero si la parte de fecha no es una fecha de calendario válida.
	Date time.Time
}

// NewQueueToken crea el token para enviar days días después de base.
func NewQueueToken(days int, base time.Time) (QueueToken, error) {
	if days < MinQueueDays || days > MaxQueueDays {
		return QueueToken{}, fmt.Errorf("queue token: días fuera de rango: %d", days)
	}
	y, m, d := base.Date()
	return QueueToken{Days: days, Date: time.Date(y, m, d, 0, 0, 0, 0, base.Location())}, nil
}

// String codifica el token.
func (t QueueToken) String() string {
	return fmt.Sprintf("q%d%s", t.Days, t.Date.Format("020106"))
}

// ParseQueueToken decodifica "q<días><ddmmyy>". loc fija la zona de la fecha.
func ParseQueueToken(s string, loc *time.Location) (QueueToken, error) {
	m := queueTokenRe.FindStringSubmatch(s)
	if m == nil {
		return QueueToken{}, fmt.Errorf("queue token %q: formato inválido", s)
	}
	days, err := strconv.Atoi(m[1])
	if err != nil || days < MinQueueDays || days > MaxQueueDays {
		return QueueToken{}, fmt.Errorf("queue token %q: días fuera de rango", s)
	}
	if loc == nil {
		loc = time.UTC
	}
	tok := QueueToken{Days: days}
	if d, err := time.ParseInLocation("020106", m[2], loc); err == nil {
		tok.Date = d
	}
	return tok, nil
}

// DueAt devuelve el instante a partir del cual el documento puede enviarse:
// queuedAt + días. Sin queuedAt se usa la fecha del token.
func (t QueueToken) DueAt(queuedAt *time.Time) time.Time {
	base := t.Date
	if queuedAt != nil && !queuedAt.IsZero() {
		base = *queuedAt
	}
	return base.AddDate(0, 0, t.Days)
}

// IsDue indica si ya venció el plazo en el instante now.
func (t QueueToken) IsDue(queuedAt *time.Time, now time.Time) bool {
	due := t.DueAt(queuedAt)
	return !due.IsZero() && !now.Before(due)
}
