package entity

import "time"

// Certificate es un bundle PEM (llave + certificado) con sus metadatos parseados.
type Certificate struct {
	ID           int64
	PEM          string
	SubjectCN    string
	SubjectOrg   string
	OrgID        string // organizationIdentifier (o OU si no viene)
	Email        string
	SerialNumber string // hex en mayúsculas
	Issuer       string // "CN=.., O=.., C=.."
	ValidFrom    time.Time
	ValidTo      time.Time
	IsActive     bool
	CreatedAt    time.Time
}

// IsExpired indica si el certificado ya venció en el instante dado.
func (c *Certificate) IsExpired(now time.Time) bool {
	return !c.ValidTo.IsZero() && now.After(c.ValidTo)
}
