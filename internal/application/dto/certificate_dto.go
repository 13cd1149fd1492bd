package dto

import (
	"time"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// UploadCertificateRequest body de POST /api/certificates (bundle PEM).
type UploadCertificateRequest struct {
	PEM string `json:"pem" validate:"required"`
}

// CertificateResponse metadatos del certificado; nunca incluye la llave.
type CertificateResponse struct {
	ID           int64     `json:"id"`
	SubjectCN    string    `json:"subject_cn"`
	SubjectOrg   string    `json:"subject_org,omitempty"`
	OrgID        string    `json:"org_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	SerialNumber string    `json:"serial_number"`
	Issuer       string    `json:"issuer"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
	IsActive     bool      `json:"is_active"`
	Expired      bool      `json:"expired"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewCertificateResponse arma la respuesta evaluando el vencimiento en now.
func NewCertificateResponse(c *entity.Certificate, now time.Time) CertificateResponse {
	return CertificateResponse{
		ID:           c.ID,
		SubjectCN:    c.SubjectCN,
		SubjectOrg:   c.SubjectOrg,
		OrgID:        c.OrgID,
		Email:        c.Email,
		SerialNumber: c.SerialNumber,
		Issuer:       c.Issuer,
		ValidFrom:    c.ValidFrom,
		ValidTo:      c.ValidTo,
		IsActive:     c.IsActive,
		Expired:      c.IsExpired(now),
		CreatedAt:    c.CreatedAt,
	}
}

// SettingsResponse ajustes de ejecución.
type SettingsResponse struct {
	UBLVersion       string `json:"ubl_version"`
	SchedulerEnabled bool   `json:"scheduler_enabled"`
}

// UBLVersionRequest body de PUT /api/settings/ubl-version.
type UBLVersionRequest struct {
	Version string `json:"version" validate:"required,oneof=1.0 1.1"`
}

// SchedulerSwitchRequest body de PUT /api/settings/scheduler.
type SchedulerSwitchRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}
