package billing

import (
	"context"
	"fmt"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/ports"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois/signer"
	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// CertificateService administra los bundles PEM y el modo de firma.
type CertificateService struct {
	certs    repository.CertificateRepository
	settings *RuntimeSettings
	clock    ports.Clock
	log      *logger.Logger
}

// NewCertificateService construye el servicio.
func NewCertificateService(certs repository.CertificateRepository, settings *RuntimeSettings, clock ports.Clock, log *logger.Logger) *CertificateService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CertificateService{certs: certs, settings: settings, clock: clock, log: log.Component("certificates")}
}

// Upload valida y guarda el bundle; queda como único activo.
func (s *CertificateService) Upload(ctx context.Context, bundle string) (*entity.Certificate, error) {
	cert, err := signer.Describe(bundle)
	if err != nil {
		return nil, err
	}
	if err := s.certs.Save(ctx, cert); err != nil {
		return nil, fmt.Errorf("guardar certificado: %w", err)
	}
	cert.IsActive = true
	s.log.Info().
		Int64("id", cert.ID).
		Str("subject_cn", cert.SubjectCN).
		Str("serial", cert.SerialNumber).
		Time("valid_to", cert.ValidTo).
		Msg("certificado cargado")
	if cert.IsExpired(s.clock.Now()) {
		s.log.Warn().Int64("id", cert.ID).Msg("el certificado cargado ya está vencido")
	}
	return cert, nil
}

// ImportP12 convierte un .p12 en bundle PEM y lo carga.
func (s *CertificateService) ImportP12(ctx context.Context, data []byte, password string) (*entity.Certificate, error) {
	bundle, err := signer.BundleFromP12(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCertificate, err)
	}
	return s.Upload(ctx, bundle)
}

// List devuelve todos los certificados.
func (s *CertificateService) List(ctx context.Context) ([]*entity.Certificate, error) {
	return s.certs.List(ctx)
}

// Active devuelve el certificado activo o ErrNotFound.
func (s *CertificateService) Active(ctx context.Context) (*entity.Certificate, error) {
	cert, err := s.certs.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, domain.ErrNotFound
	}
	return cert, nil
}

// Activate deja activo el certificado indicado.
func (s *CertificateService) Activate(ctx context.Context, id int64) error {
	cert, err := s.certs.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("buscar certificado: %w", err)
	}
	if cert == nil {
		return domain.ErrNotFound
	}
	return s.certs.Activate(ctx, id)
}

// Delete borra un certificado. Si era el activo el modo de firma vuelve a 1.0.
func (s *CertificateService) Delete(ctx context.Context, id int64) error {
	cert, err := s.certs.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("buscar certificado: %w", err)
	}
	if cert == nil {
		return domain.ErrNotFound
	}
	if err := s.certs.Delete(ctx, id); err != nil {
		return fmt.Errorf("borrar certificado: %w", err)
	}
	if cert.IsActive {
		return s.settings.SetUBLVersion(ctx, catalog.UBLVersionUnsigned)
	}
	return nil
}

// Reset borra todos los certificados y vuelve a UBL 1.0.
func (s *CertificateService) Reset(ctx context.Context) error {
	if err := s.certs.DeleteAll(ctx); err != nil {
		return fmt.Errorf("borrar certificados: %w", err)
	}
	s.log.Warn().Msg("certificados eliminados, modo de firma en UBL 1.0")
	return s.settings.SetUBLVersion(ctx, catalog.UBLVersionUnsigned)
}

// UBLVersion devuelve el modo de firma vigente.
func (s *CertificateService) UBLVersion(ctx context.Context) (string, error) {
	return s.settings.UBLVersion(ctx)
}

// SetUBLVersion cambia el modo de firma. 1.1 exige un certificado activo y utilizable.
func (s *CertificateService) SetUBLVersion(ctx context.Context, version string) error {
	if !catalog.ValidUBLVersions[version] {
		return fmt.Errorf("%w: versión UBL %q", domain.ErrInvalidInput, version)
	}
	if version == catalog.UBLVersionSigned {
		cert, err := s.certs.GetActive(ctx)
		if err != nil {
			return fmt.Errorf("certificado activo: %w", err)
		}
		if cert == nil {
			return domain.ErrCertificateRequired
		}
		if _, err := signer.LoadPEM(cert.PEM); err != nil {
			return err
		}
	}
	return s.settings.SetUBLVersion(ctx, version)
}
