package repository

import (
	"context"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// CertificateRepository guarda los bundles PEM. A lo sumo uno activo.
type CertificateRepository interface {
	// Save inserta el certificado como activo y desactiva los demás.
	Save(ctx context.Context, cert *entity.Certificate) error
	GetActive(ctx context.Context) (*entity.Certificate, error)
	GetByID(ctx context.Context, id int64) (*entity.Certificate, error)
	List(ctx context.Context) ([]*entity.Certificate, error)
	Activate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
}
