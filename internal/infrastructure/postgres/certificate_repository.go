package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
)

var _ repository.CertificateRepository = (*CertificateRepo)(nil)

// CertificateRepo almacén de bundles PEM.
type CertificateRepo struct {
	q Querier
}

// NewCertificateRepository construye el adaptador.
func NewCertificateRepository(q Querier) *CertificateRepo {
	return &CertificateRepo{q: q}
}

const certColumns = `id, pem, subject_cn, subject_org, org_id, email, serial_number, issuer,
	valid_from, valid_to, is_active, created_at`

// Save desactiva los demás e inserta el nuevo como activo, en una transacción.
func (r *CertificateRepo) Save(ctx context.Context, cert *entity.Certificate) error {
	return inTx(ctx, r.q, func(q Querier) error {
		if _, err := q.Exec(ctx, `UPDATE certificates SET is_active = FALSE WHERE is_active`); err != nil {
			return fmt.Errorf("deactivate certificates: %w", err)
		}
		err := q.QueryRow(ctx, `
			INSERT INTO certificates (pem, subject_cn, subject_org, org_id, email, serial_number, issuer,
			                          valid_from, valid_to, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, NOW())
			RETURNING id, created_at`,
			cert.PEM, nullIfEmpty(cert.SubjectCN), nullIfEmpty(cert.SubjectOrg), nullIfEmpty(cert.OrgID),
			nullIfEmpty(cert.Email), nullIfEmpty(cert.SerialNumber), nullIfEmpty(cert.Issuer),
			nullTime(cert.ValidFrom), nullTime(cert.ValidTo),
		).Scan(&cert.ID, &cert.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert certificate: %w", err)
		}
		cert.IsActive = true
		return nil
	})
}

// GetActive devuelve el certificado activo o (nil, nil).
func (r *CertificateRepo) GetActive(ctx context.Context) (*entity.Certificate, error) {
	return r.getOne(ctx, `SELECT `+certColumns+` FROM certificates WHERE is_active LIMIT 1`)
}

// GetByID busca por id.
func (r *CertificateRepo) GetByID(ctx context.Context, id int64) (*entity.Certificate, error) {
	return r.getOne(ctx, `SELECT `+certColumns+` FROM certificates WHERE id = $1`, id)
}

func (r *CertificateRepo) getOne(ctx context.Context, query string, args ...any) (*entity.Certificate, error) {
	c, err := scanCertificate(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return c, nil
}

// List todos los certificados, el más reciente primero.
func (r *CertificateRepo) List(ctx context.Context) ([]*entity.Certificate, error) {
	rows, err := r.q.Query(ctx, `SELECT `+certColumns+` FROM certificates ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()
	var out []*entity.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Activate deja activo solo el certificado indicado.
func (r *CertificateRepo) Activate(ctx context.Context, id int64) error {
	return inTx(ctx, r.q, func(q Querier) error {
		if _, err := q.Exec(ctx, `UPDATE certificates SET is_active = FALSE WHERE is_active AND id <> $1`, id); err != nil {
			return fmt.Errorf("deactivate certificates: %w", err)
		}
		tag, err := q.Exec(ctx, `UPDATE certificates SET is_active = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("activate certificate: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("activate certificate %d: %w", id, pgx.ErrNoRows)
		}
		return nil
	})
}

// Delete borra un certificado.
func (r *CertificateRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM certificates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	return nil
}

// DeleteAll vacía el almacén.
func (r *CertificateRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM certificates`); err != nil {
		return fmt.Errorf("delete certificates: %w", err)
	}
	return nil
}

func scanCertificate(row pgx.Row) (*entity.Certificate, error) {
	var c entity.Certificate
	var cn, org, orgID, email, serial, issuer *string
	var from, to *time.Time
	if err := row.Scan(&c.ID, &c.PEM, &cn, &org, &orgID, &email, &serial, &issuer,
		&from, &to, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.SubjectCN, c.SubjectOrg, c.OrgID = deref(cn), deref(org), deref(orgID)
	c.Email, c.SerialNumber, c.Issuer = deref(email), deref(serial), deref(issuer)
	if from != nil {
		c.ValidFrom = *from
	}
	if to != nil {
		c.ValidTo = *to
	}
	return &c, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
