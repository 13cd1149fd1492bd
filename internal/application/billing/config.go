package billing

import (
	"strconv"
	"strings"
	"time"

	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	"github.com/tikusl4ju/myinvoice-sync/pkg/config"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// Ciclos de facturación.
const (
	CircleOnCompleted = "on_completed"
	circleAfterPrefix = "after_"
	circleAfterSuffix = "_days"
)

// Lock por número de documento mientras dura un envío.
const defaultDocumentLockTTL = 2 * time.Minute

// LifecycleConfig es la configuración inmutable del ciclo de vida. Se arma una
// vez al arrancar; solo la versión UBL y el switch del planificador cambian en
// caliente (ver RuntimeSettings).
type LifecycleConfig struct {
	Seller            myinvois.Party
	TaxCategoryID     string
	Industry          string
	BillingCircle     string
	ExcludeWallet     bool
	InitialUBLVersion string
	PortalHost        string
	Location          *time.Location
	DocumentLockTTL   time.Duration
}

// NewLifecycleConfig traduce la configuración del proceso.
func NewLifecycleConfig(cfg *config.Config) LifecycleConfig {
	s := cfg.Seller
	return LifecycleConfig{
		Seller: myinvois.Party{
			TIN:     s.TIN,
			IDType:  s.IDType,
			IDValue: s.IDValue,
			SST:     s.SST,
			TTX:     s.TTX,
			Name:    s.Name,
			Email:   s.Email,
			Phone:   catalog.FirstPhone(s.Phone),
			Address: myinvois.PartyAddress{
				Line1:     s.Line1,
				City:      s.City,
				Postcode:  s.Postcode,
				StateCode: s.StateCode,
				Country:   catalog.CountryISO3(s.Country),
			},
		},
		TaxCategoryID:     cfg.Billing.TaxCategoryID,
		Industry:          cfg.Billing.IndustryClassificationCode,
		BillingCircle:     cfg.Billing.BillingCircle,
		ExcludeWallet:     cfg.Billing.ExcludeWallet,
		InitialUBLVersion: cfg.Billing.InitialUBLVersion,
		PortalHost:        cfg.MyInvois.PortalHost,
		Location:          cfg.App.Location(),
		DocumentLockTTL:   defaultDocumentLockTTL,
	}
}

// QueueDays devuelve N si el ciclo es "after_N_days" con N en 1..7.
func (c LifecycleConfig) QueueDays() (int, bool) {
	circle := strings.TrimSpace(c.BillingCircle)
	if !strings.HasPrefix(circle, circleAfterPrefix) || !strings.HasSuffix(circle, circleAfterSuffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(circle, circleAfterPrefix), circleAfterSuffix)
	n, err := strconv.Atoi(raw)
	if err != nil || n < catalog.MinQueueDays || n > catalog.MaxQueueDays {
		return 0, false
	}
	return n, true
}

func (c LifecycleConfig) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c LifecycleConfig) lockTTL() time.Duration {
	if c.DocumentLockTTL <= 0 {
		return defaultDocumentLockTTL
	}
	return c.DocumentLockTTL
}
