package billingtest

import (
	"time"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/ports"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/cache"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois/signer"
	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// Env ciclo de vida armado sobre dobles en memoria.
type Env struct {
	Ledger       *Ledger
	Certs        *Certificates
	Settings     *Settings
	Orders       *Orders
	Transport    *Transport
	Clock        *Clock
	Locker       ports.Locker
	Runtime      *billing.RuntimeSettings
	Lifecycle    *billing.Lifecycle
	Certificates *billing.CertificateService
}

// Config configuración de vendedor de prueba.
func Config() billing.LifecycleConfig {
	return billing.LifecycleConfig{
		Seller: myinvois.Party{
			TIN:     "C12345678901",
			IDType:  catalog.IDSchemeBRN,
			IDValue: "201901012345",
			SST:     catalog.NotApplicable,
			TTX:     catalog.NotApplicable,
			Name:    "KLINIK CONTOH SDN BHD",
			Email:   "billing@example.com",
			Phone:   "60312345678",
			Address: myinvois.PartyAddress{
				Line1:     "No 1, Jalan Contoh",
				City:      "Kuala Lumpur",
				Postcode:  "50000",
				StateCode: "14",
				Country:   catalog.CountryMalaysia,
			},
		},
		TaxCategoryID:     catalog.TaxCategoryExempt,
		Industry:          catalog.DefaultMSIC,
		BillingCircle:     billing.CircleOnCompleted,
		InitialUBLVersion: catalog.UBLVersionUnsigned,
		PortalHost:        "https://preprod.myinvois.hasil.gov.my",
		Location:          time.UTC,
	}
}

// NewEnv arma el entorno. mutate permite ajustar la configuración.
func NewEnv(mutate func(*billing.LifecycleConfig)) *Env {
	cfg := Config()
	if mutate != nil {
		mutate(&cfg)
	}
	e := &Env{
		Ledger:    NewLedger(),
		Certs:     NewCertificates(),
		Settings:  NewSettings(),
		Orders:    NewOrders(),
		Transport: NewTransport(),
		Clock:     NewClock(time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)),
		Locker:    cache.NewLocalLocker(),
	}
	e.Runtime = billing.NewRuntimeSettings(e.Settings, cfg.InitialUBLVersion, true)
	e.Lifecycle = billing.NewLifecycle(billing.Deps{
		Ledger:    e.Ledger,
		Certs:     e.Certs,
		Orders:    e.Orders,
		Settings:  e.Runtime,
		Transport: e.Transport,
		Builder:   myinvois.NewUBLBuilder(),
		Signer:    signer.NewService().WithClock(e.Clock.Now),
		Locker:    e.Locker,
		Clock:     e.Clock,
		Log:       logger.Nop(),
	}, cfg)
	e.Certificates = billing.NewCertificateService(e.Certs, e.Runtime, e.Clock, logger.Nop())
	return e
}
