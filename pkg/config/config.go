package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config agrupa la configuración del servicio (env vars, .env o config.env).
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Redis     RedisConfig
	MyInvois  MyInvoisConfig
	Seller    SellerConfig
	Billing   BillingConfig
	Scheduler SchedulerConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string `validate:"required,oneof=development staging production test"`
	Name     string `validate:"required"`
	LogLevel string
	Timezone string `validate:"required"` // zona de la tienda para fechas de cola
}

// Location devuelve la zona horaria configurada (UTC si no se puede cargar).
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int `validate:"min=1,max=65535"`
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve DATABASE_URL si está definido, si no DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN arma el connection string escapando usuario y contraseña.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de los tokens del panel de operación.
type JWTConfig struct {
	Secret     string `validate:"required"`
	Expiration int    `validate:"min=1"` // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int `validate:"min=1,max=65535"`
}

// Addr devuelve host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig es opcional: Addr vacío = locks y caché de token en memoria.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Enabled indica si hay Redis configurado.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// MyInvoisConfig parámetros del API de LHDN.
type MyInvoisConfig struct {
	APIHost       string `validate:"required,url"`
	PortalHost    string `validate:"required,url"`
	ClientID      string
	ClientSecret1 string
	ClientSecret2 string
	Timeout       time.Duration `validate:"min=1s"`
	RatePerSecond float64       `validate:"gt=0"`
	RateBurst     int           `validate:"min=1"`
}

// SellerConfig identidad y dirección del vendedor.
type SellerConfig struct {
	TIN       string `validate:"required"`
	IDType    string `validate:"required,oneof=BRN NRIC PASSPORT ARMY"`
	IDValue   string `validate:"required"`
	Name      string `validate:"required"`
	Email     string `validate:"omitempty,email"`
	Phone     string
	SST       string
	TTX       string
	Line1     string
	City      string
	Postcode  string
	StateCode string
	Country   string `validate:"len=3"`
}

// BillingConfig parámetros del documento y del ciclo de facturación.
type BillingConfig struct {
	TaxCategoryID              string `validate:"required"`
	IndustryClassificationCode string `validate:"required,len=5,numeric"`
	BillingCircle              string // on_completed, after_N_days
	ExcludeWallet              bool
	InitialUBLVersion          string `validate:"oneof=1.0 1.1"`
}

// SchedulerConfig parámetros de las pasadas periódicas.
type SchedulerConfig struct {
	Enabled        bool
	Interval       time.Duration `validate:"min=1s"`
	SyncBatch      int           `validate:"min=1"`
	RetryBatch     int           `validate:"min=1"`
	QueueBatch     int           `validate:"min=1"`
	LockTTL        time.Duration `validate:"min=1s"`
	RetryCap       int           `validate:"min=1"`
	MaxBackoff     time.Duration
	InterCallDelay time.Duration
}

// Load lee la configuración. Primero carga .env al entorno (godotenv) para que
// la CLI y el servidor vean lo mismo; las variables de entorno tienen prioridad.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignoramos error si no existe

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // opcional

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "myinvoice-sync"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
			Timezone: getString(v, "APP_TIMEZONE", "Asia/Kuala_Lumpur"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "myinvoice"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "myinvoice-sync"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Redis: RedisConfig{
			Addr:      getString(v, "REDIS_ADDR", ""),
			Password:  getString(v, "REDIS_PASSWORD", ""),
			DB:        getInt(v, "REDIS_DB", 0),
			KeyPrefix: getString(v, "REDIS_KEY_PREFIX", "myinvois:"),
		},
		MyInvois: MyInvoisConfig{
			APIHost:       getString(v, "MYINVOIS_API_HOST", "https://preprod-api.myinvois.hasil.gov.my"),
			PortalHost:    getString(v, "MYINVOIS_PORTAL_HOST", "https://preprod.myinvois.hasil.gov.my"),
			ClientID:      getString(v, "MYINVOIS_CLIENT_ID", ""),
			ClientSecret1: getString(v, "MYINVOIS_CLIENT_SECRET_1", ""),
			ClientSecret2: getString(v, "MYINVOIS_CLIENT_SECRET_2", ""),
			Timeout:       getDuration(v, "MYINVOIS_TIMEOUT", 60*time.Second),
			RatePerSecond: getFloat(v, "MYINVOIS_RATE_PER_SECOND", 1),
			RateBurst:     getInt(v, "MYINVOIS_RATE_BURST", 1),
		},
		Seller: SellerConfig{
			TIN:       getString(v, "SELLER_TIN", ""),
			IDType:    getString(v, "SELLER_ID_TYPE", "BRN"),
			IDValue:   getString(v, "SELLER_ID_VALUE", ""),
			Name:      getString(v, "SELLER_NAME", ""),
			Email:     getString(v, "SELLER_EMAIL", ""),
			Phone:     getString(v, "SELLER_PHONE", ""),
			SST:       getString(v, "SELLER_SST_NUMBER", "NA"),
			TTX:       getString(v, "SELLER_TTX_NUMBER", "NA"),
			Line1:     getString(v, "SELLER_ADDRESS_LINE1", ""),
			City:      getString(v, "SELLER_CITY", ""),
			Postcode:  getString(v, "SELLER_POSTCODE", ""),
			StateCode: getString(v, "SELLER_STATE_CODE", "14"),
			Country:   getString(v, "SELLER_COUNTRY", "MYS"),
		},
		Billing: BillingConfig{
			TaxCategoryID:              getString(v, "BILLING_TAX_CATEGORY_ID", "E"),
			IndustryClassificationCode: getString(v, "BILLING_MSIC_CODE", "86909"),
			BillingCircle:              getString(v, "BILLING_CIRCLE", "on_completed"),
			ExcludeWallet:              getBool(v, "BILLING_EXCLUDE_WALLET", false),
			InitialUBLVersion:          getString(v, "BILLING_UBL_VERSION", "1.0"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        getBool(v, "SCHEDULER_ENABLED", true),
			Interval:       getDuration(v, "SCHEDULER_INTERVAL", 600*time.Second),
			SyncBatch:      getInt(v, "SCHEDULER_SYNC_BATCH", 5),
			RetryBatch:     getInt(v, "SCHEDULER_RETRY_BATCH", 5),
			QueueBatch:     getInt(v, "SCHEDULER_QUEUE_BATCH", 20),
			LockTTL:        getDuration(v, "SCHEDULER_LOCK_TTL", 8*time.Minute),
			RetryCap:       getInt(v, "SCHEDULER_RETRY_CAP", 3),
			MaxBackoff:     getDuration(v, "SCHEDULER_MAX_BACKOFF", 8*time.Second),
			InterCallDelay: getDuration(v, "SCHEDULER_INTER_CALL_DELAY", time.Second),
		},
	}
	return cfg, nil
}

// Validate aplica las reglas declaradas en las etiquetas validate.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	if s, ok := v.Get(key).(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return def
		}
		return n
	}
	return v.GetInt(key)
}

func getFloat(v *viper.Viper, key string, def float64) float64 {
	if !v.IsSet(key) {
		return def
	}
	return v.GetFloat64(key)
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	return v.GetBool(key)
}

// getDuration acepta "90s", "10m" o un entero en segundos.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
