// Package config loads ksef-pdf settings from defaults, a YAML file, a .env file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rezonia/ksef-pdf/internal/composer"
	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/logger"
	"github.com/rezonia/ksef-pdf/internal/qr"
	"github.com/rezonia/ksef-pdf/internal/signature"
	"github.com/rezonia/ksef-pdf/internal/signature/certstore"
	"github.com/rezonia/ksef-pdf/internal/signature/trust"
)

// EnvConfigPath names the variable that points to the YAML file
const EnvConfigPath = "KSEF_PDF_CONFIG"

// Config is the full application configuration
type Config struct {
	Environment string `yaml:"environment" validate:"oneof=test production"`

	QR struct {
		PixelsPerModule int  `yaml:"pixels_per_module" validate:"min=1,max=40"`
		InvoiceQR       bool `yaml:"invoice_qr"`
		CertificateQR   bool `yaml:"certificate_qr"`
	} `yaml:"qr"`

	Document struct {
		Title  string `yaml:"title" validate:"max=256"`
		Author string `yaml:"author" validate:"max=256"`
	} `yaml:"document"`

	Certificate struct {
		File     string `yaml:"file"`
		KeyFile  string `yaml:"key_file"`
		Password string `yaml:"password"`
		CAFile   string `yaml:"ca_file"`
		SoftFail bool   `yaml:"ocsp_soft_fail"`
	} `yaml:"certificate"`

	Log logger.LogConfig `yaml:"log"`

	Server struct {
		Address        string        `yaml:"address" validate:"required"`
		ReadTimeout    time.Duration `yaml:"read_timeout" validate:"min=0"`
		WriteTimeout   time.Duration `yaml:"write_timeout" validate:"min=0"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes" validate:"min=0"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		Debug          bool          `yaml:"debug"`
	} `yaml:"server"`

	Storage struct {
		CredentialsJSON string `yaml:"credentials_json"`
	} `yaml:"storage"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{Environment: string(links.EnvironmentTest)}
	cfg.QR.PixelsPerModule = qr.RecommendedPixelsPerModule
	cfg.QR.InvoiceQR = true
	cfg.QR.CertificateQR = true
	cfg.Log = logger.DefaultConfig()
	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 2 * time.Minute
	cfg.Server.MaxBodyBytes = 10 << 20
	cfg.Server.AllowedOrigins = []string{"*"}
	return cfg
}

// Load builds the configuration. An empty path falls back to KSEF_PDF_CONFIG;
// without either, no YAML file is read. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Environment, "KSEF_ENV")
	setString(&c.Certificate.File, "KSEF_CERT_FILE")
	setString(&c.Certificate.KeyFile, "KSEF_CERT_KEY_FILE")
	setString(&c.Certificate.Password, "KSEF_CERT_PASSWORD")
	setString(&c.Certificate.CAFile, "KSEF_CA_FILE")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Log.Output, "LOG_OUTPUT")
	setString(&c.Server.Address, "SERVER_ADDRESS")
	setString(&c.Storage.CredentialsJSON, "GCS_CREDENTIALS_JSON")

	if v := strings.TrimSpace(os.Getenv("KSEF_QR_PIXELS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KSEF_QR_PIXELS %q: %w", v, err)
		}
		c.QR.PixelsPerModule = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

var validate = validator.New()

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// RenderOptions converts the QR and document settings into composer options
func (c *Config) RenderOptions() composer.RenderOptions {
	opts := composer.DefaultRenderOptions()
	opts.Environment = links.Environment(c.Environment)
	opts.QRPixelsPerModule = c.QR.PixelsPerModule
	opts.IncludeInvoiceQR = c.QR.InvoiceQR
	opts.IncludeCertificateQR = c.QR.CertificateQR
	opts.Title = c.Document.Title
	opts.Author = c.Document.Author
	return opts
}

// HasCertificate reports whether a signing certificate is configured
func (c *Config) HasCertificate() bool {
	return c.Certificate.File != ""
}

// LoadCertificate reads the configured signing certificate
func (c *Config) LoadCertificate() (*signature.Certificate, error) {
	if !c.HasCertificate() {
		return nil, nil
	}
	return certstore.LoadFiles(c.Certificate.File, c.Certificate.KeyFile, c.Certificate.Password)
}

// TrustStore builds the CA store used to check signing certificates; nil when no CA file is set
func (c *Config) TrustStore(extra ...trust.TrustStoreOption) (*trust.TrustStore, error) {
	if c.Certificate.CAFile == "" {
		return nil, nil
	}
	opts := extra
	if c.Certificate.SoftFail {
		opts = append(opts, trust.WithSoftFail())
	}
	return trust.NewTrustStore(c.Certificate.CAFile, opts...)
}
