package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Role names double as the default certificate name of each process.
const (
	RoleIngress   = "ingress"
	RoleMessenger = "messenger"
	RoleGateway   = "gateway"
	RoleForwarder = "forwarder"
	RoleDisplay   = "display"
)

type Config struct {
	Role string `mapstructure:"-"`

	LogLevel string `mapstructure:"log-level"`

	// CertsDir holds ca.pem plus <CertName>.pem and <CertName>-key.pem.
	CertsDir string `mapstructure:"certs-dir"`
	CertName string `mapstructure:"cert-name"`

	HTTPAddr string `mapstructure:"http-addr"`
	RPCAddr  string `mapstructure:"rpc-addr"`

	// Downstream is the host:port of the next hop. DownstreamServerName is
	// checked against its certificate and defaults to the host part.
	Downstream           string `mapstructure:"downstream"`
	DownstreamServerName string `mapstructure:"downstream-server-name"`

	RPCTimeout  time.Duration `mapstructure:"rpc-timeout"`
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
	IdleTimeout time.Duration `mapstructure:"idle-timeout"`
	MaxPool     int           `mapstructure:"max-pool"`

	ConnectRetries  int           `mapstructure:"connect-retries"`
	ConnectInterval time.Duration `mapstructure:"connect-interval"`
	IngressRetries  int           `mapstructure:"ingress-retries"`

	CORSOrigins []string `mapstructure:"cors-origins"`
	Tracing     bool     `mapstructure:"tracing"`
}

type roleDefaults struct {
	httpAddr   string
	rpcAddr    string
	downstream string
}

var defaultsByRole = map[string]roleDefaults{
	RoleIngress:   {httpAddr: ":3003", downstream: "localhost:3004"},
	RoleMessenger: {httpAddr: ":8081", rpcAddr: ":3004"},
	RoleGateway:   {httpAddr: ":3003", downstream: "localhost:3004"},
	RoleForwarder: {httpAddr: ":8082", rpcAddr: ":3004", downstream: "localhost:3005"},
	RoleDisplay:   {httpAddr: ":3000", rpcAddr: ":3005"},
}

// hostEnvByRole keeps the environment names of the original deployment: they
// name only the downstream host, the port stays the role default.
var hostEnvByRole = map[string]string{
	RoleIngress:   "SERVER_B_HOST",
	RoleGateway:   "ENCRYPTION_SERVER_HOST",
	RoleForwarder: "NODE_SERVER_HOST",
}

// SetDefaults registers defaults and environment bindings for role on v.
func SetDefaults(v *viper.Viper, role string) {
	d := defaultsByRole[role]

	v.SetDefault("log-level", "info")
	v.SetDefault("certs-dir", "./certs")
	v.SetDefault("cert-name", role)
	v.SetDefault("http-addr", d.httpAddr)
	v.SetDefault("rpc-addr", d.rpcAddr)
	v.SetDefault("downstream", d.downstream)
	v.SetDefault("downstream-server-name", "")
	v.SetDefault("rpc-timeout", 5*time.Second)
	v.SetDefault("dial-timeout", 3*time.Second)
	v.SetDefault("idle-timeout", 5*time.Minute)
	v.SetDefault("max-pool", 4)
	v.SetDefault("connect-retries", 15)
	v.SetDefault("connect-interval", 2*time.Second)
	v.SetDefault("ingress-retries", 0)
	v.SetDefault("cors-origins", []string{"*"})
	v.SetDefault("tracing", false)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("certs-dir", "RELAY_CERTS_DIR", "CERTS_DIR")
	_ = v.BindEnv("http-addr", "RELAY_HTTP_ADDR", "PORT")
}

// Load reads .env (if present) and decodes v into a Config for role.
func Load(v *viper.Viper, role string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Role = role

	if env, ok := hostEnvByRole[role]; ok && cfg.Downstream == defaultsByRole[role].downstream {
		if host := os.Getenv(env); host != "" {
			_, port, err := net.SplitHostPort(cfg.Downstream)
			if err != nil {
				return nil, fmt.Errorf("invalid downstream %q: %w", cfg.Downstream, err)
			}
			cfg.Downstream = net.JoinHostPort(host, port)
		}
	}

	// PORT carries a bare port number in most deployments
	if _, err := strconv.Atoi(cfg.HTTPAddr); err == nil {
		cfg.HTTPAddr = ":" + cfg.HTTPAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings a role cannot start without.
func (c *Config) Validate() error {
	if c.CertsDir == "" {
		return fmt.Errorf("certs-dir is required")
	}
	if c.CertName == "" {
		return fmt.Errorf("cert-name is required")
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("rpc-timeout must be positive, got %s", c.RPCTimeout)
	}
	if c.MaxPool < 1 {
		return fmt.Errorf("max-pool must be at least 1, got %d", c.MaxPool)
	}
	switch c.Role {
	case RoleIngress, RoleGateway, RoleForwarder:
		if _, _, err := net.SplitHostPort(c.Downstream); err != nil {
			return fmt.Errorf("invalid downstream %q: %w", c.Downstream, err)
		}
	}
	switch c.Role {
	case RoleMessenger, RoleForwarder, RoleDisplay:
		if c.RPCAddr == "" {
			return fmt.Errorf("rpc-addr is required for %s", c.Role)
		}
	}
	return nil
}

// ServerName is the name verified against the downstream certificate.
func (c *Config) ServerName() string {
	if c.DownstreamServerName != "" {
		return c.DownstreamServerName
	}
	host, _, err := net.SplitHostPort(c.Downstream)
	if err != nil {
		return c.Downstream
	}
	return host
}

// NewLogger builds the process logger: development output at debug level,
// JSON production output otherwise.
func NewLogger(level string) (*zap.SugaredLogger, error) {
	var zc zap.Config
	if strings.EqualFold(level, "debug") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}

func GetEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
