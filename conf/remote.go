package conf

import (
	"reflect"
	"time"

	"github.com/pkg/errors"
	"github.com/txix-open/isp-kit/log"
	"github.com/txix-open/isp-kit/rc/schema"
	"github.com/txix-open/jsonschema"
)

func init() {
	schema.CustomGenerators.Register("logLevel", func(field reflect.StructField, s *jsonschema.Schema) {
		s.Type = "string"
		s.Enum = []any{"debug", "info", "error", "fatal"}
	})
}

type Remote struct {
	Redis   *Redis  `schema:"Redis settings,required, backs the response cache and the free tier limiter"`
	Http    Http    `schema:"HTTP settings"`
	Logging Logging `schema:"Logging settings"`
	Gateway Gateway `schema:"Admission settings"`
}

type Http struct {
	MaxRequestBodySizeInMb int64 `valid:"required" schema:"Maximum request body size,in megabytes"`
	ProxyTimeoutInSec      int   `valid:"required" schema:"Proxy timeout,in seconds"`
}

type Logging struct {
	LogLevel         log.Level `schemaGen:"logLevel" schema:"Log level,requests are logged at debug level"`
	RequestLogEnable bool      `schema:"Enable request logging"`
}

type Gateway struct {
	Version             int    `schema:"Content version,bumping it invalidates every cached response"`
	PricePerRequest     int64  `schema:"Price per handler invocation,in minor units, may be overridden by the handler per response"`
	FreeTierQuota       int    `schema:"Free tier quota,requests per window for callers without balance"`
	FreeTierWindowInSec int    `schema:"Free tier window,in seconds"`
	CacheTtlInSec       int    `schema:"Cache entry lifetime,in seconds, 0 keeps entries until the version changes"`
	PurchaseUrl         string `schema:"Purchase URL,returned with payment required responses"`
	EnableRefreshCheck  bool   `schema:"Stale check on cache hits,probes the handler and re-executes in background for paying callers"`
}

// WithDefaults keeps a zero remote config operational.
func (g Gateway) WithDefaults() Gateway {
	if g.Version <= 0 {
		g.Version = 1
	}
	if g.PricePerRequest <= 0 {
		g.PricePerRequest = 1
	}
	if g.FreeTierQuota <= 0 {
		g.FreeTierQuota = 10
	}
	if g.FreeTierWindowInSec <= 0 {
		g.FreeTierWindowInSec = 3600
	}
	return g
}

func (g Gateway) CacheTtl() time.Duration {
	return time.Duration(g.CacheTtlInSec) * time.Second
}

func (g Gateway) FreeTierWindow() time.Duration {
	return time.Duration(g.FreeTierWindowInSec) * time.Second
}

type Redis struct {
	Address  string         `schema:"Address,required if sentinel is not specified"`
	Username string         `schema:"Username"`
	Password string         `schema:"Password"`
	Sentinel *RedisSentinel `schema:"Sentinel settings,required if address is not specified"`
}

type RedisSentinel struct {
	Addresses  []string `valid:"required" schema:"Cluster node addresses"`
	MasterName string   `valid:"required" schema:"Master name"`
	Username   string   `schema:"Sentinel username"`
	Password   string   `schema:"Sentinel password"`
}

func (r Remote) Validate() error {
	if r.Redis == nil {
		return errors.New("redis is required")
	}
	if r.Redis.Sentinel == nil && r.Redis.Address == "" {
		return errors.New("invalid redis config. sentinel or address are required")
	}
	return nil
}
