package assembly

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/txix-open/isp-kit/grpc/client"
	"github.com/txix-open/isp-kit/lb"
	"github.com/txix-open/isp-kit/log"
	"paygate-service/conf"
	"paygate-service/middleware"
	"paygate-service/pipeline"
	"paygate-service/proxy"
	"paygate-service/render"
	"paygate-service/repository"
	"paygate-service/service"
	"paygate-service/tasks"
)

type Locator struct {
	logger                      log.Logger
	billingCli                  *client.Client
	httpHostManagerByModuleName map[string]*lb.RoundRobin
	queue                       *tasks.Queue
}

func NewLocator(
	logger log.Logger,
	billingCli *client.Client,
	httpHostManagerByModuleName map[string]*lb.RoundRobin,
	queue *tasks.Queue,
) Locator {
	return Locator{
		logger:                      logger,
		billingCli:                  billingCli,
		httpHostManagerByModuleName: httpHostManagerByModuleName,
		queue:                       queue,
	}
}

func (l Locator) Handler(config conf.Remote, locations []conf.Location, redisCli redis.UniversalClient) http.Handler {
	gateway := config.Gateway.WithDefaults()

	billingRepo := repository.NewBilling(l.billingCli)
	billingService := service.NewBilling(billingRepo, l.logger)

	cacheRepo := repository.NewResponseCache(redisCli)

	rateLimitRepo := repository.NewRateLimit(redisCli)
	limiter := service.NewRateLimit(rateLimitRepo, gateway.FreeTierQuota, gateway.FreeTierWindow())

	renderer := render.New()

	router := mux.NewRouter()
	for _, location := range locations {
		hostManager := l.httpHostManagerByModuleName[location.TargetModule]
		upstream := proxy.NewUpstream(hostManager, time.Duration(config.Http.ProxyTimeoutInSec)*time.Second)
		executor := pipeline.NewExecutor(upstream, billingService, cacheRepo, renderer, l.queue, pipeline.Config{
			Version:            gateway.Version,
			PricePerRequest:    gateway.PricePerRequest,
			CacheTtl:           gateway.CacheTtl(),
			EnableRefreshCheck: gateway.EnableRefreshCheck,
		})

		handler := middleware.Chain(
			executor,
			middleware.RequestId(),
			middleware.Logger(l.logger, config.Logging.RequestLogEnable),
			middleware.ErrorHandler(l.logger),
			middleware.Cors(),
			middleware.Session(billingService),
			middleware.Format(),
			middleware.CacheLookup(cacheRepo, executor, gateway.Version),
			middleware.Admission(limiter, gateway.PricePerRequest, gateway.PurchaseUrl),
		)

		entrypoint := middleware.Entrypoint(
			config.Http.MaxRequestBodySizeInMb*1024*1024, //nolint:mnd
			handler,
			l.logger,
			location.PathPrefix,
		)
		router.PathPrefix(location.PathPrefix).Handler(entrypoint)
	}

	return router
}
