package assembly

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/txix-open/isp-kit/app"
	"github.com/txix-open/isp-kit/bootstrap"
	"github.com/txix-open/isp-kit/cluster"
	"github.com/txix-open/isp-kit/grpc/client"
	"github.com/txix-open/isp-kit/http"
	"github.com/txix-open/isp-kit/lb"
	"github.com/txix-open/isp-kit/log"
	"paygate-service/conf"
	"paygate-service/tasks"
)

const (
	billingModuleName = "billing-service"

	taskQueueSize    = 1024
	taskQueueWorkers = 4
	taskTimeout      = 30 * time.Second
)

type Assembly struct {
	boot       *bootstrap.Bootstrap
	server     *http.Server
	logger     *log.Adapter
	redisCli   redis.UniversalClient
	billingCli *client.Client
	queue      *tasks.Queue

	locations                   []conf.Location
	httpHostManagerByModuleName map[string]*lb.RoundRobin
}

func New(boot *bootstrap.Bootstrap) (*Assembly, error) {
	server := http.NewServer(boot.App.Logger())

	localConfig := conf.Local{}
	err := boot.App.Config().Read(&localConfig)
	if err != nil {
		return nil, errors.WithMessage(err, "read local config")
	}

	httpHostManagerByModuleName := make(map[string]*lb.RoundRobin)
	for _, location := range localConfig.Locations {
		httpHostManagerByModuleName[location.TargetModule] = lb.NewRoundRobin(nil)
	}

	billingCli, err := client.Default()
	if err != nil {
		return nil, errors.WithMessage(err, "create billing cli")
	}

	queue := tasks.NewQueue(taskQueueSize, taskQueueWorkers, taskTimeout, boot.App.Logger())

	return &Assembly{
		boot:                        boot,
		server:                      server,
		logger:                      boot.App.Logger(),
		billingCli:                  billingCli,
		queue:                       queue,
		locations:                   localConfig.Locations,
		httpHostManagerByModuleName: httpHostManagerByModuleName,
	}, nil
}

func (a *Assembly) ReceiveConfig(ctx context.Context, remoteConfig []byte) error {
	var (
		newCfg  conf.Remote
		prevCfg conf.Remote
	)
	err := a.boot.RemoteConfig.Upgrade(remoteConfig, &newCfg, &prevCfg)
	if err != nil {
		a.logger.Fatal(ctx, errors.WithMessage(err, "upgrade remote config"))
	}
	err = newCfg.Validate()
	if err != nil {
		a.logger.Fatal(ctx, errors.WithMessage(err, "invalid remote config"))
	}

	a.logger.SetLevel(newCfg.Logging.LogLevel)

	newRedisCli := a.redisClient(*newCfg.Redis)

	locator := NewLocator(a.logger, a.billingCli, a.httpHostManagerByModuleName, a.queue)
	handler := locator.Handler(newCfg, a.locations, newRedisCli)
	a.server.Upgrade(handler)

	if a.redisCli != nil {
		_ = a.redisCli.Close()
	}
	a.redisCli = newRedisCli

	return nil
}

func (a *Assembly) Runners() []app.Runner {
	eventHandler := cluster.NewEventHandler().
		RemoteConfigReceiver(a).
		RequireModule(billingModuleName, a.billingCli)
	for moduleName, upgrader := range a.httpHostManagerByModuleName {
		eventHandler.RequireModule(moduleName, upgrader)
	}

	return []app.Runner{
		app.RunnerFunc(func(ctx context.Context) error {
			return a.server.ListenAndServe(a.boot.BindingAddress)
		}),
		app.RunnerFunc(func(ctx context.Context) error {
			return a.boot.ClusterCli.Run(ctx, eventHandler)
		}),
		app.RunnerFunc(func(ctx context.Context) error {
			return a.queue.Run(ctx)
		}),
	}
}

func (a *Assembly) Closers() []app.Closer {
	return []app.Closer{
		a.boot.ClusterCli,
		app.CloserFunc(func() error {
			return a.server.Shutdown(context.Background())
		}),
		a.billingCli,
		a.queue,
		app.CloserFunc(func() error {
			if a.redisCli != nil {
				return a.redisCli.Close()
			}
			return nil
		}),
	}
}

func (a *Assembly) redisClient(config conf.Redis) redis.UniversalClient {
	if config.Sentinel != nil {
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       config.Sentinel.MasterName,
			SentinelAddrs:    config.Sentinel.Addresses,
			SentinelUsername: config.Sentinel.Username,
			SentinelPassword: config.Sentinel.Password,
			Username:         config.Username,
			Password:         config.Password,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Username: config.Username,
		Password: config.Password,
	})
}
