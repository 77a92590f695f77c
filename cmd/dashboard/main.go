package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/ory/graceful"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JustinTDCT/onlineTracker/cmd/dashboard/controller"
	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/logger"
	"github.com/JustinTDCT/onlineTracker/service/alertmanager"
	"github.com/JustinTDCT/onlineTracker/service/checker"
	"github.com/JustinTDCT/onlineTracker/service/hub"
	"github.com/JustinTDCT/onlineTracker/service/notifier"
	"github.com/JustinTDCT/onlineTracker/service/rpc"
	"github.com/JustinTDCT/onlineTracker/service/scheduler"
	"github.com/JustinTDCT/onlineTracker/service/store"
)

var version = "dev"

type DashboardCliParam struct {
	Version    bool
	ConfigFile string
	EnvFile    string
}

var dashboardCliParam DashboardCliParam

func init() {
	pflag.BoolVarP(&dashboardCliParam.Version, "version", "v", false, "print version")
	pflag.StringVarP(&dashboardCliParam.ConfigFile, "config", "c", "data/config.yaml", "config file path")
	pflag.StringVar(&dashboardCliParam.EnvFile, "env", ".env", "dotenv file loaded before the config")
	pflag.Parse()
}

func main() {
	if dashboardCliParam.Version {
		fmt.Println(version)
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// a missing .env is fine
	_ = godotenv.Load(dashboardCliParam.EnvFile)

	conf := &model.Config{}
	if err := conf.Read(dashboardCliParam.ConfigFile); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	log, err := logger.New(conf.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(conf.Database.Driver, conf.Database.DSN, conf.Debug, log)
	if err != nil {
		return err
	}
	defer st.Close()

	chk := checker.New(
		checker.WithLogger(log),
		checker.WithPinger(checker.ICMPPinger{Privileged: conf.Ping.Privileged}),
	)
	alerter := alertmanager.New(st, []notifier.Sender{
		notifier.NewWebhook(),
		notifier.NewEmail(),
		notifier.NewPush(st),
	}, alertmanager.WithLogger(log))
	statusHub := hub.New(log)
	sched := scheduler.New(st, chk, alerter,
		scheduler.WithLogger(log),
		scheduler.WithTick(conf.TickInterval()),
		scheduler.WithMaxConcurrent(conf.Scheduler.MaxConcurrentChecks),
		scheduler.WithRetentionDays(conf.Scheduler.RetentionDays),
		scheduler.WithPublisher(statusHub),
	)
	agents := rpc.NewAgentHandler(st, sched, rpc.WithLogger(log))

	srv := graceful.WithDefaults(&http.Server{
		Addr: conf.Listen,
		Handler: controller.NewRouter(controller.Options{
			Store:      st,
			Agents:     agents,
			Hub:        statusHub,
			Log:        log,
			AdminToken: conf.AdminToken,
			Debug:      conf.Debug,
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if conf.AdminToken == "" {
		log.Warn("admin_token is not set, the manage api is disabled")
	}
	log.Info("dashboard listening", zap.String("addr", conf.Listen), zap.String("version", version))
	return graceful.Graceful(srv.ListenAndServe, func(c context.Context) error {
		log.Info("shutting down")
		sched.Stop()
		cancel()
		return srv.Shutdown(c)
	})
}
