package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JustinTDCT/onlineTracker/pkg/logger"
	"github.com/JustinTDCT/onlineTracker/service/checker"
)

var version = "dev"

type AgentCliParam struct {
	Version         bool
	Server          string
	Secret          string
	Name            string
	DataDir         string
	IntervalSeconds int
	MaxConcurrent   int64
	Privileged      bool
	Debug           bool
}

var agentCliParam AgentCliParam

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	interval, _ := strconv.Atoi(envOr("ONLINETRACKER_AGENT_INTERVAL", "30"))
	pflag.BoolVarP(&agentCliParam.Version, "version", "v", false, "print version")
	pflag.StringVarP(&agentCliParam.Server, "server", "s", envOr("ONLINETRACKER_SERVER", ""), "dashboard base url")
	pflag.StringVarP(&agentCliParam.Secret, "secret", "p", envOr("ONLINETRACKER_SECRET", ""), "shared secret")
	pflag.StringVar(&agentCliParam.Name, "name", envOr("ONLINETRACKER_AGENT_NAME", ""), "display name")
	pflag.StringVar(&agentCliParam.DataDir, "data-dir", envOr("ONLINETRACKER_DATA_DIR", "data"), "where the agent uuid is kept")
	pflag.IntVar(&agentCliParam.IntervalSeconds, "interval", interval, "seconds between check rounds")
	pflag.Int64Var(&agentCliParam.MaxConcurrent, "max-concurrent", 10, "checks run at once")
	pflag.BoolVar(&agentCliParam.Privileged, "privileged", true, "use raw ICMP sockets")
	pflag.BoolVarP(&agentCliParam.Debug, "debug", "d", false, "debug logging")
	pflag.Parse()

	if agentCliParam.Version {
		fmt.Println(version)
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if agentCliParam.Server == "" || agentCliParam.Secret == "" {
		return fmt.Errorf("--server and --secret are required")
	}
	if agentCliParam.IntervalSeconds <= 0 {
		agentCliParam.IntervalSeconds = 30
	}
	if agentCliParam.MaxConcurrent <= 0 {
		agentCliParam.MaxConcurrent = 10
	}
	log, err := logger.New(agentCliParam.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	id, err := LoadOrCreateUUID(agentCliParam.DataDir)
	if err != nil {
		return fmt.Errorf("agent uuid: %w", err)
	}
	name := agentCliParam.Name
	if name == "" {
		name, _ = os.Hostname()
	}

	chk := checker.New(
		checker.WithLogger(log),
		checker.WithPinger(checker.ICMPPinger{Privileged: agentCliParam.Privileged}),
	)
	client := NewClient(agentCliParam.Server, agentCliParam.Secret, name, id, chk, log)
	client.MaxConcurrent = agentCliParam.MaxConcurrent

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("agent starting", zap.String("uuid", id), zap.String("server", client.Server), zap.String("version", version))
	err = client.Run(ctx, time.Duration(agentCliParam.IntervalSeconds)*time.Second)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
