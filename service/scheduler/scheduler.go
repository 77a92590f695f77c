package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/logger"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
	"github.com/JustinTDCT/onlineTracker/service/alertmanager"
	"github.com/JustinTDCT/onlineTracker/service/checker"
)

const (
	DefaultTick          = 5 * time.Second
	DefaultMaxConcurrent = 10
	DefaultRetentionDays = 365
	sweepSpec            = "@every 1h"
)

type Store interface {
	ListDueCandidateMonitors(ctx context.Context) ([]*model.Monitor, error)
	GetMonitor(ctx context.Context, id uint64) (*model.Monitor, error)
	GetLatestStatus(ctx context.Context, monitorID uint64) (*model.StatusRecord, error)
	RecordCheck(ctx context.Context, r *model.StatusRecord) error
	DeleteStatusesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetSettings(ctx context.Context) (model.Settings, error)
}

type Prober interface {
	Check(ctx context.Context, kind model.MonitorKind, target string, p checker.Params) *model.CheckOutcome
}

type Alerter interface {
	Evaluate(ctx context.Context, m *model.Monitor, newStatus model.Status, oldStatus *model.Status) (alertmanager.Decision, error)
	Notify(ctx context.Context, m *model.Monitor, status model.Status, details string) ([]*model.AlertRecord, error)
	SendSSLWarning(ctx context.Context, m *model.Monitor, daysRemaining int) ([]*model.AlertRecord, error)
}

// Publisher receives every persisted record, e.g. for websocket fan-out.
type Publisher interface {
	Publish(m *model.Monitor, r *model.StatusRecord)
}

type Scheduler struct {
	store     Store
	prober    Prober
	alerter   Alerter
	publisher Publisher
	clock     utils.Clock
	log       *zap.Logger

	tick      time.Duration
	limit     int64
	retention time.Duration
	sem       *semaphore.Weighted

	mu       sync.Mutex
	inFlight map[uint64]struct{}
	locks    sync.Map // monitor id -> *sync.Mutex

	wg       sync.WaitGroup
	stopping atomic.Bool
	cron     *cron.Cron
}

type Option func(*Scheduler)

func WithClock(c utils.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithMaxConcurrent(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.limit = int64(n)
		}
	}
}

func WithRetentionDays(days int) Option {
	return func(s *Scheduler) {
		if days > 0 {
			s.retention = time.Duration(days) * 24 * time.Hour
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

func New(store Store, prober Prober, alerter Alerter, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		prober:    prober,
		alerter:   alerter,
		clock:     utils.SystemClock,
		log:       zap.NewNop(),
		tick:      DefaultTick,
		limit:     DefaultMaxConcurrent,
		retention: DefaultRetentionDays * 24 * time.Hour,
		inFlight:  make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sem = semaphore.NewWeighted(s.limit)
	s.log = s.log.With(zap.String("component", "scheduler"))
	return s
}

// Start runs a first tick and then schedules ticks and retention sweeps.
func (s *Scheduler) Start(ctx context.Context) error {
	cronLog := logger.CronLogger{Log: s.log.Sugar()}
	s.cron = cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog)))
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.tick), func() { s.Tick(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(sweepSpec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("retention sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.Tick(ctx)
	s.log.Info("scheduler started", zap.Duration("tick", s.tick), zap.Int64("max_concurrent", s.limit))
	return nil
}

// Stop prevents new units from starting and waits for running ones. Probes are not cancelled.
func (s *Scheduler) Stop() {
	s.stopping.Store(true)
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// Tick dispatches a unit for every due monitor and returns without waiting for them.
func (s *Scheduler) Tick(ctx context.Context) int {
	if s.stopping.Load() {
		return 0
	}
	monitors, err := s.store.ListDueCandidateMonitors(ctx)
	if err != nil {
		s.log.Error("list monitors", zap.Error(err))
		return 0
	}
	now := s.clock.Now()
	unitCtx := context.WithoutCancel(ctx)
	dispatched := 0
	for _, m := range monitors {
		if !isDue(m, m.LastCheckedAt, now, s.tick) || !s.claim(m.ID) {
			continue
		}
		dispatched++
		s.wg.Add(1)
		unitsInFlight.Inc()
		go s.runUnit(unitCtx, m.ID)
	}
	dispatchedTotal.Add(float64(dispatched))
	if dispatched > 0 {
		s.log.Debug("tick", zap.Int("candidates", len(monitors)), zap.Int("dispatched", dispatched))
	}
	return dispatched
}

// Sweep deletes status records older than the retention window.
func (s *Scheduler) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	n, err := s.store.DeleteStatusesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	sweptRecords.Add(float64(n))
	s.log.Info("retention sweep", zap.Time("cutoff", cutoff), zap.Int64("deleted", n))
	return n, nil
}

func (s *Scheduler) claim(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id uint64) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

func (s *Scheduler) monitorLock(id uint64) *sync.Mutex {
	l, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (s *Scheduler) runUnit(ctx context.Context, id uint64) {
	defer s.wg.Done()
	defer unitsInFlight.Dec()
	defer s.release(id)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("check unit panicked", zap.Uint64("monitor_id", id), zap.Any("panic", r))
		}
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)
	if s.stopping.Load() {
		return
	}

	lock := s.monitorLock(id)
	lock.Lock()
	defer lock.Unlock()

	log := s.log.With(zap.Uint64("monitor_id", id))
	m, err := s.store.GetMonitor(ctx, id)
	if err != nil {
		log.Warn("load monitor", zap.Error(err))
		return
	}
	if !m.Enabled || !m.Local() {
		return
	}
	prev, err := s.store.GetLatestStatus(ctx, id)
	if err != nil {
		log.Warn("load latest status", zap.Error(err))
		return
	}
	var last *time.Time
	if prev != nil {
		last = &prev.CheckedAt
	}
	if !isDue(m, last, s.clock.Now(), s.tick) {
		log.Debug("no longer due")
		return
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		log.Warn("load settings", zap.Error(err))
		return
	}

	params := checker.Resolve(m.Kind, m.Config, settings.ProbeDefaults())
	startedAt, wall := s.clock.Now(), time.Now()
	outcome := s.prober.Check(ctx, m.Kind, m.Target, params)
	checkDuration.WithLabelValues(string(m.Kind)).Observe(time.Since(wall).Seconds())

	_ = s.record(ctx, m, outcome.Record(m.ID, startedAt), prev, settings)
}

// Record runs a result produced elsewhere, such as by a remote agent, through
// the same evaluate, persist and notify pipeline as local checks.
func (s *Scheduler) Record(ctx context.Context, m *model.Monitor, r *model.StatusRecord) error {
	lock := s.monitorLock(m.ID)
	lock.Lock()
	defer lock.Unlock()

	prev, err := s.store.GetLatestStatus(ctx, m.ID)
	if err != nil {
		return err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	return s.record(ctx, m, r, prev, settings)
}

// record must be called with the monitor lock held.
func (s *Scheduler) record(ctx context.Context, m *model.Monitor, r *model.StatusRecord, prev *model.StatusRecord, settings model.Settings) error {
	log := s.log.With(zap.Uint64("monitor_id", m.ID), zap.String("kind", string(m.Kind)))

	var old *model.Status
	if prev != nil {
		st := prev.Status
		old = &st
	}
	decision, err := s.alerter.Evaluate(ctx, m, r.Status, old)
	if err != nil {
		log.Warn("alert evaluation failed", zap.Error(err))
		decision = alertmanager.Decision{}
	}

	if err := s.store.RecordCheck(ctx, r); err != nil {
		persistFailures.Inc()
		log.Error("persist check result", zap.Error(err))
		return err
	}
	checksTotal.WithLabelValues(string(m.Kind), string(r.Status)).Inc()
	log.Debug("check recorded", zap.String("status", string(r.Status)), zap.String("details", r.Details))

	if s.publisher != nil {
		s.publisher.Publish(m, r)
	}

	if decision.Notify {
		if _, err := s.alerter.Notify(ctx, m, r.Status, r.Details); err != nil {
			log.Warn("notify", zap.Error(err))
		}
	}

	if prev != nil {
		if t, ok := crossedThreshold(settings.IntList(model.SettingSSLWarnDays), prev.TLSExpiryDays, r.TLSExpiryDays); ok {
			log.Info("certificate warning threshold crossed", zap.Int("threshold", t), zap.Int("days", *r.TLSExpiryDays))
			if _, err := s.alerter.SendSSLWarning(ctx, m, *r.TLSExpiryDays); err != nil {
				log.Warn("ssl warning", zap.Error(err))
			}
		}
	}
	return nil
}
