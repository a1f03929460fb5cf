package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type SettingSource interface {
	LogoutTimerMinutes(ctx context.Context) (int, error)
}

type SessionCleaner interface {
	CleanExpired(ctx context.Context, maxIdle time.Duration) (int64, error)
}

// Scheduler owns the background session sweep. Sessions idle longer than the
// configured logout timer could also be rejected lazily at lookup time, but
// sweeping keeps the device-fingerprint counts honest for the device limit.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	settings SettingSource
	sessions SessionCleaner
	log      zerolog.Logger
}

func NewScheduler(spec string, settings SettingSource, sessions SessionCleaner, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		spec:     spec,
		settings: settings,
		sessions: sessions,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.cleanSessions); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	_, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		s.cron.Stop()
		cancel()
	}()
	return cancel
}

func (s *Scheduler) cleanSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The timer lives in settings so admins can change it without a restart.
	minutes, err := s.settings.LogoutTimerMinutes(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("logout timer read failed, skipping sweep")
		return
	}

	removed, err := s.sessions.CleanExpired(ctx, time.Duration(minutes)*time.Minute)
	if err != nil {
		s.log.Error().Err(err).Msg("session cleanup failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Int("idle_minutes", minutes).Msg("expired sessions removed")
	}
}
