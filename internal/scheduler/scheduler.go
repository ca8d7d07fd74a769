package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-acquisition/internal/acquisition"
	"github.com/i474232898/weather-acquisition/internal/connectivity"
)

// Refresher is the part of the acquirer the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) (acquisition.Snapshot, error)
}

// StatusPoller is the part of the connectivity monitor the scheduler drives.
type StatusPoller interface {
	Status(ctx context.Context) connectivity.State
}

// Scheduler polls connectivity and periodically refreshes the forecast.
type Scheduler struct {
	scheduler       *gocron.Scheduler
	refresher       Refresher
	poller          StatusPoller
	refreshInterval time.Duration
	pollInterval    time.Duration
}

// New creates a new Scheduler. A zero interval disables that job.
func New(refresher Refresher, poller StatusPoller, refreshInterval, pollInterval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:       s,
		refresher:       refresher,
		poller:          poller,
		refreshInterval: refreshInterval,
		pollInterval:    pollInterval,
	}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.pollInterval > 0 && s.poller != nil {
		_, err := s.scheduler.Every(s.pollInterval).SingletonMode().Do(s.pollConnectivity)
		if err != nil {
			return err
		}
	}

	if s.refreshInterval > 0 && s.refresher != nil {
		// The first refresh is the caller's initial load.
		_, err := s.scheduler.Every(s.refreshInterval).WaitForSchedule().SingletonMode().Do(s.refresh)
		if err != nil {
			return err
		}
	}

	if s.scheduler.Len() == 0 {
		log.Println("INFO: scheduler: no jobs configured; nothing to schedule")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) pollConnectivity() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.poller.Status(ctx)
}

func (s *Scheduler) refresh() {
	log.Println("INFO: scheduler: running weather refresh job")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := s.refresher.Refresh(ctx)
	if err != nil {
		if !errors.Is(err, acquisition.ErrSuperseded) {
			log.Printf("WARN: scheduler: refresh failed: %v", err)
		}
		return
	}
	log.Printf("INFO: scheduler: completed weather refresh job (state=%s, stale=%t)", snap.State, snap.Stale)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
