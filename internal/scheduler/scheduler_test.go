package scheduler

import (
	"bytes"
	"context"
	"log"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/weather-acquisition/internal/acquisition"
	"github.com/i474232898/weather-acquisition/internal/connectivity"
)

type countingRefresher struct{ n int32 }

func (c *countingRefresher) Refresh(context.Context) (acquisition.Snapshot, error) {
	atomic.AddInt32(&c.n, 1)
	return acquisition.Snapshot{State: acquisition.StateReady}, nil
}

type countingPoller struct{ n int32 }

func (c *countingPoller) Status(context.Context) connectivity.State {
	atomic.AddInt32(&c.n, 1)
	return connectivity.Online
}

func TestSchedulerRunsJobs(t *testing.T) {
	r := &countingRefresher{}
	p := &countingPoller{}

	s := New(r, p, 50*time.Millisecond, 20*time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&p.n) >= 2 && atomic.LoadInt32(&r.n) >= 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSchedulerWithoutJobs(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	s := New(nil, nil, 0, 0)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()

	assert.Contains(t, buf.String(), "INFO: scheduler: no jobs configured")
}
