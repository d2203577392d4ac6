package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/thebtf/vibe-replay/internal/worker/sse"
)

// queueSize bounds the analysis backlog. At this depth enqueue drops
// the job and the session stays completed; the startup requeue pass
// picks it up on the next run.
const queueSize = 256

type job struct {
	sessionID string
	project   string
}

// scheduler runs analysis jobs with bounded concurrency. A panicking
// job is logged and isolated so one bad session cannot take the
// worker down.
type scheduler struct {
	svc  *Service
	jobs chan job
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

func newScheduler(svc *Service, maxConcurrent int) *scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &scheduler{
		svc:  svc,
		jobs: make(chan job, queueSize),
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func (sc *scheduler) start() {
	sc.wg.Add(1)
	go sc.loop()
}

func (sc *scheduler) loop() {
	defer sc.wg.Done()
	for {
		select {
		case <-sc.svc.ctx.Done():
			return
		case j := <-sc.jobs:
			if err := sc.sem.Acquire(sc.svc.ctx, 1); err != nil {
				return
			}
			sc.wg.Add(1)
			go func(j job) {
				defer sc.wg.Done()
				defer sc.sem.Release(1)
				sc.runJob(j)
			}(j)
		}
	}
}

func (sc *scheduler) enqueue(j job) bool {
	select {
	case sc.jobs <- j:
		return true
	default:
		log.Warn().
			Str("sessionId", j.sessionID).
			Msg("Analysis queue full, dropping job")
		return false
	}
}

func (sc *scheduler) runJob(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("sessionId", j.sessionID).
				Interface("panic", r).
				Msg("Analysis job panicked")
		}
	}()

	start := time.Now()
	svc := sc.svc

	records, err := svc.logs.ReadAll(j.sessionID)
	if err != nil {
		log.Error().Err(err).Str("sessionId", j.sessionID).Msg("Failed to read event log")
		return
	}

	replay := svc.analyzer.Analyze(j.sessionID, j.project, records)

	if err := svc.logs.WriteReplay(replay); err != nil {
		log.Warn().Err(err).Str("sessionId", j.sessionID).Msg("Failed to write replay file")
	}
	if err := svc.store.SaveReplay(svc.ctx, replay); err != nil {
		log.Error().Err(err).Str("sessionId", j.sessionID).Msg("Failed to store replay")
		return
	}

	sessionsAnalyzed.Add(svc.ctx, 1)
	analysisSeconds.Record(svc.ctx, time.Since(start).Seconds())

	svc.broadcaster.Broadcast(sse.Event{
		Type:      sse.EventReplayReady,
		SessionID: j.sessionID,
		Project:   j.project,
	})

	log.Info().
		Str("sessionId", j.sessionID).
		Int("events", replay.Statistics.TotalEvents).
		Int("phases", len(replay.Phases)).
		Int("insights", len(replay.Insights)).
		Dur("took", time.Since(start)).
		Msg("Session analyzed")
}

// stop waits for in-flight jobs up to the context deadline. The
// service context is cancelled before stop is called, so the loop is
// already winding down.
func (sc *scheduler) stop(ctx context.Context) {
	finished := make(chan struct{})
	go func() {
		sc.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		log.Warn().Msg("Shutdown deadline reached with analysis jobs still running")
	}
}
