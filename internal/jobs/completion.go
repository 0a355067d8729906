package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/service"
)

// AutoCompleter runs one auto-completion pass.
type AutoCompleter interface {
	AutoCompleteExpiredSessions(ctx context.Context) (*service.AutoCompleteResult, error)
}

// CompletionJob periodically completes sessions whose end time has passed.
type CompletionJob struct {
	completer  AutoCompleter
	interval   time.Duration
	runTimeout time.Duration
	running    atomic.Bool
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewCompletionJob(completer AutoCompleter, interval, runTimeout time.Duration) *CompletionJob {
	return &CompletionJob{
		completer:  completer,
		interval:   interval,
		runTimeout: runTimeout,
		done:       make(chan struct{}),
	}
}

func (j *CompletionJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("completion job started")
}

// Stop ends the loop and waits for an in-flight pass to return.
func (j *CompletionJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
	})
	j.wg.Wait()
	log.Info().Msg("completion job stopped")
}

func (j *CompletionJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce executes a single pass unless one is already running. It reports
// whether a pass was executed.
func (j *CompletionJob) RunOnce() bool {
	if !j.running.CompareAndSwap(false, true) {
		log.Warn().Msg("previous completion pass still running, skipping tick")
		return false
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), j.runTimeout)
	defer cancel()

	start := time.Now()
	result, err := j.completer.AutoCompleteExpiredSessions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("auto-completion pass failed")
		return true
	}

	if result.CompletedCount > 0 || len(result.Results) > 0 {
		log.Info().
			Int("completed", result.CompletedCount).
			Int("examined", len(result.Results)).
			Dur("took", time.Since(start)).
			Msg("auto-completion pass finished")
	}
	return true
}
