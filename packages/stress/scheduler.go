package stress

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"golang.org/x/time/rate"
)

// Scheduler decides when the next iteration starts and which scenario it runs
type Scheduler struct {
	config  *Config
	limiter *rate.Limiter
	sem     chan struct{} // semaphore for max concurrency

	mu          sync.Mutex
	scenarios   []*ScheduledScenario
	weights     []int
	totalWeight int
}

// ScheduledScenario holds a scenario with its scheduling configuration
type ScheduledScenario struct {
	Name     string
	Scenario *scenario.Scenario
	Config   *ScenarioConfig
}

// NewScheduler creates a new scheduler with the given config
func NewScheduler(config *Config) *Scheduler {
	s := &Scheduler{
		config:    config,
		scenarios: make([]*ScheduledScenario, 0),
		weights:   make([]int, 0),
	}

	if config.Mode == RateMode && config.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}

	maxVUs := config.MaxVUs
	if maxVUs < 1 {
		maxVUs = 100
	}
	s.sem = make(chan struct{}, maxVUs)

	return s
}

// AddScenario registers a scenario. A nil config means weight 1.
func (s *Scheduler) AddScenario(sc *scenario.Scenario, config *ScenarioConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if config == nil {
		config = DefaultScenarioConfig()
	}

	s.scenarios = append(s.scenarios, &ScheduledScenario{
		Name:     sc.Name(),
		Scenario: sc,
		Config:   config,
	})

	weight := 1
	if config.Weight > 0 {
		weight = config.Weight
	}
	s.weights = append(s.weights, weight)
	s.totalWeight += weight
}

// SelectScenario picks a scenario at random, proportionally to weight
func (s *Scheduler) SelectScenario() *ScheduledScenario {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch len(s.scenarios) {
	case 0:
		return nil
	case 1:
		return s.scenarios[0]
	}

	r := rand.Intn(s.totalWeight)
	cumulative := 0
	for i, w := range s.weights {
		cumulative += w
		if r < cumulative {
			return s.scenarios[i]
		}
	}

	return s.scenarios[len(s.scenarios)-1]
}

// Wait waits for the rate limiter (rate mode) or returns immediately (VU mode)
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return nil
}

// Acquire acquires a slot from the concurrency semaphore
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a slot back to the semaphore
func (s *Scheduler) Release() {
	<-s.sem
}

// GetCurrentRate returns the current target rate based on ramp-up
func (s *Scheduler) GetCurrentRate(elapsed time.Duration) float64 {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.Rate
	}

	progress := float64(elapsed) / float64(s.config.RampUp)
	return s.config.Rate * progress
}

// GetCurrentVUs returns the current target VUs based on ramp-up
func (s *Scheduler) GetCurrentVUs(elapsed time.Duration) int {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.VUs
	}

	progress := float64(elapsed) / float64(s.config.RampUp)
	return int(float64(s.config.VUs) * progress)
}

// UpdateRate updates the rate limiter's rate
func (s *Scheduler) UpdateRate(newRate float64) {
	if s.limiter != nil && newRate > 0 {
		s.limiter.SetLimit(rate.Limit(newRate))
	}
}

// ScenarioCount returns the number of registered scenarios
func (s *Scheduler) ScenarioCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenarios)
}

// Scenarios returns a copy of the registered scenarios
func (s *Scheduler) Scenarios() []*ScheduledScenario {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*ScheduledScenario, len(s.scenarios))
	copy(result, s.scenarios)
	return result
}

// Executor runs one iteration of a scheduled scenario.
type Executor func(ctx context.Context, sched *ScheduledScenario) error

// VURunner is one virtual user looping over scenarios
type VURunner struct {
	id        int
	scheduler *Scheduler
	config    *Config
	metrics   *Metrics
	executor  Executor
	ctx       context.Context
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
}

// NewVURunner creates a new VU runner
func NewVURunner(id int, scheduler *Scheduler, config *Config, metrics *Metrics, executor Executor) *VURunner {
	return &VURunner{
		id:        id,
		scheduler: scheduler,
		config:    config,
		metrics:   metrics,
		executor:  executor,
	}
}

// Start starts the VU runner
func (v *VURunner) Start(ctx context.Context, wg *sync.WaitGroup) {
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.wg = wg

	wg.Add(1)
	go v.run()
}

// Stop stops the VU runner
func (v *VURunner) Stop() {
	if v.cancel != nil {
		v.cancel()
	}
}

func (v *VURunner) run() {
	defer v.wg.Done()

	v.metrics.IncrementActiveVUs()
	defer v.metrics.DecrementActiveVUs()

	for {
		select {
		case <-v.ctx.Done():
			return
		default:
		}

		sched := v.scheduler.SelectScenario()
		if sched == nil {
			return
		}

		if err := v.scheduler.Acquire(v.ctx); err != nil {
			return
		}

		_ = v.executor(v.ctx, sched)

		v.scheduler.Release()

		thinkTime := v.config.ThinkTime
		if sched.Config != nil && sched.Config.Think > 0 {
			thinkTime = sched.Config.Think
		}

		if thinkTime > 0 {
			select {
			case <-v.ctx.Done():
				return
			case <-time.After(thinkTime):
			}
		}
	}
}

// VUPool manages a pool of virtual users
type VUPool struct {
	scheduler *Scheduler
	config    *Config
	metrics   *Metrics
	executor  Executor
	runners   []*VURunner
	mu        sync.Mutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewVUPool creates a new VU pool
func NewVUPool(scheduler *Scheduler, config *Config, metrics *Metrics, executor Executor) *VUPool {
	return &VUPool{
		scheduler: scheduler,
		config:    config,
		metrics:   metrics,
		executor:  executor,
		runners:   make([]*VURunner, 0),
	}
}

// Start starts the VU pool with the initial number of VUs
func (p *VUPool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	initialVUs := p.scheduler.GetCurrentVUs(0)
	if initialVUs < 1 {
		initialVUs = 1
	}

	p.Scale(initialVUs)
}

// Scale adjusts the number of running VUs
func (p *VUPool) Scale(targetVUs int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.runners) < targetVUs {
		runner := NewVURunner(len(p.runners), p.scheduler, p.config, p.metrics, p.executor)
		runner.Start(p.ctx, &p.wg)
		p.runners = append(p.runners, runner)
	}

	for len(p.runners) > targetVUs && len(p.runners) > 0 {
		last := len(p.runners) - 1
		p.runners[last].Stop()
		p.runners = p.runners[:last]
	}
}

// Stop stops all VUs
func (p *VUPool) Stop() {
	p.mu.Lock()
	for _, r := range p.runners {
		r.Stop()
	}
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
}

// Wait waits for all VUs to finish
func (p *VUPool) Wait() {
	p.wg.Wait()
}

// Count returns the current number of running VUs
func (p *VUPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runners)
}
