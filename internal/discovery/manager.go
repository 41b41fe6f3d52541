// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

/*
Package discovery runs background deep-discovery jobs. A conversation
that wants "keep looking while we talk" gets one job per session: the
job polls an asynchronous webset search and pushes late-arriving events
to the session over the push channel.

Lifecycle rules, all enforced here:
  - one job per session; starting a new one cancels the old (last
    writer wins)
  - jobs stop when the session disconnects, the webset finishes or
    fails, the poll budget runs out, or the session is cancelled
  - every exit path removes the job from the session map
*/
package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/eventscout/internal/cache"
	"github.com/tomtom215/eventscout/internal/logging"
	"github.com/tomtom215/eventscout/internal/metrics"
	"github.com/tomtom215/eventscout/internal/models"
	"github.com/tomtom215/eventscout/internal/push"
)

// Terminal job states, used in logs and metrics.
const (
	StateCompleted    = "completed"
	StateFailed       = "failed"
	StateTimeout      = "timed_out"
	StateCancelled    = "cancelled"
	StateDisconnected = "disconnected"
)

const (
	// DefaultPollInterval between webset status checks.
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxPolls bounds a job's lifetime (5 minutes at the default
	// interval).
	DefaultMaxPolls = 60

	// DefaultResultCount asked of the webset API per job.
	DefaultResultCount = 10

	// seenCapacity bounds the cross-job duplicate suppression set.
	seenCapacity = 4096
)

// pushSourceName attributes deep-discovery results on the push channel.
const pushSourceName = "exa"

// Sink is where completed discoveries go. *push.Hub satisfies it.
type Sink interface {
	Push(sessionID string, msg push.Message) bool
	HasConnection(sessionID string) bool
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration
	MaxPolls     int
	ResultCount  int
}

// job is one running discovery. profile is the search snapshot the job
// was started with; a later search in the same session does not mutate
// a job already in flight.
type job struct {
	id        string
	sessionID string
	websetID  string
	profile   models.SearchRequest
	cancel    context.CancelFunc
}

// Manager owns the per-session discovery jobs.
type Manager struct {
	client       WebsetClient
	sink         Sink
	pollInterval time.Duration
	maxPolls     int
	resultCount  int

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
	wg     sync.WaitGroup

	// seen suppresses re-pushing a URL a previous job in any session
	// already delivered recently.
	seen *cache.SeenSet

	// onTerminal, when set, observes job exits. Tests use it to wait
	// for state transitions without sleeping.
	onTerminal func(sessionID, jobID, state string)
}

// NewManager creates a Manager over the given webset client and sink.
func NewManager(client WebsetClient, sink Sink, opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}
	if opts.ResultCount <= 0 {
		opts.ResultCount = DefaultResultCount
	}
	return &Manager{
		client:       client,
		sink:         sink,
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
		resultCount:  opts.ResultCount,
		jobs:         make(map[string]*job),
		seen:         cache.NewSeenSet(seenCapacity, 24*time.Hour),
	}
}

// StartDiscovery launches a deep-discovery job for the session,
// snapshotting the search profile onto the job. A job already running
// for the session is cancelled and replaced. Returns the job ID and
// true, or "" and false when the webset could not be created (or the
// manager is shut down).
func (m *Manager) StartDiscovery(sessionID string, profile models.SearchRequest) (string, bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", false
	}
	m.mu.Unlock()

	createCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	websetID, err := m.client.CreateWebset(createCtx, websetQuery(profile), m.resultCount)
	cancel()
	if err != nil {
		logging.Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("deep discovery webset creation failed")
		metrics.DiscoveryJobsTotal.WithLabelValues(StateFailed).Inc()
		return "", false
	}

	// The job outlives the request that started it, so it runs on its
	// own cancellable background context.
	jobCtx, jobCancel := context.WithCancel(context.Background())
	j := &job{
		id:        uuid.NewString(),
		sessionID: sessionID,
		websetID:  websetID,
		profile:   profile,
		cancel:    jobCancel,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		jobCancel()
		return "", false
	}
	if prev, ok := m.jobs[sessionID]; ok {
		prev.cancel()
	}
	m.jobs[sessionID] = j
	active := len(m.jobs)
	m.mu.Unlock()

	metrics.DiscoveryJobsActive.Set(float64(active))
	logging.Info().
		Str("session_id", sessionID).
		Str("job_id", j.id).
		Str("webset_id", websetID).
		Msg("deep discovery job started")

	m.wg.Add(1)
	go m.run(jobCtx, j)
	return j.id, true
}

// websetQuery renders the search profile as the webset prompt.
func websetQuery(profile models.SearchRequest) string {
	parts := make([]string, 0, 4)
	if len(profile.Keywords) > 0 {
		parts = append(parts, strings.Join(profile.Keywords, " "))
	}
	if len(profile.Categories) > 0 {
		parts = append(parts, strings.Join(profile.Categories, " "))
	}
	parts = append(parts, "events")
	if profile.Location != "" {
		parts = append(parts, "in "+profile.Location)
	}
	if profile.TimeWindow != nil {
		parts = append(parts, profile.TimeWindow.Start.Format("January 2006"))
	}
	return strings.Join(parts, " ")
}

// run polls the webset until a terminal condition.
func (m *Manager) run(ctx context.Context, j *job) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for polls := 0; polls < m.maxPolls; polls++ {
		select {
		case <-ctx.Done():
			m.finish(j, StateCancelled)
			return
		case <-ticker.C:
		}

		metrics.DiscoveryPolls.Inc()

		// Nobody is listening: stop burning API quota for this session.
		if !m.sink.HasConnection(j.sessionID) {
			m.finish(j, StateDisconnected)
			return
		}

		status, err := m.client.GetWebset(ctx, j.websetID)
		if err != nil {
			if ctx.Err() != nil {
				m.finish(j, StateCancelled)
				return
			}
			// Transient poll failures count against the budget but do
			// not kill the job.
			logging.Warn().
				Err(err).
				Str("job_id", j.id).
				Msg("webset poll failed")
			continue
		}

		switch status.Status {
		case StatusCompleted:
			m.deliver(j, status.Results)
			m.finish(j, StateCompleted)
			return
		case StatusFailed:
			m.finish(j, StateFailed)
			return
		}
	}

	m.finish(j, StateTimeout)
}

// deliver pushes the webset results that have not been seen recently.
func (m *Manager) deliver(j *job, results []WebsetResult) {
	events := make([]models.EventRecord, 0, len(results))
	for _, r := range results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		if m.seen.Seen(r.URL) {
			continue
		}
		rec := models.EventRecord{
			Source:      pushSourceName,
			ExternalID:  r.URL,
			Title:       r.Title,
			Description: r.Description,
			Location:    j.profile.Location,
			URL:         r.URL,
		}
		rec.Normalize()
		events = append(events, rec)
	}
	if len(events) == 0 {
		return
	}

	delivered := m.sink.Push(j.sessionID, push.Message{
		Type:    push.MessageTypeMoreEvents,
		Events:  events,
		Source:  pushSourceName,
		Message: fmt.Sprintf("Found %d more events while you were browsing", len(events)),
	})
	logging.Info().
		Str("session_id", j.sessionID).
		Str("job_id", j.id).
		Int("events", len(events)).
		Bool("delivered", delivered).
		Msg("deep discovery results pushed")
}

// finish removes the job from the session map unless a newer job has
// already replaced it, then records the terminal state.
func (m *Manager) finish(j *job, state string) {
	m.mu.Lock()
	if m.jobs[j.sessionID] == j {
		delete(m.jobs, j.sessionID)
	}
	active := len(m.jobs)
	m.mu.Unlock()

	j.cancel()
	metrics.DiscoveryJobsActive.Set(float64(active))
	metrics.DiscoveryJobsTotal.WithLabelValues(state).Inc()
	logging.Info().
		Str("session_id", j.sessionID).
		Str("job_id", j.id).
		Str("state", state).
		Msg("deep discovery job finished")

	if m.onTerminal != nil {
		m.onTerminal(j.sessionID, j.id, state)
	}
}

// CancelSessionTasks cancels the session's running job, if any. The
// job's own exit path handles map cleanup.
func (m *Manager) CancelSessionTasks(sessionID string) {
	m.mu.Lock()
	j, ok := m.jobs[sessionID]
	m.mu.Unlock()

	if ok {
		j.cancel()
	}
}

// ActiveJobs returns the number of running jobs.
func (m *Manager) ActiveJobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Serve blocks until ctx is canceled, then cancels every job and waits
// for them to exit. Satisfies the supervisor's service contract.
func (m *Manager) Serve(ctx context.Context) error {
	<-ctx.Done()

	m.mu.Lock()
	m.closed = true
	for _, j := range m.jobs {
		j.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
	return ctx.Err()
}

// String identifies the manager in supervisor logs.
func (m *Manager) String() string {
	return "discovery-manager"
}
