// Package app contains the controller: the single event loop that owns the
// current view, the latest reading, the engagement state and the pulse
// scheduler. Every other goroutine talks to it through channels.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/heartbeat-haptic/internal/clock"
	"github.com/sweeney/heartbeat-haptic/internal/gpio"
	"github.com/sweeney/heartbeat-haptic/internal/haptic"
	"github.com/sweeney/heartbeat-haptic/internal/health"
	"github.com/sweeney/heartbeat-haptic/internal/logic"
	"github.com/sweeney/heartbeat-haptic/internal/mqtt"
	"github.com/sweeney/heartbeat-haptic/internal/pulse"
	"github.com/sweeney/heartbeat-haptic/internal/status"
)

const (
	commandQueueSize = 16
	resultQueueSize  = 4

	DefaultPollInterval = 20 * time.Millisecond
	DefaultCallTimeout  = 10 * time.Second
)

// Options tunes the controller. Zero values select defaults.
type Options struct {
	Clock        clock.Clock
	TickPeriod   time.Duration // scheduler wake-up period
	PollInterval time.Duration // button poll and status refresh period
	Debounce     time.Duration
	Heartbeat    time.Duration // 0 disables HEARTBEAT events
	CallTimeout  time.Duration // bound on each health service call

	// NetworkInfo, if set, is consulted at startup and on every heartbeat.
	NetworkInfo func() *status.NetworkInfo
}

// ShutdownCause is the cancellation cause Run reports in the SHUTDOWN event.
type ShutdownCause struct {
	Reason string // e.g. "SIGTERM"
}

func (c ShutdownCause) Error() string { return "shutdown: " + c.Reason }

type op int

const (
	opCheck op = iota
	opRequest
	opQuery
)

func (o op) String() string {
	switch o {
	case opCheck:
		return "check"
	case opRequest:
		return "request"
	case opQuery:
		return "query"
	}
	return "unknown"
}

// result is the outcome of one health service call, posted back to the loop.
type result struct {
	op     op
	status health.AuthStatus
	sample health.Sample
	ok     bool
	err    error
}

type session struct {
	id     string
	start  time.Time
	pulses int
}

// Controller drives the heartbeat feedback loop.
type Controller struct {
	log        *zap.Logger
	svc        health.Service
	act        haptic.Actuator
	button     gpio.Reader
	pub        mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	srcStatus  health.ConnectionStatus
	tracker    *status.Tracker
	clock      clock.Clock
	opts       Options

	cmds    chan logic.Command
	results chan result
	updates chan struct{}

	// Owned by the loop goroutine.
	ctx        context.Context
	view       logic.View
	errKind    logic.ErrorKind
	bpm        float64
	hasReading bool
	subscribed bool
	authBusy   bool
	queryBusy  bool
	queryAgain bool
	detector   *logic.PressDetector
	scheduler  *pulse.Scheduler
	session    *session
}

// New creates a Controller. button and pub may be nil.
func New(log *zap.Logger, svc health.Service, act haptic.Actuator, button gpio.Reader, pub mqtt.Publisher, tracker *status.Tracker, opts Options) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = pulse.DefaultTickPeriod
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if act == nil {
		act = haptic.Nop{}
	}

	c := &Controller{
		log:      log.Named("controller"),
		svc:      svc,
		act:      act,
		button:   button,
		pub:      pub,
		tracker:  tracker,
		clock:    opts.Clock,
		opts:     opts,
		cmds:     make(chan logic.Command, commandQueueSize),
		results:  make(chan result, resultQueueSize),
		updates:  make(chan struct{}, 1),
		ctx:      context.Background(),
		view:     logic.ViewLoading,
		detector: logic.NewPressDetector(opts.Debounce),
	}
	if cs, ok := pub.(mqtt.ConnectionStatus); ok {
		c.mqttStatus = cs
	}
	if cs, ok := svc.(health.ConnectionStatus); ok {
		c.srcStatus = cs
	}
	c.scheduler = pulse.NewScheduler(opts.Clock, opts.TickPeriod, pulse.EmitterFunc(c.emit))
	return c
}

// Send queues a user action without blocking. Returns false if the queue is full.
func (c *Controller) Send(cmd logic.Command) bool {
	select {
	case c.cmds <- cmd:
		return true
	default:
		c.log.Warn("command dropped, queue full", zap.String("command", string(cmd)))
		return false
	}
}

// Run executes the loop until ctx is cancelled. On cancellation it ends any
// session, stops the scheduler and publishes SHUTDOWN with the reason taken
// from the ShutdownCause, if any.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx

	if c.opts.NetworkInfo != nil {
		if n := c.opts.NetworkInfo(); n != nil {
			c.tracker.SetNetwork(n)
		}
	}
	c.refreshConnections()
	c.publishSystem("STARTUP", "")
	c.log.Info("started",
		zap.Duration("tick", c.opts.TickPeriod),
		zap.Duration("poll", c.opts.PollInterval),
		zap.Duration("debounce", c.opts.Debounce),
		zap.Duration("heartbeat", c.opts.Heartbeat))

	c.check()

	poll := c.clock.NewTicker(c.opts.PollInterval)
	defer poll.Stop()

	var heartbeat <-chan time.Time
	if c.opts.Heartbeat > 0 {
		hb := c.clock.NewTicker(c.opts.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C()
	}

	for {
		wake, gen := c.scheduler.Wake()

		select {
		case <-ctx.Done():
			c.shutdown(shutdownReason(ctx))
			return nil

		case cmd := <-c.cmds:
			c.handleCommand(cmd)

		case r := <-c.results:
			c.handleResult(r)

		case <-c.updates:
			c.query()

		case <-wake:
			c.scheduler.Tick(gen, c.bpm)

		case <-poll.C():
			c.pollButton()
			c.refreshConnections()

		case <-heartbeat:
			if c.opts.NetworkInfo != nil {
				if n := c.opts.NetworkInfo(); n != nil {
					c.tracker.SetNetwork(n)
				}
			}
			c.refreshConnections()
			snap := c.tracker.Snapshot()
			c.log.Info("heartbeat",
				zap.Duration("uptime", snap.Uptime()),
				zap.String("view", string(snap.View)),
				zap.Int("pulses", snap.Counts.Pulses),
				zap.Int("sessions", snap.Counts.Sessions),
				zap.Int("readings", snap.Counts.Readings))
			c.publishSystem("HEARTBEAT", "")
		}
	}
}

func shutdownReason(ctx context.Context) string {
	var sc ShutdownCause
	if errors.As(context.Cause(ctx), &sc) {
		return sc.Reason
	}
	return "UNKNOWN"
}

func (c *Controller) shutdown(reason string) {
	c.log.Info("shutting down", zap.String("reason", reason))
	c.disengage()
	c.scheduler.Stop()
	c.refreshConnections()
	c.publishSystem("SHUTDOWN", reason)
}

func (c *Controller) handleCommand(cmd logic.Command) {
	switch cmd {
	case logic.CommandRetry:
		if c.view != logic.ViewError {
			c.log.Debug("retry ignored", zap.String("view", string(c.view)))
			return
		}
		if c.errKind.Retry() == logic.RetryCheck {
			c.check()
		} else {
			c.request()
		}
	case logic.CommandAuthorize:
		if c.view != logic.ViewUnauthorized {
			c.log.Debug("authorize ignored", zap.String("view", string(c.view)))
			return
		}
		c.request()
	case logic.CommandPressStart:
		c.engage()
	case logic.CommandPressEnd:
		c.disengage()
	default:
		c.log.Warn("unknown command", zap.String("command", string(cmd)))
	}
}

func (c *Controller) setView(view logic.View, kind logic.ErrorKind, detail string) {
	if view != logic.ViewAuthorized {
		c.disengage()
	}
	if view != c.view || kind != c.errKind {
		c.log.Info("view", zap.String("view", string(view)), zap.String("error", string(kind)), zap.String("detail", detail))
	}
	c.view = view
	c.errKind = ""
	if view == logic.ViewError {
		c.errKind = kind
	}
	c.tracker.SetView(view, kind, detail)
}

func (c *Controller) fail(kind logic.ErrorKind, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	c.setView(logic.ViewError, kind, detail)
}

// check runs the authorization check flow.
func (c *Controller) check() {
	if c.authBusy {
		return
	}
	c.authBusy = true
	c.setView(logic.ViewLoading, "", "")
	c.call(opCheck, func(ctx context.Context) result {
		st, err := c.svc.CheckAuthorization(ctx)
		return result{status: st, err: err}
	})
}

// request runs the authorization request flow.
func (c *Controller) request() {
	if c.authBusy {
		return
	}
	c.authBusy = true
	c.setView(logic.ViewLoading, "", "")
	c.call(opRequest, func(ctx context.Context) result {
		return result{err: c.svc.RequestAuthorization(ctx)}
	})
}

// query fetches the latest sample. Calls made while one is in flight are
// folded into a single follow-up query.
func (c *Controller) query() {
	if c.queryBusy {
		c.queryAgain = true
		return
	}
	c.queryBusy = true
	c.call(opQuery, func(ctx context.Context) result {
		s, ok, err := c.svc.QueryLatestSample(ctx)
		return result{sample: s, ok: ok, err: err}
	})
}

// call runs fn on its own goroutine with a timeout and posts the result
// back to the loop.
func (c *Controller) call(o op, fn func(ctx context.Context) result) {
	parent := c.ctx
	go func() {
		ctx, cancel := context.WithTimeout(parent, c.opts.CallTimeout)
		defer cancel()
		r := fn(ctx)
		r.op = o
		select {
		case c.results <- r:
		case <-parent.Done():
		}
	}()
}

func (c *Controller) handleResult(r result) {
	c.log.Debug("health call done", zap.Stringer("op", r.op), zap.Error(r.err))
	switch r.op {
	case opCheck:
		c.authBusy = false
		c.onCheck(r.status, r.err)
	case opRequest:
		c.authBusy = false
		if r.err != nil {
			c.log.Warn("authorization request failed", zap.Error(r.err), zap.Bool("declined", errors.Is(r.err, health.ErrDeclined)))
			c.fail(logic.ErrorRequestFailed, r.err)
			return
		}
		c.log.Info("authorization granted")
		c.check()
	case opQuery:
		c.queryBusy = false
		c.onQuery(r.sample, r.ok, r.err)
		if c.queryAgain {
			c.queryAgain = false
			c.query()
		}
	}
}

func (c *Controller) onCheck(st health.AuthStatus, err error) {
	if err != nil {
		c.log.Warn("authorization check failed", zap.Error(err))
		if errors.Is(err, health.ErrUnsupported) {
			c.fail(logic.ErrorUnsupported, err)
		} else {
			c.fail(logic.ErrorCheckFailed, err)
		}
		return
	}
	switch st {
	case health.StatusAuthorized:
		c.setView(logic.ViewAuthorized, "", "")
		c.subscribe()
		c.query()
	case health.StatusNeedsRequest:
		c.setView(logic.ViewUnauthorized, "", "")
	case health.StatusUnsupported:
		c.fail(logic.ErrorUnsupported, nil)
	default:
		c.fail(logic.ErrorCheckFailed, errors.New("unknown authorization status "+string(st)))
	}
}

func (c *Controller) subscribe() {
	if c.subscribed {
		return
	}
	if err := c.svc.Subscribe(c.notify); err != nil {
		c.log.Warn("subscribe failed", zap.Error(err))
		return
	}
	c.subscribed = true
}

// notify is the change callback handed to the health service. It runs on
// the service's goroutine and only signals the loop.
func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *Controller) onQuery(s health.Sample, ok bool, err error) {
	if err != nil {
		c.log.Warn("query failed", zap.Error(err))
		return
	}
	if !ok {
		c.log.Debug("no sample yet")
		return
	}
	c.bpm = s.BPM
	c.hasReading = true
	c.tracker.SetReading(s.BPM, s.Timestamp)
	c.log.Debug("reading", zap.Float64("bpm", s.BPM), zap.Time("at", s.Timestamp))
}

func (c *Controller) engage() {
	if c.view != logic.ViewAuthorized {
		c.log.Debug("press ignored", zap.String("view", string(c.view)))
		return
	}
	if c.session != nil {
		return
	}
	now := c.clock.Now()
	c.session = &session{id: uuid.NewString(), start: now}
	c.tracker.StartSession(c.session.id, now)
	c.log.Info("engaged", zap.String("session", c.session.id), zap.Float64("bpm", c.bpm), zap.Bool("has_reading", c.hasReading))
	c.publishSession(mqtt.SessionEvent{
		Timestamp: now,
		Type:      logic.EventSessionStart,
		SessionID: c.session.id,
		BPM:       c.bpm,
	})
	c.scheduler.Start()
}

func (c *Controller) disengage() {
	if c.session == nil {
		return
	}
	c.scheduler.Stop()
	now := c.clock.Now()
	s := c.session
	c.session = nil
	c.tracker.EndSession()
	c.log.Info("disengaged", zap.String("session", s.id), zap.Int("pulses", s.pulses), zap.Duration("duration", now.Sub(s.start)))
	c.publishSession(mqtt.SessionEvent{
		Timestamp: now,
		Type:      logic.EventSessionEnd,
		SessionID: s.id,
		BPM:       c.bpm,
		Pulses:    s.pulses,
		Duration:  now.Sub(s.start),
	})
}

// emit is the scheduler's pulse primitive.
func (c *Controller) emit() {
	c.act.Pulse()
	c.tracker.RecordPulse(c.clock.Now())
	if c.session != nil {
		c.session.pulses++
	}
}

func (c *Controller) pollButton() {
	if c.button == nil {
		return
	}
	pressed, err := c.button.Read()
	if err != nil {
		c.log.Warn("button read error", zap.Error(err))
		return
	}
	ev := c.detector.Process(logic.Input{Pressed: pressed, Time: c.clock.Now()})
	if ev == nil {
		return
	}
	c.log.Debug("button", zap.String("event", string(ev.Type)))
	if ev.Type == logic.EventPressStart {
		c.engage()
	} else {
		c.disengage()
	}
}

func (c *Controller) refreshConnections() {
	if c.mqttStatus != nil {
		c.tracker.SetMQTTConnected(c.mqttStatus.IsConnected())
	}
	if c.srcStatus != nil {
		c.tracker.SetSourceConnected(c.srcStatus.IsConnected())
	}
}

func (c *Controller) publishSystem(event, reason string) {
	if c.pub == nil {
		return
	}
	snap := c.tracker.Snapshot()
	err := c.pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		c.log.Warn("publish system event failed", zap.String("event", event), zap.Error(err))
	}
}

func (c *Controller) publishSession(ev mqtt.SessionEvent) {
	if c.pub == nil {
		return
	}
	if err := c.pub.PublishSession(ev); err != nil {
		c.log.Warn("publish session event failed", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}
