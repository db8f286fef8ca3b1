// Package core wires the pipeline model, lifecycle machine, playback
// controller and control plane into one service with a single control
// goroutine.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/visiona/smartpole/internal/config"
	"github.com/visiona/smartpole/internal/control"
	"github.com/visiona/smartpole/internal/emitter"
	"github.com/visiona/smartpole/internal/engine"
	"github.com/visiona/smartpole/internal/engine/gstengine"
	"github.com/visiona/smartpole/internal/eventbus"
	"github.com/visiona/smartpole/internal/graph"
	"github.com/visiona/smartpole/internal/lifecycle"
	"github.com/visiona/smartpole/internal/metric"
	"github.com/visiona/smartpole/internal/playback"
)

// Service is the main orchestrator. Everything below the control plane is
// single-threaded: the machine, graph, controller and toggles are touched
// only from the control loop goroutine.
type Service struct {
	cfg *config.Config

	bus        *eventbus.Bus
	dispatcher *eventbus.Dispatcher
	engine     engine.Engine
	graph      *graph.Graph
	machine    *lifecycle.Machine
	controller *playback.Controller
	linker     *graph.Linker
	toggles    *graph.ToggleRegistry
	notifier   *emitter.MQTTNotifier
	handler    *control.Handler
	loop       *control.Loop
	metrics    *metric.Metrics

	started   time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
	cancelCtx context.CancelFunc
}

// NewService loads configuration and assembles all components. The engine
// is GStreamer when a camera URL is configured and the in-process mock
// otherwise, which keeps the daemon runnable on machines without a camera.
func NewService(configPath string) (*Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"instance_id", cfg.InstanceID,
		"pole_id", cfg.PoleID,
	)

	s := &Service{
		cfg:      cfg,
		bus:      eventbus.New(0),
		graph:    graph.New(),
		notifier: emitter.NewMQTTNotifier(cfg),
		metrics:  metric.New(),
	}

	if cfg.Camera.RTSPURL != "" {
		eng, err := gstengine.New("smartpole", s.bus)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}
		s.engine = eng
		slog.Info("using gstreamer engine", "url", cfg.Camera.RTSPURL)
	} else {
		mock := engine.NewMock(s.bus)
		mock.StateResult = lifecycle.ResultCompleted
		s.engine = mock
		slog.Info("using mock engine (no rtsp_url configured)")
	}

	s.machine = lifecycle.NewMachine(s.engine, lifecycle.Hooks{
		OnTransition:   s.onTransition,
		OnReachPaused:  s.onReachPaused,
		OnPlayable:     s.onPlayable,
		OnSessionError: s.onSessionError,
	})
	s.controller = playback.NewController(s.machine, s.engine, s.notifier)
	s.controller.OnPollFailure = func(query string) {
		s.metrics.PollFailures.WithLabelValues(query).Inc()
	}
	s.controller.OnRestart = s.metrics.EOSRestarts.Inc

	s.linker = graph.NewLinker(s.graph, s.engine)
	s.toggles = graph.NewToggleRegistry(s.graph, s.engine)

	s.dispatcher = eventbus.NewDispatcher(eventbus.Handlers{
		Error:         s.handleError,
		EOS:           func(eventbus.EOSEvent) { s.controller.HandleEOS() },
		StateChanged:  s.handleStateChanged,
		Tags:          s.handleTags,
		Application:   s.handleApplication,
		PortAnnounced: s.handlePortAnnounced,
	})
	s.dispatcher.Observe = func(ev eventbus.Event) {
		s.metrics.EventsTotal.WithLabelValues(eventbus.Kind(ev)).Inc()
	}
	s.dispatcher.OnUnhandled = func(eventbus.Event) {
		s.metrics.EventsUnhandled.Inc()
	}

	if err := buildPipeline(cfg, s.graph, s.engine); err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return s, nil
}

// Run starts the service and blocks until the context is cancelled or the
// control loop exits.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	s.isRunning = true
	s.started = time.Now()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancelCtx = cancel
	s.mu.Unlock()

	slog.Info("smartpole service starting", "instance_id", s.cfg.InstanceID)

	if err := s.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if err := s.notifier.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect mqtt: %w", err)
	}

	s.handler = control.NewHandler(s.cfg, s.notifier.Client)
	if err := s.handler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start control plane: %w", err)
	}

	s.loop = control.NewLoop(
		s.bus,
		s.dispatcher,
		s.handler.Commands(),
		s.handler.Respond,
		control.Callbacks{
			OnPlay:         s.controller.Play,
			OnPause:        s.controller.Pause,
			OnStop:         s.controller.Stop,
			OnSeek:         s.controller.Seek,
			OnSetParameter: s.toggles.SetParameter,
			OnGetPosition:  s.controller.Position,
			OnGetStatus:    s.GetStatus,
		},
		&s.notifier.SeekGate,
		time.Duration(s.cfg.Playback.PollIntervalS)*time.Second,
		func() { s.controller.PollPosition() },
	)
	s.loop.OnCommand = func(name, status string) {
		s.metrics.CommandsTotal.WithLabelValues(name, status).Inc()
	}

	if err := s.StartHealthServer(s.cfg.HealthPort); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	s.wg.Add(1)
	go s.publishHealth(ctx)

	// The camera starts streaming immediately; operators pause or stop it
	// over the control plane.
	if _, err := s.controller.Play(); err != nil {
		slog.Error("initial play request rejected", "error", err)
	}

	slog.Info("smartpole service running")

	err := s.loop.Run(ctx)
	if err == context.Canceled {
		err = nil
	}

	slog.Info("smartpole service run loop exiting")
	return err
}

// Shutdown performs graceful shutdown of all components.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	slog.Info("shutting down smartpole service")

	// 1. Stop the control plane so no new commands arrive.
	if s.handler != nil {
		if err := s.handler.Stop(); err != nil {
			slog.Error("failed to stop control handler", "error", err)
		}
	}

	// 2. Tear the engine down to null; its bus pump stops with it.
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			slog.Error("failed to close engine", "error", err)
		}
	}

	// 3. Close the event bus; the loop drains what is left and exits.
	s.bus.Close()

	slog.Info("waiting for goroutines to finish")
	s.wg.Wait()

	// 4. Disconnect MQTT last so shutdown notifications still go out.
	if s.notifier != nil {
		if err := s.notifier.Disconnect(); err != nil {
			slog.Error("failed to disconnect mqtt", "error", err)
		}
	}

	s.mu.Lock()
	uptime := time.Since(s.started)
	s.isRunning = false
	s.mu.Unlock()

	slog.Info("smartpole service shutdown complete", "uptime", uptime)
	return nil
}

// ShutdownTimeout returns the configured graceful shutdown timeout.
func (s *Service) ShutdownTimeout() time.Duration {
	timeout := time.Duration(s.cfg.ShutdownTimeoutS) * time.Second
	if timeout == 0 {
		return 5 * time.Second
	}
	return timeout
}

// GetStatus reports the service view for the get_status command. It runs
// on the control loop goroutine, so reading the machine is safe here.
func (s *Service) GetStatus() map[string]any {
	s.mu.RLock()
	started := s.started
	running := s.isRunning
	s.mu.RUnlock()

	target, pending := s.machine.Pending()
	pos := s.controller.Position()
	busStats := s.bus.Stats()
	emitterStats := s.notifier.Stats()

	status := map[string]any{
		"instance_id":      s.cfg.InstanceID,
		"pole_id":          s.cfg.PoleID,
		"uptime_s":         time.Since(started).Seconds(),
		"running":          running,
		"state":            s.machine.Current().String(),
		"pending":          pending,
		"duration_known":   pos.DurationKnown,
		"duration_ns":      pos.DurationNs,
		"last_position_ns": pos.LastPositionNs,
		"events_posted":    busStats.Posted,
		"events_lost":      busStats.Lost,
		"mqtt_published":   emitterStats.Published,
		"mqtt_errors":      emitterStats.Errors,
	}
	if pending {
		status["pending_target"] = target.String()
	}
	return status
}

// onTransition records the confirmed change and forwards it to the
// playback controller, which pushes the state notification.
func (s *Service) onTransition(from, to lifecycle.State) {
	s.metrics.StateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	s.metrics.PipelineState.Set(float64(to))
	s.controller.ObserveTransition(from, to)
}

// onReachPaused refreshes duration and position as soon as the stream is
// negotiated, instead of waiting for the next poll tick.
func (s *Service) onReachPaused() {
	s.controller.PollPosition()
}

// onPlayable checks that every deferred link resolved during negotiation
// and dumps the final topology. An unresolved link at this point is a
// configuration error, reported through the normal error path.
func (s *Service) onPlayable(st lifecycle.State) {
	if err := s.graph.ReadyCheck(); err != nil {
		slog.Error("pipeline reached playable state with unresolved links",
			"state", st,
			"error", err,
		)
		s.bus.Post(eventbus.ErrorEvent{
			Origin:  "core",
			Message: err.Error(),
			Detail:  "deferred link never resolved during negotiation",
		})
		return
	}
	slog.Debug("pipeline topology", "state", st, "edges", s.graph.Topology())
}

func (s *Service) onSessionError(msg string) {
	s.controller.HandleSessionError(msg)
}

func (s *Service) handleError(ev eventbus.ErrorEvent) {
	slog.Error("engine error",
		"origin", ev.Origin,
		"error", ev.Message,
		"detail", ev.Detail,
	)
	s.machine.HandleError(ev.Message)
}

func (s *Service) handleStateChanged(ev eventbus.StateChangedEvent) {
	s.machine.HandleStateChanged(ev.Old, ev.New, ev.MorePending)
}

func (s *Service) handleTags(ev eventbus.TagsEvent) {
	s.notifier.MetadataUpdated(ev.StreamIndex, ev.Kind, ev.Text)
}

func (s *Service) handleApplication(ev eventbus.ApplicationEvent) {
	slog.Debug("application event", "origin", ev.Origin, "name", ev.Name)
}

func (s *Service) handlePortAnnounced(ev eventbus.PortAnnouncedEvent) {
	s.linker.ResolveAnnounced(ev.Node, ev.Port)
}

// publishHealth pushes a health snapshot to the health topic once a minute.
func (s *Service) publishHealth(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := s.healthPayload()
			if err != nil {
				slog.Error("failed to build health payload", "error", err)
				continue
			}
			if err := s.notifier.PublishHealth(payload); err != nil {
				slog.Warn("failed to publish health", "error", err)
			}
		}
	}
}
