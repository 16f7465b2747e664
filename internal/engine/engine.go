package engine

import (
	"context"
	"errors"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/roomwager/internal/cards"
	"github.com/lox/roomwager/internal/ledger"
	"github.com/lox/roomwager/internal/randutil"
	"github.com/lox/roomwager/internal/sessionid"
)

// Engine routes chat commands to per-room sessions
type Engine struct {
	logger      zerolog.Logger
	ledger      ledger.Ledger
	transport   Transport
	recorder    Recorder
	cfg         Config
	clock       quartz.Clock
	deckFactory func(*rand.Rand) *cards.Deck
	registry    *Registry

	rngMu sync.Mutex
	rng   *rand.Rand

	roomsMu sync.RWMutex
	enabled map[string]bool

	background sync.WaitGroup
}

// Option configures an Engine
type Option func(*Engine)

// WithConfig replaces the default configuration
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithClock sets the clock used for phase deadlines
func WithClock(clock quartz.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithRand sets the parent random source. Each session derives its own
// child source from it.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// WithRecorder sets where finished games are persisted
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithDeckFactory overrides how each session's deck is built
func WithDeckFactory(f func(*rand.Rand) *cards.Deck) Option {
	return func(e *Engine) {
		e.deckFactory = f
	}
}

// New creates an engine. The config is expected to be valid; see
// Config.Validate.
func New(logger zerolog.Logger, l ledger.Ledger, transport Transport, opts ...Option) *Engine {
	e := &Engine{
		logger:      logger.With().Str("component", "engine").Logger(),
		ledger:      l,
		transport:   transport,
		cfg:         DefaultConfig(),
		clock:       quartz.NewReal(),
		deckFactory: cards.NewDeck,
		enabled:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = randutil.New(time.Now().UnixNano())
	}
	e.registry = newRegistry(logger, e.newSession)
	return e
}

// Registry exposes the room to session map
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) newSession(room string, variant Variant, initiator User, stake int64) *Session {
	e.rngMu.Lock()
	rng := randutil.Child(e.rng)
	e.rngMu.Unlock()

	id := sessionid.New()
	return &Session{
		ID:           id,
		Room:         room,
		Variant:      variant,
		Initiator:    initiator,
		e:            e,
		cfg:          e.cfg,
		rng:          rng,
		deck:         e.deckFactory(rng),
		stake:        stake,
		participants: make(map[string]*Participant),
		inbox:        make(chan func(), inboxSize),
		stopped:      make(chan struct{}),
		logger: e.logger.With().
			Str("room", room).
			Str("session_id", id).
			Str("variant", string(variant)).
			Logger(),
	}
}

// Handle processes one chat message. Ordinary chatter is ignored. A
// rejected command is returned as a *Rejection and also sent privately to
// the requester.
func (e *Engine) Handle(ctx context.Context, cmd Command) error {
	req, err := parseCommand(cmd.Text, e.cfg.DefaultVariant)
	if err == nil {
		if req.action == actNone {
			return nil
		}
		e.logger.Debug().
			Str("room", cmd.Room).
			Str("user_id", cmd.UserID).
			Str("text", cmd.Text).
			Msg("Handling command")
		err = e.dispatch(ctx, cmd, req)
	}

	var rej *Rejection
	if errors.As(err, &rej) {
		e.notify(cmd.Room, cmd.UserID, rej.Reason)
	}
	return err
}

func (e *Engine) dispatch(ctx context.Context, cmd Command, req request) error {
	u := cmd.User()

	switch req.action {
	case actHelp:
		e.notify(cmd.Room, u.ID, helpText)
		return nil
	case actEnable, actDisable:
		if !u.Role.Privileged() {
			return reject(ErrNotPrivileged, "Only moderators can turn games on or off.")
		}
		if req.action == actEnable {
			e.Enable(cmd.Room)
			e.announce(cmd.Room, "Games are now enabled in this room.")
			return nil
		}
		if err := e.Disable(ctx, cmd.Room); err != nil {
			return err
		}
		e.announce(cmd.Room, "Games are now disabled in this room.")
		return nil
	case actStart:
		return e.start(ctx, cmd.Room, u, req)
	}

	s := e.registry.Get(cmd.Room)
	if s == nil {
		if req.action == actStatus {
			e.notify(cmd.Room, u.ID, "No game in progress. Type start to begin.")
			return nil
		}
		return noSession()
	}
	return s.call(ctx, func() error { return s.handle(u, req) })
}

func (e *Engine) start(ctx context.Context, room string, u User, req request) error {
	if !e.Enabled(room) {
		return reject(ErrDisabled, "Games are disabled in this room.")
	}

	var stake int64
	if req.variant == Elimination {
		stake = e.cfg.DefaultStake
		if req.hasStake {
			stake = req.stake
		}
		if stake < e.cfg.MinStake || stake > e.cfg.MaxStake {
			return reject(ErrStakeOutOfRange, "Stake must be between %d and %d credits.", e.cfg.MinStake, e.cfg.MaxStake)
		}
	}

	s, err := e.registry.Create(room, req.variant, u, stake)
	if err != nil {
		return err
	}
	if req.variant == Elimination {
		return s.call(ctx, func() error { return s.join(u) })
	}
	return nil
}

// Disconnect reports that userID left room
func (e *Engine) Disconnect(ctx context.Context, room, userID string) error {
	s := e.registry.Get(room)
	if s == nil {
		return nil
	}
	err := s.call(ctx, func() error {
		s.disconnect(userID)
		return nil
	})
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	return err
}

// Enabled reports whether new games may start in room
func (e *Engine) Enabled(room string) bool {
	e.roomsMu.RLock()
	defer e.roomsMu.RUnlock()
	if on, ok := e.enabled[room]; ok {
		return on
	}
	return e.cfg.EnabledByDefault
}

// Enable allows games in room
func (e *Engine) Enable(room string) {
	e.roomsMu.Lock()
	e.enabled[room] = true
	e.roomsMu.Unlock()
	e.logger.Info().Str("room", room).Msg("Games enabled")
}

// Disable stops games in room, cancelling and refunding any live session
func (e *Engine) Disable(ctx context.Context, room string) error {
	e.roomsMu.Lock()
	e.enabled[room] = false
	e.roomsMu.Unlock()
	e.logger.Info().Str("room", room).Msg("Games disabled")

	s := e.registry.Get(room)
	if s == nil {
		return nil
	}
	err := s.call(ctx, func() error {
		s.cancel("Games were disabled in this room.")
		return nil
	})
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	return err
}

// Sessions returns a snapshot of every live session
func (e *Engine) Sessions() []SessionSummary {
	live := e.registry.All()
	out := make([]SessionSummary, 0, len(live))
	for _, s := range live {
		out = append(out, s.Summary())
	}
	return out
}

// Close cancels every live session, refunding confirmed stakes, and waits
// for their actors and any background logging to finish. No new games can
// start afterwards.
func (e *Engine) Close(ctx context.Context) error {
	sessions := e.registry.close()
	e.logger.Info().Int("sessions", len(sessions)).Msg("Closing engine")

	for _, s := range sessions {
		err := s.call(ctx, func() error {
			s.cancel("The game server is shutting down.")
			return nil
		})
		if err != nil && !errors.Is(err, ErrNoSession) {
			return err
		}
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	idle := make(chan struct{})
	go func() {
		e.background.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) notify(room, userID, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.LedgerTimeout)
	defer cancel()
	msg := Message{Sender: e.cfg.BotName, Content: content}
	if err := e.transport.Notify(ctx, room, userID, msg); err != nil {
		e.logger.Warn().Err(err).Str("room", room).Str("user_id", userID).Msg("Failed to deliver notice")
	}
}

func (e *Engine) announce(room, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.LedgerTimeout)
	defer cancel()
	msg := Message{Sender: e.cfg.BotName, Content: content}
	if err := e.transport.Broadcast(ctx, room, msg); err != nil {
		e.logger.Warn().Err(err).Str("room", room).Msg("Failed to broadcast message")
	}
}

// logTransaction writes tx to the ledger's log without blocking the caller
func (e *Engine) logTransaction(tx ledger.Transaction) {
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.LedgerTimeout)
		defer cancel()
		if err := e.ledger.LogTransaction(ctx, tx); err != nil {
			e.logger.Warn().
				Err(err).
				Str("user_id", tx.UserID).
				Str("kind", string(tx.Kind)).
				Msg("Failed to log transaction")
		}
	}()
}

func (e *Engine) recordResult(logger zerolog.Logger, result GameResult) {
	if e.recorder == nil {
		return
	}
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.LedgerTimeout)
		defer cancel()
		if err := e.recorder.RecordGameResult(ctx, result); err != nil {
			logger.Warn().Err(err).Msg("Failed to record game result")
		}
	}()
}
