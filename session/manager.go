// Package session owns client sessions: one relay, one model session and
// one desktop toolset per connected client.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/room4-2/livedesk/config"
	"github.com/room4-2/livedesk/desktop"
	"github.com/room4-2/livedesk/gemini"
	"github.com/room4-2/livedesk/relay"
	"github.com/room4-2/livedesk/screen"
)

var (
	// ErrMaxSessions is returned when the session table is full
	ErrMaxSessions = errors.New("maximum sessions reached")
	// ErrIDExhausted is returned when every suffixed variant of an id is taken
	ErrIDExhausted = errors.New("no free session id")
)

const (
	maxIDSuffix     = 100
	activeSetKey    = "active_sessions"
	cleanupInterval = time.Minute
)

// Connector opens model sessions
type Connector interface {
	Connect(ctx context.Context, opts gemini.ConnectOptions) (Model, error)
}

// ConnectorFunc adapts a function to Connector
type ConnectorFunc func(ctx context.Context, opts gemini.ConnectOptions) (Model, error)

func (f ConnectorFunc) Connect(ctx context.Context, opts gemini.ConnectOptions) (Model, error) {
	return f(ctx, opts)
}

// GeminiConnector connects through a gemini client
func GeminiConnector(client *gemini.Client) Connector {
	return ConnectorFunc(func(ctx context.Context, opts gemini.ConnectOptions) (Model, error) {
		proxy, err := client.Connect(ctx, opts)
		if err != nil {
			return nil, err
		}
		return proxy, nil
	})
}

// ToolsetFactory builds a fresh toolset for each session
type ToolsetFactory func() *desktop.Toolset

// Manager manages all client sessions
type Manager struct {
	sessions map[string]*ClientSession
	// ids claimed by sessions still connecting
	reserved map[string]struct{}
	mu       sync.RWMutex

	redis     *redis.Client
	config    *config.Config
	connector Connector
	toolsets  ToolsetFactory
	prompt    string
	logger    *zap.Logger
}

// NewManager creates a session manager. Redis is optional: when REDIS_URL is
// empty or unreachable the manager runs on its in-memory table alone.
func NewManager(cfg *config.Config, connector Connector, toolsets ToolsetFactory, logger *zap.Logger) (*Manager, error) {
	if connector == nil || toolsets == nil {
		return nil, fmt.Errorf("session manager needs a connector and a toolset factory")
	}
	logger = logger.Named("session")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       0,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, continuing without it", zap.String("addr", cfg.RedisURL), zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		}
	}

	return &Manager{
		sessions:  make(map[string]*ClientSession),
		reserved:  make(map[string]struct{}),
		redis:     redisClient,
		config:    cfg,
		connector: connector,
		toolsets:  toolsets,
		prompt:    DefaultSystemPrompt,
		logger:    logger,
	}, nil
}

// SetSystemPrompt replaces the instruction sent to new model sessions
func (sm *Manager) SetSystemPrompt(prompt string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.prompt = prompt
}

// CreateSession claims an id, connects the model session and wires the
// relay. requestedID may be empty; a taken id gets a numeric suffix.
func (sm *Manager) CreateSession(ctx context.Context, requestedID string, audio bool, transport relay.Transport, opts ...Option) (*ClientSession, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	id, prompt, err := sm.reserve(ctx, requestedID)
	if err != nil {
		return nil, err
	}

	session, err := sm.open(ctx, id, audio, prompt, transport, o)
	if err != nil {
		sm.release(id)
		sm.forgetRemote(ctx, id)
		return nil, err
	}

	sm.mu.Lock()
	delete(sm.reserved, id)
	sm.sessions[id] = session
	sm.mu.Unlock()

	sm.storeRemote(ctx, session)
	return session, nil
}

// reserve finds a free id: the requested one, else requested-1, -2 and so
// on. Each candidate is reserved locally first; the Redis claim runs
// without holding sm.mu.
func (sm *Manager) reserve(ctx context.Context, requestedID string) (string, string, error) {
	base := requestedID
	if base == "" {
		base = uuid.New().String()
	}

	for i := 0; i <= maxIDSuffix; i++ {
		id := base
		if i > 0 {
			id = fmt.Sprintf("%s-%d", base, i)
		}
		prompt, ok, err := sm.reserveLocal(id)
		if err != nil {
			return "", "", err
		}
		if !ok {
			continue
		}
		if sm.claimRemote(ctx, id) {
			return id, prompt, nil
		}
		sm.release(id)
	}
	return "", "", fmt.Errorf("%w: %s", ErrIDExhausted, base)
}

func (sm *Manager) reserveLocal(id string) (string, bool, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions)+len(sm.reserved) >= sm.config.MaxSessions {
		return "", false, ErrMaxSessions
	}
	if _, taken := sm.sessions[id]; taken {
		return "", false, nil
	}
	if _, taken := sm.reserved[id]; taken {
		return "", false, nil
	}
	sm.reserved[id] = struct{}{}
	return sm.prompt, true, nil
}

func (sm *Manager) release(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.reserved, id)
}

// claimRemote reserves the id across processes sharing the same Redis
func (sm *Manager) claimRemote(ctx context.Context, id string) bool {
	if sm.redis == nil {
		return true
	}
	ok, err := sm.redis.HSetNX(ctx, sessionKey(id), "status", "connecting").Result()
	if err != nil {
		sm.logger.Warn("redis claim failed, using local id table", zap.String("session", id), zap.Error(err))
		return true
	}
	if ok {
		sm.redis.Expire(ctx, sessionKey(id), sm.config.SessionTimeout)
	}
	return ok
}

func (sm *Manager) open(ctx context.Context, id string, audio bool, prompt string, transport relay.Transport, o sessionOptions) (*ClientSession, error) {
	logger := sm.logger.With(zap.String("session", id))

	toolset := sm.toolsets()
	registry := toolset.Registry()

	model, err := sm.connector.Connect(ctx, gemini.ConnectOptions{
		Audio:        audio,
		SystemPrompt: prompt,
		Tools:        registry.Tools(),
	})
	if err != nil {
		return nil, fmt.Errorf("connect model session: %w", err)
	}
	toolset.Attach(model)

	relayOpts := []relay.Option{
		relay.WithLogger(logger),
		relay.WithSettleDelay(sm.config.SettleDelay, sm.config.SettleTools...),
	}
	var upstream relay.ModelSession = model
	if o.turnShots {
		shots := &shotModel{Model: model, shooter: toolset.Capturer(), logger: logger}
		upstream = shots
		relayOpts = append(relayOpts, relay.WithToolRoundHook(shots.afterTools))
	}

	session := newClientSession(id, audio, transport, model, logger)
	session.relay = relay.New(session.transport, upstream, registry, relayOpts...)
	if interval := sm.config.Screen.Interval; interval > 0 {
		session.streamer = screen.NewStreamer(toolset.Capturer(), videoSink(model), interval, logger)
	}
	return session, nil
}

// videoSink sends frames as realtime video; a closed model session ends the
// stream quietly
func videoSink(model Model) screen.FrameSink {
	return func(ctx context.Context, jpeg []byte) error {
		err := model.SendVideoFrame(ctx, jpeg)
		if errors.Is(err, gemini.ErrClosed) {
			return fmt.Errorf("%w: %w", screen.ErrSinkClosed, err)
		}
		return err
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

// storeRemote mirrors a session to Redis
func (sm *Manager) storeRemote(ctx context.Context, session *ClientSession) {
	if sm.redis == nil {
		return
	}
	sm.redis.HSet(ctx, sessionKey(session.ID), map[string]interface{}{
		"created_at":    session.CreatedAt.Format(time.RFC3339),
		"last_activity": session.LastActivity().Format(time.RFC3339),
		"status":        "active",
		"audio":         session.AudioEnabled,
	})
	sm.redis.SAdd(ctx, activeSetKey, session.ID)
	sm.redis.Expire(ctx, sessionKey(session.ID), sm.config.SessionTimeout)
}

func (sm *Manager) forgetRemote(ctx context.Context, sessionID string) {
	if sm.redis == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	sm.redis.Del(ctx, sessionKey(sessionID))
	sm.redis.SRem(ctx, activeSetKey, sessionID)
}

// Serve runs the session and removes it once it ends
func (sm *Manager) Serve(ctx context.Context, session *ClientSession) error {
	defer sm.RemoveSession(context.Background(), session.ID)
	return session.Run(ctx)
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*ClientSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// RemoveSession cleans up and removes a session
func (sm *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	if exists {
		delete(sm.sessions, sessionID)
	}
	sm.mu.Unlock()

	if exists {
		sm.forgetRemote(ctx, sessionID)
		session.Close()
	}
	return nil
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions closes sessions idle longer than the session
// timeout and refreshes the Redis expiry of the rest.
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) int {
	now := time.Now()
	var idle, live []*ClientSession

	sm.mu.Lock()
	for id, session := range sm.sessions {
		if now.Sub(session.LastActivity()) > sm.config.SessionTimeout {
			idle = append(idle, session)
			delete(sm.sessions, id)
			continue
		}
		live = append(live, session)
	}
	sm.mu.Unlock()

	for _, session := range idle {
		sm.logger.Info("closing inactive session", zap.String("session", session.ID),
			zap.Time("last_activity", session.LastActivity()))
		sm.forgetRemote(ctx, session.ID)
		session.Close()
	}
	if sm.redis != nil {
		for _, session := range live {
			sm.redis.HSet(ctx, sessionKey(session.ID), "last_activity", session.LastActivity().Format(time.RFC3339))
			sm.redis.Expire(ctx, sessionKey(session.ID), sm.config.SessionTimeout)
		}
	}
	return len(idle)
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions
func (sm *Manager) Shutdown() {
	sm.mu.Lock()
	sessions := make([]*ClientSession, 0, len(sm.sessions))
	for id, session := range sm.sessions {
		sessions = append(sessions, session)
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()

	for _, session := range sessions {
		sm.forgetRemote(context.Background(), session.ID)
		session.Close()
	}
	sm.logger.Info("all sessions closed", zap.Int("count", len(sessions)))

	if sm.redis != nil {
		_ = sm.redis.Close()
	}
}
