// Package redis owns the change-notification subscription. One notifier
// holds one pub/sub connection; connection errors, unexpected closes and
// heartbeat failures all funnel into a single scheduled reconnect with a
// fixed delay. Retries are unbounded: no backoff ceiling, no max-attempt
// cutoff. This is a known limitation, not a blocker.
package redis

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/types"
)

// State is the notifier lifecycle. Stopped is terminal.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateListening
	StateReconnectScheduled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateReconnectScheduled:
		return "reconnect_scheduled"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var channelPattern = regexp.MustCompile(`^[A-Za-z0-9:._-]+$`)

// NewRedisClient builds the shared redis client from an address.
func NewRedisClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
}

// ChangeNotifier subscribes to the change-notification channel and invokes
// onChange for every payload that validates. Malformed payloads and messages
// from other channels are discarded silently.
type ChangeNotifier struct {
	log            *logger.Logger
	rdb            *goredis.Client
	channel        string
	reconnectDelay time.Duration
	heartbeatEvery time.Duration
	onChange       func(types.ChangePayload)

	mu             sync.Mutex
	state          State
	started        bool
	sub            *goredis.PubSub
	reconnectTimer *time.Timer
	ctx            context.Context
	cancel         context.CancelFunc
}

func NewChangeNotifier(rdb *goredis.Client, channel string, reconnectDelay, heartbeatEvery time.Duration, onChange func(types.ChangePayload), baseLog *logger.Logger) (*ChangeNotifier, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if !channelPattern.MatchString(channel) {
		return nil, fmt.Errorf("invalid channel name %q", channel)
	}
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback required")
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if heartbeatEvery <= 0 {
		heartbeatEvery = 30 * time.Second
	}
	return &ChangeNotifier{
		log:            baseLog.With("service", "ChangeNotifier", "channel", channel),
		rdb:            rdb,
		channel:        channel,
		reconnectDelay: reconnectDelay,
		heartbeatEvery: heartbeatEvery,
		onChange:       onChange,
		state:          StateDisconnected,
	}, nil
}

// State reports the current lifecycle state.
func (n *ChangeNotifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Start begins listening. It is idempotent; calling it on a stopped
// notifier is an error.
func (n *ChangeNotifier) Start() error {
	n.mu.Lock()
	if n.state == StateStopped {
		n.mu.Unlock()
		return fmt.Errorf("change notifier is stopped")
	}
	if n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = true
	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.mu.Unlock()

	go n.heartbeatLoop()
	n.connect()
	return nil
}

// Stop unsubscribes, closes the connection, cancels any pending reconnect
// and the heartbeat. Terminal.
func (n *ChangeNotifier) Stop() {
	n.mu.Lock()
	if n.state == StateStopped {
		n.mu.Unlock()
		return
	}
	n.state = StateStopped
	if n.cancel != nil {
		n.cancel()
	}
	if n.reconnectTimer != nil {
		n.reconnectTimer.Stop()
		n.reconnectTimer = nil
	}
	sub := n.sub
	n.sub = nil
	n.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	n.log.Info("Change notifier stopped")
}

func (n *ChangeNotifier) connect() {
	n.mu.Lock()
	if n.state == StateStopped {
		n.mu.Unlock()
		return
	}
	n.state = StateConnecting
	ctx := n.ctx
	n.mu.Unlock()

	sub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		n.log.Warn("Subscribe failed, scheduling reconnect", "error", err)
		n.scheduleReconnect()
		return
	}

	n.mu.Lock()
	if n.state == StateStopped {
		n.mu.Unlock()
		_ = sub.Close()
		return
	}
	n.sub = sub
	n.state = StateListening
	n.mu.Unlock()

	n.log.Info("Listening for change notifications")
	go n.readLoop(sub)
}

func (n *ChangeNotifier) readLoop(sub *goredis.PubSub) {
	for m := range sub.Channel() {
		if m.Channel != n.channel {
			continue
		}
		payload, err := types.ParseChangePayload([]byte(m.Payload))
		if err != nil {
			n.log.Debug("Discarding malformed change payload", "error", err)
			continue
		}
		n.onChange(payload)
	}

	// Channel closed: either an explicit stop or a dropped connection.
	n.mu.Lock()
	stopped := n.state == StateStopped
	n.mu.Unlock()
	if stopped {
		return
	}
	n.log.Warn("Subscription closed unexpectedly, scheduling reconnect")
	n.scheduleReconnect()
}

// scheduleReconnect arranges exactly one reconnect after the fixed delay.
// Triggers arriving while one is already pending are no-ops.
func (n *ChangeNotifier) scheduleReconnect() {
	n.mu.Lock()
	if n.state == StateStopped || n.state == StateReconnectScheduled {
		n.mu.Unlock()
		return
	}
	sub := n.sub
	n.sub = nil
	n.state = StateReconnectScheduled
	n.reconnectTimer = time.AfterFunc(n.reconnectDelay, func() {
		n.mu.Lock()
		if n.state == StateStopped {
			n.mu.Unlock()
			return
		}
		n.state = StateDisconnected
		n.mu.Unlock()
		n.connect()
	})
	n.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
}

// heartbeatLoop issues a trivial query at a fixed interval while listening;
// a failure takes the same reconnect path as a dropped connection.
func (n *ChangeNotifier) heartbeatLoop() {
	ticker := time.NewTicker(n.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if n.State() != StateListening {
				continue
			}
			if err := n.rdb.Ping(n.ctx).Err(); err != nil {
				n.log.Warn("Heartbeat failed, scheduling reconnect", "error", err)
				n.scheduleReconnect()
			}
		}
	}
}

// PublishChange sends a change notification. Used by operational triggers
// and tests; the production publisher is the database trigger path.
func PublishChange(ctx context.Context, rdb *goredis.Client, channel string, p types.ChangePayload) error {
	if !channelPattern.MatchString(channel) {
		return fmt.Errorf("invalid channel name %q", channel)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, channel, raw).Err()
}
