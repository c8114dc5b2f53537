// Package redis implements the Broker Client contract against a Redis (or
// Redis-protocol-compatible) server using github.com/redis/go-redis/v9.
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chris-alexander-pop/ti-engine/pkg/broker"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
	"github.com/chris-alexander-pop/ti-engine/pkg/logger"
	"github.com/chris-alexander-pop/ti-engine/pkg/servicemesh/circuitbreaker"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const healthCheckInterval = 5 * time.Second

// Adapter is the redis-backed broker.Client.
type Adapter struct {
	cfg        broker.Config
	identifier string

	mu            sync.RWMutex
	client        *redis.Client
	jsonSupported bool
	observers     []broker.ConnectionObserver
	subs          map[string]*redis.PubSub

	// reconnect guards handleDisruption: once it trips open the adapter stops
	// hammering a dead broker with reconnect attempts every health-check tick
	// and goes straight to notifyLost until the open timeout elapses.
	reconnect *circuitbreaker.CircuitBreaker

	stopHealthCheck chan struct{}
	wg              sync.WaitGroup
}

// New constructs an Adapter. Call Initialize before using it.
func New(cfg broker.Config) *Adapter {
	identifier := uuid.NewString()
	return &Adapter{
		cfg:        cfg,
		identifier: identifier,
		subs:       make(map[string]*redis.PubSub),
		reconnect: circuitbreaker.New("broker-reconnect:"+identifier, circuitbreaker.Options{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			Timeout:          healthCheckInterval * 2,
		}),
	}
}

func (a *Adapter) Identifier() string { return a.identifier }

func (a *Adapter) Initialize(ctx context.Context) error {
	client, err := a.connectWithRetry(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.client = client
	a.mu.Unlock()

	a.jsonSupported = a.detectJSONSupport(ctx, client)
	a.notifyRecovered()

	a.stopHealthCheck = make(chan struct{})
	a.wg.Add(1)
	go a.superviseConnection()

	return nil
}

// connectWithRetry opens a connection, retrying with the linear-capped
// backoff until the server answers PING or retryMaxAttempts is exhausted.
func (a *Adapter) connectWithRetry(ctx context.Context) (*redis.Client, error) {
	attempt := 0
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", a.cfg.Host, a.cfg.Port),
			Username: a.cfg.User,
			Password: a.cfg.AuthKey,
			DB:       a.cfg.DefaultDB,
			// BlockingCommand issues BRPOP with an infinite timeout through
			// the generic Do() path, which doesn't get the typed BRPop
			// wrapper's per-command read-timeout extension. Without this,
			// go-redis's 3s default ReadTimeout fires on every idle queue.
			ReadTimeout: -1,
		})

		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		} else {
			_ = client.Close()
			logger.L().WarnContext(ctx, "broker connect attempt failed", "attempt", attempt, "error", err)
		}

		if a.cfg.RetryMaxAttempts > 0 && attempt >= a.cfg.RetryMaxAttempts {
			return nil, errors.New(errors.CodeComRetryAttemptsExceeded, "exceeded maximum connection attempts", nil)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(reconnectBackoffDuration(attempt, a.cfg.RetryMaxIntervalMs)):
		}
	}
}

func reconnectBackoffDuration(attempt int, retryMaxIntervalMs int64) time.Duration {
	step := time.Duration(attempt) * 50 * time.Millisecond
	ceiling := time.Duration(retryMaxIntervalMs) * time.Millisecond
	if ceiling > 0 && step > ceiling {
		return ceiling
	}
	return step
}

// superviseConnection polls the connection and drives the observer
// callbacks on loss and recovery. A READONLY reply (typical of a failed-over
// replica briefly serving as the stale primary) is treated the same as a
// disconnect: it forces an immediate reconnect rather than waiting out the
// health-check interval.
func (a *Adapter) superviseConnection() {
	defer a.wg.Done()
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopHealthCheck:
			return
		case <-ticker.C:
			a.mu.RLock()
			client := a.client
			a.mu.RUnlock()
			if client == nil {
				continue
			}
			if err := client.Ping(context.Background()).Err(); err == nil {
				continue
			}
			a.handleDisruption()
		}
	}
}

func (a *Adapter) handleDisruption() {
	a.notifyDisrupted()

	result, err := a.reconnect.Execute(func() (interface{}, error) {
		return a.connectWithRetry(context.Background())
	})
	if err != nil {
		logger.L().Error("broker reconnect abandoned", "error", err, "breakerState", a.reconnect.State())
		a.notifyLost()
		return
	}

	newClient := result.(*redis.Client)
	a.mu.Lock()
	old := a.client
	a.client = newClient
	a.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	a.notifyRecovered()
}

func (a *Adapter) isReadOnlyError(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "READONLY")
}

func (a *Adapter) detectJSONSupport(ctx context.Context, client *redis.Client) bool {
	res, err := client.Do(ctx, "MODULE", "LIST").Result()
	if err != nil {
		return false
	}
	modules, ok := res.([]any)
	if !ok {
		return false
	}
	for _, m := range modules {
		entry, ok := m.([]any)
		if !ok {
			continue
		}
		for i := 0; i+1 < len(entry); i += 2 {
			key, _ := entry[i].(string)
			if !strings.EqualFold(key, "name") {
				continue
			}
			name, _ := entry[i+1].(string)
			if strings.EqualFold(name, "ReJSON") || strings.EqualFold(name, "ReJSON2") {
				return true
			}
		}
	}
	return false
}

func (a *Adapter) IsJSONSupported() bool { return a.jsonSupported }

func (a *Adapter) AddConnectionObserver(o broker.ConnectionObserver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

func (a *Adapter) notifyRecovered() {
	a.mu.RLock()
	observers := append([]broker.ConnectionObserver(nil), a.observers...)
	a.mu.RUnlock()
	for _, o := range observers {
		o.OnConnectionRecovered(a.identifier)
	}
}

func (a *Adapter) notifyDisrupted() {
	a.mu.RLock()
	observers := append([]broker.ConnectionObserver(nil), a.observers...)
	a.mu.RUnlock()
	for _, o := range observers {
		o.OnConnectionDisrupted(a.identifier)
	}
}

func (a *Adapter) notifyLost() {
	a.mu.RLock()
	observers := append([]broker.ConnectionObserver(nil), a.observers...)
	a.mu.RUnlock()
	for _, o := range observers {
		o.OnConnectionLost(a.identifier)
	}
}

func buildArgs(cmd broker.Command) []any {
	args := make([]any, 0, len(cmd.Args)+1)
	args = append(args, cmd.Name)
	args = append(args, cmd.Args...)
	return args
}

func (a *Adapter) currentClient() *redis.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

func (a *Adapter) ExecuteCommands(ctx context.Context, cmds ...broker.Command) ([]any, error) {
	client := a.currentClient()
	if client == nil {
		return nil, errors.ErrSenderUnavailable()
	}

	cmders := make([]*redis.Cmd, len(cmds))
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, c := range cmds {
			cmders[i] = pipe.Do(ctx, buildArgs(c)...)
		}
		return nil
	})
	if err != nil {
		if a.isReadOnlyError(err) {
			go a.handleDisruption()
		}
		return nil, errors.Wrap(err, "broker transaction failed")
	}

	results := make([]any, len(cmds))
	for i, c := range cmders {
		results[i], _ = c.Result()
	}
	return results, nil
}

// BlockingCommand runs cmd (typically BRPOP with an infinite timeout) in its
// own goroutine and races it against ctx.Done(), since the underlying
// connection has no deadline of its own to cancel on: the goroutine is left
// to finish (or leak until the connection is torn down) once ctx wins.
func (a *Adapter) BlockingCommand(ctx context.Context, cmd broker.Command) (any, error) {
	client := a.currentClient()
	if client == nil {
		return nil, errors.ErrReceiverUnavailable()
	}

	type outcome struct {
		res any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := client.Do(context.Background(), buildArgs(cmd)...).Result()
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		if o.err != nil {
			if o.err == redis.Nil {
				return nil, nil
			}
			if a.isReadOnlyError(o.err) {
				go a.handleDisruption()
			}
			return nil, errors.Wrap(o.err, "blocking command failed")
		}
		return o.res, nil
	}
}

func (a *Adapter) CallCommand(ctx context.Context, args ...any) (any, error) {
	client := a.currentClient()
	if client == nil {
		return nil, errors.ErrSenderUnavailable()
	}
	res, err := client.Do(ctx, args...).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if a.isReadOnlyError(err) {
			go a.handleDisruption()
		}
		return nil, errors.Wrap(err, "command failed")
	}
	return res, nil
}

func (a *Adapter) PublishCommand(ctx context.Context, channel string, payload string) error {
	client := a.currentClient()
	if client == nil {
		return errors.ErrSenderUnavailable()
	}
	if err := client.Publish(ctx, channel, payload).Err(); err != nil {
		if a.isReadOnlyError(err) {
			go a.handleDisruption()
		}
		return errors.Wrap(err, "publish failed")
	}
	return nil
}

type subscription struct {
	ps  *redis.PubSub
	out chan string
}

func (s *subscription) Channel() <-chan string { return s.out }

func (s *subscription) Close() error {
	close(s.out)
	return s.ps.Close()
}

func (a *Adapter) SubscribeCommand(ctx context.Context, channel string) (broker.Subscription, error) {
	client := a.currentClient()
	if client == nil {
		return nil, errors.ErrReceiverUnavailable()
	}

	a.mu.Lock()
	if _, exists := a.subs[channel]; exists {
		a.mu.Unlock()
		return nil, errors.Conflict("channel '"+channel+"' already has a subscriber on this client", nil)
	}
	ps := client.Subscribe(ctx, channel)
	a.subs[channel] = ps
	a.mu.Unlock()

	out := make(chan string, 64)
	go func() {
		for msg := range ps.Channel() {
			out <- msg.Payload
		}
	}()

	return &subscription{ps: ps, out: out}, nil
}

func (a *Adapter) UnsubscribeCommand(ctx context.Context, channel string) error {
	a.mu.Lock()
	ps, ok := a.subs[channel]
	if ok {
		delete(a.subs, channel)
	}
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return ps.Unsubscribe(ctx, channel)
}

func (a *Adapter) ShutDown(timeout context.Context) error {
	if a.stopHealthCheck != nil {
		close(a.stopHealthCheck)
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-timeout.Done():
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for ch, ps := range a.subs {
		_ = ps.Close()
		delete(a.subs, ch)
	}
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}
