// Package broker defines the contract for a thin, reconnecting connection to
// the shared queue substrate the messaging core is built on: commands for
// key/value, hashes, sets, lists (including blocking pop), pub/sub, and a
// transactional multi-exec.
package broker

import "context"

// ConnectionObserver receives the three lifecycle callbacks that propagate
// from a Client down through the Memory Cache, every Message Handler, and
// finally every registered Message Observer.
type ConnectionObserver interface {
	OnConnectionRecovered(identifier string)
	OnConnectionDisrupted(identifier string)
	OnConnectionLost(identifier string)
}

// Subscription is returned by SubscribeCommand; callers Close it to stop
// receiving messages on the channel.
type Subscription interface {
	Channel() <-chan string
	Close() error
}

// Client is the Broker Client contract. Exactly one handler may be attached
// per pub/sub channel on a given Client.
type Client interface {
	// Initialize opens the connection and resolves once the server is ready,
	// fetching its module list for JSON feature detection. Server info is
	// not fetched.
	Initialize(ctx context.Context) error

	// ExecuteCommands runs cmds as a transactional multi-exec, returning the
	// per-command results in order.
	ExecuteCommands(ctx context.Context, cmds ...Command) ([]any, error)

	// BlockingCommand reserves the connection until the server replies or ctx
	// is canceled. Used for the blocking dequeue in the Receiver.
	BlockingCommand(ctx context.Context, cmd Command) (any, error)

	PublishCommand(ctx context.Context, channel string, payload string) error
	SubscribeCommand(ctx context.Context, channel string) (Subscription, error)
	UnsubscribeCommand(ctx context.Context, channel string) error

	// CallCommand is the escape hatch for commands not otherwise wrapped.
	CallCommand(ctx context.Context, args ...any) (any, error)

	// IsJSONSupported reports whether the server's module list advertises
	// ReJSON or ReJSON2.
	IsJSONSupported() bool

	// AddConnectionObserver registers a lifecycle observer.
	AddConnectionObserver(o ConnectionObserver)

	// ShutDown attempts a graceful quit, falling back to a hard disconnect
	// after timeout. It never returns an error a caller needs to handle.
	ShutDown(timeout context.Context) error

	Identifier() string
}

// Command is a single broker operation, named the way the underlying
// commands are (GET, SET, LPUSH, BRPOP, SADD, SISMEMBER, ...).
type Command struct {
	Name string
	Args []any
}

func NewCommand(name string, args ...any) Command {
	return Command{Name: name, Args: args}
}
