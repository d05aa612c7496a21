// Package connector implements the dynamic connector (§4.2): per-request
// module-chain assembly, execution, and guaranteed teardown.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/routecodex/routecodex/internal/corex"
	"github.com/routecodex/routecodex/internal/pool"
	"github.com/routecodex/routecodex/internal/route"
)

// Connection is the transient object pairing two consecutive module
// instances in a chain. Creating one allocates no new module instances and
// does O(1) work; a Transform hook lets adjacent modules agree on a
// lightweight adaptation between hops without either module knowing about
// the other.
type Connection struct {
	ID        string
	fromIndex int
	Transform func(ctx context.Context, payload *corex.Payload) (*corex.Payload, error)
	broken    bool
}

// Break tears a connection down. Safe to call more than once.
func (c *Connection) Break() {
	c.broken = true
}

// Chain is the transient per-request object holding a borrowed, non-owning
// reference sequence of module instances from the pool, plus its
// connections. Its lifetime is at most one request.
type Chain struct {
	RequestID   string
	specs       []pool.ModuleSpec
	instances   []pool.Module
	connections []*Connection
	torn        bool
}

// Connector assembles, executes, and tears down chains for each request. It
// holds no per-request state itself — everything mutable lives on the Chain
// it hands back from Assemble.
type Connector struct {
	pool   *pool.Pool
	logger *slog.Logger
}

// New constructs a Connector bound to a pool.
func New(p *pool.Pool, logger *slog.Logger) *Connector {
	return &Connector{pool: p, logger: logger}
}

// StageError wraps any chain-stage failure with full positional context
// (§4.2 "Error surface").
type StageError struct {
	ConnectionID  string
	Position      int
	ModuleType    pool.ModuleType
	ModuleID      string
	OriginalError error
	Timestamp     time.Time
}

func (e *StageError) Error() string {
	return fmt.Sprintf("chain stage %d (%s/%s): %v", e.Position, e.ModuleType, e.ModuleID, e.OriginalError)
}

func (e *StageError) Unwrap() error {
	return e.OriginalError
}

// Assemble resolves every module spec in the route to a pooled instance,
// evaluating any declared per-module condition against the request facts
// first. All fetches succeed or the whole chain fails — there is no partial
// construction (§4.2 step 2).
func (c *Connector) Assemble(ctx context.Context, requestID string, def *route.Definition, facts map[string]any) (*Chain, error) {
	instances := make([]pool.Module, 0, len(def.Modules))

	for _, spec := range def.Modules {
		if spec.Condition != nil && !spec.Condition.Match(facts) {
			return nil, corex.New(corex.KindRouting, "condition_failed",
				"module condition did not match the request").
				WithDetails(map[string]any{"routeId": def.ID}).
				WithRequestID(requestID)
		}

		instance, err := c.pool.Get(spec.Type, spec.Config)
		if err != nil {
			return nil, err
		}

		health, err := c.pool.Health(spec.Type, spec.Config)
		if err != nil {
			return nil, err
		}

		if health == pool.HealthFailed {
			return nil, corex.New(corex.KindInstance, "instance_failed",
				fmt.Sprintf("instance %s is failed and cannot be used", instance.ID())).
				WithRequestID(requestID)
		}

		instances = append(instances, instance)
	}

	chain := &Chain{
		RequestID: requestID,
		specs:     def.Modules,
		instances: instances,
	}

	c.connect(chain)

	return chain, nil
}

// connect creates a transient connection object between every pair of
// consecutive instances. Connection creation is O(n) and never touches the
// pool.
func (c *Connector) connect(chain *Chain) {
	for i := 0; i < len(chain.instances)-1; i++ {
		chain.connections = append(chain.connections, &Connection{
			ID:        corex.NewConnectionID(),
			fromIndex: i,
		})
	}
}

// Execute walks the chain front-to-back, passing the payload through each
// instance's processing operation and then through the following
// connection's transform, if any.
func (c *Connector) Execute(ctx context.Context, chain *Chain, payload *corex.Payload) (*corex.Payload, error) {
	current := payload

	for i, instance := range chain.instances {
		out, err := instance.ProcessIncoming(ctx, current)
		if err != nil {
			c.pool.RecordFailure(chain.specs[i].Type, chain.specs[i].Config, false)

			return nil, &StageError{
				ConnectionID:  connectionIDAt(chain, i),
				Position:      i,
				ModuleType:    instance.Type(),
				ModuleID:      instance.ID(),
				OriginalError: err,
				Timestamp:     time.Now(),
			}
		}

		c.pool.RecordSuccess(chain.specs[i].Type, chain.specs[i].Config)

		if validator, ok := instance.(pool.Validator); ok {
			if err := validator.ValidateOutput(out); err != nil {
				return nil, &StageError{
					ConnectionID:  connectionIDAt(chain, i),
					Position:      i,
					ModuleType:    instance.Type(),
					ModuleID:      instance.ID(),
					OriginalError: err,
					Timestamp:     time.Now(),
				}
			}
		}

		current = out

		if i < len(chain.connections) {
			conn := chain.connections[i]
			if conn.Transform != nil {
				transformed, err := conn.Transform(ctx, current)
				if err != nil {
					return nil, &StageError{
						ConnectionID:  conn.ID,
						Position:      i,
						ModuleType:    instance.Type(),
						ModuleID:      instance.ID(),
						OriginalError: err,
						Timestamp:     time.Now(),
					}
				}

				current = transformed
			}
		}
	}

	return current, nil
}

func connectionIDAt(chain *Chain, index int) string {
	if index < len(chain.connections) {
		return chain.connections[index].ID
	}

	return ""
}

// Teardown breaks every connection in reverse order. It must run exactly
// once per assembled chain, on both success and failure paths; pooled
// instances are never touched — only the transient connection objects are
// torn down.
func (c *Connector) Teardown(chain *Chain) {
	if chain.torn {
		return
	}

	chain.torn = true

	for i := len(chain.connections) - 1; i >= 0; i-- {
		chain.connections[i].Break()
	}
}

// Handle runs the full Assemble → Execute → Teardown algorithm described in
// §4.2 for a single request, guaranteeing teardown runs exactly once
// regardless of outcome.
func (c *Connector) Handle(ctx context.Context, requestID string, def *route.Definition, facts map[string]any, payload *corex.Payload) (*corex.Payload, error) {
	chain, err := c.Assemble(ctx, requestID, def, facts)
	if err != nil {
		return nil, err
	}

	defer c.Teardown(chain)

	select {
	case <-ctx.Done():
		return nil, corex.New(corex.KindInternal, "cancelled", "request cancelled before execution").
			WithRequestID(requestID)
	default:
	}

	out, err := c.Execute(ctx, chain, payload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, corex.New(corex.KindInternal, "cancelled", "request cancelled during chain execution").
				WithRequestID(requestID)
		}

		return nil, err
	}

	return out, nil
}
