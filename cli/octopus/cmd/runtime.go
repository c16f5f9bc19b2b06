package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/octopus-network/relay-client/allowance"
	"github.com/octopus-network/relay-client/gateway"
	"github.com/octopus-network/relay-client/keyvaluedb"
	"github.com/octopus-network/relay-client/keyvaluedb/boltdb"
	"github.com/octopus-network/relay-client/keyvaluedb/memorydb"
	"github.com/octopus-network/relay-client/observability"
	"github.com/octopus-network/relay-client/orchestrator"
	"github.com/octopus-network/relay-client/poller"
	"github.com/octopus-network/relay-client/registry"
	"github.com/octopus-network/relay-client/session"
	"github.com/octopus-network/relay-client/types"
)

type (
	/*
		Clients are the ledger facing clients of the application. When not set
		the clients are built from the node and wallet URL flags.
	*/
	Clients struct {
		Viewer    gateway.Viewer
		NewSender func(signer gateway.AccountSource) (gateway.Sender, error)
		Height    poller.HeightSource
	}

	// runtime is the wired application, created per command invocation.
	runtime struct {
		mode     types.BondMode
		db       keyvaluedb.KeyValueDB
		session  *session.Context
		relay    *gateway.Contract
		token    *gateway.Contract
		registry *registry.Reader
		gate     *allowance.Gate
		orch     *orchestrator.Orchestrator
		height   poller.HeightSource
	}
)

func (r *baseConfiguration) ledgerClients() (*Clients, error) {
	if r.clients != nil {
		return r.clients, nil
	}
	var opts []gateway.NodeClientOption
	if r.RateLimit > 0 {
		opts = append(opts, gateway.WithRateLimit(r.RateLimit, max(1, int(r.RateLimit))))
	}
	node, err := gateway.NewNodeClient(r.NodeURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating node client: %w", err)
	}
	c := &Clients{Viewer: node, Height: node}
	if r.WalletURL != "" {
		walletURL := r.WalletURL
		c.NewSender = func(signer gateway.AccountSource) (gateway.Sender, error) {
			return gateway.NewWalletClient(walletURL, signer)
		}
	}
	return c, nil
}

/*
newRuntime wires the session, the contract gateways, the registry reader and
the action orchestrator. Caller must call close when done.
*/
func (r *baseConfiguration) newRuntime() (*runtime, error) {
	if err := os.MkdirAll(r.HomeDir, 0700); err != nil {
		return nil, fmt.Errorf("creating home directory: %w", err)
	}
	db, err := boltdb.New(r.sessionDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	return r.newRuntimeWithStore(db)
}

/*
newReadOnlyRuntime is like newRuntime but the session is not loaded from (nor
stored into) the session database of the home directory, so the database
is not locked by long running commands.
*/
func (r *baseConfiguration) newReadOnlyRuntime() (*runtime, error) {
	return r.newRuntimeWithStore(memorydb.New())
}

func (r *baseConfiguration) newRuntimeWithStore(db keyvaluedb.KeyValueDB) (_ *runtime, err error) {
	rt := &runtime{db: db}
	defer func() {
		if err != nil {
			err = errors.Join(err, rt.close())
		}
	}()

	if rt.mode, err = r.bondMode(); err != nil {
		return nil, err
	}
	mode := rt.mode
	clients, err := r.ledgerClients()
	if err != nil {
		return nil, err
	}
	rt.height = clients.Height

	if rt.session, err = session.New(db); err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var sender gateway.Sender
	if clients.NewSender != nil {
		if sender, err = clients.NewSender(rt.session); err != nil {
			return nil, fmt.Errorf("creating wallet client: %w", err)
		}
	}

	gwOpts := []gateway.Option{
		gateway.WithLogger(r.log),
		gateway.WithMeter(r.observe.Meter(observability.ScopeGateway)),
	}
	if rt.relay, err = gateway.NewContract(types.AccountID(r.RelayContract), clients.Viewer, sender, gwOpts...); err != nil {
		return nil, fmt.Errorf("creating relay contract gateway: %w", err)
	}

	var regOpts []registry.Option
	if r.PageSize > 0 {
		regOpts = append(regOpts, registry.WithPageSize(r.PageSize))
	}
	var orchOpts []orchestrator.Option
	if mode == types.BondModeToken {
		if rt.token, err = gateway.NewContract(types.AccountID(r.TokenContract), clients.Viewer, sender, gwOpts...); err != nil {
			return nil, fmt.Errorf("creating token contract gateway: %w", err)
		}
		if rt.gate, err = allowance.NewGate(rt.token, rt.relay.ID(), r.log); err != nil {
			return nil, fmt.Errorf("creating allowance gate: %w", err)
		}
		regOpts = append(regOpts, registry.WithTokenContract(rt.token))
		orchOpts = append(orchOpts, orchestrator.WithAllowanceGate(rt.gate))
	}

	if rt.registry, err = registry.NewReader(rt.relay, mode, r.log, regOpts...); err != nil {
		return nil, fmt.Errorf("creating registry reader: %w", err)
	}
	if rt.orch, err = orchestrator.New(rt.relay, mode, rt.session, rt.registry, r.log, orchOpts...); err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	return rt, nil
}

func (rt *runtime) close() error {
	if err := rt.db.Close(); err != nil {
		return fmt.Errorf("closing session database: %w", err)
	}
	return nil
}

// newPoller creates block height poller using the runtime height source.
func (r *baseConfiguration) newPoller(rt *runtime, opts ...poller.Option) (*poller.Poller, error) {
	if rt.height == nil {
		return nil, errors.New("block height source is not configured")
	}
	opts = append([]poller.Option{poller.WithMeter(r.observe.Meter(observability.ScopePoller))}, opts...)
	return poller.New(rt.height, r.log, opts...)
}
