package transport

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/andr35/DS2-Project/internal/detect"
)

// Registry resolves a NodeID to its dial address. The Tracker's
// StartBundle carries the whole node list with addresses baked in at
// experiment start, matching spec.md §3's "node set is fixed per
// experiment".
type Registry interface {
	Address(id detect.NodeID) (string, bool)
}

// StaticRegistry is a fixed NodeID->address map; it is never updated
// after construction, not even on Start.
type StaticRegistry map[detect.NodeID]string

func (r StaticRegistry) Address(id detect.NodeID) (string, bool) {
	addr, ok := r[id]
	return addr, ok
}

// DynamicRegistry is replaced wholesale on every Start RPC, since each
// experiment's StartBundle carries its own Addrs snapshot (spec.md §3:
// the node set, and so its addresses, is fixed per experiment but can
// change between experiments).
type DynamicRegistry struct {
	mu    sync.RWMutex
	addrs map[detect.NodeID]string
}

// NewDynamicRegistry returns an empty registry, ready for its first Update.
func NewDynamicRegistry() *DynamicRegistry {
	return &DynamicRegistry{}
}

// Update replaces the current address map wholesale.
func (r *DynamicRegistry) Update(addrs map[detect.NodeID]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs = addrs
}

func (r *DynamicRegistry) Address(id detect.NodeID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.addrs[id]
	return addr, ok
}

// NodeClient dials peer nodes and the Tracker over net/rpc, implementing
// detect.Transport. Every send is fire-and-forget: a dial or call failure
// is returned to the caller to log, never retried here (spec.md §5).
type NodeClient struct {
	logger      *zap.Logger
	registry    Registry
	trackerAddr string
	self        detect.NodeID

	pool dialPool
}

// NewNodeClient creates a client for node self, resolving peers through
// registry and the Tracker at trackerAddr.
func NewNodeClient(self detect.NodeID, registry Registry, trackerAddr string, logger *zap.Logger) *NodeClient {
	return &NodeClient{
		logger:      logger,
		registry:    registry,
		trackerAddr: trackerAddr,
		self:        self,
		pool:        newDialPool(),
	}
}

func (c *NodeClient) callNode(to detect.NodeID, method string, args any) error {
	addr, ok := c.registry.Address(to)
	if !ok {
		return fmt.Errorf("transport: no known address for node %s", to)
	}
	cl, err := c.pool.dial(addr)
	if err != nil {
		return err
	}
	var ack Ack
	if err := cl.Call(fmt.Sprintf("%s.%s", NodeServiceName, method), args, &ack); err != nil {
		c.pool.invalidate(addr)
		return err
	}
	return nil
}

func (c *NodeClient) callTracker(method string, args any) error {
	cl, err := c.pool.dial(c.trackerAddr)
	if err != nil {
		return err
	}
	var ack Ack
	if err := cl.Call(fmt.Sprintf("%s.%s", TrackerServiceName, method), args, &ack); err != nil {
		c.pool.invalidate(c.trackerAddr)
		return err
	}
	return nil
}

func (c *NodeClient) SendGossip(_ context.Context, to detect.NodeID, msg detect.Gossip) error {
	return c.callNode(to, "Gossip", &msg)
}

func (c *NodeClient) SendGossipReply(_ context.Context, to detect.NodeID, msg detect.GossipReply) error {
	return c.callNode(to, "GossipReply", &msg)
}

func (c *NodeClient) SendCatastropheMulticast(_ context.Context, to detect.NodeID, msg detect.CatastropheMulticast) error {
	return c.callNode(to, "CatastropheMulticast", &msg)
}

func (c *NodeClient) SendCatastropheReply(_ context.Context, to detect.NodeID, msg detect.CatastropheReply) error {
	return c.callNode(to, "CatastropheReply", &msg)
}

func (c *NodeClient) ReportCrash(_ context.Context, peer detect.NodeID) error {
	return c.callTracker("CrashReport", &CrashReportArgs{Peer: peer, Reporter: c.self})
}

func (c *NodeClient) ReportSelfCrash(_ context.Context) error {
	return c.callTracker("Crash", &CrashArgs{Node: c.self})
}

// Register announces self to the Tracker at addr, used once at node
// startup before any experiment begins.
func (c *NodeClient) Register(selfAddr string) error {
	return c.callTracker("Registration", &RegistrationArgs{Node: c.self, Addr: selfAddr})
}

// TrackerClient is the Tracker's outbound RPC surface: broadcasting
// Start/Stop/Shutdown to every registered node.
type TrackerClient struct {
	logger *zap.Logger
	pool   dialPool
}

func NewTrackerClient(logger *zap.Logger) *TrackerClient {
	return &TrackerClient{logger: logger, pool: newDialPool()}
}

func (c *TrackerClient) call(addr, method string, args any) error {
	cl, err := c.pool.dial(addr)
	if err != nil {
		return err
	}
	var ack Ack
	if err := cl.Call(fmt.Sprintf("%s.%s", NodeServiceName, method), args, &ack); err != nil {
		c.pool.invalidate(addr)
		return err
	}
	return nil
}

func (c *TrackerClient) SendStart(addr string, bundle detect.StartBundle) error {
	return c.call(addr, "Start", &detect.Start{Bundle: bundle})
}

func (c *TrackerClient) SendStop(addr string) error {
	return c.call(addr, "Stop", &detect.Stop{})
}

func (c *TrackerClient) SendShutdown(addr string) error {
	return c.call(addr, "Shutdown", &detect.Shutdown{})
}
