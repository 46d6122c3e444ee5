package transport

import "github.com/andr35/DS2-Project/internal/detect"

// NodeReceiver is the RPC-visible surface of a node actor. Every method
// simply hands the decoded message to the engine's inbox — all protocol
// logic lives in detect.Engine, never here. The one exception is Start,
// which also refreshes the node's peer address registry from the
// incoming bundle before the engine ever tries to dial a peer.
type NodeReceiver struct {
	engine   *detect.Engine
	registry *DynamicRegistry
}

// NewNodeReceiver wraps engine for RPC registration under NodeServiceName.
// registry is updated from each Start's bundle; pass nil if the caller
// resolves peer addresses some other way.
func NewNodeReceiver(engine *detect.Engine, registry *DynamicRegistry) *NodeReceiver {
	return &NodeReceiver{engine: engine, registry: registry}
}

func (r *NodeReceiver) Gossip(req *detect.Gossip, _ *Ack) error {
	r.engine.Dispatch(*req)
	return nil
}

func (r *NodeReceiver) GossipReply(req *detect.GossipReply, _ *Ack) error {
	r.engine.Dispatch(*req)
	return nil
}

func (r *NodeReceiver) CatastropheMulticast(req *detect.CatastropheMulticast, _ *Ack) error {
	r.engine.Dispatch(*req)
	return nil
}

func (r *NodeReceiver) CatastropheReply(req *detect.CatastropheReply, _ *Ack) error {
	r.engine.Dispatch(*req)
	return nil
}

func (r *NodeReceiver) Start(req *detect.Start, _ *Ack) error {
	if r.registry != nil {
		r.registry.Update(req.Bundle.Addrs)
	}
	r.engine.Dispatch(*req)
	return nil
}

func (r *NodeReceiver) Stop(_ *detect.Stop, _ *Ack) error {
	r.engine.Dispatch(detect.Stop{})
	return nil
}

func (r *NodeReceiver) Shutdown(_ *detect.Shutdown, _ *Ack) error {
	r.engine.Dispatch(detect.Shutdown{})
	return nil
}
