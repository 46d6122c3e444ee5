package transport

import (
	"context"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/andr35/DS2-Project/internal/detect"
	"github.com/andr35/DS2-Project/internal/schedule"
)

func TestNodeClientDeliversGossipOverRPC(t *testing.T) {
	sched := schedule.New()
	defer sched.Stop()

	logger := zap.NewNop()

	receiverEngine := detect.NewEngine("receiver", logger, sched, noopTransport{})
	receiverEngine.Dispatch(detect.Start{Bundle: detect.StartBundle{
		Nodes:        []detect.NodeID{"receiver", "sender"},
		GossipDelta:  time.Hour,
		FailureDelta: time.Hour,
		MissDelta:    time.Hour,
	}})
	go receiverEngine.Run(context.Background())

	server, err := NewServer("127.0.0.1:0", NodeServiceName, logger, NewNodeReceiver(receiverEngine, nil))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := server.Serve(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer server.Shutdown()

	waitForPort(t, server)
	addr := addrOf(server)

	client := NewNodeClient("sender", StaticRegistry{"receiver": addr}, "127.0.0.1:1", logger)
	if err := client.SendGossip(context.Background(), "receiver", detect.Gossip{
		From:  "sender",
		Beats: detect.Beats{"sender": 9},
	}); err != nil {
		t.Fatalf("send gossip: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		beats := receiverEngine.CurrentBeats()
		if beats != nil && beats["sender"] == 9 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("gossip not observed by receiver within deadline, beats=%v", beats)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type noopTransport struct{}

func (noopTransport) SendGossip(context.Context, detect.NodeID, detect.Gossip) error { return nil }
func (noopTransport) SendGossipReply(context.Context, detect.NodeID, detect.GossipReply) error {
	return nil
}
func (noopTransport) SendCatastropheMulticast(context.Context, detect.NodeID, detect.CatastropheMulticast) error {
	return nil
}
func (noopTransport) SendCatastropheReply(context.Context, detect.NodeID, detect.CatastropheReply) error {
	return nil
}
func (noopTransport) ReportCrash(context.Context, detect.NodeID) error { return nil }
func (noopTransport) ReportSelfCrash(context.Context) error            { return nil }

func waitForPort(t *testing.T, s *Server) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for s.Port() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never bound a port")
		}
		time.Sleep(time.Millisecond)
	}
}

func addrOf(s *Server) string {
	return "127.0.0.1:" + strconv.Itoa(s.Port())
}
