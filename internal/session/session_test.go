package session

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mirrorx/endpoint/internal/transport"
	"github.com/mirrorx/endpoint/internal/wire"
	"github.com/mirrorx/endpoint/internal/workerpool"
)

func pairedTransports(t *testing.T) (*transport.Transport, *transport.Transport) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	var a, b [chacha20poly1305.KeySize]byte
	for i := range a {
		a[i] = byte(i + 1)
		b[i] = byte(255 - i)
	}
	clientKeys := transport.KeyPair{SealingKey: a, OpeningKey: b}
	serverKeys := transport.KeyPair{SealingKey: b, OpeningKey: a}

	client, err := transport.New(clientConn, clientKeys)
	if err != nil {
		t.Fatal(err)
	}
	server, err := transport.New(serverConn, serverKeys)
	if err != nil {
		t.Fatal(err)
	}
	return client, server
}

func TestRegistryInsertIfAbsentAndRemoveOnStop(t *testing.T) {
	reg := NewRegistry()
	clientT, serverT := pairedTransports(t)
	defer serverT.Close()
	pool := workerpool.New(2, 8)
	defer pool.Drain(context.Background())

	s := New("0000000002", clientT, pool)
	if !reg.Register(s) {
		t.Fatal("expected first registration to succeed")
	}

	dup := New("0000000002", serverT, pool)
	if reg.Register(dup) {
		t.Fatal("expected duplicate peer id registration to fail (I3)")
	}

	if reg.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", reg.Len())
	}

	s.Stop()
	if reg.Len() != 0 {
		t.Fatalf("expected session removed after Stop, got %d remaining", reg.Len())
	}
	if _, ok := reg.Get("0000000002"); ok {
		t.Fatal("expected Get to miss after removal")
	}
}

func TestSessionCallReplyOverRealTransport(t *testing.T) {
	clientT, serverT := pairedTransports(t)
	pool := workerpool.New(4, 16)
	defer pool.Drain(context.Background())

	active := New("0000000002", clientT, pool)
	passive := New("0000000001", serverT, pool)

	passive.Mux().Handle(wire.TagNegotiateMonitorRequest, func(ctx context.Context, payload wire.Message) wire.Message {
		return wire.NegotiateMonitorResponse{Monitors: []wire.MonitorDescription{{ID: "DISPLAY-0", Primary: true}}}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go active.Run(ctx)
	go passive.Run(ctx)

	resp, err := active.Mux().Call(context.Background(), wire.NegotiateMonitorRequest{}, time.Second)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	mr, ok := resp.(wire.NegotiateMonitorResponse)
	if !ok || len(mr.Monitors) != 1 {
		t.Fatalf("unexpected response: %#v", resp)
	}

	active.Stop()
	passive.Stop()
}

func TestVideoFrameDroppedBeforeSinkInstalled(t *testing.T) {
	clientT, serverT := pairedTransports(t)
	pool := workerpool.New(2, 8)
	defer pool.Drain(context.Background())

	active := New("0000000002", clientT, pool)
	passive := New("0000000001", serverT, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go active.Run(ctx)
	go passive.Run(ctx)
	defer active.Stop()
	defer passive.Stop()

	// I5: no sink installed yet, so this push must be silently dropped
	// rather than delivered or causing an error.
	if err := passive.PushVideo(wire.VideoFrame{Data: []byte{1}}); err != nil {
		t.Fatalf("PushVideo: %v", err)
	}

	received := make(chan wire.VideoFrame, 1)
	active.SetVideoSink(func(f wire.VideoFrame) error {
		received <- f
		return nil
	})

	if err := passive.PushVideo(wire.VideoFrame{Data: []byte{9, 9}}); err != nil {
		t.Fatalf("PushVideo: %v", err)
	}

	select {
	case f := <-received:
		if len(f.Data) != 2 {
			t.Fatalf("unexpected frame: %#v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never reached sink after installation")
	}
}
