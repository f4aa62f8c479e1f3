package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/mirrorx/endpoint/internal/audio"
	"github.com/mirrorx/endpoint/internal/config"
	"github.com/mirrorx/endpoint/internal/filetransfer"
	"github.com/mirrorx/endpoint/internal/input"
	"github.com/mirrorx/endpoint/internal/negotiate"
	"github.com/mirrorx/endpoint/internal/session"
	"github.com/mirrorx/endpoint/internal/sysinfo"
	"github.com/mirrorx/endpoint/internal/transport"
	"github.com/mirrorx/endpoint/internal/video"
	"github.com/mirrorx/endpoint/internal/wire"
	"github.com/mirrorx/endpoint/internal/workerpool"
)

// runListen drives the passive role: accept connections, serve
// negotiation, and stream local capture back to whichever active peer
// connects.
func runListen() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down listener")
		cancel()
		ln.Close()
	}()

	registry := session.NewRegistry()
	log.Info("listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("accept failed", "error", err)
			continue
		}
		go handleConn(ctx, cfg, conn, registry)
	}
}

func handleConn(ctx context.Context, cfg *config.Config, conn net.Conn, registry *session.Registry) {
	kp, err := loadKeyPair()
	if err != nil {
		log.Error("key material unavailable, dropping connection", "error", err)
		conn.Close()
		return
	}

	peerID, tr, err := transport.AcceptPassive(conn, cfg.PeerID, kp)
	if err != nil {
		log.Error("handshake failed", "remoteAddr", conn.RemoteAddr().String(), "error", err)
		return
	}

	pool := workerpool.New(cfg.WorkerPoolSize, cfg.WorkerPoolQueueSize)
	defer pool.StopAccepting()

	sess := session.New(peerID, tr, pool)
	if !registry.Register(sess) {
		log.Warn("peer already has an active session, rejecting", "peerId", peerID)
		sess.Stop()
		return
	}

	filetransfer.ServeWithAllowlist(sess.Mux(), cfg.FileTransferAllowedDirs)

	codecs, err := parseCodecs(cfg.CodecPreference)
	if err != nil {
		log.Error("invalid configured codec preference", "error", err)
		sess.Stop()
		return
	}
	formats, err := parseSampleFormats(cfg.SampleFormats)
	if err != nil {
		log.Error("invalid configured sample formats", "error", err)
		sess.Stop()
		return
	}
	local := sysinfo.Collect()

	var capturePipeline atomic.Pointer[video.CaptureEncodePipeline]
	var audioCapturePipeline atomic.Pointer[audio.CaptureEncodePipeline]

	sess.Negotiate.Serve(negotiate.PassiveCallbacks{
		SupportedCodecs: func() []wire.Codec { return codecs },
		MaxSampleRate:   func() uint32 { return cfg.MaxSampleRate },
		SampleFormats:   func() []wire.SampleFormat { return formats },
		DualChannel:     func() bool { return cfg.DualChannel },
		OS:              func() (string, string) { return local.OS, local.OSVersion },
		ListMonitors:    func() []wire.MonitorDescription { m, _ := video.ListMonitors(); return m },
		StartStreaming: func(result negotiate.Result) {
			log.Info("streaming started", "peerId", peerID, "codec", result.Codec, "monitor", result.Monitor.ID)

			dup, err := video.NewDuplicator(result.Monitor.ID)
			if err != nil {
				log.Error("could not open monitor capture", "error", err)
			} else {
				vp := video.NewCaptureEncodePipeline(dup, video.NewSoftwareEncoder(30), sess, result.FrameRate)
				vp.Start(ctx)
				capturePipeline.Store(vp)
			}

			ap := audio.NewCaptureEncodePipeline(audio.NewCapturer(), audio.NewSoftwareEncoder(), sess)
			if err := ap.Start(ctx); err != nil {
				log.Error("could not start audio capture", "error", err)
			} else {
				audioCapturePipeline.Store(ap)
			}

			dispatcher := input.NewDispatcher(input.NewInjector(), int(result.Monitor.Width), int(result.Monitor.Height))
			sess.Mux().Sink(wire.TagInput, dispatcher.Sink)
		},
	})

	if err := sess.Run(ctx); err != nil {
		log.Warn("session ended", "peerId", peerID, "error", err)
	}
	if vp := capturePipeline.Load(); vp != nil {
		vp.Stop()
	}
	if ap := audioCapturePipeline.Load(); ap != nil {
		ap.Stop()
	}
}
