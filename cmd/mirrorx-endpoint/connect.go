package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/mirrorx/endpoint/internal/audio"
	"github.com/mirrorx/endpoint/internal/config"
	"github.com/mirrorx/endpoint/internal/filetransfer"
	"github.com/mirrorx/endpoint/internal/mux"
	"github.com/mirrorx/endpoint/internal/negotiate"
	"github.com/mirrorx/endpoint/internal/recording"
	"github.com/mirrorx/endpoint/internal/session"
	"github.com/mirrorx/endpoint/internal/transport"
	"github.com/mirrorx/endpoint/internal/video"
	"github.com/mirrorx/endpoint/internal/workerpool"
)

// activeRegistry enforces I3 on the active side too: a concurrent second
// connect to the same remote peer id from this process is rejected rather
// than silently spawning a duplicate session (spec §8 scenario 5).
var activeRegistry = session.NewRegistry()

// runConnect drives the active role: dial the passive peer, negotiate
// media parameters, and render whatever it pushes back.
func runConnect() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)

	kp, err := loadKeyPair()
	if err != nil {
		return err
	}
	if remotePeerID == "" {
		return fmt.Errorf("--remote-peer-id is required to dial a passive peer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	tr, err := transport.DialActive(ctx, targetAddr, cfg.PeerID, remotePeerID, kp)
	if err != nil {
		cancel()
		return fmt.Errorf("handshake with %s: %w", targetAddr, err)
	}

	pool := workerpool.New(cfg.WorkerPoolSize, cfg.WorkerPoolQueueSize)
	defer pool.StopAccepting()

	sess := session.New(remotePeerID, tr, pool)
	if !activeRegistry.Register(sess) {
		cancel()
		sess.Stop()
		return fmt.Errorf("a session with peer %s is already active", remotePeerID)
	}
	defer activeRegistry.StopSession(remotePeerID)

	videoSink, closeVideo := openVideoSink(videoOutFile)
	defer closeVideo()
	audioSink, closeAudio := openAudioSink(audioOutFile)
	defer closeAudio()

	videoPipeline := video.NewDecodeRenderPipeline(video.NewSoftwareDecoder(), videoSink)
	audioPipeline := audio.NewDecodeRenderPipeline(audio.NewSoftwareDecoder(), 1<<16, audioSink)
	videoPipeline.Start(ctx)
	audioPipeline.Start(ctx)
	defer videoPipeline.Stop()
	defer audioPipeline.Stop()

	sessErrCh := make(chan error, 1)
	go func() { sessErrCh <- sess.Run(ctx) }()

	codecs, err := parseCodecs(cfg.CodecPreference)
	if err != nil {
		cancel()
		return err
	}
	formats, err := parseSampleFormats(cfg.SampleFormats)
	if err != nil {
		cancel()
		return err
	}

	result, err := sess.Negotiate.Run(ctx, negotiate.Params{
		Codecs:        codecs,
		MaxSampleRate: cfg.MaxSampleRate,
		SampleFormats: formats,
		DualChannel:   cfg.DualChannel,
	}, cfg.PreferredMonitorID, uint8(cfg.RequestedFrameRate))
	if err != nil {
		cancel()
		return fmt.Errorf("negotiate: %w", err)
	}

	sess.SetVideoSink(videoPipeline.OnVideoFrame)
	sess.SetAudioSink(audioPipeline.OnAudioFrame)

	log.Info("negotiated session",
		"codec", result.Codec,
		"sampleRate", result.SampleRate,
		"monitor", result.Monitor.ID,
		"frameRate", result.FrameRate,
		"remoteOS", result.OS,
	)

	if downloadRemotePath != "" {
		if err := downloadAndArchive(ctx, cfg, sess.Mux()); err != nil {
			log.Error("download failed", "path", downloadRemotePath, "error", err)
		}
	}

	err = <-sessErrCh
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// downloadAndArchive requests downloadRemotePath from the passive peer,
// writes it to downloadSaveTo, and hands the result to the recording
// archiver so S3-backed deployments can keep a copy of transferred files.
func downloadAndArchive(ctx context.Context, cfg *config.Config, m *mux.Mux) error {
	client := filetransfer.NewClient(m)

	id := uuid.NewString()
	dl, err := client.Download(ctx, id, downloadRemotePath)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}

	savePath := downloadSaveTo
	if savePath == "" {
		savePath = filepath.Base(downloadRemotePath)
	}
	f, err := os.Create(savePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", savePath, err)
	}
	defer f.Close()

	n, err := dl.WriteTo(f)
	if err != nil {
		return fmt.Errorf("write %s: %w", savePath, err)
	}
	log.Info("download complete", "path", savePath, "bytes", n)

	archiver, err := recording.New(ctx, recording.Config{
		Bucket:          cfg.RecordingBucket,
		Region:          cfg.RecordingRegion,
		Prefix:          cfg.RecordingPrefix,
		Endpoint:        cfg.RecordingEndpoint,
		AccessKeyID:     cfg.RecordingAccessKeyID,
		SecretAccessKey: cfg.RecordingSecretKey,
	})
	if err != nil {
		return fmt.Errorf("build recording archiver: %w", err)
	}
	if archiver.Enabled() {
		if err := archiver.Archive(ctx, id, savePath); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}
	return nil
}

func openVideoSink(path string) (video.RenderSink, func()) {
	noop := func(video.Frame) {}
	if path == "" {
		return noop, func() {}
	}
	f, err := os.Create(path)
	if err != nil {
		log.Error("could not open video output file, discarding frames", "error", err)
		return noop, func() {}
	}
	sink := func(frame video.Frame) {
		if _, err := f.Write(frame.Y); err != nil {
			log.Warn("video-out write failed", "error", err)
		}
	}
	return sink, func() { f.Close() }
}

func openAudioSink(path string) (audio.PlaybackSink, func()) {
	noop := func(audio.PCMBlock) {}
	if path == "" {
		return noop, func() {}
	}
	f, err := os.Create(path)
	if err != nil {
		log.Error("could not open audio output file, discarding samples", "error", err)
		return noop, func() {}
	}
	sink := func(b audio.PCMBlock) {
		if _, err := f.Write(b.Samples); err != nil {
			log.Warn("audio-out write failed", "error", err)
		}
	}
	return sink, func() { f.Close() }
}
