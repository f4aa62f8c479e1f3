package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirrorx/endpoint/internal/config"
	"github.com/mirrorx/endpoint/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile      string
	listenAddr   string
	openKeyHex   string
	sealKeyHex   string
	targetAddr   string
	peerID       string
	remotePeerID string

	videoOutFile string
	audioOutFile string

	downloadRemotePath string
	downloadSaveTo     string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "mirrorx-endpoint",
	Short: "MirrorX remote desktop endpoint",
	Long:  `MirrorX endpoint - peer-to-peer remote desktop client and host.`,
}

var connectCmd = &cobra.Command{
	Use:   "connect [address]",
	Short: "Connect to a passive peer and drive the active (viewer) role",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		targetAddr = args[0]
		if err := runConnect(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept connections and drive the passive (host) role",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runListen(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mirrorx-endpoint v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/mirrorx/endpoint.yaml)")
	rootCmd.PersistentFlags().StringVar(&peerID, "peer-id", "", "override configured peer id")
	rootCmd.PersistentFlags().StringVar(&openKeyHex, "open-key", "", "hex-encoded opening key for this session (delivered by signaling; out of scope here)")
	rootCmd.PersistentFlags().StringVar(&sealKeyHex, "seal-key", "", "hex-encoded sealing key for this session (delivered by signaling; out of scope here)")

	listenCmd.Flags().StringVar(&listenAddr, "addr", "", "override the configured listen address")

	connectCmd.Flags().StringVar(&remotePeerID, "remote-peer-id", "", "10-digit peer id of the passive side being dialed (spec §3/§4.2 handshake prelude)")
	connectCmd.Flags().StringVar(&videoOutFile, "video-out", "", "write decoded video access units to this file")
	connectCmd.Flags().StringVar(&audioOutFile, "audio-out", "", "write decoded PCM to this file")
	connectCmd.Flags().StringVar(&downloadRemotePath, "download", "", "request this remote path over the file-transfer sub-protocol once negotiation completes")
	connectCmd.Flags().StringVar(&downloadSaveTo, "download-to", "", "local path to save --download to (default: remote file name in the working directory)")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config, mirroring the
// teacher's cmd/breeze-agent init sequence.
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if peerID != "" {
		cfg.PeerID = peerID
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	return cfg, nil
}
