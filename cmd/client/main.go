package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"media-distribution/internal/client"
	"media-distribution/internal/platform/config"
	"media-distribution/internal/platform/logger"
	"media-distribution/internal/protocol"
	"media-distribution/internal/transport"
)

// defaultBandwidth is reported when no measurement is given.
const defaultBandwidth = 5.0

const usage = `usage:
  client list   [-addr host:port]
  client stream -asset NAME [-transport udp|tcp|rtp] [-addr host:port] [-client IP]
                [-bw MBPS] [-sdp-dir DIR] [-play] [-buffer] [-ffplay PATH]
`

func main() {
	_ = config.Load()
	log := logger.New(config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "text"))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(ctx, os.Args[2:])
	case "stream":
		err = runStream(ctx, log, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	addr := fs.String("addr", config.GetEnv("SERVER_ADDR", "localhost:9000"), "server control address")
	_ = fs.Parse(args)

	names, err := client.New(*addr).List(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// streamOptions are the parsed flags of the stream subcommand.
type streamOptions struct {
	addr       string
	asset      string
	kind       transport.Kind
	clientAddr string
	bandwidth  float64
	sdpDir     string
	play       bool
	buffering  bool
	ffplay     string
}

func parseStreamArgs(args []string) (streamOptions, error) {
	var o streamOptions
	var kind string
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	fs.StringVar(&o.addr, "addr", config.GetEnv("SERVER_ADDR", "localhost:9000"), "server control address")
	fs.StringVar(&o.asset, "asset", "", "asset name as returned by list")
	fs.StringVar(&kind, "transport", "rtp", "udp, tcp or rtp")
	fs.StringVar(&o.clientAddr, "client", "", "address the server sends media to (default: local address facing the server)")
	fs.Float64Var(&o.bandwidth, "bw", defaultBandwidth, "measured download bandwidth in Mbps")
	fs.StringVar(&o.sdpDir, "sdp-dir", os.TempDir(), "directory for the received sdp file")
	fs.BoolVar(&o.play, "play", false, "launch ffplay on the negotiated stream")
	fs.BoolVar(&o.buffering, "buffer", false, "let ffplay buffer before playback")
	fs.StringVar(&o.ffplay, "ffplay", config.GetEnv("FFPLAY_BIN", "ffplay"), "ffplay binary")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.asset == "" {
		return o, errors.New("-asset is required")
	}
	k, err := transport.ParseKind(kind)
	if err != nil {
		return o, err
	}
	o.kind = k
	return o, nil
}

func runStream(ctx context.Context, log *slog.Logger, args []string) error {
	o, err := parseStreamArgs(args)
	if err != nil {
		return err
	}
	if o.clientAddr == "" {
		if o.clientAddr, err = client.LocalAddr(o.addr); err != nil {
			return err
		}
	}

	lines, err := client.New(o.addr).Stream(ctx, protocol.StreamRequest{
		Asset:      o.asset,
		ClientAddr: o.clientAddr,
		Transport:  strings.ToUpper(string(o.kind)),
		Bandwidth:  o.bandwidth,
	})
	if err != nil {
		return err
	}
	log.Info("stream negotiated", "asset", o.asset, "transport", o.kind.String(), "client", o.clientAddr)

	opts := client.PlayerOptions{Buffering: o.buffering}
	if host, _, err := net.SplitHostPort(o.addr); err == nil {
		opts.ServerHost = host
	}
	if o.kind == transport.RTP {
		if opts.SDPFile, err = client.WriteSDPFile(o.sdpDir, lines); err != nil {
			return err
		}
		log.Info("sdp file created", "path", opts.SDPFile)
	}

	playerArgs, err := client.PlayerArgs(o.kind, opts)
	if err != nil {
		return err
	}
	if !o.play {
		fmt.Println(o.ffplay + " " + strings.Join(playerArgs, " "))
		return nil
	}

	cmd := exec.CommandContext(ctx, o.ffplay, playerArgs...)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	log.Info("executing player", "args", playerArgs)
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("ffplay: %w", err)
	}
	if opts.SDPFile != "" {
		_ = os.Remove(opts.SDPFile)
	}
	return nil
}
