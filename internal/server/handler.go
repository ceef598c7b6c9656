package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"media-distribution/internal/catalog"
	"media-distribution/internal/protocol"
	"media-distribution/internal/session"
	"media-distribution/internal/transport"
)

// handleConn serves the single request of one connection. Every failure ends
// here: it is logged and the connection is closed.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	log := s.log.With(
		slog.String("conn_id", uuid.NewString()),
		slog.String("remote", conn.RemoteAddr().String()),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic", "panic", fmt.Sprint(r))
		}
	}()

	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}

	r := protocol.NewReader(conn)
	w := protocol.NewWriter(conn)

	op, err := r.ReadOpcode()
	if op != "" {
		s.metrics.IncRequest(string(op))
	}
	if err != nil {
		log.Warn("read command", "command", string(op), "error", err.Error())
		return
	}
	log.Info("received command", "command", string(op))

	switch op {
	case protocol.OpList:
		s.handleList(log, w)
	case protocol.OpStream:
		s.handleStream(ctx, log, r, w)
	}
}

// handleList writes the current catalog. An unreadable or empty media
// directory yields a count of zero.
func (s *Server) handleList(log *slog.Logger, w *protocol.Writer) {
	names, err := catalog.List(s.cfg.MediaDir)
	if err != nil {
		log.Warn("no video files available", "dir", s.cfg.MediaDir, "error", err.Error())
		names = nil
	}
	if err := w.WriteListing(names); err != nil {
		log.Warn("write listing", "error", err.Error())
		return
	}
	log.Debug("listing sent", "count", len(names))
}

func (s *Server) handleStream(ctx context.Context, log *slog.Logger, r *protocol.Reader, w *protocol.Writer) {
	req, err := r.ReadStreamRequest()
	if err != nil {
		log.Warn("read stream request", "error", err.Error())
		return
	}
	log = log.With(
		slog.String("asset", req.Asset),
		slog.String("client", req.ClientAddr),
		slog.String("transport", req.Transport),
	)
	s.metrics.ObserveClientBandwidth(req.Bandwidth)
	log.Info("stream requested", "bandwidth_mbps", req.Bandwidth)

	kind, err := transport.ParseKind(req.Transport)
	if err != nil {
		// No response: the client sees the connection close.
		log.Error("unsupported protocol", "error", err.Error())
		return
	}
	s.metrics.IncStreamRequest(kind.String())

	path, err := catalog.Resolve(s.cfg.MediaDir, req.Asset)
	if err != nil {
		log.Warn("stream request rejected", "error", err.Error())
		s.writeError(log, w, err)
		return
	}

	res := session.Reservation{ClientAddr: req.ClientAddr, Transport: kind.String(), Asset: req.Asset}
	switch kind {
	case transport.TCP:
		res.ExclusivePort = transport.StreamPort
	case transport.RTP:
		res.WantRTPPort = s.cfg.DynamicRTPPorts
	}
	sess, err := s.sessions.Reserve(res)
	if err != nil {
		log.Error("session rejected", "error", err.Error())
		s.writeError(log, w, err)
		return
	}
	log = log.With(slog.String("session_id", string(sess.ID)))

	launched := false
	defer func() {
		if !launched {
			_ = s.sessions.Advance(sess.ID, session.StateFailed)
			s.sessions.Release(sess.ID)
		}
	}()

	plan, err := s.negotiator.Negotiate(transport.Request{
		AssetPath:  path,
		ClientAddr: req.ClientAddr,
		Kind:       kind,
		RTPPort:    sess.Port,
	})
	if err != nil {
		log.Error("negotiate transport", "error", err.Error())
		return
	}
	_ = s.sessions.Advance(sess.ID, session.StateTransportSelected)

	direct := kind == transport.RTP && s.cfg.SDPDelivery != DeliverFile
	if kind == transport.RTP {
		_ = s.sessions.Advance(sess.ID, session.StateSDPGenerated)
	}
	if direct {
		if err := w.WriteSDPBlock(plan.SDPLines); err != nil {
			log.Warn("send sdp", "error", err.Error())
			return
		}
		_ = s.sessions.Advance(sess.ID, session.StateSDPSent)
		log.Debug("sdp sent", "lines", len(plan.SDPLines))
	} else if kind == transport.RTP {
		// A leftover file from an earlier session would be read as ready.
		removeSDPFile(plan.SDPFile, log)
	}

	log.Info("executing pump", "target", plan.Target, "args", plan.Args)
	pump, err := s.launcher.Start(ctx, plan.Args...)
	if err != nil {
		s.metrics.IncPumpFailures()
		log.Error("pump launch failed", "error", err.Error())
		return
	}
	launched = true
	s.metrics.IncPumpLaunches()
	_ = s.sessions.Launched(sess.ID, pump.Pid(), pump.StartedAt(), plan.SDPFile)
	s.track(sess.ID, pump, plan.SDPFile, log)

	if kind == transport.RTP && !direct {
		s.deliverSDPFile(ctx, log, w, sess.ID, plan.SDPFile, pump)
	}
}

// deliverSDPFile sends the SDP the pump wrote, once it is complete. If the
// client cannot be given a description the session fails and the pump is
// stopped; its watcher releases the session.
func (s *Server) deliverSDPFile(ctx context.Context, log *slog.Logger, w *protocol.Writer, id session.ID, path string, pump Pump) {
	lines, err := transport.WaitForSDPFile(ctx, path, s.cfg.SDPWaitTimeout, pump.Done())
	if err == nil {
		err = w.WriteSDPBlock(lines)
		if err == nil {
			_ = s.sessions.Advance(id, session.StateSDPSent)
			log.Debug("sdp file sent", "file", path, "lines", len(lines))
			return
		}
		log.Warn("send sdp", "error", err.Error())
	} else {
		log.Error("sdp file unavailable", "file", path, "error", err.Error())
		s.writeError(log, w, err)
	}

	_ = s.sessions.Advance(id, session.StateFailed)
	if err := pump.Stop(s.cfg.StopGrace); err != nil {
		log.Error("stop pump after failed handshake", "pid", pump.Pid(), "error", err.Error())
	}
}

// writeError sends an error block. Only the reason class is exposed.
func (s *Server) writeError(log *slog.Logger, w *protocol.Writer, err error) {
	reason := "internal error"
	switch {
	case errors.Is(err, catalog.ErrAssetNotFound):
		reason = "asset not found"
	case errors.Is(err, catalog.ErrInvalidAssetName):
		reason = "invalid asset name"
	case errors.Is(err, session.ErrPortInUse):
		reason = "transport busy"
	case errors.Is(err, session.ErrPortsExhausted):
		reason = "no free rtp ports"
	case errors.Is(err, transport.ErrSDPTimeout):
		reason = "sdp unavailable"
	}
	if werr := w.WriteError(reason); werr != nil {
		log.Debug("write error block", "error", werr.Error())
	}
}

func removeSDPFile(path string, log *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("remove sdp file", "file", path, "error", err.Error())
	}
}
