package transport

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
)

// Fixed ports of the delivery paths.
const (
	StreamPort = 1234
	RTPPort    = 5004
	RTCPPort   = 5008

	// RTCPOffset keeps dynamically allocated pairs in the 5004/5008 shape.
	RTCPOffset = RTCPPort - RTPPort
)

// Request is what the negotiator needs from an accepted stream request.
type Request struct {
	AssetPath  string
	ClientAddr string
	Kind       Kind
	// RTPPort overrides RTPPort when non-zero. RTCP goes to RTPPort+RTCPOffset.
	RTPPort int
}

// Plan is the negotiated transport: where the pump sends, how it is invoked
// and, for RTP, what the client must be told.
type Plan struct {
	Kind     Kind
	Target   string
	Args     []string
	RTPPort  int
	RTCPPort int
	SDPLines []string
	SDPFile  string
}

// Negotiator builds plans. SDPDir is where the pump writes its SDP file.
type Negotiator struct {
	SDPDir string
}

func NewNegotiator(sdpDir string) *Negotiator {
	if sdpDir == "" {
		sdpDir = "."
	}
	return &Negotiator{SDPDir: sdpDir}
}

// Negotiate selects the target for req and builds the pump arguments.
func (n *Negotiator) Negotiate(req Request) (Plan, error) {
	if req.ClientAddr == "" && req.Kind != TCP {
		return Plan{}, fmt.Errorf("%s transport needs a client address", req.Kind)
	}

	plan := Plan{Kind: req.Kind}
	input := []string{"-nostdin", "-re", "-i", req.AssetPath}

	switch req.Kind {
	case UDP:
		plan.Target = "udp://" + net.JoinHostPort(req.ClientAddr, strconv.Itoa(StreamPort))
		plan.Args = append(input, "-c", "copy", "-f", "mpegts", plan.Target)

	case TCP:
		plan.Target = "tcp://" + net.JoinHostPort("0.0.0.0", strconv.Itoa(StreamPort)) + "?listen"
		plan.Args = append(input, "-c", "copy", "-f", "mpegts", plan.Target)

	case RTP:
		plan.RTPPort = req.RTPPort
		if plan.RTPPort == 0 {
			plan.RTPPort = RTPPort
		}
		plan.RTCPPort = plan.RTPPort + RTCPOffset

		lines, err := SDPLines(BuildSDP(req.ClientAddr, plan.RTPPort))
		if err != nil {
			return Plan{}, err
		}
		plan.SDPLines = lines
		plan.SDPFile = filepath.Join(n.SDPDir, SDPFileName(req.ClientAddr))
		plan.Target = fmt.Sprintf("rtp://%s?rtcpport=%d",
			net.JoinHostPort(req.ClientAddr, strconv.Itoa(plan.RTPPort)), plan.RTCPPort)
		plan.Args = append(input, "-an", "-c:v", "copy", "-f", "rtp", "-sdp_file", plan.SDPFile, plan.Target)

	default:
		return Plan{}, fmt.Errorf("%w: %q", ErrUnsupportedTransport, string(req.Kind))
	}
	return plan, nil
}
