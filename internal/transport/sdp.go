package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// Fixed RTP session parameters. They describe the stream the pump produces
// with "-c:v copy" and are not derived from the asset.
const (
	PayloadType     = 96
	RTPMap          = "MP4V-ES/90000"
	FMTP            = "profile-level-id=1"
	BandwidthKbps   = 3100
	SessionName     = "No Name"
	SessionToolAttr = "libavformat"
)

// addressType is "IP6" for IPv6 literals and "IP4" otherwise.
func addressType(host string) string {
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		return "IP6"
	}
	return "IP4"
}

// BuildSDP describes a single video stream sent to clientAddr:rtpPort. The
// client address is both the originator and the connection address.
func BuildSDP(clientAddr string, rtpPort int) *sdp.SessionDescription {
	at := addressType(clientAddr)
	pt := strconv.Itoa(PayloadType)

	return &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    at,
			UnicastAddress: clientAddr,
		},
		SessionName: sdp.SessionName(SessionName),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: at,
			Address:     &sdp.Address{Address: clientAddr},
		},
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{StartTime: 0, StopTime: 0}}},
		Attributes:       []sdp.Attribute{sdp.NewAttribute("tool", SessionToolAttr)},
		MediaDescriptions: []*sdp.MediaDescription{{
			MediaName: sdp.MediaName{
				Media:   "video",
				Port:    sdp.RangedPort{Value: rtpPort},
				Protos:  []string{"RTP", "AVP"},
				Formats: []string{pt},
			},
			Bandwidth: []sdp.Bandwidth{{Type: "AS", Bandwidth: BandwidthKbps}},
			Attributes: []sdp.Attribute{
				sdp.NewAttribute("rtpmap", pt+" "+RTPMap),
				sdp.NewAttribute("fmtp", pt+" "+FMTP),
			},
		}},
	}
}

// SDPLines marshals desc into its text lines, without terminators or blanks.
func SDPLines(desc *sdp.SessionDescription) ([]string, error) {
	raw, err := desc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal sdp: %w", err)
	}
	return splitLines(string(raw)), nil
}

// ParseSDP validates text as a session description.
func ParseSDP(text []byte) (*sdp.SessionDescription, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(text); err != nil {
		return nil, fmt.Errorf("parse sdp: %w", err)
	}
	return &desc, nil
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// SDPFileName is the deterministic name of the pump's SDP output for a
// client, e.g. "stream_10_0_0_5.sdp".
func SDPFileName(clientAddr string) string {
	r := strings.NewReplacer(".", "_", ":", "_", "/", "_", `\`, "_")
	return "stream_" + r.Replace(clientAddr) + ".sdp"
}
