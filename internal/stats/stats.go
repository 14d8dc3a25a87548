// Package stats turns WebRTC stats reports into human-readable diff lines and
// polls them on a timer.
package stats

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/pion/webrtc/v4"
)

const (
	TypeInboundRTP = "inbound-rtp"
	TypeCodec      = "codec"
)

// Tracked inbound-rtp metrics, in display order.
const (
	MetricBytesReceived   = "bytesReceived"
	MetricPacketsReceived = "packetsReceived"
	MetricPacketsLost     = "packetsLost"
	MetricJitter          = "jitter"
	MetricNACKCount       = "nackCount"
	MetricPLICount        = "pliCount"
	MetricFIRCount        = "firCount"
)

var trackedMetrics = []string{
	MetricBytesReceived,
	MetricPacketsReceived,
	MetricPacketsLost,
	MetricJitter,
	MetricNACKCount,
	MetricPLICount,
	MetricFIRCount,
}

// Entry is one stats object. Timestamp is in milliseconds.
type Entry struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	Kind        string             `json:"kind,omitempty"`
	Timestamp   float64            `json:"timestamp"`
	CodecID     string             `json:"codecId,omitempty"`
	MimeType    string             `json:"mimeType,omitempty"`
	SDPFmtpLine string             `json:"sdpFmtpLine,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Report is a stats snapshot keyed by stats id.
type Report map[string]Entry

// FromWebRTC keeps the parts of a pion report the receiver displays.
func FromWebRTC(r webrtc.StatsReport) Report {
	out := make(Report, len(r))
	for id, s := range r {
		switch st := s.(type) {
		case webrtc.InboundRTPStreamStats:
			out[id] = Entry{
				ID:        st.ID,
				Type:      TypeInboundRTP,
				Kind:      st.Kind,
				Timestamp: float64(st.Timestamp),
				CodecID:   st.CodecID,
				Metrics: map[string]float64{
					MetricBytesReceived:   float64(st.BytesReceived),
					MetricPacketsReceived: float64(st.PacketsReceived),
					MetricPacketsLost:     float64(st.PacketsLost),
					MetricJitter:          st.Jitter,
					MetricNACKCount:       float64(st.NACKCount),
					MetricPLICount:        float64(st.PLICount),
					MetricFIRCount:        float64(st.FIRCount),
				},
			}
		case webrtc.CodecStats:
			out[id] = Entry{
				ID:          st.ID,
				Type:        TypeCodec,
				Timestamp:   float64(st.Timestamp),
				MimeType:    st.MimeType,
				SDPFmtpLine: st.SDPFmtpLine,
			}
		}
	}
	return out
}

func codecLabel(r Report, e Entry) string {
	if e.CodecID == "" {
		return ""
	}
	c, ok := r[e.CodecID]
	if !ok {
		return ""
	}
	if c.SDPFmtpLine == "" {
		return c.MimeType
	}
	return c.MimeType + " " + c.SDPFmtpLine
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CreateDisplayStringArray returns one line per tracked metric that changed
// between last and report. Streams absent from last are listed in full.
func CreateDisplayStringArray(report, last Report) []string {
	ids := make([]string, 0, len(report))
	for id, e := range report {
		if e.Type == TypeInboundRTP {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	lines := []string{}
	for _, id := range ids {
		e := report[id]
		prev, hasPrev := last[id]

		codec := codecLabel(report, e)
		if !hasPrev {
			if codec != "" {
				lines = append(lines, fmt.Sprintf("%s codec: %s", e.Kind, codec))
			}
		} else if old := codecLabel(last, prev); old != codec {
			lines = append(lines, fmt.Sprintf("%s codec: %s -> %s", e.Kind, old, codec))
		}

		for _, name := range trackedMetrics {
			v, ok := e.Metrics[name]
			if !ok {
				continue
			}
			if !hasPrev {
				lines = append(lines, fmt.Sprintf("%s %s: %s", e.Kind, name, formatValue(v)))
				continue
			}
			old, had := prev.Metrics[name]
			if had && old == v {
				continue
			}
			line := fmt.Sprintf("%s %s: %s -> %s", e.Kind, name, formatValue(old), formatValue(v))
			if name == MetricBytesReceived {
				if secs := (e.Timestamp - prev.Timestamp) / 1000; secs > 0 {
					line += fmt.Sprintf(" (%.2f kbit/s)", 8*(v-old)/secs/1000)
				}
			}
			lines = append(lines, line)
		}
	}
	return lines
}
