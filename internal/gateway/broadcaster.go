package gateway

import (
	"strconv"
	"time"
)

// appendEnvelope appends the wire envelope
//
//	{"channel":"...","data":<payload>,"ts":"...","seq":N,"channel_seq":M}
//
// to buf. data must already be valid JSON. Snapshot envelopes sent on
// connect carry "initial":true and seq 0.
func appendEnvelope(buf []byte, channel string, data []byte, ts time.Time, seq, channelSeq int64, initial bool) []byte {
	if buf == nil {
		buf = make([]byte, 0, len(channel)+len(data)+160)
	}
	buf = append(buf, `{"channel":`...)
	buf = strconv.AppendQuote(buf, channel)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = ts.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	if initial {
		buf = append(buf, `,"initial":true`...)
	}
	buf = append(buf, '}')
	return buf
}
