package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Request
		wantErr error
	}{
		{name: "num", line: "num:10\n", want: Request{Command: CmdNum, Value: 10}},
		{name: "negative", line: "num:-42\n", want: Request{Command: CmdNum, Value: -42}},
		{name: "explicit plus", line: "num:+7\n", want: Request{Command: CmdNum, Value: 7}},
		{name: "crlf", line: "num:3\r\n", want: Request{Command: CmdNum, Value: 3}},
		{name: "no delimiter", line: "num:1", want: Request{Command: CmdNum, Value: 1}},
		{name: "max int32", line: "num:2147483647\n", want: Request{Command: CmdNum, Value: math.MaxInt32}},
		{name: "disconnect", line: "disconnect\n", want: Request{Command: CmdDisconnect}},
		{name: "malformed", line: "num:abc\n", wantErr: ErrInvalidNumber},
		{name: "empty arg", line: "num:\n", wantErr: ErrInvalidNumber},
		{name: "missing arg", line: "num\n", wantErr: ErrInvalidNumber},
		{name: "overflow", line: "num:2147483648\n", wantErr: ErrInvalidNumber},
		{name: "float", line: "num:1.5\n", wantErr: ErrInvalidNumber},
		{name: "unknown", line: "hello\n", wantErr: ErrUnexpectedMessage},
		{name: "empty", line: "\n", wantErr: ErrUnexpectedMessage},
		{name: "disconnect with arg", line: "disconnect:now\n", wantErr: ErrUnexpectedMessage},
		{name: "case sensitive", line: "NUM:1\n", wantErr: ErrUnexpectedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequest([]byte(tt.line))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAppendReplies(t *testing.T) {
	assert.Equal(t, "ok:100\n", string(AppendOK(nil, 100)))
	assert.Equal(t, "ok:12.5\n", string(AppendOK(nil, 12.5)))
	assert.Equal(t, "disconnected\n", string(AppendDisconnected(nil)))
	assert.Equal(t, "stop\n", string(AppendStop(nil)))
	assert.Equal(t, "num:-3\n", string(AppendNum(nil, -3)))
	assert.Equal(t, "disconnect\n", string(AppendDisconnect(nil)))

	buf := make([]byte, 0, 16)
	buf = AppendOK(buf, 1)
	assert.Equal(t, "ok:1\n", string(buf))
}

func TestOKMetricRoundTrips(t *testing.T) {
	for _, v := range []float64{0, 1, 1.0 / 3, 523776.5, 4.611686014132420609e18} {
		reply, err := ParseReply(AppendOK(nil, v))
		require.NoError(t, err)
		assert.Equal(t, ReplyKindOK, reply.Kind)
		assert.Equal(t, v, reply.Metric)
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		line    string
		want    Reply
		wantErr bool
	}{
		{line: "ok:100\n", want: Reply{Kind: ReplyKindOK, Metric: 100}},
		{line: "disconnected\n", want: Reply{Kind: ReplyKindDisconnected}},
		{line: "stop\n", want: Reply{Kind: ReplyKindStop}},
		{line: "ok\n", wantErr: true},
		{line: "ok:x\n", wantErr: true},
		{line: "stop:1\n", wantErr: true},
		{line: "bye\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseReply([]byte(tt.line))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnexpectedMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReplyKindString(t *testing.T) {
	assert.Equal(t, "ok", ReplyKindOK.String())
	assert.Equal(t, "stop", ReplyKindStop.String())
	assert.Equal(t, "unknown", ReplyKind(9).String())
}
