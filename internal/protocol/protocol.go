// Package protocol implements the newline-delimited text protocol spoken
// between sqmean clients and the server.
//
//	client -> server   num:<integer>\n   submit a value
//	server -> client   ok:<float>\n      current mean of squares
//	client -> server   disconnect\n      polite disconnect
//	server -> client   disconnected\n    acknowledgement, then close
//	server -> client   stop\n            server shutdown notice, then close
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// Delimiter terminates every message.
const Delimiter = '\n'

// Commands sent by clients.
const (
	CmdNum        = "num"
	CmdDisconnect = "disconnect"
)

// Replies sent by the server.
const (
	ReplyOK           = "ok"
	ReplyDisconnected = "disconnected"
	ReplyStop         = "stop"
)

var (
	// ErrUnexpectedMessage is returned for a command the protocol does not know
	ErrUnexpectedMessage = errors.New("unexpected message")
	// ErrInvalidNumber is returned when the argument of num is not a 32-bit integer
	ErrInvalidNumber = errors.New("invalid number")
)

// Request is a parsed client command.
type Request struct {
	Command string
	Value   int32 // set for CmdNum
}

// ParseRequest parses one line (with or without its trailing delimiter).
// A carriage return before the delimiter is tolerated.
func ParseRequest(line []byte) (Request, error) {
	line = trimLine(line)

	cmd, arg, hasArg := bytes.Cut(line, []byte{':'})
	switch string(cmd) {
	case CmdNum:
		if !hasArg {
			return Request{}, fmt.Errorf("%w: num without argument", ErrInvalidNumber)
		}
		v, err := strconv.ParseInt(string(arg), 10, 32)
		if err != nil {
			return Request{}, fmt.Errorf("%w: %q", ErrInvalidNumber, arg)
		}
		return Request{Command: CmdNum, Value: int32(v)}, nil
	case CmdDisconnect:
		if hasArg {
			return Request{}, fmt.Errorf("%w: %q", ErrUnexpectedMessage, line)
		}
		return Request{Command: CmdDisconnect}, nil
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnexpectedMessage, line)
	}
}

// AppendOK appends "ok:<metric>\n" to dst. The metric is rendered in the
// shortest form that parses back to the same float64.
func AppendOK(dst []byte, metric float64) []byte {
	dst = append(dst, ReplyOK...)
	dst = append(dst, ':')
	dst = strconv.AppendFloat(dst, metric, 'f', -1, 64)
	return append(dst, Delimiter)
}

// AppendDisconnected appends "disconnected\n" to dst.
func AppendDisconnected(dst []byte) []byte {
	return append(append(dst, ReplyDisconnected...), Delimiter)
}

// AppendStop appends "stop\n" to dst.
func AppendStop(dst []byte) []byte {
	return append(append(dst, ReplyStop...), Delimiter)
}

// AppendNum appends "num:<v>\n" to dst.
func AppendNum(dst []byte, v int32) []byte {
	dst = append(dst, CmdNum...)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(v), 10)
	return append(dst, Delimiter)
}

// AppendDisconnect appends "disconnect\n" to dst.
func AppendDisconnect(dst []byte) []byte {
	return append(append(dst, CmdDisconnect...), Delimiter)
}

// ReplyKind identifies a server reply.
type ReplyKind int

const (
	ReplyKindOK ReplyKind = iota
	ReplyKindDisconnected
	ReplyKindStop
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyKindOK:
		return ReplyOK
	case ReplyKindDisconnected:
		return ReplyDisconnected
	case ReplyKindStop:
		return ReplyStop
	default:
		return "unknown"
	}
}

// Reply is a parsed server message.
type Reply struct {
	Kind   ReplyKind
	Metric float64 // set for ReplyKindOK
}

// ParseReply parses one line received from the server.
func ParseReply(line []byte) (Reply, error) {
	line = trimLine(line)

	kind, arg, hasArg := bytes.Cut(line, []byte{':'})
	switch string(kind) {
	case ReplyOK:
		if !hasArg {
			return Reply{}, fmt.Errorf("%w: ok without metric", ErrUnexpectedMessage)
		}
		v, err := strconv.ParseFloat(string(arg), 64)
		if err != nil {
			return Reply{}, fmt.Errorf("%w: bad metric %q", ErrUnexpectedMessage, arg)
		}
		return Reply{Kind: ReplyKindOK, Metric: v}, nil
	case ReplyDisconnected:
		if !hasArg {
			return Reply{Kind: ReplyKindDisconnected}, nil
		}
	case ReplyStop:
		if !hasArg {
			return Reply{Kind: ReplyKindStop}, nil
		}
	}
	return Reply{}, fmt.Errorf("%w: %q", ErrUnexpectedMessage, line)
}

func trimLine(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{Delimiter})
	return bytes.TrimSuffix(line, []byte{'\r'})
}
