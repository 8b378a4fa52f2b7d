package pipeline

import (
	"fmt"

	"github.com/ankogit/4duk-recorder/internal/container"
)

// CommandType names a request to a Session.
type CommandType string

const (
	CmdInit           CommandType = "init"
	CmdPushInputData  CommandType = "pushInputData"
	CmdGetEncodedData CommandType = "getEncodedData"
	CmdDone           CommandType = "done"
)

// ReplyType names the data a Session hands back.
type ReplyType string

const (
	ReplyEncodedData     ReplyType = "encodedData"
	ReplyLastEncodedData ReplyType = "lastEncodedData"
)

// Command is one request. Kind and Options are read by CmdInit, Buffers by
// CmdPushInputData.
type Command struct {
	Type    CommandType
	Kind    container.Kind
	Options Options
	Buffers [][]float32
}

// Reply carries pages back to the caller.
type Reply struct {
	Type  ReplyType
	Pages [][]byte
}

// Session maps the message protocol onto an Encoder.
type Session struct {
	enc Encoder
}

// Encoder returns the active encoder, or nil before init.
func (s *Session) Encoder() Encoder { return s.enc }

// Dispatch runs cmd. Only CmdGetEncodedData and CmdDone produce a reply.
func (s *Session) Dispatch(cmd Command) (*Reply, error) {
	if cmd.Type == CmdInit {
		if s.enc != nil {
			return nil, &StateError{Op: string(cmd.Type), State: Ready}
		}
		enc, err := Open(cmd.Kind, cmd.Options)
		if err != nil {
			return nil, err
		}
		s.enc = enc
		return nil, nil
	}

	if s.enc == nil {
		return nil, &StateError{Op: string(cmd.Type), State: Uninitialized}
	}
	switch cmd.Type {
	case CmdPushInputData:
		return nil, s.enc.PushInput(cmd.Buffers)
	case CmdGetEncodedData:
		pages, err := s.enc.Flush()
		if err != nil {
			return nil, err
		}
		return &Reply{Type: ReplyEncodedData, Pages: pages}, nil
	case CmdDone:
		pages, err := s.enc.Finalize()
		if err != nil {
			return nil, err
		}
		return &Reply{Type: ReplyLastEncodedData, Pages: pages}, nil
	default:
		return nil, fmt.Errorf("pipeline: unknown command %q", cmd.Type)
	}
}
