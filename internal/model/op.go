package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind       = errors.New("unknown entity kind")
	ErrUnknownOp         = errors.New("unknown operation")
	ErrOpNotSupported    = errors.New("operation not supported for entity kind")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("record not found")
)

// Op is a mutation a row action can request from the backend.
type Op string

const (
	OpDelete   Op = "delete"
	OpStart    Op = "start"
	OpPause    Op = "pause"
	OpComplete Op = "complete"
	OpAnswer   Op = "answer"
	OpEnd      Op = "end"
	OpFail     Op = "fail"
)

// kindOps lists the operations each kind accepts, in menu order.
var kindOps = map[Kind][]Op{
	KindProject:  {OpDelete},
	KindAgent:    {OpDelete},
	KindContact:  {OpDelete},
	KindCampaign: {OpStart, OpPause, OpComplete, OpDelete},
	KindCall:     {OpStart, OpAnswer, OpEnd, OpFail, OpDelete},
}

// OpsFor returns the operations kind supports.
func OpsFor(k Kind) []Op {
	return kindOps[k]
}

// ParseOp validates an operation name against a kind.
func ParseOp(k Kind, s string) (Op, error) {
	ops, ok := kindOps[k]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	for _, op := range ops {
		if string(op) == s {
			return op, nil
		}
	}
	for _, all := range kindOps {
		for _, op := range all {
			if string(op) == s {
				return "", fmt.Errorf("%w: %s %s", ErrOpNotSupported, s, k)
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, s)
}

// SoftDelete reports whether deleting kind only deactivates the record.
func SoftDelete(k Kind) bool {
	return k == KindProject || k == KindAgent
}

// NextCampaignStatus applies op to a campaign in status from.
// Starting requires pending, pausing requires active, and completing is
// allowed from any status.
func NextCampaignStatus(from string, op Op) (string, error) {
	switch op {
	case OpStart:
		if from != CampaignPending {
			return "", fmt.Errorf("%w: campaign is %s, not pending", ErrInvalidTransition, from)
		}
		return CampaignActive, nil
	case OpPause:
		if from != CampaignActive {
			return "", fmt.Errorf("%w: campaign is %s, not active", ErrInvalidTransition, from)
		}
		return CampaignPaused, nil
	case OpComplete:
		return CampaignCompleted, nil
	}
	return "", fmt.Errorf("%w: %s campaign", ErrOpNotSupported, op)
}

// NextCallStatus applies op to a call in status from. Starting rings an
// initiated call, answering needs a call that has not been answered yet,
// ending marks the call completed and failing marks it failed. Finished
// calls cannot move.
func NextCallStatus(from string, op Op) (string, error) {
	switch from {
	case CallCompleted, CallFailed, CallNoAnswer:
		return "", fmt.Errorf("%w: call already %s", ErrInvalidTransition, from)
	}
	switch op {
	case OpStart:
		if from != CallInitiated {
			return "", fmt.Errorf("%w: call is %s, not initiated", ErrInvalidTransition, from)
		}
		return CallRinging, nil
	case OpAnswer:
		if from == CallAnswered {
			return "", fmt.Errorf("%w: call already answered", ErrInvalidTransition)
		}
		return CallAnswered, nil
	case OpEnd:
		return CallCompleted, nil
	case OpFail:
		return CallFailed, nil
	}
	return "", fmt.Errorf("%w: %s call", ErrOpNotSupported, op)
}

// CallRoomName is the media room assigned to a call when it starts.
func CallRoomName(callID string) string {
	return "call-" + callID
}
