package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19room/internal/app/filter"
	"github.com/osa030/19room/internal/domain/room"
)

// RejectCodeHeader carries the filter code of a rejected request.
const RejectCodeHeader = "X-Reject-Code"

// Messages resolves user-facing text for rejection codes.
type Messages interface {
	GetMessage(code string) string
}

// toConnectError maps room and filter errors onto Connect codes.
func toConnectError(err error, messages Messages) error {
	var rejection *filter.RejectionError
	if errors.As(err, &rejection) {
		msg := rejection.Code
		if messages != nil {
			msg = messages.GetMessage(rejection.Code)
		}
		cerr := connect.NewError(connect.CodePermissionDenied, errors.New(msg))
		cerr.Meta().Set(RejectCodeHeader, rejection.Code)
		return cerr
	}

	var code connect.Code
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrNotInQueue):
		code = connect.CodeNotFound
	case errors.Is(err, room.ErrRoomBusy):
		code = connect.CodeUnavailable
	case errors.Is(err, room.ErrRoomFull):
		code = connect.CodeResourceExhausted
	case errors.Is(err, room.ErrNotAMember):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, room.ErrInvalidState):
		code = connect.CodeInvalidArgument
	case errors.Is(err, room.ErrPrivateRoom):
		code = connect.CodePermissionDenied
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	default:
		zlog.Error().Err(err).Msg("room service: internal error")
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
	return connect.NewError(code, err)
}
