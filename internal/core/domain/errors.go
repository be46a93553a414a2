package domain

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrOwnerNotFound      = errors.New("room owner not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrElementNotFound    = errors.New("element not found")
	ErrSnapshotNotFound   = errors.New("snapshot not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrNotRoomMember      = errors.New("not a room member")
	ErrOwnerOnly          = errors.New("owner-only operation")
	ErrParticipantLimit   = errors.New("room participant limit reached")
	ErrCallLimit          = errors.New("call participant limit reached")
	ErrBackendUnavailable = errors.New("backend unavailable")
)
