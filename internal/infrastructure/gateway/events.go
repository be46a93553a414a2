package gateway

// Client-to-server event names.
const (
	EventAuthenticate = "authenticate"
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventHeartbeat    = "heartbeat"

	EventWhiteboardReplace  = "whiteboard-replace"
	EventElementCreate      = "element-create"
	EventElementUpdate      = "element-update"
	EventElementDelete      = "element-delete"
	EventWhiteboardLoad     = "whiteboard-load"
	EventWhiteboardSnapshot = "whiteboard-snapshot"
	EventWhiteboardRestore  = "whiteboard-restore"
	EventCursorMove         = "cursor-move"

	EventChatMessage = "chat-message"
	EventChatHistory = "chat-history"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"

	EventWebRTCOffer        = "webrtc-offer"
	EventWebRTCAnswer       = "webrtc-answer"
	EventWebRTCICECandidate = "webrtc-ice-candidate"
	EventCallInitiate       = "call-initiate"
)

// Server-to-client event names that do not come from a service broadcast.
const (
	EventConnected            = "connected"
	EventRoomJoined           = "room-joined"
	EventRoomLeft             = "room-left"
	EventWhiteboardLoaded     = "whiteboard-loaded"
	EventWhiteboardSnapshoted = "whiteboard-snapshotted"
	EventChatHistoryResult    = "chat-history"
	EventCursorMoved          = "cursor-moved"
	EventError                = "error"
	EventPong                 = "pong"
)
