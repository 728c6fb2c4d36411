package models

// Realtime event names pushed over live connections.
const (
	EventMessageNew         = "message:new"
	EventMessageRead        = "message:read"
	EventNotificationNew    = "notification:new"
	EventNotificationDelete = "notification:delete"
	EventCommentLike        = "comment:like"
	EventCommentUnlike      = "comment:unlike"
	EventPostLike           = "post:like"
	EventPostUnlike         = "post:unlike"
	EventUserOnline         = "user:online"
	EventUserOffline        = "user:offline"
)
