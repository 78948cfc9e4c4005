package eventbus

// Event types published by briefbot components. Subscribers match on these
// prefixes (e.g. "job." for all job lifecycle events).
const (
	EventJobStarted   = "job.started"
	EventJobSucceeded = "job.succeeded"
	EventJobFailed    = "job.failed"
	EventJobSkipped   = "job.skipped"

	EventNotifyQueued  = "notifier.queued"
	EventNotifySent    = "notifier.sent"
	EventNotifyFailed  = "notifier.failed"
	EventNotifyDeduped = "notifier.deduped"
	EventNotifyDropped = "notifier.dropped"

	EventConfigReloaded = "config.reloaded"
)
