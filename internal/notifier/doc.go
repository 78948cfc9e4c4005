// Package notifier provides a lightweight notification service.
//
// Notifications carry job briefings and operator alerts. A notification
// contains a priority, a target chat (optionally with a thread/topic), and
// send options such as "disable link preview".
//
// # Transport
//
// The service delegates delivery to a kit.Adapter implementation (e.g. the
// Telegram adapter). The adapter splits texts above the platform message
// limit on line boundaries and sends the parts in order, so a long briefing
// arrives as a readable sequence of messages.
//
// # History
//
// For debugging and operator visibility, the service keeps a small in-memory
// history of recently emitted notifications.
package notifier
