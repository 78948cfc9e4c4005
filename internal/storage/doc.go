// Package storage provides a minimal persistence layer used by the bot.
//
// It currently supports:
//   - Audit log appends (job runs and operator actions)
//   - Notifier dedup state (to survive restarts)
//   - Seen-item markers for feed jobs (built on dedup state)
package storage
