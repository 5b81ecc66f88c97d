// Package storage is the operator log of the app.
//
// It records:
//   - Finished deliveries (what was shown, when, and why it went away)
//   - Audit entries for dispatched commands
//
// Armed reminders are never persisted; they do not survive a restart.
package storage
