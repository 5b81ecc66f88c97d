// Package reminder turns "remind me at HH:MM" requests into one-shot
// deferred callbacks.
//
// A single goroutine owns every armed reminder (a min-heap ordered by target
// instant), so firing order follows the absolute target time, not the order of
// Schedule calls. Each armed reminder is returned as a cancellable Handle, and
// arming a reminder with the same key supersedes the earlier one.
//
// Past times follow an explicit Policy: roll over to the next day (default),
// fire immediately, or reject.
//
// Reminders are in-memory only and are dropped on Stop.
package reminder
