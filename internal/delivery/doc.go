// Package delivery presents fired reminders on a Surface, one at a time, and
// dismisses them on user action or after a self-dismiss timeout.
package delivery
