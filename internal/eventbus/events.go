package eventbus

// Type names an event. Values are dotted "<subject>.<verb>" strings.
type Type string

const (
	ReminderArmed      Type = "reminder.armed"
	ReminderCancelled  Type = "reminder.cancelled"
	ReminderSuperseded Type = "reminder.superseded"
	ReminderFired      Type = "reminder.fired"

	DeliveryShown     Type = "delivery.shown"
	DeliveryDismissed Type = "delivery.dismissed"

	UpdateAvailable Type = "update.available"
	UpdateFailed    Type = "update.failed"
	UpdateInstalled Type = "update.installed"
)

// Emit publishes a typed event on b. A nil bus is ignored.
func Emit(b Bus, t Type, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: t, Data: data})
}
