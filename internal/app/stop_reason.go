package app

// StopReason is logged on shutdown.
type StopReason string

const (
	StopSIGINT  StopReason = "sigint"
	StopSIGTERM StopReason = "sigterm"
	StopQuit    StopReason = "quit"
	StopUpdate  StopReason = "update"
	StopFatal   StopReason = "fatal"
)
