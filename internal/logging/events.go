package logging

// Event types recorded at debug level with an "event" field.
const (
	EventServeStart = "serve.start"
	EventServeStop  = "serve.stop"

	EventMessageReceived = "message.received"
	EventCommand         = "message.command"

	EventTaskStart    = "task.start"
	EventTaskComplete = "task.complete"
	EventTaskTimeout  = "task.timeout"
	EventTaskAbort    = "task.abort"

	EventSessionSwitch = "session.switch"
	EventSessionReset  = "session.reset"
	EventSessionRecord = "session.record"

	EventMemorySave   = "memory.save"
	EventMemoryInject = "memory.inject"

	EventRegistryReload = "registry.reload"
)
