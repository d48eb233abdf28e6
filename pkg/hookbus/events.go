package hookbus

// Event is a lifecycle event plugins can hook into. The vocabulary is
// closed; the exact strings are the contract host collaborators code
// against.
type Event string

const (
	EventBeforeModelResolve Event = "before_model_resolve"
	EventBeforePromptBuild  Event = "before_prompt_build"
	EventBeforeAgentStart   Event = "before_agent_start"
	EventAgentEnd           Event = "agent_end"
	EventLLMInput           Event = "llm_input"
	EventLLMOutput          Event = "llm_output"
	EventBeforeToolCall     Event = "before_tool_call"
	EventAfterToolCall      Event = "after_tool_call"
	EventToolResultPersist  Event = "tool_result_persist"
	EventSessionStart       Event = "session_start"
	EventSessionEnd         Event = "session_end"
	EventGatewayStart       Event = "gateway_start"
	EventGatewayStop        Event = "gateway_stop"
)

// Events lists the full vocabulary in a stable order.
var Events = []Event{
	EventBeforeModelResolve,
	EventBeforePromptBuild,
	EventBeforeAgentStart,
	EventAgentEnd,
	EventLLMInput,
	EventLLMOutput,
	EventBeforeToolCall,
	EventAfterToolCall,
	EventToolResultPersist,
	EventSessionStart,
	EventSessionEnd,
	EventGatewayStart,
	EventGatewayStop,
}

var validEvents = func() map[Event]bool {
	m := make(map[Event]bool, len(Events))
	for _, e := range Events {
		m[e] = true
	}
	return m
}()

// ValidEvent reports whether the event name is part of the vocabulary.
func ValidEvent(event Event) bool {
	return validEvents[event]
}
