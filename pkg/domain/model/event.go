package model

import "encoding/json"

// ChatEventType identifies a chat stream event
type ChatEventType string

const (
	// ChatEventChunk carries one generated text fragment
	ChatEventChunk ChatEventType = "chunk"
	// ChatEventSource carries the cited note ID, emitted once before end
	ChatEventSource ChatEventType = "source"
	// ChatEventEnd terminates the stream
	ChatEventEnd ChatEventType = "end"
)

// ChatEvent is one event of the chat response stream. The JSON encoding
// matches the wire protocol consumed by the note workspace frontend:
// chunks serialize as {"content": ...}, the citation as
// {"type": "source", "source": id|null} and the terminator as
// {"type": "end"}.
type ChatEvent struct {
	Type    ChatEventType
	Content string
	Source  NoteID
}

// NewChunkEvent creates a text fragment event
func NewChunkEvent(content string) ChatEvent {
	return ChatEvent{Type: ChatEventChunk, Content: content}
}

// NewSourceEvent creates a citation event. An empty noteID serializes
// as a null source.
func NewSourceEvent(noteID NoteID) ChatEvent {
	return ChatEvent{Type: ChatEventSource, Source: noteID}
}

// NewEndEvent creates the stream terminator event
func NewEndEvent() ChatEvent {
	return ChatEvent{Type: ChatEventEnd}
}

// MarshalJSON encodes the event in its wire shape
func (e ChatEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case ChatEventSource:
		var source *NoteID
		if e.Source != "" {
			source = &e.Source
		}
		return json.Marshal(struct {
			Type   ChatEventType `json:"type"`
			Source *NoteID       `json:"source"`
		}{Type: e.Type, Source: source})

	case ChatEventEnd:
		return json.Marshal(struct {
			Type ChatEventType `json:"type"`
		}{Type: e.Type})

	default:
		return json.Marshal(struct {
			Content string `json:"content"`
		}{Content: e.Content})
	}
}
