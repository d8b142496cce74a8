package bridge

import (
	"github.com/bytedance/sonic"
)

// DoneLine terminates an SSE stream
const DoneLine = "data: [DONE]\n\n"

const finishStop = "stop"

type chunkDelta struct {
	Content string `json:"content"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChatChunk is an OpenAI chat.completion.chunk
type ChatChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionChoice struct {
	Index        int               `json:"index"`
	Message      completionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

// ChatCompletion is an OpenAI chat.completion
type ChatCompletion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
}

// CompletionID is the response id derived from the provider task
func CompletionID(taskID string) string {
	return "chatcmpl-" + taskID
}

// EncodeChunk renders c as one SSE data line
func EncodeChunk(s *Stream, c Chunk) ([]byte, error) {
	var finish *string
	if c.Final {
		reason := finishStop
		finish = &reason
	}
	payload, err := sonic.Marshal(ChatChunk{
		ID:      s.ID,
		Object:  "chat.completion.chunk",
		Created: s.Created,
		Model:   s.Model,
		Choices: []chunkChoice{{Delta: chunkDelta{Content: c.Text}, FinishReason: finish}},
	})
	if err != nil {
		return nil, err
	}
	line := make([]byte, 0, len(payload)+8)
	line = append(line, "data: "...)
	line = append(line, payload...)
	line = append(line, "\n\n"...)
	return line, nil
}

// NewChatCompletion builds a single non-streamed assistant message
func NewChatCompletion(id, model string, created int64, content string) ChatCompletion {
	return ChatCompletion{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []completionChoice{{
			Message:      completionMessage{Role: "assistant", Content: content},
			FinishReason: finishStop,
		}},
	}
}
