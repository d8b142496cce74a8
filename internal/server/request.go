package server

import (
	"strings"

	"github.com/tidwall/gjson"

	"mindgate/internal/core"
)

// chatRequest is the part of an OpenAI chat body the gateway understands
type chatRequest struct {
	Model      string
	Stream     bool
	ClientPoll bool
	Generation core.GenerationRequest
}

// parseChatRequest reads the last message as the prompt. A message whose
// text is a JSON object carries prompt, size, image, image_1 and clientPoll.
func parseChatRequest(body []byte, defaultModel string) (chatRequest, error) {
	if !gjson.ValidBytes(body) {
		return chatRequest{}, core.NewInvalidRequestError("invalid JSON body", nil)
	}
	root := gjson.ParseBytes(body)

	field := root.Get("messages")
	messages := field.Array()
	if !field.IsArray() || len(messages) == 0 {
		return chatRequest{}, core.NewInvalidRequestError("messages is required", nil)
	}

	req := chatRequest{
		Model:  strings.TrimSpace(root.Get("model").String()),
		Stream: root.Get("stream").Bool(),
	}
	if req.Model == "" {
		req.Model = defaultModel
	}

	text := messageText(messages[len(messages)-1].Get("content"))
	gen := core.GenerationRequest{ModelKey: req.Model, Prompt: text}

	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		opts := gjson.Parse(trimmed)
		gen.Prompt = opts.Get("prompt").String()
		gen.Options = generationOptions(opts)
		req.ClientPoll = opts.Get("clientPoll").Bool()
	}

	req.Generation = gen
	return req, nil
}

// messageText flattens string content or an array of text parts
func messageText(content gjson.Result) string {
	if content.IsArray() {
		var parts []string
		content.ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "text" {
				parts = append(parts, part.Get("text").String())
			}
			return true
		})
		return strings.Join(parts, "\n")
	}
	return content.String()
}

// generationOptions reads size, image and image_1 from a JSON object
func generationOptions(obj gjson.Result) core.GenerationOptions {
	opts := core.GenerationOptions{Size: strings.TrimSpace(obj.Get("size").String())}
	for _, key := range []string{"image", "image_1"} {
		if u := strings.TrimSpace(obj.Get(key).String()); u != "" {
			opts.Images = append(opts.Images, u)
		}
	}
	return opts
}

// parseImageRequest reads an OpenAI images.generations body
func parseImageRequest(body []byte) (core.GenerationRequest, error) {
	if !gjson.ValidBytes(body) {
		return core.GenerationRequest{}, core.NewInvalidRequestError("invalid JSON body", nil)
	}
	root := gjson.ParseBytes(body)
	return core.GenerationRequest{
		ModelKey: strings.TrimSpace(root.Get("model").String()),
		Prompt:   root.Get("prompt").String(),
		Options:  generationOptions(root),
	}, nil
}
