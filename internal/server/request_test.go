package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindgate/internal/core"
)

func TestParseChatRequest(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		wantModel  string
		wantPrompt string
		wantStream bool
		wantPoll   bool
		wantOpts   core.GenerationOptions
	}{
		{
			name:       "plain string uses default model",
			body:       `{"messages":[{"role":"system","content":"ignored"},{"role":"user","content":"a red fox"}]}`,
			wantModel:  "sora-2-free",
			wantPrompt: "a red fox",
		},
		{
			name:       "text parts are joined",
			body:       `{"model":"gemini-3-image","stream":true,"messages":[{"role":"user","content":[{"type":"text","text":"a"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"b"}]}]}`,
			wantModel:  "gemini-3-image",
			wantPrompt: "a\nb",
			wantStream: true,
		},
		{
			name:       "json object carries options",
			body:       `{"model":"gemini-3-i2i","messages":[{"role":"user","content":" {\"prompt\":\"blend\",\"size\":\"720x1280\",\"image\":\"https://x/1.png\",\"clientPoll\":true}"}]}`,
			wantModel:  "gemini-3-i2i",
			wantPrompt: "blend",
			wantPoll:   true,
			wantOpts:   core.GenerationOptions{Size: "720x1280", Images: []string{"https://x/1.png"}},
		},
		{
			name:       "broken json stays a prompt",
			body:       `{"messages":[{"role":"user","content":"{not json"}]}`,
			wantModel:  "sora-2-free",
			wantPrompt: "{not json",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := parseChatRequest([]byte(tc.body), "sora-2-free")
			require.NoError(t, err)

			assert.Equal(t, tc.wantModel, req.Model)
			assert.Equal(t, tc.wantModel, req.Generation.ModelKey)
			assert.Equal(t, tc.wantPrompt, req.Generation.Prompt)
			assert.Equal(t, tc.wantStream, req.Stream)
			assert.Equal(t, tc.wantPoll, req.ClientPoll)
			assert.Equal(t, tc.wantOpts, req.Generation.Options)
		})
	}
}

func TestParseChatRequestErrors(t *testing.T) {
	for _, body := range []string{`nope`, `{}`, `{"messages":"x"}`, `{"messages":[]}`} {
		_, err := parseChatRequest([]byte(body), "sora-2-free")
		assert.Equal(t, core.KindInvalidRequest, core.KindOf(err), body)
	}
}

func TestParseImageRequest(t *testing.T) {
	req, err := parseImageRequest([]byte(`{"prompt":"cat","model":"gemini-3-image","image":"https://x/1.png","image_1":"https://x/2.png"}`))
	require.NoError(t, err)

	assert.Equal(t, "cat", req.Prompt)
	assert.Equal(t, "gemini-3-image", req.ModelKey)
	assert.Equal(t, []string{"https://x/1.png", "https://x/2.png"}, req.Options.Images)
}
