package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindgate/internal/core"
)

func TestPipeSendAfterDetach(t *testing.T) {
	p := newPipe(0)
	p.Detach()
	p.Detach()

	done := make(chan bool)
	go func() { done <- p.Send(Chunk{Text: "x"}) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Send blocked after Detach")
	}
}

func TestPipeCloseIsIdempotent(t *testing.T) {
	p := newPipe(2)
	require.True(t, p.Send(Chunk{Text: "a"}))
	p.Close()
	p.Close()

	var got []string
	for c := range p.Chunks() {
		got = append(got, c.Text)
	}
	assert.Equal(t, []string{"a"}, got)
}

func TestHandleBookExpiry(t *testing.T) {
	now := time.Date(2025, 11, 22, 10, 0, 0, 0, time.UTC)
	book := NewHandleBook(time.Minute)
	book.now = func() time.Time { return now }

	book.Put(core.TaskHandle{TaskID: "T1", Credential: "tok-a"})
	h, ok := book.Get("T1")
	require.True(t, ok)
	assert.Equal(t, core.Credential("tok-a"), h.Credential)

	now = now.Add(2 * time.Minute)
	_, ok = book.Get("T1")
	assert.False(t, ok)

	book.Put(core.TaskHandle{TaskID: "T2"})
	now = now.Add(2 * time.Minute)
	book.Put(core.TaskHandle{TaskID: "T3"})
	assert.Equal(t, 1, book.Len())
}
