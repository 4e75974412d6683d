package progressstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToWireFrame_ErrorTakesPrecedenceOverDone(t *testing.T) {
	frame := toWireFrame(Event{Percent: 40, Done: true, Error: "boom"})
	assert.Equal(t, wireFrame{Type: "error", Progress: 40}, frame)
}

func TestToWireFrame_DoneWithoutErrorIsComplete(t *testing.T) {
	frame := toWireFrame(Event{Percent: 100, Done: true})
	assert.Equal(t, wireFrame{Type: "complete", Progress: 100}, frame)
}

func TestToWireFrame_InProgressIsProcessing(t *testing.T) {
	frame := toWireFrame(Event{Percent: 55})
	assert.Equal(t, wireFrame{Type: "processing", Progress: 55}, frame)
}

func TestToWireFrame_OmitsInternalFields(t *testing.T) {
	frame := toWireFrame(Event{JobID: "qgen:1", Stage: "retrieve_generate", Percent: 10, Message: "detail"})
	assert.Equal(t, "processing", frame.Type)
	assert.Equal(t, 10, frame.Progress)
}
