package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/localmind/assistant/internal/config"
)

func TestDetectTriggerRemember(t *testing.T) {
	assert.Equal(t, config.TriggerRemember, detectTrigger("Please remember that I prefer dark mode"))
}

func TestDetectTriggerTimeReference(t *testing.T) {
	assert.Equal(t, config.TriggerTimeReference, detectTrigger("What did we decide last week?"))
}

func TestDetectTriggerFactRecall(t *testing.T) {
	assert.Equal(t, config.TriggerFactRecall, detectTrigger("Did I mention my deployment schedule?"))
}

func TestDetectTriggerNoneByDefault(t *testing.T) {
	assert.Equal(t, config.TriggerNone, detectTrigger("What's the weather like?"))
}

func TestDetectTriggerRememberTakesPriorityOverTimeReference(t *testing.T) {
	assert.Equal(t, config.TriggerRemember, detectTrigger("Remember that yesterday I changed the config"))
}
