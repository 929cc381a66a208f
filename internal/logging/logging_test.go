package logging

import (
	"testing"

	"github.com/charmbracelet/log"
)

func TestLoggerInitializers(t *testing.T) {
	Init()
	if l := Logger(SourcePipeline); l == nil {
		t.Fatal("Logger returned nil")
	}

	SetLevel("debug")
	if got := baseLogger.GetLevel(); got != log.DebugLevel {
		t.Fatalf("got %v want debug", got)
	}
	SetLevel("bogus")
	if got := baseLogger.GetLevel(); got != log.DebugLevel {
		t.Fatalf("unknown level changed the logger to %v", got)
	}
	SetLevel("info")
}
