package logger

import (
	"testing"
)

func TestLogger(t *testing.T) {
	t.Run("SetLevelPropagatesToDerivedLoggers", func(t *testing.T) {
		log, err := New(Config{Level: "info", Format: "json"})
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		derived := log.WithComponent("server").WithRequestID("req-1")

		if err := log.SetLevel("debug"); err != nil {
			t.Fatalf("Failed to set level: %v", err)
		}
		if derived.Level() != "debug" {
			t.Errorf("Expected derived level debug, got %s", derived.Level())
		}
	})

	t.Run("RejectsUnknownLevel", func(t *testing.T) {
		if _, err := New(Config{Level: "loud", Format: "json"}); err == nil {
			t.Error("Expected error for unknown level")
		}
		if err := NewNop().SetLevel("loud"); err == nil {
			t.Error("Expected error for unknown level")
		}
	})

	t.Run("SensitiveHeaders", func(t *testing.T) {
		if !isSensitiveHeader("Authorization") || !isSensitiveHeader("X-Api-Key") {
			t.Error("Auth headers should be sensitive")
		}
		if isSensitiveHeader("Content-Type") {
			t.Error("Content-Type should not be sensitive")
		}
	})
}
