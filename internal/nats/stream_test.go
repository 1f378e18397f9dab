package nats

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

func TestEventSubject(t *testing.T) {
	tests := []struct {
		name           string
		userID, convID string
		eventType      model.EventType
		want           string
	}{
		{"plain", "u1", "c1", model.EventTypeCreated, "conv.u1.c1.event.created"},
		{"anonymous", "", "c1", model.EventTypeCompleted, "conv.anonymous.c1.event.completed"},
		{"email user", "ada@example.com", "c1", model.EventTypeDeleted, "conv.ada@example_com.c1.event.deleted"},
		{"wildcards", "u*", "c>1", model.EventTypeFailed, "conv.u_.c_1.event.failed"},
		{"whitespace", "a b", "c\t1", model.EventTypeAppended, "conv.a_b.c_1.event.appended"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EventSubject(tt.userID, tt.convID, tt.eventType); got != tt.want {
				t.Errorf("EventSubject = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStreamConfig(t *testing.T) {
	cfg := StreamConfig(720 * time.Hour)

	if cfg.Name != StreamName || cfg.MaxAge != 720*time.Hour {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.Subjects) != 1 || cfg.Subjects[0] != "conv.>" {
		t.Errorf("subjects = %v", cfg.Subjects)
	}
	if cfg.Retention != jetstream.LimitsPolicy {
		t.Errorf("retention = %v", cfg.Retention)
	}
}
