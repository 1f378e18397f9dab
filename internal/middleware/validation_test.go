package middleware

import (
	"errors"
	"strings"
	"testing"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

func ptr[T any](v T) *T { return &v }

func fields(t *testing.T, err error) []string {
	t.Helper()
	if err == nil {
		return nil
	}
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	out := make([]string, 0, len(verr.Details))
	for _, d := range verr.Details {
		out = append(out, d.Field)
	}
	return out
}

func TestValidateChatRequest(t *testing.T) {
	valid := []model.Message{{Role: model.RoleUser, Content: "hi"}}

	tests := []struct {
		name string
		req  model.ChatRequest
		want []string
	}{
		{name: "minimal", req: model.ChatRequest{Messages: valid}},
		{name: "all params", req: model.ChatRequest{Messages: valid, Model: "gpt-4o", Temperature: ptr(2.0), MaxTokens: ptr(4000), ConversationID: "abc-123"}},
		{name: "no messages", req: model.ChatRequest{}, want: []string{"messages"}},
		{name: "bad role", req: model.ChatRequest{Messages: []model.Message{{Role: "tool", Content: "x"}}}, want: []string{"messages[0].role"}},
		{name: "empty content", req: model.ChatRequest{Messages: []model.Message{{Role: model.RoleUser}}}, want: []string{"messages[0].content"}},
		{name: "temperature too high", req: model.ChatRequest{Messages: valid, Temperature: ptr(2.5)}, want: []string{"temperature"}},
		{name: "negative temperature", req: model.ChatRequest{Messages: valid, Temperature: ptr(-0.1)}, want: []string{"temperature"}},
		{name: "zero max tokens", req: model.ChatRequest{Messages: valid, MaxTokens: ptr(0)}, want: []string{"maxTokens"}},
		{name: "max tokens too high", req: model.ChatRequest{Messages: valid, MaxTokens: ptr(4001)}, want: []string{"maxTokens"}},
		{name: "bad conversation id", req: model.ChatRequest{Messages: valid, ConversationID: "a.b"}, want: []string{"conversationId"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fields(t, ValidateChatRequest(&tt.req))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("fields = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateCreateConversation(t *testing.T) {
	tests := []struct {
		name string
		req  model.CreateConversationRequest
		want []string
	}{
		{name: "valid", req: model.CreateConversationRequest{Title: "Trip planning"}},
		{name: "empty title", req: model.CreateConversationRequest{}, want: []string{"title"}},
		{name: "blank title", req: model.CreateConversationRequest{Title: "   "}, want: []string{"title"}},
		{name: "100 chars", req: model.CreateConversationRequest{Title: strings.Repeat("é", 100)}},
		{name: "101 chars", req: model.CreateConversationRequest{Title: strings.Repeat("a", 101)}, want: []string{"title"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fields(t, ValidateCreateConversation(&tt.req))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("fields = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateUpdateConversation(t *testing.T) {
	if got := fields(t, ValidateUpdateConversation(&model.UpdateConversationRequest{})); len(got) != 1 || got[0] != "body" {
		t.Errorf("empty update fields = %v", got)
	}
	empty := []model.Message{}
	if err := ValidateUpdateConversation(&model.UpdateConversationRequest{Messages: &empty}); err != nil {
		t.Errorf("clearing messages should be valid: %v", err)
	}
	if got := fields(t, ValidateUpdateConversation(&model.UpdateConversationRequest{Title: ptr("")})); len(got) != 1 || got[0] != "title" {
		t.Errorf("empty title fields = %v", got)
	}
}

func TestValidateAppendMessage(t *testing.T) {
	if err := ValidateAppendMessage(&model.AppendMessageRequest{Role: model.RoleAssistant, Content: "ok"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	got := fields(t, ValidateAppendMessage(&model.AppendMessageRequest{Role: model.RoleSystem}))
	if strings.Join(got, ",") != "role,content" {
		t.Errorf("fields = %v", got)
	}
}

func TestValidatePagination(t *testing.T) {
	tests := []struct {
		limit, offset     string
		wantLimit, wantOff int
		wantErr           bool
	}{
		{"", "", DefaultPageLimit, 0, false},
		{"10", "20", 10, 20, false},
		{"100", "0", 100, 0, false},
		{"0", "", 0, 0, true},
		{"101", "", 0, 0, true},
		{"abc", "", 0, 0, true},
		{"10", "-1", 0, 0, true},
	}

	for _, tt := range tests {
		limit, offset, err := ValidatePagination(tt.limit, tt.offset)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePagination(%q, %q) error = %v", tt.limit, tt.offset, err)
			continue
		}
		if !tt.wantErr && (limit != tt.wantLimit || offset != tt.wantOff) {
			t.Errorf("ValidatePagination(%q, %q) = %d, %d", tt.limit, tt.offset, limit, offset)
		}
	}
}

func TestValidateConversationIDs(t *testing.T) {
	ids, err := ValidateConversationIDs("a, b,,c")
	if err != nil || strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("ids = %v, err = %v", ids, err)
	}
	if _, err := ValidateConversationIDs(" , "); err == nil {
		t.Error("expected error for empty list")
	}
	if _, err := ValidateConversationIDs("ok,not ok"); err == nil {
		t.Error("expected error for invalid id")
	}
}
