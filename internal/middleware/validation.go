package middleware

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/chat"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

const (
	maxContentLength      = 100000
	maxSystemPromptLength = 10000
	maxTitleLength        = 100
	maxModelLength        = 128
	maxMessages           = 500

	// DefaultPageLimit is used when a list request has no limit.
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size of list requests.
	MaxPageLimit = 100
	// MaxBulkDelete caps the number of ids in one bulk delete.
	MaxBulkDelete = 100
)

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) string {
	if len(content) == 0 {
		return "content cannot be empty"
	}
	if len(content) > maxContentLength {
		return "content exceeds maximum length"
	}
	if !utf8.ValidString(content) {
		return "content must be valid UTF-8"
	}
	return ""
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if !conversationIDPattern.MatchString(id) {
		return model.NewValidationError("id", "invalid conversation ID format")
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) string {
	if !utf8.ValidString(title) {
		return "title must be valid UTF-8"
	}
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n == 0 {
		return "title cannot be empty"
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Sprintf("title exceeds %d characters", maxTitleLength)
	}
	return ""
}

// ValidateChatRequest validates the body of POST /chat.
func ValidateChatRequest(req *model.ChatRequest) error {
	verr := &model.ValidationError{}

	if len(req.Messages) == 0 {
		verr.Add("messages", "at least one message is required")
	}
	if len(req.Messages) > maxMessages {
		verr.Add("messages", fmt.Sprintf("at most %d messages are allowed", maxMessages))
	}
	validateMessages(verr, "messages", req.Messages)

	if req.ConversationID != "" && !conversationIDPattern.MatchString(req.ConversationID) {
		verr.Add("conversationId", "invalid conversation ID format")
	}
	if len(req.Model) > maxModelLength {
		verr.Add("model", "model exceeds maximum length")
	}
	if t := req.Temperature; t != nil && (*t < chat.MinTemperature || *t > chat.MaxTemperature) {
		verr.Add("temperature", fmt.Sprintf("must be between %g and %g", chat.MinTemperature, chat.MaxTemperature))
	}
	if m := req.MaxTokens; m != nil && (*m < chat.MinMaxTokens || *m > chat.MaxMaxTokens) {
		verr.Add("maxTokens", fmt.Sprintf("must be between %d and %d", chat.MinMaxTokens, chat.MaxMaxTokens))
	}
	if len(req.SystemPrompt) > maxSystemPromptLength {
		verr.Add("systemPrompt", "system prompt exceeds maximum length")
	}

	return verr.OrNil()
}

// ValidateCreateConversation validates the body of POST /conversations.
func ValidateCreateConversation(req *model.CreateConversationRequest) error {
	verr := &model.ValidationError{}

	if msg := ValidateTitle(req.Title); msg != "" {
		verr.Add("title", msg)
	}
	if len(req.Model) > maxModelLength {
		verr.Add("model", "model exceeds maximum length")
	}
	if len(req.SystemPrompt) > maxSystemPromptLength {
		verr.Add("systemPrompt", "system prompt exceeds maximum length")
	}

	return verr.OrNil()
}

// ValidateUpdateConversation validates the body of PUT /conversations/{id}.
func ValidateUpdateConversation(req *model.UpdateConversationRequest) error {
	verr := &model.ValidationError{}

	if req.Title == nil && req.Messages == nil {
		verr.Add("body", "title or messages is required")
	}
	if req.Title != nil {
		if msg := ValidateTitle(*req.Title); msg != "" {
			verr.Add("title", msg)
		}
	}
	if req.Messages != nil {
		if len(*req.Messages) > maxMessages {
			verr.Add("messages", fmt.Sprintf("at most %d messages are allowed", maxMessages))
		}
		validateMessages(verr, "messages", *req.Messages)
	}

	return verr.OrNil()
}

// ValidateAppendMessage validates the body of PATCH /conversations/{id}.
// Only user and assistant messages can be appended.
func ValidateAppendMessage(req *model.AppendMessageRequest) error {
	verr := &model.ValidationError{}

	if req.Role != model.RoleUser && req.Role != model.RoleAssistant {
		verr.Add("role", "must be user or assistant")
	}
	if msg := ValidateMessageContent(req.Content); msg != "" {
		verr.Add("content", msg)
	}

	return verr.OrNil()
}

// ValidatePagination parses the limit and offset query parameters.
func ValidatePagination(rawLimit, rawOffset string) (limit, offset int, err error) {
	verr := &model.ValidationError{}
	limit = DefaultPageLimit

	if rawLimit != "" {
		n, convErr := strconv.Atoi(rawLimit)
		if convErr != nil || n < 1 || n > MaxPageLimit {
			verr.Add("limit", fmt.Sprintf("must be an integer between 1 and %d", MaxPageLimit))
		} else {
			limit = n
		}
	}
	if rawOffset != "" {
		n, convErr := strconv.Atoi(rawOffset)
		if convErr != nil || n < 0 {
			verr.Add("offset", "must be a non-negative integer")
		} else {
			offset = n
		}
	}

	if err := verr.OrNil(); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// ValidateConversationIDs parses the comma separated ids of a bulk delete.
func ValidateConversationIDs(raw string) ([]string, error) {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return nil, model.NewValidationError("ids", "at least one id is required")
	}
	if len(ids) > MaxBulkDelete {
		return nil, model.NewValidationError("ids", fmt.Sprintf("at most %d ids are allowed", MaxBulkDelete))
	}
	for _, id := range ids {
		if !conversationIDPattern.MatchString(id) {
			return nil, model.NewValidationError("ids", fmt.Sprintf("invalid conversation ID %q", id))
		}
	}
	return ids, nil
}

func validateMessages(verr *model.ValidationError, field string, messages []model.Message) {
	for i, msg := range messages {
		if !msg.Role.Valid() {
			verr.Add(fmt.Sprintf("%s[%d].role", field, i), "must be user, assistant or system")
		}
		if reason := ValidateMessageContent(msg.Content); reason != "" {
			verr.Add(fmt.Sprintf("%s[%d].content", field, i), reason)
		}
	}
}
