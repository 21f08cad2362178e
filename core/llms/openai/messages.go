package openai

import (
	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-tutor/core/llms"
)

type openAIMessage struct {
	Type messageType `json:"type"`

	Role    messageRole `json:"role,omitempty"`
	Content any         `json:"content,omitempty"`

	ToolCallID        string `json:"call_id,omitempty"`
	ToolCallName      string `json:"name,omitempty"`
	ToolCallArguments string `json:"arguments,omitempty"`
	ToolCallOutput    string `json:"output,omitempty"`
	ToolCallStatus    string `json:"status,omitempty"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type openAITool struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type messageRole string

const (
	messageRoleDeveloper messageRole = "developer"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type messageType string

const (
	messageTypeMessage            messageType = "message"
	messageTypeFunctionCall       messageType = "function_call"
	messageTypeFunctionCallOutput messageType = "function_call_output"
)

func toOpenAIMessages(instructions string, turns []llms.Turn) []openAIMessage {
	messages := []openAIMessage{}
	if instructions != "" {
		messages = append(messages, openAIMessage{
			Role:    messageRoleDeveloper,
			Type:    messageTypeMessage,
			Content: instructions,
		})
	}

	for _, turn := range turns {
		switch turn.Role {
		case llms.TurnRoleUser:
			messages = append(messages, openAIMessage{
				Type:    messageTypeMessage,
				Role:    messageRoleUser,
				Content: turn.Content,
			})

		case llms.TurnRoleAssistant:
			messages = append(messages, toolCallMessages(turn.ToolCalls)...)
			if turn.Content == "" {
				continue
			}
			messages = append(messages, openAIMessage{
				Type:    messageTypeMessage,
				Role:    messageRoleAssistant,
				Content: turn.Content,
			})
		}
	}
	return messages
}

func toolCallMessages(toolCalls []llms.ToolCall) []openAIMessage {
	messages := []openAIMessage{}
	for _, toolCall := range toolCalls {
		messages = append(messages, openAIMessage{
			Type:              messageTypeFunctionCall,
			ToolCallID:        toolCall.ID,
			ToolCallName:      toolCall.Name,
			ToolCallArguments: toolCall.Arguments,
			ToolCallStatus:    "completed",
		})
		if toolCall.Response != "" {
			messages = append(messages, openAIMessage{
				Type:           messageTypeFunctionCallOutput,
				ToolCallID:     toolCall.ID,
				ToolCallOutput: toolCall.Response,
			})
		}
	}
	return messages
}

// userPrompt builds the user message for the current prompt, attaching the
// image as a separate content part when present.
func userPrompt(prompt string, imageURL string) openAIMessage {
	if imageURL == "" {
		return openAIMessage{Type: messageTypeMessage, Role: messageRoleUser, Content: prompt}
	}

	return openAIMessage{
		Type: messageTypeMessage,
		Role: messageRoleUser,
		Content: []contentPart{
			{Type: "input_text", Text: prompt},
			{Type: "input_image", ImageURL: imageURL},
		},
	}
}

func toOpenAITools(tools []llms.Tool) []openAITool {
	openAITools := make([]openAITool, 0, len(tools))
	for _, tool := range tools {
		openAITools = append(openAITools, openAITool{
			Type:        "function",
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return openAITools
}

func languageInstruction(language string) string {
	switch language {
	case "":
		return ""
	case "en-US":
		return "Reply in English."
	case "id-ID":
		return "Reply in Indonesian (Bahasa Indonesia)."
	}
	return "Reply in the language with BCP-47 code " + language + "."
}
