package orchestration

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-tutor/core/llms"
)

const retrievalToolName = "getInformation"

type retrievalParameters struct {
	Query string `json:"query" jsonschema:"description=What to look up in the course material"`
}

type microphoneParameters struct {
	IsMuted bool `json:"is_muted" jsonschema:"description=Whether the microphone should be muted"`
}

type languageParameters struct {
	Language string `json:"language" jsonschema:"description=BCP-47 code of the language,enum=en-US,enum=id-ID"`
}

// RetrievalTool declares the course material lookup. With a nil search the
// tool is declaration-only and is resolved by whoever serves the model; a
// reply that then holds no text is answered with the language's retrieval
// notice.
func RetrievalTool(search func(ctx context.Context, query string) (string, error)) llms.Tool {
	tool := llms.NewTool(retrievalToolName,
		"Look up relevant information in the course material for the student's question",
		func(ctx context.Context, parameters retrievalParameters) (string, error) {
			return search(ctx, parameters.Query)
		})
	if search == nil {
		return llms.Tool{Name: tool.Name, Description: tool.Description, Parameters: tool.Parameters}
	}
	return tool
}

func sessionTools(s *Session) []llms.Tool {
	return []llms.Tool{
		llms.NewTool("microphone_control", "Mute or unmute the student's microphone",
			func(_ context.Context, parameters microphoneParameters) (string, error) {
				s.SetMuted(parameters.IsMuted)
				return "Success. Respond with a very short phrase", nil
			}),
		llms.NewTool("language_control", "Switch the language of the conversation",
			func(_ context.Context, parameters languageParameters) (string, error) {
				if _, ok := findLanguage(s.languages, parameters.Language); !ok {
					return "", fmt.Errorf("unsupported language %q", parameters.Language)
				}
				s.SetLanguage(parameters.Language)
				return "Success. Respond with a very short phrase in the new language", nil
			}),
	}
}
