package llms

type StreamingPromptOptions struct {
	Instructions string
	Turns        []Turn
	// ImageURL is attached to the prompt as an image input, usually a data
	// URI of the current canvas.
	ImageURL string
	// Language is the BCP-47 code the reply should be written in.
	Language string
	Tools    []Tool
}

type StreamingPromptOption func(*StreamingPromptOptions)

// WithSystemPrompt sets the instructions for the prompt.
// Repeating this option will overwrite the previous instructions.
func WithSystemPrompt(prompt string) StreamingPromptOption {
	return func(opts *StreamingPromptOptions) { opts.Instructions = prompt }
}

// WithTurns sets the conversation history preceding the prompt.
func WithTurns(turns ...Turn) StreamingPromptOption {
	return func(opts *StreamingPromptOptions) { opts.Turns = turns }
}

func WithImageURL(imageURL string) StreamingPromptOption {
	return func(opts *StreamingPromptOptions) { opts.ImageURL = imageURL }
}

func WithLanguage(language string) StreamingPromptOption {
	return func(opts *StreamingPromptOptions) { opts.Language = language }
}

// WithTools appends tools the model may call while answering.
func WithTools(tools ...Tool) StreamingPromptOption {
	return func(opts *StreamingPromptOptions) { opts.Tools = append(opts.Tools, tools...) }
}
