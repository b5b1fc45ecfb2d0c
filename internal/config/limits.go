package config

const (
	// MaxMessageLength is the maximum length for a single chat message.
	// Keeps prompts inside provider context windows with room for the
	// system prompt and file-tree listing.
	MaxMessageLength = 100000

	// MaxCompletionPromptLength is the maximum length for an inline
	// completion prompt. The editor only sends a small window of lines
	// around the cursor, so anything larger is a client bug.
	MaxCompletionPromptLength = 20000

	// MaxRequestBodySize is the request body cap applied when parsing
	// JSON. Project trees with many files can get large.
	MaxRequestBodySize = 10 << 20
)
