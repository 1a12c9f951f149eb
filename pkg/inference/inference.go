// Package inference sends multimodal prompts to a generative model and
// returns its text.
//
// A Provider speaks to one model. Client wraps a Provider with the credential
// lifecycle: the API key is loaded from a credential.Store, requested from
// the user when missing, and replaced when the service rejects it.
//
// Example usage:
//
//	client := inference.NewClient(store, prompter,
//	    inference.GeminiFactory(inference.WithModel("gemini-2.0-flash")), logger)
//	defer client.Close()
//
//	text, err := client.GenerateContent(ctx, []inference.Part{
//	    inference.Text("Which Pokémon is this?"),
//	    inference.InlineData("image/jpeg", frame.Data),
//	})
package inference

import "context"

// Provider generates text from an ordered sequence of parts.
type Provider interface {
	// GenerateContent sends parts as one request and returns the response text.
	GenerateContent(ctx context.Context, parts []Part) (string, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Part is one element of a request: either text or inline media.
type Part struct {
	// Text is a plain instruction. Empty when InlineData is set.
	Text string

	// InlineData is embedded media.
	InlineData *Blob
}

// Blob is inline media with its MIME type.
type Blob struct {
	MimeType string
	Data     string // base64
}

// Text creates a text part.
func Text(s string) Part {
	return Part{Text: s}
}

// InlineData creates an inline media part from a base64 payload.
func InlineData(mimeType, data string) Part {
	return Part{InlineData: &Blob{MimeType: mimeType, Data: data}}
}

// IsMedia reports whether the part carries inline media.
func (p Part) IsMedia() bool {
	return p.InlineData != nil
}
