// Package pokedex identifies Pokémon in camera frames and announces
// confident sightings.
package pokedex

import (
	"github.com/teslashibe/go-pokedex/pkg/camera"
	"github.com/teslashibe/go-pokedex/pkg/inference"
)

// Prompt instructs the model to answer with a single Result object.
const Prompt = `Identify the Pokémon in the image using the official Pokédex as reference.
Return JSON in exactly this format:
{"name": "Pokémon name", "number": Pokédex number, "probability": 0.99}
The answer must be ONLY the JSON object, with no additional text or formatting.
If the image does not contain a recognized Pokémon, return {"name": "Unknown", "number": 0, "probability": 0.0}.
Favour accuracy and avoid guessing.`

// BuildRequest returns the two-part request for a frame: the prompt followed
// by the JPEG payload.
func BuildRequest(frame camera.Frame) []inference.Part {
	mime := frame.MimeType
	if mime == "" {
		mime = camera.MimeJPEG
	}
	return []inference.Part{
		inference.Text(Prompt),
		inference.InlineData(mime, frame.Data),
	}
}
