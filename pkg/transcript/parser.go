// Package transcript converts between flat prompts written with
// <|im_start|>/<|im_end|> turn markers and ordered role/content turns.
package transcript

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

const (
	StartMarker = "<|im_start|>"
	EndMarker   = "<|im_end|>"

	// DefaultRole is assigned when the prompt carries no turn markers.
	DefaultRole = "user"
)

// ErrMalformedPrompt is returned by a strict Parser when start and end
// markers are not paired.
var ErrMalformedPrompt = errors.New("malformed prompt")

var turnPattern = regexp.MustCompile(`(?s)<\|im_start\|>([\p{L}\p{N}_]+)(.*?)<\|im_end\|>`)

// Parser parses delimited prompts. The zero value is permissive.
type Parser struct {
	// Strict rejects prompts whose start and end marker counts differ.
	Strict bool
}

// Parse splits prompt into turns. Each turn is a start marker, a role made
// of word characters, a body, and an end marker; bodies are trimmed. A prompt
// with no complete turn becomes a single user turn holding the trimmed input.
func (p Parser) Parse(prompt string) ([]models.Turn, error) {
	if p.Strict {
		starts := strings.Count(prompt, StartMarker)
		ends := strings.Count(prompt, EndMarker)
		if starts != ends {
			return nil, fmt.Errorf("%w: %d start markers, %d end markers", ErrMalformedPrompt, starts, ends)
		}
	}

	matches := turnPattern.FindAllStringSubmatch(prompt, -1)
	if len(matches) == 0 {
		return []models.Turn{{Role: DefaultRole, Content: strings.TrimSpace(prompt)}}, nil
	}

	turns := make([]models.Turn, 0, len(matches))
	for _, m := range matches {
		turns = append(turns, models.Turn{
			Role:    m[1],
			Content: strings.TrimSpace(m[2]),
		})
	}
	return turns, nil
}

// Parse is the permissive parse used by the client; it never fails.
func Parse(prompt string) []models.Turn {
	turns, _ := Parser{}.Parse(prompt)
	return turns
}

// Serialize rebuilds a flat prompt from turns using the same markers.
func Serialize(turns []models.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(StartMarker)
		b.WriteString(t.Role)
		b.WriteString("\n")
		b.WriteString(t.Content)
		b.WriteString(EndMarker)
	}
	return b.String()
}
