package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/port"
)

// Assembler asks a chat model to weave the extracted dialogue and
// visual data into screenplay-formatted text. Its failures are always
// recovered by the caller's fallback formatter, so it returns errors
// freely rather than degrading its own output.
type Assembler struct {
	client *Client
}

func NewAssembler(client *Client) *Assembler {
	return &Assembler{client: client}
}

const assemblySystemPrompt = `You are a screenwriter. Given structured dialogue and visual data
extracted from a video, produce a screenplay in standard format: scene headings in caps,
action lines in present tense, character names centered above their dialogue.
Use only the provided material; keep every dialogue line, in chronological order.
Respond with the screenplay text only.`

func (a *Assembler) Assemble(ctx context.Context, jobID string, input domain.ScriptInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal script input: %w", err)
	}

	messages := []chatMessage{
		{Role: "system", Content: assemblySystemPrompt},
		{Role: "user", Content: string(payload)},
	}

	script, err := a.client.chat(ctx, a.client.scriptModel, messages, false)
	if err != nil {
		return "", fmt.Errorf("assembly: %w", err)
	}

	script = strings.TrimSpace(script)
	if script == "" {
		return "", fmt.Errorf("assembly for job %s returned empty script", jobID)
	}
	return script, nil
}

var _ port.Assembler = (*Assembler)(nil)
