package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/infrastructure/logger"
	"github.com/cinescribe/cinescribe/internal/port"
)

// VisualAnalyzer sends the sampled frames to a vision-capable chat
// model and parses its structured description of actions, characters
// and scene changes.
type VisualAnalyzer struct {
	client *Client
}

func NewVisualAnalyzer(client *Client) *VisualAnalyzer {
	return &VisualAnalyzer{client: client}
}

const visualPrompt = `You are analyzing still frames sampled from a video titled %q (duration %.0f seconds).
Each image is labeled with its timestamp. Respond with a JSON object:
{"actions":[{"description":"...","timestamp_seconds":0}],
 "characters":["..."],
 "scenes":[{"heading":"INT./EXT. location - time","start_seconds":0}]}
Describe observable actions only; do not invent dialogue.`

type visualResponse struct {
	Actions []struct {
		Description      string  `json:"description"`
		TimestampSeconds float64 `json:"timestamp_seconds"`
	} `json:"actions"`
	Characters []string `json:"characters"`
	Scenes     []struct {
		Heading      string  `json:"heading"`
		StartSeconds float64 `json:"start_seconds"`
	} `json:"scenes"`
}

func (v *VisualAnalyzer) Analyze(ctx context.Context, jobID string, frames []port.Frame, title string, durationSeconds float64) (*domain.VisualAnalysis, error) {
	content := []map[string]any{
		{"type": "text", "text": fmt.Sprintf(visualPrompt, title, durationSeconds)},
	}
	for _, frame := range frames {
		data, err := os.ReadFile(frame.Path)
		if err != nil {
			return nil, fmt.Errorf("read frame %s: %w", frame.Path, err)
		}
		content = append(content,
			map[string]any{"type": "text", "text": fmt.Sprintf("Frame at %.1fs:", frame.TimestampSeconds)},
			map[string]any{"type": "image_url", "image_url": map[string]string{
				"url": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
			}},
		)
	}

	raw, err := v.client.chat(ctx, v.client.visionModel, []chatMessage{{Role: "user", Content: content}}, true)
	if err != nil {
		return nil, fmt.Errorf("visual analysis: %w", err)
	}

	var parsed visualResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse visual analysis: %w", err)
	}

	analysis := &domain.VisualAnalysis{Characters: parsed.Characters}
	for _, a := range parsed.Actions {
		analysis.Actions = append(analysis.Actions, domain.ActionEntry{
			Description:      a.Description,
			TimestampSeconds: a.TimestampSeconds,
		})
	}
	for _, s := range parsed.Scenes {
		analysis.Scenes = append(analysis.Scenes, domain.Scene{
			Heading:      s.Heading,
			StartSeconds: s.StartSeconds,
		})
	}

	logger.Info.Printf("job %s: visual analysis found %d actions, %d scenes", jobID, len(analysis.Actions), len(analysis.Scenes))
	return analysis, nil
}

var _ port.VisualAnalyzer = (*VisualAnalyzer)(nil)
