package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// VideoMetadata is recorded when the source video becomes available.
type VideoMetadata struct {
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	Source          string  `json:"source"`
}

// DialogueEntry is one spoken line with its position in the video.
type DialogueEntry struct {
	Speaker      string  `json:"speaker"`
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
}

// ActionEntry is one visually observed event.
type ActionEntry struct {
	Description      string  `json:"description"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
}

// Scene is a location/setting change inferred from the frames.
type Scene struct {
	Heading      string  `json:"heading"`
	StartSeconds float64 `json:"start_seconds"`
}

type Transcript struct {
	Dialogue []DialogueEntry `json:"dialogue"`
	Speakers []string        `json:"speakers"`
}

func (t Transcript) clone() Transcript {
	c := Transcript{
		Dialogue: append([]DialogueEntry(nil), t.Dialogue...),
		Speakers: append([]string(nil), t.Speakers...),
	}
	return c
}

type VisualAnalysis struct {
	Actions    []ActionEntry `json:"actions"`
	Characters []string      `json:"characters"`
	Scenes     []Scene       `json:"scenes"`
}

func (v VisualAnalysis) clone() VisualAnalysis {
	return VisualAnalysis{
		Actions:    append([]ActionEntry(nil), v.Actions...),
		Characters: append([]string(nil), v.Characters...),
		Scenes:     append([]Scene(nil), v.Scenes...),
	}
}

// ScriptInput is the aggregate handed to the assembler: everything the
// pipeline extracted, possibly one-sided when a fan-out stage failed.
type ScriptInput struct {
	Title           string          `json:"title"`
	DurationSeconds float64         `json:"duration_seconds"`
	Dialogue        []DialogueEntry `json:"dialogue"`
	Speakers        []string        `json:"speakers"`
	Actions         []ActionEntry   `json:"actions"`
	Characters      []string        `json:"characters"`
	Scenes          []Scene         `json:"scenes"`
}

// scriptEvent is one line of the fallback listing, ordered by timestamp.
type scriptEvent struct {
	at       float64
	dialogue *DialogueEntry
	action   *ActionEntry
}

// FormatFallbackScript deterministically formats the accumulated dialogue
// and action data into a plain chronological listing. It performs no
// narrative inference and no I/O, and it never fails: given an empty
// aggregate it still produces a header and an empty-scene note. Used when
// the external assembler errors, so the job can complete with degraded
// rather than missing output.
func FormatFallbackScript(in ScriptInput) string {
	var b strings.Builder

	title := in.Title
	if title == "" {
		title = "UNTITLED"
	}
	b.WriteString(strings.ToUpper(title))
	b.WriteString("\n")
	if in.DurationSeconds > 0 {
		fmt.Fprintf(&b, "Running time: %s\n", FormatDuration(in.DurationSeconds))
	}
	if len(in.Characters) > 0 {
		fmt.Fprintf(&b, "Characters: %s\n", strings.Join(in.Characters, ", "))
	} else if len(in.Speakers) > 0 {
		fmt.Fprintf(&b, "Speakers: %s\n", strings.Join(in.Speakers, ", "))
	}
	b.WriteString("\n")

	events := make([]scriptEvent, 0, len(in.Dialogue)+len(in.Actions))
	for i := range in.Dialogue {
		events = append(events, scriptEvent{at: in.Dialogue[i].StartSeconds, dialogue: &in.Dialogue[i]})
	}
	for i := range in.Actions {
		events = append(events, scriptEvent{at: in.Actions[i].TimestampSeconds, action: &in.Actions[i]})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at < events[j].at })

	scenes := append([]Scene(nil), in.Scenes...)
	sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].StartSeconds < scenes[j].StartSeconds })

	if len(events) == 0 && len(scenes) == 0 {
		b.WriteString("(no dialogue or action captured)\n")
		return b.String()
	}

	nextScene := 0
	writeScenes := func(upTo float64) {
		for nextScene < len(scenes) && scenes[nextScene].StartSeconds <= upTo {
			heading := scenes[nextScene].Heading
			if heading == "" {
				heading = fmt.Sprintf("SCENE %d", nextScene+1)
			}
			fmt.Fprintf(&b, "%s\n\n", strings.ToUpper(heading))
			nextScene++
		}
	}

	for _, ev := range events {
		writeScenes(ev.at)
		stamp := FormatDuration(ev.at)
		if ev.dialogue != nil {
			speaker := ev.dialogue.Speaker
			if speaker == "" {
				speaker = "UNKNOWN"
			}
			fmt.Fprintf(&b, "[%s] %s\n%s\n\n", stamp, strings.ToUpper(speaker), ev.dialogue.Text)
		} else {
			fmt.Fprintf(&b, "[%s] %s\n\n", stamp, ev.action.Description)
		}
	}
	// Trailing scenes past the last event still get listed.
	writeScenes(math.MaxFloat64)

	return b.String()
}

// FormatDuration renders seconds as m:ss or h:mm:ss for script timestamps.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0:00"
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
