package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/infrastructure/logger"
	"github.com/cinescribe/cinescribe/internal/port"
)

// Transcriber turns a job's audio track into dialogue entries via the
// transcription endpoint. Speaker attribution is not part of the
// whisper output, so all dialogue is attributed to a single narrator
// placeholder the assembler can refine.
type Transcriber struct {
	client *Client
}

func NewTranscriber(client *Client) *Transcriber {
	return &Transcriber{client: client}
}

type transcriptionResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (t *Transcriber) Transcribe(ctx context.Context, jobID, audioPath string) (*domain.Transcript, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer file.Close() //nolint:errcheck

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy audio into request: %w", err)
	}
	_ = writer.WriteField("model", t.client.transcribeModel)
	_ = writer.WriteField("response_format", "verbose_json")
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.client.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.client.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transcription response: %w", err)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse transcription response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("transcription error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription failed with status %d", resp.StatusCode)
	}

	transcript := segmentsToTranscript(parsed)
	logger.Info.Printf("job %s: transcribed %d dialogue entries", jobID, len(transcript.Dialogue))
	return transcript, nil
}

const defaultSpeaker = "SPEAKER"

func segmentsToTranscript(resp transcriptionResponse) *domain.Transcript {
	transcript := &domain.Transcript{Speakers: []string{defaultSpeaker}}

	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		transcript.Dialogue = append(transcript.Dialogue, domain.DialogueEntry{
			Speaker:      defaultSpeaker,
			Text:         text,
			StartSeconds: seg.Start,
		})
	}

	// Some responses carry only the flat text field.
	if len(transcript.Dialogue) == 0 {
		if text := strings.TrimSpace(resp.Text); text != "" {
			transcript.Dialogue = append(transcript.Dialogue, domain.DialogueEntry{
				Speaker: defaultSpeaker,
				Text:    text,
			})
		}
	}

	return transcript
}

var _ port.Transcriber = (*Transcriber)(nil)
