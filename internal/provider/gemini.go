package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"redline/internal/review"
)

var ErrInvalidJSON = errors.New("provider: invalid JSON from model")

const recognizePrompt = `You are reviewing an engineering drawing.
List every identifiable component in the image.
Respond with JSON: {"components":[{"type":"...","name":"...","description":"..."}]}`

const detectPrompt = `You are reviewing an engineering drawing for design errors.
Report each issue you find.
Respond with JSON: {"findings":[{"severity":"critical|warning|info","description":"...",
"recommendation":"...","confidence":0.0,"affectedReferences":["..."],"location":"...",
"detectionReason":"..."}]}`

const chatPromptHeader = `You are assisting an engineer curating design findings for a drawing.
You may answer questions, or propose exactly one change to the finding list.
Respond with JSON: {"reply":"...","action":"none|add|edit|delete|bulk-add","findings":[...]}.
Use action "none" when no change is proposed. For "edit" and "delete" the finding id
must match an existing finding.`

// GeminiConfig selects the models used per concern. The image model must be
// one capable of image output.
type GeminiConfig struct {
	APIKey      string
	VisionModel string
	ImageModel  string
}

// GeminiClient implements every collaborator contract on top of the official
// genai client.
type GeminiClient struct {
	cli         *genai.Client
	visionModel string
	imageModel  string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	vision := strings.TrimSpace(cfg.VisionModel)
	if vision == "" {
		vision = "gemini-2.5-flash"
	}
	image := strings.TrimSpace(cfg.ImageModel)
	if image == "" {
		image = "gemini-2.5-flash-image"
	}
	return &GeminiClient{cli: cli, visionModel: vision, imageModel: image}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.visionModel }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) RecognizeComponents(ctx context.Context, image []byte) ([]Component, error) {
	raw, err := g.generateJSON(ctx, imageParts(recognizePrompt, image))
	if err != nil {
		return nil, err
	}
	return decodeComponents(raw)
}

func (g *GeminiClient) DetectFindings(ctx context.Context, image []byte) ([]review.Finding, error) {
	raw, err := g.generateJSON(ctx, imageParts(detectPrompt, image))
	if err != nil {
		return nil, err
	}
	return decodeFindings(raw)
}

func (g *GeminiClient) GenerateAnnotated(ctx context.Context, image []byte, findings []review.Finding) ([]byte, error) {
	prompt := artifactPrompt("Annotate the drawing: mark each issue location with a callout; do not change the design.", findings)
	return g.generateImage(ctx, imageParts(prompt, image))
}

func (g *GeminiClient) GenerateCorrected(ctx context.Context, image []byte, findings []review.Finding) ([]byte, error) {
	prompt := artifactPrompt("Produce a corrected version of the drawing with every listed issue fixed.", findings)
	return g.generateImage(ctx, imageParts(prompt, image))
}

func (g *GeminiClient) Propose(ctx context.Context, req ChatRequest) (ChatTurn, error) {
	raw, err := g.generateJSON(ctx, []*genai.Part{{Text: chatPrompt(req)}})
	if err != nil {
		return ChatTurn{}, err
	}
	return ParseTurn(raw)
}

// generateJSON sends the parts and requests application/json, retrying
// transient failures with backoff.
func (g *GeminiClient) generateJSON(ctx context.Context, parts []*genai.Part) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.visionModel,
			[]*genai.Content{{Parts: parts}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		if err != nil {
			lastErr = err
		} else if txt := firstText(resp); txt == "" {
			lastErr = ErrInvalidJSON
		} else {
			return json.RawMessage(txt), nil
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
	}
	return nil, lastErr
}

// generateImage sends the parts to the image-output model and extracts the
// first inline image. Explanatory text without an image is a failure.
func (g *GeminiClient) generateImage(ctx context.Context, parts []*genai.Part) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.imageModel,
			[]*genai.Content{{Parts: parts}},
			&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
		)
		if err != nil {
			lastErr = err
		} else if img := firstImage(resp); len(img) > 0 {
			return img, nil
		} else {
			if txt := firstText(resp); txt != "" {
				log.Printf("gemini image call returned text only: %d bytes", len(txt))
			}
			lastErr = ErrNoArtifact
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
	}
	return nil, lastErr
}

func imageParts(prompt string, image []byte) []*genai.Part {
	parts := []*genai.Part{{Text: prompt}}
	if len(image) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/png", Data: image},
		})
	}
	return parts
}

func artifactPrompt(instruction string, findings []review.Finding) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n[FINDINGS]\n")
	for i, f := range findings {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, f.Severity, f.Description)
		if f.Recommendation != "" {
			fmt.Fprintf(&b, " Fix: %s", f.Recommendation)
		}
		if f.Location != "" {
			fmt.Fprintf(&b, " Location: %s", f.Location)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func chatPrompt(req ChatRequest) string {
	var b strings.Builder
	b.WriteString(chatPromptHeader)

	b.WriteString("\n\n[CURRENT FINDINGS]\n")
	in, _ := json.MarshalIndent(req.Findings, "", "  ")
	b.Write(in)

	if len(req.Components) > 0 {
		b.WriteString("\n\n[COMPONENTS]\n")
		comps, _ := json.MarshalIndent(req.Components, "", "  ")
		b.Write(comps)
	}

	if len(req.History) > 0 {
		b.WriteString("\n\n[CONVERSATION]\n")
		for _, m := range req.History {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}

	b.WriteString("\n[USER]\n")
	b.WriteString(req.UserText)
	return b.String()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			return part.Text
		}
	}
	return ""
}

func firstImage(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data
		}
	}
	return nil
}
