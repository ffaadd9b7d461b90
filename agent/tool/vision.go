package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	openaisdk "github.com/openai/openai-go"
)

const visionPrompt = `You are reading a photo of a competitor restaurant's menu board.
Extract every menu item you can see and respond with ONLY a JSON array.
Each element must be an object with string key "name", string key "category"
and numeric key "price". Use the category names Entree, Side, Drink or
Dessert. Do not include any text outside the JSON array.`

// CompetitorItem is one structured row extracted from a competitor menu image.
type CompetitorItem struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// ChatCompleter is the multimodal oracle behind menu_image.extract. Tests
// substitute a scripted fake.
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string, imageDataURL string) (string, error)
}

// VisionExtractor turns a competitor menu image into structured items.
type VisionExtractor struct {
	completer ChatCompleter
}

func NewVisionExtractor(completer ChatCompleter) (*VisionExtractor, error) {
	if completer == nil {
		return nil, errors.New("chat completer is required")
	}
	return &VisionExtractor{completer: completer}, nil
}

func (v *VisionExtractor) Extract(ctx context.Context, imagePath string) ([]CompetitorItem, error) {
	dataURL, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}

	out, err := v.completer.Complete(ctx, visionPrompt, dataURL)
	if err != nil {
		return nil, fmt.Errorf("vision completion: %w", err)
	}

	items, err := parseCompetitorItems(out)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func encodeImage(imagePath string) (string, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	mime := "image/png"
	switch strings.ToLower(filepath.Ext(imagePath)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".webp":
		mime = "image/webp"
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// parseCompetitorItems tolerates models that wrap the array in markdown
// fences or prose; it parses the outermost JSON array.
func parseCompetitorItems(out string) ([]CompetitorItem, error) {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in vision output")
	}

	var items []CompetitorItem
	if err := json.Unmarshal([]byte(out[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("parse vision output: %w", err)
	}
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("vision item %d has no name", i)
		}
	}
	return items, nil
}

// OpenAICompleter calls a multimodal chat model through the OpenAI SDK.
type OpenAICompleter struct {
	client *openaisdk.Client
	model  string
}

func NewOpenAICompleter(client *openaisdk.Client, model string) (*OpenAICompleter, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("vision model is required")
	}
	return &OpenAICompleter{client: client, model: model}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string, imageDataURL string) (string, error) {
	parts := []openaisdk.ChatCompletionContentPartUnionParam{
		openaisdk.TextContentPart(prompt),
		openaisdk.ImageContentPart(openaisdk.ChatCompletionContentPartImageImageURLParam{
			URL: imageDataURL,
		}),
	}

	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{openaisdk.UserMessage(parts)},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty vision completion")
	}
	return resp.Choices[0].Message.Content, nil
}
