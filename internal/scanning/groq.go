package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultGroqURL is the OpenAI-compatible endpoint of Groq
	DefaultGroqURL = "https://api.groq.com/openai/v1"
	// DefaultGroqModel is a vision-capable model served by Groq
	DefaultGroqModel = "meta-llama/llama-4-scout-17b-16e-instruct"
)

// Groq implements the Scanner interface against an OpenAI-compatible chat completions API.
// Any provider speaking that protocol can be reached by changing the base URL.
type Groq struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewGroq creates a new Groq Scanner instance
func NewGroq(baseURL string, modelName string) (*Groq, error) {
	if baseURL == "" {
		baseURL = DefaultGroqURL
	}
	if modelName == "" {
		modelName = DefaultGroqModel
	}

	return &Groq{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends the prompt and image as one multimodal user message
func (g *Groq) Extract(ctx context.Context, imageData []byte, credential string, prompt string) (string, error) {
	finalImageData, mimeType, err := prepareImageData(imageData)
	if err != nil {
		return "", err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(finalImageData))
	reqBody := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &APIError{Provider: "groq", Err: fmt.Errorf("calling groq API: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", newStatusError("groq", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &APIError{Provider: "groq", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(chatResp.Choices) == 0 {
		return "", &APIError{Provider: "groq", Message: "no response from groq"}
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Close closes the Groq client (no-op for HTTP client)
func (g *Groq) Close() error {
	return nil
}
