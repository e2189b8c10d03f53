package scanning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultGeminiModel is used when no model is configured
const DefaultGeminiModel = "gemini-2.5-pro"

// Gemini implements the Scanner interface using Google Gemini.
// The API key is the per-request credential, so a client is created for every call.
type Gemini struct {
	modelName string
	opts      []option.ClientOption
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(modelName string, opts ...option.ClientOption) (*Gemini, error) {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &Gemini{
		modelName: modelName,
		opts:      opts,
	}, nil
}

// Extract sends the image and prompt in one GenerateContent call
func (g *Gemini) Extract(ctx context.Context, imageData []byte, credential string, prompt string) (string, error) {
	finalImageData, mimeType, err := prepareImageData(imageData)
	if err != nil {
		return "", err
	}

	opts := append([]option.ClientOption{option.WithAPIKey(credential)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", &APIError{Provider: "gemini", Err: fmt.Errorf("creating gemini client: %w", err)}
	}
	defer client.Close()

	// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
	parts := []genai.Part{
		genai.ImageData(strings.TrimPrefix(mimeType, "image/"), finalImageData),
		genai.Text(prompt),
	}

	resp, err := client.GenerativeModel(g.modelName).GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &APIError{Provider: "gemini", Message: "no response from gemini"}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return responseText.String(), nil
}

// classifyGeminiError separates rejected API keys from other failures
func classifyGeminiError(err error) *APIError {
	apiErr := &APIError{Provider: "gemini", Err: fmt.Errorf("generating content: %w", err)}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		apiErr.StatusCode = gErr.Code
		apiErr.Auth = gErr.Code == http.StatusUnauthorized || gErr.Code == http.StatusForbidden
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		apiErr.Auth = true
	}
	if strings.Contains(err.Error(), "API key not valid") {
		apiErr.Auth = true
	}
	return apiErr
}

// Close is a no-op; clients are closed after each call
func (g *Gemini) Close() error {
	return nil
}
