package scanning

import "context"

// Scanner defines the interface for the remote vision model that reads receipts
type Scanner interface {
	// Extract sends the image and prompt in a single request and returns the model's raw text.
	// The credential is supplied per call; implementations never retry.
	Extract(ctx context.Context, imageData []byte, credential string, prompt string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
