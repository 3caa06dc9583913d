package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSubmitter writes the call as JSON for an external signer
type FileSubmitter struct {
	Path string
}

// Submit implements Submitter
func (f FileSubmitter) Submit(ctx context.Context, call Call) (Result, error) {
	data, err := json.MarshalIndent(call, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal call: %w", err)
	}

	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Result{}, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tempFile := f.Path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return Result{}, fmt.Errorf("failed to write call file: %w", err)
	}
	if err := os.Rename(tempFile, f.Path); err != nil {
		os.Remove(tempFile)
		return Result{}, fmt.Errorf("failed to save call file: %w", err)
	}

	return Result{Location: f.Path}, nil
}

// StdoutSubmitter prints the call so it can be piped into a signer
type StdoutSubmitter struct {
	Out io.Writer
}

// Submit implements Submitter
func (s StdoutSubmitter) Submit(ctx context.Context, call Call) (Result, error) {
	out := s.Out
	if out == nil {
		out = os.Stdout
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(call); err != nil {
		return Result{}, fmt.Errorf("failed to print call: %w", err)
	}
	return Result{Location: "stdout"}, nil
}
