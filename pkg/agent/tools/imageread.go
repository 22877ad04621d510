package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/pathutil"
)

// maxImageSizeBytes is the per-file cap for ImageRead.
const maxImageSizeBytes = 10 * 1024 * 1024

var supportedImageExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

type imageReadInput struct {
	Paths []string `json:"paths"`
}

// ImageRead reads one or more image files, enforcing a per-file size cap
// and a supported-type check.
type ImageRead struct {
	Sys pathutil.System
}

func (ImageRead) Name() string { return "fs_read_image" }

func (ImageRead) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"paths": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"paths"},
	}
}

func (ImageRead) Validate(input json.RawMessage) error {
	var in imageReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if len(in.Paths) == 0 {
		return fmt.Errorf("paths must not be empty")
	}
	return nil
}

func (r ImageRead) Execute(ctx context.Context, input json.RawMessage) (*Output, error) {
	var in imageReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var items []conv.ToolResultItem
	for _, p := range in.Paths {
		resolved, err := pathutil.Canonicalize(r.Sys, p)
		if err != nil {
			return nil, err
		}
		mediaType, ok := supportedImageExt[strings.ToLower(filepath.Ext(resolved))]
		if !ok {
			return nil, fmt.Errorf("'%s' is not a supported image type", resolved)
		}
		fi, err := os.Stat(resolved)
		if err != nil {
			return nil, fmt.Errorf("'%s' does not exist", resolved)
		}
		if fi.Size() > maxImageSizeBytes {
			return nil, fmt.Errorf("'%s' exceeds the %d byte image size limit", resolved, maxImageSizeBytes)
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", resolved, err)
		}
		items = append(items, conv.ToolResultItem{Kind: conv.ToolResultItemImage, ImageData: data, MediaType: mediaType})
	}
	return &Output{Items: items}, nil
}
