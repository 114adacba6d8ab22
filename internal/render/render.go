// Package render turns uploaded source files into per-page PNG images
// for the vision model.
package render

import "context"

// PageImage is one rendered page of an uploaded file. Numbers start at 1.
type PageImage struct {
	Number int
	PNG    []byte
}

// Converter renders a source file into page images. fileName is used
// only for its extension.
type Converter interface {
	Pages(ctx context.Context, src []byte, fileName string) ([]PageImage, error)
}
