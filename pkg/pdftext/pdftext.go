// Package pdftext reads the embedded text layer and page geometry of PDF
// documents with pdfcpu.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Info describes the page layout of a PDF
type Info struct {
	PageCount   int     `json:"page_count"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// Map returns the info as an opaque metadata value
func (i Info) Map() map[string]any {
	return map[string]any{
		"page_count":   i.PageCount,
		"width":        i.Width,
		"height":       i.Height,
		"aspect_ratio": i.AspectRatio,
	}
}

func read(data []byte) (*model.Context, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("pdfcpu read: empty document")
	}
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx, nil
}

// Extract returns the text of every page joined by newlines, trimmed.
// A document without a text layer yields an empty string and no error.
func Extract(data []byte) (string, error) {
	ctx, err := read(data)
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pages = append(pages, pageText(ctx, pageNr))
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

// ReadInfo returns the page count and the dimensions of the first page in points
func ReadInfo(data []byte) (Info, error) {
	ctx, err := read(data)
	if err != nil {
		return Info{}, err
	}
	info := Info{PageCount: ctx.PageCount}

	dims, err := ctx.PageDims()
	if err != nil {
		return info, fmt.Errorf("pdfcpu page dims: %w", err)
	}
	if len(dims) > 0 {
		info.Width, info.Height = dims[0].Width, dims[0].Height
		if info.Height > 0 {
			info.AspectRatio = info.Width / info.Height
		}
	}
	return info, nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return TextFromContentStream(data)
}
