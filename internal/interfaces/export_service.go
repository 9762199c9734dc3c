package interfaces

import "context"

// SectionExporter renders a section's markdown into a downloadable document
type SectionExporter interface {
	// RenderSection writes the rendered document to outputPath
	RenderSection(ctx context.Context, title, markdown, outputPath string) error
}
