package slog

import (
	"log/slog"
	"time"

	"github.com/fwojciec/docingest"
)

var (
	_ docingest.Parser    = (*LoggingParser)(nil)
	_ docingest.Inspector = (*LoggingInspector)(nil)
)

// LoggingParser wraps a Parser with debug logging.
type LoggingParser struct {
	next   docingest.Parser
	logger *slog.Logger
}

// NewLoggingParser creates a new LoggingParser.
func NewLoggingParser(next docingest.Parser, logger *slog.Logger) *LoggingParser {
	return &LoggingParser{next: next, logger: logger}
}

// Parse delegates to the wrapped parser and logs what was found.
func (p *LoggingParser) Parse(html string, baseURL string) (doc *docingest.ParsedDocument, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"url", baseURL,
			"bytes", len(html),
			"duration", time.Since(begin),
			"err", err,
		}
		if doc != nil {
			attrs = append(attrs,
				"region", doc.Region,
				"links", len(doc.Links),
				"headings", len(doc.Headings),
			)
		}
		p.logger.Debug("parse", attrs...)
	}(time.Now())
	return p.next.Parse(html, baseURL)
}

// LoggingInspector wraps an Inspector with debug logging.
type LoggingInspector struct {
	next   docingest.Inspector
	logger *slog.Logger
}

// NewLoggingInspector creates a new LoggingInspector.
func NewLoggingInspector(next docingest.Inspector, logger *slog.Logger) *LoggingInspector {
	return &LoggingInspector{next: next, logger: logger}
}

// Inspect delegates to the wrapped inspector and logs the outcome.
func (i *LoggingInspector) Inspect(file *docingest.FilePayload) (extract *docingest.FileExtract, err error) {
	defer func(begin time.Time) {
		var name string
		var size int
		if file != nil {
			name, size = file.Name, len(file.Data)
		}
		i.logger.Debug("inspect",
			"file", name,
			"bytes", size,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.Inspect(file)
}
