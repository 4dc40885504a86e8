// Package docs loads source documents from a directory and yields plain-text
// pages. How text got into the files is out of scope; the rest of the system
// only sees (filename, page index, text) triples.
package docs

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Page is one page of extracted document text.
type Page struct {
	Filename string // base name of the source file
	Index    int    // zero-based page number within the file
	Text     string
}

// Loader reads .txt and .md documents from a directory tree.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load walks dir and returns the pages of every supported document, ordered
// by filename then page index. Files with unsupported extensions are skipped.
// Pages are delimited by form-feed characters; files without one yield a
// single page.
func (l *Loader) Load(dir string) ([]Page, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			paths = append(paths, path)
		default:
			l.logger.Debug("Skipping unsupported file", "path", path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	var pages []Page
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		content := string(data)
		if strings.EqualFold(filepath.Ext(path), ".md") {
			content = markdownToText(data)
		}

		filename := filepath.Base(path)
		for i, pageText := range strings.Split(content, "\f") {
			pageText = strings.TrimSpace(pageText)
			if pageText == "" {
				continue
			}
			pages = append(pages, Page{Filename: filename, Index: i, Text: pageText})
		}
	}

	l.logger.Info("Loaded documents", "files", len(paths), "pages", len(pages))
	return pages, nil
}

// markdownToText reduces a markdown document to plain text: inline markup is
// dropped, block boundaries become blank lines, code blocks keep their
// content verbatim.
func markdownToText(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindHeading, ast.KindParagraph, ast.KindListItem, ast.KindBlockquote:
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			buf.WriteString("\n\n")
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			// children carry the literal text
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String())
}
