package console

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// highlighter colors fenced code blocks in agent replies.
type highlighter struct {
	enabled   bool
	formatter chroma.Formatter
	style     *chroma.Style
}

func newHighlighter(enabled bool) *highlighter {
	return &highlighter{
		enabled:   enabled,
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("monokai"),
	}
}

func (h *highlighter) code(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return code
	}
	return buf.String()
}

var codeBlockRegex = regexp.MustCompile("(?s)```([\\w+-]*)\\n(.*?)```")

// render highlights every fenced block in text and keeps the fences, so
// the reply still reads as the chat user would see it.
func (h *highlighter) render(text string) string {
	if !h.enabled {
		return text
	}
	return codeBlockRegex.ReplaceAllStringFunc(text, func(match string) string {
		parts := codeBlockRegex.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		body := strings.TrimSuffix(parts[2], "\n")
		return "```" + parts[1] + "\n" + h.code(body, parts[1]) + "\n```"
	})
}
