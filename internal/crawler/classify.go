package crawler

import (
	"strings"

	"github.com/nao1215/sitegrab/internal/model"
	"golang.org/x/text/cases"
)

// classifyRules are checked in order; the first substring match wins.
// HTML comes first so that it is never swallowed by a looser rule.
var classifyRules = []struct {
	needle   string
	category model.Category
}{
	{needle: "text/html", category: model.CategoryHTML},
	{needle: "image/", category: model.CategoryImage},
	{needle: "text/css", category: model.CategoryCSS},
	{needle: "javascript", category: model.CategoryJavaScript},
	{needle: "application/pdf", category: model.CategoryPDF},
}

// Classify maps a Content-Type value to a Category.
// isError marks a failed fetch and always yields CategoryError. Matching is
// case-insensitive.
func Classify(contentType string, isError bool) model.Category {
	if isError {
		return model.CategoryError
	}

	folded := cases.Fold().String(contentType)
	for _, rule := range classifyRules {
		if strings.Contains(folded, rule.needle) {
			return rule.category
		}
	}
	return model.CategoryOther
}
