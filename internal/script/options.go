package script

import (
	"strings"

	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// FormatOptions reads lettered options aloud. Only choice questions get an
// options clause; every other type returns an empty string.
func FormatOptions(options models.Options, questionType string) string {
	if !models.IsChoice(questionType) {
		return ""
	}

	ordered := options.Ordered()
	if len(ordered) == 0 {
		return ""
	}

	texts := make([]string, 0, len(ordered))
	for _, opt := range ordered {
		texts = append(texts, "Option "+opt.Letter+": "+SpeakMath(opt.Text))
	}

	return "The options are: " + strings.Join(texts, ". ") + "."
}
