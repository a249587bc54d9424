package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Question is a quiz question a reel is built from
type Question struct {
	ID           string    `json:"id" db:"id"`
	ExamName     string    `json:"exam_name" db:"exam_name"`
	CourseName   string    `json:"course_name" db:"course_name"`
	Statement    string    `json:"question_statement" db:"question_statement"`
	QuestionType string    `json:"question_type" db:"question_type"`
	Options      Options   `json:"options,omitempty" db:"options"`
	Answer       string    `json:"answer" db:"answer"`
	Solution     string    `json:"solution,omitempty" db:"solution"`
	UsedInVideo  bool      `json:"used_in_video" db:"used_in_video"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Question types that carry lettered options
const (
	QuestionTypeMCQ = "mcq"
	QuestionTypeMSQ = "msq"
	QuestionTypeNAT = "nat"
)

// OptionLetters is the fixed order options are read and drawn in
var OptionLetters = []string{"A", "B", "C", "D", "E", "F"}

// IsChoice reports whether the question type uses lettered options
func IsChoice(questionType string) bool {
	switch strings.ToLower(strings.TrimSpace(questionType)) {
	case QuestionTypeMCQ, QuestionTypeMSQ:
		return true
	default:
		return false
	}
}

// IsChoice reports whether the question is multiple choice
func (q *Question) IsChoice() bool {
	return IsChoice(q.QuestionType)
}

// Options maps an option letter to its text
type Options map[string]string

// Ordered returns the non-empty options in letter order
func (o Options) Ordered() []Option {
	var out []Option
	for _, letter := range OptionLetters {
		if text, ok := o[letter]; ok && text != "" {
			out = append(out, Option{Letter: letter, Text: text})
		}
	}
	return out
}

// Option is a single lettered option
type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Value implements driver.Valuer for database storage
func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}

// Scan implements sql.Scanner for database retrieval
func (o *Options) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported options type %T", value)
	}

	return json.Unmarshal(data, o)
}

// Validate checks the fields every reel needs
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Statement) == "" {
		return fmt.Errorf("question statement is required")
	}
	if strings.TrimSpace(q.Answer) == "" {
		return fmt.Errorf("answer is required")
	}
	for letter := range q.Options {
		if !isOptionLetter(letter) {
			return fmt.Errorf("invalid option letter %q", letter)
		}
	}
	return nil
}

func isOptionLetter(s string) bool {
	for _, l := range OptionLetters {
		if l == s {
			return true
		}
	}
	return false
}
