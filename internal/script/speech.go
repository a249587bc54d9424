package script

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fractionPattern = regexp.MustCompile(`(\d+)/(\d+)`)
	matrixPattern   = regexp.MustCompile(`\[([^\]]+)\]`)
	exponentPattern = regexp.MustCompile(`(\w)\^(\d+)`)
	latexPattern    = regexp.MustCompile(`\\[a-z]+\{([^}]+)\}`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

var namedFractions = map[string]string{
	"1/2": "one-half",
	"1/3": "one-third",
	"1/4": "one-fourth",
	"2/3": "two-thirds",
	"3/4": "three-fourths",
}

// Each symbol is padded so adjacent operands stay separate words.
var symbolReplacer = strings.NewReplacer(
	"*", " times ",
	"÷", " divided by ",
	"=", " equals ",
	"≠", " not equals ",
	"≤", " less than or equal to ",
	"≥", " greater than or equal to ",
	"<", " less than ",
	">", " greater than ",
	"√", " square root of ",
	"∞", " infinity ",
	"π", " pi ",
	"∑", " sum of ",
	"∫", " integral of ",
)

// SpeakMath rewrites mathematical notation into text a voice can read aloud.
func SpeakMath(text string) string {
	result := fractionPattern.ReplaceAllStringFunc(text, speakFraction)
	result = matrixPattern.ReplaceAllStringFunc(result, speakMatrix)
	result = exponentPattern.ReplaceAllStringFunc(result, speakExponent)
	result = symbolReplacer.Replace(result)
	result = latexPattern.ReplaceAllString(result, "$1")
	result = strings.ReplaceAll(result, "$", "")
	result = spacePattern.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

func speakFraction(match string) string {
	if named, ok := namedFractions[match]; ok {
		return named
	}
	parts := fractionPattern.FindStringSubmatch(match)
	return fmt.Sprintf("%s by %s", parts[1], parts[2])
}

func speakMatrix(match string) string {
	content := matrixPattern.FindStringSubmatch(match)[1]
	rows := strings.Split(content, ";")
	if len(rows) < 2 {
		return match
	}

	cols := len(strings.Split(rows[0], ","))
	elements := strings.ReplaceAll(content, ";", " next row ")
	elements = strings.ReplaceAll(elements, ",", " and ")
	return fmt.Sprintf("a matrix of %d by %d with elements %s", len(rows), cols, elements)
}

func speakExponent(match string) string {
	parts := exponentPattern.FindStringSubmatch(match)
	base, power := parts[1], parts[2]
	switch power {
	case "2":
		return base + " squared"
	case "3":
		return base + " cubed"
	default:
		return fmt.Sprintf("%s raised to power %s", base, power)
	}
}
