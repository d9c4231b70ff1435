package tokens

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	thinkingMarker = "Thinking..."

	tokensPerSecond          = 75
	tokensPerThinkingMarker  = 40
	charsPerToken            = 4
	emptyThinkingPlaceholder = "I'm thinking about your request."
	thinkingHeading          = "*Thinking...*\n\n"
)

var (
	thinkingNoise = regexp.MustCompile(`\bThinking\.\.\.(?:\s*\([0-9]+s elapsed\))?\s*`)
	runsOfSpace   = regexp.MustCompile(`\s{3,}`)
	runsOfNewline = regexp.MustCompile(`\n{3,}`)
	elapsed       = regexp.MustCompile(`\((\d+)s elapsed\)`)

	reasoningPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<(?:thinking|think|reasoning)>(.*?)</(?:thinking|think|reasoning)>`),
		regexp.MustCompile(`(?is)\*Thinking\.\.\.\*\s*\n\n>((?:[^\n]|\n[^\n]|\n\n>)*)`),
		regexp.MustCompile(`(?i)(?:Let me (?:think|analyze)|I need to consider|My reasoning|Step-by-step)(?:[^\n]|\n[^\n])*`),
	}
)

// RemoveThinkingNoise strips the "Thinking... (Ns elapsed)" progress lines
// reasoning bots stream and puts a single "*Thinking...*" heading in front
// of what remains. Text without the marker is returned unchanged.
func RemoveThinkingNoise(raw string) string {
	if raw == "" || !strings.Contains(raw, thinkingMarker) {
		return raw
	}

	var b strings.Builder
	last := 0
	for _, m := range thinkingNoise.FindAllStringIndex(raw, -1) {
		// A leading "*Thinking...*" heading is kept.
		if m[0] == 1 && raw[0] == '*' {
			continue
		}
		b.WriteString(raw[last:m[0]])
		last = m[1]
	}
	b.WriteString(raw[last:])

	clean := runsOfSpace.ReplaceAllString(b.String(), " ")
	clean = strings.TrimSpace(runsOfNewline.ReplaceAllString(clean, "\n\n"))
	if clean == "" {
		return thinkingHeading + emptyThinkingPlaceholder
	}
	return thinkingHeading + clean
}

// EstimateReasoningTokens estimates how many tokens a reasoning model spent
// thinking. Elapsed-time markers win when present; otherwise reasoning
// passages and thinking markers are measured in characters.
func EstimateReasoningTokens(text string) int {
	if text == "" {
		return 0
	}

	var reasoning strings.Builder
	for _, p := range reasoningPatterns {
		var parts []string
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if len(m) > 1 {
				parts = append(parts, m[1])
			} else {
				parts = append(parts, m[0])
			}
		}
		reasoning.WriteString(strings.Join(parts, " "))
	}

	if markers := strings.Count(text, thinkingMarker); markers > 0 {
		maxSeconds := -1
		for _, m := range elapsed.FindAllStringSubmatch(text, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxSeconds {
				maxSeconds = n
			}
		}
		if maxSeconds >= 0 {
			return maxSeconds * tokensPerSecond
		}
		reasoning.WriteString(strings.Repeat(" ", markers*tokensPerThinkingMarker))
	}

	return reasoning.Len() / charsPerToken
}
