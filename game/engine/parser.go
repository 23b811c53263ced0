package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParseErrorKind classifies parse failures
type ParseErrorKind string

const (
	ErrUnknownCommand   ParseErrorKind = "unknown_command"
	ErrUnknownCondition ParseErrorKind = "unknown_condition"
	ErrUnclosedLoop     ParseErrorKind = "unclosed_loop"
	ErrBadCount         ParseErrorKind = "bad_count"
	ErrTooLong          ParseErrorKind = "too_long"
)

// ParseError is returned by Parse. Line holds the offending input, verbatim.
type ParseError struct {
	Kind    ParseErrorKind `json:"kind"`
	Line    string         `json:"line,omitempty"`
	Message string         `json:"message"`
}

func (e *ParseError) Error() string {
	return e.Message
}

var (
	promptMarker = regexp.MustCompile(`^>\s*`)
	repeatable   = regexp.MustCompile(`^(move|jump)(?:\((\d*)\))?$`)
	spinPattern  = regexp.MustCompile(`^spin\(([^)]*)\)$`)
	loopHeader   = regexp.MustCompile(`^while\s*\(\s*([^)]*?)\s*\)\s*\{$`)
)

// sourceLine keeps the text as typed next to its normalized form
type sourceLine struct {
	raw  string
	text string
}

// Parse turns program text into a flat action list. It returns either the
// actions (possibly empty) or a *ParseError, never both.
func Parse(text string) ([]Action, error) {
	return (&parser{}).parse(text)
}

// ParseLimit is Parse with a bound on how many actions the program may expand
// to. Counts are checked before anything is allocated.
func ParseLimit(text string, maxActions int) ([]Action, error) {
	return (&parser{limit: maxActions}).parse(text)
}

// parser tracks the action budget of one Parse call. A zero limit is unbounded.
type parser struct {
	limit int
	used  int
}

func (p *parser) parse(text string) ([]Action, error) {
	lines := preprocess(text)
	actions := []Action{}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if strings.HasPrefix(line.text, "while") {
			loop, next, err := p.parseLoop(lines, i)
			if err != nil {
				return nil, err
			}
			actions = append(actions, loop)
			i = next
			continue
		}

		parsed, err := p.parseStatement(line)
		if err != nil {
			return nil, err
		}
		actions = append(actions, parsed...)
	}

	return actions, nil
}

// spend charges n actions against the budget
func (p *parser) spend(n int, line sourceLine) error {
	if p.limit > 0 && n > p.limit-p.used {
		return &ParseError{
			Kind:    ErrTooLong,
			Line:    line.raw,
			Message: fmt.Sprintf("Program too long: more than %d actions at %s", p.limit, line.raw),
		}
	}
	p.used += n
	return nil
}

// preprocess splits, trims, strips the prompt marker, drops blanks and breaks
// single-line loops apart at their braces.
func preprocess(text string) []sourceLine {
	var lines []sourceLine
	for _, raw := range strings.Split(text, "\n") {
		raw = promptMarker.ReplaceAllString(strings.TrimSpace(raw), "")
		if raw == "" {
			continue
		}
		for _, segment := range splitBraces(raw) {
			lines = append(lines, sourceLine{
				raw:  segment,
				text: norm.NFKC.String(segment),
			})
		}
	}
	return lines
}

// splitBraces breaks "while(c) { move() } move()" into header, body, closer
// and trailing lines. A closing brace always ends up alone on its line.
func splitBraces(line string) []string {
	if idx := strings.Index(line, "}"); idx >= 0 && line != "}" {
		var parts []string
		if before := strings.TrimSpace(line[:idx]); before != "" {
			parts = append(parts, splitBraces(before)...)
		}
		parts = append(parts, "}")
		if after := strings.TrimSpace(line[idx+1:]); after != "" {
			parts = append(parts, splitBraces(after)...)
		}
		return parts
	}
	if idx := strings.Index(line, "{"); idx >= 0 && idx < len(line)-1 {
		rest := strings.TrimSpace(line[idx+1:])
		head := strings.TrimSpace(line[:idx+1])
		if rest == "" {
			return []string{head}
		}
		return append([]string{head}, splitBraces(rest)...)
	}
	return []string{line}
}

// parseLoop reads a while block starting at lines[start]. It returns the loop
// action and the index of its closing line.
func (p *parser) parseLoop(lines []sourceLine, start int) (Action, int, error) {
	header := lines[start]
	match := loopHeader.FindStringSubmatch(header.text)
	if match == nil {
		return Action{}, 0, unknownCommand(header.raw)
	}

	condition := match[1]
	if condition != ConditionHacking {
		return Action{}, 0, &ParseError{
			Kind:    ErrUnknownCondition,
			Line:    header.raw,
			Message: fmt.Sprintf("Unknown loop condition: %s", condition),
		}
	}

	depth := 1
	var bodyLines []sourceLine
	end := -1
	for j := start + 1; j < len(lines); j++ {
		if lines[j].text == "}" {
			depth--
		} else {
			depth += strings.Count(lines[j].text, "{")
		}
		if depth == 0 {
			end = j
			break
		}
		bodyLines = append(bodyLines, lines[j])
	}
	if end < 0 {
		return Action{}, 0, &ParseError{
			Kind:    ErrUnclosedLoop,
			Line:    header.raw,
			Message: fmt.Sprintf("Unclosed loop: missing } for %s", header.raw),
		}
	}

	if err := p.spend(1, header); err != nil {
		return Action{}, 0, err
	}

	body := []Action{}
	for _, line := range bodyLines {
		parsed, err := p.parseStatement(line)
		if err != nil {
			return Action{}, 0, err
		}
		body = append(body, parsed...)
	}

	return WhileAction(condition, body), end, nil
}

// parseStatement parses one move, jump or spin line
func (p *parser) parseStatement(line sourceLine) ([]Action, error) {
	if match := repeatable.FindStringSubmatch(line.text); match != nil {
		count := 1
		if match[2] != "" {
			n, err := strconv.Atoi(match[2])
			if err != nil {
				return nil, &ParseError{
					Kind:    ErrBadCount,
					Line:    line.raw,
					Message: fmt.Sprintf("Repeat count out of range: %s", line.raw),
				}
			}
			count = n
		}
		if err := p.spend(count, line); err != nil {
			return nil, err
		}
		actionType := ActionMove
		if match[1] == "jump" {
			actionType = ActionJump
		}
		actions := make([]Action, count)
		for i := range actions {
			actions[i] = Action{Type: actionType}
		}
		return actions, nil
	}

	if match := spinPattern.FindStringSubmatch(line.text); match != nil {
		switch match[1] {
		case "l", "r":
			if err := p.spend(1, line); err != nil {
				return nil, err
			}
			if match[1] == "l" {
				return []Action{SpinAction(Left)}, nil
			}
			return []Action{SpinAction(Right)}, nil
		}
	}

	return nil, unknownCommand(line.raw)
}

func unknownCommand(line string) *ParseError {
	return &ParseError{
		Kind:    ErrUnknownCommand,
		Line:    line,
		Message: fmt.Sprintf("Unknown command: %s", line),
	}
}

// Format renders actions back into program text, folding runs of moves and
// jumps into move(N) and jump(N).
func Format(actions []Action) string {
	var b strings.Builder
	formatInto(&b, actions, "")
	return strings.TrimRight(b.String(), "\n")
}

func formatInto(b *strings.Builder, actions []Action, indent string) {
	for i := 0; i < len(actions); i++ {
		a := actions[i]
		switch a.Type {
		case ActionMove, ActionJump:
			run := 1
			for i+run < len(actions) && actions[i+run].Type == a.Type {
				run++
			}
			if run == 1 {
				fmt.Fprintf(b, "%s%s()\n", indent, a.Type)
			} else {
				fmt.Fprintf(b, "%s%s(%d)\n", indent, a.Type, run)
			}
			i += run - 1
		case ActionSpin:
			dir := "r"
			if a.Direction == Left {
				dir = "l"
			}
			fmt.Fprintf(b, "%sspin(%s)\n", indent, dir)
		case ActionWhile:
			fmt.Fprintf(b, "%swhile(%s) {\n", indent, a.Condition)
			formatInto(b, a.Body, indent+"  ")
			fmt.Fprintf(b, "%s}\n", indent)
		}
	}
}
