package extract

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

// Match is one recognized form inside a line.
type Match struct {
	// Pos is the byte offset of the form in the line; it orders matches
	// found by different matchers on the same line.
	Pos int
	Op  ir.Operation
}

// Matcher recognizes one textual form.
//
// line is the raw line, masked is the same line with string contents and
// comments blanked (see maskLine). Implementations must be pure.
type Matcher interface {
	Match(line, masked string, lineNo int) []Match
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(line, masked string, lineNo int) []Match

// Match calls f.
func (f MatcherFunc) Match(line, masked string, lineNo int) []Match {
	return f(line, masked, lineNo)
}

// Extractor applies an ordered set of matchers to every line of a program.
type Extractor struct {
	matchers []Matcher
}

// New creates an Extractor. With no matchers the default vocabulary is used.
func New(matchers ...Matcher) *Extractor {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Extractor{matchers: slices.Clone(matchers)}
}

// DefaultMatchers returns the print, timer and continuation matchers.
func DefaultMatchers() []Matcher {
	return []Matcher{
		MatcherFunc(matchPrint),
		MatcherFunc(matchTimer),
		MatcherFunc(matchContinuation),
	}
}

var defaultExtractor = New()

// Extract derives the operations of program using the default vocabulary.
func Extract(program string) []ir.Operation {
	return defaultExtractor.Extract(program)
}

// Extract derives the operations of program in program order.
// The result is never nil.
func (x *Extractor) Extract(program string) []ir.Operation {
	ops := []ir.Operation{}
	for i, line := range strings.Split(program, "\n") {
		line = strings.TrimRight(line, "\r")
		masked := maskLine(line)
		if strings.TrimSpace(masked) == "" {
			continue
		}

		var matches []Match
		for _, m := range x.matchers {
			matches = append(matches, m.Match(line, masked, i+1)...)
		}
		// Stable: two matchers claiming the same offset keep matcher order.
		slices.SortStableFunc(matches, func(a, b Match) int { return a.Pos - b.Pos })
		for _, m := range matches {
			ops = append(ops, m.Op)
		}
	}
	return ops
}

const (
	printToken        = "console.log("
	timerToken        = "setTimeout("
	thenToken         = ".then("
	queueMicrotaskTok = "queueMicrotask("
)

// matchPrint recognizes a print statement at the start of the line.
func matchPrint(line, masked string, lineNo int) []Match {
	lead := len(masked) - len(strings.TrimLeft(masked, " \t"))
	if !strings.HasPrefix(masked[lead:], printToken) {
		return nil
	}
	label := ir.LabelPrintFallback
	if args, ok := callArgs(line, masked, lead+len(printToken)-1); ok && args[0] != "" {
		label = unquote(args[0])
	}
	return []Match{{Pos: lead, Op: ir.Immediate(label, lineNo)}}
}

// matchTimer recognizes every timer registration in the line.
func matchTimer(line, masked string, lineNo int) []Match {
	var out []Match
	for _, pos := range indexAll(masked, timerToken) {
		if pos > 0 && isIdentByte(masked[pos-1]) {
			continue // e.g. mySetTimeout(
		}
		out = append(out, Match{Pos: pos, Op: ir.Deferred(parseDelay(line, masked, pos+len(timerToken)-1), lineNo)})
	}
	return out
}

// maxDelayMS is the largest delay a time.Duration can hold.
const maxDelayMS = math.MaxInt64 / int64(time.Millisecond)

// parseDelay reads the second argument as whole milliseconds.
// Missing, unclosed or non-numeric arguments yield zero.
func parseDelay(line, masked string, open int) time.Duration {
	args, ok := callArgs(line, masked, open)
	if !ok || len(args) < 2 {
		return 0
	}
	ms, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || ms < 0 || ms > maxDelayMS {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// matchContinuation recognizes .then( chains and queueMicrotask( calls.
func matchContinuation(_, masked string, lineNo int) []Match {
	var out []Match
	for _, pos := range indexAll(masked, thenToken) {
		out = append(out, Match{Pos: pos, Op: ir.Continuation(lineNo)})
	}
	for _, pos := range indexAll(masked, queueMicrotaskTok) {
		if pos > 0 && isIdentByte(masked[pos-1]) {
			continue
		}
		out = append(out, Match{Pos: pos, Op: ir.Continuation(lineNo)})
	}
	return out
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// Counts tallies operations per category.
type Counts struct {
	Immediate    int `json:"immediate"`
	Deferred     int `json:"deferred"`
	Continuation int `json:"continuation"`
}

// Total returns the number of operations counted.
func (c Counts) Total() int {
	return c.Immediate + c.Deferred + c.Continuation
}

// Summary counts ops by category.
func Summary(ops []ir.Operation) Counts {
	var c Counts
	for _, op := range ops {
		switch op.Category {
		case ir.CategoryImmediate:
			c.Immediate++
		case ir.CategoryDeferred:
			c.Deferred++
		case ir.CategoryContinuation:
			c.Continuation++
		}
	}
	return c
}
