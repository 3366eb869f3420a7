// Package extract turns program text into the ordered list of abstract
// operations the scheduler engine consumes.
//
// Extraction is lexical, not a parse. Each line is scanned by an ordered set
// of matchers, one per recognized form:
//
//	console.log(<arg>)          Immediate, label = first argument, unquoted
//	setTimeout(<fn>, <ms>)      Deferred, delay = second argument in ms
//	<expr>.then(<fn>)           Continuation
//	queueMicrotask(<fn>)        Continuation
//
// A print is only recognized when it starts the line; a print inside a
// callback belongs to that callback. Timer and continuation forms are
// recognized anywhere outside string literals and line comments, and a line
// yields one operation per match in left-to-right order. Lines that match
// nothing yield nothing. Extraction never fails.
package extract
