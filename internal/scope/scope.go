// Package scope implements the lexical scope stack and lambda table shared
// by the type checker and interpreter.
//
// Grounded on original_source/core/interpreter.cpp's interpreter_c: the
// scopes_ vector of name->value maps (push_scope/pop_scope/has_symbol/
// define_symbol), and the lambda_definitions_ map keyed by a monotonically
// allocated id, purged by registration depth on pop_scope
// (cleanup_lambdas_at_scope).
package scope

import "github.com/bosley/sxs/internal/value"

// Param is one declared lambda parameter: a name and an expected kind. A
// NONE kind means "accepts any kind," per spec.md's NONE/any convention.
type Param struct {
	Name string
	Kind value.Kind
}

// Lambda is a registered callable body: its parameter list, declared
// return kind, captured body, and the scope depth it was registered at
// (used to purge it when that depth is popped).
type Lambda struct {
	ID         uint64
	Params     []Param
	ReturnKind value.Kind
	Body       value.Value
	Depth      int
}

// Stack is the scope/lambda-table pair threaded through one evaluation
// (or one type-checking pass) of a program.
type Stack struct {
	frames   []map[string]value.Value
	lambdas  map[uint64]*Lambda
	nextID   uint64
	depth    int
}

// New returns a Stack with its single root frame already pushed, matching
// the grounded interpreter_c constructor's initial push_scope() call.
func New() *Stack {
	s := &Stack{
		lambdas: make(map[uint64]*Lambda),
		nextID:  1,
	}
	s.Push()
	return s
}

// Push opens a new lexical frame.
func (s *Stack) Push() {
	s.frames = append(s.frames, make(map[string]value.Value))
	s.depth++
}

// Pop closes the innermost frame and purges any lambda registered at the
// depth being discarded or deeper.
func (s *Stack) Pop() bool {
	if len(s.frames) == 0 {
		return false
	}
	s.purgeLambdasAtOrBelow(s.depth)
	s.frames = s.frames[:len(s.frames)-1]
	s.depth--
	return true
}

// Depth returns the current number of open frames.
func (s *Stack) Depth() int { return s.depth }

func (s *Stack) purgeLambdasAtOrBelow(depth int) {
	for id, l := range s.lambdas {
		if l.Depth >= depth {
			delete(s.lambdas, id)
		}
	}
}

// Has reports whether symbol is bound, searching outward from the
// innermost frame unless localOnly restricts the search to it.
func (s *Stack) Has(symbol string, localOnly bool) bool {
	if localOnly {
		if len(s.frames) == 0 {
			return false
		}
		_, ok := s.frames[len(s.frames)-1][symbol]
		return ok
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i][symbol]; ok {
			return true
		}
	}
	return false
}

// Lookup searches outward from the innermost frame and returns the bound
// value, or a zero Value and false if unbound.
func (s *Stack) Lookup(symbol string) (value.Value, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i][symbol]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}

// Define binds symbol in the innermost frame, shadowing any outer binding
// of the same name. Returns false if no frame is open.
func (s *Stack) Define(symbol string, v value.Value) bool {
	if len(s.frames) == 0 {
		return false
	}
	s.frames[len(s.frames)-1][symbol] = v
	return true
}

// AllocateLambdaID returns the next unused lambda id.
func (s *Stack) AllocateLambdaID() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// RegisterLambda records a lambda body at the current scope depth.
func (s *Stack) RegisterLambda(id uint64, params []Param, returnKind value.Kind, body value.Value) {
	s.lambdas[id] = &Lambda{
		ID:         id,
		Params:     params,
		ReturnKind: returnKind,
		Body:       body,
		Depth:      s.depth,
	}
}

// Lambda returns the registered lambda for id, or nil if it's unknown or
// has been purged.
func (s *Stack) Lambda(id uint64) (*Lambda, bool) {
	l, ok := s.lambdas[id]
	return l, ok
}

// Signature renders a lambda's type as a ":fn<k1,k2>ret" string, used by
// the checker when a NONE-typed binding needs a concrete signature (e.g.
// for reporting, or for matching kernel function descriptors).
func (l *Lambda) Signature() string {
	sig := ":fn<"
	for i, p := range l.Params {
		if i > 0 {
			sig += ","
		}
		sig += p.Kind.String()
	}
	sig += ">" + l.ReturnKind.String()
	return sig
}

// LoopContext tracks one active do-loop's done flag, accumulated return
// value, and iteration counter.
type LoopContext struct {
	Done      bool
	ReturnVal value.Value
	Iteration int64
}

// LoopStack is the do/done control stack, pushed on entry to a "do" form
// and popped on exit.
type LoopStack struct {
	frames []*LoopContext
}

// Push opens a new loop context with iteration starting at 1, matching the
// grounded loop_context_s default.
func (ls *LoopStack) Push() {
	ls.frames = append(ls.frames, &LoopContext{Iteration: 1})
}

// Pop discards the innermost loop context.
func (ls *LoopStack) Pop() {
	if len(ls.frames) == 0 {
		return
	}
	ls.frames = ls.frames[:len(ls.frames)-1]
}

// InLoop reports whether any loop context is open.
func (ls *LoopStack) InLoop() bool { return len(ls.frames) > 0 }

// Current returns the innermost loop context, or nil if none is open.
func (ls *LoopStack) Current() *LoopContext {
	if len(ls.frames) == 0 {
		return nil
	}
	return ls.frames[len(ls.frames)-1]
}

// SignalDone marks the innermost loop as finished with the given return
// value.
func (ls *LoopStack) SignalDone(v value.Value) bool {
	c := ls.Current()
	if c == nil {
		return false
	}
	c.ReturnVal = v
	c.Done = true
	return true
}

// ShouldExit reports whether the innermost loop has been signaled done.
func (ls *LoopStack) ShouldExit() bool {
	c := ls.Current()
	return c != nil && c.Done
}

// IncrementIteration advances the innermost loop's iteration counter.
func (ls *LoopStack) IncrementIteration() {
	if c := ls.Current(); c != nil {
		c.Iteration++
	}
}
