package recur

import (
	"time"
)

// Engine produces and interprets schedule encodings. It holds no mutable
// state and is safe for concurrent use. The caller's timezone is passed to
// every call that needs one.
type Engine struct {
	now   Clock
	rules RuleTextParser
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, typically with a frozen one in tests.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.now = c
		}
	}
}

// WithRuleTextParser replaces the parser used for the rule-text stage of
// ParseNaturalLanguage.
func WithRuleTextParser(p RuleTextParser) Option {
	return func(e *Engine) {
		if p != nil {
			e.rules = p
		}
	}
}

// New returns an Engine reading the system clock unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:   time.Now,
		rules: ruleTextParser{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Now returns the engine clock's current instant in loc.
func (e *Engine) Now(loc *time.Location) time.Time {
	return e.now().In(loc)
}
