// Package condition compiles and evaluates the boolean expressions used by
// condition actions.
package condition

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
)

// Env is the variable set an expression runs against. Keys: text, args,
// user, chat, event, payload, now.
type Env map[string]interface{}

func typeEnv() Env {
	return Env{
		"text":    "",
		"args":    "",
		"user":    map[string]interface{}{},
		"chat":    map[string]interface{}{},
		"event":   map[string]interface{}{},
		"payload": map[string]interface{}{},
		"now":     time.Time{},
	}
}

// Evaluator caches compiled programs by source text.
type Evaluator struct {
	programs sync.Map
}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// compile accepts expressions typed bool, and expressions whose type is
// only known at run time (fields of user, chat, event or payload). Eval
// checks the result of the latter.
func compile(expression string) (*vm.Program, error) {
	p, err := expr.Compile(expression,
		expr.Env(typeEnv()),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err == nil {
		return p, nil
	}
	dynamic, derr := expr.Compile(expression,
		expr.Env(typeEnv()),
		expr.AllowUndefinedVariables(),
		expr.AsKind(reflect.Interface),
	)
	if derr != nil {
		return nil, err
	}
	return dynamic, nil
}

// Check reports whether expression compiles to a boolean program.
func Check(expression string) error {
	if _, err := compile(expression); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	return nil
}

func (e *Evaluator) program(expression string) (*vm.Program, error) {
	if p, ok := e.programs.Load(expression); ok {
		return p.(*vm.Program), nil
	}
	p, err := compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid condition: %w", err)
	}
	e.programs.Store(expression, p)
	return p, nil
}

// Eval runs expression against env and returns its boolean result.
func (e *Evaluator) Eval(expression string, env Env) (bool, error) {
	p, err := e.program(expression)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(p, map[string]interface{}(env))
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out)
	}
	return result, nil
}
