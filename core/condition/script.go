package condition

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// OpScript evaluates a JavaScript expression against the row value, which is
// bound to the name "value". The expression result is converted with the
// usual JavaScript truthiness rules.
//
//	{"dimension": "age", "relation": "script", "value": "value % 2 === 0"}
const OpScript Op = "script"

// MaxScriptLength bounds the source of a script relation.
const MaxScriptLength = 16 * 1024

// scriptOperator compiles the expression once into a function held by a
// dedicated runtime. Goja runtimes are not goroutine-safe, so calls are
// serialized per leaf. A call stops with the context error when ctx ends.
func scriptOperator(literal any) (Comparator, error) {
	src, ok := literal.(string)
	if !ok || strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("\"script\" requires a non-empty expression, got %T(%v)", literal, literal)
	}
	if len(src) > MaxScriptLength {
		return nil, fmt.Errorf("script exceeds maximum length of %d bytes", MaxScriptLength)
	}

	prog, err := goja.Compile("condition", "(function (value) { return ("+src+"); })", true)
	if err != nil {
		return nil, fmt.Errorf("script compilation failed: %w", err)
	}

	vm := goja.New()
	fnValue, err := vm.RunProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("script compilation failed: %w", err)
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, fmt.Errorf("script did not produce a function")
	}

	var mu sync.Mutex
	return func(ctx context.Context, value any) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		if err := ctx.Err(); err != nil {
			return false, err
		}

		// Interrupt the runtime if ctx ends while the script runs. The
		// watcher must have exited before the interrupt flag is cleared.
		stop := make(chan struct{})
		watcherDone := make(chan struct{})
		go func() {
			defer close(watcherDone)
			select {
			case <-ctx.Done():
				vm.Interrupt(ctx.Err())
			case <-stop:
			}
		}()

		res, err := fn(goja.Undefined(), vm.ToValue(value))
		close(stop)
		<-watcherDone
		vm.ClearInterrupt()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			return false, fmt.Errorf("script execution failed: %w", err)
		}
		return res.ToBoolean(), nil
	}, nil
}
