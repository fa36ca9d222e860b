// Package script implements facets written in JavaScript and executed with
// goja. Each invocation runs in a fresh runtime with these globals:
//
//	input    the call input, JSON-decoded when it parses, else a string
//	msg      {sender, self, selector}
//	storage  get(key) / set(key, value) / remove(key) over the facet's
//	         namespaced block
//	diamond  call(signature, input) routes a nested call through the diamond
//
// A handler's return value becomes the call output: strings verbatim,
// anything else as JSON. A thrown value reverts the call with the thrown
// message as revert data.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

// DefaultTimeout bounds a single handler invocation.
const DefaultTimeout = 5 * time.Second

// MaxSourceSize is the largest accepted script.
const MaxSourceSize = 256 * 1024

// Function binds a signature to a global JS function name.
type Function struct {
	Signature string `yaml:"signature" json:"signature"`
	Handler   string `yaml:"handler" json:"handler"`
}

// Facet is a JavaScript facet.
type Facet struct {
	name      string
	namespace string
	source    string
	program   *goja.Program
	handlers  map[selector.Selector]string
	sigs      []string
	timeout   time.Duration
}

// Option configures a Facet.
type Option func(*Facet)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Facet) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// New compiles source. namespace defaults to "compose.script.<name>".
func New(name, namespace, source string, fns []Function, opts ...Option) (*Facet, error) {
	if name == "" {
		return nil, errors.New("script: facet name is required")
	}
	if len(source) > MaxSourceSize {
		return nil, fmt.Errorf("script: %s exceeds maximum size of %d bytes", name, MaxSourceSize)
	}
	program, err := goja.Compile(name, source, true)
	if err != nil {
		return nil, fmt.Errorf("script: compile %s: %w", name, err)
	}
	if namespace == "" {
		namespace = "compose.script." + name
	}
	f := &Facet{
		name:      name,
		namespace: namespace,
		source:    source,
		program:   program,
		handlers:  make(map[selector.Selector]string, len(fns)),
		timeout:   DefaultTimeout,
	}
	for _, fn := range fns {
		sel := selector.FromSignature(fn.Signature)
		if _, dup := f.handlers[sel]; dup {
			return nil, fmt.Errorf("script: %s: %w", name, selector.DuplicateError{Selector: sel})
		}
		if fn.Handler == "" {
			return nil, fmt.Errorf("script: %s: no handler for %s", name, fn.Signature)
		}
		f.handlers[sel] = fn.Handler
		f.sigs = append(f.sigs, fn.Signature)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Name implements diamond.Facet.
func (f *Facet) Name() string { return f.name }

// Namespace returns the storage namespace of the facet.
func (f *Facet) Namespace() string { return f.namespace }

// Functions implements diamond.Describer.
func (f *Facet) Functions() []string { return append([]string(nil), f.sigs...) }

// Code implements diamond.Coder.
func (f *Facet) Code() []byte { return []byte(f.source) }

// Invoke implements diamond.Facet.
func (f *Facet) Invoke(env *diamond.Env, sel selector.Selector, input []byte) ([]byte, error) {
	handler, ok := f.handlers[sel]
	if !ok {
		return nil, diamond.Revertf("%s: no function %s", f.name, sel)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	timeout := f.timeout
	if deadline, ok := env.Context().Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(timeout):
			vm.Interrupt("execution timeout")
		case <-done:
		}
	}()
	defer close(done)

	if _, err := vm.RunProgram(f.program); err != nil {
		return nil, f.failure(err)
	}
	if err := f.bind(vm, env, sel); err != nil {
		return nil, err
	}

	fn, ok := goja.AssertFunction(vm.Get(handler))
	if !ok {
		return nil, fmt.Errorf("script: %s: handler %q is not a function", f.name, handler)
	}
	result, err := fn(goja.Undefined(), decodeInput(vm, input))
	if err != nil {
		return nil, f.failure(err)
	}
	return encodeResult(result)
}

func (f *Facet) bind(vm *goja.Runtime, env *diamond.Env, sel selector.Selector) error {
	block := env.Block(f.namespace)

	msg := vm.NewObject()
	_ = msg.Set("sender", diamond.FormatAddress(env.Caller))
	_ = msg.Set("self", diamond.FormatAddress(env.Self))
	_ = msg.Set("selector", sel.String())

	storage := vm.NewObject()
	_ = storage.Set("get", func(call goja.FunctionCall) goja.Value {
		v, ok := block.Get(storageKey(call))
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(string(v))
	})
	_ = storage.Set("set", func(call goja.FunctionCall) goja.Value {
		block.Put(storageKey(call), []byte(call.Argument(1).String()))
		return goja.Undefined()
	})
	_ = storage.Set("remove", func(call goja.FunctionCall) goja.Value {
		block.Delete(storageKey(call))
		return goja.Undefined()
	})

	d := vm.NewObject()
	_ = d.Set("call", func(call goja.FunctionCall) goja.Value {
		sel := selector.FromSignature(call.Argument(0).String())
		var in []byte
		if arg := call.Argument(1); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
			in = []byte(arg.String())
		}
		out, err := env.Call(sel, in)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(string(out))
	})

	for name, v := range map[string]any{"msg": msg, "storage": storage, "diamond": d} {
		if err := vm.Set(name, v); err != nil {
			return fmt.Errorf("script: bind %s: %w", name, err)
		}
	}
	return nil
}

func storageKey(call goja.FunctionCall) []byte {
	return state.Field("js", []byte(call.Argument(0).String()))
}

func decodeInput(vm *goja.Runtime, input []byte) goja.Value {
	if len(input) == 0 {
		return goja.Undefined()
	}
	var v any
	if err := json.Unmarshal(input, &v); err == nil {
		return vm.ToValue(v)
	}
	return vm.ToValue(string(input))
}

func encodeResult(v goja.Value) ([]byte, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	exported := v.Export()
	if s, ok := exported.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(exported)
}

// failure turns a goja error into the facet's error. Thrown values become
// reverts; Go errors raised by host functions pass through.
func (f *Facet) failure(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return diamond.Revertf("%s: %v", f.name, interrupted.Value())
	}
	var exc *goja.Exception
	if !errors.As(err, &exc) {
		return fmt.Errorf("script: %s: %w", f.name, err)
	}
	val := exc.Value()
	if obj, ok := val.(*goja.Object); ok {
		// errors raised by diamond.call keep their Go value
		if inner := obj.Get("value"); inner != nil {
			if goErr, ok := inner.Export().(error); ok {
				return goErr
			}
		}
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			return diamond.Reverted([]byte(m.String()))
		}
	}
	return diamond.Reverted([]byte(val.String()))
}
