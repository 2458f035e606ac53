// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package vm

import (
	"errors"
	"fmt"

	"github.com/wrenscript/wren/value"
)

// InterpretResult is the outcome of running a module to completion, per
// spec.md §6's `interpret(vm, moduleName, source) -> {SUCCESS,
// COMPILE_ERROR, RUNTIME_ERROR}`. Because the compiler is out of this
// repo's scope (spec.md §1), Interpret accepts a pre-compiled closure in
// place of source text; COMPILE_ERROR is reserved for a host that wires in
// its own compiler ahead of this call and wants to report failure through
// the same three-way result.
type InterpretResult uint8

const (
	ResultSuccess InterpretResult = iota
	ResultCompileError
	ResultRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultCompileError:
		return "compile error"
	case ResultRuntimeError:
		return "runtime error"
	default:
		return "unknown result"
	}
}

// WriteFn receives text printed by the running program (e.g. System.print).
type WriteFn func(vm *VM, text string)

// ErrorFn receives compile errors, runtime error messages, and one call per
// stack-trace line, per spec.md §7.
type ErrorFn func(vm *VM, kind ErrorKind, module string, line int, message string)

// ResolveModuleFn rewrites an import name relative to the importing module,
// e.g. to resolve a relative path. Returning "" keeps the name unchanged.
type ResolveModuleFn func(vm *VM, importer, name string) string

// LoadModuleResult is what a host's LoadModuleFn returns for a successfully
// located module: its source text and an optional cleanup hook, invoked
// once the source has been handed to the compiler.
type LoadModuleResult struct {
	Source         string
	OnLoadComplete func()
}

// LoadModuleFn obtains the source for a module name the core does not
// provide itself. An empty Source signals "module not found".
type LoadModuleFn func(vm *VM, name string) LoadModuleResult

// BindForeignMethodFn resolves a foreign method by its declaring module,
// class, static-ness, and signature (spec.md §6).
type BindForeignMethodFn func(vm *VM, module, className string, isStatic bool, signature string) ForeignFn

// BindForeignClassFn resolves the `<allocate>`/`<finalize>` pair for a
// foreign class declaration.
type BindForeignClassFn func(vm *VM, module, className string) (allocate ForeignFn, finalize func(data []byte))

// Config carries every host-supplied callback and tunable, passed by value
// into NewVM — mirroring the teacher's probe-lang/lang/vm.New(code,
// constants, gasLimit) constructor-parameter-bag style, generalized from
// three scalars to the full embedding surface spec.md §6 requires.
type Config struct {
	Write             WriteFn
	Error             ErrorFn
	ResolveModule     ResolveModuleFn
	LoadModule        LoadModuleFn
	BindForeignMethod BindForeignMethodFn
	BindForeignClass  BindForeignClassFn

	InitialHeapSize   int
	MinHeapSize       int
	HeapGrowthPercent int

	// DebugStressGC forces a full collection before every instruction,
	// per spec.md §4.7's stress flag. Test-only; crushes throughput.
	DebugStressGC bool

	UserData interface{}
}

func (c *Config) setDefaults() {
	if c.InitialHeapSize <= 0 {
		c.InitialHeapSize = 1 << 20 // 1 MiB, matches the teacher's 0-means-default Memory sizing
	}
	if c.MinHeapSize <= 0 {
		c.MinHeapSize = 1 << 20
	}
	if c.HeapGrowthPercent <= 0 {
		c.HeapGrowthPercent = 50
	}
}

// ErrorKind distinguishes the three call shapes ErrorFn is invoked with.
type ErrorKind uint8

const (
	ErrorCompile ErrorKind = iota
	ErrorRuntime
	ErrorStackTrace
)

// VM owns every piece of mutable interpreter state: the intrusive
// allocation list, the gray worklist, the module registry, the handle
// list, the global method-name symbol table, the currently executing
// fiber, and the host configuration. Unexported fields mirror the
// teacher's probe-lang VM struct's "everything the interpreter touches
// lives on one struct" shape (probe-lang/lang/vm/vm.go).
type VM struct {
	config Config

	fiber *Fiber

	modules     *registry
	methodNames *SymbolTable

	// Built-in runtime classes, bootstrapped once in NewVM and consulted by
	// the operator overload fast path and primitive bindings.
	classClass   *Class
	objectClass  *Class
	boolClass    *Class
	nullClass    *Class
	numClass     *Class
	stringClass  *Class
	listClass    *Class
	mapClass     *Class
	rangeClass   *Class
	fiberClass   *Class
	fnClass      *Class
	closureClass *Class
	systemClass  *Class

	coreModule         *Module
	lastImportedModule *Module

	// GC bookkeeping (spec.md §4.7).
	allHeap        Object // head of the intrusive allocation list
	bytesAllocated int
	nextGC         int
	gray           []Object

	tempRoots []Object

	handles []*Handle

	// pendingFatal carries an unhandled-runtime-error result out of a
	// Primitive (whose signature has no room for an error return) so
	// dispatchMethod can propagate it instead of the ordinary
	// errFiberSwitched sentinel. Set only by primitives that call
	// registerRuntimeError themselves (e.g. Fiber.abort).
	pendingFatal error
}

// NewVM constructs a VM from cfg, bootstraps the core module and its
// built-in classes, and returns it ready to run a compiled closure.
func NewVM(cfg Config) *VM {
	cfg.setDefaults()
	v := &VM{
		config:      cfg,
		modules:     newRegistry(),
		methodNames: newSymbolTable(),
		nextGC:      cfg.InitialHeapSize,
	}
	v.bootstrapCoreClasses()
	return v
}

// bootstrapCoreClasses creates the core module, the Object/Class root pair
// and the built-in value classes. No metaclass objects are allocated:
// static methods live in each Class's StaticMethods table.
func (v *VM) bootstrapCoreClasses() {
	v.coreModule = newModule(nil)
	v.track(v.coreModule)

	v.objectClass = v.defineCoreClass("Object", nil, 0)
	v.classClass = v.defineCoreClass("Class", v.objectClass, 0)
	v.boolClass = v.defineCoreClass("Bool", v.objectClass, 0)
	v.nullClass = v.defineCoreClass("Null", v.objectClass, 0)
	v.numClass = v.defineCoreClass("Num", v.objectClass, 0)
	v.stringClass = v.defineCoreClass("String", v.objectClass, 0)
	v.listClass = v.defineCoreClass("List", v.objectClass, 0)
	v.mapClass = v.defineCoreClass("Map", v.objectClass, 0)
	v.rangeClass = v.defineCoreClass("Range", v.objectClass, 0)
	v.fiberClass = v.defineCoreClass("Fiber", v.objectClass, 0)
	v.fnClass = v.defineCoreClass("Fn", v.objectClass, 0)
	v.closureClass = v.fnClass
	v.systemClass = v.defineCoreClass("System", v.objectClass, 0)

	// Name strings allocated before the String class existed carry no
	// class; patch them now that it does.
	for cur := v.allHeap; cur != nil; cur = cur.header().next {
		if h := cur.header(); h.kind == KindString && h.classObj == nil {
			h.classObj = v.stringClass
		}
	}

	bindPrimitives(v)
}

func (v *VM) defineCoreClass(name string, super *Class, numFields int) *Class {
	nameObj := newString(v, name)
	class := newClass(nameObj, super, numFields)
	if super != nil {
		class.inheritMethods(super)
	}
	v.coreModule.declareVariable(name, value.ObjVal(class))
	v.track(class)
	return class
}

// track links a freshly allocated object onto the intrusive allocation
// list and folds its size into bytesAllocated, per spec.md §3 "Lifecycles".
func (v *VM) track(o Object) {
	h := o.header()
	h.next = v.allHeap
	v.allHeap = o
	v.bytesAllocated += objectSize(o)
}

// pushRoot/popRoot guard allocation sites that would otherwise lose a
// newly created object before it is installed anywhere else reachable
// (spec.md §4.7).
func (v *VM) pushRoot(o Object) {
	v.tempRoots = append(v.tempRoots, o)
}

func (v *VM) popRoot() {
	v.tempRoots = v.tempRoots[:len(v.tempRoots)-1]
}

// classOfValue returns the runtime class of any Value, matching the
// class-resolution invariant in spec.md §3.
func (v *VM) classOfValue(val value.Value) *Class {
	switch val.Type() {
	case value.Null:
		return v.nullClass
	case value.True, value.False:
		return v.boolClass
	case value.Num:
		return v.numClass
	case value.Obj:
		if o, ok := val.AsObj().(Object); ok {
			if c := classOf(o); c != nil {
				return c
			}
			if _, ok := o.(*Closure); ok {
				return v.fnClass
			}
		}
		return v.objectClass
	default:
		return v.objectClass
	}
}

// ErrModuleNotFound names the case of a module that is not registered and
// whose source LoadModuleFn cannot locate. Interpret does not return it:
// IMPORTMODULE reports that case as a runtime error.
var ErrModuleNotFound = errors.New("vm: module not found")

// Interpret runs entry to completion on a fresh root fiber. Because this
// repo only implements the execution core (spec.md §1), entry must already
// be a compiled closure for moduleName; compiling source text is an
// external collaborator's job.
func (v *VM) Interpret(moduleName string, entry *Closure) InterpretResult {
	fiber := newFiber(v, entry)
	fiber.state = FiberRoot
	v.fiber = fiber

	if err := v.run(); err != nil {
		return ResultRuntimeError
	}
	return ResultSuccess
}

// run drives the dispatch loop (interpreter.go) until the current fiber
// completes or a runtime error goes unhandled.
func (v *VM) run() error {
	for v.fiber != nil {
		if err := v.stepFiber(); err != nil {
			return err
		}
	}
	return nil
}

// Free releases the VM: every outstanding Foreign is finalized regardless
// of reachability, and all interpreter state is dropped. The VM must not be
// used afterwards.
func (v *VM) Free() {
	for cur := v.allHeap; cur != nil; cur = cur.header().next {
		if fo, ok := cur.(*Foreign); ok {
			if c := fo.classObj; c != nil && c.finalize != nil {
				c.finalize(fo.Data)
			}
		}
	}
	v.allHeap = nil
	v.fiber = nil
	v.handles = nil
	v.tempRoots = nil
	v.gray = nil
	v.modules = newRegistry()
	v.bytesAllocated = 0
}

func (v *VM) write(text string) {
	if v.config.Write != nil {
		v.config.Write(v, text)
	}
}

func (v *VM) reportError(kind ErrorKind, module string, line int, format string, args ...interface{}) {
	if v.config.Error == nil {
		return
	}
	v.config.Error(v, kind, module, line, fmt.Sprintf(format, args...))
}
