package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultPriority is the scheduling priority of types that do not ask for
// one. It never triggers a real-time configuration.
const DefaultPriority = 0

// Configs gives type builders access to resolved config snapshots.
type Configs interface {
	LookupConfig(name string) (*Config, error)
}

// BuildFunc produces the authored fields of a type. It runs during catalog
// resolution, after every config has been resolved.
type BuildFunc func(cfg Configs) ([]Field, error)

// Fields returns a BuildFunc for a static field list.
func Fields(fields ...Field) BuildFunc {
	return func(Configs) ([]Field, error) {
		return fields, nil
	}
}

// Definition is an entry that can be registered into a Registry. It is
// either a TypeDef or a ConfigDef.
type Definition interface {
	DefinitionName() string
}

// TypeDef describes a named type before resolution.
type TypeDef struct {
	Name     string
	PeriodMs int
	Priority int
	Cores    []int
	Build    BuildFunc
}

// DefinitionName returns the type name.
func (d TypeDef) DefinitionName() string {
	return d.Name
}

// A TypeOption tunes a realtime type.
type TypeOption func(*TypeDef)

// WithPriority sets the scheduling priority of a realtime type.
func WithPriority(priority int) TypeOption {
	return func(d *TypeDef) {
		d.Priority = priority
	}
}

// WithCores sets the cores a writer of the type is pinned to when it
// configures itself for real time.
func WithCores(cores ...int) TypeOption {
	return func(d *TypeDef) {
		d.Cores = append([]int(nil), cores...)
	}
}

// Realtime defines a type that is published every periodMs milliseconds.
func Realtime(
	name string,
	periodMs int,
	build BuildFunc,
	opts ...TypeOption,
) TypeDef {
	d := TypeDef{
		Name:     name,
		PeriodMs: periodMs,
		Priority: DefaultPriority,
		Build:    build,
	}

	for _, o := range opts {
		o(&d)
	}

	return d
}

// State defines a level-triggered type with no implied cadence.
func State(name string, build BuildFunc) TypeDef {
	return TypeDef{Name: name, Priority: DefaultPriority, Build: build}
}

// Type is a resolved type.
type Type struct {
	Name string

	// Fields include the trailing timestamp field.
	Fields []Field

	PeriodMs int
	Priority int
	Cores    []int
}

// HasPeriod reports whether the type is a realtime type.
func (t Type) HasPeriod() bool {
	return t.PeriodMs > 0
}

// Layout compiles the layout of the type.
func (t Type) Layout() (*Layout, error) {
	return Compile(t.Fields)
}

// NewType creates an unregistered type from authored fields. A periodMs of
// zero makes a state type.
func NewType(name string, periodMs int, fields ...Field) (Type, error) {
	if periodMs < 0 {
		return Type{}, fmt.Errorf("%w: negative period %d",
			ErrInvalidSchema, periodMs)
	}

	all, err := WithTimestamp(fields)
	if err != nil {
		return Type{}, err
	}

	if _, err := Compile(all); err != nil {
		return Type{}, err
	}

	return Type{
		Name:     name,
		Fields:   all,
		PeriodMs: periodMs,
		Priority: DefaultPriority,
	}, nil
}

// MustNewType is like NewType but panics on error.
func MustNewType(name string, periodMs int, fields ...Field) Type {
	t, err := NewType(name, periodMs, fields...)
	if err != nil {
		panic(err)
	}

	return t
}

type typeNode struct {
	def      TypeDef
	resolved Type
}

// Registry is a catalog of named types and named configs. The two catalogs
// have independent name spaces.
type Registry struct {
	lock sync.Mutex

	types     map[string]*typeNode
	typeOrder []string

	configs     []*configNode
	configIndex map[string]int

	overrides map[string]string
	dirty     bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:       make(map[string]*typeNode),
		configIndex: make(map[string]int),
		overrides:   make(map[string]string),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register inserts a type or a config into its catalog.
func (r *Registry) Register(def Definition) error {
	switch d := def.(type) {
	case TypeDef:
		return r.RegisterType(d)
	case ConfigDef:
		return r.RegisterConfig(d)
	default:
		return fmt.Errorf("%w: unsupported definition %T", ErrInvalidSchema, def)
	}
}

// MustRegister is like Register but panics on error. It is convenient in
// package init functions.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// RegisterType inserts a type into the type catalog.
func (r *Registry) RegisterType(def TypeDef) error {
	if def.Name == "" {
		return fmt.Errorf("%w: type without name", ErrInvalidSchema)
	}

	if def.Build == nil {
		return fmt.Errorf("%w: type %q has no fields", ErrInvalidSchema, def.Name)
	}

	if def.PeriodMs < 0 {
		return fmt.Errorf("%w: type %q has negative period",
			ErrInvalidSchema, def.Name)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.types[def.Name]; exists {
		return fmt.Errorf("%w: type %q", ErrSchemaConflict, def.Name)
	}

	r.types[def.Name] = &typeNode{def: def}
	r.typeOrder = append(r.typeOrder, def.Name)
	r.dirty = true

	return nil
}

// LookupType returns a resolved type. Resolution runs first if the catalog
// changed since the last lookup.
func (r *Registry) LookupType(name string) (Type, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.resolveIfDirty(); err != nil {
		return Type{}, err
	}

	node, ok := r.types[name]
	if !ok {
		return Type{}, fmt.Errorf("%w: type %q, valid types are [%s]",
			ErrSchemaNotFound, name, strings.Join(r.sortedTypeNames(), ", "))
	}

	return node.resolved, nil
}

// LookupConfig returns the resolved snapshot of a config.
func (r *Registry) LookupConfig(name string) (*Config, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.resolveIfDirty(); err != nil {
		return nil, err
	}

	return r.lookupResolvedConfig(name)
}

// TypeNames returns the registered type names in sorted order.
func (r *Registry) TypeNames() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.sortedTypeNames()
}

func (r *Registry) sortedTypeNames() []string {
	names := append([]string(nil), r.typeOrder...)
	sort.Strings(names)

	return names
}

// Resolve runs the one-time topological pass over configs and then builds
// every type.
func (r *Registry) Resolve() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.dirty = true

	return r.resolveIfDirty()
}

// MustResolve is like Resolve but panics on error.
func (r *Registry) MustResolve() {
	if err := r.Resolve(); err != nil {
		panic(err)
	}
}

func (r *Registry) resolveIfDirty() error {
	if !r.dirty {
		return nil
	}

	if err := r.resolveConfigs(); err != nil {
		return err
	}

	if err := r.buildTypes(); err != nil {
		return err
	}

	r.dirty = false

	return nil
}

func (r *Registry) buildTypes() error {
	source := resolvedConfigs{r}

	for _, name := range r.typeOrder {
		node := r.types[name]

		authored, err := callBuild(node.def.Build, source)
		if err != nil {
			return fmt.Errorf("building type %q: %w", name, err)
		}

		fields, err := WithTimestamp(authored)
		if err != nil {
			return fmt.Errorf("building type %q: %w", name, err)
		}

		if _, err := Compile(fields); err != nil {
			return fmt.Errorf("building type %q: %w", name, err)
		}

		node.resolved = Type{
			Name:     name,
			Fields:   fields,
			PeriodMs: node.def.PeriodMs,
			Priority: node.def.Priority,
			Cores:    append([]int(nil), node.def.Cores...),
		}
	}

	return nil
}

// resolvedConfigs serves type builders while the registry lock is held.
type resolvedConfigs struct {
	r *Registry
}

func (s resolvedConfigs) LookupConfig(name string) (*Config, error) {
	return s.r.lookupResolvedConfig(name)
}

func callBuild(build BuildFunc, cfg Configs) (fields []Field, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidSchema, p)
		}
	}()

	return build(cfg)
}
