package schema

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// ConfigField is one entry of a config. It is either a literal value or a
// value derived at resolution time.
type ConfigField struct {
	Name   string
	value  any
	derive func(v *ConfigView) any
}

// Literal creates a config field with a fixed value. Literal fields can be
// overridden from the environment.
func Literal(name string, v any) ConfigField {
	return ConfigField{Name: name, value: v}
}

// Derived creates a field computed once at resolution from the earlier
// fields of the same config and from the configs it requires.
func Derived(name string, fn func(v *ConfigView) any) ConfigField {
	return ConfigField{Name: name, derive: fn}
}

// IsDerived reports whether the field is computed at resolution.
func (f ConfigField) IsDerived() bool {
	return f.derive != nil
}

// ConfigDef is a named config before resolution.
type ConfigDef struct {
	Name     string
	Requires []string
	Fields   []ConfigField
}

// DefinitionName returns the config name.
func (d ConfigDef) DefinitionName() string {
	return d.Name
}

// Config is the immutable resolved snapshot of a config.
type Config struct {
	name   string
	keys   []string
	values map[string]any
}

// Name returns the config name.
func (c *Config) Name() string {
	return c.name
}

// Keys returns the field names in declaration order.
func (c *Config) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Get returns the value of a field.
func (c *Config) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Map returns a copy of all the fields.
func (c *Config) Map() map[string]any {
	m := make(map[string]any, len(c.values))
	for k, v := range c.values {
		m[k] = v
	}

	return m
}

// Int returns an integer field. It panics if the field is missing or is
// not integral.
func (c *Config) Int(key string) int {
	n, err := asInt(c.name, key, c.must(key))
	if err != nil {
		panic(err)
	}

	return n
}

// Float returns a numeric field as float64.
func (c *Config) Float(key string) float64 {
	f, err := asFloat(c.name, key, c.must(key))
	if err != nil {
		panic(err)
	}

	return f
}

// String returns a text field.
func (c *Config) String(key string) string {
	s, err := asString(c.name, key, c.must(key))
	if err != nil {
		panic(err)
	}

	return s
}

// Bool returns a boolean field.
func (c *Config) Bool(key string) bool {
	b, err := asBool(c.name, key, c.must(key))
	if err != nil {
		panic(err)
	}

	return b
}

func (c *Config) must(key string) any {
	v, ok := c.values[key]
	if !ok {
		panic(fmt.Sprintf("schema: config %q has no field %q, fields are %v",
			c.name, key, c.keys))
	}

	return v
}

// ConfigView is what a derived field sees while its config resolves. Getters
// never panic. The first failure is kept and fails the resolution.
type ConfigView struct {
	reg *Registry
	def ConfigDef
	cfg *Config
	err error
}

func (v *ConfigView) fail(err error) {
	if v.err == nil {
		v.err = err
	}
}

// Get returns a field already resolved in the same config.
func (v *ConfigView) Get(key string) any {
	val, ok := v.cfg.values[key]
	if !ok {
		v.fail(fmt.Errorf("%w: config %q has no earlier field %q",
			ErrSchemaNotFound, v.def.Name, key))
	}

	return val
}

// Int returns an integral field of the same config.
func (v *ConfigView) Int(key string) int {
	n, err := asInt(v.def.Name, key, v.Get(key))
	if err != nil {
		v.fail(err)
	}

	return n
}

// Float returns a numeric field of the same config.
func (v *ConfigView) Float(key string) float64 {
	f, err := asFloat(v.def.Name, key, v.Get(key))
	if err != nil {
		v.fail(err)
	}

	return f
}

// String returns a text field of the same config.
func (v *ConfigView) String(key string) string {
	s, err := asString(v.def.Name, key, v.Get(key))
	if err != nil {
		v.fail(err)
	}

	return s
}

// Bool returns a boolean field of the same config.
func (v *ConfigView) Bool(key string) bool {
	b, err := asBool(v.def.Name, key, v.Get(key))
	if err != nil {
		v.fail(err)
	}

	return b
}

// Config returns the snapshot of a required config. Asking for a config
// that is not listed in Requires is an error.
func (v *ConfigView) Config(name string) *Config {
	if !slices.Contains(v.def.Requires, name) {
		v.fail(fmt.Errorf("%w: config %q does not require %q",
			ErrInvalidSchema, v.def.Name, name))

		return &Config{name: name, values: map[string]any{}}
	}

	return v.reg.configs[v.reg.configIndex[name]].resolved
}

// derive runs a derived field. A panic inside the function, such as a
// missing key on a required snapshot, fails the resolution.
func (v *ConfigView) derive(f ConfigField) (val any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidSchema, p)
		}

		if v.err != nil {
			err = v.err
		}
	}()

	return f.derive(v), nil
}

type configNode struct {
	def      ConfigDef
	resolved *Config
}

// RegisterConfig inserts a config into the config catalog.
func (r *Registry) RegisterConfig(def ConfigDef) error {
	if def.Name == "" {
		return fmt.Errorf("%w: config without name", ErrInvalidSchema)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.configIndex[def.Name]; exists {
		return fmt.Errorf("%w: config %q", ErrSchemaConflict, def.Name)
	}

	r.configIndex[def.Name] = len(r.configs)
	r.configs = append(r.configs, &configNode{def: def})
	r.dirty = true

	return nil
}

// ConfigNames returns the registered config names in sorted order.
func (r *Registry) ConfigNames() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.sortedConfigNames()
}

func (r *Registry) sortedConfigNames() []string {
	names := make([]string, 0, len(r.configs))
	for _, n := range r.configs {
		names = append(names, n.def.Name)
	}

	sort.Strings(names)

	return names
}

func (r *Registry) lookupResolvedConfig(name string) (*Config, error) {
	i, ok := r.configIndex[name]
	if !ok || r.configs[i].resolved == nil {
		return nil, fmt.Errorf("%w: config %q, valid configs are [%s]",
			ErrSchemaNotFound, name, strings.Join(r.sortedConfigNames(), ", "))
	}

	return r.configs[i].resolved, nil
}

// resolveConfigs orders the config arena with Kahn's algorithm and
// resolves every config after the configs it requires.
func (r *Registry) resolveConfigs() error {
	n := len(r.configs)
	inDegree := make([]int, n)
	dependents := make([][]int, n)

	for i, node := range r.configs {
		node.resolved = nil

		for _, req := range node.def.Requires {
			j, ok := r.configIndex[req]
			if !ok {
				return fmt.Errorf("%w: config %q requires unknown config %q",
					ErrSchemaNotFound, node.def.Name, req)
			}

			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, n)
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)

		for _, d := range dependents[i] {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(order) < n {
		var cyclic []string
		for i, d := range inDegree {
			if d > 0 {
				cyclic = append(cyclic, r.configs[i].def.Name)
			}
		}

		sort.Strings(cyclic)

		return fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(cyclic, ", "))
	}

	for _, i := range order {
		cfg, err := r.resolveConfig(r.configs[i].def)
		if err != nil {
			return err
		}

		r.configs[i].resolved = cfg
	}

	return nil
}

func (r *Registry) resolveConfig(def ConfigDef) (*Config, error) {
	cfg := &Config{
		name:   def.Name,
		keys:   make([]string, 0, len(def.Fields)),
		values: make(map[string]any, len(def.Fields)),
	}
	view := &ConfigView{reg: r, def: def, cfg: cfg}

	for _, f := range def.Fields {
		if _, dup := cfg.values[f.Name]; dup || f.Name == "" {
			return nil, fmt.Errorf("%w: config %q has field %q twice or unnamed",
				ErrInvalidSchema, def.Name, f.Name)
		}

		var v any
		if f.IsDerived() {
			var err error
			v, err = view.derive(f)
			if err != nil {
				return nil, fmt.Errorf("resolving %s.%s: %w",
					def.Name, f.Name, err)
			}
		} else {
			var err error
			v, err = r.overrideValue(def.Name, f.Name, f.value)
			if err != nil {
				return nil, err
			}
		}

		cfg.keys = append(cfg.keys, f.Name)
		cfg.values[f.Name] = v
	}

	return cfg, nil
}

func asInt(cfg, key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	}

	return 0, typeError(cfg, key, v, "an integer")
}

func asFloat(cfg, key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	}

	i, err := asInt(cfg, key, v)
	if err != nil {
		return 0, typeError(cfg, key, v, "a number")
	}

	return float64(i), nil
}

func asString(cfg, key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError(cfg, key, v, "a string")
	}

	return s, nil
}

func asBool(cfg, key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, typeError(cfg, key, v, "a bool")
	}

	return b, nil
}

func typeError(cfg, key string, v any, want string) error {
	return fmt.Errorf("%w: %s.%s is %T, not %s",
		ErrInvalidSchema, cfg, key, v, want)
}
