package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix starts every config override variable. The full name is
// BBOS_<CONFIG>_<FIELD> in upper case.
const EnvPrefix = "BBOS_"

// EnvKey returns the variable that overrides a config field.
func EnvKey(config, field string) string {
	return EnvPrefix + strings.ToUpper(config) + "_" + strings.ToUpper(field)
}

// LoadEnv loads .env files into the process environment and applies the
// BBOS_ variables as overrides to the default registry. Missing files are
// skipped. Variables already set in the environment take precedence over the
// files.
func LoadEnv(files ...string) error {
	return Default().LoadEnv(files...)
}

// LoadEnv is like the package-level LoadEnv for this registry.
func (r *Registry) LoadEnv(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	r.ApplyEnviron(os.Environ())

	return nil
}

// ApplyEnviron takes the BBOS_ entries of a KEY=VALUE list as overrides.
func (r *Registry) ApplyEnviron(environ []string) {
	overrides := make(map[string]string)

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}

		overrides[k] = v
	}

	r.SetOverrides(overrides)
}

// SetOverrides merges variables keyed by EnvKey. The catalog resolves again
// on the next lookup.
func (r *Registry) SetOverrides(overrides map[string]string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for k, v := range overrides {
		r.overrides[k] = v
	}

	r.dirty = true
}

func (r *Registry) overrideValue(config, field string, literal any) (any, error) {
	raw, ok := r.overrides[EnvKey(config, field)]
	if !ok {
		return literal, nil
	}

	v, err := parseLike(literal, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q: %v",
			ErrInvalidSchema, EnvKey(config, field), raw, err)
	}

	return v, nil
}

func parseLike(literal any, raw string) (any, error) {
	switch literal.(type) {
	case int:
		return strconv.Atoi(raw)
	case int64:
		return strconv.ParseInt(raw, 10, 64)
	case float64:
		return strconv.ParseFloat(raw, 64)
	case float32:
		f, err := strconv.ParseFloat(raw, 32)
		return float32(f), err
	case bool:
		return strconv.ParseBool(raw)
	case string:
		return raw, nil
	}

	return nil, fmt.Errorf("cannot override a %T", literal)
}
