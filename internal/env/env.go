package env

import (
	"os"
	"sort"
	"strings"
)

type Var map[string]string

// Env composes the environment handed to launched targets.
type Env struct {
	Var   Var  // harness-wide variables (K->V)
	UseOS bool // start from the harness's own environment; false isolates targets
	base  Var  // cached OS environment
}

func New(useOS bool) *Env {
	return &Env{Var: make(Var), UseOS: useOS}
}

// Set sets a harness-wide variable K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// SetPairs applies a list of "K=V" entries; malformed entries are skipped.
func (e *Env) SetPairs(kvs []string) {
	for _, kv := range kvs {
		if k, v, ok := Split(kv); ok {
			e.Set(k, v)
		}
	}
}

// Split parses "K=V". It reports false for entries without '=' or with an empty key.
func Split(kv string) (string, string, bool) {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return "", "", false
	}
	return kv[:i], kv[i+1:], true
}

func (e *Env) osBase() Var {
	if e.base == nil {
		e.base = make(Var)
		for _, kv := range os.Environ() {
			if k, v, ok := Split(kv); ok {
				e.base[k] = v
			}
		}
	}
	return e.base
}

// Merge composes the environment for one target:
// OS env (when UseOS), then harness-wide vars, then perTarget "K=V" overrides.
// ${VAR} references are expanded against the composed map (one pass, no recursion).
// The result is sorted by key. A nil result means "inherit the harness environment"
// and is returned when nothing was configured on top of it. An isolated Env
// always yields a non-nil slice, empty when nothing was configured.
func (e *Env) Merge(perTarget []string) []string {
	if e.UseOS && len(e.Var) == 0 && len(perTarget) == 0 {
		return nil
	}
	m := make(Var)
	if e.UseOS {
		for k, v := range e.osBase() {
			m[k] = v
		}
	}
	for k, v := range e.Var {
		if k != "" {
			m[k] = v
		}
	}
	for _, kv := range perTarget {
		if k, v, ok := Split(kv); ok {
			m[k] = v
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expand(m[k], m))
	}
	return out
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		name := s[i+2 : i+j]
		if v, ok := m[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+j+1])
		}
		s = s[i+j+1:]
	}
}
