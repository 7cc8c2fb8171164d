package stage

import (
	"fmt"
	"sort"
	"strings"
)

// ParamType enumerates the parameter value grammars.
type ParamType int

const (
	// ParamFlag is a boolean: the bare key when on, nothing when off.
	ParamFlag ParamType = iota
	// ParamInt is a decimal integer: key followed by [0-9]+.
	ParamInt
	// ParamChoice is one of a fixed set of codes: key followed by a code.
	ParamChoice
	// ParamString is a free value: key followed by [a-z0-9]+.
	ParamString
)

func (t ParamType) String() string {
	switch t {
	case ParamFlag:
		return "flag"
	case ParamInt:
		return "int"
	case ParamChoice:
		return "choice"
	case ParamString:
		return "string"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseParamType converts a catalogue type string to a ParamType.
func ParseParamType(s string) (ParamType, error) {
	switch s {
	case "flag":
		return ParamFlag, nil
	case "int":
		return ParamInt, nil
	case "choice":
		return ParamChoice, nil
	case "string":
		return ParamString, nil
	default:
		return 0, fmt.Errorf("unknown parameter type %q", s)
	}
}

// ParamSpec declares one stage parameter.
//
// Keys start with an uppercase letter while values are digits and lowercase
// letters, so a suffix like "Q10L20" is self-delimiting: the next uppercase
// run is always the next key.
type ParamSpec struct {
	// Key is the suffix token introducing the value, e.g. "Q". Empty marks
	// the positional parameter (value appears without a key). At most one
	// positional parameter per stage, and it must be declared before every
	// keyed parameter.
	Key string

	// Name is the binding name rules refer to, e.g. "minqual".
	Name string

	// Type selects the value grammar.
	Type ParamType

	// Default is the value bound when the suffix omits the parameter.
	// For flags, the off value (normally ""). Int specs require a default.
	Default string

	// On is the value a flag binds when its key is present. Defaults to Key.
	On string

	// Choices are the accepted codes for ParamChoice specs.
	Choices []string
}

func (p *ParamSpec) validate() error {
	if p.Name == "" {
		return fmt.Errorf("parameter with key %q has no name", p.Key)
	}
	if p.Key != "" {
		if c := p.Key[0]; c < 'A' || c > 'Z' {
			return fmt.Errorf("parameter %s: key %q must start with an uppercase letter", p.Name, p.Key)
		}
	}
	switch p.Type {
	case ParamFlag:
		if p.Key == "" {
			return fmt.Errorf("parameter %s: flag parameters cannot be positional", p.Name)
		}
	case ParamInt:
		if !allDigits(p.Default) || p.Default == "" {
			return fmt.Errorf("parameter %s: int parameters need a decimal default, got %q", p.Name, p.Default)
		}
	case ParamChoice:
		if len(p.Choices) == 0 {
			return fmt.Errorf("parameter %s: choice parameter without choices", p.Name)
		}
		for _, c := range p.Choices {
			if !validValue(c) {
				return fmt.Errorf("parameter %s: invalid choice code %q", p.Name, c)
			}
		}
		if p.Default != "" && !contains(p.Choices, p.Default) {
			return fmt.Errorf("parameter %s: default %q is not a declared choice", p.Name, p.Default)
		}
	case ParamString:
		if p.Default != "" && !validValue(p.Default) {
			return fmt.Errorf("parameter %s: invalid default %q", p.Name, p.Default)
		}
	default:
		return fmt.Errorf("parameter %s: unknown type %v", p.Name, p.Type)
	}
	return nil
}

// onValue is the value a flag binds when present in the suffix.
func (p *ParamSpec) onValue() string {
	if p.On != "" {
		return p.On
	}
	return p.Key
}

// checkValue reports whether v is within the spec's declared domain.
func (p *ParamSpec) checkValue(v string) error {
	switch p.Type {
	case ParamFlag:
		if v != p.Default && v != p.onValue() {
			return fmt.Errorf("parameter %s: flag value must be %q or %q", p.Name, p.Default, p.onValue())
		}
	case ParamInt:
		if v == "" || !allDigits(v) {
			return fmt.Errorf("parameter %s: %q is not a decimal integer", p.Name, v)
		}
	case ParamChoice:
		if v != p.Default && !contains(p.Choices, v) {
			return fmt.Errorf("parameter %s: %q is not a declared choice", p.Name, v)
		}
	case ParamString:
		if v != p.Default && !validValue(v) {
			return fmt.Errorf("parameter %s: %q is not a lowercase alphanumeric value", p.Name, v)
		}
	}
	return nil
}

// Binding maps parameter names to concrete values. Bindings produced by
// DefaultBinding and DecodeParams are always complete: every declared
// parameter has a value.
type Binding map[string]string

// Equal reports whether both bindings hold the same values.
func (b Binding) Equal(o Binding) bool {
	if len(b) != len(o) {
		return false
	}
	for k, v := range b {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (b Binding) clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// DefaultBinding returns a fresh binding holding every parameter's default.
func (s *Stage) DefaultBinding() Binding {
	b := make(Binding, len(s.Params))
	for _, p := range s.Params {
		b[p.Name] = p.Default
	}
	return b
}

// SetParam sets a parameter by name, checking the value against the spec's
// declared domain. This is the only supported mutation path for bindings.
func (s *Stage) SetParam(b Binding, name, value string) error {
	for _, p := range s.Params {
		if p.Name != name {
			continue
		}
		if err := p.checkValue(value); err != nil {
			return err
		}
		b[name] = value
		return nil
	}
	return fmt.Errorf("stage %s has no parameter %q", s.Name, name)
}

// EncodeParams encodes a binding as a suffix. Parameters equal to their
// default are omitted; the rest appear in declared order as key+value (bare
// key for flags, bare value for the positional parameter).
func (s *Stage) EncodeParams(b Binding) (string, error) {
	var sb strings.Builder
	for _, p := range s.Params {
		v, ok := b[p.Name]
		if !ok {
			v = p.Default
		}
		if err := p.checkValue(v); err != nil {
			return "", err
		}
		if v == p.Default {
			continue
		}
		if p.Type == ParamFlag {
			sb.WriteString(p.Key)
			continue
		}
		sb.WriteString(p.Key)
		sb.WriteString(v)
	}
	return sb.String(), nil
}

// DecodeParams decodes a parameter suffix into a complete binding.
//
// Matching is greedy left-to-right: at each position the longest unconsumed
// key that prefixes the remainder wins (declaration order breaks length
// ties), then that parameter's value grammar consumes the following text.
// If no key matches, the positional parameter's value grammar is tried.
// Unconsumed residue fails with InvalidParameterSuffixError.
func (s *Stage) DecodeParams(suffix string) (Binding, error) {
	b := s.DefaultBinding()
	rest := suffix
	seen := make(map[string]bool, len(s.Params))
	for rest != "" {
		p := s.matchKey(rest, seen)
		if p == nil {
			p = s.matchPositional(rest, seen)
		}
		if p == nil {
			return nil, &InvalidParameterSuffixError{
				Stage:  s.Name,
				Suffix: suffix,
				Reason: fmt.Sprintf("unrecognized text %q", rest),
			}
		}
		seen[p.Name] = true
		rest = rest[len(p.Key):]
		value, n, err := p.consumeValue(rest)
		if err != nil {
			return nil, &InvalidParameterSuffixError{Stage: s.Name, Suffix: suffix, Reason: err.Error()}
		}
		rest = rest[n:]
		b[p.Name] = value
	}
	return b, nil
}

// matchKey returns the unconsumed spec with the longest key prefixing rest.
func (s *Stage) matchKey(rest string, seen map[string]bool) *ParamSpec {
	specs := make([]*ParamSpec, 0, len(s.Params))
	for _, p := range s.Params {
		if p.Key != "" && !seen[p.Name] && strings.HasPrefix(rest, p.Key) {
			specs = append(specs, p)
		}
	}
	if len(specs) == 0 {
		return nil
	}
	// Longest key first; the sort is stable so declaration order breaks ties.
	sort.SliceStable(specs, func(i, j int) bool {
		return len(specs[i].Key) > len(specs[j].Key)
	})
	return specs[0]
}

// matchPositional returns the unconsumed positional spec whose value grammar
// accepts the start of rest, if any.
func (s *Stage) matchPositional(rest string, seen map[string]bool) *ParamSpec {
	for _, p := range s.Params {
		if p.Key != "" || seen[p.Name] {
			continue
		}
		if _, n, err := p.consumeValue(rest); err == nil && n > 0 {
			return p
		}
	}
	return nil
}

// consumeValue consumes the value token at the start of rest per the spec's
// grammar, returning the bound value and the number of bytes consumed.
func (p *ParamSpec) consumeValue(rest string) (string, int, error) {
	switch p.Type {
	case ParamFlag:
		return p.onValue(), 0, nil
	case ParamInt:
		n := 0
		for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		if n == 0 {
			return "", 0, fmt.Errorf("parameter %s: expected digits after %q", p.Name, p.Key)
		}
		return rest[:n], n, nil
	case ParamChoice:
		// Longest code first so a short code never shadows a longer one.
		codes := make([]string, len(p.Choices))
		copy(codes, p.Choices)
		sort.SliceStable(codes, func(i, j int) bool { return len(codes[i]) > len(codes[j]) })
		for _, c := range codes {
			if strings.HasPrefix(rest, c) {
				return c, len(c), nil
			}
		}
		return "", 0, fmt.Errorf("parameter %s: expected one of %s after %q",
			p.Name, strings.Join(p.Choices, "|"), p.Key)
	case ParamString:
		n := 0
		for n < len(rest) && (rest[n] >= 'a' && rest[n] <= 'z' || rest[n] >= '0' && rest[n] <= '9') {
			n++
		}
		if n == 0 {
			return "", 0, fmt.Errorf("parameter %s: expected a value after %q", p.Name, p.Key)
		}
		return rest[:n], n, nil
	}
	return "", 0, fmt.Errorf("parameter %s: unknown type %v", p.Name, p.Type)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// validValue reports whether s matches [a-z0-9]+.
func validValue(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return s != ""
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
