// Package validate checks form field values: named pattern rules, struct
// validation of form payloads and debounced remote uniqueness checks.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Validator checks a single field value. A nil error means the value
// passes.
type Validator interface {
	Validate(ctx context.Context, value string) error
}

// Func adapts a function to Validator.
type Func func(ctx context.Context, value string) error

// Validate calls f.
func (f Func) Validate(ctx context.Context, value string) error {
	return f(ctx, value)
}

// RuleError is a failed rule on a single value.
type RuleError struct {
	Rule    string
	Message string
	Err     error
}

func (e *RuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// IsBlank reports whether value counts as absent. Form state serialised
// through JavaScript may carry the literal strings "null" and "undefined".
func IsBlank(value string) bool {
	return value == "" || value == "null" || value == "undefined"
}

// MaxLength is the longest value overLength accepts.
const MaxLength = 255

// Rule is a named synchronous check.
type Rule struct {
	Name    string
	Message string

	match func(string) bool
	// strict rules run on blank values too.
	strict bool
}

// Validate runs the rule. Blank values pass unless the rule is strict.
func (r *Rule) Validate(_ context.Context, value string) error {
	if !r.strict && IsBlank(value) {
		return nil
	}
	if r.match(value) {
		return nil
	}
	return &RuleError{Rule: r.Name, Message: r.Message}
}

// WithMessage returns a copy of the rule reporting msg on failure.
func (r *Rule) WithMessage(msg string) *Rule {
	c := *r
	c.Message = msg
	return &c
}

func patternRule(name, expr, msg string) *Rule {
	re := regexp.MustCompile(expr)
	return &Rule{Name: name, Message: msg, match: re.MatchString}
}

var (
	phonePattern = regexp.MustCompile(`^1(?:3\d|4[5-9]|5[0-35-9]|6[2567]|7[0-8]|8\d|9[0-35-9])\d{8}$`)
	spacePattern = regexp.MustCompile(`\S+$`)
)

var rules = func() map[string]*Rule {
	list := []*Rule{
		patternRule("number", `^[-]?\d+(\.\d+)?$`, "contains non-numeric characters"),
		patternRule("letter", `^[A-Za-z]+$`, "contains non-letter characters"),
		patternRule("letterAndNumber", `^[A-Za-z0-9]+$`, "only letters and digits are allowed"),
		patternRule("mobilePhone", `^[1][3-9][0-9]{9}$`, "invalid mobile phone number"),
		patternRule("letterStartNumberIncluded", `^[A-Za-z]+[A-Za-z\d]*$`, "must start with a letter and may contain digits"),
		patternRule("noChinese", `^[^\x{4E00}-\x{9FA5}]+$`, "Chinese characters are not allowed"),
		patternRule("chinese", `^[\x{4E00}-\x{9FA5}]+$`, "only Chinese characters are allowed"),
		patternRule("email", `^([-_A-Za-z0-9.]+)@([_A-Za-z0-9]+\.)+[A-Za-z0-9]{2,3}$`, "invalid email address"),
		patternRule("url", `(https?|ftp|file)://[-A-Za-z0-9+&@#/%?=~_|!:,.;]+[-A-Za-z0-9+&@#/%=~_|]`, "invalid URL"),

		patternRule("nameCn", `^[\x{4E00}-\x{9FA5}\w]+$`, "only Chinese, letters, digits and underscores are allowed"),
		patternRule("capital", `^[A-Z_]+$`, "only upper-case letters and underscores are allowed"),
		patternRule("lowercaseUnderscore", `^[a-z_]+$`, "only lower-case letters and underscores are allowed"),
		patternRule("lower", `^[a-z]+$`, "only lower-case letters are allowed"),
		{
			Name:    "phone",
			Message: "invalid phone number",
			match: func(v string) bool {
				// masked numbers come back from the server as 138****0000
				return strings.Contains(v, "****") || phonePattern.MatchString(v)
			},
		},
		{
			Name:    "overLength",
			Message: fmt.Sprintf("must be at most %d characters", MaxLength),
			match:   func(v string) bool { return utf8.RuneCountInString(v) <= MaxLength },
		},
		{
			Name:    "noBlank",
			Message: "must not be blank or end with whitespace",
			match:   spacePattern.MatchString,
			strict:  true,
		},
	}
	m := make(map[string]*Rule, len(list))
	for _, r := range list {
		m[r.Name] = r
	}
	return m
}()

// Lookup returns the named rule.
func Lookup(name string) (*Rule, bool) {
	r, ok := rules[name]
	return r, ok
}

// Names returns every rule name, sorted.
func Names() []string {
	out := make([]string, 0, len(rules))
	for n := range rules {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Regexp builds a rule from a caller-supplied expression. Blank values
// pass.
func Regexp(expr, msg string) (*Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile rule %q: %w", expr, err)
	}
	if msg == "" {
		msg = "invalid value"
	}
	return &Rule{Name: "regexp", Message: msg, match: re.MatchString}, nil
}

// All combines validators; the first failure wins.
func All(vs ...Validator) Validator {
	return Func(func(ctx context.Context, value string) error {
		for _, v := range vs {
			if err := v.Validate(ctx, value); err != nil {
				return err
			}
		}
		return nil
	})
}
