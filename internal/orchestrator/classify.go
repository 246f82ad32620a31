package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/session"
)

var ErrInvalidClassifier = errors.New("orchestrator: invalid classification table")

// Class is how a device error code is treated.
type Class string

const (
	ClassRetryable Class = "retryable"
	ClassFatal     Class = "fatal"
)

func (c Class) valid() bool {
	return c == ClassRetryable || c == ClassFatal
}

// Rule classifies one device error code.
type Rule struct {
	Code  int    `toml:"code"`
	Class Class  `toml:"class"`
	Label string `toml:"label"`
	// Hint is appended to the device message when the code is reported.
	Hint string `toml:"hint"`
}

// Classifier maps device error codes to outcome classes. It is read-only
// after construction.
type Classifier struct {
	fallback Class
	rules    map[int]Rule
}

// NewClassifier builds a table; codes without a rule get fallback.
func NewClassifier(fallback Class, rules ...Rule) (*Classifier, error) {
	if !fallback.valid() {
		return nil, fmt.Errorf("%w: unknown default class %q", ErrInvalidClassifier, fallback)
	}
	c := &Classifier{fallback: fallback, rules: make(map[int]Rule, len(rules))}
	for i, r := range rules {
		if !r.Class.valid() {
			return nil, fmt.Errorf("%w: rule[%d] code %d has unknown class %q", ErrInvalidClassifier, i, r.Code, r.Class)
		}
		c.rules[r.Code] = r
	}
	return c, nil
}

// DefaultClassifier treats reader-open failures and rejected credentials as
// fatal and everything else as retryable.
func DefaultClassifier() *Classifier {
	c, _ := NewClassifier(ClassRetryable, defaultRules()...)
	return c
}

func defaultRules() []Rule {
	return []Rule{
		{Code: device.CodeAuthRejected, Class: ClassFatal, Label: "auth_rejected", Hint: "check the reader access credentials"},
		{Code: device.CodeOpenFailed, Class: ClassFatal, Label: "open_failed"},
		{Code: device.CodeOpenFailedNoTag, Class: ClassFatal, Label: "open_failed_no_tag"},
		{Code: device.CodeOpenFailedRetry, Class: ClassFatal, Label: "open_failed_retry"},
		{Code: device.CodeReadTimeout, Class: ClassRetryable, Label: "read_timeout"},
		{Code: device.CodeTagLost, Class: ClassRetryable, Label: "tag_lost", Hint: "keep the card on the reader"},
		{Code: device.CodeDecodeServer, Class: ClassRetryable, Label: "decode_server"},
		{Code: device.CodeNotIdentityCard, Class: ClassRetryable, Label: "not_identity_card"},
	}
}

// Classify returns the class of code and the matching rule, if any.
func (c *Classifier) Classify(code int) (Class, Rule, bool) {
	if r, ok := c.rules[code]; ok {
		return r.Class, r, true
	}
	return c.fallback, Rule{}, false
}

// Rules lists the table sorted by code.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (c *Classifier) Default() Class { return c.fallback }

// Outcome converts a device callback into an attempt outcome.
func (c *Classifier) Outcome(cb device.Callback) session.Outcome {
	switch cb.Tag {
	case device.TagSuccess:
		return session.Success(cb.Payload)
	case device.TagCancelled:
		return session.Cancelled(cb.Message)
	case device.TagError:
		class, rule, _ := c.Classify(cb.Code)
		msg := strings.TrimSpace(cb.Message)
		if rule.Hint != "" {
			if msg == "" {
				msg = rule.Hint
			} else {
				msg = msg + ", " + rule.Hint
			}
		}
		if class == ClassFatal {
			return session.FatalError(cb.Code, msg)
		}
		return session.RetryableError(cb.Code, msg)
	default:
		return session.RetryableError(cb.Code, fmt.Sprintf("unknown callback tag %q", cb.Tag))
	}
}

type classifierFile struct {
	Default string `toml:"default"`
	Replace bool   `toml:"replace"`
	Codes   []Rule `toml:"code"`
}

// LoadClassifier reads a TOML table. Rules in the file override the defaults
// unless replace = true, in which case only the file's rules apply.
//
//	default = "retryable"
//	[[code]]
//	code = 41
//	class = "fatal"
//	label = "open_failed"
func LoadClassifier(path string) (*Classifier, error) {
	var raw classifierFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load classification table %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidClassifier, undecoded[0].String(), path)
	}

	fallback := ClassRetryable
	if meta.IsDefined("default") {
		fallback = Class(strings.ToLower(strings.TrimSpace(raw.Default)))
	}
	var rules []Rule
	if !raw.Replace {
		rules = defaultRules()
	}
	for _, r := range raw.Codes {
		r.Class = Class(strings.ToLower(strings.TrimSpace(string(r.Class))))
		rules = append(rules, r)
	}
	return NewClassifier(fallback, rules...)
}
