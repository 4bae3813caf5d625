// Package match evaluates delivered events against configured
// (property, substring) rules, case-insensitively.
package match

import (
	"strings"
)

// MessageKey is the sentinel property name that matches against an event's
// primary rendered text rather than a named property.
const MessageKey = "@Message"

// Rule builds one (property, substring) rule. The first rule with no
// property name defaults to the message sentinel; an empty substring matches
// any value.
func Rule(index int, name, matchText string) (string, string) {
	key := ""
	value := ""

	if name == "" && index == 1 {
		key = MessageKey
	} else if name != "" {
		key = strings.TrimSpace(name)
	}

	if key != "" && strings.TrimSpace(matchText) != "" {
		value = strings.TrimSpace(matchText)
	}

	return key, value
}

// Matches reports whether text case-insensitively contains matchText. An
// empty matchText matches everything.
func Matches(text, matchText string) bool {
	if matchText == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(matchText))
}

// RuleSet is an ordered set of property match rules. Keys are compared
// case-insensitively; the first rule is mandatory and its key cannot recur.
type RuleSet struct {
	keys   []string
	values map[string]string
}

// NewRuleSet returns an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{values: make(map[string]string)}
}

// Add appends a rule, ignoring empty or duplicate keys. It reports whether
// the rule was added.
func (rs *RuleSet) Add(key, value string) bool {
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	if _, exists := rs.values[lower]; exists {
		return false
	}
	rs.keys = append(rs.keys, key)
	rs.values[lower] = value
	return true
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.keys)
}

// Keys returns the rule keys in configuration order.
func (rs *RuleSet) Keys() []string {
	result := make([]string, len(rs.keys))
	copy(result, rs.keys)
	return result
}

// Value returns the substring configured for a key.
func (rs *RuleSet) Value(key string) string {
	return rs.values[strings.ToLower(key)]
}

// Conditions renders the rule set as a human readable match expression for
// diagnostics, e.g. "@Message contains 'started' AND Level contains ANY value".
func (rs *RuleSet) Conditions() string {
	var builder strings.Builder
	for i, key := range rs.keys {
		value := rs.values[strings.ToLower(key)]
		rendered := "'" + value + "'"
		if value == "" {
			rendered = "ANY value"
		}
		if i > 0 {
			builder.WriteString(" AND ")
		}
		builder.WriteString(key + " contains " + rendered)
	}
	return builder.String()
}

// Payload is an ordered event property map with case-insensitive lookup.
// Property names are stored with their original case.
type Payload struct {
	names  []string
	values map[string]string
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{values: make(map[string]string)}
}

// Set stores a property value, replacing any existing value for the same
// name regardless of case.
func (p *Payload) Set(name, value string) {
	lower := strings.ToLower(name)
	if _, exists := p.values[lower]; !exists {
		p.names = append(p.names, name)
	}
	p.values[lower] = value
}

// Get looks a property up by name, ignoring case.
func (p *Payload) Get(name string) (string, bool) {
	value, ok := p.values[strings.ToLower(name)]
	return value, ok
}

// Names returns the property names in insertion order.
func (p *Payload) Names() []string {
	result := make([]string, len(p.names))
	copy(result, p.names)
	return result
}

// Evaluate runs every rule against an event. The message sentinel matches
// against primaryText; named rules look the property up case-insensitively.
// Properties absent from the event are reported as missing and make a full
// match impossible, but are a diagnostic condition rather than an error.
func Evaluate(primaryText string, payload *Payload, rules *RuleSet) (bool, []string) {
	matchedAll := rules.Len() > 0
	var missing []string

	for _, key := range rules.Keys() {
		value := rules.Value(key)

		if strings.EqualFold(key, MessageKey) {
			if !Matches(primaryText, value) {
				matchedAll = false
			}
			continue
		}

		text, ok := payload.Get(key)
		if !ok {
			missing = append(missing, key)
			matchedAll = false
			continue
		}
		if !Matches(text, value) {
			matchedAll = false
		}
	}

	return matchedAll, missing
}
