// Package modes defines the closed set of AI operation modes and the prompt
// profile each mode resolves to. The mode table is built once at startup and
// is read-only at request time; adding a mode is a code/config change, not a
// runtime decision.
package modes

import (
	"errors"
	"fmt"
	"sort"
)

// Mode is a named category of AI operation. Canonical casing is UPPER_SNAKE
// and resolution is case-sensitive.
type Mode string

// The supported operation modes.
const (
	Chat           Mode = "CHAT"
	B2BGenerator   Mode = "B2B_GENERATOR"
	CRMAssistant   Mode = "CRM_ASSISTANT"
	ProposalWriter Mode = "PROPOSAL_WRITER"
	EmailOutreach  Mode = "EMAIL_OUTREACH"
	Classification Mode = "CLASSIFICATION"
)

// ErrUnknownMode is returned when a requested mode is not in the closed set.
// Callers surface it as a client error, not a server fault.
var ErrUnknownMode = errors.New("unknown operation mode")

// Profile is the prompt template and default generation parameters a mode
// resolves to.
type Profile struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// defaults returns the built-in mode table.
func defaults() map[Mode]Profile {
	return map[Mode]Profile{
		Chat: {
			SystemPrompt: "You are the LeadForge assistant. Help the user search for " +
				"businesses, manage their CRM lists, and answer questions about their " +
				"pipeline. Be concise and action-oriented.",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		B2BGenerator: {
			SystemPrompt: "You generate B2B lead-prospecting queries and company " +
				"shortlists from a plain-language description of a target market. " +
				"Return structured, deduplicated suggestions.",
			MaxTokens:   2048,
			Temperature: 0.8,
		},
		CRMAssistant: {
			SystemPrompt: "You operate on the user's CRM data: summarize companies, " +
				"draft follow-up notes, and suggest next actions for leads. Never " +
				"invent data that is not in the provided context.",
			MaxTokens:   1024,
			Temperature: 0.4,
		},
		ProposalWriter: {
			SystemPrompt: "You write business proposals tailored to a prospect " +
				"company. Use a professional tone, concrete deliverables, and the " +
				"details supplied in the context.",
			MaxTokens:   3072,
			Temperature: 0.6,
		},
		EmailOutreach: {
			SystemPrompt: "You draft short, personalized cold-outreach emails for " +
				"the given prospect. Subject line first, then the body. No filler.",
			MaxTokens:   768,
			Temperature: 0.7,
		},
		Classification: {
			SystemPrompt: "You classify leads into the requested categories. Answer " +
				"with the category label only, no explanation.",
			MaxTokens:   128,
			Temperature: 0.0,
		},
	}
}

// Override adjusts a single mode's profile. Zero values leave the
// corresponding default untouched.
type Override struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  *float64
}

// Registry is the resolved, read-only mode table.
type Registry struct {
	profiles map[Mode]Profile
}

// NewRegistry builds a Registry from the built-in defaults.
func NewRegistry() *Registry {
	return &Registry{profiles: defaults()}
}

// Apply merges an override into the table. It fails for modes outside the
// closed set: overrides can tune a mode, not invent one.
func (r *Registry) Apply(mode string, o Override) error {
	p, ok := r.profiles[Mode(mode)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if o.SystemPrompt != "" {
		p.SystemPrompt = o.SystemPrompt
	}
	if o.MaxTokens > 0 {
		p.MaxTokens = o.MaxTokens
	}
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	r.profiles[Mode(mode)] = p
	return nil
}

// Resolve maps a requested mode string to its profile. The match is exact
// and case-sensitive; anything outside the closed set fails with
// ErrUnknownMode.
func (r *Registry) Resolve(mode string) (Mode, Profile, error) {
	p, ok := r.profiles[Mode(mode)]
	if !ok {
		return "", Profile{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return Mode(mode), p, nil
}

// Modes returns the supported modes in sorted order.
func (r *Registry) Modes() []Mode {
	out := make([]Mode, 0, len(r.profiles))
	for m := range r.profiles {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
