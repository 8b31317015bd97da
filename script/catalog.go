// Package script loads the chatbot step-graph definition and answers
// step-lookup and next-step queries. The catalog is built once at startup and
// is immutable afterwards; it is injected into the engine, never read as
// ambient state.
package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mk-Guvi/at-chatbot-backend/models"
)

// StepData is one node of a context's script: the prompt the bot delivers and
// the actions it offers alongside it.
type StepData struct {
	Message string              `json:"message"`
	Actions []models.ChatAction `json:"actions"`
}

// Catalog is the immutable script definition: context -> ordered steps.
type Catalog struct {
	order map[string][]string
	steps map[string]map[string]StepData
}

// Load reads and parses the script file. Any failure here is a startup
// failure; the catalog never fails at request time.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script file %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse script file %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from raw JSON of the form
// {"CONTEXT": {"STEP": {"message": ..., "actions": [...]}}}.
// Declaration order of steps is the progression order, so the object is walked
// with a token decoder rather than unmarshalled into a map.
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{
		order: make(map[string][]string),
		steps: make(map[string]map[string]StepData),
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		context, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected context name, got %v", tok)
		}
		if err := c.parseContext(dec, context); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) parseContext(dec *json.Decoder, context string) error {
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("context %s: %w", context, err)
	}
	c.steps[context] = make(map[string]StepData)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		step, ok := tok.(string)
		if !ok {
			return fmt.Errorf("context %s: expected step name, got %v", context, tok)
		}
		var sd StepData
		if err := dec.Decode(&sd); err != nil {
			return fmt.Errorf("context %s step %s: %w", context, step, err)
		}
		if _, dup := c.steps[context][step]; dup {
			return fmt.Errorf("context %s: duplicate step %s", context, step)
		}
		c.order[context] = append(c.order[context], step)
		c.steps[context][step] = sd
	}
	if err := expectDelim(dec, '}'); err != nil {
		return fmt.Errorf("context %s: %w", context, err)
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want.String(), tok)
	}
	return nil
}

// HasContext reports whether the context is a known script.
func (c *Catalog) HasContext(context string) bool {
	_, ok := c.steps[context]
	return ok
}

// GetStep returns the step data for (context, step).
func (c *Catalog) GetStep(context, step string) (StepData, bool) {
	sd, ok := c.steps[context][step]
	return sd, ok
}

// StepsOf returns the declared step names of a context in progression order.
// Unknown contexts yield an empty list.
func (c *Catalog) StepsOf(context string) []string {
	return c.order[context]
}

// FirstStep returns the first declared step of a context.
func (c *Catalog) FirstStep(context string) (string, bool) {
	steps := c.order[context]
	if len(steps) == 0 {
		return "", false
	}
	return steps[0], true
}

// LastStep returns the last declared step of a context.
func (c *Catalog) LastStep(context string) (string, bool) {
	steps := c.order[context]
	if len(steps) == 0 {
		return "", false
	}
	return steps[len(steps)-1], true
}

// IsLastStep reports whether step is the last declared step of context.
func (c *Catalog) IsLastStep(context, step string) bool {
	last, ok := c.LastStep(context)
	return ok && last == step
}

// NextStep returns the step following current. An unrecognized current step is
// treated as "before the first step", so it yields the first declared step.
// has_next is false when current is the last declared step or the context has
// no steps at all.
func (c *Catalog) NextStep(context, current string) (bool, string, StepData) {
	steps := c.order[context]
	if len(steps) == 0 {
		return false, "", StepData{}
	}
	idx := -1
	for i, s := range steps {
		if s == current {
			idx = i
			break
		}
	}
	next := idx + 1
	if next >= len(steps) {
		return false, "", StepData{}
	}
	name := steps[next]
	return true, name, c.steps[context][name]
}

// StepForAction returns the step of context that offers the given action_id.
func (c *Catalog) StepForAction(context, actionID string) (string, bool) {
	if actionID == "" {
		return "", false
	}
	for _, step := range c.order[context] {
		for _, a := range c.steps[context][step].Actions {
			if a.ActionID == actionID {
				return step, true
			}
		}
	}
	return "", false
}

// StepForPrompt returns the step of context whose prompt text matches value.
// Fallback for rolling back over automated messages written before step names
// were stored on the row.
func (c *Catalog) StepForPrompt(context, value string) (string, bool) {
	for _, step := range c.order[context] {
		if c.steps[context][step].Message == value {
			return step, true
		}
	}
	return "", false
}
