package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const answerResultSchemaURL = "schema://answer_result.json"

var answerResultSchemaDef = map[string]any{
	"type":     "object",
	"required": []any{"isCorrect"},
	"properties": map[string]any{
		"isCorrect": map[string]any{"type": "boolean"},
	},
}

var answerResultSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(answerResultSchemaURL, answerResultSchemaDef); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(answerResultSchemaURL)
})

// AnswerResult is the payload of SignalAnswerResult.
type AnswerResult struct {
	IsCorrect bool `json:"isCorrect"`
}

// PayloadError indicates a signal payload that is not valid JSON or does not
// match its schema.
type PayloadError struct {
	Signal  string
	Payload json.RawMessage
	Err     error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Signal, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// ParseAnswerResult decodes and validates an answerResult payload. Senders
// that store values as strings may wrap the object in a JSON string; one
// level of such wrapping is accepted.
func ParseAnswerResult(raw json.RawMessage) (AnswerResult, error) {
	fail := func(err error) (AnswerResult, error) {
		return AnswerResult{}, &PayloadError{Signal: SignalAnswerResult, Payload: raw, Err: err}
	}

	data := bytes.TrimSpace(raw)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return fail(fmt.Errorf("invalid JSON: %w", err))
		}
		data = []byte(inner)
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fail(fmt.Errorf("invalid JSON: %w", err))
	}

	schema, err := answerResultSchema()
	if err != nil {
		return fail(fmt.Errorf("compile schema: %w", err))
	}
	if err := schema.Validate(parsed); err != nil {
		return fail(fmt.Errorf("schema validation failed: %w", err))
	}

	var res AnswerResult
	if err := json.Unmarshal(data, &res); err != nil {
		return fail(err)
	}
	return res, nil
}

// EncodeAnswerResult returns the payload for SignalAnswerResult.
func EncodeAnswerResult(correct bool) json.RawMessage {
	b, _ := json.Marshal(AnswerResult{IsCorrect: correct})
	return b
}
