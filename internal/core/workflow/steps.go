package workflow

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Step is the typed form of an Action. The set of steps is closed: only this
// package can implement Step, and the executor switches over every variant.
type Step interface {
	Type() ActionType
	isStep()
}

// CreateTaskStep creates a follow-up task related to the triggering entity
type CreateTaskStep struct {
	Subject    string
	AssignedTo string
	Notes      string
	DueAt      *time.Time
}

// SendEmailStep sends one email
type SendEmailStep struct {
	To      string
	Subject string
	Content string
}

// SendSMSStep sends one text message
type SendSMSStep struct {
	To      string
	Message string
}

// UpdateFieldStep sets one field on the triggering entity
type UpdateFieldStep struct {
	Field string
	Value interface{}
}

// UpdateLeadScoreStep sets the score of the triggering lead
type UpdateLeadScoreStep struct {
	Score float64
}

// CallWebhookStep issues one outbound HTTP call
type CallWebhookStep struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    interface{}
}

func (CreateTaskStep) Type() ActionType      { return ActionCreateTask }
func (SendEmailStep) Type() ActionType       { return ActionSendEmail }
func (SendSMSStep) Type() ActionType         { return ActionSendSMS }
func (UpdateFieldStep) Type() ActionType     { return ActionUpdateField }
func (UpdateLeadScoreStep) Type() ActionType { return ActionUpdateLeadScore }
func (CallWebhookStep) Type() ActionType     { return ActionCallWebhook }

func (CreateTaskStep) isStep()      {}
func (SendEmailStep) isStep()       {}
func (SendSMSStep) isStep()         {}
func (UpdateFieldStep) isStep()     {}
func (UpdateLeadScoreStep) isStep() {}
func (CallWebhookStep) isStep()     {}

const defaultTaskSubject = "Automated Task"

// ParseAction turns a stored action into its typed step, substituting
// {field} placeholders in text params from the payload.
func ParseAction(action Action, payload Payload) (Step, error) {
	p := params{action: action.Type, values: action.Params, payload: payload}

	switch action.Type {
	case ActionCreateTask:
		step := CreateTaskStep{
			Subject:    p.text("subject"),
			AssignedTo: p.text("assignedTo"),
			Notes:      p.text("notes"),
		}
		if step.Subject == "" {
			step.Subject = defaultTaskSubject
		}
		if step.AssignedTo == "" {
			return nil, actionErr(action.Type, "assignedTo is required")
		}
		dueAt, err := p.time("dueAt")
		if err != nil {
			return nil, err
		}
		step.DueAt = dueAt
		return step, nil

	case ActionSendEmail:
		step := SendEmailStep{To: p.text("to"), Subject: p.text("subject"), Content: p.text("content")}
		if step.To == "" {
			return nil, actionErr(action.Type, "to is required")
		}
		return step, nil

	case ActionSendSMS:
		step := SendSMSStep{To: p.text("to"), Message: p.text("message")}
		if step.To == "" {
			return nil, actionErr(action.Type, "to is required")
		}
		if step.Message == "" {
			return nil, actionErr(action.Type, "message is required")
		}
		return step, nil

	case ActionUpdateField:
		field := p.raw("field")
		if field == "" {
			return nil, actionErr(action.Type, "field is required")
		}
		return UpdateFieldStep{Field: field, Value: action.Params["value"]}, nil

	case ActionUpdateLeadScore:
		score, ok := toNumber(action.Params["score"])
		if !ok {
			return nil, actionErr(action.Type, "score must be numeric")
		}
		return UpdateLeadScoreStep{Score: score}, nil

	case ActionCallWebhook:
		step := CallWebhookStep{
			URL:     p.text("url"),
			Method:  strings.ToUpper(p.raw("method")),
			Headers: p.headers("headers"),
			Body:    action.Params["body"],
		}
		if step.Method == "" {
			step.Method = "POST"
		}
		u, err := url.Parse(step.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, actionErr(action.Type, "url must be an absolute http(s) URL")
		}
		return step, nil

	default:
		return nil, &UnsupportedActionError{Type: action.Type}
	}
}

type params struct {
	action  ActionType
	values  map[string]interface{}
	payload Payload
}

// raw returns a string param as stored
func (p params) raw(key string) string {
	s, _ := p.values[key].(string)
	return strings.TrimSpace(s)
}

// text returns a string param with placeholders replaced
func (p params) text(key string) string {
	return replaceVariables(p.raw(key), p.payload)
}

func (p params) time(key string) (*time.Time, error) {
	s := p.text(key)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, actionErr(p.action, "%s is not a valid date: %q", key, s)
}

func (p params) headers(key string) map[string]string {
	in, ok := p.values[key].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

var variablePattern = regexp.MustCompile(`\{([^{}]+)\}`)

// replaceVariables replaces {field} placeholders with payload values.
// Unknown placeholders are left as they are.
func replaceVariables(template string, payload Payload) string {
	if template == "" || len(payload) == 0 {
		return template
	}
	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSpace(match[1 : len(match)-1])
		value, ok := payload[name]
		if !ok {
			return match
		}
		return stringify(value)
	})
}

func describeStep(step Step) map[string]interface{} {
	switch s := step.(type) {
	case CreateTaskStep:
		return map[string]interface{}{"subject": s.Subject, "assigned_to": s.AssignedTo}
	case SendEmailStep:
		return map[string]interface{}{"to": s.To}
	case SendSMSStep:
		return map[string]interface{}{"to": s.To}
	case UpdateFieldStep:
		return map[string]interface{}{"field": s.Field, "value": s.Value}
	case UpdateLeadScoreStep:
		return map[string]interface{}{"score": s.Score}
	case CallWebhookStep:
		return map[string]interface{}{"url": s.URL, "method": s.Method}
	default:
		return map[string]interface{}{"step": fmt.Sprintf("%T", step)}
	}
}
