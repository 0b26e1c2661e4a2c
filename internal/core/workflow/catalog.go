package workflow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// TriggerDefinition describes an event rule authors can listen for
type TriggerDefinition struct {
	Event  string `json:"event"`
	Entity string `json:"entity"`
	Label  string `json:"label"`
}

// ActionDefinition describes an action type rule authors can use
type ActionDefinition struct {
	Type   ActionType             `json:"type"`
	Label  string                 `json:"label"`
	Params []string               `json:"params"`
	Schema map[string]interface{} `json:"schema"`
}

var availableTriggers = []TriggerDefinition{
	{Event: "contact_created", Entity: "contact", Label: "Contact Created"},
	{Event: "lead_created", Entity: "lead", Label: "Lead Created"},
	{Event: "opportunity_created", Entity: "opportunity", Label: "Opportunity Created"},
	{Event: "ticket_created", Entity: "ticket", Label: "Ticket Created"},
	{Event: "task_completed", Entity: "task", Label: "Task Completed"},
}

func stringProp() map[string]interface{} {
	return map[string]interface{}{"type": "string"}
}

func requiredStringProp() map[string]interface{} {
	return map[string]interface{}{"type": "string", "minLength": 1}
}

func objectSchema(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"required":   required,
		"properties": props,
	}
}

var availableActions = []ActionDefinition{
	{
		Type:   ActionCreateTask,
		Label:  "Create Task",
		Params: []string{"subject", "assignedTo", "dueAt", "notes"},
		Schema: objectSchema([]string{"assignedTo"}, map[string]interface{}{
			"subject":    stringProp(),
			"assignedTo": requiredStringProp(),
			"dueAt":      stringProp(),
			"notes":      stringProp(),
		}),
	},
	{
		Type:   ActionSendEmail,
		Label:  "Send Email",
		Params: []string{"to", "subject", "content"},
		Schema: objectSchema([]string{"to"}, map[string]interface{}{
			"to":      requiredStringProp(),
			"subject": stringProp(),
			"content": stringProp(),
		}),
	},
	{
		Type:   ActionSendSMS,
		Label:  "Send SMS",
		Params: []string{"to", "message"},
		Schema: objectSchema([]string{"to", "message"}, map[string]interface{}{
			"to":      requiredStringProp(),
			"message": requiredStringProp(),
		}),
	},
	{
		Type:   ActionUpdateField,
		Label:  "Update Field",
		Params: []string{"field", "value"},
		Schema: objectSchema([]string{"field"}, map[string]interface{}{
			"field": map[string]interface{}{"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$"},
		}),
	},
	{
		Type:   ActionCallWebhook,
		Label:  "Call Webhook",
		Params: []string{"url", "method", "headers", "body"},
		Schema: objectSchema([]string{"url"}, map[string]interface{}{
			"url":    map[string]interface{}{"type": "string", "pattern": "^https?://"},
			"method": map[string]interface{}{"type": "string", "enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "get", "post", "put", "patch", "delete"}},
			"headers": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": stringProp(),
			},
		}),
	},
	{
		Type:   ActionUpdateLeadScore,
		Label:  "Update Lead Score",
		Params: []string{"score"},
		Schema: objectSchema([]string{"score"}, map[string]interface{}{
			"score": map[string]interface{}{"type": "number"},
		}),
	},
}

var actionSchemas = compileActionSchemas()

func compileActionSchemas() map[ActionType]*gojsonschema.Schema {
	schemas := make(map[ActionType]*gojsonschema.Schema, len(availableActions))
	for _, def := range availableActions {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Schema))
		if err != nil {
			panic(fmt.Sprintf("invalid schema for action %s: %v", def.Type, err))
		}
		schemas[def.Type] = schema
	}
	return schemas
}

// AvailableTriggers lists the trigger catalog
func AvailableTriggers() []TriggerDefinition {
	out := make([]TriggerDefinition, len(availableTriggers))
	copy(out, availableTriggers)
	return out
}

// AvailableActions lists the action types the executor supports
func AvailableActions() []ActionDefinition {
	out := make([]ActionDefinition, len(availableActions))
	copy(out, availableActions)
	return out
}

// ParamsError lists the schema violations of one action's params
type ParamsError struct {
	Index    int
	Type     ActionType
	Problems []string
}

func (e *ParamsError) Error() string {
	return fmt.Sprintf("action %d (%s) has invalid params: %s", e.Index, e.Type, strings.Join(e.Problems, "; "))
}

// ValidateActions checks each action's type against the catalog and its params
// against the type's JSON schema
func ValidateActions(actions []Action) error {
	for i, action := range actions {
		schema, ok := actionSchemas[action.Type]
		if !ok {
			return &UnsupportedActionError{Type: action.Type}
		}

		params := action.Params
		if params == nil {
			params = map[string]interface{}{}
		}
		result, err := schema.Validate(gojsonschema.NewGoLoader(params))
		if err != nil {
			return &ParamsError{Index: i, Type: action.Type, Problems: []string{err.Error()}}
		}
		if !result.Valid() {
			problems := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				problems = append(problems, desc.String())
			}
			return &ParamsError{Index: i, Type: action.Type, Problems: problems}
		}
	}
	return nil
}
