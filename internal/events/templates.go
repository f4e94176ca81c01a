package events

import (
	"fmt"
	"strings"
	"sync"
)

// MessageTemplateEngine provides dynamic message generation for events.
type MessageTemplateEngine struct {
	mu        sync.RWMutex
	templates map[EventReason]string
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	e.templates[ReasonServerStarting] = "Server {{.Server}} is starting{{if .Mode}} in {{.Mode}} mode{{end}}"
	e.templates[ReasonServerStarted] = "Server {{.Server}} started{{if .Duration}} in {{.Duration}}{{end}}"
	e.templates[ReasonServerStopping] = "Server {{.Server}} is stopping"
	e.templates[ReasonServerStopped] = "Server {{.Server}} stopped"
	e.templates[ReasonServerStartFailed] = "Server {{.Server}} failed to start{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonServerStopFailed] = "Server {{.Server}} failed to stop{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonServerPollTimedOut] = "Server {{.Server}} did not reach {{.State}}{{if .Duration}} within {{.Duration}}{{end}}"
	e.templates[ReasonServerProcessTerminated] = "Server {{.Server}} process {{.ProcessID}} terminated{{if .Error}}: {{.Error}}{{end}}"

	e.templates[ReasonDeployableStateChanged] = "Deployable {{.Deployable}} on {{.Server}} changed from {{.PreviousState}} to {{.State}}"
	e.templates[ReasonDeployablePublishFailed] = "Deployable {{.Deployable}} on {{.Server}} failed to publish{{if .Error}}: {{.Error}}{{end}}"
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	template, exists := e.GetTemplate(reason)
	if !exists {
		return fmt.Sprintf("Event: %s for %s", string(reason), data.Server)
	}
	return e.renderTemplate(template, data)
}

// SetTemplate allows customizing the message template for a specific event reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, template string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[reason] = template
}

// GetTemplate returns the template for a specific event reason.
func (e *MessageTemplateEngine) GetTemplate(reason EventReason) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	template, exists := e.templates[reason]
	return template, exists
}

// renderTemplate substitutes EventData fields. Only {{.Field}} and {{if .Field}}...{{end}}
// are supported.
func (e *MessageTemplateEngine) renderTemplate(template string, data EventData) string {
	result := e.renderConditionals(template, data)

	result = strings.ReplaceAll(result, "{{.Server}}", data.Server)
	result = strings.ReplaceAll(result, "{{.Deployable}}", data.Deployable)
	result = strings.ReplaceAll(result, "{{.State}}", data.State)
	result = strings.ReplaceAll(result, "{{.PreviousState}}", data.PreviousState)
	result = strings.ReplaceAll(result, "{{.Mode}}", data.Mode)
	result = strings.ReplaceAll(result, "{{.ProcessID}}", data.ProcessID)
	result = strings.ReplaceAll(result, "{{.Error}}", data.Error)

	duration := ""
	if data.Duration > 0 {
		duration = data.Duration.String()
	}
	result = strings.ReplaceAll(result, "{{.Duration}}", duration)

	return result
}

func (e *MessageTemplateEngine) renderConditionals(template string, data EventData) string {
	result := template
	result = e.renderConditional(result, "{{if .Error}}", "{{end}}", data.Error != "")
	result = e.renderConditional(result, "{{if .Duration}}", "{{end}}", data.Duration > 0)
	result = e.renderConditional(result, "{{if .Mode}}", "{{end}}", data.Mode != "")
	return result
}

// renderConditional handles a single conditional block.
func (e *MessageTemplateEngine) renderConditional(template, startMarker, endMarker string, condition bool) string {
	startIndex := strings.Index(template, startMarker)
	if startIndex == -1 {
		return template
	}

	endIndex := strings.Index(template[startIndex:], endMarker)
	if endIndex == -1 {
		return template
	}
	endIndex += startIndex

	before := template[:startIndex]
	after := template[endIndex+len(endMarker):]
	if condition {
		content := template[startIndex+len(startMarker) : endIndex]
		return before + content + after
	}
	return before + after
}
