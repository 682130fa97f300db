package conversation

// Part is one element of an event's content. It is a closed set: Text,
// FunctionCall, FunctionResponse and FileData are the only implementations.
type Part interface {
	isPart()
}

// Text is a plain text fragment.
type Text struct {
	Text string
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// FunctionResponse carries the result of a tool invocation back to the model.
type FunctionResponse struct {
	Name     string
	Response map[string]any
}

// FileData references a file stored elsewhere.
type FileData struct {
	FileURI  string
	MIMEType string
}

func (Text) isPart()             {}
func (FunctionCall) isPart()     {}
func (FunctionResponse) isPart() {}
func (FileData) isPart()         {}

// Content is an ordered list of parts with the logical role that produced them.
type Content struct {
	Role  string
	Parts []Part
}

// Roles assigned to content.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// NewTextContent builds a single text part content.
func NewTextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{Text{Text: text}}}
}

// Texts returns the text of every Text part in order.
func (c Content) Texts() []string {
	var out []string
	for _, p := range c.Parts {
		if t, ok := p.(Text); ok && t.Text != "" {
			out = append(out, t.Text)
		}
	}
	return out
}

// HasFunctionResponse reports whether any part is a FunctionResponse.
func (c Content) HasFunctionResponse() bool {
	for _, p := range c.Parts {
		if _, ok := p.(FunctionResponse); ok {
			return true
		}
	}
	return false
}

// TextOnly returns a copy of c keeping only its non-empty Text parts.
func (c Content) TextOnly() Content {
	out := Content{Role: c.Role}
	for _, t := range c.Texts() {
		out.Parts = append(out.Parts, Text{Text: t})
	}
	return out
}
