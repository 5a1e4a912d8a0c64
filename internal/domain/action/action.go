// Package action models the request/response envelope agents use to call tool handlers.
package action

import "net/http"

// MessageVersion is the envelope version every response carries.
const MessageVersion = "1.0"

const contentTypeJSON = "application/json"

// Property is a single named parameter passed by the agent.
type Property struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Content holds the properties of one content type.
type Content struct {
	Properties []Property `json:"properties"`
}

// RequestBody maps a content type to its properties.
type RequestBody struct {
	Content map[string]Content `json:"content"`
}

// Input is an inbound tool invocation.
type Input struct {
	MessageVersion string      `json:"messageVersion,omitempty"`
	ActionGroup    string      `json:"actionGroup"`
	APIPath        string      `json:"apiPath"`
	HTTPMethod     string      `json:"httpMethod"`
	SessionID      string      `json:"sessionId,omitempty"`
	InputText      string      `json:"inputText,omitempty"`
	RequestBody    RequestBody `json:"requestBody"`
}

// Properties returns the JSON properties of the request body.
func (in Input) Properties() []Property {
	return in.RequestBody.Content[contentTypeJSON].Properties
}

// Property looks up a property by name and, when typ is non-empty, by type.
func (in Input) Property(name, typ string) (Property, bool) {
	for _, p := range in.Properties() {
		if p.Name == name && (typ == "" || p.Type == typ) {
			return p, true
		}
	}
	return Property{}, false
}

// Body is the response payload of one content type.
type Body struct {
	Body string `json:"body"`
}

// Response is the routed part of an Output.
type Response struct {
	ActionGroup    string          `json:"actionGroup"`
	APIPath        string          `json:"apiPath"`
	HTTPMethod     string          `json:"httpMethod"`
	HTTPStatusCode int             `json:"httpStatusCode"`
	ResponseBody   map[string]Body `json:"responseBody"`
}

// Output is a tool response.
type Output struct {
	MessageVersion string   `json:"messageVersion"`
	Response       Response `json:"response"`
}

// Reply builds a response to in with the given status and body.
func Reply(in Input, status int, body string) Output {
	return Output{
		MessageVersion: MessageVersion,
		Response: Response{
			ActionGroup:    in.ActionGroup,
			APIPath:        in.APIPath,
			HTTPMethod:     in.HTTPMethod,
			HTTPStatusCode: status,
			ResponseBody:   map[string]Body{contentTypeJSON: {Body: body}},
		},
	}
}

// OK builds a 200 response.
func OK(in Input, body string) Output { return Reply(in, http.StatusOK, body) }

// Body returns the JSON body text of the output.
func (o Output) Body() string {
	return o.Response.ResponseBody[contentTypeJSON].Body
}
