package guard

import "net/http"

// Response is the structured result envelope of a guarded call: a status
// code plus a JSON-serializable body. Operations may return one directly to
// control the outgoing response; the guard then passes it through untouched.
type Response struct {
	Status int
	Body   any
}

// MessageBody is the body of generic success responses.
type MessageBody struct {
	Message string `json:"message"`
}

// ErrorBody is the body of every failure response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Success builds a response with an arbitrary body.
func Success(status int, body any) *Response {
	return &Response{Status: status, Body: body}
}

// OK builds a 200 response with an arbitrary body.
func OK(body any) *Response {
	return Success(http.StatusOK, body)
}

// Failure builds a response carrying a single error message.
func Failure(status int, message string) *Response {
	return &Response{Status: status, Body: ErrorBody{Error: message}}
}
