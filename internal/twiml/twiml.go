// Package twiml builds the voice-markup documents returned to the
// telephony carrier. The carrier expects Content-Type text/xml and a
// well-formed <Response> on every webhook reply; an HTTP error leaves the
// caller with dead air, so handlers render an apology document instead of
// failing.
package twiml

import (
	"encoding/xml"
	"fmt"
	"net/http"
)

// Response is the root voice-markup document. Verbs execute in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks text to the caller.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Gather collects DTMF digits or a speech utterance and posts them to
// Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Input         string   `xml:"input,attr,omitempty"` // "dtmf", "speech"
	NumDigits     int      `xml:"numDigits,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	Say           *Say     `xml:"Say,omitempty"`
}

// Dial bridges the caller to a destination number.
type Dial struct {
	XMLName        xml.Name `xml:"Dial"`
	Action         string   `xml:"action,attr,omitempty"`
	Timeout        int      `xml:"timeout,attr,omitempty"`
	AnswerOnBridge bool     `xml:"answerOnBridge,attr,omitempty"`
	MachineDetect  string   `xml:"machineDetection,attr,omitempty"`
	Number         string   `xml:",chardata"`
}

// Record records the caller (voicemail) and posts the recording reference
// to Action.
type Record struct {
	XMLName            xml.Name `xml:"Record"`
	Action             string   `xml:"action,attr,omitempty"`
	MaxLength          int      `xml:"maxLength,attr,omitempty"`
	PlayBeep           bool     `xml:"playBeep,attr,omitempty"`
	Transcribe         bool     `xml:"transcribe,attr,omitempty"`
	TranscribeCallback string   `xml:"transcribeCallback,attr,omitempty"`
}

// Redirect transfers webhook control to another URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Pause waits the given number of seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// New returns a Response containing the given verbs in order.
func New(verbs ...any) *Response {
	return &Response{Verbs: verbs}
}

// Render marshals the document with the XML header.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling voice response: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Write renders the document to the HTTP response. Rendering is
// infallible for documents built from the types above; if marshalling
// somehow fails the hard-coded fallback document is written so the caller
// still hears something.
func (r *Response) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	body, err := r.Render()
	if err != nil {
		body = []byte(xml.Header + fallbackDocument)
	}
	w.Write(body) //nolint:errcheck
}

// fallbackDocument is the last-resort reply: apologize and hang up.
const fallbackDocument = `<Response><Say>We are sorry, an application error occurred. Goodbye.</Say><Hangup></Hangup></Response>`

// Apology returns the graceful failure document: a spoken apology
// followed by hangup. Every internal error path renders this rather than
// an HTTP error.
func Apology(text string) *Response {
	return New(Say{Text: text}, Hangup{})
}
