package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reference is one row of supporting material cited in an AnswerWithRAGResponse: either a
// verbatim definition or a section of a Document, keyed by the document it came from.
type Reference struct {
	DocumentKey    string
	DocumentName   string
	SectionRef     string
	IsDefinition   bool
	Text           string
	CosineDistance float32
}

// NoAnswerClassification enumerates the reasons the orchestrator can decline to answer.
type NoAnswerClassification int

const (
	NoData NoAnswerClassification = iota
	NoRelevantData
	QuestionNotRelevant
	UnableToAnswer
)

func (c NoAnswerClassification) String() string {
	switch c {
	case NoData:
		return "I do not have any information on this topic."
	case NoRelevantData:
		return "I could not find any information relevant to this question in the documents available to me."
	case QuestionNotRelevant:
		return "This question does not appear to be relevant to the documents available to me."
	case UnableToAnswer:
		return "I was unable to formulate an answer to this question from the documents available to me."
	default:
		return "unknown"
	}
}

// ErrorClassification enumerates the ways a turn can fail. Only some of them leave the
// session STUCK; NotFollowingInstructions and CallForMoreDocumentsFailed leave it in RAG.
type ErrorClassification int

const (
	ErrGeneric ErrorClassification = iota
	ErrNotFollowingInstructions
	ErrCallForMoreDocumentsFailed
	ErrStuck
	ErrWorkflowNotImplemented
)

func (c ErrorClassification) String() string {
	switch c {
	case ErrGeneric:
		return "An error occurred while processing this question."
	case ErrNotFollowingInstructions:
		return "The language model did not follow the instructions given to it."
	case ErrCallForMoreDocumentsFailed:
		return "The language model asked for a document section that could not be retrieved."
	case ErrStuck:
		return "The conversation reached a state it could not recover from."
	case ErrWorkflowNotImplemented:
		return "The requested workflow is not implemented."
	default:
		return "unknown error"
	}
}

// AssistantResponse is the closed set of shapes an orchestrator turn can produce.
// Exactly one concrete type below satisfies it for any given turn.
type AssistantResponse interface {
	isAssistantResponse()
	// Content renders the response as the text that would be appended to a chat
	// transcript, references included where applicable.
	Content() string
}

// AnswerWithRAGResponse is an answer grounded in one or more retrieved References.
type AnswerWithRAGResponse struct {
	Answer     string
	References []Reference
}

func (AnswerWithRAGResponse) isAssistantResponse() {}

func (r AnswerWithRAGResponse) Content() string {
	if len(r.References) == 0 {
		return r.Answer
	}
	var b strings.Builder
	b.WriteString(r.Answer)
	b.WriteString("\n\nReference: \n\n")
	for _, ref := range r.References {
		kind := "Section"
		if ref.IsDefinition {
			kind = "Definition"
		}
		fmt.Fprintf(&b, "%s %s from %s:\n\n%s\n\n", kind, ref.SectionRef, ref.DocumentName, ref.Text)
	}
	return b.String()
}

// AnswerWithoutRAGResponse is an answer drawn from the model's general knowledge rather
// than a retrieved reference, always carrying a caveat about the reduced confidence.
type AnswerWithoutRAGResponse struct {
	Answer string
	Caveat string
}

func (AnswerWithoutRAGResponse) isAssistantResponse() {}

func (r AnswerWithoutRAGResponse) Content() string {
	return r.Answer + "\n\n" + r.Caveat
}

// AlternativeQuestionResponse suggests rephrasings of the user's question. It is never
// constructed by the orchestrator state machine; it exists for callers that want to offer
// query refinement as a standalone formatting step.
type AlternativeQuestionResponse struct {
	Questions []string
}

func (AlternativeQuestionResponse) isAssistantResponse() {}

func (r AlternativeQuestionResponse) Content() string {
	return strings.Join(r.Questions, "\n")
}

// NoAnswerResponse signals that the session declined to answer, along with why.
type NoAnswerResponse struct {
	Classification NoAnswerClassification
	AdditionalText string
}

func (NoAnswerResponse) isAssistantResponse() {}

func (r NoAnswerResponse) Content() string {
	if r.AdditionalText == "" {
		return r.Classification.String()
	}
	return r.Classification.String() + " " + r.AdditionalText
}

// ErrorResponse signals that a turn ended in an error, classified by Classification.
type ErrorResponse struct {
	Classification ErrorClassification
	AdditionalText string
}

func (ErrorResponse) isAssistantResponse() {}

func (r ErrorResponse) Content() string {
	if r.AdditionalText == "" {
		return r.Classification.String()
	}
	return r.Classification.String() + " " + r.AdditionalText
}

// GetCaveatForNoRAGResponse is the caveat text attached to every AnswerWithoutRAGResponse.
func GetCaveatForNoRAGResponse() string {
	return "NOTE: The following answer is provided without references and should therefore be treated with caution."
}

// SessionState is the coarse recoverability state of a Session: RAG means the session
// can keep taking turns normally; Stuck means the last turn ended in a state the
// orchestrator could not recover from on its own, and the caller should reset before
// continuing.
type SessionState int

const (
	StateRAG SessionState = iota
	StateStuck
)

func (s SessionState) String() string {
	if s == StateStuck {
		return "STUCK"
	}
	return "RAG"
}

// Message is one turn in a Session's transcript.
type Message struct {
	ID        string
	Role      string // "user", "assistant", "system"
	Content   string
	Timestamp time.Time
}

// NewMessage creates a Message with a generated ID and current timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Session carries the transcript and working retrieval state for one conversation.
// ExecutionPath records the tag of every orchestrator step that actually ran, in order,
// so a caller can audit which path a turn took without re-deriving it from the
// transcript; StrictRAG configures whether a turn with nothing retrieved falls through
// to general-knowledge answering or declines outright.
type Session struct {
	ID            string
	Messages      []Message
	State         SessionState
	StrictRAG     bool
	ExecutionPath []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSession creates a Session with a generated ID, current timestamps, and state RAG.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Messages:  make([]Message, 0),
		State:     StateRAG,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends a message to the session transcript and bumps UpdatedAt. A message
// with the same role and content as the transcript's last entry is dropped rather than
// appended, so the same message sent twice in a row is recorded once. Only the last entry
// is compared; a repeat with another message in between is appended.
func (s *Session) AddMessage(role, content string) {
	if n := len(s.Messages); n > 0 && s.Messages[n-1].Role == role && s.Messages[n-1].Content == content {
		return
	}
	s.Messages = append(s.Messages, NewMessage(role, content))
	s.UpdatedAt = time.Now()
}

// AppendExecutionStep records that tag ran this turn, skipping the append if tag is
// identical to the most recently recorded step (consecutive duplicates collapse, so a
// path that loops internally on the same step doesn't pad the trail).
func (s *Session) AppendExecutionStep(tag string) {
	if n := len(s.ExecutionPath); n > 0 && s.ExecutionPath[n-1] == tag {
		return
	}
	s.ExecutionPath = append(s.ExecutionPath, tag)
}

// Reset clears the transcript and execution path and returns the session to state RAG.
// Calling Reset twice in a row is indistinguishable from calling it once.
func (s *Session) Reset() {
	s.Messages = make([]Message, 0)
	s.ExecutionPath = nil
	s.State = StateRAG
	s.UpdatedAt = time.Now()
}
