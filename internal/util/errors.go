package util

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors used throughout callboard
var (
	ErrBackendUnknown   = errors.New("unknown backend kind")
	ErrBackendNotSet    = errors.New("no backend URL configured")
	ErrNoProject        = errors.New("no project selected")
	ErrNotConnected     = errors.New("not connected to database")
	ErrNotInteractive   = errors.New("not running in a terminal")
	ErrUnsupportedValue = errors.New("unsupported value")
)

// Error is a structured error with context and suggestions. The CLI
// prints it with Format at the top level.
type Error struct {
	Title       string   // Short error title
	Message     string   // Detailed message
	Context     string   // What was being attempted
	Causes      []string // Possible causes
	Suggestions []string // Commands worth trying
	Err         error    // Wrapped error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Title + ": " + e.Err.Error()
	}
	return e.Title
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Format renders the error for a terminal.
func (e *Error) Format() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Error: %s\n", e.Title)

	if e.Message != "" {
		fmt.Fprintf(&sb, "\n  %s\n", e.Message)
	}
	if e.Context != "" {
		fmt.Fprintf(&sb, "\n  %s\n", e.Context)
	}
	if e.Err != nil && e.Message == "" {
		fmt.Fprintf(&sb, "\n  %s\n", e.Err)
	}

	if len(e.Causes) > 0 {
		sb.WriteString("\n  Possible causes:\n")
		for _, cause := range e.Causes {
			fmt.Fprintf(&sb, "    • %s\n", cause)
		}
	}

	if len(e.Suggestions) > 0 {
		sb.WriteString("\n  Try:\n")
		for _, sug := range e.Suggestions {
			fmt.Fprintf(&sb, "    $ %s\n", sug)
		}
	}

	return sb.String()
}

// NewError creates a new Error
func NewError(title string) *Error {
	return &Error{Title: title}
}

// WithMessage adds a detailed message
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithContext adds context about what was being attempted
func (e *Error) WithContext(ctx string) *Error {
	e.Context = ctx
	return e
}

// WithCauses adds possible causes
func (e *Error) WithCauses(causes ...string) *Error {
	e.Causes = append(e.Causes, causes...)
	return e
}

// WithSuggestions adds actionable suggestions
func (e *Error) WithSuggestions(sugs ...string) *Error {
	e.Suggestions = append(e.Suggestions, sugs...)
	return e
}

// Wrap wraps an underlying error
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// ══════════════════════════════════════════════════════════════════════════
// Pre-built error constructors for common cases
// ══════════════════════════════════════════════════════════════════════════

// BackendError reports a failed request against the REST backend.
func BackendError(url string, err error) *Error {
	return NewError("Cannot reach the callboard backend").
		WithContext(url).
		WithCauses(
			"The API server is not running",
			"backend.url points at the wrong host or port",
			"The request timed out",
		).
		WithSuggestions(
			"callboard config backend.url <url>",
			"callboard doctor",
		).
		Wrap(err)
}

// DatabaseConnectionError reports a failed PostgreSQL connection.
func DatabaseConnectionError(url string, err error) *Error {
	return NewError("Cannot connect to database").
		WithContext(RedactURL(url)).
		WithCauses(
			"Database server is not running",
			"Invalid connection credentials",
			"Database does not exist",
		).
		WithSuggestions(
			"callboard doctor",
			"callboard db init",
		).
		Wrap(err)
}

// NoProjectError is returned when a project-scoped list has no project.
func NoProjectError(kind string) *Error {
	return NewError(fmt.Sprintf("Listing %s needs a project", kind)).
		WithSuggestions(
			fmt.Sprintf("callboard %s --project <id>", kind),
			"callboard config project.default <id>",
			"callboard projects     # Find a project ID",
		).
		Wrap(ErrNoProject)
}

// NotFoundError reports a record that does not exist.
func NotFoundError(kind, id string, err error) *Error {
	return NewError(fmt.Sprintf("%s '%s' not found", kind, id)).
		WithSuggestions(fmt.Sprintf("callboard %ss       # List existing records", kind)).
		Wrap(err)
}

// MissingArgumentError returns an error for missing required argument
func MissingArgumentError(argName, example string) *Error {
	e := NewError(fmt.Sprintf("Missing required argument: <%s>", argName))
	if example != "" {
		e.WithSuggestions(example)
	}
	return e
}

// TooManyArgumentsError returns an error for too many arguments
func TooManyArgumentsError(expected int, got int) *Error {
	return NewError(fmt.Sprintf("Too many arguments: expected %d, got %d", expected, got))
}

// RedactURL hides the password of a connection URL.
func RedactURL(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return url
	}
	if user, _, hasPass := strings.Cut(creds, ":"); hasPass {
		return scheme + "://" + user + ":***@" + host
	}
	return url
}
