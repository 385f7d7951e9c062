package internal

import (
	"fmt"
	"strings"
)

// ContentType classifies a command line argument
type ContentType int

const (
	ContentTypeUnknown ContentType = iota
	ContentTypeVideo
	ContentTypeCommand
)

// String returns a human-readable representation of the content type
func (ct ContentType) String() string {
	switch ct {
	case ContentTypeVideo:
		return "video"
	case ContentTypeCommand:
		return "command"
	default:
		return "unknown"
	}
}

// ParsedArg represents the result of parsing a command line argument
type ParsedArg struct {
	ContentType   ContentType
	OriginalInput string
	ID            string
	Error         error
}

// ParseArg classifies arg as a video reference, a likely mistyped command or neither.
func ParseArg(arg string) *ParsedArg {
	p := &ParsedArg{OriginalInput: arg}
	id, err := ParseVideoArg(arg)
	switch {
	case err == nil:
		p.ContentType = ContentTypeVideo
		p.ID = id
	case IsLikelyCommand(arg):
		p.ContentType = ContentTypeCommand
		p.Error = fmt.Errorf("unknown command %q", arg)
	default:
		p.Error = err
	}
	return p
}

// IsValid returns true if the parsed argument is a video with no errors
func (p *ParsedArg) IsValid() bool {
	return p.Error == nil && p.ContentType == ContentTypeVideo
}

// String returns a formatted representation of the parsed argument
func (p *ParsedArg) String() string {
	if p.Error != nil {
		return fmt.Sprintf("ParsedArg{type=%s, input=%q, error=%v}", p.ContentType, p.OriginalInput, p.Error)
	}
	return fmt.Sprintf("ParsedArg{type=%s, id=%s}", p.ContentType, p.ID)
}

// SuggestCorrection provides helpful suggestions for invalid inputs
func (p *ParsedArg) SuggestCorrection(availableCommands []string) string {
	if p.ContentType != ContentTypeCommand {
		return ""
	}

	input := strings.ToLower(p.OriginalInput)
	var suggestions []string
	for _, cmd := range availableCommands {
		if strings.Contains(cmd, input) || strings.Contains(input, cmd) {
			suggestions = append(suggestions, cmd)
		}
	}

	if len(suggestions) > 0 {
		return fmt.Sprintf("did you mean: %s", strings.Join(suggestions, ", "))
	}
	return "use --help to see available commands"
}
