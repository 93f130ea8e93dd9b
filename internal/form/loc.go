package form

import (
	"bytes"
	"fmt"
)

type Span struct {
	Start int32 `json:"start"` //0-indexed
	End   int32 `json:"end"`   //exclusive end, 0-indexed
}

func (s Span) Len() int32 {
	return s.End - s.Start
}

// Loc is the source range of a form.
type Loc struct {
	SourceName  string `json:"sourceName"`
	StartLine   int32  `json:"line"`      //1-indexed
	StartColumn int32  `json:"column"`    //1-indexed
	EndLine     int32  `json:"endLine"`   //1-indexed
	EndColumn   int32  `json:"endColumn"` //1-indexed
	Span        Span   `json:"span"`
}

func (l Loc) String() string {
	return fmt.Sprintf("%s:%d:%d:", l.SourceName, l.StartLine, l.StartColumn)
}

func (l Loc) IsZero() bool {
	return l == Loc{}
}

type LocStack []Loc

func (stack LocStack) String() string {
	buff := bytes.NewBuffer(nil)
	for _, loc := range stack {
		buff.WriteString(loc.String())
		buff.WriteRune(' ')
	}
	return buff.String()
}

type LocatedError interface {
	error
	MessageWithoutLocation() string
	Location() Loc
}
