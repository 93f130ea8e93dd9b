package analyser

import (
	"fmt"

	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/utils"
)

const (
	EMPTY_LIST_IN_VALUE_POSITION = "empty list not allowed in value position"

	//records
	ODD_RECORD_LITERAL     = "record literal must have even number of forms"
	RECORD_KEYS_MUST_BE_KW = "record keys must be keywords"

	//let
	LET_REQUIRES_VECTOR       = "let requires a vector of bindings"
	ODD_LET_BINDINGS          = "let bindings must have even number of forms"
	LET_REQUIRES_BODY         = "let requires a body"
	BINDING_NAME_MUST_BE_SYMB = "binding name must be a symbol"

	//fn, def, defmacro
	FN_REQUIRES_SIGNATURE        = "fn requires a signature list (fn-name & params)"
	FN_SIGNATURE_MUST_START_NAME = "fn signature must start with a name"
	FN_PARAM_MUST_BE_SYMBOL      = "fn parameter must be a symbol"
	FN_REQUIRES_BODY             = "fn requires a body"
	DEF_REQUIRES_NAME            = "def requires a name or signature"
	DEF_REQUIRES_VALUE           = "def requires a value"
	DEF_TOO_MANY_FORMS           = "def requires exactly one value"
	DEFMACRO_REQUIRES_SIGNATURE  = "defmacro requires a signature: (defmacro (name params...) body...)"

	//deftag, defkey, defx
	DEFTAG_REQUIRES_SIGNATURE = "deftag requires a tag name or signature"
	TAG_FIELD_MUST_BE_SYMBOL  = "field names must be symbols"
	DEFKEY_REQUIRES_KEYWORD   = "defkey requires an unqualified keyword: (defkey :name Type)"
	DEFX_REQUIRES_SIGNATURE   = "defx requires a signature and a result type: (defx (name ParamType...) ResultType)"

	//do, if
	DO_REQUIRES_EXPRESSION = "do requires at least one expression"
	BODY_REQUIRES_EXPR     = "body requires at least one expression"
	IF_REQUIRES_3_ARGS     = "if requires exactly 3 arguments: predicate, then, else"

	//case
	CASE_REQUIRES_BRANCH          = "case requires a scrutinee and at least one branch"
	CASE_BRANCH_MISSING_BODY      = "case branch missing body expression"
	DEFAULT_EXPR_MUST_BE_LAST     = "default expression must be last in case"
	CASE_PATTERN_MUST_BE_TAG      = "case pattern must be a tag"
	CASE_PATTERN_MUST_START_TAG   = "case pattern must start with a tag name"
	CASE_PATTERN_BINDINGS_SYMBOLS = "case pattern bindings must be symbols"

	//quote
	QUOTE_REQUIRES_ONE_ARG = "quote requires exactly one argument"
	UNQUOTE_OUTSIDE_QUOTE  = "unquote (~) can only be used inside a quote"

	//with-fx
	WITH_FX_REQUIRES_VECTOR  = "with-fx requires a vector of handlers: (with-fx [(def (effect! params...) body...) ...] body...)"
	WITH_FX_HANDLER_MUST_DEF = "with-fx handlers must be defs with a signature: (def (effect! params...) body...)"

	//macros
	MACRO_EXPANSION_NOT_SUPPORTED = "macros cannot be expanded in this context"
)

func fmtUnknownSymbol(name string) string {
	return "Unknown symbol: " + name
}

func fmtUnknownSymbolInNamespace(member, ns string) string {
	return fmt.Sprintf("Unknown symbol: %s in namespace %s", member, ns)
}

func fmtUnknownNamespace(ns string) string {
	return "Unknown namespace: " + ns
}

func fmtUnknownKey(kw *form.KeywordForm) string {
	return "Unknown key: " + kw.String()
}

func fmtUnknownTag(name string) string {
	return "Unknown tag: " + name
}

func fmtNotATag(name string) string {
	return fmt.Sprintf("%s is not a tag", name)
}

func fmtTagArity(name string, expected, actual int) string {
	return fmt.Sprintf("tag %s has %d field(s), pattern binds %d", name, expected, actual)
}

func fmtTagMustBeCapitalized(name string) string {
	return "tag names must be capitalized: " + name
}

func fmtCasePatternTagMustBeCapitalized(name string) string {
	return "case pattern tag must be capitalized: " + name
}

func fmtNotAllowedInValuePosition(special string) string {
	return special + " not allowed in value position"
}

func fmtMacroInValuePosition(name string) string {
	return "macro " + name + " can only be used in call position"
}

func fmtMaxExpansionDepth(max int) string {
	return fmt.Sprintf("Maximum macro expansion depth (%d) exceeded", max)
}

func fmtMacroExpansionFailed(name string, err error) string {
	return fmt.Sprintf("expansion of macro %s failed: %s", name, err)
}

func fmtNotAnEffect(name string) string {
	return name + " is not an effect"
}

func fmtFormConstructorNotFound(name string) string {
	return name + " constructor not found"
}

func fmtUnknownType(name string) string {
	return "Unknown type: " + name
}

func fmtInvalidTypeAnnotation(f form.Form) string {
	return "invalid type annotation: " + f.String()
}

// An Error is a recoverable analysis failure.
type Error struct {
	Message string
	Loc     form.Loc
}

func (e *Error) Error() string {
	if e.Loc.IsZero() {
		return e.Message
	}
	return e.Loc.String() + " " + e.Message
}

func (e *Error) MessageWithoutLocation() string {
	return e.Message
}

func (e *Error) Location() form.Loc {
	return e.Loc
}

// Errors is the aggregate returned when the analysis of a top-level form recorded at least one error.
type Errors struct {
	Loc    form.Loc
	Errors []*Error
}

func (e *Errors) Error() string {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return utils.CombineErrors(errs...).Error()
}

func (e *Errors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}
