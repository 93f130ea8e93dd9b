package eval

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/bridjelang/bridje/internal/form"
	"github.com/shopspring/decimal"
	"src.elv.sh/pkg/persistent/vector"
)

// PrStr returns the readable representation of a value, strings are quoted.
func PrStr(v Value) string {
	w := &strings.Builder{}
	prStr(w, v)
	return w.String()
}

// Str is like PrStr but strings are not quoted.
func Str(v Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return PrStr(v)
}

func prStr(w *strings.Builder, v Value) {
	switch v := v.(type) {
	case nil:
		w.WriteString("nil")
	case int64:
		w.WriteString(strconv.FormatInt(v, 10))
	case float64:
		w.WriteString(form.FormatDouble(v))
	case *big.Int:
		w.WriteString(v.String())
		w.WriteByte('N')
	case decimal.Decimal:
		w.WriteString(v.String())
		w.WriteByte('M')
	case string:
		w.WriteString(strconv.Quote(v))
	case bool:
		w.WriteString(strconv.FormatBool(v))
	case vector.Vector:
		w.WriteByte('[')
		for i, el := range VectorElements(v) {
			if i > 0 {
				w.WriteByte(' ')
			}
			prStr(w, el)
		}
		w.WriteByte(']')
	case *Set:
		w.WriteString("#{")
		for i, el := range v.Elements() {
			if i > 0 {
				w.WriteByte(' ')
			}
			prStr(w, el)
		}
		w.WriteByte('}')
	case *Record:
		w.WriteByte('{')
		for i, key := range v.Keys() {
			if i > 0 {
				w.WriteString(", ")
			}
			w.WriteByte(':')
			w.WriteString(key)
			w.WriteByte(' ')
			val, _ := v.m.Index(key)
			prStr(w, val)
		}
		w.WriteByte('}')
	case *TagValue:
		if len(v.Fields) == 0 {
			w.WriteString(v.Tag.Local.Name())
			return
		}
		w.WriteByte('(')
		w.WriteString(v.Tag.Local.Name())
		for _, field := range v.Fields {
			w.WriteByte(' ')
			prStr(w, field)
		}
		w.WriteByte(')')
	case form.Form:
		w.WriteByte('\'')
		w.WriteString(v.String())
	case *Fn:
		w.WriteString("<fn " + v.Expr.Name.Name() + ">")
	case *Builtin:
		w.WriteString("<builtin " + v.Name + ">")
	case *TagConstructor:
		w.WriteString("<tag " + v.Tag.String() + ">")
	case *KeywordFn:
		w.WriteString(":" + v.Key.String())
	case *EffectFn:
		w.WriteString("<effect " + v.Var.Sym.String() + ">")
	default:
		w.WriteString("<unknown>")
	}
}
