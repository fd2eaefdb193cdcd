// This file is written by hand in the shape easyjson's generator produces
// (see lib/results_easyjson.go), rather than run through easyjson itself,
// since NamedResult's shape is simple enough not to justify a go:generate
// step.
package candidate

import (
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// MarshalJSON implements json.Marshaler.
func (r *NamedResult) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	r.MarshalEasyJSON(&w)
	return w.BuildBytes()
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *NamedResult) UnmarshalJSON(data []byte) error {
	l := jlexer.Lexer{Data: data}
	r.UnmarshalEasyJSON(&l)
	return l.Error()
}

// MarshalEasyJSON supports easyjson.Marshaler.
func (r *NamedResult) MarshalEasyJSON(out *jwriter.Writer) {
	out.RawByte('{')
	first := true
	_ = first
	{
		const prefix string = ",\"elimination_order\":"
		if first {
			first = false
			out.RawString(prefix[1:])
		} else {
			out.RawString(prefix)
		}
		out.RawByte('[')
		for i, v := range r.EliminationOrder {
			if i > 0 {
				out.RawByte(',')
			}
			out.String(v)
		}
		out.RawByte(']')
	}
	{
		const prefix string = ",\"winners\":"
		out.RawString(prefix)
		out.RawByte('[')
		for i, v := range r.Winners {
			if i > 0 {
				out.RawByte(',')
			}
			out.String(v)
		}
		out.RawByte(']')
	}
	out.RawByte('}')
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler.
func (r *NamedResult) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeString()
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "elimination_order":
			if in.IsNull() {
				in.Skip()
				r.EliminationOrder = nil
			} else {
				in.Delim('[')
				r.EliminationOrder = r.EliminationOrder[:0]
				for !in.IsDelim(']') {
					r.EliminationOrder = append(r.EliminationOrder, in.String())
					in.WantComma()
				}
				in.Delim(']')
			}
		case "winners":
			if in.IsNull() {
				in.Skip()
				r.Winners = nil
			} else {
				in.Delim('[')
				r.Winners = r.Winners[:0]
				for !in.IsDelim(']') {
					r.Winners = append(r.Winners, in.String())
					in.WantComma()
				}
				in.Delim(']')
			}
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

var (
	_ easyjson.Marshaler   = (*NamedResult)(nil)
	_ easyjson.Unmarshaler = (*NamedResult)(nil)
)
