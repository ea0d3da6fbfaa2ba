package parser

import (
	"strconv"
	"strings"

	jlerrors "github.com/corvidrules/jsonlogic/pkg/errors"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

// decoder turns a Lexer's token stream into a value.Value tree, one
// token of lookahead at a time — the same recursive-descent shape the
// teacher's parser.go drives over its own token stream, retargeted at
// JSON literals instead of JSONata expressions.
type decoder struct {
	lex *Lexer
	tok Token
}

// DecodeText parses raw RFC 8259 JSON text into a value.Value.
func DecodeText(text string) (value.Value, error) {
	d := &decoder{lex: NewLexer(text)}
	d.advance()
	v, err := d.decodeValue()
	if err != nil {
		return value.Null, err
	}
	if d.tok.Type != TokenEOF {
		return value.Null, jlerrors.New(jlerrors.ParseInvalidJSON, "trailing content after JSON value").WithPosition(d.tok.Position)
	}
	return v, nil
}

func (d *decoder) advance() {
	d.tok = d.lex.Next()
}

func (d *decoder) decodeValue() (value.Value, error) {
	switch d.tok.Type {
	case TokenError:
		return value.Null, d.lex.Err()
	case TokenNull:
		d.advance()
		return value.Null, nil
	case TokenTrue:
		d.advance()
		return value.Bool_(true), nil
	case TokenFalse:
		d.advance()
		return value.Bool_(false), nil
	case TokenNumber:
		v := decodeNumber(d.tok.Value)
		d.advance()
		return v, nil
	case TokenString:
		v := value.Str(d.tok.Value)
		d.advance()
		return v, nil
	case TokenLBracket:
		return d.decodeArray()
	case TokenLBrace:
		return d.decodeObject()
	default:
		return value.Null, jlerrors.New(jlerrors.ParseInvalidJSON, "expected a JSON value").WithPosition(d.tok.Position)
	}
}

func decodeNumber(raw string) value.Value {
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return value.Int(i)
		}
	}
	f, _ := strconv.ParseFloat(raw, 64)
	return value.Float(f)
}

func (d *decoder) decodeArray() (value.Value, error) {
	d.advance() // consume '['
	var elems []value.Value
	if d.tok.Type == TokenRBracket {
		d.advance()
		return value.Array(elems), nil
	}
	for {
		v, err := d.decodeValue()
		if err != nil {
			return value.Null, err
		}
		elems = append(elems, v)
		if d.tok.Type == TokenComma {
			d.advance()
			continue
		}
		if d.tok.Type == TokenRBracket {
			d.advance()
			return value.Array(elems), nil
		}
		return value.Null, jlerrors.New(jlerrors.ParseInvalidJSON, "expected , or ] in array").WithPosition(d.tok.Position)
	}
}

func (d *decoder) decodeObject() (value.Value, error) {
	d.advance() // consume '{'
	var pairs []value.KV
	if d.tok.Type == TokenRBrace {
		d.advance()
		return value.Object(pairs), nil
	}
	for {
		if d.tok.Type != TokenString {
			return value.Null, jlerrors.New(jlerrors.ParseInvalidJSON, "expected string key in object").WithPosition(d.tok.Position)
		}
		key := d.tok.Value
		d.advance()
		if d.tok.Type != TokenColon {
			return value.Null, jlerrors.New(jlerrors.ParseInvalidJSON, "expected : after object key").WithPosition(d.tok.Position)
		}
		d.advance()
		v, err := d.decodeValue()
		if err != nil {
			return value.Null, err
		}
		pairs = append(pairs, value.KV{Key: key, Val: v})
		if d.tok.Type == TokenComma {
			d.advance()
			continue
		}
		if d.tok.Type == TokenRBrace {
			d.advance()
			return value.Object(pairs), nil
		}
		return value.Null, jlerrors.New(jlerrors.ParseInvalidJSON, "expected , or } in object").WithPosition(d.tok.Position)
	}
}
