// Package contentstream parses PDF content streams into operator records.
// Only the lexical structure is interpreted; operand semantics are left to
// the caller.
package contentstream

import "fmt"

// Operand is a single content stream operand.
type Operand interface {
	Kind() string
}

// NumberOperand is a numeric operand.
type NumberOperand struct{ Value float64 }

func (NumberOperand) Kind() string { return "number" }

// NameOperand is a /Name operand (without the slash).
type NameOperand struct{ Value string }

func (NameOperand) Kind() string { return "name" }

// StringOperand is a literal or hex string operand, unescaped.
type StringOperand struct{ Value []byte }

func (StringOperand) Kind() string { return "string" }

// ArrayOperand is an array operand (as used by TJ).
type ArrayOperand struct{ Items []Operand }

func (ArrayOperand) Kind() string { return "array" }

// DictOperand is an inline dictionary operand (BDC, DP, inline images).
type DictOperand struct{ Items map[string]Operand }

func (DictOperand) Kind() string { return "dict" }

// BoolOperand is true/false.
type BoolOperand struct{ Value bool }

func (BoolOperand) Kind() string { return "bool" }

// NullOperand is the null keyword.
type NullOperand struct{}

func (NullOperand) Kind() string { return "null" }

// Operation is an operator with its preceding operands.
type Operation struct {
	Operator string
	Operands []Operand
}

// Parse splits a decoded content stream into operations. Inline image data
// between ID and EI is skipped. Malformed trailing operands are dropped
// rather than reported: content streams in the wild are routinely sloppy
// and a font-usage pass must survive them.
func Parse(data []byte) ([]Operation, error) {
	lx := &lexer{data: data}
	var ops []Operation
	var stack []Operand

	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokEOF:
			return ops, nil
		case tokNumber:
			stack = append(stack, NumberOperand{Value: tok.num})
		case tokName:
			stack = append(stack, NameOperand{Value: tok.text})
		case tokString:
			stack = append(stack, StringOperand{Value: tok.bytes})
		case tokArrayOpen:
			arr, err := lx.parseArray()
			if err != nil {
				return nil, err
			}
			stack = append(stack, arr)
		case tokDictOpen:
			dict, err := lx.parseDict()
			if err != nil {
				return nil, err
			}
			stack = append(stack, dict)
		case tokKeyword:
			switch tok.text {
			case "true":
				stack = append(stack, BoolOperand{Value: true})
			case "false":
				stack = append(stack, BoolOperand{Value: false})
			case "null":
				stack = append(stack, NullOperand{})
			case "ID":
				// Inline image payload: scan to EI.
				if err := lx.skipInlineImage(); err != nil {
					return nil, err
				}
				ops = append(ops, Operation{Operator: "INLINE_IMAGE", Operands: stack})
				stack = nil
			default:
				ops = append(ops, Operation{Operator: tok.text, Operands: stack})
				stack = nil
			}
		case tokArrayClose, tokDictClose:
			return nil, fmt.Errorf("unbalanced delimiter at offset %d", tok.pos)
		}
	}
}
