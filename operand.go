/*
Package dynastore – predicate operands.

Where accepts a literal, a RangeDescriptor or a PatternDescriptor. The
three forms are normalised into a tagged operand here so the evaluator
can switch on the kind instead of re-inspecting caller values.
*/
package dynastore

type operandKind int

const (
	operandLiteral operandKind = iota
	operandRange
	operandPattern
)

type operand struct {
	kind    operandKind
	literal any
	rng     RangeDescriptor
	pattern PatternDescriptor
}

// makeOperand tags a caller-supplied Where value. Descriptor values may
// be passed by value or by pointer; anything else is an equality literal.
func makeOperand(v any) operand {
	switch d := v.(type) {
	case RangeDescriptor:
		return operand{kind: operandRange, rng: d}
	case *RangeDescriptor:
		return operand{kind: operandRange, rng: *d}
	case PatternDescriptor:
		return operand{kind: operandPattern, pattern: d}
	case *PatternDescriptor:
		return operand{kind: operandPattern, pattern: *d}
	}
	return operand{kind: operandLiteral, literal: v}
}
