// Package splitter compiles a message name string -- the name under which a
// multi-part, user-extensible syntactic form is looked up -- into a
// parsing-plan bytecode program that the surface parser drives to recognize
// that form's syntax and assemble its argument phrases.
package splitter

import "fmt"

// PlanOp identifies one parsing-plan instruction.
type PlanOp uint8

const (
	ParseArgument PlanOp = iota
	ParseArgumentInModuleScope
	ParseAnyRawToken
	ParseVariableReference
	CheckArgument       // operand: absolute underscore index k
	TypeCheckArgument   // operand: expected-phrase-type index c
	Convert             // operand: conversion rule index
	PushLiteral         // operand: literal constant index c
	BranchForward       // operand: target instruction index
	JumpForward         // operand: target instruction index
	SaveParsePosition
	EnsureParseProgress
	DiscardSavedParsePosition

	// MatchLiteralToken is not among the spec's named parsing-plan ops but is
	// required to actually consume a literal keyword fragment of the message
	// name (e.g. the "+" in "_+_"); the listed ops assume literal consumption
	// happens but never name the instruction that does it.
	MatchLiteralToken // operand: literal token text index
)

var planOpNames = [...]string{
	ParseArgument:              "PARSE_ARGUMENT",
	ParseArgumentInModuleScope: "PARSE_ARGUMENT_IN_MODULE_SCOPE",
	ParseAnyRawToken:           "PARSE_ANY_RAW_TOKEN",
	ParseVariableReference:     "PARSE_VARIABLE_REFERENCE",
	CheckArgument:              "CHECK_ARGUMENT",
	TypeCheckArgument:          "TYPE_CHECK_ARGUMENT",
	Convert:                    "CONVERT",
	PushLiteral:                "PUSH_LITERAL",
	BranchForward:              "BRANCH_FORWARD",
	JumpForward:                "JUMP_FORWARD",
	SaveParsePosition:          "SAVE_PARSE_POSITION",
	EnsureParseProgress:        "ENSURE_PARSE_PROGRESS",
	DiscardSavedParsePosition:  "DISCARD_SAVED_PARSE_POSITION",
	MatchLiteralToken:          "MATCH_LITERAL_TOKEN",
}

func (op PlanOp) String() string {
	if int(op) < len(planOpNames) {
		return planOpNames[op]
	}
	return fmt.Sprintf("illegal plan op (%d)", op)
}

// hasOperand reports whether op carries a single integer operand.
func (op PlanOp) hasOperand() bool {
	switch op {
	case ParseArgument, ParseArgumentInModuleScope, ParseAnyRawToken, ParseVariableReference,
		SaveParsePosition, EnsureParseProgress, DiscardSavedParsePosition:
		return false
	default:
		return true
	}
}

// PlanInstruction is one step of a compiled parsing plan.
type PlanInstruction struct {
	Op      PlanOp
	Operand int
}

// Program is the parsing-plan bytecode compiled from a message name, plus
// the literal token and phrase-type tables its PUSH_LITERAL/
// TYPE_CHECK_ARGUMENT operands index into.
type Program struct {
	Instructions []PlanInstruction
	Literals     []string
	PhraseTypes  []string // names of the expected phrase type per TYPE_CHECK_ARGUMENT slot
	NumArguments int      // total count of underscore argument slots
}

func (p *Program) String() string {
	s := ""
	for i, insn := range p.Instructions {
		s += fmt.Sprintf("%d: %s", i, insn.Op)
		if insn.Op.hasOperand() {
			s += fmt.Sprintf(" %d", insn.Operand)
		}
		s += "\n"
	}
	return s
}
