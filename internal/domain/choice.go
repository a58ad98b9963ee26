package domain

import (
	"strconv"
	"strings"
)

const (
	answerPrefix  = "answer_"
	variantPrefix = "variant_"
)

// SelectionKind tells which button family a choice payload belongs to.
type SelectionKind int

const (
	SelectAnswer SelectionKind = iota + 1
	SelectVariant
)

// Selection is a decoded choice payload.
type Selection struct {
	Kind          SelectionKind
	QuestionIndex int
	OptionIndex   int
	Variant       string
}

// EncodeAnswer encodes an answer button as "answer_<question>_<option>".
func EncodeAnswer(questionIndex, optionIndex int) string {
	return answerPrefix + strconv.Itoa(questionIndex) + "_" + strconv.Itoa(optionIndex)
}

// EncodeVariant encodes a variant button as "variant_<name>".
func EncodeVariant(name string) string {
	return variantPrefix + name
}

// DecodeSelection parses a choice payload. Anything else yields ErrMalformedSelection.
func DecodeSelection(data string) (Selection, error) {
	switch {
	case strings.HasPrefix(data, answerPrefix):
		q, o, ok := strings.Cut(strings.TrimPrefix(data, answerPrefix), "_")
		if !ok {
			return Selection{}, ErrMalformedSelection
		}
		qi, err := parseIndex(q)
		if err != nil {
			return Selection{}, ErrMalformedSelection
		}
		oi, err := parseIndex(o)
		if err != nil {
			return Selection{}, ErrMalformedSelection
		}
		return Selection{Kind: SelectAnswer, QuestionIndex: qi, OptionIndex: oi}, nil
	case strings.HasPrefix(data, variantPrefix):
		name := strings.TrimPrefix(data, variantPrefix)
		if name == "" {
			return Selection{}, ErrMalformedSelection
		}
		return Selection{Kind: SelectVariant, Variant: name}, nil
	default:
		return Selection{}, ErrMalformedSelection
	}
}

// parseIndex accepts only plain decimal digits.
func parseIndex(raw string) (int, error) {
	if raw == "" || len(raw) > 6 {
		return 0, strconv.ErrSyntax
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(raw)
}
