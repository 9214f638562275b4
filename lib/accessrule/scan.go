// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package accessrule

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// reference is a namespace identifier found in an expression.
type reference struct {
	variable recordapi.Variable
	offset   int
}

// scan walks an expression the way SQLite's tokenizer would, skipping
// string literals and comments, and returns the namespace identifiers
// it references. Quoted identifiers ("_ROW_", [_ROW_], `_ROW_`) count
// as references. Errors describe the first lexical problem found.
func scan(expression string) ([]reference, error) {
	var references []reference
	depth := 0

	for i := 0; i < len(expression); {
		c := expression[i]
		switch {
		case c == '\'':
			end, ok := closeQuote(expression, i, '\'')
			if !ok {
				return nil, fmt.Errorf("unterminated string literal at offset %d", i)
			}
			i = end

		case c == '"' || c == '`' || c == '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			end, ok := closeQuote(expression, i, closer)
			if !ok {
				return nil, fmt.Errorf("unterminated quoted identifier at offset %d", i)
			}
			name := strings.ReplaceAll(expression[i+1:end-1], string(closer)+string(closer), string(closer))
			if variable, ok := lookupVariable(name); ok {
				references = append(references, reference{variable: variable, offset: i})
			}
			i = end

		case c == '-' && i+1 < len(expression) && expression[i+1] == '-':
			newline := strings.IndexByte(expression[i:], '\n')
			if newline < 0 {
				i = len(expression)
			} else {
				i += newline + 1
			}

		case c == '/' && i+1 < len(expression) && expression[i+1] == '*':
			end := strings.Index(expression[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment at offset %d", i)
			}
			i += end + 4

		case c == '(':
			depth++
			i++

		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ')' at offset %d", i)
			}
			i++

		case c == ';':
			return nil, fmt.Errorf("statement separator ';' at offset %d: a rule is a single expression", i)

		case isIdentifierStart(c):
			start := i
			for i < len(expression) && isIdentifierPart(expression[i]) {
				i++
			}
			if variable, ok := lookupVariable(expression[start:i]); ok {
				references = append(references, reference{variable: variable, offset: start})
			}

		default:
			i++
		}
	}

	if depth > 0 {
		return nil, fmt.Errorf("%d unclosed '('", depth)
	}
	return references, nil
}

// closeQuote returns the index just past the quote that closes the one
// at start. A doubled quote character is an escaped quote.
func closeQuote(expression string, start int, closer byte) (int, bool) {
	for i := start + 1; i < len(expression); i++ {
		if expression[i] != closer {
			continue
		}
		if closer != ']' && i+1 < len(expression) && expression[i+1] == closer {
			i++
			continue
		}
		return i + 1, true
	}
	return 0, false
}

func lookupVariable(name string) (recordapi.Variable, bool) {
	upper := strings.ToUpper(name)
	for _, variable := range recordapi.Variables {
		if upper == string(variable) {
			return variable, true
		}
	}
	return "", false
}

func isIdentifierStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentifierPart(c byte) bool {
	return isIdentifierStart(c) || (c >= '0' && c <= '9') || c == '$'
}
