package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/haku/parser"
)

func TestDumpTokensListsEachToken(t *testing.T) {
	tree := parser.Parse("stroke 8 #000 (vec 0 0)", parser.DefaultLimits)
	out := dumpTokens(tree.Tokens)
	require.Contains(t, out, "IDENT")
	require.Contains(t, out, "NUMBER")
	require.Contains(t, out, "COLOR")
}

func TestDumpASTRendersNestedApplication(t *testing.T) {
	tree := parser.Parse("stroke 8 #000 (vec 0 0)", parser.DefaultLimits)
	root, errs := tree.Build(parser.DefaultLimits)
	require.Empty(t, errs)
	out := dumpAST(root)
	require.True(t, strings.Contains(out, "app"))
	require.True(t, strings.Contains(out, "ident stroke"))
}
