// Command hakufmt is a debugging aid for brush authors: it dumps a brush
// source file's tokens, AST, and compiled bytecode, and can re-dump on
// every save when run with -watch.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/liquidev/rakugaki/internal/haku/bytecode"
	"github.com/liquidev/rakugaki/internal/haku/compiler"
	"github.com/liquidev/rakugaki/internal/haku/parser"
)

func main() {
	var stage string
	var watch bool
	flag.StringVar(&stage, "stage", "bytecode", "what to dump: tokens, ast, or bytecode")
	flag.BoolVar(&watch, "watch", false, "re-dump on every save")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-stage tokens|ast|bytecode] [-watch] <brush-file>\n", os.Args[0])
		os.Exit(1)
	}
	path := flag.Arg(0)

	dump := func() {
		if err := dumpFile(path, stage); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	dump()

	if !watch {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error starting watcher: %v\n", err)
		os.Exit(1)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		fmt.Fprintf(os.Stderr, "error watching %s: %v\n", path, err)
		os.Exit(1)
	}

	abs, _ := filepath.Abs(path)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			evAbs, _ := filepath.Abs(ev.Name)
			if evAbs != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fmt.Println("---")
			dump()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

func dumpFile(path, stage string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tree := parser.Parse(string(src), parser.DefaultLimits)
	if stage == "tokens" {
		fmt.Print(dumpTokens(tree.Tokens))
		return nil
	}

	root, buildErrs := tree.Build(parser.DefaultLimits)
	for _, e := range buildErrs {
		fmt.Fprintf(os.Stderr, "%d..%d: %s\n", e.Span.Start, e.Span.End, e.Message)
	}
	if root == nil {
		return fmt.Errorf("brush has no usable AST")
	}

	if stage == "ast" {
		fmt.Print(dumpAST(root))
		return nil
	}

	result, diags := compiler.Compile(root, compiler.DefaultLimits)
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%d..%d: %s\n", d.Span.Start, d.Span.End, d.Message)
	}
	if result == nil {
		return fmt.Errorf("brush failed to compile")
	}

	fmt.Print(bytecode.Disassemble(result.Main))
	for _, name := range result.DefNames {
		idx := result.DefIndex[name]
		fmt.Printf("\ndef %s:\n", name)
		fmt.Print(bytecode.Disassemble(result.DefChunks[idx]))
	}
	return nil
}
