package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/cli"
	"github.com/xplshn/layoutc/pkg/codegen"
	"github.com/xplshn/layoutc/pkg/config"
	"github.com/xplshn/layoutc/pkg/passes"
	"github.com/xplshn/layoutc/pkg/token"
	"github.com/xplshn/layoutc/pkg/util"
	"github.com/xplshn/layoutc/pkg/vm"
)

func main() {
	app := cli.NewApp("layoutc")
	app.Synopsis = "[options] <requests.json> ..."
	app.Description = "Synthesizes the functions that convert values between storage and memory layouts. Each input holds a list of conversion requests; the lowered expressions and the generated program are written out together."

	var (
		outFile string
		unroll  int
		verbose bool
		check   bool
		noTrees bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "-", "Place the output into <file>.", "file")
	fs.Int(&unroll, "unroll", "u", config.DefaultUnrollThreshold, "Copy fixed arrays of at most <n> elements with unrolled code.", "n")
	fs.Bool(&verbose, "verbose", "v", false, "Log every synthesized function.")
	fs.Bool(&check, "check", "c", false, "Load the generated program into the verifier before writing it.")
	fs.Bool(&noTrees, "no-trees", "", false, "Only write the generated program.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if err := cfg.SetUnrollThreshold(unroll); err != nil {
			util.Error(token.Token{}, "%v", err)
		}
		if len(inputFiles) == 0 {
			util.Error(token.Token{}, "no input files specified.")
		}

		if verbose {
			logger, err := zap.NewDevelopment()
			if err != nil {
				util.Error(token.Token{}, "could not create logger: %v", err)
			}
			defer logger.Sync()
			codegen.SetLogger(logger)
		}

		var (
			requests []Request
			records  []util.SourceFileRecord
		)
		for i, path := range inputFiles {
			reqs, record, err := readRequests(path, i)
			if err != nil {
				util.Error(token.Token{}, "%v", err)
			}
			requests = append(requests, reqs...)
			records = append(records, record)
		}
		util.SetSourceFiles(records)

		ctx := codegen.NewContext(cfg)
		trees := make([]*ast.Node, 0, len(requests))
		for i, req := range requests {
			root, err := req.Build()
			if err != nil {
				util.Error(req.tok, "request %d: %v", i, err)
			}
			out, err := passes.Run(ctx, root)
			if err != nil {
				util.Error(req.tok, "request %d (%s): %v", i, req, err)
			}
			trees = append(trees, out)
		}

		prog := ctx.Program()
		if check {
			if _, err := vm.New(prog); err != nil {
				util.Error(token.Token{FileIndex: -1}, "generated program does not verify: %v", err)
			}
		}

		var w io.Writer = os.Stdout
		if outFile != "-" {
			f, err := os.Create(outFile)
			if err != nil {
				util.Error(token.Token{FileIndex: -1}, "could not create '%s': %v", outFile, err)
			}
			defer f.Close()
			w = f
		}
		if !noTrees {
			for i, tree := range trees {
				fmt.Fprintf(w, "// %d: %s\n%s\n", i, requests[i], ast.Print(tree))
			}
		}
		fmt.Fprintf(w, "// program %016x\n%s", prog.Fingerprint(), prog.String())
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
