package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"n2t.dev/hackcore/pkg/jack"
	"n2t.dev/hackcore/pkg/vm"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The Jack Compiler compiles programs (composed of multiple classes/files) written in
the Jack language into VM modules that can be further elaborated. The Jack language
is a higher-level OOP language tailored for use with the Hack computer architecture.
`, "\n", " ")

var JackCompiler = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .jack file or directory
	WithArg(cli.NewArg("inputs", "The source (.jack) files or directories to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("stdlib", "Registers the standard library's class names for call-site resolution").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	// The Jack language follows the same 1-class-per-file convention as Java: each Translation
	// Unit (TU, a .jack file) maps 1:1 onto a VM module. The known-class-name set is collected
	// up front, across every TU, since the Parser needs it to disambiguate 'X.member' call
	// sites (class call vs. instance call) without ever looking at another TU's contents.
	TUs := []string{}
	for _, input := range args {
		filepath.Walk(input, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Ext(path) != ".jack" {
				return nil // We recurse on dirs and ignore other filetypes
			}

			TUs = append(TUs, path)
			return nil
		})
	}

	classNames := make([]string, 0, len(TUs))
	for _, tu := range TUs {
		filename, extension := path.Base(tu), path.Ext(tu)
		classNames = append(classNames, strings.TrimSuffix(filename, extension))
	}
	if _, enabled := options["stdlib"]; enabled {
		classNames = append(classNames, jack.StandardLibraryClasses...)
	}
	knownClasses := jack.NewKnownClasses(classNames...)

	program := vm.Program{}
	for _, tu := range TUs {
		content, err := os.ReadFile(tu)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		parser, err := jack.NewParser(bytes.NewReader(content), knownClasses)
		if err != nil {
			fmt.Printf("ERROR: Unable to tokenize input file: %s\n", err)
			return -1
		}

		filename, extension := path.Base(tu), path.Ext(tu)
		program[strings.TrimSuffix(filename, extension)], err = parser.Parse()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
			return -1
		}
	}

	// Instantiates a code generator for the Vm (compiled) program
	codegen := vm.NewCodeGenerator(program)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	for _, tu := range TUs {
		// Removes root directory and file extension to use as module name
		filename, extension := path.Base(tu), path.Ext(tu)
		module, ok := compiled[strings.TrimSuffix(filename, extension)]
		if !ok {
			fmt.Printf("ERROR: Unable to compile module for class file '%s'\n", tu)
			return -1
		}

		output, err := os.Create(fmt.Sprintf("%s.vm", strings.TrimSuffix(tu, extension)))
		if err != nil {
			fmt.Printf("ERROR: Unable to open output file: %s\n", err)
			return -1
		}

		for _, line := range module {
			output.Write([]byte(fmt.Sprintf("%s\n", line)))
		}
		output.Close()
	}

	return 0
}

func main() { os.Exit(JackCompiler.Run(os.Args, os.Stdout)) }
