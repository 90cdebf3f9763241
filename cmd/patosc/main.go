// Command patosc lowers Patos source trees into flat, template-free,
// class-free OpenCL C.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	internalcolor "github.com/patos-lang/patosc/internal"
	"github.com/patos-lang/patosc/internal/driver"
	"github.com/patos-lang/patosc/internal/logging"
)

const version = "0.1.0"

// Color helper functions for stdout and stderr
func co(color string) string { return internalcolor.StdoutColor(color) }
func ce(color string) string { return internalcolor.StderrColor(color) }

// options holds the parsed command-line flags, per spec §6's CLI surface.
type options struct {
	inputDir     string
	outputDir    string
	astDumpDir   string
	includePaths []string
	explicit     bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%spatosc: %v%s\n", ce(internalcolor.ColorRed), err, ce(internalcolor.ColorReset))
		logging.Flush()
		os.Exit(1)
	}
	logging.Flush()
}

// parseFlags parses command-line flags and returns the options. A nil
// *options with a nil error means -h/--help was requested and usage was
// already printed.
func parseFlags() (*options, error) {
	opts := &options{}
	var help bool
	flag.StringVarP(&opts.inputDir, "input", "i", "", "input directory (required)")
	flag.StringVarP(&opts.outputDir, "output", "o", "", "output directory (required)")
	flag.StringVarP(&opts.astDumpDir, "dump-ast", "d", "", "AST-dump directory (accepted, currently a no-op)")
	flag.StringArrayVarP(&opts.includePaths, "include", "I", nil, "system include path (repeatable)")
	flag.BoolVarP(&opts.explicit, "explicit-instantiation", "e", false, "explicit-instantiation mode")
	flag.BoolVarP(&help, "help", "h", false, "show usage")
	flag.Parse()

	if help {
		flag.Usage()
		return nil, nil
	}
	if opts.inputDir == "" {
		return nil, fmt.Errorf("-i PATH is required")
	}
	if opts.outputDir == "" {
		return nil, fmt.Errorf("-o PATH is required")
	}
	return opts, nil
}

func printBanner() {
	fmt.Printf("%s---------------------------------%s\n", co(internalcolor.ColorYellow), co(internalcolor.ColorReset))
	fmt.Printf("%s Patos source-to-source compiler %s\n", co(internalcolor.ColorYellow), co(internalcolor.ColorReset))
	fmt.Printf("%s---------------------------------%s\n", co(internalcolor.ColorYellow), co(internalcolor.ColorReset))
}

func run() error {
	printBanner()

	opts, err := parseFlags()
	if err != nil {
		return err
	}
	if opts == nil {
		return nil
	}

	if !driver.DirectoryExists(opts.inputDir) {
		return fmt.Errorf("input directory does not exist: %s", opts.inputDir)
	}
	if !driver.DirectoryExists(opts.outputDir) {
		logging.Info("creating directory for output files: %s", opts.outputDir)
		if err := driver.MakeDirectories(opts.outputDir); err != nil {
			return err
		}
	}
	if opts.astDumpDir != "" && !driver.DirectoryExists(opts.astDumpDir) {
		logging.Info("creating directory for AST dumps: %s", opts.astDumpDir)
		if err := driver.MakeDirectories(opts.astDumpDir); err != nil {
			return err
		}
	}

	logging.Info("using input directory %s", opts.inputDir)
	logging.Info("using output directory %s", opts.outputDir)
	if opts.astDumpDir != "" {
		logging.Info("dump ASTs to %s (not yet implemented; flag accepted for compatibility)", opts.astDumpDir)
	}
	if len(opts.includePaths) == 0 {
		logging.Info("no include paths provided")
	} else {
		logging.Info("list of include paths:")
		for _, p := range opts.includePaths {
			logging.Info("   %s", p)
		}
	}

	d := driver.New(unavailableFrontend{})
	driverOpts := driver.Options{
		InputDir:     opts.inputDir,
		OutputDir:    opts.outputDir,
		IncludePaths: opts.includePaths,
	}

	if opts.explicit {
		kernelFile, kernelName, templateArgs, argTypes, err := promptExplicitInstantiation(os.Stdin)
		if err != nil {
			return err
		}
		mangled, err := d.InstantiateKernel(driverOpts, kernelFile, kernelName, templateArgs, argTypes)
		if err != nil {
			return err
		}
		logging.Summary(1)
		fmt.Printf("instantiated kernel: %s\n", mangled)
		return nil
	}

	result, err := d.Run(driverOpts)
	if err != nil {
		return err
	}
	logging.Summary(result.FilesProcessed)
	return nil
}

// promptExplicitInstantiation gathers the kernel file, kernel name, and
// template/argument-type lists interactively, mirroring
// original_source/src/main.cpp's explicit-instantiation prompt sequence.
func promptExplicitInstantiation(stdin *os.File) (kernelFile, kernelName string, templateArgs, argTypes []string, err error) {
	r := bufio.NewReader(stdin)

	kernelFile, err = promptLine(r, "name of file containing kernel definition: ")
	if err != nil {
		return "", "", nil, nil, err
	}
	kernelName, err = promptLine(r, "name of kernel to instantiate: ")
	if err != nil {
		return "", "", nil, nil, err
	}

	templateArgs, err = promptCountedList(r, "number of template arguments: ", "template argument %d: ")
	if err != nil {
		return "", "", nil, nil, err
	}
	argTypes, err = promptCountedList(r, "number of argument types: ", "argument type %d: ")
	if err != nil {
		return "", "", nil, nil, err
	}

	return kernelFile, kernelName, templateArgs, argTypes, nil
}

func promptLine(r *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptCountedList(r *bufio.Reader, countPrompt, itemPromptFormat string) ([]string, error) {
	countStr, err := promptLine(r, countPrompt)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil {
		return nil, fmt.Errorf("invalid count: %w", err)
	}
	if n < 0 {
		return nil, fmt.Errorf("invalid number of arguments")
	}
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		item, err := promptLine(r, fmt.Sprintf(itemPromptFormat, i+1))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
