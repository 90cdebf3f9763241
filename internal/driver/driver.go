// Package driver implements the Driver, spec §4.6 (component F): it wires
// the Transformation Pass and Template-Stripping Pass across a copy of the
// input directory tree, the way original_source/src/driver.cpp's
// runTransformation/instantiateKernel pair does.
package driver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/patos-lang/patosc/internal/ast"
	"github.com/patos-lang/patosc/internal/logging"
	"github.com/patos-lang/patosc/internal/mangle"
	"github.com/patos-lang/patosc/internal/stripper"
	"github.com/patos-lang/patosc/internal/transform"
)

// kernelFileExt is the extension the Driver enumerates under the output
// directory, per spec §4.6 step 3.
const kernelFileExt = ".m"

// IncludePath is a system include directory handed to the front-end. Every
// include path the Driver builds is a system path (spec §4.6 step 1), so no
// kind is stored.
type IncludePath struct {
	Path string
}

// ParsedFile is what a Frontend hands back for one source file: its
// declaration tree and the SourceManager/Lexer pair the Transformation and
// Template-Stripping passes consult, plus the file's raw bytes for the
// Rewriter's overlay.
type ParsedFile struct {
	TU     *ast.TranslationUnit
	SM     ast.SourceManager
	Lex    ast.Lexer
	Source []byte
}

// Frontend is the external AST oracle the Driver calls to parse one file,
// per the front-end contract of spec §6. The real compiler backs this with
// a C/C++ front-end; tests substitute a fake.
type Frontend interface {
	Parse(path string, includePaths []IncludePath) (*ParsedFile, error)
}

// Options configures one Driver run, collecting the CLI surface of spec §6.
type Options struct {
	InputDir     string
	OutputDir    string
	IncludePaths []string
	// DryRun renders a diff of original vs. rewritten text instead of
	// writing it, the supplemented dry-run preview feature (SPEC_FULL.md).
	DryRun bool
}

// Result summarizes one Driver run for the CLI's closing summary line.
type Result struct {
	FilesProcessed int
	FilesStripped  int
}

// Driver orchestrates the Transformation and Template-Stripping passes
// across every kernelFileExt file in a copy of the input tree.
type Driver struct {
	fe Frontend
}

// New creates a Driver that parses files through fe.
func New(fe Frontend) *Driver {
	return &Driver{fe: fe}
}

func (d *Driver) includePaths(opts Options) []IncludePath {
	out := make([]IncludePath, len(opts.IncludePaths))
	for i, p := range opts.IncludePaths {
		out[i] = IncludePath{Path: p}
	}
	return out
}

// Run executes spec §4.6 steps 1-5: copy the input tree, transform every
// .m file under the output directory, then strip every file the
// transformation deferred into template_files.
func (d *Driver) Run(opts Options) (*Result, error) {
	if err := CopyDirectory(opts.InputDir, opts.OutputDir); err != nil {
		return nil, fmt.Errorf("driver: copy input to output: %w", err)
	}
	files, err := FindFilesRecursively(opts.OutputDir, kernelFileExt)
	if err != nil {
		return nil, err
	}
	return d.runPasses(opts, files)
}

// runPasses is the shared tail of Run and InstantiateKernel: transform
// every gathered file, then strip every deferred template file.
func (d *Driver) runPasses(opts Options, files []string) (*Result, error) {
	includePaths := d.includePaths(opts)
	templateFiles := transform.NewTemplateFiles()

	result := &Result{}
	for _, f := range files {
		if err := d.transformFile(f, includePaths, opts.DryRun, templateFiles); err != nil {
			return nil, fmt.Errorf("driver: transform %s: %w", f, err)
		}
		result.FilesProcessed++
	}

	for _, f := range templateFiles.Paths() {
		if err := d.stripFile(f, includePaths, opts.DryRun); err != nil {
			return nil, fmt.Errorf("driver: strip templates from %s: %w", f, err)
		}
		result.FilesStripped++
	}

	return result, nil
}

func (d *Driver) transformFile(path string, includePaths []IncludePath, dryRun bool, templateFiles *transform.TemplateFiles) error {
	logging.Debug("transforming %s", path)
	parsed, err := d.fe.Parse(path, includePaths)
	if err != nil {
		return err
	}
	pass := transform.New(parsed.SM, parsed.Lex, path, parsed.Source, templateFiles)
	if err := pass.Run(parsed.TU); err != nil {
		return err
	}
	rw := pass.Rewriter()
	if !rw.Modified() {
		return nil
	}
	return flush(path, rw.Original(), rw.Bytes(), dryRun)
}

func (d *Driver) stripFile(path string, includePaths []IncludePath, dryRun bool) error {
	logging.Debug("stripping templates from %s", path)
	parsed, err := d.fe.Parse(path, includePaths)
	if err != nil {
		return err
	}
	pass := stripper.New(parsed.SM, parsed.Lex, path, parsed.Source)
	if err := pass.Run(parsed.TU); err != nil {
		return err
	}
	rw := pass.Rewriter()
	if !rw.Modified() {
		return nil
	}
	return flush(path, rw.Original(), rw.Bytes(), dryRun)
}

// flush writes the rewritten bytes to path, or — in dry-run mode — renders
// a diff of original vs. rewritten text and logs it instead (the
// supplemented dry-run preview feature).
func flush(path string, original, rewritten []byte, dryRun bool) error {
	if dryRun {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(string(original), string(rewritten), true)
		diffs = dmp.DiffCleanupSemantic(diffs)
		logging.Info("dry-run diff for %s:\n%s", path, dmp.DiffPrettyText(diffs))
		return nil
	}
	if err := os.WriteFile(path, rewritten, 0o644); err != nil {
		return fmt.Errorf("unsaved rewriter output: %w", err)
	}
	return nil
}

// InstantiateKernel implements spec §4.6 step 6: explicit-instantiation
// mode. It appends a `template __kernel void kernelName<targs>(atypes);`
// directive to kernelFile, runs the normal transform/strip pipeline so the
// front-end synthesizes the requested specialization, removes the
// directive line again, and returns the specialization's mangled name.
func (d *Driver) InstantiateKernel(opts Options, kernelFile, kernelName string, templateArgs, argTypes []string) (string, error) {
	if err := CopyDirectory(opts.InputDir, opts.OutputDir); err != nil {
		return "", fmt.Errorf("driver: copy input to output: %w", err)
	}
	absKernelFile := filepath.Join(opts.OutputDir, kernelFile)
	if !FileExists(absKernelFile) {
		return "", fmt.Errorf("driver: kernel file does not exist: %s", absKernelFile)
	}

	directive := explicitInstantiationDirective(kernelName, templateArgs, argTypes)
	logging.Debug("explicit instantiation: %s", directive)
	if err := appendLine(absKernelFile, directive); err != nil {
		return "", err
	}

	files, err := FindFilesRecursively(opts.OutputDir, kernelFileExt)
	if err != nil {
		return "", err
	}
	if _, err := d.runPasses(opts, files); err != nil {
		return "", err
	}

	if err := removeLine(absKernelFile, directive); err != nil {
		return "", err
	}

	return mangle.Kernel(kernelName, templateArgs), nil
}

func explicitInstantiationDirective(kernelName string, templateArgs, argTypes []string) string {
	var b strings.Builder
	b.WriteString("template __kernel void ")
	b.WriteString(kernelName)
	b.WriteString("<")
	b.WriteString(strings.Join(templateArgs, ","))
	b.WriteString(" >(")
	b.WriteString(strings.Join(argTypes, ","))
	b.WriteString(");")
	return b.String()
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("driver: open kernel file: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("driver: append explicit instantiation: %w", err)
	}
	return nil
}

// removeLine filters line out of path by reading all lines and rewriting
// them, mirroring original_source's removeExplicitInstantiation.
func removeLine(path, line string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("driver: read kernel file: %w", err)
	}
	var kept []string
	for _, l := range strings.Split(string(content), "\n") {
		if strings.Contains(l, line) {
			continue
		}
		kept = append(kept, l)
	}
	out := strings.Join(kept, "\n")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("driver: rewrite kernel file: %w", err)
	}
	return nil
}

// DirectoryExists reports whether path exists and is a directory.
func DirectoryExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MakeDirectories creates path (and any missing parents) if it doesn't
// already exist, the supplemented output-directory auto-creation feature
// (SPEC_FULL.md, matching original_source/src/main.cpp rather than
// spec.md's "missing directory is a recoverable error").
func MakeDirectories(path string) error {
	if DirectoryExists(path) {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("driver: create directory %s: %w", path, err)
	}
	return nil
}

// StripFileName returns path's containing directory, mirroring
// original_source/src/file_handling.cpp's stripFileName.
func StripFileName(path string) string {
	return filepath.Dir(path)
}

// CopyDirectory recursively copies source's tree into destination,
// overwriting existing files, mirroring original_source's copyDirectory.
func CopyDirectory(source, destination string) error {
	if !DirectoryExists(source) {
		return fmt.Errorf("driver: input directory does not exist: %s", source)
	}
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}

// FindFilesRecursively returns every file under directoryName whose name
// ends in suffix, in stable sorted order, mirroring
// original_source's findFilesRecursively.
func FindFilesRecursively(directoryName, suffix string) ([]string, error) {
	if !DirectoryExists(directoryName) {
		return nil, fmt.Errorf("driver: directory '%s' does not exist", directoryName)
	}
	var result []string
	err := filepath.WalkDir(directoryName, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == suffix {
			result = append(result, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(result)
	return result, nil
}
