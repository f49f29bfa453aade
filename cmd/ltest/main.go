// ltest runs layoutc over request files and compares what it writes against golden files
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Golden is the recorded output of one request file
type Golden struct {
	SourceHash string    `json:"source_hash"`
	Result     Execution `json:"result"`
}

type FileTestResult struct {
	File         string     `json:"file"`
	Status       string     `json:"status"` // PASS, FAIL, SKIP, ERROR, UPDATED
	Message      string     `json:"message,omitempty"`
	Diff         string     `json:"diff,omitempty"`
	SourceHash   string     `json:"source_hash,omitempty"`
	CompilerHash string     `json:"compiler_hash,omitempty"`
	Target       *Execution `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	compiler     = flag.String("compiler", "./layoutc", "Path to the layoutc binary to test.")
	compilerArgs = flag.String("args", "--no-trees --check", "Arguments passed before each request file (space-separated).")
	testFiles    = flag.String("test-files", "tests/*.json", "Glob pattern(s) for request files (space-separated).")
	skipFiles    = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON   = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	jsonDir      = flag.String("dir", "", "Directory to store/read golden files (defaults to the request file's dir).")
	timeout      = flag.Duration("timeout", 5*time.Second, "Timeout for each layoutc invocation.")
	jobs         = flag.Int("j", 4, "Number of parallel test jobs.")
	update       = flag.Bool("update", false, "Rewrite the golden files with the current output.")
	useCache     = flag.Bool("cached", false, "Reuse passing results when neither the request file nor the binary changed.")
	verbose      = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	compilerHash, err := hashFile(*compiler)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not hash compiler '%s': %v\n", cRed, cNone, *compiler, err)
	}

	previousResults := make(TestSuiteResults)
	outputFile := reportPath()
	if prevData, err := os.ReadFile(outputFile); err == nil {
		if json.Unmarshal(prevData, &previousResults) != nil {
			log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, outputFile)
			previousResults = make(TestSuiteResults)
		}
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	var (
		mu      sync.Mutex
		results []*FileTestResult
	)
	record := func(r *FileTestResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*jobs, 1))
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			record(&FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"})
			continue
		}
		file := file
		g.Go(func() error {
			record(testFile(gctx, file, compilerHash, previousResults[file]))
			return gctx.Err()
		})
	}
	if err := g.Wait(); errors.Is(err, context.Canceled) {
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled.\n", cYellow, cNone)
		os.Exit(1)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	printSummary(results)
	resultsMap := writeJSONReport(results)
	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

func goldenPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".golden"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

func reportPath() string {
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, *outputJSON)
	}
	return *outputJSON
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func testFile(ctx context.Context, file, compilerHash string, previous *FileTestResult) *FileTestResult {
	sourceHash, err := hashFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to hash request file: %v", err)}
	}
	if *useCache && !*update && previous != nil && previous.Status == "PASS" &&
		previous.SourceHash == sourceHash && previous.CompilerHash == compilerHash {
		cached := *previous
		cached.Message = "cached"
		return &cached
	}

	runCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	args := append(strings.Fields(*compilerArgs), file)
	run := executeCommand(runCtx, *compiler, args...)
	if *verbose {
		log.Printf("[%s] exit %d in %s", file, run.ExitCode, formatDuration(run.Duration))
	}

	result := &FileTestResult{File: file, SourceHash: sourceHash, CompilerHash: compilerHash, Target: &run}
	if *update {
		if err := writeGolden(file, Golden{SourceHash: sourceHash, Result: run}); err != nil {
			result.Status, result.Message = "ERROR", err.Error()
			return result
		}
		result.Status, result.Message = "UPDATED", "golden file rewritten"
		return result
	}

	golden, err := readGolden(file)
	if err != nil {
		result.Status, result.Message = "SKIP", err.Error()
		return result
	}
	result.Status, result.Message, result.Diff = compareExecution(golden.Result, run)
	if result.Status == "PASS" && golden.SourceHash != sourceHash {
		result.Message += " (request file changed since the golden file was written)"
	}
	return result
}

func readGolden(file string) (*Golden, error) {
	data, err := os.ReadFile(goldenPath(file))
	if err != nil {
		return nil, fmt.Errorf("no golden file; run with -update to create %s", goldenPath(file))
	}
	var golden Golden
	if err := json.Unmarshal(data, &golden); err != nil {
		return nil, fmt.Errorf("could not parse golden file %s: %w", goldenPath(file), err)
	}
	return &golden, nil
}

func writeGolden(file string, golden Golden) error {
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", *jsonDir, err)
		}
	}
	data, err := json.MarshalIndent(golden, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(goldenPath(file), data, 0o644)
}

// compareExecution ignores durations and stderr text. Warnings carry terminal colors
// and are checked through the exit code only.
func compareExecution(want, got Execution) (status, message, diff string) {
	switch {
	case got.TimedOut:
		return "FAIL", "layoutc timed out", ""
	case want.ExitCode != got.ExitCode:
		return "FAIL", fmt.Sprintf("exit code %d, golden file has %d", got.ExitCode, want.ExitCode),
			fmt.Sprintf("layoutc STDERR:\n%s", got.Stderr)
	}
	if d := cmp.Diff(want.Stdout, got.Stdout); d != "" {
		return "FAIL", "output differs from the golden file", d
	}
	if want.ExitCode != 0 {
		return "PASS", "rejected as expected", ""
	}
	return "PASS", "output matches", ""
}

func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	execResult := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		execResult.TimedOut = true
		execResult.ExitCode = -1
	case errors.As(err, &exitErr):
		execResult.ExitCode = exitErr.ExitCode()
	case err != nil:
		execResult.ExitCode = -2
		execResult.Stderr += "\nExecution error: " + err.Error()
	}
	return execResult
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored, updated int
	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)
		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "UPDATED":
			updated++
			fmt.Printf("  [%sUPDATED%s] %s\n", cYellow, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Updated, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, updated, len(results))
}

func formatDiff(diff string) string {
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(strings.TrimSpace(line), "-"):
			fmt.Fprintf(&sb, "    %s%s%s\n", cRed, line, cNone)
		case strings.HasPrefix(strings.TrimSpace(line), "+"):
			fmt.Fprintf(&sb, "    %s%s%s\n", cGreen, line, cNone)
		default:
			fmt.Fprintf(&sb, "    %s\n", line)
		}
	}
	return sb.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}
	data, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results: %v\n", cRed, cNone, err)
		return resultsMap
	}
	if err := os.WriteFile(reportPath(), data, 0o644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write report %s: %v\n", cRed, cNone, reportPath(), err)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if seen[absFile] {
				continue
			}
			if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, absFile)
				seen[absFile] = true
			}
		}
	}
	return allFiles, nil
}
