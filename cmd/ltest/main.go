package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/xplshn/mlex/pkg/token"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// AnalysisResult records one pass of the analyzer over a source file:
// the process output plus the decoded token artifact. SourcePath and
// ArtifactPath are kept so replays can normalize path-bearing lines.
type AnalysisResult struct {
	SourceHash   string        `json:"source_hash,omitempty"`
	SourcePath   string        `json:"source_path,omitempty"`
	ArtifactPath string        `json:"artifact_path,omitempty"`
	Run          Execution     `json:"run"`
	Tokens       []token.Token `json:"tokens,omitempty"`
}

type FileTestResult struct {
	File    string          `json:"file"`
	Status  string          `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string          `json:"message,omitempty"`
	Diff    string          `json:"diff,omitempty"`
	Golden  *AnalysisResult `json:"golden,omitempty"`
	Actual  *AnalysisResult `json:"actual,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	analyzer       = flag.String("analyzer", "./mlex", "Path to the analyzer binary to test.")
	analyzerArgs   = flag.String("analyzer-args", "", "Extra arguments for the analyzer (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Record golden .json file(s) for the given source file(s) or glob(s).")
	testFiles      = flag.String("test-files", "examples/*.mcpp", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each analyzer execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

const (
	cRed     = "\x1b[91m"
	cYellow  = "\x1b[93m"
	cGreen   = "\x1b[92m"
	cCyan    = "\x1b[96m"
	cMagenta = "\x1b[95m"
	cBold    = "\x1b[1m"
	cNone    = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	// Single tempDir for all token artifacts
	tempDir, err := os.MkdirTemp("", "ltest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden, tempDir)
		return
	}

	handleRunTestSuite(tempDir)
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
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

func handleGenerateGolden(patterns, tempDir string) {
	files, err := expandGlobPatterns(patterns)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Fatalf("%s[ERROR]%s No files match %q\n", cRed, cNone, patterns)
	}

	for _, sourceFile := range files {
		log.Printf("Recording golden file for %s...\n", sourceFile)

		fileHash, err := hashFile(sourceFile)
		if err != nil {
			log.Fatalf("%s[ERROR]%s Could not hash source file %s: %v\n", cRed, cNone, sourceFile, err)
		}

		result, err := analyzeFile(sourceFile, tempDir, fileHash)
		if err != nil {
			log.Fatalf("%s[ERROR]%s Could not record golden file for %s: %v\n", cRed, cNone, sourceFile, err)
		}

		jsonData, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
		}

		goldenFileName := getJSONPath(sourceFile)
		if *jsonDir != "" {
			if err := os.MkdirAll(*jsonDir, 0755); err != nil {
				log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
			}
		}

		if err := os.WriteFile(goldenFileName, jsonData, 0644); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFileName, err)
		}

		log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFileName)
	}
}

func handleRunTestSuite(tempDir string) {
	if _, err := exec.LookPath(*analyzer); err != nil {
		if _, statErr := os.Stat(*analyzer); statErr != nil {
			log.Fatalf("%s[ERROR]%s Analyzer binary '%s' not found: %v\n", cRed, cNone, *analyzer, err)
		}
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	// Load previous results so files without a golden can still be
	// checked against the last recorded run
	previousResults := make(TestSuiteResults)
	outputFile := *outputJSON
	if *jsonDir != "" {
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}
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

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				fileHash, err := hashFile(file)
				if err != nil {
					resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: "Failed to hash source file"}
					continue
				}
				resultsChan <- testFile(file, tempDir, fileHash, previousResults)
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}

	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	resultsMap := writeJSONReport(allResults)

	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

func testFile(file, tempDir, fileHash string, previousResults TestSuiteResults) *FileTestResult {
	goldenFile := getJSONPath(file)

	if goldenData, err := os.ReadFile(goldenFile); err == nil {
		var golden AnalysisResult
		if err := json.Unmarshal(goldenData, &golden); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
		}
		if golden.SourceHash != "" && golden.SourceHash != fileHash {
			return &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Golden file %s is stale (source content changed); re-record with --generate-golden", goldenFile)}
		}
		return runAndCompare(file, tempDir, fileHash, &golden, "")
	}

	// No golden file; fall back to the last recorded run if one exists
	if prevResult, ok := previousResults[file]; ok && prevResult.Actual != nil {
		log.Printf("[%s] No golden file, comparing against previous test run.", file)
		return runAndCompare(file, tempDir, fileHash, prevResult.Actual, " (against previous run)")
	}

	return &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("No golden file at %s; record one with --generate-golden", goldenFile)}
}

func runAndCompare(file, tempDir, fileHash string, golden *AnalysisResult, messageSuffix string) *FileTestResult {
	actual, err := analyzeFile(file, tempDir, fileHash)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Analyzer run failed: %v", err), Golden: golden, Actual: actual}
	}
	result := compareResults(file, golden, actual)
	result.Message += messageSuffix
	return result
}

// analyzeFile runs the analyzer once over sourceFile, directing the token
// artifact into tempDir under a content-derived name, then decodes it.
// A missing artifact is not an error: invalid inputs produce none.
func analyzeFile(sourceFile, tempDir, fileHash string) (*AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	artifactPath := filepath.Join(tempDir, fileHash+"_tokens.json")

	allArgs := []string{"-o", artifactPath}
	allArgs = append(allArgs, strings.Fields(*analyzerArgs)...)
	allArgs = append(allArgs, sourceFile)

	run := executeCommand(ctx, *analyzer, allArgs...)

	result := &AnalysisResult{
		SourceHash:   fileHash,
		SourcePath:   sourceFile,
		ArtifactPath: artifactPath,
		Run:          run,
	}

	if data, err := os.ReadFile(artifactPath); err == nil {
		toks, err := token.UnmarshalStream(data)
		if err != nil {
			return result, fmt.Errorf("could not decode token artifact %s: %w", artifactPath, err)
		}
		result.Tokens = toks
	}

	return result, nil
}

func compareResults(file string, golden, actual *AnalysisResult) *FileTestResult {
	var diffs strings.Builder
	var failed bool

	ignoredSubstrings := []string{}
	if *ignoreLines != "" {
		ignoredSubstrings = strings.Split(*ignoreLines, ",")
	}

	if golden.Run.TimedOut != actual.Run.TimedOut {
		failed = true
		diffs.WriteString(fmt.Sprintf("Timeout mismatch:\n  - Golden: %v\n  - Actual: %v\n", golden.Run.TimedOut, actual.Run.TimedOut))
	}

	if golden.Run.ExitCode != actual.Run.ExitCode {
		failed = true
		diffs.WriteString(fmt.Sprintf("Exit code mismatch:\n  - Golden: %d\n  - Actual: %d\n", golden.Run.ExitCode, actual.Run.ExitCode))
	}

	// Filter output based on --ignore-lines first
	goldenStdout := filterOutput(golden.Run.Stdout, ignoredSubstrings)
	actualStdout := filterOutput(actual.Run.Stdout, ignoredSubstrings)
	goldenStderr := filterOutput(golden.Run.Stderr, ignoredSubstrings)
	actualStderr := filterOutput(actual.Run.Stderr, ignoredSubstrings)

	// The analyzer echoes the input path and the artifact path, and both
	// differ between the recording run and the replay. Each result keeps
	// the paths it ran with, so both sides normalize to placeholders.
	goldenStdout, goldenStderr = normalizePaths(goldenStdout, goldenStderr, golden)
	actualStdout, actualStderr = normalizePaths(actualStdout, actualStderr, actual)

	if goldenStdout != actualStdout {
		failed = true
		// Diff the raw output, not the filtered form, so nothing is hidden
		diffs.WriteString(fmt.Sprintf("STDOUT mismatch:\n%s", cmp.Diff(golden.Run.Stdout, actual.Run.Stdout)))
	}

	if goldenStderr != actualStderr {
		failed = true
		diffs.WriteString(fmt.Sprintf("STDERR mismatch:\n%s", cmp.Diff(golden.Run.Stderr, actual.Run.Stderr)))
	}

	if tokenDiff := cmp.Diff(golden.Tokens, actual.Tokens); tokenDiff != "" {
		failed = true
		diffs.WriteString(fmt.Sprintf("Token artifact mismatch (-golden +actual):\n%s", tokenDiff))
	}

	if failed {
		return &FileTestResult{
			File:    file,
			Status:  "FAIL",
			Message: "Analyzer output or token artifact mismatch",
			Diff:    diffs.String(),
			Golden:  golden,
			Actual:  actual,
		}
	}

	return &FileTestResult{
		File:    file,
		Status:  "PASS",
		Message: "Output and token artifact match",
		Golden:  golden,
		Actual:  actual,
	}
}

func normalizePaths(stdout, stderr string, r *AnalysisResult) (string, string) {
	const sourcePlaceholder = "__SOURCE__"
	const artifactPlaceholder = "__ARTIFACT__"
	if r.ArtifactPath != "" {
		stdout = strings.ReplaceAll(stdout, r.ArtifactPath, artifactPlaceholder)
		stderr = strings.ReplaceAll(stderr, r.ArtifactPath, artifactPlaceholder)
	}
	if r.SourcePath != "" {
		stdout = strings.ReplaceAll(stdout, r.SourcePath, sourcePlaceholder)
		stderr = strings.ReplaceAll(stderr, r.SourcePath, sourcePlaceholder)
	}
	return stdout, stderr
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(startTime)

	execResult := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if ctx.Err() == context.DeadlineExceeded {
		execResult.TimedOut = true
		execResult.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			execResult.ExitCode = exitErr.ExitCode()
		} else {
			execResult.ExitCode = -2 // Should not happen often
			execResult.Stderr += "\nExecution error: " + err.Error()
		}
	} else {
		execResult.ExitCode = 0
	}

	return execResult
}

// filterOutput removes lines containing any of the given substrings
func filterOutput(output string, ignoredSubstrings []string) string {
	if len(ignoredSubstrings) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	filteredLines := make([]string, 0, len(lines))

	for _, line := range lines {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			filteredLines = append(filteredLines, line)
		}
	}
	return strings.Join(filteredLines, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
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

		if *verbose && result.Golden != nil && result.Actual != nil {
			goldenColor, actualColor := cNone, cNone
			if result.Actual.Run.Duration < result.Golden.Run.Duration {
				actualColor = cMagenta
			} else if result.Golden.Run.Duration < result.Actual.Run.Duration {
				goldenColor = cMagenta
			}
			fmt.Printf("  analyze: %s%s%s (golden %s%s%s), %d tokens\n",
				actualColor, formatDuration(result.Actual.Run.Duration), cNone,
				goldenColor, formatDuration(result.Golden.Run.Duration), cNone,
				len(result.Actual.Tokens))
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		lineWithIndent := "    " + line
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString(lineWithIndent)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
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
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
