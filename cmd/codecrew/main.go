// =============================================================================
// CodeCrew 命令行入口
// =============================================================================
// 使用方法:
//
//	codecrew run -task "Write a fibonacci function"
//	codecrew run -file task.txt -config codecrew.yaml
//	echo "task" | codecrew run
//	codecrew batch -file tasks.yaml
//	codecrew history -limit 20
//	codecrew history -show <run-id>
//	codecrew version
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/codecrew/config"
	"github.com/BaSui01/codecrew/llm"
	"github.com/BaSui01/codecrew/types"
	"github.com/BaSui01/codecrew/workflow"
	"github.com/BaSui01/codecrew/workflow/history"
)

// 版本信息（构建时注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 退出码
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// cli 持有标准流，便于测试
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// provider 非空时替代真实的补全客户端
	provider llm.Provider
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	code := c.execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (c *cli) execute(ctx context.Context, args []string) int {
	if len(args) == 0 {
		c.usage()
		return exitUsage
	}
	switch args[0] {
	case "run":
		return c.runCommand(ctx, args[1:])
	case "batch":
		return c.batchCommand(ctx, args[1:])
	case "history":
		return c.historyCommand(ctx, args[1:])
	case "version":
		fmt.Fprintf(c.stdout, "CodeCrew %s\n  Build Time: %s\n  Git Commit: %s\n", Version, BuildTime, GitCommit)
		return exitOK
	case "help", "-h", "--help":
		c.usage()
		return exitOK
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", args[0])
		c.usage()
		return exitUsage
	}
}

func (c *cli) usage() {
	fmt.Fprint(c.stderr, `CodeCrew - writer / reviewer / optimizer code workflow

Usage:
  codecrew <command> [options]

Commands:
  run       Run the workflow for one task (-task, -file or stdin)
  batch     Run tasks from a YAML file concurrently
  history   List or show archived runs (requires database.enabled)
  version   Show version information
  help      Show this help message

Common options:
  -config <path>   YAML configuration file
`)
}

// =============================================================================
// run
// =============================================================================

func (c *cli) runCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	configPath := fs.String("config", "", "Path to config file")
	task := fs.String("task", "", "Task description")
	file := fs.String("file", "", "Read the task description from a file")
	maxRounds := fs.Int("max-rounds", 0, "Override workflow.max_rounds")
	model := fs.String("model", "", "Override llm.model")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	quiet := fs.Bool("quiet", false, "Do not print per-turn progress")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, code := c.loadConfig(*configPath, func(cfg *config.Config) {
		if *maxRounds > 0 {
			cfg.Workflow.MaxRounds = *maxRounds
		}
		if *model != "" {
			cfg.LLM.Model = *model
		}
	})
	if cfg == nil {
		return code
	}

	description, err := readTask(*task, *file, c.stdin)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := newLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	var observer workflow.Observer
	if !*quiet {
		observer = progressObserver(c.stderr)
	}
	a, err := newApp(ctx, cfg, logger, c.provider, observer)
	if err != nil {
		return c.fail(err)
	}
	defer a.close()

	result, err := a.workflow.Run(ctx, description)
	if err != nil {
		return c.fail(err)
	}
	if *asJSON {
		return c.printJSON(result)
	}
	printResult(c.stdout, result)
	return exitOK
}

// =============================================================================
// batch
// =============================================================================

func (c *cli) batchCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "", "YAML file with a list of {name, description}")
	concurrency := fs.Int("concurrency", 0, "Override workflow.batch_concurrency")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *file == "" {
		fmt.Fprintln(c.stderr, "Error: -file is required")
		return exitUsage
	}

	cfg, code := c.loadConfig(*configPath, func(cfg *config.Config) {
		if *concurrency > 0 {
			cfg.Workflow.BatchConcurrency = *concurrency
		}
	})
	if cfg == nil {
		return code
	}

	tasks, err := readTasks(*file)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := newLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger, c.provider, nil)
	if err != nil {
		return c.fail(err)
	}
	defer a.close()

	report := a.workflow.RunBatch(ctx, tasks, cfg.Workflow.BatchConcurrency)
	printBatch(c.stdout, report)
	if report.Summary.Failed > 0 {
		return exitFailed
	}
	return exitOK
}

// =============================================================================
// history
// =============================================================================

func (c *cli) historyCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	status := fs.String("status", "", "Only list runs with this status (completed, failed)")
	show := fs.String("show", "", "Show one run with its transcript")
	prune := fs.Duration("prune", 0, "Delete runs started longer ago than this duration")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, code := c.loadConfig(*configPath, nil)
	if cfg == nil {
		return code
	}
	if !cfg.Database.Enabled {
		fmt.Fprintln(c.stderr, "Error: run history requires database.enabled")
		return exitUsage
	}

	logger := newLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a := &app{cfg: cfg, logger: logger}
	defer a.close()
	store, err := a.openHistory()
	if err != nil {
		return c.fail(err)
	}

	switch {
	case *show != "":
		rec, err := store.Get(ctx, *show)
		if err != nil {
			return c.fail(err)
		}
		if err := printRecord(c.stdout, rec); err != nil {
			return c.fail(err)
		}
	case *prune > 0:
		n, err := store.Prune(ctx, time.Now().Add(-*prune))
		if err != nil {
			return c.fail(err)
		}
		fmt.Fprintf(c.stdout, "Deleted %d runs\n", n)
	default:
		records, err := store.List(ctx, history.ListOptions{Limit: *limit, Status: *status})
		if err != nil {
			return c.fail(err)
		}
		printRecords(c.stdout, records)
	}
	return exitOK
}

// =============================================================================
// helpers
// =============================================================================

func (c *cli) loadConfig(path string, override func(*config.Config)) (*config.Config, int) {
	loader := config.NewLoader().WithConfigPath(path)
	if override != nil {
		loader = loader.WithOverride(override)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(c.stderr, "Invalid config: %v\n", err)
		return nil, exitUsage
	}
	return cfg, exitOK
}

func (c *cli) fail(err error) int {
	fmt.Fprintf(c.stderr, "Error: %v\n", err)
	var rf *workflow.RunFailure
	if errors.As(err, &rf) && rf.Transcript.Len() > 1 {
		fmt.Fprintf(c.stderr, "Partial transcript (%d messages):\n", rf.Transcript.Len())
		printTranscript(c.stderr, rf.Transcript)
	}
	if types.IsErrorCode(err, types.ErrInvalidConfig) {
		return exitUsage
	}
	return exitFailed
}

func (c *cli) printJSON(v any) int {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return c.fail(err)
	}
	return exitOK
}

// readTask 依次从 -task、-file、标准输入读取任务描述
func readTask(task, file string, stdin io.Reader) (string, error) {
	switch {
	case strings.TrimSpace(task) != "":
		return task, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read task file: %w", err)
		}
		task = string(data)
	case stdin != nil:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read task from stdin: %w", err)
		}
		task = string(data)
	}
	task = strings.TrimSpace(task)
	if task == "" {
		return "", errors.New("no task given: use -task, -file or stdin")
	}
	return task, nil
}

// readTasks 读取批量任务文件
func readTasks(path string) ([]workflow.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}
	var tasks []workflow.Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parse tasks file: %w", err)
	}
	if len(tasks) == 0 {
		return nil, errors.New("tasks file contains no tasks")
	}
	for i := range tasks {
		if strings.TrimSpace(tasks[i].Description) == "" {
			return nil, fmt.Errorf("task %d has no description", i)
		}
		if tasks[i].Name == "" {
			tasks[i].Name = fmt.Sprintf("task-%d", i+1)
		}
	}
	return tasks, nil
}

func progressObserver(w io.Writer) workflow.Observer {
	return func(_ string, msg types.Message) {
		fmt.Fprintf(w, "[%d] %s (%d chars)\n", msg.Index, msg.Source, len([]rune(msg.Content)))
	}
}
