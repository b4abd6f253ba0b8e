package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BaSui01/codecrew/types"
	"github.com/BaSui01/codecrew/workflow"
	"github.com/BaSui01/codecrew/workflow/history"
)

const rule = "============================================================"

func section(w io.Writer, title, body string) {
	fmt.Fprintf(w, "%s\n%s\n%s\n%s\n\n", rule, title, rule, body)
}

// printResult 输出运行结果的各个部分
func printResult(w io.Writer, r *workflow.WorkflowResult) {
	section(w, "ORIGINAL TASK", r.OriginalTask)
	section(w, "INITIAL CODE", r.InitialCode.String())
	section(w, "REVIEW FEEDBACK", r.ReviewFeedback.String())
	section(w, "FINAL CODE", r.FinalCode.String())

	stats := r.Stats()
	fmt.Fprintf(w, "Run ID:         %s\n", r.RunID)
	fmt.Fprintf(w, "Turns:          %d (%s)\n", r.Turns, r.StopReason)
	fmt.Fprintf(w, "Messages:       %d\n", stats.MessageCount)
	fmt.Fprintf(w, "Final code:     %d chars in %d blocks\n", stats.CodeLength, stats.CodeBlocks)
	fmt.Fprintf(w, "Execution time: %.2fs\n", stats.ExecutionSeconds)
	if r.TokenUsage != nil {
		suffix := ""
		if r.TokenUsage.Estimated {
			suffix = " (estimated)"
		}
		fmt.Fprintf(w, "Tokens:         %d prompt / %d completion%s\n",
			r.TokenUsage.PromptTokens, r.TokenUsage.CompletionTokens, suffix)
	}
}

// printBatch 输出批量运行摘要
func printBatch(w io.Writer, report *workflow.BatchReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSTATUS\tTURNS\tTIME\tFINAL CODE")
	for _, o := range report.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(tw, "%s\tfailed\t-\t-\t%s\n", o.Task.Name, firstLine(o.Err.Error()))
			continue
		}
		r := o.Result
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d chars\n",
			o.Task.Name, r.StopReason, r.Turns, r.ExecutionTime.Round(time.Millisecond), r.Stats().CodeLength)
	}
	_ = tw.Flush()

	s := report.Summary
	fmt.Fprintf(w, "\n%d tasks, %d succeeded, %d failed in %s (avg %s)\n",
		s.Tasks, s.Succeeded, s.Failed, s.TotalTime.Round(time.Millisecond), s.AvgTime.Round(time.Millisecond))
}

// printRecords 输出历史记录列表
func printRecords(w io.Writer, records []history.RunRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTATUS\tSTOP\tTURNS\tTASK")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.StopReason, r.Turns, truncate(firstLine(r.Task), 48))
	}
	_ = tw.Flush()
}

// printRecord 输出单条历史记录及其对话
func printRecord(w io.Writer, r *history.RunRecord) error {
	msgs, err := r.Messages()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Run %s (%s, %s, %d turns, %s)\n\n", r.RunID, r.Status, r.StopReason, r.Turns, r.Elapsed())
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n\n", r.Error)
	}
	if r.Status == history.StatusCompleted {
		section(w, "FINAL CODE", r.FinalCode)
	}
	printTranscript(w, msgs)
	return nil
}

// printTranscript 依次输出每条消息
func printTranscript(w io.Writer, tr types.Transcript) {
	for _, m := range tr {
		fmt.Fprintf(w, "--- [%d] %s ---\n%s\n", m.Index, m.Source, m.Content)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
