package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/BaSui01/askall/types"
	"github.com/charmbracelet/lipgloss"
)

// Querier 向全部平台提问；HTTP 客户端与进程内编排器都满足
type Querier interface {
	QueryAll(ctx context.Context, question string) ([]types.PlatformResult, error)
}

const helpText = `Commands:
  compare   diff each pair of the last answers
  last      print the last answers again
  help      show this help
  exit      quit
Anything else is sent as a question.`

// REPL 交互式提问循环
type REPL struct {
	querier Querier
	in      io.Reader
	out     io.Writer

	// 最近一次结果，只属于当前会话
	last []types.PlatformResult

	header  lipgloss.Style
	errText lipgloss.Style
	dim     lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
}

// NewREPL 创建 REPL，样式按 out 的终端能力自动降级
func NewREPL(q Querier, in io.Reader, out io.Writer) *REPL {
	r := lipgloss.NewRenderer(out)
	return &REPL{
		querier: q,
		in:      in,
		out:     out,
		header: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}).
			Bold(true),
		errText: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}),
		dim: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		added: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
		removed: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}),
	}
}

// Last 最近一次结果
func (r *REPL) Last() []types.PlatformResult {
	return r.last
}

// Run 读取输入直到 exit、EOF 或 ctx 取消
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, r.header.Render("askall"))
	fmt.Fprintln(r.out, r.dim.Render("Your question goes to Claude, OpenAI and Gemini in turn. Type \"help\" for commands."))

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.out, "\nEnter your question (or \"exit\" to quit): ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(r.out, helpText)
		case "last":
			r.printLast()
		case "compare":
			r.printComparisons()
		default:
			r.ask(ctx, line)
		}
	}
}

func (r *REPL) ask(ctx context.Context, question string) {
	fmt.Fprintln(r.out, r.dim.Render("Sending question to AI platforms..."))
	results, err := r.querier.QueryAll(ctx, question)
	if err != nil {
		fmt.Fprintln(r.out, r.errText.Render("Error querying AI platforms: "+err.Error()))
		return
	}
	r.last = results
	r.PrintResults(results)
}

// PrintResults 按 "----- 平台 -----" 分块打印
func (r *REPL) PrintResults(results []types.PlatformResult) {
	fmt.Fprintln(r.out, "\n====== RESULTS ======")
	for _, res := range results {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, r.header.Render(fmt.Sprintf("----- %s -----", res.Platform.DisplayName())))
		if res.Failed() {
			fmt.Fprintln(r.out, r.errText.Render(res.Response))
			fmt.Fprintln(r.out, r.dim.Render(fmt.Sprintf("(%s)", res.Error.Code)))
			continue
		}
		fmt.Fprintln(r.out, res.Response)
		if res.Source == types.SourceCache {
			fmt.Fprintln(r.out, r.dim.Render("(cached)"))
		}
	}
	fmt.Fprintln(r.out, "\n=====================")
}

func (r *REPL) printLast() {
	if len(r.last) == 0 {
		fmt.Fprintln(r.out, r.dim.Render("No answers yet."))
		return
	}
	r.PrintResults(r.last)
}

func (r *REPL) printComparisons() {
	comparisons := Compare(r.last)
	if len(comparisons) == 0 {
		fmt.Fprintln(r.out, r.dim.Render("Need at least two answers to compare."))
		return
	}
	for _, c := range comparisons {
		title := fmt.Sprintf("----- %s vs %s -----", c.From.DisplayName(), c.To.DisplayName())
		fmt.Fprintln(r.out, r.header.Render(title))
		if c.Identical() {
			fmt.Fprintln(r.out, r.dim.Render("(identical)"))
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(c.Diff, "\n"), "\n") {
			switch {
			case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
				fmt.Fprintln(r.out, r.dim.Render(line))
			case strings.HasPrefix(line, "+"):
				fmt.Fprintln(r.out, r.added.Render(line))
			case strings.HasPrefix(line, "-"):
				fmt.Fprintln(r.out, r.removed.Render(line))
			default:
				fmt.Fprintln(r.out, line)
			}
		}
	}
}
