// Package report renders training logs: console tables, spreadsheet export and reward charts.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/logrusorgru/aurora"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
)

var columns = []string{"Tick", "State", "Action", "Reward", "Demand", "Inventory Levels", "Order Backlog"}

// Printer writes episode logs as aligned console tables
type Printer struct {
	w  io.Writer
	au aurora.Aurora
}

// NewPrinter creates a printer; colors should be false when w is not a terminal
func NewPrinter(w io.Writer, colors bool) *Printer {
	return &Printer{w: w, au: aurora.NewAurora(colors)}
}

// PrintLogs prints the last n training episodes
func (p *Printer) PrintLogs(logs []rl.EpisodeLog, n int) {
	recent := rl.LastEpisodes(logs, n)
	first := len(logs) - len(recent)
	for i, episodeLog := range recent {
		fmt.Fprintln(p.w, p.au.Bold(fmt.Sprintf("Episode %d", first+i+1)))
		p.PrintLog(episodeLog)
		fmt.Fprintln(p.w)
	}
}

// PrintSimulation prints the greedy rollout with its total reward
func (p *Printer) PrintSimulation(log rl.EpisodeLog) {
	fmt.Fprintln(p.w, p.au.Bold("Simulation"))
	p.PrintLog(log)
	total := int(log.TotalReward())
	fmt.Fprintf(p.w, "Total reward: %v\n\n", p.reward(total, strconv.Itoa(total)))
}

// PrintRewards prints the total reward of every episode
func (p *Printer) PrintRewards(rewards []float64) {
	parts := make([]string, len(rewards))
	for i, r := range rewards {
		parts[i] = strconv.FormatFloat(r, 'f', -1, 64)
	}
	fmt.Fprintf(p.w, "Total rewards for all episodes: [%s]\n", strings.Join(parts, ", "))
}

// PrintLog prints one episode as a table
func (p *Printer) PrintLog(log rl.EpisodeLog) {
	tw := table.NewWriter()
	tw.SetStyle(tableStyle())

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = p.au.Bold(c).String()
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignRight, AlignHeader: text.AlignRight}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for tick, entry := range log {
		backlog := FormatInts(entry.Backlog)
		if sum(entry.Backlog) > 0 {
			backlog = p.au.Yellow(backlog).String()
		}
		tw.AppendRow(table.Row{
			tick,
			entry.State.String(),
			FormatInts(entry.Action),
			p.reward(entry.Reward, strconv.Itoa(entry.Reward)).String(),
			entry.Demand,
			FormatInts(entry.Inventory),
			backlog,
		})
	}

	fmt.Fprintln(p.w, tw.Render())
}

// tableStyle is the ASCII style with headers kept as written
func tableStyle() table.Style {
	style := table.StyleDefault
	style.Format.Header = text.FormatDefault
	return style
}

func (p *Printer) reward(r int, s string) aurora.Value {
	if r < 0 {
		return p.au.Red(s)
	}
	return p.au.Green(s)
}

// FormatInts renders a vector as "(a, b, c)"
func FormatInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func sum(v []int) int {
	total := 0
	for _, x := range v {
		total += x
	}
	return total
}
