// Package command parses the trigger-email command grammar.
package command

import (
	"regexp"
	"strings"

	"github.com/daviddao/mailnudge/internal/types"
)

// pattern pairs a command kind with the expression that recognises it.
// Order matters: the first match wins.
type pattern struct {
	kind types.CommandKind
	re   *regexp.Regexp
}

var patterns = []pattern{
	{types.KindAddNudge, regexp.MustCompile(`(?i)ADD\s+NUDGE:\s*(.+)`)},
	{types.KindAddMilestone, regexp.MustCompile(`(?i)ADD\s+MILESTONE:\s*(.+)`)},
	{types.KindNote, regexp.MustCompile(`(?i)NOTE:\s*(.+)`)},
	{types.KindToday, regexp.MustCompile(`(?i)TODAY\??`)},
}

// Parse returns the command embedded in text. It never fails: text that
// matches no pattern yields a KindUnknown command with empty content.
func Parse(text string) types.Command {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cmd := types.Command{Kind: p.kind, RawMatch: m[0]}
		if len(m) > 1 {
			cmd.Content = strings.TrimSpace(m[1])
		}
		return cmd
	}
	return types.Command{Kind: types.KindUnknown}
}

// ParseMessage parses the subject and body of a trigger message.
func ParseMessage(msg types.TriggerMessage) types.Command {
	return Parse(msg.Text())
}
