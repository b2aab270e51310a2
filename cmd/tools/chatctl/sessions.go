package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	activeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the sessions of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, closeStore, err := openConversation(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeStore()

			renderSessions(cmd.OutOrStdout(), conv)
			return nil
		},
	}
}

// renderSessions 输出按名称排序的会话列表，活动会话以 * 标记。
func renderSessions(w io.Writer, conv *chat.Conversation) {
	if recovered := conv.Recovered(); recovered != nil {
		fmt.Fprintln(w, warnStyle.Render("warning: "+recovered.Error()))
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Sessions of %s", conv.User())))
	active := conv.Active()
	for _, summary := range conv.Summaries() {
		marker := "  "
		name := summary.Name
		if name == active {
			marker = "* "
			name = activeStyle.Render(name)
		}
		fmt.Fprintf(w, "%s%s  %s\n", marker, name, countStyle.Render(strconv.Itoa(summary.Turns)+" turns"))
	}
}
