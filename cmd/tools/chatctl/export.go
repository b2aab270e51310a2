package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/export"
)

type exportOptions struct {
	session string
	format  string
	out     string
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	exportOpts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a session transcript",
		Long: `Export one session in txt, json, docx, xlsx, yaml or md format.

The active session is used when --session is omitted. Without --out the file is
written to the current directory as response.<ext> (chat_history.xlsx for xlsx);
--out - writes to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, closeStore, err := openConversation(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeStore()

			data, name, err := renderExport(conv, exportOpts.session, exportOpts.format)
			if err != nil {
				return err
			}

			out := exportOpts.out
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&exportOpts.session, "session", "s", "", "Session name (default: active session)")
	cmd.Flags().StringVarP(&exportOpts.format, "format", "f", "txt", "Export format: txt, json, docx, xlsx, yaml, md")
	cmd.Flags().StringVarP(&exportOpts.out, "out", "o", "", "Output path, - for stdout")
	return cmd
}

// renderExport 返回渲染后的内容与默认文件名。
func renderExport(conv *chat.Conversation, session, format string) ([]byte, string, error) {
	exporter, err := export.NewExporter(format)
	if err != nil {
		return nil, "", err
	}
	if session == "" {
		session = conv.Active()
	}
	turns, err := conv.History(session)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	transcript := export.Transcript{User: conv.User(), Session: session, Turns: turns}
	if err := exporter.Export(transcript, &buf); err != nil {
		return nil, "", fmt.Errorf("render %s export: %w", format, err)
	}
	return buf.Bytes(), export.FileName(exporter), nil
}
