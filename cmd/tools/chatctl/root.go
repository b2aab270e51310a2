package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/compeq-chat/backend/internal/config"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/storage"
)

// rootOptions 由全局 flag 覆盖环境变量中的存储配置。
type rootOptions struct {
	backend string
	dir     string
	sqlite  string
	user    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "chatctl",
		Short: "Inspect and export Compeq chat histories",
		Long: `chatctl reads the same blob store as the API server, so session lists and
exports work without the server running.

Quick Start:
  chatctl sessions --user alice
  chatctl export --user alice --format docx --out reply.docx`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "Store backend override (file, sqlite, mongo)")
	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "Directory of the file store")
	root.PersistentFlags().StringVar(&opts.sqlite, "sqlite", "", "Path of the sqlite store")
	root.PersistentFlags().StringVarP(&opts.user, "user", "u", "", "User whose history to read")
	_ = root.MarkPersistentFlagRequired("user")

	root.AddCommand(newSessionsCmd(opts), newExportCmd(opts))
	return root
}

// openConversation 打开存储并加载用户的会话；返回的 close 负责释放存储。
func openConversation(ctx context.Context, opts *rootOptions) (*chat.Conversation, func() error, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	storeCfg := cfg.Store
	if opts.backend != "" {
		storeCfg.Backend = opts.backend
	}
	if opts.dir != "" {
		storeCfg.Dir = opts.dir
	}
	if opts.sqlite != "" {
		storeCfg.SQLitePath = opts.sqlite
	}

	store, err := storage.Open(ctx, storeCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", storeCfg.Backend, err)
	}

	conv, err := chat.NewService(store, nil).Open(ctx, opts.user)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return conv, store.Close, nil
}
